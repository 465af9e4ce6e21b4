package commands

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/cleared-dev/freightbooks/internal/accounts"
	"github.com/cleared-dev/freightbooks/internal/model"
)

func newAccountCommand(opts *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "account",
		Short: "Chart of accounts",
	}
	cmd.AddCommand(
		newAccountListCommand(opts),
		newAccountShowCommand(opts),
		newAccountCreateCommand(opts),
		newAccountDeactivateCommand(opts),
		newAccountImportCommand(opts),
		newAccountExportCommand(opts),
	)
	return cmd
}

func newAccountListCommand(opts *globalOptions) *cobra.Command {
	var search, accountType string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List accounts with their balances",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app) error {
				idx, err := a.accounts.Snapshot(ctx)
				if err != nil {
					return err
				}
				list := idx.All()
				switch {
				case search != "":
					list = idx.Search(search)
				case accountType != "":
					t, err := model.ParseAccountType(accountType)
					if err != nil {
						return err
					}
					list = idx.ByType(t)
				}

				tw := newTable(cmd.OutOrStdout())
				fmt.Fprintln(tw, "NUMBER\tNAME\tTYPE\tBALANCE\tKIND\tSTATUS")
				for _, acct := range list {
					kind := "detail"
					if !idx.IsDetail(acct.ID) {
						kind = "rollup"
					}
					status := "active"
					if !acct.Active {
						status = "inactive"
					}
					fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n", acct.Number, acct.Name, acct.Type, money(acct.Balance), kind, status)
				}
				return tw.Flush()
			})
		},
	}
	cmd.Flags().StringVar(&search, "search", "", "only accounts whose name contains this text")
	cmd.Flags().StringVar(&accountType, "type", "", "only accounts of this type")
	return cmd
}

func newAccountShowCommand(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "show <number>",
		Short: "Show one account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app) error {
				idx, err := a.accounts.Snapshot(ctx)
				if err != nil {
					return err
				}
				acct, ok := idx.ByNumber(args[0])
				if !ok {
					return fmt.Errorf("%w: number %s", accounts.ErrAccountNotFound, args[0])
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Account:  %s %s\n", acct.Number, acct.Name)
				fmt.Fprintf(out, "Path:     %s\n", idx.FullPath(acct.ID))
				fmt.Fprintf(out, "Type:     %s (increases on %s)\n", acct.Type, polarity(acct.Type))
				fmt.Fprintf(out, "Balance:  %s\n", money(acct.Balance))
				fmt.Fprintf(out, "Active:   %t\n", acct.Active)
				fmt.Fprintf(out, "Postable: %t\n", idx.IsDetail(acct.ID))
				for _, c := range idx.Children(acct.ID) {
					fmt.Fprintf(out, "  child   %s %s\n", c.Number, c.Name)
				}
				return nil
			})
		},
	}
}

func polarity(t model.AccountType) string {
	if t.IncreasesOnDebit() {
		return "debit"
	}
	return "credit"
}

func newAccountCreateCommand(opts *globalOptions) *cobra.Command {
	var accountType, parent string

	cmd := &cobra.Command{
		Use:   "create <number> <name>",
		Short: "Add an account to the chart",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := model.ParseAccountType(accountType)
			if err != nil {
				return err
			}
			return withApp(cmd, opts, func(ctx context.Context, a *app) error {
				p := accounts.CreateParams{Number: args[0], Name: args[1], Type: t}
				if parent != "" {
					pa, err := a.accounts.ByNumber(ctx, parent)
					if err != nil {
						return fmt.Errorf("%w: %s", accounts.ErrParentNotFound, parent)
					}
					p.ParentID = pa.ID
				}
				acct, err := a.accounts.Create(ctx, p)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Created account %s %s (%s)\n", acct.Number, acct.Name, acct.Type)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&accountType, "type", "", "ASSET, LIABILITY, EQUITY, REVENUE or EXPENSE (required)")
	_ = cmd.MarkFlagRequired("type")
	cmd.Flags().StringVar(&parent, "parent", "", "parent account number")
	return cmd
}

func newAccountDeactivateCommand(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "deactivate <number>",
		Short: "Deactivate an account (balance and history are kept)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app) error {
				acct, err := a.accounts.ByNumber(ctx, args[0])
				if err != nil {
					return err
				}
				if err := a.accounts.Deactivate(ctx, acct.ID); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deactivated account %s\n", acct.Number)
				return nil
			})
		},
	}
}

func newAccountImportCommand(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "import <chart.csv>",
		Short: "Create the accounts of a chart CSV that do not exist yet",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("opening chart: %w", err)
			}
			defer f.Close()
			chart, err := accounts.ReadChart(f)
			if err != nil {
				return err
			}
			return withApp(cmd, opts, func(ctx context.Context, a *app) error {
				n, err := a.accounts.Seed(ctx, chart)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Imported %d accounts (%d already present)\n", n, len(chart)-n)
				return nil
			})
		},
	}
}

func newAccountExportCommand(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "export [chart.csv]",
		Short: "Write the chart of accounts as CSV (stdout by default)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app) error {
				chart, err := a.accounts.Export(ctx)
				if err != nil {
					return err
				}
				return writeTo(cmd, args, func(w io.Writer) error {
					return accounts.WriteChart(w, chart)
				})
			})
		},
	}
}

// writeTo writes to the file named in args, or stdout when there is none.
func writeTo(cmd *cobra.Command, args []string, fn func(w io.Writer) error) error {
	if len(args) == 0 {
		return fn(cmd.OutOrStdout())
	}
	f, err := os.Create(args[0])
	if err != nil {
		return fmt.Errorf("creating %s: %w", args[0], err)
	}
	if err := fn(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
