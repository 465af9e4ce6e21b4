package commands

import (
	"context"
	"errors"
	"fmt"

	"cloud.google.com/go/civil"
	"github.com/spf13/cobra"

	"github.com/cleared-dev/freightbooks/internal/model"
	"github.com/cleared-dev/freightbooks/internal/postlog"
)

// errCheckFailed makes a failed integrity check exit non-zero after its
// report has been printed.
var errCheckFailed = errors.New("check failed")

func newReportCommand(opts *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Balances, movements and ledger checks",
	}
	cmd.AddCommand(
		newReportBalanceCommand(opts),
		newReportMovementsCommand(opts),
		newReportTreasuryCommand(opts),
		newReportTrialBalanceCommand(opts),
		newReportValidateCommand(opts),
		newReportVerifyCommand(opts),
		newReportExplainCommand(opts),
		newReportReconcileCommand(opts),
	)
	return cmd
}

func newReportBalanceCommand(opts *globalOptions) *cobra.Command {
	var at string

	cmd := &cobra.Command{
		Use:   "balance <account>",
		Short: "Balance of an account, optionally as of a date",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := parseDate("at", at)
			if err != nil {
				return err
			}
			return withApp(cmd, opts, func(ctx context.Context, a *app) error {
				if d == (civil.Date{}) {
					d = a.years.Today()
				}
				bal, err := a.reporter.BalanceAt(ctx, args[0], d)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s at %s: %s\n", args[0], d, money(bal))
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&at, "at", "", "as of this date, YYYY-MM-DD (default today)")
	return cmd
}

func newReportMovementsCommand(opts *globalOptions) *cobra.Command {
	var from, to string

	cmd := &cobra.Command{
		Use:   "movements <account>",
		Short: "Posted lines of an account with the running balance",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := parseDate("from", from)
			if err != nil {
				return err
			}
			t, err := parseDate("to", to)
			if err != nil {
				return err
			}
			return withApp(cmd, opts, func(ctx context.Context, a *app) error {
				moves, err := a.reporter.Movements(ctx, args[0], f, t)
				if err != nil {
					return err
				}
				tw := newTable(cmd.OutOrStdout())
				fmt.Fprintln(tw, "DATE\tENTRY\tDESCRIPTION\tDEBIT\tCREDIT\tBALANCE")
				for _, m := range moves {
					fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n", m.Date, m.EntryNumber, m.EntryDescription,
						side(m.Line.Debit), side(m.Line.Credit), money(m.Balance))
				}
				return tw.Flush()
			})
		},
	}
	cmd.Flags().StringVar(&from, "from", "", "first date, YYYY-MM-DD")
	cmd.Flags().StringVar(&to, "to", "", "last date, YYYY-MM-DD")
	return cmd
}

func newReportTreasuryCommand(opts *globalOptions) *cobra.Command {
	var recent int

	cmd := &cobra.Command{
		Use:   "treasury",
		Short: "Cash and bank position",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app) error {
				rep, err := a.reporter.Treasury(ctx, recent)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Cash (%s):  %s\n", rep.Cash.Number, money(rep.Cash.Balance))
				fmt.Fprintf(out, "Bank (%s):  %s\n", rep.Bank.Number, money(rep.Bank.Balance))
				fmt.Fprintf(out, "Total:       %s\n", money(rep.Total))
				if len(rep.Recent) == 0 {
					return nil
				}
				fmt.Fprintln(out)
				tw := newTable(out)
				fmt.Fprintln(tw, "DATE\tENTRY\tACCOUNT\tDESCRIPTION\tAMOUNT")
				for _, m := range rep.Recent {
					fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", m.Date, m.EntryNumber, m.Line.AccountNumber, m.EntryDescription, money(m.Effect))
				}
				return tw.Flush()
			})
		},
	}
	cmd.Flags().IntVar(&recent, "recent", 10, "number of recent movements to show")
	return cmd
}

func newReportTrialBalanceCommand(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "trial-balance",
		Short: "Detail account balances with debit and credit totals",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app) error {
				rep, err := a.reporter.TrialBalance(ctx)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				tw := newTable(out)
				fmt.Fprintln(tw, "NUMBER\tNAME\tDEBIT\tCREDIT")
				for _, r := range rep.Rows {
					fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", r.Number, r.Name, side(r.Debit), side(r.Credit))
				}
				fmt.Fprintf(tw, "\tTOTAL\t%s\t%s\n", money(rep.TotalDebit), money(rep.TotalCredit))
				if err := tw.Flush(); err != nil {
					return err
				}
				fmt.Fprintln(out)
				for _, t := range model.AccountTypes {
					fmt.Fprintf(out, "%-10s %s\n", t, money(rep.Totals[t]))
				}
				fmt.Fprintf(out, "Balanced: %t  Equation: %t  Balance sheet: %t\n", rep.Balanced, rep.Equation, rep.BalanceSheet)
				if !rep.Balanced || !rep.Equation {
					return errCheckFailed
				}
				return nil
			})
		},
	}
}

func newReportValidateCommand(opts *globalOptions) *cobra.Command {
	var from, to string

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Check that debits equal credits over a date range",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := parseDate("from", from)
			if err != nil {
				return err
			}
			t, err := parseDate("to", to)
			if err != nil {
				return err
			}
			return withApp(cmd, opts, func(ctx context.Context, a *app) error {
				if t == (civil.Date{}) {
					t = a.years.Today()
				}
				v, err := a.reporter.ValidatePeriod(ctx, f, t)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "%d entries, debit %s, credit %s\n", v.Entries, money(v.TotalDebit), money(v.TotalCredit))
				for _, n := range v.Unbalanced {
					fmt.Fprintf(out, "unbalanced: %s\n", n)
				}
				if !v.Balanced {
					return errCheckFailed
				}
				fmt.Fprintln(out, "Balanced")
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&from, "from", "", "first date, YYYY-MM-DD")
	cmd.Flags().StringVar(&to, "to", "", "last date, YYYY-MM-DD (default today)")
	return cmd
}

func newReportVerifyCommand(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "verify",
		Short: "Recompute account balances from posted lines",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app) error {
				drift, err := a.reporter.VerifyBalances(ctx)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				for _, d := range drift {
					fmt.Fprintf(out, "%s: stored %s, lines say %s\n", d.Number, money(d.Stored), money(d.Recomputed))
				}
				if len(drift) > 0 {
					return errCheckFailed
				}
				fmt.Fprintln(out, "All balances match their lines")
				return nil
			})
		},
	}
}

func newReportExplainCommand(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "explain <number>",
		Short: "Narrate what each line of an entry means",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app) error {
				e, lines, err := a.reporter.Explain(ctx, args[0])
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "%s  %s  %s\n", e.Number, e.Date, e.Description)
				for _, x := range lines {
					fmt.Fprintf(out, "  %s\n", x.Narration)
				}
				return nil
			})
		},
	}
}

func newReportReconcileCommand(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "reconcile",
		Short: "Compare the posting log with automatic ledger entries",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app) error {
				attempts, err := postlog.Read(a.root)
				if err != nil {
					return err
				}
				recs, err := a.reporter.Reconcile(ctx, attempts)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				tw := newTable(out)
				fmt.Fprintln(tw, "SOURCE\tEVENTS\tENTRIES\tPOSTED\tSKIPPED\tINVALID\tFAILED\tMISSING")
				inSync := true
				for _, rc := range recs {
					fmt.Fprintf(tw, "%s\t%d\t%d\t%d\t%d\t%d\t%d\t%d\n", rc.SourceType, rc.Events, rc.Entries,
						rc.Posted, rc.Skipped, rc.Invalid, rc.Failed, len(rc.Missing))
					inSync = inSync && rc.InSync()
				}
				if err := tw.Flush(); err != nil {
					return err
				}
				for _, rc := range recs {
					for _, id := range rc.Missing {
						fmt.Fprintf(out, "missing: %s %s\n", rc.SourceType, id)
					}
				}
				if !inSync {
					return errCheckFailed
				}
				return nil
			})
		},
	}
}
