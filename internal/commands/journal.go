package commands

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/cleared-dev/freightbooks/internal/journal"
	"github.com/cleared-dev/freightbooks/internal/model"
)

func newJournalCommand(opts *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "journal",
		Aliases: []string{"je"},
		Short:   "Journal entries",
	}
	cmd.AddCommand(
		newJournalListCommand(opts),
		newJournalShowCommand(opts),
		newJournalAddCommand(opts),
		newJournalReverseCommand(opts),
		newJournalExportCommand(opts),
		newJournalImportCommand(opts),
	)
	return cmd
}

func printEntry(w io.Writer, e *model.JournalEntry) {
	fmt.Fprintf(w, "%s  %s  %s  [%s", e.Number, e.Date, e.Description, e.SourceType)
	if e.SourceID != "" {
		fmt.Fprintf(w, " %s", e.SourceID)
	}
	fmt.Fprintln(w, "]")
	if e.Reference != "" {
		fmt.Fprintf(w, "  ref %s\n", e.Reference)
	}
	tw := newTable(w)
	for _, l := range e.Lines {
		fmt.Fprintf(tw, "  %d\t%s\t%s\t%s\t%s\n", l.Order, l.AccountNumber, side(l.Debit), side(l.Credit), l.Description)
	}
	fmt.Fprintf(tw, "  \t\t%s\t%s\t\n", money(e.TotalDebit), money(e.TotalCredit))
	_ = tw.Flush()
}

func newJournalListCommand(opts *globalOptions) *cobra.Command {
	var year, offset, limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List entries, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app) error {
				lo := journal.ListOptions{Offset: offset, Limit: limit}
				if year != 0 {
					fy, err := a.years.ByYear(ctx, year)
					if err != nil {
						return err
					}
					lo.FiscalYearID = fy.ID
				}
				page, err := a.ledger.List(ctx, lo)
				if err != nil {
					return err
				}
				tw := newTable(cmd.OutOrStdout())
				fmt.Fprintln(tw, "NUMBER\tDATE\tSOURCE\tDESCRIPTION\tAMOUNT")
				for _, e := range page.Entries {
					fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", e.Number, e.Date, e.SourceType, e.Description, money(e.TotalDebit))
				}
				if err := tw.Flush(); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%d of %d entries\n", len(page.Entries), page.Total)
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&year, "year", 0, "only entries of this fiscal year")
	cmd.Flags().IntVar(&offset, "offset", 0, "skip this many entries")
	cmd.Flags().IntVar(&limit, "limit", 50, "show at most this many entries (0 for all)")
	return cmd
}

func newJournalShowCommand(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "show <number>",
		Short: "Show an entry and its lines",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app) error {
				e, err := a.ledger.ByNumber(ctx, args[0])
				if err != nil {
					return err
				}
				printEntry(cmd.OutOrStdout(), &e)
				if rev, ok, err := a.ledger.ReversalOf(ctx, e.Number); err != nil {
					return err
				} else if ok {
					fmt.Fprintf(cmd.OutOrStdout(), "  reversed by %s\n", rev)
				}
				return nil
			})
		},
	}
}

// lineArg is one --line value: account:debit:credit[:description].
type lineArg struct {
	account     string
	debit       decimal.Decimal
	credit      decimal.Decimal
	description string
}

func parseLine(s string) (lineArg, error) {
	parts := strings.SplitN(s, ":", 4)
	if len(parts) < 3 {
		return lineArg{}, fmt.Errorf("--line %q: want account:debit:credit[:description]", s)
	}
	ls := lineArg{account: parts[0]}
	var err error
	if ls.debit, err = parseAmount("line", parts[1]); err != nil {
		return lineArg{}, err
	}
	if ls.credit, err = parseAmount("line", parts[2]); err != nil {
		return lineArg{}, err
	}
	if len(parts) == 4 {
		ls.description = parts[3]
	}
	return ls, nil
}

func newJournalAddCommand(opts *globalOptions) *cobra.Command {
	var date, desc, ref, actor string
	var lines []string

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Commit a manual entry",
		Example: `  freightbooks journal add --desc "Office rent" \
    --line 626:1200:0:Rent --line 512:0:1200:Transfer`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := parseDate("date", date)
			if err != nil {
				return err
			}
			parsed := make([]lineArg, 0, len(lines))
			for _, s := range lines {
				ls, err := parseLine(s)
				if err != nil {
					return err
				}
				parsed = append(parsed, ls)
			}
			return withApp(cmd, opts, func(ctx context.Context, a *app) error {
				e := a.ledger.NewDraft(journal.DraftParams{
					Date:        d,
					Description: desc,
					Reference:   ref,
					CreatedBy:   actor,
				})
				for _, ls := range parsed {
					if err := a.ledger.AppendLine(ctx, e, ls.account, ls.debit, ls.credit, ls.description); err != nil {
						return fmt.Errorf("account %s: %w", ls.account, err)
					}
				}
				committed, err := a.ledger.Commit(ctx, e)
				if err != nil {
					return err
				}
				printEntry(cmd.OutOrStdout(), &committed)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&date, "date", "", "entry date, YYYY-MM-DD (default today)")
	cmd.Flags().StringVar(&desc, "desc", "", "entry description (required)")
	_ = cmd.MarkFlagRequired("desc")
	cmd.Flags().StringVar(&ref, "ref", "", "external reference")
	cmd.Flags().StringVar(&actor, "actor", "cli", "user committing the entry")
	cmd.Flags().StringArrayVar(&lines, "line", nil, "account:debit:credit[:description], repeatable")
	return cmd
}

func newJournalReverseCommand(opts *globalOptions) *cobra.Command {
	var actor string

	cmd := &cobra.Command{
		Use:   "reverse <number>",
		Short: "Commit the mirror entry of a committed entry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app) error {
				e, err := a.ledger.Reverse(ctx, args[0], actor)
				if err != nil {
					return err
				}
				printEntry(cmd.OutOrStdout(), &e)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&actor, "actor", "cli", "user committing the reversal")
	return cmd
}

func newJournalExportCommand(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "export [journal.csv]",
		Short: "Write every entry as CSV, one row per line (stdout by default)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app) error {
				entries, err := a.ledger.All(ctx)
				if err != nil {
					return err
				}
				return writeTo(cmd, args, func(w io.Writer) error {
					return journal.WriteEntries(w, entries)
				})
			})
		},
	}
}

func newJournalImportCommand(opts *globalOptions) *cobra.Command {
	var actor string

	cmd := &cobra.Command{
		Use:   "import <journal.csv>",
		Short: "Commit the entries of a journal CSV as manual entries",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("opening journal: %w", err)
			}
			defer f.Close()
			rows, err := journal.ReadRows(f)
			if err != nil {
				return err
			}
			return withApp(cmd, opts, func(ctx context.Context, a *app) error {
				committed, err := a.ledger.Import(ctx, rows, actor)
				fmt.Fprintf(cmd.OutOrStdout(), "Imported %d entries\n", len(committed))
				return err
			})
		},
	}
	cmd.Flags().StringVar(&actor, "actor", "import", "user recorded on imported entries")
	return cmd
}
