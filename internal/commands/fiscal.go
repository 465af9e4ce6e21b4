package commands

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"time"

	"cloud.google.com/go/civil"
	"github.com/spf13/cobra"

	"github.com/cleared-dev/freightbooks/internal/model"
)

func newFiscalCommand(opts *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fiscal",
		Short: "Fiscal years",
	}
	cmd.AddCommand(
		newFiscalListCommand(opts),
		newFiscalCurrentCommand(opts),
		newFiscalCreateCommand(opts),
		newFiscalStateCommand(opts, "close", "Close a fiscal year whose end date has passed"),
		newFiscalStateCommand(opts, "reopen", "Reopen a closed fiscal year"),
	)
	return cmd
}

func printYear(w io.Writer, fy model.FiscalYear) {
	state := "open"
	if fy.Closed {
		state = "closed"
	}
	fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", fy.Year, fy.Start, fy.End, state)
}

func newFiscalListCommand(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List fiscal years",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app) error {
				years, err := a.years.List(ctx)
				if err != nil {
					return err
				}
				tw := newTable(cmd.OutOrStdout())
				fmt.Fprintln(tw, "YEAR\tSTART\tEND\tSTATE")
				for _, fy := range years {
					printYear(tw, fy)
				}
				return tw.Flush()
			})
		},
	}
}

func newFiscalCurrentCommand(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "current",
		Short: "Show the fiscal year containing today",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app) error {
				fy, ok, err := a.years.Current(ctx)
				if err != nil {
					return err
				}
				if !ok {
					return fmt.Errorf("no fiscal year contains %s", a.years.Today())
				}
				printYear(cmd.OutOrStdout(), fy)
				return nil
			})
		},
	}
}

func newFiscalCreateCommand(opts *globalOptions) *cobra.Command {
	var start, end string

	cmd := &cobra.Command{
		Use:   "create <year>",
		Short: "Register a fiscal year (calendar year by default)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			year, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("invalid year %q", args[0])
			}
			from := civil.Date{Year: year, Month: time.January, Day: 1}
			to := civil.Date{Year: year, Month: time.December, Day: 31}
			if start != "" {
				if from, err = parseDate("start", start); err != nil {
					return err
				}
			}
			if end != "" {
				if to, err = parseDate("end", end); err != nil {
					return err
				}
			}
			return withApp(cmd, opts, func(ctx context.Context, a *app) error {
				fy, err := a.years.Create(ctx, year, from, to)
				if err != nil {
					return err
				}
				printYear(cmd.OutOrStdout(), fy)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&start, "start", "", "first day, YYYY-MM-DD")
	cmd.Flags().StringVar(&end, "end", "", "last day, YYYY-MM-DD")
	return cmd
}

func newFiscalStateCommand(opts *globalOptions, action, short string) *cobra.Command {
	return &cobra.Command{
		Use:   action + " <year>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			year, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("invalid year %q", args[0])
			}
			return withApp(cmd, opts, func(ctx context.Context, a *app) error {
				fy, err := a.years.ByYear(ctx, year)
				if err != nil {
					return err
				}
				if action == "close" {
					fy, err = a.years.Close(ctx, fy.ID)
				} else {
					fy, err = a.years.Reopen(ctx, fy.ID)
				}
				if err != nil {
					return err
				}
				printYear(cmd.OutOrStdout(), fy)
				return nil
			})
		},
	}
}
