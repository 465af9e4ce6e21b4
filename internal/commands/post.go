package commands

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/cleared-dev/freightbooks/internal/feed"
	"github.com/cleared-dev/freightbooks/internal/model"
	"github.com/cleared-dev/freightbooks/internal/posting"
)

// post commands play the part of the business operations: they raise an
// event through the gateway and then look for the entry it produced.
func newPostCommand(opts *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "post",
		Short: "Raise a business event and post its journal entry",
	}
	cmd.AddCommand(
		newPostInvoiceCommand(opts),
		newPostPaymentCommand(opts),
		newPostShipmentCommand(opts),
		newPostFeedCommand(opts),
	)
	return cmd
}

type postFlags struct {
	id     string
	number string
	client string
	actor  string
}

func (f *postFlags) register(cmd *cobra.Command, withNumber bool) {
	cmd.Flags().StringVar(&f.id, "id", "", "business object id (required)")
	_ = cmd.MarkFlagRequired("id")
	if withNumber {
		cmd.Flags().StringVar(&f.number, "number", "", "business document number (required)")
		_ = cmd.MarkFlagRequired("number")
	}
	cmd.Flags().StringVar(&f.client, "client", "", "client name")
	cmd.Flags().StringVar(&f.actor, "actor", "cli", "user raising the event")
}

func newPostInvoiceCommand(opts *globalOptions) *cobra.Command {
	var f postFlags
	var total, net, tax string

	cmd := &cobra.Command{
		Use:   "invoice",
		Short: "Invoice created: receivables against sales and VAT",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			inv := model.Invoice{ID: f.id, Number: f.number, ClientName: f.client}
			var err error
			if inv.TotalAmount, err = parseAmount("total", total); err != nil {
				return err
			}
			if inv.AmountExcludingTax, err = parseAmount("net", net); err != nil {
				return err
			}
			if inv.TaxAmount, err = parseAmount("tax", tax); err != nil {
				return err
			}
			if net == "" {
				inv.AmountExcludingTax = inv.TotalAmount.Sub(inv.TaxAmount)
			}
			return raise(cmd, opts, model.SourceInvoice, f.id, func(ctx context.Context, g posting.Gateway) {
				g.InvoiceCreated(ctx, model.InvoiceCreated{Invoice: inv, ActorID: f.actor})
			})
		},
	}
	f.register(cmd, true)
	cmd.Flags().StringVar(&total, "total", "", "amount including tax (required)")
	_ = cmd.MarkFlagRequired("total")
	cmd.Flags().StringVar(&net, "net", "", "amount excluding tax (default total minus tax)")
	cmd.Flags().StringVar(&tax, "tax", "0", "tax amount")
	return cmd
}

func newPostPaymentCommand(opts *globalOptions) *cobra.Command {
	var f postFlags
	var amount, method, reference string

	cmd := &cobra.Command{
		Use:   "payment",
		Short: "Payment received: treasury against receivables",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			pay := model.Payment{
				ID:         f.id,
				ClientName: f.client,
				Method:     model.PaymentMethod(strings.ToUpper(method)),
				Reference:  reference,
			}
			var err error
			if pay.Amount, err = parseAmount("amount", amount); err != nil {
				return err
			}
			return raise(cmd, opts, model.SourcePayment, f.id, func(ctx context.Context, g posting.Gateway) {
				g.PaymentReceived(ctx, model.PaymentReceived{Payment: pay, ActorID: f.actor})
			})
		},
	}
	f.register(cmd, false)
	cmd.Flags().StringVar(&amount, "amount", "", "amount received (required)")
	_ = cmd.MarkFlagRequired("amount")
	cmd.Flags().StringVar(&method, "method", string(model.PaymentTransfer), "CASH, ESPECES, VIREMENT or CHEQUE")
	cmd.Flags().StringVar(&reference, "reference", "", "bank or cheque reference")
	return cmd
}

func newPostShipmentCommand(opts *globalOptions) *cobra.Command {
	var f postFlags
	var cost string

	cmd := &cobra.Command{
		Use:   "shipment",
		Short: "Shipment completed: receivables against freight sales",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			lta := model.Shipment{ID: f.id, Number: f.number, ClientName: f.client}
			var err error
			if lta.CalculatedCost, err = parseAmount("cost", cost); err != nil {
				return err
			}
			return raise(cmd, opts, model.SourceLTA, f.id, func(ctx context.Context, g posting.Gateway) {
				g.ShipmentCompleted(ctx, model.ShipmentCompleted{LTA: lta, ActorID: f.actor})
			})
		},
	}
	f.register(cmd, true)
	cmd.Flags().StringVar(&cost, "cost", "", "calculated freight cost (required)")
	_ = cmd.MarkFlagRequired("cost")
	return cmd
}

// raise hands the event to the gateway and reports what reached the
// ledger. A skipped posting is not a command failure.
func raise(cmd *cobra.Command, opts *globalOptions, st model.SourceType, sourceID string, fire func(ctx context.Context, g posting.Gateway)) error {
	return withApp(cmd, opts, func(ctx context.Context, a *app) error {
		fire(ctx, a.engine)

		entries, err := a.ledger.BySource(ctx, st, sourceID)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if len(entries) == 0 {
			fmt.Fprintf(out, "No entry posted for %s %s (see log)\n", st, sourceID)
			return nil
		}
		for i := range entries {
			printEntry(out, &entries[i])
		}
		return nil
	})
}

func newPostFeedCommand(opts *globalOptions) *cobra.Command {
	var actor string
	var metrics bool

	cmd := &cobra.Command{
		Use:   "feed [file.csv...]",
		Short: "Replay invoices-*, payments-* and shipments-* CSV files",
		Long: `Replay business events from CSV files. The file name prefix picks the
format. Without arguments every CSV in the import directory is replayed
and then moved to import/processed.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app) error {
				reg := feed.DefaultRegistry()
				paths := args
				inbox := len(args) == 0
				if inbox {
					files, err := feed.Scan(a.root)
					if err != nil {
						return err
					}
					for _, f := range files {
						paths = append(paths, f.Path)
					}
				}
				if len(paths) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "Nothing to replay")
					return nil
				}

				tw := newTable(cmd.OutOrStdout())
				fmt.Fprintln(tw, "FILE\tEVENTS\tPOSTED")
				for _, path := range paths {
					events, err := reg.ReadFile(path, actor)
					if err != nil {
						return err
					}
					feed.Replay(ctx, a.engine, events)
					posted, err := countPosted(ctx, a, events)
					if err != nil {
						return err
					}
					fmt.Fprintf(tw, "%s\t%d\t%d\n", filepath.Base(path), len(events), posted)
					if inbox {
						if err := feed.MarkProcessed(a.root, filepath.Base(path)); err != nil {
							return err
						}
					}
				}
				if err := tw.Flush(); err != nil {
					return err
				}
				if metrics {
					fmt.Fprintln(cmd.OutOrStdout())
					return a.writeMetrics(cmd.OutOrStdout())
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&actor, "actor", "feed", "user recorded on posted entries")
	cmd.Flags().BoolVar(&metrics, "metrics", false, "print posting metrics for this run")
	return cmd
}

// countPosted counts the events that now have a ledger entry.
func countPosted(ctx context.Context, a *app, events []feed.Event) (int, error) {
	n := 0
	for _, ev := range events {
		st, id := ev.Source()
		entries, err := a.ledger.BySource(ctx, st, id)
		if err != nil {
			return 0, err
		}
		if len(entries) > 0 {
			n++
		}
	}
	return n, nil
}
