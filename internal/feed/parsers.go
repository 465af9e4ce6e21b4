package feed

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/cleared-dev/freightbooks/internal/model"
	"github.com/cleared-dev/freightbooks/internal/posting"
)

// InvoiceParser reads id,number,client,total,net,tax rows. A blank net
// means total minus tax.
type InvoiceParser struct{}

// PaymentParser reads id,client,amount,method,reference rows.
type PaymentParser struct{}

// ShipmentParser reads id,number,client,cost rows.
type ShipmentParser struct{}

const (
	invoiceNumFields  = 6
	paymentNumFields  = 5
	shipmentNumFields = 4
)

// Kind returns the file name prefix.
func (p *InvoiceParser) Kind() string { return "invoices" }

// Kind returns the file name prefix.
func (p *PaymentParser) Kind() string { return "payments" }

// Kind returns the file name prefix.
func (p *ShipmentParser) Kind() string { return "shipments" }

// Parse reads an invoice feed.
func (p *InvoiceParser) Parse(r io.Reader, actor string) ([]Event, error) {
	return parseRows(r, invoiceNumFields, func(rec []string) (Event, error) {
		inv := model.Invoice{ID: rec[0], Number: rec[1], ClientName: rec[2]}
		var err error
		if inv.TotalAmount, err = amount("total", rec[3]); err != nil {
			return nil, err
		}
		if inv.TaxAmount, err = amount("tax", rec[5]); err != nil {
			return nil, err
		}
		if strings.TrimSpace(rec[4]) == "" {
			inv.AmountExcludingTax = inv.TotalAmount.Sub(inv.TaxAmount)
		} else if inv.AmountExcludingTax, err = amount("net", rec[4]); err != nil {
			return nil, err
		}
		return invoiceEvent{model.InvoiceCreated{Invoice: inv, ActorID: actor}}, nil
	})
}

// Parse reads a payment feed.
func (p *PaymentParser) Parse(r io.Reader, actor string) ([]Event, error) {
	return parseRows(r, paymentNumFields, func(rec []string) (Event, error) {
		pay := model.Payment{
			ID:         rec[0],
			ClientName: rec[1],
			Method:     model.PaymentMethod(strings.ToUpper(strings.TrimSpace(rec[3]))),
			Reference:  rec[4],
		}
		var err error
		if pay.Amount, err = amount("amount", rec[2]); err != nil {
			return nil, err
		}
		return paymentEvent{model.PaymentReceived{Payment: pay, ActorID: actor}}, nil
	})
}

// Parse reads a shipment feed.
func (p *ShipmentParser) Parse(r io.Reader, actor string) ([]Event, error) {
	return parseRows(r, shipmentNumFields, func(rec []string) (Event, error) {
		lta := model.Shipment{ID: rec[0], Number: rec[1], ClientName: rec[2]}
		var err error
		if lta.CalculatedCost, err = amount("cost", rec[3]); err != nil {
			return nil, err
		}
		return shipmentEvent{model.ShipmentCompleted{LTA: lta, ActorID: actor}}, nil
	})
}

// parseRows skips the header and converts each record.
func parseRows(r io.Reader, fields int, row func([]string) (Event, error)) ([]Event, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = fields
	cr.TrimLeadingSpace = true

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading feed CSV: %w", err)
	}
	if len(records) <= 1 {
		return nil, nil
	}

	var events []Event
	for i, rec := range records[1:] {
		ev, err := row(rec)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+2, err)
		}
		events = append(events, ev)
	}
	return events, nil
}

func amount(field, s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("parsing %s %q: %w", field, s, err)
	}
	return d, nil
}

type invoiceEvent struct{ model.InvoiceCreated }

func (e invoiceEvent) Source() (model.SourceType, string) {
	return model.SourceInvoice, e.Invoice.ID
}

func (e invoiceEvent) Raise(ctx context.Context, g posting.Gateway) {
	g.InvoiceCreated(ctx, e.InvoiceCreated)
}

type paymentEvent struct{ model.PaymentReceived }

func (e paymentEvent) Source() (model.SourceType, string) {
	return model.SourcePayment, e.Payment.ID
}

func (e paymentEvent) Raise(ctx context.Context, g posting.Gateway) {
	g.PaymentReceived(ctx, e.PaymentReceived)
}

type shipmentEvent struct{ model.ShipmentCompleted }

func (e shipmentEvent) Source() (model.SourceType, string) {
	return model.SourceLTA, e.LTA.ID
}

func (e shipmentEvent) Raise(ctx context.Context, g posting.Gateway) {
	g.ShipmentCompleted(ctx, e.ShipmentCompleted)
}
