package posting

import (
	"context"
	"fmt"

	"github.com/cleared-dev/freightbooks/internal/logger"
	"github.com/cleared-dev/freightbooks/internal/model"
)

// Gateway is what business operations call after their own write commits.
// Its methods never fail: accounting problems are logged and recorded but
// never reach the invoice, payment or shipment that raised the event.
type Gateway interface {
	InvoiceCreated(ctx context.Context, ev model.InvoiceCreated)
	PaymentReceived(ctx context.Context, ev model.PaymentReceived)
	ShipmentCompleted(ctx context.Context, ev model.ShipmentCompleted)
}

var _ Gateway = (*Engine)(nil)

// InvoiceCreated posts the invoice entry, swallowing any failure.
func (e *Engine) InvoiceCreated(ctx context.Context, ev model.InvoiceCreated) {
	e.guard(ctx, EventInvoiceCreated, model.SourceInvoice, ev.Invoice.ID, func() error {
		_, err := e.PostInvoice(ctx, ev)
		return err
	})
}

// PaymentReceived posts the payment entry, swallowing any failure.
func (e *Engine) PaymentReceived(ctx context.Context, ev model.PaymentReceived) {
	e.guard(ctx, EventPaymentReceived, model.SourcePayment, ev.Payment.ID, func() error {
		_, err := e.PostPayment(ctx, ev)
		return err
	})
}

// ShipmentCompleted posts the LTA entry, swallowing any failure.
func (e *Engine) ShipmentCompleted(ctx context.Context, ev model.ShipmentCompleted) {
	e.guard(ctx, EventShipmentCompleted, model.SourceLTA, ev.LTA.ID, func() error {
		_, err := e.PostShipment(ctx, ev)
		return err
	})
}

// guard runs fn and logs instead of returning its error. Panics are
// recovered the same way. The caller's context logger wins over the
// engine's own.
func (e *Engine) guard(ctx context.Context, event string, st model.SourceType, sourceID string, fn func() error) {
	var err error
	func() {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("panic while posting: %v", r)
			}
		}()
		err = fn()
	}()
	if err == nil {
		return
	}

	log := logger.FromContextOr(ctx, e.log)
	log.Warn().Err(err).
		Str("event", event).
		Str("source_type", string(st)).
		Str("source_id", sourceID).
		Msg("accounting posting skipped")
}
