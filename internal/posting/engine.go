// Package posting turns business events into journal entries.
package posting

import (
	"context"
	"errors"
	"fmt"

	"cloud.google.com/go/civil"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/cleared-dev/freightbooks/internal/accounts"
	"github.com/cleared-dev/freightbooks/internal/clock"
	"github.com/cleared-dev/freightbooks/internal/fiscal"
	"github.com/cleared-dev/freightbooks/internal/journal"
	"github.com/cleared-dev/freightbooks/internal/model"
	"github.com/cleared-dev/freightbooks/internal/postlog"
)

var (
	ErrNoCurrentFiscalYear = errors.New("no current fiscal year")
	ErrInvalidEvent        = errors.New("invalid business event")
)

// Event names used in logs, metrics and the posting log.
const (
	EventInvoiceCreated    = "invoice_created"
	EventPaymentReceived   = "payment_received"
	EventShipmentCompleted = "shipment_completed"
)

// Recorder receives every posting attempt.
type Recorder interface {
	Record(a postlog.Attempt) error
}

// Engine maps business events to balanced journal entries.
type Engine struct {
	accounts   *accounts.Directory
	years      *fiscal.Registry
	ledger     *journal.Ledger
	rules      Rules
	metrics    *Metrics
	recorder   Recorder
	clock      clock.Clock
	log        zerolog.Logger
	tracer     trace.Tracer
	autoCreate bool
}

// Option configures an Engine.
type Option func(*Engine)

// WithRules overrides the default account conventions.
func WithRules(r Rules) Option {
	return func(e *Engine) { e.rules = r }
}

// WithMetrics sets the metrics the engine updates.
func WithMetrics(m *Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// WithRecorder sets where posting attempts are recorded.
func WithRecorder(r Recorder) Option {
	return func(e *Engine) { e.recorder = r }
}

// WithClock sets the clock that dates generated entries.
func WithClock(c clock.Clock) Option {
	return func(e *Engine) { e.clock = c }
}

// WithLogger sets the engine logger.
func WithLogger(l zerolog.Logger) Option {
	return func(e *Engine) { e.log = l }
}

// WithTracer sets the tracer used for handler spans.
func WithTracer(t trace.Tracer) Option {
	return func(e *Engine) { e.tracer = t }
}

// WithAutoCreateFiscalYear makes the engine create the current calendar
// year when no fiscal year contains today.
func WithAutoCreateFiscalYear(on bool) Option {
	return func(e *Engine) { e.autoCreate = on }
}

// NewEngine creates an Engine over the three ledger components.
func NewEngine(accts *accounts.Directory, years *fiscal.Registry, ledger *journal.Ledger, opts ...Option) *Engine {
	e := &Engine{
		accounts: accts,
		years:    years,
		ledger:   ledger,
		rules:    DefaultRules(),
		metrics:  NewMetrics(nil),
		clock:    clock.Real(),
		log:      zerolog.Nop(),
		tracer:   otel.Tracer("github.com/cleared-dev/freightbooks/internal/posting"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Rules returns the account conventions in use.
func (e *Engine) Rules() Rules {
	return e.rules
}

// CheckRules verifies every account the rules reference exists and can be
// posted to.
func (e *Engine) CheckRules(ctx context.Context) error {
	idx, err := e.accounts.Snapshot(ctx)
	if err != nil {
		return err
	}
	var errs []error
	for _, number := range e.rules.Numbers() {
		acct, ok := idx.ByNumber(number)
		switch {
		case !ok:
			errs = append(errs, fmt.Errorf("%w: number %s", accounts.ErrAccountNotFound, number))
		case !acct.Active:
			errs = append(errs, fmt.Errorf("%w: %s", journal.ErrInactiveAccount, number))
		case !idx.IsDetail(acct.ID):
			errs = append(errs, fmt.Errorf("%w: %s", journal.ErrNotDetailAccount, number))
		}
	}
	return errors.Join(errs...)
}

// line is one planned posting of a rule.
type line struct {
	account     string
	debit       decimal.Decimal
	credit      decimal.Decimal
	description string
}

// plan is the entry a rule produces for one event.
type plan struct {
	event      string
	sourceType model.SourceType
	sourceID   string
	reference  string
	desc       string
	actor      string
	lines      []line
}

// PostInvoice debits receivables for the invoice total and credits sales
// for the amount excluding tax and VAT for the tax, if any.
func (e *Engine) PostInvoice(ctx context.Context, ev model.InvoiceCreated) (model.JournalEntry, error) {
	inv := ev.Invoice
	p := plan{
		event:      EventInvoiceCreated,
		sourceType: model.SourceInvoice,
		sourceID:   inv.ID,
		reference:  inv.Number,
		desc:       "Invoice " + inv.Number,
		actor:      ev.ActorID,
		lines: []line{
			{account: e.rules.Receivables, debit: inv.TotalAmount, description: clientLabel(inv.ClientName)},
			{account: e.rules.Sales, credit: inv.AmountExcludingTax, description: "Sales excl. tax"},
		},
	}
	if inv.TaxAmount.IsPositive() {
		p.lines = append(p.lines, line{account: e.rules.VATCollected, credit: inv.TaxAmount, description: "VAT collected"})
	}
	return e.post(ctx, p, ev)
}

// PostPayment debits the treasury account chosen by payment method and
// credits receivables.
func (e *Engine) PostPayment(ctx context.Context, ev model.PaymentReceived) (model.JournalEntry, error) {
	pay := ev.Payment
	desc := "Payment " + pay.ID
	if pay.ClientName != "" {
		desc = "Payment from " + pay.ClientName
	}
	method := string(pay.Method)
	if method == "" {
		method = "unspecified"
	}
	p := plan{
		event:      EventPaymentReceived,
		sourceType: model.SourcePayment,
		sourceID:   pay.ID,
		reference:  pay.Reference,
		desc:       desc,
		actor:      ev.ActorID,
		lines: []line{
			{account: e.rules.TreasuryAccount(pay.Method), debit: pay.Amount, description: "Payment by " + method},
			{account: e.rules.Receivables, credit: pay.Amount, description: clientLabel(pay.ClientName)},
		},
	}
	return e.post(ctx, p, ev)
}

// PostShipment debits receivables and credits sales for the calculated
// cost of a completed LTA.
func (e *Engine) PostShipment(ctx context.Context, ev model.ShipmentCompleted) (model.JournalEntry, error) {
	lta := ev.LTA
	p := plan{
		event:      EventShipmentCompleted,
		sourceType: model.SourceLTA,
		sourceID:   lta.ID,
		reference:  lta.Number,
		desc:       "LTA " + lta.Number,
		actor:      ev.ActorID,
		lines: []line{
			{account: e.rules.Receivables, debit: lta.CalculatedCost, description: clientLabel(lta.ClientName)},
			{account: e.rules.Sales, credit: lta.CalculatedCost, description: "Freight LTA " + lta.Number},
		},
	}
	return e.post(ctx, p, ev)
}

func clientLabel(name string) string {
	if name == "" {
		return "Client"
	}
	return "Client " + name
}

// post runs one rule: validate, find the period, build and commit. Every
// attempt is counted and recorded whatever its outcome.
func (e *Engine) post(ctx context.Context, p plan, ev any) (model.JournalEntry, error) {
	ctx, span := e.tracer.Start(ctx, "posting."+p.event, trace.WithAttributes(
		attribute.String("source_type", string(p.sourceType)),
		attribute.String("source_id", p.sourceID),
	))
	defer span.End()
	start := e.clock.Now()

	entry, outcome, err := e.run(ctx, p, ev)

	e.metrics.Postings.WithLabelValues(p.event, string(outcome)).Inc()
	e.metrics.Duration.WithLabelValues(p.event).Observe(e.clock.Now().Sub(start).Seconds())

	attempt := postlog.Attempt{
		Timestamp:   e.clock.Now().UTC(),
		Event:       p.event,
		SourceType:  p.sourceType,
		SourceID:    p.sourceID,
		Outcome:     outcome,
		EntryNumber: entry.Number,
		Detail:      p.desc,
	}
	if err != nil {
		attempt.Detail = err.Error()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetAttributes(attribute.String("entry_number", entry.Number))
	}
	if e.recorder != nil {
		if rerr := e.recorder.Record(attempt); rerr != nil {
			e.log.Warn().Err(rerr).Str("event", p.event).Msg("cannot record posting attempt")
		}
	}
	return entry, err
}

func (e *Engine) run(ctx context.Context, p plan, ev any) (model.JournalEntry, postlog.Outcome, error) {
	if err := validateEvent(ev); err != nil {
		return model.JournalEntry{}, postlog.OutcomeInvalid, err
	}

	date, err := e.postingDate(ctx)
	if err != nil {
		outcome := postlog.OutcomeFailed
		if errors.Is(err, ErrNoCurrentFiscalYear) {
			outcome = postlog.OutcomeSkipped
		}
		return model.JournalEntry{}, outcome, err
	}

	draft := e.ledger.NewDraft(journal.DraftParams{
		Date:        date,
		Description: p.desc,
		Reference:   p.reference,
		SourceType:  p.sourceType,
		SourceID:    p.sourceID,
		CreatedBy:   p.actor,
	})
	for _, l := range p.lines {
		if err := e.ledger.AppendLine(ctx, draft, l.account, l.debit, l.credit, l.description); err != nil {
			return model.JournalEntry{}, postlog.OutcomeFailed, fmt.Errorf("account %s: %w", l.account, err)
		}
	}

	entry, err := e.ledger.Commit(ctx, draft)
	if err != nil {
		return model.JournalEntry{}, postlog.OutcomeFailed, err
	}
	return entry, postlog.OutcomePosted, nil
}

// postingDate returns today if it falls in a fiscal year, creating the
// calendar year first when auto-creation is on.
func (e *Engine) postingDate(ctx context.Context) (civil.Date, error) {
	today := clock.Today(e.clock)
	_, ok, err := e.years.Containing(ctx, today)
	if err != nil {
		return civil.Date{}, err
	}
	if ok {
		return today, nil
	}
	if !e.autoCreate {
		return civil.Date{}, fmt.Errorf("%w: %s", ErrNoCurrentFiscalYear, today)
	}
	if _, err := e.years.EnsureCurrentYearExists(ctx); err != nil {
		return civil.Date{}, err
	}
	return today, nil
}
