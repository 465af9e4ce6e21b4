// Package journal is the double-entry ledger: drafts, atomic commit with
// sequential numbering, reversals and read queries.
package journal

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"cloud.google.com/go/civil"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/cleared-dev/freightbooks/internal/accounts"
	"github.com/cleared-dev/freightbooks/internal/clock"
	"github.com/cleared-dev/freightbooks/internal/fiscal"
	"github.com/cleared-dev/freightbooks/internal/model"
	"github.com/cleared-dev/freightbooks/internal/store"
)

var (
	ErrUnbalancedEntry      = errors.New("journal entry is not balanced")
	ErrInvalidLine          = errors.New("invalid journal line")
	ErrNotDetailAccount     = errors.New("account is not a detail account")
	ErrInactiveAccount      = errors.New("account is inactive")
	ErrNoFiscalYear         = errors.New("no fiscal year contains the entry date")
	ErrPeriodClosed         = errors.New("fiscal year is closed")
	ErrEntryNotFound        = errors.New("journal entry not found")
	ErrDuplicateEntryNumber = errors.New("journal entry number already exists")
	ErrAlreadyReversed      = errors.New("journal entry already reversed")
	ErrNotDraft             = errors.New("journal entry is already committed")
)

const (
	tableEntry    = "je"
	tableYear     = "jeyear"
	tableDate     = "jedate"
	tableSource   = "jesrc"
	tableLine     = "jeline"
	tableSeq      = "jeseq"
	tableReversal = "jerev"
)

// Ledger persists journal entries and applies their lines to account
// balances.
type Ledger struct {
	db       *store.DB
	accounts *accounts.Directory
	years    *fiscal.Registry
	clock    clock.Clock
	log      zerolog.Logger
	tracer   trace.Tracer
	scale    int32
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithClock sets the clock used for default dates and timestamps.
func WithClock(c clock.Clock) Option {
	return func(l *Ledger) { l.clock = c }
}

// WithLogger sets the ledger logger.
func WithLogger(log zerolog.Logger) Option {
	return func(l *Ledger) { l.log = log }
}

// WithAmountScale sets how many decimal places a committed amount may
// carry. Values below zero are ignored.
func WithAmountScale(scale int32) Option {
	return func(l *Ledger) {
		if scale >= 0 {
			l.scale = scale
		}
	}
}

// WithTracer sets the tracer used for commit spans.
func WithTracer(t trace.Tracer) Option {
	return func(l *Ledger) { l.tracer = t }
}

// NewLedger creates a Ledger. The directory and registry must share db.
func NewLedger(db *store.DB, accts *accounts.Directory, years *fiscal.Registry, opts ...Option) *Ledger {
	l := &Ledger{
		db:       db,
		accounts: accts,
		years:    years,
		clock:    clock.Real(),
		log:      zerolog.Nop(),
		tracer:   otel.Tracer("github.com/cleared-dev/freightbooks/internal/journal"),
		scale:    DefaultAmountScale,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// DraftParams describes the header of a new entry.
type DraftParams struct {
	Date        civil.Date // zero means today
	Description string
	Reference   string
	SourceType  model.SourceType // empty means MANUAL
	SourceID    string
	CreatedBy   string
}

// NewDraft returns an empty entry carrying the placeholder number.
func (l *Ledger) NewDraft(p DraftParams) *model.JournalEntry {
	date := p.Date
	if date == (civil.Date{}) {
		date = clock.Today(l.clock)
	}
	source := p.SourceType
	if source == "" {
		source = model.SourceManual
	}
	e := &model.JournalEntry{
		ID:          uuid.NewString(),
		Number:      model.PlaceholderNumber,
		Date:        date,
		Description: p.Description,
		Reference:   p.Reference,
		SourceType:  source,
		SourceID:    p.SourceID,
		CreatedBy:   p.CreatedBy,
	}
	e.Recompute()
	return e
}

// AppendLine adds a line for the account with the given chart number. The
// account must be an active detail account and exactly one of debit and
// credit must be positive.
func (l *Ledger) AppendLine(ctx context.Context, e *model.JournalEntry, accountNumber string, debit, credit decimal.Decimal, description string) error {
	if !e.IsDraft() {
		return fmt.Errorf("%w: %s", ErrNotDraft, e.Number)
	}
	if msg := checkAmounts(debit, credit); msg != "" {
		return fmt.Errorf("%w: %s", ErrInvalidLine, msg)
	}

	var acct model.Account
	err := l.db.View(ctx, func(tx *store.Tx) error {
		var err error
		acct, err = l.postableTx(tx, func(tx *store.Tx) (model.Account, error) {
			return l.accounts.ByNumberTx(tx, accountNumber)
		})
		return err
	})
	if err != nil {
		return err
	}

	e.Lines = append(e.Lines, model.Line{
		AccountID:     acct.ID,
		AccountNumber: acct.Number,
		Debit:         debit,
		Credit:        credit,
		Description:   description,
		Order:         len(e.Lines) + 1,
	})
	e.Recompute()
	return nil
}

// postableTx loads an account and checks it can receive lines.
func (l *Ledger) postableTx(tx *store.Tx, load func(*store.Tx) (model.Account, error)) (model.Account, error) {
	acct, err := load(tx)
	if err != nil {
		return model.Account{}, err
	}
	if !acct.Active {
		return model.Account{}, fmt.Errorf("%w: %s", ErrInactiveAccount, acct.Number)
	}
	detail, err := l.accounts.IsDetailTx(tx, acct.ID)
	if err != nil {
		return model.Account{}, err
	}
	if !detail {
		return model.Account{}, fmt.Errorf("%w: %s", ErrNotDetailAccount, acct.Number)
	}
	return acct, nil
}

// Commit validates the entry, assigns its number if it is a draft, applies
// every line to its account and stores the entry, all in one transaction.
// On success e is updated to the committed entry.
func (l *Ledger) Commit(ctx context.Context, e *model.JournalEntry) (model.JournalEntry, error) {
	committed, err := l.commit(ctx, e, nil)
	if err != nil {
		return model.JournalEntry{}, err
	}
	*e = *committed.Clone()
	return committed, nil
}

// commitGuard runs inside the commit transaction once the number is known.
type commitGuard func(tx *store.Tx, e *model.JournalEntry) error

func (l *Ledger) commit(ctx context.Context, e *model.JournalEntry, guard commitGuard) (model.JournalEntry, error) {
	ctx, span := l.tracer.Start(ctx, "journal.Commit", trace.WithAttributes(
		attribute.String("source_type", string(e.SourceType)),
		attribute.Int("lines", len(e.Lines)),
	))
	defer span.End()

	result, err := l.commitEntry(ctx, e, guard)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return model.JournalEntry{}, err
	}
	span.SetAttributes(attribute.String("entry_number", result.Number))

	l.log.Info().
		Str("number", result.Number).
		Str("source_type", string(result.SourceType)).
		Str("source_id", result.SourceID).
		Str("total", model.FormatAmount(result.TotalDebit)).
		Msg("journal entry committed")
	return result, nil
}

func (l *Ledger) commitEntry(ctx context.Context, e *model.JournalEntry, guard commitGuard) (model.JournalEntry, error) {
	candidate := e.Clone()
	candidate.Recompute()
	if err := validationError(ValidateScale(candidate, l.scale)); err != nil {
		return model.JournalEntry{}, err
	}

	var result model.JournalEntry
	err := l.db.Update(ctx, func(tx *store.Tx) error {
		// Update may rerun this closure; start from a fresh copy each time.
		entry := candidate.Clone()

		fy, ok, err := l.years.ContainingTx(tx, entry.Date)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%w: %s", ErrNoFiscalYear, entry.Date)
		}
		if fy.Closed {
			return fmt.Errorf("%w: %d", ErrPeriodClosed, fy.Year)
		}
		entry.FiscalYearID = fy.ID

		for i := range entry.Lines {
			line := &entry.Lines[i]
			acct, err := l.postableTx(tx, func(tx *store.Tx) (model.Account, error) {
				return l.accounts.GetTx(tx, line.AccountID)
			})
			if err != nil {
				return err
			}
			line.AccountNumber = acct.Number
		}

		if entry.IsDraft() {
			number, err := l.nextNumber(tx, fy)
			if err != nil {
				return err
			}
			entry.Number = number
		} else {
			if strings.Contains(entry.Number, "/") {
				return fmt.Errorf("%w: entry number %q contains '/'", ErrInvalidLine, entry.Number)
			}
			exists, err := tx.Has(store.Key(tableEntry, entry.Number))
			if err != nil {
				return err
			}
			if exists {
				return fmt.Errorf("%w: %s", ErrDuplicateEntryNumber, entry.Number)
			}
		}
		if entry.CreatedAt.IsZero() {
			entry.CreatedAt = l.clock.Now().UTC()
		}

		if guard != nil {
			if err := guard(tx, entry); err != nil {
				return err
			}
		}

		for _, line := range entry.Lines {
			if _, err := l.accounts.ApplyPosting(tx, line.AccountID, line.Debit, line.Credit); err != nil {
				return fmt.Errorf("posting line %d of %s: %w", line.Order, entry.Number, err)
			}
		}
		if err := l.putTx(tx, entry); err != nil {
			return err
		}
		result = *entry
		return nil
	})
	if err != nil {
		return model.JournalEntry{}, err
	}
	return result, nil
}

// validationError folds violations into one error behind the matching
// sentinel.
func validationError(errs []ValidationError) error {
	if len(errs) == 0 {
		return nil
	}
	sentinel := ErrInvalidLine
	joined := make([]error, len(errs))
	for i, ve := range errs {
		joined[i] = ve
		if ve.Invariant == InvariantBalanced {
			sentinel = ErrUnbalancedEntry
		}
	}
	return fmt.Errorf("%w: %w", sentinel, errors.Join(joined...))
}

// putTx writes the entry record and every index row.
func (l *Ledger) putTx(tx *store.Tx, e *model.JournalEntry) error {
	if err := tx.Put(store.Key(tableEntry, e.Number), e); err != nil {
		return err
	}
	if err := tx.Put(store.Key(tableYear, e.FiscalYearID, e.Number), e.Number); err != nil {
		return err
	}
	if err := tx.Put(store.Key(tableDate, e.Date.String(), e.Number), e.Number); err != nil {
		return err
	}
	if err := tx.Put(sourceKey(e.SourceType, e.SourceID, e.Number), e.Number); err != nil {
		return err
	}
	for _, line := range e.Lines {
		pl := PostedLine{
			EntryID:          e.ID,
			EntryNumber:      e.Number,
			Date:             e.Date,
			SourceType:       e.SourceType,
			EntryDescription: e.Description,
			Line:             line,
		}
		if err := tx.Put(lineKey(line.AccountID, e.Date, e.Number, line.Order), pl); err != nil {
			return err
		}
	}
	return nil
}

func sourceKey(st model.SourceType, sourceID, number string) []byte {
	return store.Key(tableSource, string(st), url.PathEscape(sourceID), number)
}

func lineKey(accountID string, date civil.Date, number string, order int) []byte {
	return store.Key(tableLine, accountID, date.String(), number, fmt.Sprintf("%03d", order))
}

// Reverse commits an ADJUSTMENT entry that mirrors the original with debit
// and credit swapped, dated today. An entry can be reversed once.
func (l *Ledger) Reverse(ctx context.Context, number, actor string) (model.JournalEntry, error) {
	orig, err := l.ByNumber(ctx, number)
	if err != nil {
		return model.JournalEntry{}, err
	}

	rev := l.NewDraft(DraftParams{
		Description: "Reversal of " + orig.Number,
		Reference:   orig.Number,
		SourceType:  model.SourceAdjustment,
		SourceID:    orig.ID,
		CreatedBy:   actor,
	})
	for _, line := range orig.Lines {
		desc := line.Description
		if desc != "" && !strings.HasPrefix(desc, "Reversal: ") {
			desc = "Reversal: " + desc
		}
		rev.Lines = append(rev.Lines, model.Line{
			AccountID:     line.AccountID,
			AccountNumber: line.AccountNumber,
			Debit:         line.Credit,
			Credit:        line.Debit,
			Description:   desc,
			Order:         line.Order,
		})
	}
	rev.Recompute()

	committed, err := l.commit(ctx, rev, func(tx *store.Tx, e *model.JournalEntry) error {
		key := store.Key(tableReversal, orig.Number)
		done, err := tx.Has(key)
		if err != nil {
			return err
		}
		if done {
			return fmt.Errorf("%w: %s", ErrAlreadyReversed, orig.Number)
		}
		return tx.Put(key, e.Number)
	})
	if err != nil {
		return model.JournalEntry{}, err
	}
	l.log.Info().Str("original", orig.Number).Str("reversal", committed.Number).Msg("journal entry reversed")
	return committed, nil
}

// ReversalOf returns the number of the entry that reversed number, if any.
func (l *Ledger) ReversalOf(ctx context.Context, number string) (string, bool, error) {
	var rev string
	err := l.db.View(ctx, func(tx *store.Tx) error {
		return tx.Get(store.Key(tableReversal, number), &rev)
	})
	if errors.Is(err, store.ErrNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return rev, true, nil
}
