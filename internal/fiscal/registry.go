// Package fiscal keeps the registry of accounting periods.
package fiscal

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"cloud.google.com/go/civil"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/cleared-dev/freightbooks/internal/clock"
	"github.com/cleared-dev/freightbooks/internal/model"
	"github.com/cleared-dev/freightbooks/internal/store"
)

var (
	ErrDuplicateYear     = errors.New("fiscal year already exists")
	ErrInvalidRange      = errors.New("fiscal year start is after its end")
	ErrOverlappingPeriod = errors.New("fiscal year overlaps an existing year")
	ErrAlreadyClosed     = errors.New("fiscal year is already closed")
	ErrPeriodNotEnded    = errors.New("fiscal year has not ended")
	ErrNotClosed         = errors.New("fiscal year is not closed")
	ErrNotFound          = errors.New("fiscal year not found")
)

const (
	tableYear    = "fy"
	tableNumber  = "fynum"
	tableVersion = "fyver"
)

// Registry stores fiscal years. Intervals never overlap, so at most one
// year contains any given date.
type Registry struct {
	db    *store.DB
	clock clock.Clock
	log   zerolog.Logger
}

// Option configures a Registry.
type Option func(*Registry)

// WithClock sets the clock that defines "today".
func WithClock(c clock.Clock) Option {
	return func(r *Registry) { r.clock = c }
}

// WithLogger sets the registry logger.
func WithLogger(l zerolog.Logger) Option {
	return func(r *Registry) { r.log = l }
}

// NewRegistry creates a Registry over db.
func NewRegistry(db *store.DB, opts ...Option) *Registry {
	r := &Registry{db: db, clock: clock.Real(), log: zerolog.Nop()}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Today returns the registry's notion of the current date.
func (r *Registry) Today() civil.Date {
	return clock.Today(r.clock)
}

// Create registers a fiscal year covering [start, end].
func (r *Registry) Create(ctx context.Context, year int, start, end civil.Date) (model.FiscalYear, error) {
	var fy model.FiscalYear
	err := r.db.Update(ctx, func(tx *store.Tx) error {
		var err error
		fy, err = r.createTx(tx, year, start, end)
		return err
	})
	if err != nil {
		return model.FiscalYear{}, err
	}
	r.log.Info().Int("year", fy.Year).Str("start", fy.Start.String()).Str("end", fy.End.String()).Msg("fiscal year created")
	return fy, nil
}

func (r *Registry) createTx(tx *store.Tx, year int, start, end civil.Date) (model.FiscalYear, error) {
	// Every creation reads and bumps one shared key, so two transactions
	// that each passed the overlap check cannot both commit.
	var version uint64
	if err := tx.Get(store.Key(tableVersion), &version); err != nil && !errors.Is(err, store.ErrNotFound) {
		return model.FiscalYear{}, err
	}

	exists, err := tx.Has(store.Key(tableNumber, strconv.Itoa(year)))
	if err != nil {
		return model.FiscalYear{}, err
	}
	if exists {
		return model.FiscalYear{}, fmt.Errorf("%w: %d", ErrDuplicateYear, year)
	}
	if !start.IsValid() || !end.IsValid() {
		return model.FiscalYear{}, fmt.Errorf("%w: invalid date", ErrInvalidRange)
	}
	if start.After(end) {
		return model.FiscalYear{}, fmt.Errorf("%w: %s > %s", ErrInvalidRange, start, end)
	}

	years, err := r.listTx(tx)
	if err != nil {
		return model.FiscalYear{}, err
	}
	for _, other := range years {
		if other.Overlaps(start, end) {
			return model.FiscalYear{}, fmt.Errorf("%w: [%s, %s] intersects %d [%s, %s]",
				ErrOverlappingPeriod, start, end, other.Year, other.Start, other.End)
		}
	}

	fy := model.FiscalYear{
		ID:        uuid.NewString(),
		Year:      year,
		Start:     start,
		End:       end,
		CreatedAt: r.clock.Now().UTC(),
	}
	if err := tx.Put(store.Key(tableYear, fy.ID), fy); err != nil {
		return model.FiscalYear{}, err
	}
	if err := tx.Put(store.Key(tableNumber, strconv.Itoa(year)), fy.ID); err != nil {
		return model.FiscalYear{}, err
	}
	if err := tx.Put(store.Key(tableVersion), version+1); err != nil {
		return model.FiscalYear{}, err
	}
	return fy, nil
}

// Current returns the fiscal year containing today, if any.
func (r *Registry) Current(ctx context.Context) (model.FiscalYear, bool, error) {
	return r.Containing(ctx, r.Today())
}

// Containing returns the fiscal year whose interval contains d, if any.
func (r *Registry) Containing(ctx context.Context, d civil.Date) (model.FiscalYear, bool, error) {
	var (
		fy    model.FiscalYear
		found bool
	)
	err := r.db.View(ctx, func(tx *store.Tx) error {
		var err error
		fy, found, err = r.ContainingTx(tx, d)
		return err
	})
	return fy, found, err
}

// ContainingTx is Containing inside a transaction.
func (r *Registry) ContainingTx(tx *store.Tx, d civil.Date) (model.FiscalYear, bool, error) {
	years, err := r.listTx(tx)
	if err != nil {
		return model.FiscalYear{}, false, err
	}
	for _, fy := range years {
		if fy.Contains(d) {
			return fy, true, nil
		}
	}
	return model.FiscalYear{}, false, nil
}

// EnsureCurrentYearExists creates a calendar fiscal year (Jan 1 - Dec 31)
// for today's year unless some year already contains today.
func (r *Registry) EnsureCurrentYearExists(ctx context.Context) (model.FiscalYear, error) {
	today := r.Today()
	var (
		fy      model.FiscalYear
		created bool
	)
	err := r.db.Update(ctx, func(tx *store.Tx) error {
		var (
			found bool
			err   error
		)
		fy, found, err = r.ContainingTx(tx, today)
		if err != nil || found {
			created = false
			return err
		}
		start := civil.Date{Year: today.Year, Month: time.January, Day: 1}
		end := civil.Date{Year: today.Year, Month: time.December, Day: 31}
		fy, err = r.createTx(tx, today.Year, start, end)
		created = err == nil
		return err
	})
	if err != nil {
		return model.FiscalYear{}, fmt.Errorf("ensuring current fiscal year: %w", err)
	}
	if created {
		r.log.Info().Int("year", fy.Year).Msg("current fiscal year created")
	}
	return fy, nil
}

// Close marks a fiscal year closed. Only years whose end date has passed
// (or is today) can be closed.
func (r *Registry) Close(ctx context.Context, id string) (model.FiscalYear, error) {
	today := r.Today()
	return r.mutate(ctx, id, func(fy *model.FiscalYear) error {
		if fy.Closed {
			return fmt.Errorf("%w: %d", ErrAlreadyClosed, fy.Year)
		}
		if fy.End.After(today) {
			return fmt.Errorf("%w: %d ends %s", ErrPeriodNotEnded, fy.Year, fy.End)
		}
		fy.Closed = true
		return nil
	})
}

// Reopen reverses Close.
func (r *Registry) Reopen(ctx context.Context, id string) (model.FiscalYear, error) {
	return r.mutate(ctx, id, func(fy *model.FiscalYear) error {
		if !fy.Closed {
			return fmt.Errorf("%w: %d", ErrNotClosed, fy.Year)
		}
		fy.Closed = false
		return nil
	})
}

func (r *Registry) mutate(ctx context.Context, id string, fn func(fy *model.FiscalYear) error) (model.FiscalYear, error) {
	var fy model.FiscalYear
	err := r.db.Update(ctx, func(tx *store.Tx) error {
		var err error
		fy, err = r.GetTx(tx, id)
		if err != nil {
			return err
		}
		if err := fn(&fy); err != nil {
			return err
		}
		return tx.Put(store.Key(tableYear, fy.ID), fy)
	})
	if err != nil {
		return model.FiscalYear{}, err
	}
	r.log.Info().Int("year", fy.Year).Bool("closed", fy.Closed).Msg("fiscal year updated")
	return fy, nil
}

// ContainsOpenPeriod reports whether some open fiscal year contains d.
func (r *Registry) ContainsOpenPeriod(ctx context.Context, d civil.Date) (bool, error) {
	fy, found, err := r.Containing(ctx, d)
	if err != nil {
		return false, err
	}
	return found && !fy.Closed, nil
}

// Get returns a fiscal year by ID.
func (r *Registry) Get(ctx context.Context, id string) (model.FiscalYear, error) {
	var fy model.FiscalYear
	err := r.db.View(ctx, func(tx *store.Tx) error {
		var err error
		fy, err = r.GetTx(tx, id)
		return err
	})
	return fy, err
}

// GetTx is Get inside a transaction.
func (r *Registry) GetTx(tx *store.Tx, id string) (model.FiscalYear, error) {
	var fy model.FiscalYear
	err := tx.Get(store.Key(tableYear, id), &fy)
	if errors.Is(err, store.ErrNotFound) {
		return model.FiscalYear{}, fmt.Errorf("%w: id %s", ErrNotFound, id)
	}
	return fy, err
}

// ByYear returns the fiscal year with the given year number.
func (r *Registry) ByYear(ctx context.Context, year int) (model.FiscalYear, error) {
	var fy model.FiscalYear
	err := r.db.View(ctx, func(tx *store.Tx) error {
		var id string
		err := tx.Get(store.Key(tableNumber, strconv.Itoa(year)), &id)
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("%w: %d", ErrNotFound, year)
		}
		if err != nil {
			return err
		}
		fy, err = r.GetTx(tx, id)
		return err
	})
	return fy, err
}

// List returns all fiscal years ordered by start date.
func (r *Registry) List(ctx context.Context) ([]model.FiscalYear, error) {
	var years []model.FiscalYear
	err := r.db.View(ctx, func(tx *store.Tx) error {
		var err error
		years, err = r.listTx(tx)
		return err
	})
	return years, err
}

func (r *Registry) listTx(tx *store.Tx) ([]model.FiscalYear, error) {
	var years []model.FiscalYear
	err := tx.Scan(store.Prefix(tableYear), func(_ []byte, decode store.Decoder) error {
		var fy model.FiscalYear
		if err := decode(&fy); err != nil {
			return err
		}
		years = append(years, fy)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("listing fiscal years: %w", err)
	}
	sort.Slice(years, func(i, j int) bool { return years[i].Start.Before(years[j].Start) })
	return years, nil
}
