package journal

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"cloud.google.com/go/civil"

	"github.com/cleared-dev/freightbooks/internal/model"
	"github.com/cleared-dev/freightbooks/internal/store"
)

// PostedLine is a committed line together with its entry header.
type PostedLine struct {
	EntryID          string           `json:"entry_id"`
	EntryNumber      string           `json:"entry_number"`
	Date             civil.Date       `json:"date"`
	SourceType       model.SourceType `json:"source_type"`
	EntryDescription string           `json:"entry_description"`
	Line             model.Line       `json:"line"`
}

// ListOptions filters and pages List.
type ListOptions struct {
	FiscalYearID string // empty means all years
	Offset       int
	Limit        int // zero means no limit
}

// Page is one slice of a listing plus the size of the full result.
type Page struct {
	Entries []model.JournalEntry
	Total   int
}

// ByNumber returns a committed entry.
func (l *Ledger) ByNumber(ctx context.Context, number string) (model.JournalEntry, error) {
	var e model.JournalEntry
	err := l.db.View(ctx, func(tx *store.Tx) error {
		var err error
		e, err = getTx(tx, number)
		return err
	})
	return e, err
}

func getTx(tx *store.Tx, number string) (model.JournalEntry, error) {
	var e model.JournalEntry
	err := tx.Get(store.Key(tableEntry, number), &e)
	if errors.Is(err, store.ErrNotFound) {
		return model.JournalEntry{}, fmt.Errorf("%w: %s", ErrEntryNotFound, number)
	}
	return e, err
}

// indexed loads the entries referenced by every index row under prefix.
func (l *Ledger) indexed(ctx context.Context, prefix []byte) ([]model.JournalEntry, error) {
	var out []model.JournalEntry
	err := l.db.View(ctx, func(tx *store.Tx) error {
		return tx.Keys(prefix, func(key []byte) error {
			e, err := getTx(tx, store.LastPart(key))
			if err != nil {
				return err
			}
			out = append(out, e)
			return nil
		})
	})
	return out, err
}

// ByFiscalYear returns the entries of a fiscal year, newest first.
func (l *Ledger) ByFiscalYear(ctx context.Context, fiscalYearID string) ([]model.JournalEntry, error) {
	entries, err := l.indexed(ctx, store.Prefix(tableYear, fiscalYearID))
	if err != nil {
		return nil, err
	}
	sortNewestFirst(entries)
	return entries, nil
}

// ByDateRange returns entries dated within [from, to], oldest first.
func (l *Ledger) ByDateRange(ctx context.Context, from, to civil.Date) ([]model.JournalEntry, error) {
	lo, hi := from.String(), to.String()
	var out []model.JournalEntry
	err := l.db.View(ctx, func(tx *store.Tx) error {
		return tx.Keys(store.Prefix(tableDate), func(key []byte) error {
			// jedate/<date>/<number>
			parts := strings.Split(string(key), "/")
			date := parts[1]
			if date < lo {
				return nil
			}
			if date > hi {
				return store.ErrStop
			}
			e, err := getTx(tx, parts[2])
			if err != nil {
				return err
			}
			out = append(out, e)
			return nil
		})
	})
	return out, err
}

// BySource returns the entries recorded for one business object.
func (l *Ledger) BySource(ctx context.Context, st model.SourceType, sourceID string) ([]model.JournalEntry, error) {
	prefix := sourceKey(st, sourceID, "")
	return l.indexed(ctx, prefix)
}

// All returns every committed entry, oldest first.
func (l *Ledger) All(ctx context.Context) ([]model.JournalEntry, error) {
	return l.indexed(ctx, store.Prefix(tableDate))
}

func (l *Ledger) filter(ctx context.Context, keep func(*model.JournalEntry) bool) ([]model.JournalEntry, error) {
	all, err := l.All(ctx)
	if err != nil {
		return nil, err
	}
	var out []model.JournalEntry
	for i := range all {
		if keep(&all[i]) {
			out = append(out, all[i])
		}
	}
	return out, nil
}

// Unbalanced returns stored entries whose lines do not balance. It should
// always be empty.
func (l *Ledger) Unbalanced(ctx context.Context) ([]model.JournalEntry, error) {
	return l.filter(ctx, func(e *model.JournalEntry) bool {
		c := e.Clone()
		c.Recompute()
		return !c.Balanced || !e.Balanced
	})
}

// Automatic returns entries produced from business events.
func (l *Ledger) Automatic(ctx context.Context) ([]model.JournalEntry, error) {
	return l.filter(ctx, func(e *model.JournalEntry) bool { return e.IsAutomatic() })
}

// Manual returns hand-keyed entries.
func (l *Ledger) Manual(ctx context.Context) ([]model.JournalEntry, error) {
	return l.filter(ctx, func(e *model.JournalEntry) bool { return !e.IsAutomatic() })
}

// List returns a page of entries, newest first.
func (l *Ledger) List(ctx context.Context, opts ListOptions) (Page, error) {
	var entries []model.JournalEntry
	var err error
	if opts.FiscalYearID != "" {
		entries, err = l.ByFiscalYear(ctx, opts.FiscalYearID)
	} else {
		entries, err = l.All(ctx)
		sortNewestFirst(entries)
	}
	if err != nil {
		return Page{}, err
	}

	page := Page{Total: len(entries)}
	start := min(max(opts.Offset, 0), len(entries))
	end := len(entries)
	if opts.Limit > 0 {
		end = min(start+opts.Limit, end)
	}
	page.Entries = entries[start:end]
	return page, nil
}

// AccountLines returns the posted lines of an account dated within
// [from, to], oldest first. A zero bound is open.
func (l *Ledger) AccountLines(ctx context.Context, accountID string, from, to civil.Date) ([]PostedLine, error) {
	var lo, hi string
	if from != (civil.Date{}) {
		lo = from.String()
	}
	if to != (civil.Date{}) {
		hi = to.String()
	}

	var out []PostedLine
	err := l.db.View(ctx, func(tx *store.Tx) error {
		return tx.Scan(store.Prefix(tableLine, accountID), func(key []byte, decode store.Decoder) error {
			// jeline/<account>/<date>/<number>/<order>
			date := strings.Split(string(key), "/")[2]
			if lo != "" && date < lo {
				return nil
			}
			if hi != "" && date > hi {
				return store.ErrStop
			}
			var pl PostedLine
			if err := decode(&pl); err != nil {
				return err
			}
			out = append(out, pl)
			return nil
		})
	})
	return out, err
}

func sortNewestFirst(entries []model.JournalEntry) {
	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if a.Date != b.Date {
			return a.Date.After(b.Date)
		}
		return a.Number > b.Number
	})
}
