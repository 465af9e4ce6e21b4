package journal

import (
	"context"
	"errors"
	"strings"

	"github.com/cleared-dev/freightbooks/internal/id"
	"github.com/cleared-dev/freightbooks/internal/model"
	"github.com/cleared-dev/freightbooks/internal/store"
)

// nextNumber reserves the next entry number of fy. The counter key lives
// in the commit transaction, so two concurrent commits in one year conflict
// and one of them is retried with the advanced counter.
func (l *Ledger) nextNumber(tx *store.Tx, fy model.FiscalYear) (string, error) {
	seq, err := l.peekSequence(tx, fy)
	if err != nil {
		return "", err
	}
	if err := tx.Put(store.Key(tableSeq, fy.ID), seq+1); err != nil {
		return "", err
	}
	return id.FormatEntryNumber(fy.Year, seq), nil
}

// peekSequence returns the next free sequence of fy without reserving it.
func (l *Ledger) peekSequence(tx *store.Tx, fy model.FiscalYear) (int, error) {
	var next int
	err := tx.Get(store.Key(tableSeq, fy.ID), &next)
	if errors.Is(err, store.ErrNotFound) {
		next, err = l.seedSequence(tx, fy)
	}
	if err != nil {
		return 0, err
	}

	// Skip numbers already taken by entries committed with an explicit number.
	for {
		taken, err := tx.Has(store.Key(tableEntry, id.FormatEntryNumber(fy.Year, next)))
		if err != nil {
			return 0, err
		}
		if !taken {
			return next, nil
		}
		next++
	}
}

// seedSequence derives the counter from the lexicographically last number
// stored for fy. A number from another year or an unparseable one restarts
// the sequence at 1.
func (l *Ledger) seedSequence(tx *store.Tx, fy model.FiscalYear) (int, error) {
	var last string
	err := tx.ScanReverse(store.Prefix(tableYear, fy.ID), func(key []byte, _ store.Decoder) error {
		last = store.LastPart(key)
		return store.ErrStop
	})
	if err != nil {
		return 0, err
	}
	if last == "" {
		return 1, nil
	}
	if !strings.HasPrefix(last, id.YearPrefix(fy.Year)) {
		l.log.Warn().Str("last_number", last).Int("year", fy.Year).
			Msg("last entry number is not numbered in this year, restarting sequence at 1")
		return 1, nil
	}
	seq, err := id.Sequence(last)
	if err != nil {
		l.log.Warn().Err(err).Str("last_number", last).Int("year", fy.Year).
			Msg("cannot parse last entry number, restarting sequence at 1")
		return 1, nil
	}
	return seq + 1, nil
}

// NextNumber previews the number the next draft committed in fy would get.
// It reserves nothing.
func (l *Ledger) NextNumber(ctx context.Context, fy model.FiscalYear) (string, error) {
	var seq int
	err := l.db.View(ctx, func(tx *store.Tx) error {
		var err error
		seq, err = l.peekSequence(tx, fy)
		return err
	})
	if err != nil {
		return "", err
	}
	return id.FormatEntryNumber(fy.Year, seq), nil
}
