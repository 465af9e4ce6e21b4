package journal

import (
	"context"
	"testing"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cleared-dev/freightbooks/internal/model"
)

func (f *fixture) commitOn(t *testing.T, d civil.Date, st model.SourceType, sourceID, debitAcct, creditAcct, amount string) model.JournalEntry {
	t.Helper()
	ctx := context.Background()
	e := f.ledger.NewDraft(DraftParams{Date: d, Description: string(st) + " " + sourceID, SourceType: st, SourceID: sourceID})
	require.NoError(t, f.ledger.AppendLine(ctx, e, debitAcct, dec(amount), decimal.Zero, ""))
	require.NoError(t, f.ledger.AppendLine(ctx, e, creditAcct, decimal.Zero, dec(amount), ""))
	got, err := f.ledger.Commit(ctx, e)
	require.NoError(t, err)
	return got
}

func numbers(entries []model.JournalEntry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.Number
	}
	return out
}

func TestQueries(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	e1 := f.commitOn(t, date(2024, 1, 10), model.SourceInvoice, "inv/1", "411", "701", "100")
	e2 := f.commitOn(t, date(2024, 3, 1), model.SourcePayment, "pay-1", "512", "411", "60")
	e3 := f.commitOn(t, date(2024, 2, 5), model.SourceManual, "", "601", "512", "20")

	t.Run("by fiscal year newest first", func(t *testing.T) {
		got, err := f.ledger.ByFiscalYear(ctx, f.fy.ID)
		require.NoError(t, err)
		assert.Equal(t, []string{e2.Number, e3.Number, e1.Number}, numbers(got))
	})

	t.Run("by date range inclusive", func(t *testing.T) {
		got, err := f.ledger.ByDateRange(ctx, date(2024, 1, 10), date(2024, 2, 5))
		require.NoError(t, err)
		assert.Equal(t, []string{e1.Number, e3.Number}, numbers(got))

		got, err = f.ledger.ByDateRange(ctx, date(2024, 4, 1), date(2024, 5, 1))
		require.NoError(t, err)
		assert.Empty(t, got)
	})

	t.Run("by source", func(t *testing.T) {
		got, err := f.ledger.BySource(ctx, model.SourceInvoice, "inv/1")
		require.NoError(t, err)
		assert.Equal(t, []string{e1.Number}, numbers(got))

		got, err = f.ledger.BySource(ctx, model.SourceInvoice, "inv")
		require.NoError(t, err)
		assert.Empty(t, got)
	})

	t.Run("automatic and manual", func(t *testing.T) {
		auto, err := f.ledger.Automatic(ctx)
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{e1.Number, e2.Number}, numbers(auto))

		manual, err := f.ledger.Manual(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{e3.Number}, numbers(manual))
	})

	t.Run("unbalanced is empty", func(t *testing.T) {
		got, err := f.ledger.Unbalanced(ctx)
		require.NoError(t, err)
		assert.Empty(t, got)
	})

	t.Run("by number not found", func(t *testing.T) {
		_, err := f.ledger.ByNumber(ctx, "JE-2024-000099")
		assert.ErrorIs(t, err, ErrEntryNotFound)
	})
}

func TestList(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	var all []string
	for day := 1; day <= 5; day++ {
		e := f.commitOn(t, date(2024, 1, day), model.SourceManual, "", "512", "101", "10")
		all = append([]string{e.Number}, all...)
	}

	tests := []struct {
		name string
		opts ListOptions
		want []string
	}{
		{"everything", ListOptions{}, all},
		{"first page", ListOptions{Limit: 2}, all[:2]},
		{"second page", ListOptions{Offset: 2, Limit: 2}, all[2:4]},
		{"last partial page", ListOptions{Offset: 4, Limit: 2}, all[4:]},
		{"past the end", ListOptions{Offset: 10, Limit: 2}, nil},
		{"by year", ListOptions{FiscalYearID: f.fy.ID, Limit: 1}, all[:1]},
		{"other year", ListOptions{FiscalYearID: "nope"}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			page, err := f.ledger.List(ctx, tt.opts)
			require.NoError(t, err)
			if tt.want == nil {
				assert.Empty(t, page.Entries)
			} else {
				assert.Equal(t, tt.want, numbers(page.Entries))
			}
		})
	}

	page, err := f.ledger.List(ctx, ListOptions{Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, 5, page.Total)
}

func TestAccountLines(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	e1 := f.commitOn(t, date(2024, 1, 10), model.SourceInvoice, "i1", "411", "701", "100")
	e2 := f.commitOn(t, date(2024, 2, 10), model.SourcePayment, "p1", "512", "411", "40")
	f.commitOn(t, date(2024, 3, 10), model.SourceManual, "", "601", "512", "5")

	recv, err := f.accounts.ByNumber(ctx, "411")
	require.NoError(t, err)

	lines, err := f.ledger.AccountLines(ctx, recv.ID, civil.Date{}, civil.Date{})
	require.NoError(t, err)
	require.Len(t, lines, 2)
	assert.Equal(t, e1.Number, lines[0].EntryNumber)
	assert.True(t, lines[0].Line.Debit.Equal(dec("100")))
	assert.Equal(t, e2.Number, lines[1].EntryNumber)
	assert.Equal(t, model.SourcePayment, lines[1].SourceType)
	assert.True(t, lines[1].Line.Credit.Equal(dec("40")))

	lines, err = f.ledger.AccountLines(ctx, recv.ID, civil.Date{}, date(2024, 1, 31))
	require.NoError(t, err)
	require.Len(t, lines, 1)
	assert.Equal(t, e1.Number, lines[0].EntryNumber)

	lines, err = f.ledger.AccountLines(ctx, recv.ID, date(2024, 2, 10), civil.Date{})
	require.NoError(t, err)
	require.Len(t, lines, 1)
	assert.Equal(t, e2.Number, lines[0].EntryNumber)
}
