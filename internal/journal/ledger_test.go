package journal

import (
	"bytes"
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cleared-dev/freightbooks/internal/accounts"
	"github.com/cleared-dev/freightbooks/internal/clock"
	"github.com/cleared-dev/freightbooks/internal/fiscal"
	"github.com/cleared-dev/freightbooks/internal/model"
	"github.com/cleared-dev/freightbooks/internal/store"
)

type fixture struct {
	db       *store.DB
	accounts *accounts.Directory
	years    *fiscal.Registry
	ledger   *Ledger
	fy       model.FiscalYear
	clock    *clock.Fake
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func date(y int, m time.Month, d int) civil.Date {
	return civil.Date{Year: y, Month: m, Day: d}
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	db, err := store.Open(store.Config{InMemory: true, MaxRetries: 1000, Logger: zerolog.Nop()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	c := clock.FakeAt(2024, time.March, 15)
	dir := accounts.NewDirectory(db, accounts.WithClock(c))
	_, err = dir.Seed(context.Background(), accounts.DefaultChart())
	require.NoError(t, err)

	reg := fiscal.NewRegistry(db, fiscal.WithClock(c))
	fy, err := reg.Create(context.Background(), 2024, date(2024, 1, 1), date(2024, 12, 31))
	require.NoError(t, err)

	opts = append([]Option{WithClock(c)}, opts...)
	return &fixture{
		db:       db,
		accounts: dir,
		years:    reg,
		ledger:   NewLedger(db, dir, reg, opts...),
		fy:       fy,
		clock:    c,
	}
}

// invoice builds a draft for the classic 118 = 100 + 18 invoice.
func (f *fixture) invoice(t *testing.T) *model.JournalEntry {
	t.Helper()
	ctx := context.Background()
	e := f.ledger.NewDraft(DraftParams{Description: "Invoice F-1", SourceType: model.SourceInvoice, SourceID: "inv-1", Reference: "F-1"})
	require.NoError(t, f.ledger.AppendLine(ctx, e, "411", dec("118.00"), decimal.Zero, "client"))
	require.NoError(t, f.ledger.AppendLine(ctx, e, "701", decimal.Zero, dec("100.00"), "sales"))
	require.NoError(t, f.ledger.AppendLine(ctx, e, "445", decimal.Zero, dec("18.00"), "vat"))
	return e
}

func (f *fixture) balance(t *testing.T, number string) decimal.Decimal {
	t.Helper()
	acct, err := f.accounts.ByNumber(context.Background(), number)
	require.NoError(t, err)
	return acct.Balance
}

func TestNewDraft(t *testing.T) {
	f := newFixture(t)

	e := f.ledger.NewDraft(DraftParams{Description: "manual"})
	assert.True(t, e.IsDraft())
	assert.Equal(t, model.PlaceholderNumber, e.Number)
	assert.Equal(t, date(2024, 3, 15), e.Date)
	assert.Equal(t, model.SourceManual, e.SourceType)
	assert.NotEmpty(t, e.ID)
	assert.True(t, e.Balanced)

	dated := f.ledger.NewDraft(DraftParams{Date: date(2024, 2, 1)})
	assert.Equal(t, date(2024, 2, 1), dated.Date)
}

func TestAppendLine(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	e := f.invoice(t)
	require.Len(t, e.Lines, 3)
	for i, l := range e.Lines {
		assert.Equal(t, i+1, l.Order)
		assert.NotEmpty(t, l.AccountID)
	}
	assert.Equal(t, "411", e.Lines[0].AccountNumber)
	assert.True(t, e.TotalDebit.Equal(dec("118")))
	assert.True(t, e.TotalCredit.Equal(dec("118")))
	assert.True(t, e.Balanced)

	tests := []struct {
		name    string
		account string
		debit   string
		credit  string
		wantErr error
	}{
		{"both sides", "411", "1", "1", ErrInvalidLine},
		{"neither side", "411", "0", "0", ErrInvalidLine},
		{"negative", "411", "-1", "0", ErrInvalidLine},
		{"rollup account", "41", "1", "0", ErrNotDetailAccount},
		{"unknown account", "999", "1", "0", accounts.ErrAccountNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := f.ledger.NewDraft(DraftParams{})
			err := f.ledger.AppendLine(ctx, e, tt.account, dec(tt.debit), dec(tt.credit), "")
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Empty(t, e.Lines)
		})
	}
}

func TestAppendLineInactiveAccount(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	acct, err := f.accounts.ByNumber(ctx, "706")
	require.NoError(t, err)
	require.NoError(t, f.accounts.Deactivate(ctx, acct.ID))

	e := f.ledger.NewDraft(DraftParams{})
	err = f.ledger.AppendLine(ctx, e, "706", decimal.Zero, dec("10"), "")
	assert.ErrorIs(t, err, ErrInactiveAccount)
}

func TestCommit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	e := f.invoice(t)
	got, err := f.ledger.Commit(ctx, e)
	require.NoError(t, err)

	assert.Equal(t, "JE-2024-000001", got.Number)
	assert.Equal(t, f.fy.ID, got.FiscalYearID)
	assert.True(t, got.Balanced)
	assert.False(t, got.CreatedAt.IsZero())
	assert.Equal(t, got.Number, e.Number, "draft is updated in place")

	assert.True(t, f.balance(t, "411").Equal(dec("118")))
	assert.True(t, f.balance(t, "701").Equal(dec("100")))
	assert.True(t, f.balance(t, "445").Equal(dec("18")))

	stored, err := f.ledger.ByNumber(ctx, got.Number)
	require.NoError(t, err)
	assert.Equal(t, got.ID, stored.ID)
	require.Len(t, stored.Lines, 3)
	assert.True(t, stored.Lines[2].Credit.Equal(dec("18")))

	ok, err := f.accounts.ValidateTrialBalance(ctx)
	require.NoError(t, err)
	assert.False(t, ok, "revenue is not yet closed into equity")
}

func TestCommitSequential(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for i := 1; i <= 3; i++ {
		got, err := f.ledger.Commit(ctx, f.invoice(t))
		require.NoError(t, err)
		assert.Equal(t, fmt.Sprintf("JE-2024-%06d", i), got.Number)
	}

	next, err := f.ledger.NextNumber(ctx, f.fy)
	require.NoError(t, err)
	assert.Equal(t, "JE-2024-000004", next)
}

func TestCommitRejectsWithoutSideEffects(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	t.Run("unbalanced", func(t *testing.T) {
		e := f.ledger.NewDraft(DraftParams{})
		require.NoError(t, f.ledger.AppendLine(ctx, e, "411", dec("100"), decimal.Zero, ""))
		require.NoError(t, f.ledger.AppendLine(ctx, e, "701", decimal.Zero, dec("99.99"), ""))

		_, err := f.ledger.Commit(ctx, e)
		assert.ErrorIs(t, err, ErrUnbalancedEntry)
		assert.True(t, e.IsDraft())
	})

	t.Run("single line", func(t *testing.T) {
		e := f.ledger.NewDraft(DraftParams{})
		require.NoError(t, f.ledger.AppendLine(ctx, e, "411", dec("100"), decimal.Zero, ""))

		_, err := f.ledger.Commit(ctx, e)
		assert.ErrorIs(t, err, ErrUnbalancedEntry)
	})

	t.Run("three decimals", func(t *testing.T) {
		e := f.ledger.NewDraft(DraftParams{})
		require.NoError(t, f.ledger.AppendLine(ctx, e, "411", dec("1.005"), decimal.Zero, ""))
		require.NoError(t, f.ledger.AppendLine(ctx, e, "701", decimal.Zero, dec("1.005"), ""))

		_, err := f.ledger.Commit(ctx, e)
		assert.ErrorIs(t, err, ErrInvalidLine)
	})

	t.Run("no fiscal year", func(t *testing.T) {
		e := f.ledger.NewDraft(DraftParams{Date: date(2023, 12, 31)})
		require.NoError(t, f.ledger.AppendLine(ctx, e, "411", dec("10"), decimal.Zero, ""))
		require.NoError(t, f.ledger.AppendLine(ctx, e, "701", decimal.Zero, dec("10"), ""))

		_, err := f.ledger.Commit(ctx, e)
		assert.ErrorIs(t, err, ErrNoFiscalYear)
	})

	t.Run("account became a rollup", func(t *testing.T) {
		e := f.ledger.NewDraft(DraftParams{})
		require.NoError(t, f.ledger.AppendLine(ctx, e, "706", dec("10"), decimal.Zero, ""))
		require.NoError(t, f.ledger.AppendLine(ctx, e, "701", decimal.Zero, dec("10"), ""))

		parent, err := f.accounts.ByNumber(ctx, "706")
		require.NoError(t, err)
		_, err = f.accounts.Create(ctx, accounts.CreateParams{Number: "7061", Name: "Services - air", Type: model.AccountTypeRevenue, ParentID: parent.ID})
		require.NoError(t, err)

		_, err = f.ledger.Commit(ctx, e)
		assert.ErrorIs(t, err, ErrNotDetailAccount)
	})

	assert.True(t, f.balance(t, "411").IsZero())
	assert.True(t, f.balance(t, "701").IsZero())
	all, err := f.ledger.All(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)

	next, err := f.ledger.NextNumber(ctx, f.fy)
	require.NoError(t, err)
	assert.Equal(t, "JE-2024-000001", next, "failed commits consume no number")
}

func TestCommitAmountScale(t *testing.T) {
	draft := func(t *testing.T, f *fixture) *model.JournalEntry {
		t.Helper()
		ctx := context.Background()
		e := f.ledger.NewDraft(DraftParams{Description: "Invoice F-9", SourceType: model.SourceInvoice, SourceID: "inv-9"})
		require.NoError(t, f.ledger.AppendLine(ctx, e, "411", dec("118.125"), decimal.Zero, ""))
		require.NoError(t, f.ledger.AppendLine(ctx, e, "701", decimal.Zero, dec("100.125"), ""))
		require.NoError(t, f.ledger.AppendLine(ctx, e, "445", decimal.Zero, dec("18.000"), ""))
		return e
	}

	f := newFixture(t)
	_, err := f.ledger.Commit(context.Background(), draft(t, f))
	assert.ErrorIs(t, err, ErrInvalidLine)
	assert.True(t, f.balance(t, "411").IsZero())

	f = newFixture(t, WithAmountScale(3))
	got, err := f.ledger.Commit(context.Background(), draft(t, f))
	require.NoError(t, err)
	assert.True(t, got.TotalDebit.Equal(dec("118.125")))
	assert.True(t, f.balance(t, "411").Equal(dec("118.125")))
}

func TestCommitClosedPeriod(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	fy23, err := f.years.Create(ctx, 2023, date(2023, 1, 1), date(2023, 12, 31))
	require.NoError(t, err)
	_, err = f.years.Close(ctx, fy23.ID)
	require.NoError(t, err)

	e := f.ledger.NewDraft(DraftParams{Date: date(2023, 6, 1)})
	require.NoError(t, f.ledger.AppendLine(ctx, e, "411", dec("10"), decimal.Zero, ""))
	require.NoError(t, f.ledger.AppendLine(ctx, e, "701", decimal.Zero, dec("10"), ""))

	_, err = f.ledger.Commit(ctx, e)
	assert.ErrorIs(t, err, ErrPeriodClosed)

	_, err = f.years.Reopen(ctx, fy23.ID)
	require.NoError(t, err)
	got, err := f.ledger.Commit(ctx, e)
	require.NoError(t, err)
	assert.Equal(t, "JE-2023-000001", got.Number)
	assert.Equal(t, fy23.ID, got.FiscalYearID)
}

func TestCommitTwice(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	e := f.invoice(t)
	_, err := f.ledger.Commit(ctx, e)
	require.NoError(t, err)

	_, err = f.ledger.Commit(ctx, e)
	assert.ErrorIs(t, err, ErrDuplicateEntryNumber)
	assert.True(t, f.balance(t, "411").Equal(dec("118")), "balances applied once")

	err = f.ledger.AppendLine(ctx, e, "411", dec("1"), decimal.Zero, "")
	assert.ErrorIs(t, err, ErrNotDraft)
}

func TestSequenceSeedFallback(t *testing.T) {
	var buf bytes.Buffer
	f := newFixture(t, WithLogger(zerolog.New(&buf)))
	ctx := context.Background()

	// An explicitly numbered entry sorts after every JE- number and does
	// not touch the counter.
	legacy := f.invoice(t)
	legacy.Number = "MIGRATED-7"
	_, err := f.ledger.Commit(ctx, legacy)
	require.NoError(t, err)

	got, err := f.ledger.Commit(ctx, f.invoice(t))
	require.NoError(t, err)
	assert.Equal(t, "JE-2024-000001", got.Number)
	assert.Contains(t, buf.String(), "restarting sequence at 1")
	assert.Contains(t, buf.String(), `"level":"warn"`)
}

func TestSequenceSeedFromLastNumber(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	legacy := f.invoice(t)
	legacy.Number = "JE-2024-000041"
	_, err := f.ledger.Commit(ctx, legacy)
	require.NoError(t, err)

	got, err := f.ledger.Commit(ctx, f.invoice(t))
	require.NoError(t, err)
	assert.Equal(t, "JE-2024-000042", got.Number)
}

func TestSequenceSeedIgnoresOtherYearNumber(t *testing.T) {
	var buf bytes.Buffer
	f := newFixture(t, WithLogger(zerolog.New(&buf)))
	ctx := context.Background()

	carried := f.invoice(t)
	carried.Number = "JE-2023-000099"
	_, err := f.ledger.Commit(ctx, carried)
	require.NoError(t, err)

	got, err := f.ledger.Commit(ctx, f.invoice(t))
	require.NoError(t, err)
	assert.Equal(t, "JE-2024-000001", got.Number)
	assert.Contains(t, buf.String(), "not numbered in this year")
}

func TestSequenceSkipsTakenNumbers(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.ledger.Commit(ctx, f.invoice(t))
	require.NoError(t, err)

	taken := f.invoice(t)
	taken.Number = "JE-2024-000002"
	_, err = f.ledger.Commit(ctx, taken)
	require.NoError(t, err)

	got, err := f.ledger.Commit(ctx, f.invoice(t))
	require.NoError(t, err)
	assert.Equal(t, "JE-2024-000003", got.Number)
}

func TestConcurrentCommits(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	const workers, perWorker = 8, 5
	var wg sync.WaitGroup
	errs := make(chan error, workers*perWorker)
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				e := f.ledger.NewDraft(DraftParams{Description: "payment"})
				if err := f.ledger.AppendLine(ctx, e, "531", dec("10.00"), decimal.Zero, ""); err != nil {
					errs <- err
					return
				}
				if err := f.ledger.AppendLine(ctx, e, "411", decimal.Zero, dec("10.00"), ""); err != nil {
					errs <- err
					return
				}
				if _, err := f.ledger.Commit(ctx, e); err != nil {
					errs <- err
				}
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	assert.True(t, f.balance(t, "531").Equal(dec("400")), "no lost update on cash")
	assert.True(t, f.balance(t, "411").Equal(dec("-400")))

	entries, err := f.ledger.ByFiscalYear(ctx, f.fy.ID)
	require.NoError(t, err)
	require.Len(t, entries, workers*perWorker)
	seen := map[string]bool{}
	for _, e := range entries {
		assert.False(t, seen[e.Number], "duplicate number %s", e.Number)
		seen[e.Number] = true
	}
	for i := 1; i <= workers*perWorker; i++ {
		assert.True(t, seen[fmt.Sprintf("JE-2024-%06d", i)], "gap at %d", i)
	}
}

func TestReverse(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	orig, err := f.ledger.Commit(ctx, f.invoice(t))
	require.NoError(t, err)

	rev, err := f.ledger.Reverse(ctx, orig.Number, "alice")
	require.NoError(t, err)
	assert.Equal(t, "JE-2024-000002", rev.Number)
	assert.Equal(t, model.SourceAdjustment, rev.SourceType)
	assert.Equal(t, orig.ID, rev.SourceID)
	assert.Equal(t, orig.Number, rev.Reference)
	assert.Equal(t, "alice", rev.CreatedBy)
	require.Len(t, rev.Lines, 3)
	assert.True(t, rev.Lines[0].Credit.Equal(dec("118")))
	assert.True(t, rev.Lines[1].Debit.Equal(dec("100")))

	for _, n := range []string{"411", "701", "445"} {
		assert.True(t, f.balance(t, n).IsZero(), "account %s back to zero", n)
	}

	_, err = f.ledger.Reverse(ctx, orig.Number, "alice")
	assert.ErrorIs(t, err, ErrAlreadyReversed)

	number, ok, err := f.ledger.ReversalOf(ctx, orig.Number)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, rev.Number, number)

	_, err = f.ledger.Reverse(ctx, "JE-2024-999999", "alice")
	assert.ErrorIs(t, err, ErrEntryNotFound)

	stored, err := f.ledger.ByNumber(ctx, orig.Number)
	require.NoError(t, err)
	assert.True(t, stored.Lines[0].Debit.Equal(dec("118")), "original is untouched")
}
