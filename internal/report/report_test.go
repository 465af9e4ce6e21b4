package report

import (
	"context"
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cleared-dev/freightbooks/internal/accounts"
	"github.com/cleared-dev/freightbooks/internal/clock"
	"github.com/cleared-dev/freightbooks/internal/fiscal"
	"github.com/cleared-dev/freightbooks/internal/journal"
	"github.com/cleared-dev/freightbooks/internal/model"
	"github.com/cleared-dev/freightbooks/internal/posting"
	"github.com/cleared-dev/freightbooks/internal/postlog"
	"github.com/cleared-dev/freightbooks/internal/store"
)

type fixture struct {
	db       *store.DB
	accounts *accounts.Directory
	ledger   *journal.Ledger
	engine   *posting.Engine
	reporter *Reporter
	clock    *clock.Fake
	recorder *postlog.MemoryRecorder
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func date(y int, m time.Month, d int) civil.Date {
	return civil.Date{Year: y, Month: m, Day: d}
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	db, err := store.OpenInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	c := clock.FakeAt(2024, time.January, 10)
	dir := accounts.NewDirectory(db, accounts.WithClock(c))
	_, err = dir.Seed(ctx, accounts.DefaultChart())
	require.NoError(t, err)
	reg := fiscal.NewRegistry(db, fiscal.WithClock(c))
	_, err = reg.Create(ctx, 2024, date(2024, 1, 1), date(2024, 12, 31))
	require.NoError(t, err)
	ledger := journal.NewLedger(db, dir, reg, journal.WithClock(c))
	rec := &postlog.MemoryRecorder{}

	return &fixture{
		db:       db,
		accounts: dir,
		ledger:   ledger,
		engine:   posting.NewEngine(dir, reg, ledger, posting.WithClock(c), posting.WithRecorder(rec)),
		reporter: New(dir, ledger),
		clock:    c,
		recorder: rec,
	}
}

// day moves the clock to a day of 2024.
func (f *fixture) day(m time.Month, d int) {
	f.clock.Set(time.Date(2024, m, d, 12, 0, 0, 0, time.UTC))
}

func (f *fixture) invoice(t *testing.T, id, total, net, tax string) model.JournalEntry {
	t.Helper()
	e, err := f.engine.PostInvoice(context.Background(), model.InvoiceCreated{Invoice: model.Invoice{
		ID: id, Number: "F-" + id, TotalAmount: dec(total), AmountExcludingTax: dec(net), TaxAmount: dec(tax),
	}})
	require.NoError(t, err)
	return e
}

func (f *fixture) payment(t *testing.T, id, amount string, method model.PaymentMethod) model.JournalEntry {
	t.Helper()
	e, err := f.engine.PostPayment(context.Background(), model.PaymentReceived{Payment: model.Payment{
		ID: id, Amount: dec(amount), Method: method,
	}})
	require.NoError(t, err)
	return e
}

// history posts an invoice on Jan 10, a cash payment on Feb 1 and a bank
// payment on Mar 1.
func (f *fixture) history(t *testing.T) {
	t.Helper()
	f.day(time.January, 10)
	f.invoice(t, "1", "118.00", "100.00", "18.00")
	f.day(time.February, 1)
	f.payment(t, "p1", "50.00", model.PaymentCash)
	f.day(time.March, 1)
	f.payment(t, "p2", "60.00", model.PaymentTransfer)
}

func TestBalanceAt(t *testing.T) {
	f := newFixture(t)
	f.history(t)
	ctx := context.Background()

	tests := []struct {
		account string
		at      civil.Date
		want    string
	}{
		{"411", date(2024, 1, 9), "0"},
		{"411", date(2024, 1, 10), "118"},
		{"411", date(2024, 2, 1), "68"},
		{"411", date(2024, 12, 31), "8"},
		{"701", date(2024, 12, 31), "100"},
		{"531", date(2024, 1, 31), "0"},
		{"531", date(2024, 2, 1), "50"},
		{"512", date(2024, 3, 1), "60"},
	}
	for _, tt := range tests {
		t.Run(tt.account+"@"+tt.at.String(), func(t *testing.T) {
			got, err := f.reporter.BalanceAt(ctx, tt.account, tt.at)
			require.NoError(t, err)
			assert.True(t, got.Equal(dec(tt.want)), "got %s", got)
		})
	}

	_, err := f.reporter.BalanceAt(ctx, "999", date(2024, 1, 1))
	assert.ErrorIs(t, err, accounts.ErrAccountNotFound)
}

func TestMovements(t *testing.T) {
	f := newFixture(t)
	f.history(t)
	ctx := context.Background()

	moves, err := f.reporter.Movements(ctx, "411", civil.Date{}, civil.Date{})
	require.NoError(t, err)
	require.Len(t, moves, 3)
	assert.True(t, moves[0].Effect.Equal(dec("118")))
	assert.True(t, moves[1].Effect.Equal(dec("-50")))
	assert.True(t, moves[2].Balance.Equal(dec("8")))
	assert.Equal(t, "Clients - freight", moves[0].AccountName)

	moves, err = f.reporter.Movements(ctx, "411", date(2024, 2, 1), date(2024, 2, 28))
	require.NoError(t, err)
	require.Len(t, moves, 1)
	assert.True(t, moves[0].Balance.Equal(dec("68")), "running balance carries earlier lines")
}

func TestTreasury(t *testing.T) {
	f := newFixture(t)
	f.history(t)

	rep, err := f.reporter.Treasury(context.Background(), 10)
	require.NoError(t, err)
	assert.True(t, rep.Cash.Balance.Equal(dec("50")))
	assert.True(t, rep.Bank.Balance.Equal(dec("60")))
	assert.True(t, rep.Total.Equal(dec("110")))
	require.Len(t, rep.Recent, 2)
	assert.Equal(t, "512", rep.Recent[0].Line.AccountNumber, "newest first")
	assert.Equal(t, "531", rep.Recent[1].Line.AccountNumber)

	rep, err = f.reporter.Treasury(context.Background(), 1)
	require.NoError(t, err)
	assert.Len(t, rep.Recent, 1)
}

func TestValidatePeriod(t *testing.T) {
	f := newFixture(t)
	f.history(t)

	v, err := f.reporter.ValidatePeriod(context.Background(), date(2024, 1, 1), date(2024, 2, 29))
	require.NoError(t, err)
	assert.Equal(t, 2, v.Entries)
	assert.True(t, v.TotalDebit.Equal(dec("168")))
	assert.True(t, v.TotalCredit.Equal(dec("168")))
	assert.True(t, v.Balanced)
	assert.Empty(t, v.Unbalanced)

	v, err = f.reporter.ValidatePeriod(context.Background(), date(2025, 1, 1), date(2025, 12, 31))
	require.NoError(t, err)
	assert.Zero(t, v.Entries)
	assert.True(t, v.Balanced)
}

func TestTrialBalance(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	rep, err := f.reporter.TrialBalance(ctx)
	require.NoError(t, err)
	assert.Empty(t, rep.Rows)
	assert.True(t, rep.Balanced)
	assert.True(t, rep.Equation)
	assert.True(t, rep.BalanceSheet, "fresh chart balances")

	f.history(t)
	rep, err = f.reporter.TrialBalance(ctx)
	require.NoError(t, err)
	assert.True(t, rep.Balanced)
	assert.True(t, rep.Equation)
	assert.False(t, rep.BalanceSheet, "revenue is not closed into equity")
	assert.True(t, rep.TotalDebit.Equal(dec("118")))

	rows := map[string]TrialBalanceRow{}
	for _, r := range rep.Rows {
		rows[r.Number] = r
	}
	assert.True(t, rows["411"].Debit.Equal(dec("8")))
	assert.True(t, rows["701"].Credit.Equal(dec("100")))
	assert.True(t, rows["445"].Credit.Equal(dec("18")))
	assert.True(t, rows["531"].Debit.Equal(dec("50")))
	assert.True(t, rep.Totals[model.AccountTypeRevenue].Equal(dec("100")))
}

func TestTrialBalanceNegativeBalance(t *testing.T) {
	f := newFixture(t)
	f.payment(t, "advance", "30", model.PaymentTransfer)

	rep, err := f.reporter.TrialBalance(context.Background())
	require.NoError(t, err)
	rows := map[string]TrialBalanceRow{}
	for _, r := range rep.Rows {
		rows[r.Number] = r
	}
	assert.True(t, rows["411"].Credit.Equal(dec("30")), "client in credit sits on the credit side")
	assert.True(t, rows["512"].Debit.Equal(dec("30")))
	assert.True(t, rep.Balanced)
}

func TestVerifyBalances(t *testing.T) {
	f := newFixture(t)
	f.history(t)
	ctx := context.Background()

	drift, err := f.reporter.VerifyBalances(ctx)
	require.NoError(t, err)
	assert.Empty(t, drift)

	// Move a balance behind the ledger's back.
	require.NoError(t, f.db.Update(ctx, func(tx *store.Tx) error {
		acct, err := f.accounts.ByNumberTx(tx, "531")
		if err != nil {
			return err
		}
		_, err = f.accounts.ApplyPosting(tx, acct.ID, dec("1"), decimal.Zero)
		return err
	}))

	drift, err = f.reporter.VerifyBalances(ctx)
	require.NoError(t, err)
	require.Len(t, drift, 1)
	assert.Equal(t, "531", drift[0].Number)
	assert.True(t, drift[0].Stored.Equal(dec("51")))
	assert.True(t, drift[0].Recomputed.Equal(dec("50")))
}
