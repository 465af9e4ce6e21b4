// Package report holds the read-only views over the ledger and the chart
// of accounts. Nothing here mutates state.
package report

import (
	"context"
	"sort"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"

	"github.com/cleared-dev/freightbooks/internal/accounts"
	"github.com/cleared-dev/freightbooks/internal/journal"
	"github.com/cleared-dev/freightbooks/internal/model"
)

// Reporter answers balance, movement and validation questions.
type Reporter struct {
	accounts *accounts.Directory
	ledger   *journal.Ledger
	cash     string
	bank     string
}

// Option configures a Reporter.
type Option func(*Reporter)

// WithTreasuryAccounts sets the cash and bank account numbers.
func WithTreasuryAccounts(cash, bank string) Option {
	return func(r *Reporter) {
		r.cash = cash
		r.bank = bank
	}
}

// New creates a Reporter.
func New(accts *accounts.Directory, ledger *journal.Ledger, opts ...Option) *Reporter {
	r := &Reporter{
		accounts: accts,
		ledger:   ledger,
		cash:     accounts.NumberCash,
		bank:     accounts.NumberBank,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Movement is one posted line with its signed effect on the account and
// the account balance right after it.
type Movement struct {
	journal.PostedLine
	AccountName string
	Effect      decimal.Decimal
	Balance     decimal.Decimal
}

// BalanceAt returns the balance of an account from every line dated on or
// before date, oriented by the account's polarity.
func (r *Reporter) BalanceAt(ctx context.Context, accountNumber string, date civil.Date) (decimal.Decimal, error) {
	moves, err := r.Movements(ctx, accountNumber, civil.Date{}, date)
	if err != nil {
		return decimal.Zero, err
	}
	if len(moves) == 0 {
		return decimal.Zero, nil
	}
	return moves[len(moves)-1].Balance, nil
}

// Movements lists the lines posted to an account within [from, to], oldest
// first. A zero bound is open. Running balances include every earlier line.
func (r *Reporter) Movements(ctx context.Context, accountNumber string, from, to civil.Date) ([]Movement, error) {
	acct, err := r.accounts.ByNumber(ctx, accountNumber)
	if err != nil {
		return nil, err
	}
	lines, err := r.ledger.AccountLines(ctx, acct.ID, civil.Date{}, to)
	if err != nil {
		return nil, err
	}

	balance := decimal.Zero
	var out []Movement
	for _, pl := range lines {
		effect := acct.Type.Effect(pl.Line.Debit, pl.Line.Credit)
		balance = balance.Add(effect)
		if from != (civil.Date{}) && pl.Date.Before(from) {
			continue
		}
		out = append(out, Movement{PostedLine: pl, AccountName: acct.Name, Effect: effect, Balance: balance})
	}
	return out, nil
}

// TreasuryReport is the cash position.
type TreasuryReport struct {
	Cash   model.Account
	Bank   model.Account
	Total  decimal.Decimal
	Recent []Movement // newest first
}

// Treasury returns the cash and bank balances and the last recent
// movements across both accounts.
func (r *Reporter) Treasury(ctx context.Context, recent int) (TreasuryReport, error) {
	cash, err := r.accounts.ByNumber(ctx, r.cash)
	if err != nil {
		return TreasuryReport{}, err
	}
	bank, err := r.accounts.ByNumber(ctx, r.bank)
	if err != nil {
		return TreasuryReport{}, err
	}

	var moves []Movement
	for _, number := range []string{r.cash, r.bank} {
		m, err := r.Movements(ctx, number, civil.Date{}, civil.Date{})
		if err != nil {
			return TreasuryReport{}, err
		}
		moves = append(moves, m...)
	}
	sort.SliceStable(moves, func(i, j int) bool {
		a, b := moves[i], moves[j]
		if a.Date != b.Date {
			return a.Date.After(b.Date)
		}
		return a.EntryNumber > b.EntryNumber
	})
	if recent >= 0 && len(moves) > recent {
		moves = moves[:recent]
	}

	return TreasuryReport{
		Cash:   cash,
		Bank:   bank,
		Total:  cash.Balance.Add(bank.Balance),
		Recent: moves,
	}, nil
}
