package report

import (
	"context"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"

	"github.com/cleared-dev/freightbooks/internal/model"
)

// PeriodValidation compares debits and credits of every entry in a range.
type PeriodValidation struct {
	From        civil.Date
	To          civil.Date
	Entries     int
	TotalDebit  decimal.Decimal
	TotalCredit decimal.Decimal
	Balanced    bool
	Unbalanced  []string // entry numbers whose lines do not balance
}

// ValidatePeriod sums the totals of all entries dated within [from, to].
func (r *Reporter) ValidatePeriod(ctx context.Context, from, to civil.Date) (PeriodValidation, error) {
	entries, err := r.ledger.ByDateRange(ctx, from, to)
	if err != nil {
		return PeriodValidation{}, err
	}
	v := PeriodValidation{From: from, To: to, Entries: len(entries), TotalDebit: decimal.Zero, TotalCredit: decimal.Zero}
	for i := range entries {
		e := entries[i].Clone()
		e.Recompute()
		v.TotalDebit = v.TotalDebit.Add(e.TotalDebit)
		v.TotalCredit = v.TotalCredit.Add(e.TotalCredit)
		if !e.Balanced {
			v.Unbalanced = append(v.Unbalanced, e.Number)
		}
	}
	v.Balanced = v.TotalDebit.Equal(v.TotalCredit) && len(v.Unbalanced) == 0
	return v, nil
}

// TrialBalanceRow is one detail account with its balance on the side its
// sign falls.
type TrialBalanceRow struct {
	Number string
	Name   string
	Type   model.AccountType
	Debit  decimal.Decimal
	Credit decimal.Decimal
}

// TrialBalanceReport lists detail account balances with totals.
type TrialBalanceReport struct {
	Rows        []TrialBalanceRow
	TotalDebit  decimal.Decimal
	TotalCredit decimal.Decimal
	Totals      map[model.AccountType]decimal.Decimal
	// Balanced reports whether debit and credit columns agree.
	Balanced bool
	// Equation reports ASSET + EXPENSE == LIABILITY + EQUITY + REVENUE.
	Equation bool
	// BalanceSheet reports ASSET == LIABILITY + EQUITY, which only holds
	// once revenue and expenses are closed into equity.
	BalanceSheet bool
}

// TrialBalance builds the trial balance from current account balances.
func (r *Reporter) TrialBalance(ctx context.Context) (TrialBalanceReport, error) {
	idx, err := r.accounts.Snapshot(ctx)
	if err != nil {
		return TrialBalanceReport{}, err
	}

	rep := TrialBalanceReport{
		TotalDebit:  decimal.Zero,
		TotalCredit: decimal.Zero,
		Totals:      make(map[model.AccountType]decimal.Decimal, len(model.AccountTypes)),
	}
	for _, t := range model.AccountTypes {
		rep.Totals[t] = idx.TotalBalance(t)
	}

	for _, a := range idx.All() {
		if !a.Active || !idx.IsDetail(a.ID) || a.Balance.IsZero() {
			continue
		}
		row := TrialBalanceRow{Number: a.Number, Name: a.Name, Type: a.Type, Debit: decimal.Zero, Credit: decimal.Zero}
		// A positive balance sits on the side the account increases on.
		onDebit := a.Type.IncreasesOnDebit() == a.Balance.IsPositive()
		if onDebit {
			row.Debit = a.Balance.Abs()
		} else {
			row.Credit = a.Balance.Abs()
		}
		rep.TotalDebit = rep.TotalDebit.Add(row.Debit)
		rep.TotalCredit = rep.TotalCredit.Add(row.Credit)
		rep.Rows = append(rep.Rows, row)
	}

	t := rep.Totals
	rep.Balanced = rep.TotalDebit.Equal(rep.TotalCredit)
	rep.Equation = t[model.AccountTypeAsset].Add(t[model.AccountTypeExpense]).
		Equal(t[model.AccountTypeLiability].Add(t[model.AccountTypeEquity]).Add(t[model.AccountTypeRevenue]))
	rep.BalanceSheet = t[model.AccountTypeAsset].Equal(t[model.AccountTypeLiability].Add(t[model.AccountTypeEquity]))
	return rep, nil
}

// Drift is an account whose stored balance disagrees with its lines.
type Drift struct {
	Number     string
	Stored     decimal.Decimal
	Recomputed decimal.Decimal
}

// VerifyBalances recomputes every account balance from its posted lines
// and returns the accounts that drifted. Empty means the ledger is sound.
func (r *Reporter) VerifyBalances(ctx context.Context) ([]Drift, error) {
	all, err := r.accounts.All(ctx)
	if err != nil {
		return nil, err
	}
	var drift []Drift
	for _, a := range all {
		lines, err := r.ledger.AccountLines(ctx, a.ID, civil.Date{}, civil.Date{})
		if err != nil {
			return nil, err
		}
		sum := decimal.Zero
		for _, pl := range lines {
			sum = sum.Add(a.Type.Effect(pl.Line.Debit, pl.Line.Credit))
		}
		if !sum.Equal(a.Balance) {
			drift = append(drift, Drift{Number: a.Number, Stored: a.Balance, Recomputed: sum})
		}
	}
	return drift, nil
}
