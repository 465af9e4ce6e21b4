package journal

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/cleared-dev/freightbooks/internal/model"
)

// Invariants checked by Validate.
const (
	InvariantBalanced  = 1 // sum(debits) == sum(credits)
	InvariantOneSided  = 2 // exactly one of debit/credit is positive, the other zero
	InvariantAccount   = 3 // every line names an account
	InvariantMinLines  = 4 // at least two lines
	InvariantLineOrder = 5 // line orders are 1..N
	InvariantPrecision = 6 // no more decimal places than the amount scale
)

// DefaultAmountScale is the number of decimal places an amount may carry
// unless the ledger is configured otherwise.
const DefaultAmountScale int32 = 2

// ValidationError describes a single invariant violation.
type ValidationError struct {
	Invariant   int
	EntryID     string
	Description string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("invariant %d [%s]: %s", e.Invariant, e.EntryID, e.Description)
}

// Validate checks the structural invariants of an entry at the default
// amount scale.
func Validate(e *model.JournalEntry) []ValidationError {
	return ValidateScale(e, DefaultAmountScale)
}

// ValidateScale checks the structural invariants of an entry, allowing
// amounts up to scale decimal places. Totals are recomputed from the
// lines, never taken from the entry fields.
func ValidateScale(e *model.JournalEntry, scale int32) []ValidationError {
	var errs []ValidationError
	ref := e.Number

	if len(e.Lines) < 2 {
		errs = append(errs, ValidationError{
			Invariant:   InvariantMinLines,
			EntryID:     ref,
			Description: fmt.Sprintf("entry has %d line(s), need at least 2", len(e.Lines)),
		})
	}

	totalDebit := decimal.Zero
	totalCredit := decimal.Zero
	for i, l := range e.Lines {
		lineRef := fmt.Sprintf("%s#%d", ref, i+1)
		totalDebit = totalDebit.Add(l.Debit)
		totalCredit = totalCredit.Add(l.Credit)

		if err := checkAmounts(l.Debit, l.Credit); err != "" {
			errs = append(errs, ValidationError{Invariant: InvariantOneSided, EntryID: lineRef, Description: err})
		}

		if l.AccountID == "" {
			errs = append(errs, ValidationError{
				Invariant:   InvariantAccount,
				EntryID:     lineRef,
				Description: "line has no account",
			})
		}

		if l.Order != i+1 {
			errs = append(errs, ValidationError{
				Invariant:   InvariantLineOrder,
				EntryID:     lineRef,
				Description: fmt.Sprintf("line order %d, want %d", l.Order, i+1),
			})
		}

		for _, side := range []struct {
			name   string
			amount decimal.Decimal
		}{{"debit", l.Debit}, {"credit", l.Credit}} {
			if !side.amount.Equal(side.amount.Round(scale)) {
				errs = append(errs, ValidationError{
					Invariant:   InvariantPrecision,
					EntryID:     lineRef,
					Description: fmt.Sprintf("%s %s has more than %d decimal places", side.name, side.amount, scale),
				})
			}
		}
	}

	if !totalDebit.Equal(totalCredit) {
		errs = append(errs, ValidationError{
			Invariant:   InvariantBalanced,
			EntryID:     ref,
			Description: fmt.Sprintf("debits (%s) != credits (%s)", model.FormatAmount(totalDebit), model.FormatAmount(totalCredit)),
		})
	}

	return errs
}

// checkAmounts returns a description of what is wrong with a debit/credit
// pair, or "" if exactly one side is positive and the other is zero.
func checkAmounts(debit, credit decimal.Decimal) string {
	switch {
	case debit.IsNegative() || credit.IsNegative():
		return fmt.Sprintf("negative amount (debit %s, credit %s)", debit, credit)
	case debit.IsPositive() && credit.IsPositive():
		return "line must have exactly one of debit or credit, got both"
	case debit.IsZero() && credit.IsZero():
		return "line must have exactly one of debit or credit, got neither"
	}
	return ""
}
