package model

import (
	"time"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"
)

// FormatAmount renders an amount with two decimals, or with all of its
// significant decimals when it carries more.
func FormatAmount(d decimal.Decimal) string {
	if d.Equal(d.Round(2)) {
		return d.StringFixed(2)
	}
	return d.String()
}

// SourceType tags the business origin of a journal entry.
type SourceType string

const (
	SourceInvoice    SourceType = "INVOICE"
	SourcePayment    SourceType = "PAYMENT"
	SourceLTA        SourceType = "LTA"
	SourceLTAPayment SourceType = "LTA_PAYMENT"
	SourceTreasury   SourceType = "TREASURY"
	SourceManual     SourceType = "MANUAL"
	SourceAdjustment SourceType = "ADJUSTMENT"
	SourceOpening    SourceType = "OPENING"
	SourceClosing    SourceType = "CLOSING"
)

// Valid reports whether s is a known source type.
func (s SourceType) Valid() bool {
	switch s {
	case SourceInvoice, SourcePayment, SourceLTA, SourceLTAPayment, SourceTreasury,
		SourceManual, SourceAdjustment, SourceOpening, SourceClosing:
		return true
	}
	return false
}

// PlaceholderNumber marks a draft entry that has not been committed yet.
const PlaceholderNumber = "JE-DRAFT"

// Line is one debit or credit row of a journal entry.
type Line struct {
	AccountID     string          `json:"account_id"`
	AccountNumber string          `json:"account_number"`
	Debit         decimal.Decimal `json:"debit"`  // zero if credit side
	Credit        decimal.Decimal `json:"credit"` // zero if debit side
	Description   string          `json:"description"`
	Order         int             `json:"order"` // 1-based
}

// IsDebit reports whether the line sits on the debit side.
func (l Line) IsDebit() bool {
	return l.Debit.IsPositive()
}

// Amount returns whichever side of the line carries the value.
func (l Line) Amount() decimal.Decimal {
	if l.IsDebit() {
		return l.Debit
	}
	return l.Credit
}

// JournalEntry is a dated set of lines recording one business event.
type JournalEntry struct {
	ID           string          `json:"id"`
	Number       string          `json:"number"`
	Date         civil.Date      `json:"date"`
	Description  string          `json:"description"`
	Reference    string          `json:"reference,omitempty"`
	FiscalYearID string          `json:"fiscal_year_id,omitempty"`
	TotalDebit   decimal.Decimal `json:"total_debit"`
	TotalCredit  decimal.Decimal `json:"total_credit"`
	Balanced     bool            `json:"balanced"`
	SourceType   SourceType      `json:"source_type"`
	SourceID     string          `json:"source_id,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
	CreatedBy    string          `json:"created_by"`
	Lines        []Line          `json:"lines"`
}

// IsDraft reports whether the entry still carries the placeholder number.
func (e *JournalEntry) IsDraft() bool {
	return e.Number == PlaceholderNumber
}

// IsAutomatic reports whether the entry was produced from a business event
// rather than keyed in by hand.
func (e *JournalEntry) IsAutomatic() bool {
	return e.SourceType != SourceManual
}

// Recompute sums all lines into the entry totals and refreshes Balanced.
func (e *JournalEntry) Recompute() {
	debit := decimal.Zero
	credit := decimal.Zero
	for _, l := range e.Lines {
		debit = debit.Add(l.Debit)
		credit = credit.Add(l.Credit)
	}
	e.TotalDebit = debit
	e.TotalCredit = credit
	e.Balanced = debit.Equal(credit)
}

// Clone returns a deep copy so callers can mutate lines without touching e.
func (e *JournalEntry) Clone() *JournalEntry {
	c := *e
	c.Lines = append([]Line(nil), e.Lines...)
	return &c
}
