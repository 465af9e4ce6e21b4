package model

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// AccountType classifies accounts in the chart of accounts.
type AccountType string

const (
	AccountTypeAsset     AccountType = "ASSET"
	AccountTypeLiability AccountType = "LIABILITY"
	AccountTypeEquity    AccountType = "EQUITY"
	AccountTypeRevenue   AccountType = "REVENUE"
	AccountTypeExpense   AccountType = "EXPENSE"
)

// AccountTypes lists every account type in balance-sheet order.
var AccountTypes = []AccountType{
	AccountTypeAsset,
	AccountTypeLiability,
	AccountTypeEquity,
	AccountTypeRevenue,
	AccountTypeExpense,
}

// ParseAccountType accepts any casing of a known account type.
func ParseAccountType(s string) (AccountType, error) {
	t := AccountType(strings.ToUpper(strings.TrimSpace(s)))
	if !t.Valid() {
		return "", fmt.Errorf("unknown account type %q", s)
	}
	return t, nil
}

// Valid reports whether t is one of the five account types.
func (t AccountType) Valid() bool {
	switch t {
	case AccountTypeAsset, AccountTypeLiability, AccountTypeEquity, AccountTypeRevenue, AccountTypeExpense:
		return true
	}
	return false
}

// IncreasesOnDebit reports the polarity of the type. Assets and expenses
// grow on the debit side; liabilities, equity and revenue on the credit side.
func (t AccountType) IncreasesOnDebit() bool {
	return t == AccountTypeAsset || t == AccountTypeExpense
}

// Effect returns the signed change a debit/credit pair makes to a balance
// of this type.
func (t AccountType) Effect(debit, credit decimal.Decimal) decimal.Decimal {
	if t.IncreasesOnDebit() {
		return debit.Sub(credit)
	}
	return credit.Sub(debit)
}

// Account is one node of the chart of accounts. Children are not stored on
// the parent; they are found through ParentID.
type Account struct {
	ID        string          `json:"id"`
	Number    string          `json:"number"`
	Name      string          `json:"name"`
	Type      AccountType     `json:"type"`
	ParentID  string          `json:"parent_id,omitempty"` // empty = root
	Active    bool            `json:"active"`
	Balance   decimal.Decimal `json:"balance"`
	CreatedAt time.Time       `json:"created_at"`
}
