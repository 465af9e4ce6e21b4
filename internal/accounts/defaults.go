package accounts

import "github.com/cleared-dev/freightbooks/internal/model"

// ChartEntry describes an account by number, for seeding and CSV exchange.
// Parent is the parent's account number, empty for roots.
type ChartEntry struct {
	Number string
	Name   string
	Type   model.AccountType
	Parent string
}

// Well-known account numbers used by the posting rules.
const (
	NumberReceivables  = "411"
	NumberSales        = "701"
	NumberVATCollected = "445"
	NumberBank         = "512"
	NumberCash         = "531"
)

// DefaultChart returns the chart of accounts of a freight forwarder.
// Entries are ordered parents first.
func DefaultChart() []ChartEntry {
	return []ChartEntry{
		{Number: "1", Name: "Capital", Type: model.AccountTypeEquity},
		{Number: "101", Name: "Share capital", Type: model.AccountTypeEquity, Parent: "1"},
		{Number: "120", Name: "Retained earnings", Type: model.AccountTypeEquity, Parent: "1"},

		{Number: "40", Name: "Suppliers", Type: model.AccountTypeLiability},
		{Number: "401", Name: "Suppliers - carriers", Type: model.AccountTypeLiability, Parent: "40"},

		{Number: "41", Name: "Clients", Type: model.AccountTypeAsset},
		{Number: NumberReceivables, Name: "Clients - freight", Type: model.AccountTypeAsset, Parent: "41"},

		{Number: "44", Name: "State and taxes", Type: model.AccountTypeLiability},
		{Number: NumberVATCollected, Name: "VAT collected", Type: model.AccountTypeLiability, Parent: "44"},

		{Number: "5", Name: "Treasury", Type: model.AccountTypeAsset},
		{Number: NumberBank, Name: "Bank", Type: model.AccountTypeAsset, Parent: "5"},
		{Number: NumberCash, Name: "Cash", Type: model.AccountTypeAsset, Parent: "5"},

		{Number: "6", Name: "Expenses", Type: model.AccountTypeExpense},
		{Number: "601", Name: "Purchased freight services", Type: model.AccountTypeExpense, Parent: "6"},
		{Number: "624", Name: "Transport and handling", Type: model.AccountTypeExpense, Parent: "6"},
		{Number: "626", Name: "Postage and telecom", Type: model.AccountTypeExpense, Parent: "6"},

		{Number: "7", Name: "Revenue", Type: model.AccountTypeRevenue},
		{Number: NumberSales, Name: "Sales - freight", Type: model.AccountTypeRevenue, Parent: "7"},
		{Number: "706", Name: "Services rendered", Type: model.AccountTypeRevenue, Parent: "7"},
	}
}
