package posting

import (
	"strings"

	"github.com/cleared-dev/freightbooks/internal/accounts"
	"github.com/cleared-dev/freightbooks/internal/model"
)

// Rules names the well-known accounts the posting rules use.
type Rules struct {
	Receivables  string
	Sales        string
	VATCollected string
	Bank         string
	Cash         string
	// CashMethods settle into Cash; every other method settles into Bank.
	CashMethods []model.PaymentMethod
}

// DefaultRules returns the freight chart conventions.
func DefaultRules() Rules {
	return Rules{
		Receivables:  accounts.NumberReceivables,
		Sales:        accounts.NumberSales,
		VATCollected: accounts.NumberVATCollected,
		Bank:         accounts.NumberBank,
		Cash:         accounts.NumberCash,
		CashMethods:  []model.PaymentMethod{model.PaymentCash, model.PaymentEspeces},
	}
}

// TreasuryAccount returns the account a payment made by method settles into.
func (r Rules) TreasuryAccount(method model.PaymentMethod) string {
	for _, m := range r.CashMethods {
		if strings.EqualFold(string(m), string(method)) {
			return r.Cash
		}
	}
	return r.Bank
}

// Numbers returns every account number the rules reference.
func (r Rules) Numbers() []string {
	return []string{r.Receivables, r.Sales, r.VATCollected, r.Bank, r.Cash}
}
