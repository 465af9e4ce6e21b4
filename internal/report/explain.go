package report

import (
	"context"
	"fmt"
	"strings"

	"github.com/cleared-dev/freightbooks/internal/model"
)

var sourceLabels = map[model.SourceType]string{
	model.SourceInvoice:    "invoice",
	model.SourcePayment:    "client payment",
	model.SourceLTA:        "completed shipment",
	model.SourceLTAPayment: "shipment payment",
	model.SourceTreasury:   "treasury movement",
	model.SourceManual:     "manual entry",
	model.SourceAdjustment: "adjustment",
	model.SourceOpening:    "opening balance",
	model.SourceClosing:    "closing entry",
}

func sourceLabel(st model.SourceType) string {
	if l, ok := sourceLabels[st]; ok {
		return l
	}
	return strings.ToLower(string(st))
}

// Interpret narrates a line from its account number prefix and the source
// of its entry, for audit trails.
func Interpret(l model.Line, st model.SourceType) string {
	amt := model.FormatAmount(l.Amount())
	src := sourceLabel(st)
	n := l.AccountNumber
	debit := l.IsDebit()

	pick := func(onDebit, onCredit string) string {
		if debit {
			return fmt.Sprintf(onDebit, amt, src)
		}
		return fmt.Sprintf(onCredit, amt, src)
	}

	switch {
	case strings.HasPrefix(n, "411"):
		return pick("Client owes %s more (%s)", "Client debt reduced by %s (%s)")
	case strings.HasPrefix(n, "401"):
		return pick("Supplier debt reduced by %s (%s)", "Owed to supplier %s (%s)")
	case strings.HasPrefix(n, "445"):
		return pick("VAT owed to the state reduced by %s (%s)", "VAT of %s owed to the state (%s)")
	case strings.HasPrefix(n, "512"):
		return pick("Bank received %s (%s)", "Bank paid out %s (%s)")
	case strings.HasPrefix(n, "531"):
		return pick("Cash received %s (%s)", "Cash paid out %s (%s)")
	case strings.HasPrefix(n, "6"):
		return pick("Expense of %s recorded (%s)", "Expense reduced by %s (%s)")
	case strings.HasPrefix(n, "7"):
		return pick("Revenue reduced by %s (%s)", "Revenue of %s earned (%s)")
	case strings.HasPrefix(n, "1"):
		return pick("Equity reduced by %s (%s)", "Equity increased by %s (%s)")
	}
	side := "Credit"
	if debit {
		side = "Debit"
	}
	return fmt.Sprintf("%s %s on account %s (%s)", side, amt, n, src)
}

// Explanation is one narrated line of an entry.
type Explanation struct {
	Line      model.Line
	Narration string
}

// Explain narrates every line of a committed entry.
func (r *Reporter) Explain(ctx context.Context, number string) (model.JournalEntry, []Explanation, error) {
	e, err := r.ledger.ByNumber(ctx, number)
	if err != nil {
		return model.JournalEntry{}, nil, err
	}
	out := make([]Explanation, len(e.Lines))
	for i, l := range e.Lines {
		out[i] = Explanation{Line: l, Narration: Interpret(l, e.SourceType)}
	}
	return e, out, nil
}
