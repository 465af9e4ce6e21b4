package accounts

import (
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/cleared-dev/freightbooks/internal/model"
)

// Index provides in-memory lookup over a snapshot of the chart of accounts.
// Hierarchy questions (children, detail, path) are answered from ParentID
// alone; no account holds references to other accounts.
type Index struct {
	accounts []model.Account
	byID     map[string]model.Account
	byNumber map[string]model.Account
	children map[string][]string
}

// NewIndex builds an Index. Accounts are kept sorted by number.
func NewIndex(accounts []model.Account) *Index {
	sorted := append([]model.Account(nil), accounts...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Number < sorted[j].Number })

	idx := &Index{
		accounts: sorted,
		byID:     make(map[string]model.Account, len(sorted)),
		byNumber: make(map[string]model.Account, len(sorted)),
		children: make(map[string][]string),
	}
	for _, a := range sorted {
		idx.byID[a.ID] = a
		idx.byNumber[a.Number] = a
		if a.ParentID != "" {
			idx.children[a.ParentID] = append(idx.children[a.ParentID], a.ID)
		}
	}
	return idx
}

// All returns all accounts ordered by number.
func (idx *Index) All() []model.Account {
	return idx.accounts
}

// Get returns an account by ID.
func (idx *Index) Get(id string) (model.Account, bool) {
	a, ok := idx.byID[id]
	return a, ok
}

// ByNumber returns an account by its chart number.
func (idx *Index) ByNumber(number string) (model.Account, bool) {
	a, ok := idx.byNumber[number]
	return a, ok
}

// Children returns the direct children of parentID ordered by number.
func (idx *Index) Children(parentID string) []model.Account {
	ids := idx.children[parentID]
	out := make([]model.Account, 0, len(ids))
	for _, id := range ids {
		out = append(out, idx.byID[id])
	}
	return out
}

// Roots returns accounts without a parent.
func (idx *Index) Roots() []model.Account {
	var out []model.Account
	for _, a := range idx.accounts {
		if a.ParentID == "" {
			out = append(out, a)
		}
	}
	return out
}

// IsDetail reports whether the account has no children and may be posted to.
func (idx *Index) IsDetail(id string) bool {
	return len(idx.children[id]) == 0
}

// FullPath renders the ancestry of an account, root first:
// "Clients > Clients - freight".
func (idx *Index) FullPath(id string) string {
	var names []string
	for cur, ok := idx.byID[id]; ok; cur, ok = idx.byID[cur.ParentID] {
		names = append(names, cur.Name)
	}
	for i, j := 0, len(names)-1; i < j; i, j = i+1, j-1 {
		names[i], names[j] = names[j], names[i]
	}
	return strings.Join(names, " > ")
}

// ByType returns all accounts of the given type.
func (idx *Index) ByType(accountType model.AccountType) []model.Account {
	var result []model.Account
	for _, a := range idx.accounts {
		if a.Type == accountType {
			result = append(result, a)
		}
	}
	return result
}

// TotalBalance sums active detail accounts of the type. Rollup accounts
// are skipped so nothing is counted twice.
func (idx *Index) TotalBalance(accountType model.AccountType) decimal.Decimal {
	total := decimal.Zero
	for _, a := range idx.accounts {
		if a.Type == accountType && a.Active && idx.IsDetail(a.ID) {
			total = total.Add(a.Balance)
		}
	}
	return total
}

// Search returns accounts whose name contains pattern, case-insensitively.
// An empty pattern matches everything.
func (idx *Index) Search(pattern string) []model.Account {
	needle := strings.ToLower(strings.TrimSpace(pattern))
	var out []model.Account
	for _, a := range idx.accounts {
		if strings.Contains(strings.ToLower(a.Name), needle) {
			out = append(out, a)
		}
	}
	return out
}
