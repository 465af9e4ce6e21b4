package accounts

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/cleared-dev/freightbooks/internal/clock"
	"github.com/cleared-dev/freightbooks/internal/model"
	"github.com/cleared-dev/freightbooks/internal/store"
)

var (
	ErrDuplicateAccountNumber = errors.New("account number already exists")
	ErrAccountNotFound        = errors.New("account not found")
	ErrParentNotFound         = errors.New("parent account not found")
	ErrParentInactive         = errors.New("parent account is inactive")
	ErrParentHasBalance       = errors.New("parent account carries a balance")
	ErrHasActiveChildren      = errors.New("account has active children")
	ErrInvalidAccount         = errors.New("invalid account")
)

const (
	tableAccount = "acct"
	tableNumber  = "acctnum"
	tableChild   = "acctchild"
)

// Directory owns the chart of accounts and every balance mutation.
type Directory struct {
	db    *store.DB
	clock clock.Clock
	log   zerolog.Logger
}

// Option configures a Directory.
type Option func(*Directory)

// WithClock sets the clock used for creation timestamps.
func WithClock(c clock.Clock) Option {
	return func(d *Directory) { d.clock = c }
}

// WithLogger sets the directory logger.
func WithLogger(l zerolog.Logger) Option {
	return func(d *Directory) { d.log = l }
}

// NewDirectory creates a Directory over db.
func NewDirectory(db *store.DB, opts ...Option) *Directory {
	d := &Directory{db: db, clock: clock.Real(), log: zerolog.Nop()}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// CreateParams holds parameters for a new account.
type CreateParams struct {
	Number   string
	Name     string
	Type     model.AccountType
	ParentID string // optional
}

// Create adds an account to the chart.
func (d *Directory) Create(ctx context.Context, p CreateParams) (model.Account, error) {
	var acct model.Account
	err := d.db.Update(ctx, func(tx *store.Tx) error {
		var err error
		acct, err = d.CreateTx(tx, p)
		return err
	})
	if err != nil {
		return model.Account{}, err
	}
	d.log.Info().Str("number", acct.Number).Str("type", string(acct.Type)).Msg("account created")
	return acct, nil
}

// CreateTx is Create inside a caller-supplied transaction.
func (d *Directory) CreateTx(tx *store.Tx, p CreateParams) (model.Account, error) {
	number := strings.TrimSpace(p.Number)
	name := strings.TrimSpace(p.Name)
	if number == "" || name == "" {
		return model.Account{}, fmt.Errorf("%w: number and name are required", ErrInvalidAccount)
	}
	if strings.Contains(number, "/") {
		return model.Account{}, fmt.Errorf("%w: number %q contains '/'", ErrInvalidAccount, number)
	}
	if !p.Type.Valid() {
		return model.Account{}, fmt.Errorf("%w: unknown type %q", ErrInvalidAccount, p.Type)
	}

	exists, err := tx.Has(store.Key(tableNumber, number))
	if err != nil {
		return model.Account{}, err
	}
	if exists {
		return model.Account{}, fmt.Errorf("%w: %s", ErrDuplicateAccountNumber, number)
	}

	if p.ParentID != "" {
		parent, err := d.GetTx(tx, p.ParentID)
		if errors.Is(err, ErrAccountNotFound) {
			return model.Account{}, fmt.Errorf("%w: %s", ErrParentNotFound, p.ParentID)
		}
		if err != nil {
			return model.Account{}, err
		}
		if !parent.Active {
			return model.Account{}, fmt.Errorf("%w: %s", ErrParentInactive, parent.Number)
		}
		if !parent.Balance.IsZero() {
			return model.Account{}, fmt.Errorf("%w: %s holds %s", ErrParentHasBalance, parent.Number, model.FormatAmount(parent.Balance))
		}
		// Rewriting the unchanged parent makes a concurrent Deactivate,
		// which read it, conflict with this child's creation.
		if err := tx.Put(store.Key(tableAccount, parent.ID), parent); err != nil {
			return model.Account{}, err
		}
	}

	acct := model.Account{
		ID:        uuid.NewString(),
		Number:    number,
		Name:      name,
		Type:      p.Type,
		ParentID:  p.ParentID,
		Active:    true,
		Balance:   decimal.Zero,
		CreatedAt: d.clock.Now().UTC(),
	}
	if err := tx.Put(store.Key(tableAccount, acct.ID), acct); err != nil {
		return model.Account{}, err
	}
	if err := tx.Put(store.Key(tableNumber, acct.Number), acct.ID); err != nil {
		return model.Account{}, err
	}
	if acct.ParentID != "" {
		if err := tx.Put(store.Key(tableChild, acct.ParentID, acct.ID), acct.ID); err != nil {
			return model.Account{}, err
		}
	}
	return acct, nil
}

// Deactivate soft-deletes an account. Balance and history are retained.
func (d *Directory) Deactivate(ctx context.Context, id string) error {
	return d.db.Update(ctx, func(tx *store.Tx) error {
		return d.deactivateTx(tx, id)
	})
}

func (d *Directory) deactivateTx(tx *store.Tx, id string) error {
	acct, err := d.GetTx(tx, id)
	if err != nil {
		return err
	}
	children, err := d.childrenTx(tx, id)
	if err != nil {
		return err
	}
	active := 0
	for _, c := range children {
		if c.Active {
			active++
		}
	}
	if active > 0 {
		return fmt.Errorf("%w: %s has %d", ErrHasActiveChildren, acct.Number, active)
	}
	if !acct.Active {
		return nil
	}
	acct.Active = false
	return tx.Put(store.Key(tableAccount, acct.ID), acct)
}

// ApplyPosting moves an account's running balance by one line, oriented by
// the account type. It must only be called from inside the transaction that
// commits the line's journal entry.
func (d *Directory) ApplyPosting(tx *store.Tx, id string, debit, credit decimal.Decimal) (model.Account, error) {
	acct, err := d.GetTx(tx, id)
	if err != nil {
		return model.Account{}, err
	}
	acct.Balance = acct.Balance.Add(acct.Type.Effect(debit, credit))
	if err := tx.Put(store.Key(tableAccount, acct.ID), acct); err != nil {
		return model.Account{}, err
	}
	return acct, nil
}

// Get returns an account by ID.
func (d *Directory) Get(ctx context.Context, id string) (model.Account, error) {
	var acct model.Account
	err := d.db.View(ctx, func(tx *store.Tx) error {
		var err error
		acct, err = d.GetTx(tx, id)
		return err
	})
	return acct, err
}

// GetTx is Get inside a transaction.
func (d *Directory) GetTx(tx *store.Tx, id string) (model.Account, error) {
	var acct model.Account
	err := tx.Get(store.Key(tableAccount, id), &acct)
	if errors.Is(err, store.ErrNotFound) {
		return model.Account{}, fmt.Errorf("%w: id %s", ErrAccountNotFound, id)
	}
	return acct, err
}

// ByNumber returns an account by chart number.
func (d *Directory) ByNumber(ctx context.Context, number string) (model.Account, error) {
	var acct model.Account
	err := d.db.View(ctx, func(tx *store.Tx) error {
		var err error
		acct, err = d.ByNumberTx(tx, number)
		return err
	})
	return acct, err
}

// ByNumberTx is ByNumber inside a transaction.
func (d *Directory) ByNumberTx(tx *store.Tx, number string) (model.Account, error) {
	var id string
	err := tx.Get(store.Key(tableNumber, number), &id)
	if errors.Is(err, store.ErrNotFound) {
		return model.Account{}, fmt.Errorf("%w: number %s", ErrAccountNotFound, number)
	}
	if err != nil {
		return model.Account{}, err
	}
	return d.GetTx(tx, id)
}

// IsDetailTx reports whether the account has no children.
func (d *Directory) IsDetailTx(tx *store.Tx, id string) (bool, error) {
	detail := true
	err := tx.Keys(store.Prefix(tableChild, id), func([]byte) error {
		detail = false
		return store.ErrStop
	})
	return detail, err
}

func (d *Directory) childrenTx(tx *store.Tx, parentID string) ([]model.Account, error) {
	var out []model.Account
	err := tx.Keys(store.Prefix(tableChild, parentID), func(key []byte) error {
		child, err := d.GetTx(tx, store.LastPart(key))
		if err != nil {
			return err
		}
		out = append(out, child)
		return nil
	})
	return out, err
}

// Snapshot loads the whole chart into an Index.
func (d *Directory) Snapshot(ctx context.Context) (*Index, error) {
	var idx *Index
	err := d.db.View(ctx, func(tx *store.Tx) error {
		var err error
		idx, err = d.SnapshotTx(tx)
		return err
	})
	return idx, err
}

// SnapshotTx is Snapshot inside a transaction.
func (d *Directory) SnapshotTx(tx *store.Tx) (*Index, error) {
	var accts []model.Account
	err := tx.Scan(store.Prefix(tableAccount), func(_ []byte, decode store.Decoder) error {
		var a model.Account
		if err := decode(&a); err != nil {
			return err
		}
		accts = append(accts, a)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("loading chart of accounts: %w", err)
	}
	return NewIndex(accts), nil
}

// All returns every account ordered by number.
func (d *Directory) All(ctx context.Context) ([]model.Account, error) {
	idx, err := d.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return idx.All(), nil
}

// Search returns accounts whose name contains pattern.
func (d *Directory) Search(ctx context.Context, pattern string) ([]model.Account, error) {
	idx, err := d.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return idx.Search(pattern), nil
}

// Children returns the direct children of parentID.
func (d *Directory) Children(ctx context.Context, parentID string) ([]model.Account, error) {
	idx, err := d.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return idx.Children(parentID), nil
}

// Roots returns top-level accounts.
func (d *Directory) Roots(ctx context.Context) ([]model.Account, error) {
	idx, err := d.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return idx.Roots(), nil
}

// TotalBalance sums the balances of active detail accounts of a type.
func (d *Directory) TotalBalance(ctx context.Context, accountType model.AccountType) (decimal.Decimal, error) {
	idx, err := d.Snapshot(ctx)
	if err != nil {
		return decimal.Zero, err
	}
	return idx.TotalBalance(accountType), nil
}

// ValidateTrialBalance reports whether assets equal liabilities plus equity.
func (d *Directory) ValidateTrialBalance(ctx context.Context) (bool, error) {
	idx, err := d.Snapshot(ctx)
	if err != nil {
		return false, err
	}
	assets := idx.TotalBalance(model.AccountTypeAsset)
	claims := idx.TotalBalance(model.AccountTypeLiability).Add(idx.TotalBalance(model.AccountTypeEquity))
	return assets.Equal(claims), nil
}

// Seed creates the chart entries that do not exist yet, in order. Parents
// must precede their children. Returns the number of accounts created.
func (d *Directory) Seed(ctx context.Context, chart []ChartEntry) (int, error) {
	created := 0
	err := d.db.Update(ctx, func(tx *store.Tx) error {
		created = 0
		for _, e := range chart {
			exists, err := tx.Has(store.Key(tableNumber, e.Number))
			if err != nil {
				return err
			}
			if exists {
				continue
			}
			var parentID string
			if e.Parent != "" {
				parent, err := d.ByNumberTx(tx, e.Parent)
				if err != nil {
					return fmt.Errorf("seeding %s: %w", e.Number, err)
				}
				parentID = parent.ID
			}
			if _, err := d.CreateTx(tx, CreateParams{Number: e.Number, Name: e.Name, Type: e.Type, ParentID: parentID}); err != nil {
				return fmt.Errorf("seeding %s: %w", e.Number, err)
			}
			created++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	d.log.Info().Int("created", created).Msg("chart of accounts seeded")
	return created, nil
}

// Export returns the chart as ChartEntry rows, parents first.
func (d *Directory) Export(ctx context.Context) ([]ChartEntry, error) {
	idx, err := d.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	var out []ChartEntry
	var walk func(accts []model.Account, parent string)
	walk = func(accts []model.Account, parent string) {
		for _, a := range accts {
			out = append(out, ChartEntry{Number: a.Number, Name: a.Name, Type: a.Type, Parent: parent})
			walk(idx.Children(a.ID), a.Number)
		}
	}
	walk(idx.Roots(), "")
	return out, nil
}
