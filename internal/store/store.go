// Package store is the transactional key-value layer under the ledger.
//
// It wraps an embedded BadgerDB. Badger transactions are serializable
// snapshot transactions: a transaction that read a key another transaction
// committed in the meantime fails with a conflict at commit. Update turns
// such conflicts into a retry of the whole unit of work after a short
// jittered backoff, which
// is what keeps concurrent postings on one account from losing updates and
// concurrent commits in one fiscal year from reusing a sequence number.
package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/dgraph-io/badger/v4"
	"github.com/rs/zerolog"
)

var (
	// ErrNotFound is returned by Tx.Get when the key is absent.
	ErrNotFound = errors.New("store: key not found")
	// ErrConflict is returned by Update when retries are exhausted.
	ErrConflict = errors.New("store: transaction conflict")
)

// DefaultMaxRetries is the number of attempts Update makes before giving
// up on a conflicting transaction.
const DefaultMaxRetries = 10

// Retry backoff between conflicting attempts. Jitter keeps contending
// writers from retrying in lockstep.
const (
	retryInitialInterval = time.Millisecond
	retryMaxInterval     = 50 * time.Millisecond
	retryJitter          = 0.5
)

// Config holds configuration for a store instance.
type Config struct {
	// Path is the directory for database files. Ignored when InMemory is true.
	Path string

	// InMemory keeps all data in RAM. Useful for tests.
	InMemory bool

	// SyncWrites fsyncs every commit.
	SyncWrites bool

	// MaxRetries bounds the attempts Update makes on conflict. Zero means
	// DefaultMaxRetries.
	MaxRetries int

	// Logger receives Badger's internal log at warn level and above, and
	// conflict retries at debug.
	Logger zerolog.Logger
}

// DB is an opened store.
type DB struct {
	db         *badger.DB
	log        zerolog.Logger
	maxRetries int
}

// badgerLogger adapts zerolog to Badger's Logger interface.
type badgerLogger struct {
	log zerolog.Logger
}

func (l badgerLogger) Errorf(format string, args ...interface{}) {
	l.log.Error().Msgf(format, args...)
}

func (l badgerLogger) Warningf(format string, args ...interface{}) {
	l.log.Warn().Msgf(format, args...)
}

func (l badgerLogger) Infof(format string, args ...interface{}) {
	l.log.Debug().Msgf(format, args...)
}

func (l badgerLogger) Debugf(format string, args ...interface{}) {
	l.log.Trace().Msgf(format, args...)
}

// Open opens the store described by cfg, creating the directory if needed.
func Open(cfg Config) (*DB, error) {
	if !cfg.InMemory && cfg.Path == "" {
		return nil, errors.New("path is required for persistent store")
	}

	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(cfg.Path, 0o750); err != nil {
			return nil, fmt.Errorf("creating store directory %s: %w", cfg.Path, err)
		}
		opts = badger.DefaultOptions(cfg.Path)
	}
	opts = opts.WithSyncWrites(cfg.SyncWrites).
		WithNumVersionsToKeep(1).
		WithLogger(badgerLogger{log: cfg.Logger.With().Str("component", "badger").Logger()})

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("opening badger: %w", err)
	}

	maxRetries := cfg.MaxRetries
	if maxRetries <= 0 {
		maxRetries = DefaultMaxRetries
	}
	return &DB{db: db, log: cfg.Logger, maxRetries: maxRetries}, nil
}

// OpenInMemory opens an empty in-memory store with logging disabled.
func OpenInMemory() (*DB, error) {
	return Open(Config{InMemory: true, Logger: zerolog.Nop()})
}

// Close flushes and closes the database.
func (d *DB) Close() error {
	return d.db.Close()
}

// Update runs fn in a read-write transaction. fn may run more than once
// when the transaction conflicts with a concurrent commit, so it must not
// have side effects outside tx.
func (d *DB) Update(ctx context.Context, fn func(tx *Tx) error) error {
	attempts := 0
	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		if err := ctx.Err(); err != nil {
			return struct{}{}, backoff.Permanent(err)
		}
		attempts++
		err := d.db.Update(func(txn *badger.Txn) error {
			return fn(&Tx{txn: txn})
		})
		if err != nil && !errors.Is(err, badger.ErrConflict) {
			return struct{}{}, backoff.Permanent(err)
		}
		return struct{}{}, err
	},
		backoff.WithBackOff(newRetryBackOff()),
		backoff.WithMaxTries(uint(d.maxRetries)),
		backoff.WithNotify(func(_ error, wait time.Duration) {
			d.log.Debug().Int("attempt", attempts).Dur("wait", wait).Msg("transaction conflict, retrying")
		}),
	)
	if errors.Is(err, badger.ErrConflict) {
		return fmt.Errorf("%w after %d attempts", ErrConflict, attempts)
	}
	return err
}

func newRetryBackOff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = retryInitialInterval
	b.MaxInterval = retryMaxInterval
	b.RandomizationFactor = retryJitter
	return b
}

// View runs fn in a read-only snapshot transaction.
func (d *DB) View(ctx context.Context, fn func(tx *Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return d.db.View(func(txn *badger.Txn) error {
		return fn(&Tx{txn: txn})
	})
}
