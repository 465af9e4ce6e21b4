package store

import (
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"

	"github.com/cleared-dev/freightbooks/internal/codec"
)

// Tx is a transaction handle passed to Update and View callbacks. Values
// are CBOR records.
type Tx struct {
	txn *badger.Txn
}

// Decoder decodes the current value during a scan.
type Decoder func(v any) error

// Get decodes the value at key into v. Returns ErrNotFound if absent.
func (tx *Tx) Get(key []byte, v any) error {
	item, err := tx.txn.Get(key)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("getting %q: %w", key, err)
	}
	return item.Value(func(val []byte) error {
		if err := codec.Unmarshal(val, v); err != nil {
			return fmt.Errorf("decoding %q: %w", key, err)
		}
		return nil
	})
}

// Has reports whether key exists.
func (tx *Tx) Has(key []byte) (bool, error) {
	_, err := tx.txn.Get(key)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("getting %q: %w", key, err)
	}
	return true, nil
}

// Put encodes v and stores it at key.
func (tx *Tx) Put(key []byte, v any) error {
	data, err := codec.Marshal(v)
	if err != nil {
		return fmt.Errorf("encoding %q: %w", key, err)
	}
	if err := tx.txn.Set(key, data); err != nil {
		return fmt.Errorf("setting %q: %w", key, err)
	}
	return nil
}

// Scan calls fn for every key with the given prefix in ascending order.
// Returning ErrStop from fn ends the scan without error.
func (tx *Tx) Scan(prefix []byte, fn func(key []byte, decode Decoder) error) error {
	return tx.scan(prefix, false, true, fn)
}

// ScanReverse is Scan in descending key order.
func (tx *Tx) ScanReverse(prefix []byte, fn func(key []byte, decode Decoder) error) error {
	return tx.scan(prefix, true, true, fn)
}

// Keys calls fn for every key with the prefix without fetching values.
func (tx *Tx) Keys(prefix []byte, fn func(key []byte) error) error {
	return tx.scan(prefix, false, false, func(key []byte, _ Decoder) error {
		return fn(key)
	})
}

// ErrStop ends a scan early.
var ErrStop = errors.New("store: stop scan")

func (tx *Tx) scan(prefix []byte, reverse, values bool, fn func(key []byte, decode Decoder) error) error {
	opts := badger.DefaultIteratorOptions
	opts.Prefix = prefix
	opts.Reverse = reverse
	opts.PrefetchValues = values

	it := tx.txn.NewIterator(opts)
	defer it.Close()

	seek := prefix
	if reverse {
		// Seek past every key carrying the prefix.
		seek = append(append([]byte{}, prefix...), 0xff)
	}

	for it.Seek(seek); it.ValidForPrefix(prefix); it.Next() {
		item := it.Item()
		key := item.KeyCopy(nil)
		decode := func(v any) error {
			return item.Value(func(val []byte) error {
				if err := codec.Unmarshal(val, v); err != nil {
					return fmt.Errorf("decoding %q: %w", key, err)
				}
				return nil
			})
		}
		if err := fn(key, decode); err != nil {
			if errors.Is(err, ErrStop) {
				return nil
			}
			return err
		}
	}
	return nil
}
