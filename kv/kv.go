// Package kv is the key/value surface the ledger is written against.
//
// A Txn adapts a Badger transaction; a Cache buffers writes over any
// other Store so that a failed operation can be thrown away without
// touching its parent.
package kv

import "errors"

var (
	// ErrNotFound is returned by Get for a missing key.
	ErrNotFound = errors.New("key not found")
	// ErrBatchFull is returned by a bounded store that has no room left
	// for a write.
	ErrBatchFull = errors.New("block batch is full")
)

// Budget is implemented by stores that cap how much can be written to
// them. Fits reports whether count more writes totalling size bytes
// would be accepted.
type Budget interface {
	Fits(count, size int64) bool
}

// Store is an ordered key/value store.
type Store interface {
	Get(key []byte) ([]byte, error)
	Set(key, value []byte) error
	Delete(key []byte) error
	// Iterate calls fn for every key with the given prefix in ascending
	// key order. fn must not retain key or value.
	Iterate(prefix []byte, fn func(key, value []byte) error) error
}

// Has reports whether key is present in s.
func Has(s Store, key []byte) (bool, error) {
	_, err := s.Get(key)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	return err == nil, err
}
