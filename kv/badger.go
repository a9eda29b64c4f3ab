package kv

import (
	"errors"

	"github.com/dgraph-io/badger"
)

// entryOverhead bounds the bytes badger charges a transaction per write
// on top of the key and value.
const entryOverhead = 64

// EntrySize is the size a bounded Txn charges for writing value at key.
func EntrySize(key, value []byte) int64 {
	return int64(len(key)+len(value)) + entryOverhead
}

// Txn exposes a Badger transaction as a Store. Writes are only durable
// once the owner of the transaction commits it.
type Txn struct {
	txn *badger.Txn

	bounded           bool
	count, size       int64
	maxCount, maxSize int64
}

func NewTxn(txn *badger.Txn) *Txn {
	return &Txn{txn: txn}
}

// NewBlockTxn returns a Txn over txn, a write transaction of db, that
// refuses with ErrBatchFull any write that could take txn past db's batch
// limits less the reserved room. A refused write leaves txn untouched, so
// the transaction can still be committed. Every write to txn must go
// through the returned Txn for the accounting to hold.
func NewBlockTxn(db *badger.DB, txn *badger.Txn, reserveCount, reserveSize int64) *Txn {
	return &Txn{
		txn:      txn,
		bounded:  true,
		maxCount: db.MaxBatchCount() - reserveCount,
		maxSize:  db.MaxBatchSize() - reserveSize,
	}
}

// Fits reports whether count more writes totalling size bytes, as
// measured by EntrySize, are still accepted.
func (t *Txn) Fits(count, size int64) bool {
	if !t.bounded {
		return true
	}
	return t.count+count < t.maxCount && t.size+size < t.maxSize
}

func (t *Txn) charge(key, value []byte) error {
	if !t.bounded {
		return nil
	}
	n := EntrySize(key, value)
	if !t.Fits(1, n) {
		return ErrBatchFull
	}
	t.count++
	t.size += n
	return nil
}

func (t *Txn) Get(key []byte) ([]byte, error) {
	item, err := t.txn.Get(key)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return item.ValueCopy(nil)
}

// Set copies key and value; badger holds on to both until commit.
func (t *Txn) Set(key, value []byte) error {
	if err := t.charge(key, value); err != nil {
		return err
	}
	k := append([]byte{}, key...)
	v := append([]byte{}, value...)
	return t.txn.Set(k, v)
}

func (t *Txn) Delete(key []byte) error {
	if err := t.charge(key, nil); err != nil {
		return err
	}
	return t.txn.Delete(append([]byte{}, key...))
}

// Iterate collects the matching pairs before calling fn, because a
// read-write badger transaction allows only one open iterator and fn may
// itself read from the store.
func (t *Txn) Iterate(prefix []byte, fn func(key, value []byte) error) error {
	type pair struct{ k, v []byte }
	var pairs []pair

	it := t.txn.NewIterator(badger.DefaultIteratorOptions)
	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		item := it.Item()
		v, err := item.ValueCopy(nil)
		if err != nil {
			it.Close()
			return err
		}
		pairs = append(pairs, pair{item.KeyCopy(nil), v})
	}
	it.Close()

	for _, p := range pairs {
		if err := fn(p.k, p.v); err != nil {
			return err
		}
	}
	return nil
}
