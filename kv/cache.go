package kv

import (
	"bytes"
	"errors"
	"sort"
)

// Cache buffers writes in memory on top of a parent Store. Reads see the
// buffered writes first. Write flushes the buffer into the parent;
// Discard drops it. A Cache with a nil parent is a plain in-memory store.
type Cache struct {
	parent Store
	writes map[string][]byte // nil value marks a deletion
}

func NewCache(parent Store) *Cache {
	return &Cache{
		parent: parent,
		writes: make(map[string][]byte),
	}
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Cache {
	return NewCache(nil)
}

func (c *Cache) Get(key []byte) ([]byte, error) {
	if v, ok := c.writes[string(key)]; ok {
		if v == nil {
			return nil, ErrNotFound
		}
		return append([]byte{}, v...), nil
	}
	if c.parent == nil {
		return nil, ErrNotFound
	}
	return c.parent.Get(key)
}

func (c *Cache) Set(key, value []byte) error {
	c.writes[string(key)] = append([]byte{}, value...)
	return nil
}

func (c *Cache) Delete(key []byte) error {
	c.writes[string(key)] = nil
	return nil
}

func (c *Cache) Iterate(prefix []byte, fn func(key, value []byte) error) error {
	merged := make(map[string][]byte)
	if c.parent != nil {
		err := c.parent.Iterate(prefix, func(k, v []byte) error {
			merged[string(k)] = append([]byte{}, v...)
			return nil
		})
		if err != nil {
			return err
		}
	}
	for k, v := range c.writes {
		if !bytes.HasPrefix([]byte(k), prefix) {
			continue
		}
		if v == nil {
			delete(merged, k)
		} else {
			merged[k] = v
		}
	}

	keys := make([]string, 0, len(merged))
	for k := range merged {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if err := fn([]byte(k), merged[k]); err != nil {
			return err
		}
	}
	return nil
}

// Write applies the buffered writes to the parent in key order and
// empties the buffer. It is a no-op for an in-memory store. When the
// parent is a Budget without room for the whole buffer, Write returns
// ErrBatchFull and writes nothing.
func (c *Cache) Write() error {
	if c.parent == nil {
		return nil
	}
	if b, ok := c.parent.(Budget); ok {
		var size int64
		for k, v := range c.writes {
			size += EntrySize([]byte(k), v)
		}
		if !b.Fits(int64(len(c.writes)), size) {
			return ErrBatchFull
		}
	}
	keys := make([]string, 0, len(c.writes))
	for k := range c.writes {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		v := c.writes[k]
		var err error
		if v == nil {
			err = c.parent.Delete([]byte(k))
		} else {
			err = c.parent.Set([]byte(k), v)
		}
		if err != nil {
			return err
		}
	}
	c.writes = make(map[string][]byte)
	return nil
}

// Discard drops every buffered write.
func (c *Cache) Discard() {
	c.writes = make(map[string][]byte)
}

// Dump returns a copy of every pair in s. It is meant for tests and
// debugging, not for large stores.
func Dump(s Store) (map[string]string, error) {
	out := make(map[string]string)
	err := s.Iterate(nil, func(k, v []byte) error {
		out[string(k)] = string(v)
		return nil
	})
	if errors.Is(err, ErrNotFound) {
		return out, nil
	}
	return out, err
}
