package state

import (
	"errors"
	"sort"

	"github.com/cosmos/iavl"
)

var (
	ErrReadOnly = errors.New("read only store")
	ErrEmptyKey = errors.New("empty key")
)

// KVStore is the byte-addressed store every component reads and writes.
// Get returns a nil value and no error for an absent key.
type KVStore interface {
	Get(key []byte) ([]byte, error)
	Has(key []byte) (bool, error)
	Set(key, value []byte) error
	Delete(key []byte) error
}

// PrefixIterator is implemented by stores that can list a key range.
type PrefixIterator interface {
	IteratePrefix(prefix []byte, fn func(key, value []byte) bool) error
}

type cacheValue struct {
	value   []byte
	deleted bool
}

// Cache buffers writes on top of a parent store. Nothing reaches the parent
// until Write is called, so a failed invocation is dropped by discarding
// the cache.
type Cache struct {
	parent KVStore
	dirty  map[string]cacheValue
}

var _ KVStore = (*Cache)(nil)

func NewCache(parent KVStore) *Cache {
	return &Cache{
		parent: parent,
		dirty:  make(map[string]cacheValue),
	}
}

func (c *Cache) Get(key []byte) ([]byte, error) {
	if len(key) == 0 {
		return nil, ErrEmptyKey
	}
	if v, ok := c.dirty[string(key)]; ok {
		if v.deleted {
			return nil, nil
		}
		return v.value, nil
	}
	if c.parent == nil {
		return nil, nil
	}
	return c.parent.Get(key)
}

func (c *Cache) Has(key []byte) (bool, error) {
	val, err := c.Get(key)
	if err != nil {
		return false, err
	}
	return val != nil, nil
}

func (c *Cache) Set(key, value []byte) error {
	if len(key) == 0 {
		return ErrEmptyKey
	}
	if value == nil {
		value = []byte{}
	}
	v := make([]byte, len(value))
	copy(v, value)
	c.dirty[string(key)] = cacheValue{value: v}
	return nil
}

func (c *Cache) Delete(key []byte) error {
	if len(key) == 0 {
		return ErrEmptyKey
	}
	c.dirty[string(key)] = cacheValue{deleted: true}
	return nil
}

// Write flushes buffered writes to the parent in key order and empties the cache.
func (c *Cache) Write() error {
	if c.parent == nil {
		return ErrReadOnly
	}
	keys := make([]string, 0, len(c.dirty))
	for k := range c.dirty {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		v := c.dirty[k]
		var err error
		if v.deleted {
			err = c.parent.Delete([]byte(k))
		} else {
			err = c.parent.Set([]byte(k), v.value)
		}
		if err != nil {
			return err
		}
	}
	c.dirty = make(map[string]cacheValue)
	return nil
}

func (c *Cache) Discard() {
	c.dirty = make(map[string]cacheValue)
}

func (c *Cache) Dirty() int {
	return len(c.dirty)
}

// treeStore writes straight into the working version of the tree.
type treeStore struct {
	tree *iavl.MutableTree
}

func (t treeStore) Get(key []byte) ([]byte, error) {
	return t.tree.Get(key)
}

func (t treeStore) Has(key []byte) (bool, error) {
	val, err := t.tree.Get(key)
	return val != nil, err
}

func (t treeStore) Set(key, value []byte) error {
	_, err := t.tree.Set(key, value)
	return err
}

func (t treeStore) Delete(key []byte) error {
	_, _, err := t.tree.Remove(key)
	return err
}

// Snapshot reads one committed version of the tree.
type Snapshot struct {
	tree   *iavl.ImmutableTree
	height uint64
}

var (
	_ KVStore        = (*Snapshot)(nil)
	_ PrefixIterator = (*Snapshot)(nil)
)

func (s *Snapshot) Height() uint64 {
	return s.height
}

func (s *Snapshot) Get(key []byte) ([]byte, error) {
	if s.tree == nil {
		return nil, nil
	}
	return s.tree.Get(key)
}

func (s *Snapshot) Has(key []byte) (bool, error) {
	if s.tree == nil {
		return false, nil
	}
	return s.tree.Has(key)
}

func (s *Snapshot) Set(key, value []byte) error {
	return ErrReadOnly
}

func (s *Snapshot) Delete(key []byte) error {
	return ErrReadOnly
}

func (s *Snapshot) IteratePrefix(prefix []byte, fn func(key, value []byte) bool) error {
	if s.tree == nil {
		return nil
	}
	it, err := s.tree.Iterator(prefix, PrefixEndBytes(prefix), true)
	if err != nil {
		return err
	}
	defer it.Close()
	for ; it.Valid(); it.Next() {
		if !fn(it.Key(), it.Value()) {
			break
		}
	}
	return it.Error()
}

func PrefixEndBytes(prefix []byte) []byte {
	if len(prefix) == 0 {
		return nil
	}

	end := make([]byte, len(prefix))
	copy(end, prefix)

	for {
		if end[len(end)-1] != byte(255) {
			end[len(end)-1]++
			break
		}

		end = end[:len(end)-1]

		if len(end) == 0 {
			end = nil
			break
		}
	}

	return end
}
