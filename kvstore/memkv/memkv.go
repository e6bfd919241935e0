// Package memkv implements an in-memory ordered kvstore.Store, used by the
// rest of this module's tests the way a real deployment would use an
// embedded FoundationDB/MDBX-style backend. Locking mirrors the
// teacher's sync.RWMutex-guarded metadata cache shape.
package memkv

import (
	"bytes"
	"context"
	"sort"
	"sync"

	"github.com/brindledata/recordquery/kvstore"
)

// Store is a sorted in-memory key-value store.
type Store struct {
	mu   sync.RWMutex
	data map[string][]byte
	keys []string // kept sorted
}

// New returns an empty store.
func New() *Store {
	return &Store{data: make(map[string][]byte)}
}

// Put inserts or overwrites a key. Not part of kvstore.Store (writes are
// the external write path's responsibility) but needed to seed fixtures.
func (s *Store) Put(key, value []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := string(key)
	if _, exists := s.data[k]; !exists {
		idx := sort.SearchStrings(s.keys, k)
		s.keys = append(s.keys, "")
		copy(s.keys[idx+1:], s.keys[idx:])
		s.keys[idx] = k
	}
	s.data[k] = append([]byte{}, value...)
}

// Delete removes a key, if present.
func (s *Store) Delete(key []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := string(key)
	if _, exists := s.data[k]; !exists {
		return
	}
	delete(s.data, k)
	idx := sort.SearchStrings(s.keys, k)
	if idx < len(s.keys) && s.keys[idx] == k {
		s.keys = append(s.keys[:idx], s.keys[idx+1:]...)
	}
}

func (s *Store) Close() error { return nil }

func (s *Store) Get(_ context.Context, key []byte, _ bool) ([]byte, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.data[string(key)]
	if !ok {
		return nil, false, nil
	}
	return append([]byte{}, v...), true, nil
}

func (s *Store) Range(_ context.Context, begin, end []byte, _ bool) (kvstore.RangeIter, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	lo := sort.SearchStrings(s.keys, string(begin))
	hi := len(s.keys)
	if end != nil {
		hi = sort.Search(len(s.keys), func(i int) bool {
			return bytes.Compare([]byte(s.keys[i]), end) >= 0
		})
	}

	snapshot := make([]kvstore.KV, 0, hi-lo)
	for _, k := range s.keys[lo:hi] {
		snapshot = append(snapshot, kvstore.KV{Key: []byte(k), Value: append([]byte{}, s.data[k]...)})
	}
	return &iter{items: snapshot, pos: -1}, nil
}

func (s *Store) Begin(_ context.Context) (kvstore.Txn, error) {
	return &txn{store: s}, nil
}

type txn struct {
	store *Store
}

func (t *txn) Range(ctx context.Context, begin, end []byte, snapshot bool) (kvstore.RangeIter, error) {
	return t.store.Range(ctx, begin, end, snapshot)
}

func (t *txn) Get(ctx context.Context, key []byte, snapshot bool) ([]byte, bool, error) {
	return t.store.Get(ctx, key, snapshot)
}

func (t *txn) Commit(_ context.Context) error { return nil }
func (t *txn) Cancel(_ context.Context) error { return nil }

type iter struct {
	items []kvstore.KV
	pos   int
}

func (it *iter) Next(_ context.Context) bool {
	if it.pos+1 >= len(it.items) {
		return false
	}
	it.pos++
	return true
}

func (it *iter) KV() kvstore.KV { return it.items[it.pos] }
func (it *iter) Err() error     { return nil }
func (it *iter) Close() error   { return nil }
