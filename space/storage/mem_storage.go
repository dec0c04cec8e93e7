package storage

import (
	"bytes"
	"context"
	"fmt"
	"sync"

	"github.com/petar/GoLLRB/llrb"
	"github.com/pingcap-incubator/tinysync/space/util/engine_util"
)

// MemStorage is a simple storage engine backed by memory. Data is not written to disk. It is intended for
// testing and local development only: every Reader copies the column families it is created over.
type MemStorage struct {
	mu       sync.RWMutex
	CfEntry  *llrb.LLRB
	CfChange *llrb.LLRB
	CfMeta   *llrb.LLRB
	// Writes counts successful calls to Write.
	Writes int
}

func NewMemStorage() *MemStorage {
	return &MemStorage{
		CfEntry:  llrb.New(),
		CfChange: llrb.New(),
		CfMeta:   llrb.New(),
	}
}

func (s *MemStorage) Start() error {
	return nil
}

func (s *MemStorage) Stop() error {
	return nil
}

func (s *MemStorage) Reader(ctx context.Context) (StorageReader, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return &memReader{
		entry:  cloneTree(s.CfEntry),
		change: cloneTree(s.CfChange),
		meta:   cloneTree(s.CfMeta),
	}, nil
}

func (s *MemStorage) Write(ctx context.Context, batch []Modify) error {
	for _, m := range batch {
		if s.tree(m.Cf()) == nil {
			return fmt.Errorf("mem-storage: bad CF %s", m.Cf())
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range batch {
		switch data := m.Data.(type) {
		case Put:
			s.tree(data.Cf).ReplaceOrInsert(memItem{data.Key, data.Value, false})
		case Delete:
			s.tree(data.Cf).Delete(memItem{key: data.Key})
		}
	}
	s.Writes++
	return nil
}

func (s *MemStorage) tree(cf string) *llrb.LLRB {
	switch cf {
	case engine_util.CfEntry:
		return s.CfEntry
	case engine_util.CfChange:
		return s.CfChange
	case engine_util.CfMeta:
		return s.CfMeta
	}
	return nil
}

// Get reads key from cf directly, bypassing readers. Used by tests.
func (s *MemStorage) Get(cf string, key []byte) []byte {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t := s.tree(cf)
	if t == nil {
		return nil
	}
	result := t.Get(memItem{key: key})
	if result == nil {
		return nil
	}
	return result.(memItem).value
}

// Set writes key into cf directly and marks it fresh. Used by tests.
func (s *MemStorage) Set(cf string, key []byte, value []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t := s.tree(cf); t != nil {
		t.ReplaceOrInsert(memItem{key, value, true})
	}
}

// HasChanged reports whether key in cf was written (or deleted) since it was last Set.
func (s *MemStorage) HasChanged(cf string, key []byte) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t := s.tree(cf)
	if t == nil {
		return false
	}
	result := t.Get(memItem{key: key})
	if result == nil {
		return true
	}
	return !result.(memItem).fresh
}

func (s *MemStorage) Len(cf string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if t := s.tree(cf); t != nil {
		return t.Len()
	}
	return -1
}

func cloneTree(src *llrb.LLRB) *llrb.LLRB {
	dst := llrb.New()
	if src.Len() == 0 {
		return dst
	}
	src.AscendGreaterOrEqual(src.Min(), func(item llrb.Item) bool {
		dst.InsertNoReplace(item)
		return true
	})
	return dst
}

// memReader is a StorageReader over a copy of a MemStorage.
type memReader struct {
	entry  *llrb.LLRB
	change *llrb.LLRB
	meta   *llrb.LLRB
}

func (mr *memReader) tree(cf string) *llrb.LLRB {
	switch cf {
	case engine_util.CfEntry:
		return mr.entry
	case engine_util.CfChange:
		return mr.change
	case engine_util.CfMeta:
		return mr.meta
	}
	return nil
}

func (mr *memReader) GetCF(cf string, key []byte) ([]byte, error) {
	t := mr.tree(cf)
	if t == nil {
		return nil, fmt.Errorf("mem-storage: bad CF %s", cf)
	}
	result := t.Get(memItem{key: key})
	if result == nil {
		return nil, nil
	}
	return result.(memItem).value, nil
}

func (mr *memReader) IterCF(cf string) engine_util.DBIterator {
	data := mr.tree(cf)
	if data == nil {
		data = llrb.New()
	}
	return &memIter{data: data}
}

func (mr *memReader) Close() {}

type memIter struct {
	data *llrb.LLRB
	item memItem
}

func (it *memIter) Item() engine_util.DBItem {
	return it.item
}

func (it *memIter) Valid() bool {
	return it.item.key != nil
}

func (it *memIter) Next() {
	first := true
	oldItem := it.item
	it.item = memItem{}
	it.data.AscendGreaterOrEqual(oldItem, func(item llrb.Item) bool {
		// Skip the first item, which will be it.item
		if first {
			first = false
			return true
		}

		it.item = item.(memItem)
		return false
	})
}

func (it *memIter) Seek(key []byte) {
	it.item = memItem{}
	it.data.AscendGreaterOrEqual(memItem{key: key}, func(item llrb.Item) bool {
		it.item = item.(memItem)
		return false
	})
}

func (it *memIter) Close() {}

type memItem struct {
	key   []byte
	value []byte
	fresh bool
}

func (it memItem) Key() []byte {
	return it.key
}

func (it memItem) KeyCopy(dst []byte) []byte {
	return append(dst[:0], it.key...)
}

func (it memItem) Value() ([]byte, error) {
	return it.value, nil
}

func (it memItem) ValueCopy(dst []byte) ([]byte, error) {
	return append(dst[:0], it.value...), nil
}

func (it memItem) Less(than llrb.Item) bool {
	other := than.(memItem)
	return bytes.Compare(it.key, other.key) < 0
}
