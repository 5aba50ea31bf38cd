package store

import (
	"context"
	"sort"
	"strings"
	"sync"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

// Memory implements ItemStore with an in-process map. Safe for
// concurrent use; WriteBatch is atomic under the store mutex.
type Memory struct {
	mu    sync.RWMutex
	items map[Key]Item
}

func NewMemory() *Memory {
	return &Memory{items: make(map[Key]Item)}
}

func (m *Memory) Put(_ context.Context, it Item) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[it.Key] = cloneItem(it)
	return nil
}

func (m *Memory) PutNew(_ context.Context, it Item) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.items[it.Key]; ok {
		return ErrItemExists
	}
	m.items[it.Key] = cloneItem(it)
	return nil
}

func (m *Memory) Update(_ context.Context, it Item) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.items[it.Key]; !ok {
		return ErrItemNotFound
	}
	m.items[it.Key] = cloneItem(it)
	return nil
}

func (m *Memory) Get(_ context.Context, k Key) (*Item, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	it, ok := m.items[k]
	if !ok {
		return nil, nil
	}
	out := cloneItem(it)
	return &out, nil
}

func (m *Memory) Delete(_ context.Context, k Key) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.items, k)
	return nil
}

func (m *Memory) DeleteExisting(_ context.Context, k Key) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.items[k]; !ok {
		return ErrItemNotFound
	}
	delete(m.items, k)
	return nil
}

func (m *Memory) Query(_ context.Context, partition, sortPrefix string) ([]Item, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []Item
	for k, it := range m.items {
		if k.Partition == partition && strings.HasPrefix(k.Sort, sortPrefix) {
			result = append(result, cloneItem(it))
		}
	}
	sortItems(result)
	return result, nil
}

func (m *Memory) ScanPrefix(_ context.Context, sortPrefix string) ([]Item, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []Item
	for k, it := range m.items {
		if strings.HasPrefix(k.Sort, sortPrefix) {
			result = append(result, cloneItem(it))
		}
	}
	sortItems(result)
	return result, nil
}

// WriteBatch applies all operations atomically. Conditional semantics
// are not part of batches: puts are upserts, deletes are idempotent.
func (m *Memory) WriteBatch(_ context.Context, ops []WriteOp) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, op := range ops {
		switch {
		case op.Put != nil:
			m.items[op.Put.Key] = cloneItem(*op.Put)
		case op.Delete != nil:
			delete(m.items, *op.Delete)
		}
	}
	return nil
}

func cloneItem(it Item) Item {
	out := Item{Key: it.Key}
	if it.Attrs != nil {
		out.Attrs = append([]byte(nil), it.Attrs...)
	}
	return out
}

func sortItems(items []Item) {
	sort.Slice(items, func(i, j int) bool {
		if items[i].Partition != items[j].Partition {
			return items[i].Partition < items[j].Partition
		}
		return items[i].Sort < items[j].Sort
	})
}
