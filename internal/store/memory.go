package store

import (
	"context"
	"sync"
)

// MemoryStore keeps records in process memory, in insertion order.
type MemoryStore struct {
	mu      sync.RWMutex
	order   []string
	records map[string]Record
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]Record)}
}

// Save upserts the record; the last write wins.
func (m *MemoryStore) Save(ctx context.Context, rec Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.records[rec.ID]; !ok {
		m.order = append(m.order, rec.ID)
	}
	m.records[rec.ID] = rec.clone()
	return nil
}

// Get returns the record only when owner matches. A mismatch looks exactly
// like a missing id.
func (m *MemoryStore) Get(ctx context.Context, id, owner string) (Record, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.records[id]
	if !ok || rec.Owner != owner {
		return Record{}, false, nil
	}
	return rec.clone(), true, nil
}

func (m *MemoryStore) ListByOwner(ctx context.Context, owner string) ([]Record, error) {
	return m.filter(func(r Record) bool { return r.Owner == owner }), nil
}

func (m *MemoryStore) ListByStatus(ctx context.Context, status string) ([]Record, error) {
	return m.filter(func(r Record) bool { return r.Status == status }), nil
}

func (m *MemoryStore) filter(keep func(Record) bool) []Record {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := []Record{}
	for _, id := range m.order {
		if rec := m.records[id]; keep(rec) {
			out = append(out, rec.clone())
		}
	}
	return out
}

func (m *MemoryStore) Close() error {
	return nil
}
