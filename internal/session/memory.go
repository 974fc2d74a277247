package session

import (
	"context"
	"sort"
	"sync"
)

// MemoryStore keeps sessions in process memory, encoded as JSON so callers
// never share mutable state with the store.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string][]byte
}

// NewMemoryStore creates an empty memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records: make(map[string][]byte),
	}
}

// Create stores a new session
func (m *MemoryStore) Create(_ context.Context, s *Session) error {
	if s == nil || s.ID == "" {
		return ErrInvalidID
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.records[s.ID]; ok {
		return ErrExists
	}
	return m.put(s)
}

// Get returns a copy of a session
func (m *MemoryStore) Get(_ context.Context, id string) (*Session, error) {
	m.mu.RLock()
	data, ok := m.records[id]
	m.mu.RUnlock()

	if !ok {
		return nil, ErrNotFound
	}
	return Unmarshal(data)
}

// Save upserts a session
func (m *MemoryStore) Save(_ context.Context, s *Session) error {
	if s == nil || s.ID == "" {
		return ErrInvalidID
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	return m.put(s)
}

// Update applies fn under the store lock
func (m *MemoryStore) Update(_ context.Context, id string, fn func(s *Session) error) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	data, ok := m.records[id]
	if !ok {
		return nil, ErrNotFound
	}

	s, err := Unmarshal(data)
	if err != nil {
		return nil, err
	}

	if err := fn(s); err != nil {
		return nil, err
	}

	s.ID = id
	if err := m.put(s); err != nil {
		return nil, err
	}
	return s, nil
}

// Delete removes a session
func (m *MemoryStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.records, id)
	return nil
}

// List returns all sessions ordered by creation time
func (m *MemoryStore) List(_ context.Context) ([]*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*Session, 0, len(m.records))
	for _, data := range m.records {
		s, err := Unmarshal(data)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})

	return out, nil
}

// Ping always succeeds
func (m *MemoryStore) Ping(context.Context) error {
	return nil
}

// put must be called with the write lock held
func (m *MemoryStore) put(s *Session) error {
	touch(s)
	data, err := Marshal(s)
	if err != nil {
		return err
	}
	m.records[s.ID] = data
	return nil
}

var _ Store = (*MemoryStore)(nil)
