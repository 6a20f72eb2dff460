package session

import (
	"context"
	"sync"
	"time"
)

type memoryEntry struct {
	data      []byte
	expiresAt time.Time
}

// MemoryStore keeps encoded records in process memory.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
	now     func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: map[string]memoryEntry{}, now: time.Now}
}

func (s *MemoryStore) Get(_ context.Context, id string) (*Record, error) {
	s.mu.RLock()
	entry, ok := s.entries[HashID(id)]
	s.mu.RUnlock()
	if !ok || !s.now().Before(entry.expiresAt) {
		return nil, ErrNotFound
	}
	return decodeRecord(id, entry.data)
}

func (s *MemoryStore) Save(_ context.Context, rec *Record) error {
	data, err := encodeRecord(rec)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.entries[HashID(rec.ID)] = memoryEntry{data: data, expiresAt: rec.ExpiresAt}
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	delete(s.entries, HashID(id))
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Sweep(_ context.Context, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for key, entry := range s.entries {
		if !now.Before(entry.expiresAt) {
			delete(s.entries, key)
			removed++
		}
	}
	return removed, nil
}

func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}
