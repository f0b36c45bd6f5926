package partstore

import (
	"context"
	"sync"
)

// MemoryStore is a Store backed by a map
type MemoryStore struct {
	mu    sync.RWMutex
	parts map[string]PartData
}

// NewMemoryStore creates an empty store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{parts: make(map[string]PartData)}
}

// Put stores a copy of part
func (s *MemoryStore) Put(ctx context.Context, part *PartData) error {
	if part.Checksum == "" {
		part.Checksum = Checksum(part.Data)
	}
	stored := *part
	stored.Data = append([]byte{}, part.Data...)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.parts[part.ContentID] = stored
	return nil
}

// Get returns a copy of a stored part
func (s *MemoryStore) Get(ctx context.Context, contentID string) (*PartData, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	stored, ok := s.parts[contentID]
	if !ok {
		return nil, notFound(contentID)
	}
	out := stored
	out.Data = append([]byte{}, stored.Data...)
	return &out, nil
}

// Exists reports whether a part is stored
func (s *MemoryStore) Exists(ctx context.Context, contentID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.parts[contentID]
	return ok, nil
}

// Delete removes a part
func (s *MemoryStore) Delete(ctx context.Context, contentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.parts[contentID]; !ok {
		return notFound(contentID)
	}
	delete(s.parts, contentID)
	return nil
}

// Len returns the number of stored parts
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.parts)
}

// Close is a no-op
func (s *MemoryStore) Close(ctx context.Context) error {
	return nil
}
