package memory

import (
	"context"
	"sync"

	"solana-copy-trader/internal/storage"
)

// DenyListStore is an in-memory implementation of storage.DenyListStore.
type DenyListStore struct {
	mu   sync.RWMutex
	data map[string]bool
}

// NewDenyListStore creates a new in-memory deny list.
func NewDenyListStore(mints ...string) *DenyListStore {
	s := &DenyListStore{data: make(map[string]bool)}
	for _, m := range mints {
		s.data[m] = true
	}
	return s
}

// Contains reports whether the mint is denied.
func (s *DenyListStore) Contains(_ context.Context, mint string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.data[mint], nil
}

// Add puts a mint on the deny list.
func (s *DenyListStore) Add(_ context.Context, mint string) error {
	if mint == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.data[mint] = true
	return nil
}

// Remove takes a mint off the deny list.
func (s *DenyListStore) Remove(_ context.Context, mint string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.data, mint)
	return nil
}

// Verify interface compliance at compile time.
var _ storage.DenyListStore = (*DenyListStore)(nil)
