package memory

import (
	"context"
	"sync"

	"solana-copy-trader/internal/domain"
	"solana-copy-trader/internal/storage"
)

// MetadataStore is an in-memory implementation of storage.MetadataStore.
type MetadataStore struct {
	mu   sync.RWMutex
	data map[string]*domain.TokenMetadata // keyed by mint
}

// NewMetadataStore creates a new in-memory metadata store.
func NewMetadataStore() *MetadataStore {
	return &MetadataStore{
		data: make(map[string]*domain.TokenMetadata),
	}
}

// Get retrieves metadata for a mint. Returns ErrNotFound if absent.
func (s *MetadataStore) Get(_ context.Context, mint string) (*domain.TokenMetadata, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	md, exists := s.data[mint]
	if !exists {
		return nil, storage.ErrNotFound
	}

	mdCopy := *md
	return &mdCopy, nil
}

// Put stores metadata for a mint, overwriting any existing entry.
func (s *MetadataStore) Put(_ context.Context, md *domain.TokenMetadata) error {
	if md == nil || md.Mint == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	mdCopy := *md
	s.data[md.Mint] = &mdCopy
	return nil
}

// Verify interface compliance at compile time.
var _ storage.MetadataStore = (*MetadataStore)(nil)
