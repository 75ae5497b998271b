package postgres

import (
	"context"
	"fmt"

	"solana-copy-trader/internal/domain"
	"solana-copy-trader/internal/storage"
)

// MetadataStore implements storage.MetadataStore using PostgreSQL.
type MetadataStore struct {
	pool *Pool
}

// NewMetadataStore creates a new MetadataStore.
func NewMetadataStore(pool *Pool) *MetadataStore {
	return &MetadataStore{pool: pool}
}

// Compile-time interface check.
var _ storage.MetadataStore = (*MetadataStore)(nil)

// Get retrieves metadata for a mint. Returns ErrNotFound if absent.
func (s *MetadataStore) Get(ctx context.Context, mint string) (*domain.TokenMetadata, error) {
	var md domain.TokenMetadata
	err := s.pool.QueryRow(ctx,
		`SELECT mint, name, symbol, decimals, supply, fetched_at
		 FROM token_metadata WHERE mint = $1`,
		mint,
	).Scan(&md.Mint, &md.Name, &md.Symbol, &md.Decimals, &md.Supply, &md.FetchedAt)
	if isNotFoundError(err) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get token metadata: %w", err)
	}
	return &md, nil
}

// Put stores metadata for a mint, overwriting any existing entry.
func (s *MetadataStore) Put(ctx context.Context, md *domain.TokenMetadata) error {
	if md == nil || md.Mint == "" {
		return storage.ErrInvalidInput
	}

	_, err := s.pool.Exec(ctx,
		`INSERT INTO token_metadata (mint, name, symbol, decimals, supply, fetched_at)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (mint) DO UPDATE SET
			name = EXCLUDED.name,
			symbol = EXCLUDED.symbol,
			decimals = EXCLUDED.decimals,
			supply = EXCLUDED.supply,
			fetched_at = EXCLUDED.fetched_at`,
		md.Mint, md.Name, md.Symbol, md.Decimals, md.Supply, md.FetchedAt,
	)
	if err != nil {
		return fmt.Errorf("put token metadata: %w", err)
	}
	return nil
}
