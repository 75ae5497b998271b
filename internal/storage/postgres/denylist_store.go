package postgres

import (
	"context"
	"fmt"

	"solana-copy-trader/internal/storage"
)

// DenyListStore implements storage.DenyListStore using PostgreSQL.
type DenyListStore struct {
	pool *Pool
}

// NewDenyListStore creates a new DenyListStore.
func NewDenyListStore(pool *Pool) *DenyListStore {
	return &DenyListStore{pool: pool}
}

// Compile-time interface check.
var _ storage.DenyListStore = (*DenyListStore)(nil)

// Contains reports whether the mint is denied.
func (s *DenyListStore) Contains(ctx context.Context, mint string) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM deny_list WHERE mint = $1)`,
		mint,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check deny list: %w", err)
	}
	return exists, nil
}

// Add puts a mint on the deny list.
func (s *DenyListStore) Add(ctx context.Context, mint string) error {
	if mint == "" {
		return storage.ErrInvalidInput
	}

	_, err := s.pool.Exec(ctx,
		`INSERT INTO deny_list (mint) VALUES ($1) ON CONFLICT (mint) DO NOTHING`,
		mint,
	)
	if err != nil {
		return fmt.Errorf("add to deny list: %w", err)
	}
	return nil
}

// Remove takes a mint off the deny list.
func (s *DenyListStore) Remove(ctx context.Context, mint string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM deny_list WHERE mint = $1`, mint)
	if err != nil {
		return fmt.Errorf("remove from deny list: %w", err)
	}
	return nil
}
