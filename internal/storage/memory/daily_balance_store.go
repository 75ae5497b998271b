package memory

import (
	"context"
	"sort"
	"sync"

	"solana-copy-trader/internal/domain"
	"solana-copy-trader/internal/storage"
)

// DailyBalanceStore is an in-memory implementation of storage.DailyBalanceStore.
type DailyBalanceStore struct {
	mu   sync.RWMutex
	data map[string]*domain.DailyBalance // keyed by wallet|day
}

// NewDailyBalanceStore creates a new in-memory daily balance store.
func NewDailyBalanceStore() *DailyBalanceStore {
	return &DailyBalanceStore{
		data: make(map[string]*domain.DailyBalance),
	}
}

// Upsert writes one snapshot, replacing any existing (wallet, day) row.
func (s *DailyBalanceStore) Upsert(_ context.Context, b *domain.DailyBalance) error {
	if b == nil || b.Wallet == "" || b.Day == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	balanceCopy := *b
	s.data[b.Wallet+"|"+b.Day] = &balanceCopy
	return nil
}

// Latest returns the most recent snapshot for the wallet.
func (s *DailyBalanceStore) Latest(_ context.Context, wallet string) (*domain.DailyBalance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var latest *domain.DailyBalance
	for _, b := range s.data {
		if b.Wallet != wallet {
			continue
		}
		if latest == nil || b.Day > latest.Day {
			latest = b
		}
	}
	if latest == nil {
		return nil, storage.ErrNotFound
	}

	balanceCopy := *latest
	return &balanceCopy, nil
}

// Range returns snapshots between fromDay and toDay inclusive, ordered by day.
func (s *DailyBalanceStore) Range(_ context.Context, wallet, fromDay, toDay string) ([]domain.DailyBalance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []domain.DailyBalance
	for _, b := range s.data {
		if b.Wallet == wallet && b.Day >= fromDay && b.Day <= toDay {
			result = append(result, *b)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Day < result[j].Day })
	return result, nil
}

// Verify interface compliance at compile time.
var _ storage.DailyBalanceStore = (*DailyBalanceStore)(nil)
