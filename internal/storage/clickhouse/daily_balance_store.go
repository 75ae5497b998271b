package clickhouse

import (
	"context"
	"fmt"

	"solana-copy-trader/internal/domain"
	"solana-copy-trader/internal/storage"
)

// DailyBalanceStore implements storage.DailyBalanceStore using ClickHouse.
// The table uses ReplacingMergeTree keyed by (wallet, day), so Upsert is a
// plain insert and reads collapse duplicates with FINAL.
type DailyBalanceStore struct {
	conn *Conn
}

// NewDailyBalanceStore creates a new DailyBalanceStore.
func NewDailyBalanceStore(conn *Conn) *DailyBalanceStore {
	return &DailyBalanceStore{conn: conn}
}

// Compile-time interface check.
var _ storage.DailyBalanceStore = (*DailyBalanceStore)(nil)

// Upsert writes one snapshot, replacing any existing (wallet, day) row.
func (s *DailyBalanceStore) Upsert(ctx context.Context, b *domain.DailyBalance) error {
	if b == nil || b.Wallet == "" || b.Day == "" {
		return storage.ErrInvalidInput
	}

	err := s.conn.Exec(ctx,
		`INSERT INTO daily_balances (wallet, day, balance) VALUES (?, ?, ?)`,
		b.Wallet, b.Day, b.Balance,
	)
	if err != nil {
		return fmt.Errorf("insert daily balance: %w", err)
	}
	return nil
}

// Latest returns the most recent snapshot for the wallet.
func (s *DailyBalanceStore) Latest(ctx context.Context, wallet string) (*domain.DailyBalance, error) {
	rows, err := s.conn.Query(ctx,
		`SELECT wallet, day, balance
		 FROM daily_balances FINAL
		 WHERE wallet = ?
		 ORDER BY day DESC
		 LIMIT 1`,
		wallet,
	)
	if err != nil {
		return nil, fmt.Errorf("query latest daily balance: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("iterate daily balance rows: %w", err)
		}
		return nil, storage.ErrNotFound
	}

	var b domain.DailyBalance
	if err := rows.Scan(&b.Wallet, &b.Day, &b.Balance); err != nil {
		return nil, fmt.Errorf("scan daily balance row: %w", err)
	}
	return &b, nil
}

// Range returns snapshots between fromDay and toDay inclusive, ordered by day.
func (s *DailyBalanceStore) Range(ctx context.Context, wallet, fromDay, toDay string) ([]domain.DailyBalance, error) {
	rows, err := s.conn.Query(ctx,
		`SELECT wallet, day, balance
		 FROM daily_balances FINAL
		 WHERE wallet = ? AND day >= ? AND day <= ?
		 ORDER BY day ASC`,
		wallet, fromDay, toDay,
	)
	if err != nil {
		return nil, fmt.Errorf("query daily balance range: %w", err)
	}
	defer rows.Close()

	var balances []domain.DailyBalance
	for rows.Next() {
		var b domain.DailyBalance
		if err := rows.Scan(&b.Wallet, &b.Day, &b.Balance); err != nil {
			return nil, fmt.Errorf("scan daily balance row: %w", err)
		}
		balances = append(balances, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate daily balance rows: %w", err)
	}
	return balances, nil
}
