package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"solana-copy-trader/internal/domain"
	"solana-copy-trader/internal/storage"
)

// LedgerStore implements storage.Ledger using PostgreSQL. Buy and sell
// operations run inside one transaction and lock the position row with
// SELECT ... FOR UPDATE so concurrent mutations of the same (wallet, mint)
// key serialize.
type LedgerStore struct {
	pool *Pool
}

// NewLedgerStore creates a new LedgerStore.
func NewLedgerStore(pool *Pool) *LedgerStore {
	return &LedgerStore{pool: pool}
}

// Compile-time interface check.
var _ storage.Ledger = (*LedgerStore)(nil)

const insertEntryQuery = `
	INSERT INTO transactions (
		tx_signature, wallet, from_mint, from_symbol, from_amount,
		to_mint, to_symbol, to_amount, dex, block_time, note
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
`

// ApplyBuy records the transaction entry and increments the position
// balance atomically. An already-recorded tx signature makes it a no-op.
func (s *LedgerStore) ApplyBuy(ctx context.Context, op *storage.BuyOp) error {
	if op == nil || op.TxID == "" || op.Owner == "" || op.Asset == "" {
		return storage.ErrInvalidInput
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, insertEntryQuery,
		op.TxID, op.Owner, domain.WSOL, "SOL", op.BaseSpent,
		op.Asset, op.Symbol, op.AssetReceived, op.Dex, op.Time, "",
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return nil
		}
		return fmt.Errorf("insert buy entry: %w", err)
	}

	var balance float64
	err = tx.QueryRow(ctx,
		`SELECT balance FROM positions WHERE wallet = $1 AND mint = $2 FOR UPDATE`,
		op.Owner, op.Asset,
	).Scan(&balance)
	switch {
	case isNotFoundError(err):
		_, err = tx.Exec(ctx,
			`INSERT INTO positions (wallet, mint, symbol, balance, update_time, source_wallet)
			 VALUES ($1, $2, $3, $4, $5, $6)`,
			op.Owner, op.Asset, op.Symbol, op.AssetReceived, op.Time, op.SourceWallet,
		)
		if err != nil {
			return fmt.Errorf("insert position: %w", err)
		}
	case err != nil:
		return fmt.Errorf("lock position: %w", err)
	default:
		_, err = tx.Exec(ctx,
			`UPDATE positions SET balance = $3, update_time = $4 WHERE wallet = $1 AND mint = $2`,
			op.Owner, op.Asset, balance+op.AssetReceived, op.Time,
		)
		if err != nil {
			return fmt.Errorf("update position: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit buy: %w", err)
	}
	return nil
}

// ApplySell records the transaction entry and decrements the position
// balance atomically, deleting the position row on full exit.
func (s *LedgerStore) ApplySell(ctx context.Context, op *storage.SellOp) error {
	if op == nil || op.TxID == "" || op.Owner == "" || op.Asset == "" {
		return storage.ErrInvalidInput
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var exists bool
	err = tx.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM transactions WHERE tx_signature = $1)`,
		op.TxID,
	).Scan(&exists)
	if err != nil {
		return fmt.Errorf("check sell entry: %w", err)
	}
	if exists {
		return nil
	}

	var balance float64
	err = tx.QueryRow(ctx,
		`SELECT balance FROM positions WHERE wallet = $1 AND mint = $2 FOR UPDATE`,
		op.Owner, op.Asset,
	).Scan(&balance)
	if isNotFoundError(err) {
		return storage.ErrInsufficientPosition
	}
	if err != nil {
		return fmt.Errorf("lock position: %w", err)
	}

	_, err = tx.Exec(ctx, insertEntryQuery,
		op.TxID, op.Owner, op.Asset, op.Symbol, op.AssetSold,
		domain.WSOL, "SOL", op.BaseReceived, op.Dex, op.Time, "",
	)
	if err != nil {
		return fmt.Errorf("insert sell entry: %w", err)
	}

	remaining := balance - op.AssetSold
	if remaining <= 0 {
		_, err = tx.Exec(ctx,
			`DELETE FROM positions WHERE wallet = $1 AND mint = $2`,
			op.Owner, op.Asset,
		)
		if err != nil {
			return fmt.Errorf("delete position: %w", err)
		}
	} else {
		_, err = tx.Exec(ctx,
			`UPDATE positions SET balance = $3, update_time = $4 WHERE wallet = $1 AND mint = $2`,
			op.Owner, op.Asset, remaining, op.Time,
		)
		if err != nil {
			return fmt.Errorf("update position: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit sell: %w", err)
	}
	return nil
}

// GetPosition retrieves one position. Returns ErrNotFound if absent.
func (s *LedgerStore) GetPosition(ctx context.Context, owner, asset string) (*domain.Position, error) {
	var p domain.Position
	err := s.pool.QueryRow(ctx,
		`SELECT wallet, mint, symbol, balance, update_time, source_wallet
		 FROM positions WHERE wallet = $1 AND mint = $2`,
		owner, asset,
	).Scan(&p.Wallet, &p.Mint, &p.Symbol, &p.Balance, &p.UpdateTime, &p.SourceWallet)
	if isNotFoundError(err) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get position: %w", err)
	}
	return &p, nil
}

// SetBalance overwrites the position balance with an authoritative value,
// deleting the row when the balance is zero or below.
func (s *LedgerStore) SetBalance(ctx context.Context, owner, asset string, balance float64) error {
	if balance <= 0 {
		_, err := s.pool.Exec(ctx,
			`DELETE FROM positions WHERE wallet = $1 AND mint = $2`,
			owner, asset,
		)
		if err != nil {
			return fmt.Errorf("delete position: %w", err)
		}
		return nil
	}

	_, err := s.pool.Exec(ctx,
		`INSERT INTO positions (wallet, mint, symbol, balance, update_time, source_wallet)
		 VALUES ($1, $2, $3, $4, 0, '')
		 ON CONFLICT (wallet, mint) DO UPDATE SET balance = EXCLUDED.balance`,
		owner, asset, domain.UnknownSymbol, balance,
	)
	if err != nil {
		return fmt.Errorf("set balance: %w", err)
	}
	return nil
}

// ListPositions returns all positions held by the owner.
func (s *LedgerStore) ListPositions(ctx context.Context, owner string) ([]domain.Position, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT wallet, mint, symbol, balance, update_time, source_wallet
		 FROM positions WHERE wallet = $1 ORDER BY mint ASC`,
		owner,
	)
	if err != nil {
		return nil, fmt.Errorf("list positions: %w", err)
	}
	defer rows.Close()

	var positions []domain.Position
	for rows.Next() {
		var p domain.Position
		if err := rows.Scan(&p.Wallet, &p.Mint, &p.Symbol, &p.Balance, &p.UpdateTime, &p.SourceWallet); err != nil {
			return nil, fmt.Errorf("scan position row: %w", err)
		}
		positions = append(positions, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate position rows: %w", err)
	}
	return positions, nil
}

// GetNetFlow returns base spent minus base received trading the asset over
// the half-open window [start, end) in unix milliseconds.
func (s *LedgerStore) GetNetFlow(ctx context.Context, owner, asset, baseAsset string, start, end int64) (float64, error) {
	var flow float64
	err := s.pool.QueryRow(ctx,
		`SELECT COALESCE(SUM(
			CASE
				WHEN from_mint = $3 AND to_mint = $2 THEN from_amount
				WHEN from_mint = $2 AND to_mint = $3 THEN -to_amount
				ELSE 0
			END), 0)
		 FROM transactions
		 WHERE wallet = $1 AND block_time >= $4 AND block_time < $5`,
		owner, asset, baseAsset, start, end,
	).Scan(&flow)
	if err != nil {
		return 0, fmt.Errorf("get net flow: %w", err)
	}
	return flow, nil
}

// HasTransaction reports whether the transaction is already recorded.
func (s *LedgerStore) HasTransaction(ctx context.Context, txID string) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM transactions WHERE tx_signature = $1)`,
		txID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check transaction: %w", err)
	}
	return exists, nil
}

// RecordTransaction inserts a bare ledger entry without touching positions.
func (s *LedgerStore) RecordTransaction(ctx context.Context, entry *domain.LedgerEntry) error {
	if entry == nil || entry.TxSignature == "" {
		return storage.ErrInvalidInput
	}

	_, err := s.pool.Exec(ctx, insertEntryQuery,
		entry.TxSignature, entry.Wallet, entry.FromMint, entry.FromSymbol, entry.FromAmount,
		entry.ToMint, entry.ToSymbol, entry.ToAmount, entry.Dex, entry.BlockTime, entry.Note,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("record transaction: %w", err)
	}
	return nil
}

// GetBaseVolume returns total base spent and received by the owner over
// the half-open window [start, end).
func (s *LedgerStore) GetBaseVolume(ctx context.Context, owner, baseAsset string, start, end int64) (float64, float64, error) {
	var spent, received float64
	err := s.pool.QueryRow(ctx,
		`SELECT
			COALESCE(SUM(CASE WHEN from_mint = $2 THEN from_amount ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN to_mint = $2 THEN to_amount ELSE 0 END), 0)
		 FROM transactions
		 WHERE wallet = $1 AND block_time >= $3 AND block_time < $4`,
		owner, baseAsset, start, end,
	).Scan(&spent, &received)
	if err != nil {
		return 0, 0, fmt.Errorf("get base volume: %w", err)
	}
	return spent, received, nil
}

// scanEntries scans transaction rows.
func scanEntries(rows pgx.Rows) ([]domain.LedgerEntry, error) {
	var entries []domain.LedgerEntry
	for rows.Next() {
		var e domain.LedgerEntry
		err := rows.Scan(
			&e.TxSignature, &e.Wallet, &e.FromMint, &e.FromSymbol, &e.FromAmount,
			&e.ToMint, &e.ToSymbol, &e.ToAmount, &e.Dex, &e.BlockTime, &e.Note,
		)
		if err != nil {
			return nil, fmt.Errorf("scan transaction row: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transaction rows: %w", err)
	}
	return entries, nil
}

// ListTransactions returns the owner's entries in the half-open window
// [start, end), ordered by block time.
func (s *LedgerStore) ListTransactions(ctx context.Context, owner string, start, end int64) ([]domain.LedgerEntry, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT tx_signature, wallet, from_mint, from_symbol, from_amount,
		        to_mint, to_symbol, to_amount, dex, block_time, note
		 FROM transactions
		 WHERE wallet = $1 AND block_time >= $2 AND block_time < $3
		 ORDER BY block_time ASC`,
		owner, start, end,
	)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	return scanEntries(rows)
}
