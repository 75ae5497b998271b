package storage

import (
	"context"

	"solana-copy-trader/internal/domain"
)

// BuyOp describes one buy applied to the ledger.
type BuyOp struct {
	Owner         string
	Asset         string
	Symbol        string
	BaseSpent     float64
	AssetReceived float64
	SourceWallet  string
	Dex           string
	TxID          string
	Time          int64 // Unix milliseconds
}

// SellOp describes one sell applied to the ledger.
type SellOp struct {
	Owner        string
	Asset        string
	Symbol       string
	AssetSold    float64
	BaseReceived float64
	SourceWallet string
	Dex          string
	TxID         string
	Time         int64 // Unix milliseconds
}

// Ledger is the transactional store of positions and processed-transaction
// records. Operations on the same (owner, asset) key serialize; the
// transaction entry and the position change commit atomically.
type Ledger interface {
	// ApplyBuy records the transaction entry and increments the position
	// balance. A TxID already recorded makes the call a no-op.
	ApplyBuy(ctx context.Context, op *BuyOp) error

	// ApplySell records the transaction entry and decrements the position
	// balance, deleting the position when the result is zero or below.
	// Returns ErrInsufficientPosition when no position exists. A TxID
	// already recorded makes the call a no-op.
	ApplySell(ctx context.Context, op *SellOp) error

	// GetPosition returns the position for (owner, asset) or ErrNotFound.
	GetPosition(ctx context.Context, owner, asset string) (*domain.Position, error)

	// SetBalance overwrites the position balance with an authoritative
	// value, deleting the position when balance is zero or below.
	SetBalance(ctx context.Context, owner, asset string, balance float64) error

	// ListPositions returns all positions held by the owner.
	ListPositions(ctx context.Context, owner string) ([]domain.Position, error)

	// GetNetFlow returns base spent minus base received trading the asset
	// by the owner over the half-open window [start, end) in Unix
	// milliseconds.
	GetNetFlow(ctx context.Context, owner, asset, baseAsset string, start, end int64) (float64, error)

	// HasTransaction reports whether the transaction is already recorded.
	HasTransaction(ctx context.Context, txID string) (bool, error)

	// RecordTransaction inserts a bare ledger entry without touching
	// positions. Returns ErrDuplicateKey when the TxID is already recorded.
	RecordTransaction(ctx context.Context, entry *domain.LedgerEntry) error

	// GetBaseVolume returns total base spent and received by the owner
	// across all assets over the half-open window [start, end).
	GetBaseVolume(ctx context.Context, owner, baseAsset string, start, end int64) (spent, received float64, err error)
}

// MetadataStore caches token metadata. Entries are never refreshed once
// written.
type MetadataStore interface {
	// Get returns the cached metadata for a mint or ErrNotFound.
	Get(ctx context.Context, mint string) (*domain.TokenMetadata, error)

	// Put stores metadata for a mint, overwriting any existing entry.
	Put(ctx context.Context, md *domain.TokenMetadata) error
}

// DenyListStore holds assets excluded from follow-buys.
type DenyListStore interface {
	// Contains reports whether the mint is denied.
	Contains(ctx context.Context, mint string) (bool, error)

	// Add puts a mint on the deny list.
	Add(ctx context.Context, mint string) error

	// Remove takes a mint off the deny list.
	Remove(ctx context.Context, mint string) error
}

// DailyBalanceStore persists per-day cumulative balance snapshots for
// settlement reporting.
type DailyBalanceStore interface {
	// Upsert writes one snapshot, replacing any existing (wallet, day) row.
	Upsert(ctx context.Context, b *domain.DailyBalance) error

	// Latest returns the most recent snapshot for the wallet or ErrNotFound.
	Latest(ctx context.Context, wallet string) (*domain.DailyBalance, error)

	// Range returns snapshots for the wallet between fromDay and toDay
	// inclusive, ordered by day.
	Range(ctx context.Context, wallet, fromDay, toDay string) ([]domain.DailyBalance, error)
}
