package memory

import (
	"context"
	"sync"

	"solana-copy-trader/internal/domain"
	"solana-copy-trader/internal/storage"
)

// LedgerStore is an in-memory implementation of storage.Ledger.
type LedgerStore struct {
	mu        sync.RWMutex
	entries   map[string]*domain.LedgerEntry // keyed by tx signature
	positions map[string]*domain.Position    // keyed by owner|asset
}

// NewLedgerStore creates a new in-memory ledger.
func NewLedgerStore() *LedgerStore {
	return &LedgerStore{
		entries:   make(map[string]*domain.LedgerEntry),
		positions: make(map[string]*domain.Position),
	}
}

func positionKey(owner, asset string) string {
	return owner + "|" + asset
}

// ApplyBuy records the transaction and increments the position balance.
func (s *LedgerStore) ApplyBuy(_ context.Context, op *storage.BuyOp) error {
	if op == nil || op.TxID == "" || op.Owner == "" || op.Asset == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.entries[op.TxID]; exists {
		return nil
	}

	s.entries[op.TxID] = &domain.LedgerEntry{
		TxSignature: op.TxID,
		Wallet:      op.Owner,
		FromMint:    domain.WSOL,
		FromSymbol:  "SOL",
		FromAmount:  op.BaseSpent,
		ToMint:      op.Asset,
		ToSymbol:    op.Symbol,
		ToAmount:    op.AssetReceived,
		Dex:         op.Dex,
		BlockTime:   op.Time,
	}

	key := positionKey(op.Owner, op.Asset)
	if p, exists := s.positions[key]; exists {
		p.Balance += op.AssetReceived
		p.UpdateTime = op.Time
		return nil
	}
	s.positions[key] = &domain.Position{
		Wallet:       op.Owner,
		Mint:         op.Asset,
		Symbol:       op.Symbol,
		Balance:      op.AssetReceived,
		UpdateTime:   op.Time,
		SourceWallet: op.SourceWallet,
	}
	return nil
}

// ApplySell records the transaction and decrements the position balance,
// deleting the position on full exit.
func (s *LedgerStore) ApplySell(_ context.Context, op *storage.SellOp) error {
	if op == nil || op.TxID == "" || op.Owner == "" || op.Asset == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.entries[op.TxID]; exists {
		return nil
	}

	key := positionKey(op.Owner, op.Asset)
	p, exists := s.positions[key]
	if !exists {
		return storage.ErrInsufficientPosition
	}

	s.entries[op.TxID] = &domain.LedgerEntry{
		TxSignature: op.TxID,
		Wallet:      op.Owner,
		FromMint:    op.Asset,
		FromSymbol:  op.Symbol,
		FromAmount:  op.AssetSold,
		ToMint:      domain.WSOL,
		ToSymbol:    "SOL",
		ToAmount:    op.BaseReceived,
		Dex:         op.Dex,
		BlockTime:   op.Time,
	}

	p.Balance -= op.AssetSold
	p.UpdateTime = op.Time
	if p.Balance <= 0 {
		delete(s.positions, key)
	}
	return nil
}

// GetPosition retrieves one position. Returns ErrNotFound if absent.
func (s *LedgerStore) GetPosition(_ context.Context, owner, asset string) (*domain.Position, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, exists := s.positions[positionKey(owner, asset)]
	if !exists {
		return nil, storage.ErrNotFound
	}

	positionCopy := *p
	return &positionCopy, nil
}

// SetBalance overwrites the position balance with an authoritative value.
func (s *LedgerStore) SetBalance(_ context.Context, owner, asset string, balance float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := positionKey(owner, asset)
	if balance <= 0 {
		delete(s.positions, key)
		return nil
	}

	if p, exists := s.positions[key]; exists {
		p.Balance = balance
		return nil
	}
	s.positions[key] = &domain.Position{
		Wallet:  owner,
		Mint:    asset,
		Symbol:  domain.UnknownSymbol,
		Balance: balance,
	}
	return nil
}

// ListPositions returns all positions held by the owner.
func (s *LedgerStore) ListPositions(_ context.Context, owner string) ([]domain.Position, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []domain.Position
	for _, p := range s.positions {
		if p.Wallet == owner {
			result = append(result, *p)
		}
	}
	return result, nil
}

// GetNetFlow returns base spent minus base received trading the asset over
// the half-open window [start, end).
func (s *LedgerStore) GetNetFlow(_ context.Context, owner, asset, baseAsset string, start, end int64) (float64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var flow float64
	for _, e := range s.entries {
		if e.Wallet != owner || e.BlockTime < start || e.BlockTime >= end {
			continue
		}
		switch {
		case e.FromMint == baseAsset && e.ToMint == asset:
			flow += e.FromAmount
		case e.FromMint == asset && e.ToMint == baseAsset:
			flow -= e.ToAmount
		}
	}
	return flow, nil
}

// HasTransaction reports whether the transaction is already recorded.
func (s *LedgerStore) HasTransaction(_ context.Context, txID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, exists := s.entries[txID]
	return exists, nil
}

// RecordTransaction inserts a bare ledger entry without touching positions.
func (s *LedgerStore) RecordTransaction(_ context.Context, entry *domain.LedgerEntry) error {
	if entry == nil || entry.TxSignature == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.entries[entry.TxSignature]; exists {
		return storage.ErrDuplicateKey
	}

	entryCopy := *entry
	s.entries[entry.TxSignature] = &entryCopy
	return nil
}

// GetBaseVolume returns total base spent and received by the owner over
// the half-open window [start, end).
func (s *LedgerStore) GetBaseVolume(_ context.Context, owner, baseAsset string, start, end int64) (float64, float64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var spent, received float64
	for _, e := range s.entries {
		if e.Wallet != owner || e.BlockTime < start || e.BlockTime >= end {
			continue
		}
		if e.FromMint == baseAsset {
			spent += e.FromAmount
		}
		if e.ToMint == baseAsset {
			received += e.ToAmount
		}
	}
	return spent, received, nil
}

// Verify interface compliance at compile time.
var _ storage.Ledger = (*LedgerStore)(nil)
