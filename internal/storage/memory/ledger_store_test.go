package memory

import (
	"context"
	"errors"
	"testing"

	"solana-copy-trader/internal/domain"
	"solana-copy-trader/internal/storage"
)

func buyOp(txID string, amount float64, time int64) *storage.BuyOp {
	return &storage.BuyOp{
		Owner:         "owner1",
		Asset:         "mintA",
		Symbol:        "TKA",
		BaseSpent:     1.5,
		AssetReceived: amount,
		SourceWallet:  "source1",
		Dex:           "Jupiter V6",
		TxID:          txID,
		Time:          time,
	}
}

func sellOp(txID string, amount float64, time int64) *storage.SellOp {
	return &storage.SellOp{
		Owner:        "owner1",
		Asset:        "mintA",
		Symbol:       "TKA",
		AssetSold:    amount,
		BaseReceived: 0.8,
		Dex:          "Jupiter V6",
		TxID:         txID,
		Time:         time,
	}
}

func TestLedgerStore_ApplyBuyIdempotent(t *testing.T) {
	store := NewLedgerStore()
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := store.ApplyBuy(ctx, buyOp("tx1", 100, 1000)); err != nil {
			t.Fatalf("ApplyBuy failed: %v", err)
		}
	}

	p, err := store.GetPosition(ctx, "owner1", "mintA")
	if err != nil {
		t.Fatalf("GetPosition failed: %v", err)
	}
	if p.Balance != 100 {
		t.Errorf("Balance mismatch: got %f, want 100", p.Balance)
	}
}

func TestLedgerStore_ApplySellIdempotent(t *testing.T) {
	store := NewLedgerStore()
	ctx := context.Background()

	if err := store.ApplyBuy(ctx, buyOp("tx1", 100, 1000)); err != nil {
		t.Fatalf("ApplyBuy failed: %v", err)
	}
	for i := 0; i < 3; i++ {
		if err := store.ApplySell(ctx, sellOp("tx2", 40, 2000)); err != nil {
			t.Fatalf("ApplySell failed: %v", err)
		}
	}

	p, err := store.GetPosition(ctx, "owner1", "mintA")
	if err != nil {
		t.Fatalf("GetPosition failed: %v", err)
	}
	if p.Balance != 60 {
		t.Errorf("Balance mismatch: got %f, want 60", p.Balance)
	}
}

func TestLedgerStore_Conservation(t *testing.T) {
	store := NewLedgerStore()
	ctx := context.Background()

	buys := []float64{100, 50, 25}
	sells := []float64{30, 20}

	for i, amount := range buys {
		op := buyOp("buy"+string(rune('0'+i)), amount, int64(1000+i))
		if err := store.ApplyBuy(ctx, op); err != nil {
			t.Fatalf("ApplyBuy failed: %v", err)
		}
	}
	for i, amount := range sells {
		op := sellOp("sell"+string(rune('0'+i)), amount, int64(2000+i))
		if err := store.ApplySell(ctx, op); err != nil {
			t.Fatalf("ApplySell failed: %v", err)
		}
	}

	p, err := store.GetPosition(ctx, "owner1", "mintA")
	if err != nil {
		t.Fatalf("GetPosition failed: %v", err)
	}
	if p.Balance != 125 {
		t.Errorf("Balance mismatch: got %f, want 125", p.Balance)
	}
}

func TestLedgerStore_FullExitDeletesPosition(t *testing.T) {
	store := NewLedgerStore()
	ctx := context.Background()

	if err := store.ApplyBuy(ctx, buyOp("tx1", 100, 1000)); err != nil {
		t.Fatalf("ApplyBuy failed: %v", err)
	}
	if err := store.ApplySell(ctx, sellOp("tx2", 100, 2000)); err != nil {
		t.Fatalf("ApplySell failed: %v", err)
	}

	_, err := store.GetPosition(ctx, "owner1", "mintA")
	if !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Expected ErrNotFound after full exit, got %v", err)
	}
}

func TestLedgerStore_OversellDeletesPosition(t *testing.T) {
	store := NewLedgerStore()
	ctx := context.Background()

	if err := store.ApplyBuy(ctx, buyOp("tx1", 100, 1000)); err != nil {
		t.Fatalf("ApplyBuy failed: %v", err)
	}
	// Selling more than held clamps to deletion, never a negative balance.
	if err := store.ApplySell(ctx, sellOp("tx2", 150, 2000)); err != nil {
		t.Fatalf("ApplySell failed: %v", err)
	}

	_, err := store.GetPosition(ctx, "owner1", "mintA")
	if !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Expected ErrNotFound after oversell, got %v", err)
	}
}

func TestLedgerStore_SellWithoutPosition(t *testing.T) {
	store := NewLedgerStore()
	ctx := context.Background()

	err := store.ApplySell(ctx, sellOp("tx1", 10, 1000))
	if !errors.Is(err, storage.ErrInsufficientPosition) {
		t.Errorf("Expected ErrInsufficientPosition, got %v", err)
	}

	// The failed sell must not consume the tx id.
	seen, err := store.HasTransaction(ctx, "tx1")
	if err != nil {
		t.Fatalf("HasTransaction failed: %v", err)
	}
	if seen {
		t.Error("Failed sell should not record the transaction")
	}
}

func TestLedgerStore_NetFlowHalfOpenWindow(t *testing.T) {
	store := NewLedgerStore()
	ctx := context.Background()

	// Buys spend base, sells receive base. Times in unix ms.
	ops := []struct {
		txID  string
		buy   bool
		base  float64
		time  int64
	}{
		{"tx1", true, 2.0, 1000},
		{"tx2", true, 3.0, 2000},
		{"tx3", false, 1.5, 3000},
		{"tx4", true, 1.0, 4000}, // at end boundary, excluded
	}

	for _, op := range ops {
		if op.buy {
			b := buyOp(op.txID, 10, op.time)
			b.BaseSpent = op.base
			if err := store.ApplyBuy(ctx, b); err != nil {
				t.Fatalf("ApplyBuy failed: %v", err)
			}
		} else {
			s := sellOp(op.txID, 5, op.time)
			s.BaseReceived = op.base
			if err := store.ApplySell(ctx, s); err != nil {
				t.Fatalf("ApplySell failed: %v", err)
			}
		}
	}

	flow, err := store.GetNetFlow(ctx, "owner1", "mintA", domain.WSOL, 1000, 4000)
	if err != nil {
		t.Fatalf("GetNetFlow failed: %v", err)
	}
	want := 2.0 + 3.0 - 1.5
	if flow != want {
		t.Errorf("NetFlow mismatch: got %f, want %f", flow, want)
	}
}

func TestLedgerStore_SetBalance(t *testing.T) {
	store := NewLedgerStore()
	ctx := context.Background()

	if err := store.ApplyBuy(ctx, buyOp("tx1", 100, 1000)); err != nil {
		t.Fatalf("ApplyBuy failed: %v", err)
	}
	if err := store.SetBalance(ctx, "owner1", "mintA", 85); err != nil {
		t.Fatalf("SetBalance failed: %v", err)
	}

	p, err := store.GetPosition(ctx, "owner1", "mintA")
	if err != nil {
		t.Fatalf("GetPosition failed: %v", err)
	}
	if p.Balance != 85 {
		t.Errorf("Balance mismatch: got %f, want 85", p.Balance)
	}

	// Zero deletes.
	if err := store.SetBalance(ctx, "owner1", "mintA", 0); err != nil {
		t.Fatalf("SetBalance failed: %v", err)
	}
	_, err = store.GetPosition(ctx, "owner1", "mintA")
	if !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Expected ErrNotFound after zero balance, got %v", err)
	}
}

func TestLedgerStore_RecordTransactionDuplicate(t *testing.T) {
	store := NewLedgerStore()
	ctx := context.Background()

	entry := &domain.LedgerEntry{TxSignature: "tx1", Wallet: "owner1", Note: "irrelevant: no signer"}
	if err := store.RecordTransaction(ctx, entry); err != nil {
		t.Fatalf("RecordTransaction failed: %v", err)
	}
	err := store.RecordTransaction(ctx, entry)
	if !errors.Is(err, storage.ErrDuplicateKey) {
		t.Errorf("Expected ErrDuplicateKey, got %v", err)
	}
}

func TestLedgerStore_GetBaseVolume(t *testing.T) {
	store := NewLedgerStore()
	ctx := context.Background()

	b := buyOp("tx1", 10, 1000)
	b.BaseSpent = 2.5
	if err := store.ApplyBuy(ctx, b); err != nil {
		t.Fatalf("ApplyBuy failed: %v", err)
	}
	s := sellOp("tx2", 4, 2000)
	s.BaseReceived = 1.25
	if err := store.ApplySell(ctx, s); err != nil {
		t.Fatalf("ApplySell failed: %v", err)
	}

	spent, received, err := store.GetBaseVolume(ctx, "owner1", domain.WSOL, 0, 10000)
	if err != nil {
		t.Fatalf("GetBaseVolume failed: %v", err)
	}
	if spent != 2.5 {
		t.Errorf("Spent mismatch: got %f, want 2.5", spent)
	}
	if received != 1.25 {
		t.Errorf("Received mismatch: got %f, want 1.25", received)
	}
}
