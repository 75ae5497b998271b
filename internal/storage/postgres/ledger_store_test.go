package postgres_test

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solana-copy-trader/internal/domain"
	"solana-copy-trader/internal/storage"
	pgstore "solana-copy-trader/internal/storage/postgres"
)

func testBuyOp(txID string, amount float64, time int64) *storage.BuyOp {
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

func testSellOp(txID string, amount float64, time int64) *storage.SellOp {
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

func TestLedgerStore_BuySellRoundTrip(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := pgstore.NewLedgerStore(pool)
	ctx := context.Background()

	require.NoError(t, store.ApplyBuy(ctx, testBuyOp("tx1", 100, 1000)))

	p, err := store.GetPosition(ctx, "owner1", "mintA")
	require.NoError(t, err)
	assert.Equal(t, 100.0, p.Balance)
	assert.Equal(t, "source1", p.SourceWallet)
	assert.Equal(t, "TKA", p.Symbol)

	require.NoError(t, store.ApplySell(ctx, testSellOp("tx2", 40, 2000)))

	p, err = store.GetPosition(ctx, "owner1", "mintA")
	require.NoError(t, err)
	assert.Equal(t, 60.0, p.Balance)
	assert.Equal(t, int64(2000), p.UpdateTime)
}

func TestLedgerStore_IdempotentReplay(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := pgstore.NewLedgerStore(pool)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		require.NoError(t, store.ApplyBuy(ctx, testBuyOp("tx1", 100, 1000)))
	}
	require.NoError(t, store.ApplySell(ctx, testSellOp("tx2", 30, 2000)))
	for i := 0; i < 5; i++ {
		require.NoError(t, store.ApplySell(ctx, testSellOp("tx2", 30, 2000)))
	}

	p, err := store.GetPosition(ctx, "owner1", "mintA")
	require.NoError(t, err)
	assert.Equal(t, 70.0, p.Balance)
}

func TestLedgerStore_FullExitDeletesRow(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := pgstore.NewLedgerStore(pool)
	ctx := context.Background()

	require.NoError(t, store.ApplyBuy(ctx, testBuyOp("tx1", 100, 1000)))
	require.NoError(t, store.ApplySell(ctx, testSellOp("tx2", 100, 2000)))

	_, err := store.GetPosition(ctx, "owner1", "mintA")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	// Both transactions remain recorded.
	for _, txID := range []string{"tx1", "tx2"} {
		seen, err := store.HasTransaction(ctx, txID)
		require.NoError(t, err)
		assert.True(t, seen)
	}
}

func TestLedgerStore_SellWithoutPosition(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := pgstore.NewLedgerStore(pool)
	ctx := context.Background()

	err := store.ApplySell(ctx, testSellOp("tx1", 10, 1000))
	assert.ErrorIs(t, err, storage.ErrInsufficientPosition)

	seen, err := store.HasTransaction(ctx, "tx1")
	require.NoError(t, err)
	assert.False(t, seen, "failed sell must not consume the tx id")
}

func TestLedgerStore_ConcurrentBuysSameKey(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := pgstore.NewLedgerStore(pool)
	ctx := context.Background()

	const n = 20
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			op := testBuyOp("tx-"+string(rune('a'+i)), 10, int64(1000+i))
			errs[i] = store.ApplyBuy(ctx, op)
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		require.NoError(t, err, "buy %d failed", i)
	}

	p, err := store.GetPosition(ctx, "owner1", "mintA")
	require.NoError(t, err)
	assert.Equal(t, float64(n*10), p.Balance, "no lost updates under concurrency")
}

func TestLedgerStore_NetFlowWindow(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := pgstore.NewLedgerStore(pool)
	ctx := context.Background()

	b1 := testBuyOp("tx1", 10, 1000)
	b1.BaseSpent = 2.0
	require.NoError(t, store.ApplyBuy(ctx, b1))

	b2 := testBuyOp("tx2", 10, 2500)
	b2.BaseSpent = 3.0
	require.NoError(t, store.ApplyBuy(ctx, b2))

	s1 := testSellOp("tx3", 5, 3000)
	s1.BaseReceived = 1.5
	require.NoError(t, store.ApplySell(ctx, s1))

	// Entry at the end boundary is excluded.
	b3 := testBuyOp("tx4", 10, 4000)
	b3.BaseSpent = 9.0
	require.NoError(t, store.ApplyBuy(ctx, b3))

	flow, err := store.GetNetFlow(ctx, "owner1", "mintA", domain.WSOL, 1000, 4000)
	require.NoError(t, err)
	assert.InDelta(t, 2.0+3.0-1.5, flow, 1e-9)
}

func TestLedgerStore_SetBalanceCorrection(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := pgstore.NewLedgerStore(pool)
	ctx := context.Background()

	require.NoError(t, store.ApplyBuy(ctx, testBuyOp("tx1", 100, 1000)))
	require.NoError(t, store.SetBalance(ctx, "owner1", "mintA", 92.5))

	p, err := store.GetPosition(ctx, "owner1", "mintA")
	require.NoError(t, err)
	assert.Equal(t, 92.5, p.Balance)

	require.NoError(t, store.SetBalance(ctx, "owner1", "mintA", 0))
	_, err = store.GetPosition(ctx, "owner1", "mintA")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestLedgerStore_ListPositionsAndTransactions(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := pgstore.NewLedgerStore(pool)
	ctx := context.Background()

	opA := testBuyOp("tx1", 100, 1000)
	require.NoError(t, store.ApplyBuy(ctx, opA))

	opB := testBuyOp("tx2", 50, 2000)
	opB.Asset = "mintB"
	opB.Symbol = "TKB"
	require.NoError(t, store.ApplyBuy(ctx, opB))

	positions, err := store.ListPositions(ctx, "owner1")
	require.NoError(t, err)
	require.Len(t, positions, 2)
	assert.Equal(t, "mintA", positions[0].Mint)
	assert.Equal(t, "mintB", positions[1].Mint)

	entries, err := store.ListTransactions(ctx, "owner1", 0, 3000)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "tx1", entries[0].TxSignature)
}
