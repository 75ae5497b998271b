package settlement

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"solana-copy-trader/internal/domain"
	"solana-copy-trader/internal/storage"
	"solana-copy-trader/internal/storage/memory"
)

const (
	wallet = "MyWaLLet111111111111111111111111111111111111"
	mint   = "TokenMint1111111111111111111111111111111111"
)

func snapshot(day string, balance float64) *domain.DailyBalance {
	return &domain.DailyBalance{Wallet: wallet, Day: day, Balance: balance}
}

func msAt(day string, hour int) int64 {
	t, err := time.ParseInLocation(DayFormat, day, time.UTC)
	if err != nil {
		panic(err)
	}
	return t.Add(time.Duration(hour) * time.Hour).UnixMilli()
}

func seedBuy(t *testing.T, ledger *memory.LedgerStore, txID string, spent float64, at int64) {
	t.Helper()
	require.NoError(t, ledger.ApplyBuy(context.Background(), &storage.BuyOp{
		Owner: wallet, Asset: mint, Symbol: "TKA",
		BaseSpent: spent, AssetReceived: spent * 1000,
		TxID: txID, Time: at,
	}))
}

func seedSell(t *testing.T, ledger *memory.LedgerStore, txID string, received float64, at int64) {
	t.Helper()
	require.NoError(t, ledger.ApplySell(context.Background(), &storage.SellOp{
		Owner: wallet, Asset: mint, Symbol: "TKA",
		AssetSold: received * 1000, BaseReceived: received,
		TxID: txID, Time: at,
	}))
}

func TestSettler_FirstRunBackfills(t *testing.T) {
	ledger := memory.NewLedgerStore()
	store := memory.NewDailyBalanceStore()
	ctx := context.Background()

	seedBuy(t, ledger, "b1", 0.5, msAt("2024-08-15", 10))
	seedBuy(t, ledger, "b2", 0.3, msAt("2024-08-15", 14))
	seedSell(t, ledger, "s1", 1.2, msAt("2024-08-17", 9))

	settler := New(wallet, ledger, store, zap.NewNop())
	written, err := settler.Run(ctx, "2024-08-18")
	require.NoError(t, err)

	// One month of days before the target, all snapshotted.
	assert.Equal(t, 31, written)

	snaps, err := store.Range(ctx, wallet, "2024-08-15", "2024-08-17")
	require.NoError(t, err)
	require.Len(t, snaps, 3)
	assert.InDelta(t, -0.8, snaps[0].Balance, 1e-9, "buys only")
	assert.InDelta(t, -0.8, snaps[1].Balance, 1e-9, "no activity carries forward")
	assert.InDelta(t, 0.4, snaps[2].Balance, 1e-9, "sell added")

	latest, err := store.Latest(ctx, wallet)
	require.NoError(t, err)
	assert.Equal(t, "2024-08-17", latest.Day, "target day itself is excluded")
}

func TestSettler_ResumesFromLatestSnapshot(t *testing.T) {
	ledger := memory.NewLedgerStore()
	store := memory.NewDailyBalanceStore()
	ctx := context.Background()

	require.NoError(t, store.Upsert(ctx, snapshot("2024-08-15", 2.0)))
	seedSell(t, ledger, "s1", 0.5, msAt("2024-08-16", 12))

	settler := New(wallet, ledger, store, zap.NewNop())
	written, err := settler.Run(ctx, "2024-08-18")
	require.NoError(t, err)
	assert.Equal(t, 2, written)

	snaps, err := store.Range(ctx, wallet, "2024-08-16", "2024-08-17")
	require.NoError(t, err)
	require.Len(t, snaps, 2)
	assert.InDelta(t, 2.5, snaps[0].Balance, 1e-9)
	assert.InDelta(t, 2.5, snaps[1].Balance, 1e-9)
}

func TestSettler_RerunIsNoOp(t *testing.T) {
	ledger := memory.NewLedgerStore()
	store := memory.NewDailyBalanceStore()
	ctx := context.Background()

	require.NoError(t, store.Upsert(ctx, snapshot("2024-08-17", 1.0)))

	settler := New(wallet, ledger, store, zap.NewNop())
	written, err := settler.Run(ctx, "2024-08-18")
	require.NoError(t, err)
	assert.Equal(t, 0, written)

	latest, err := store.Latest(ctx, wallet)
	require.NoError(t, err)
	assert.Equal(t, "2024-08-17", latest.Day)
	assert.InDelta(t, 1.0, latest.Balance, 1e-9)
}

func TestSettler_HalfOpenDayBoundary(t *testing.T) {
	ledger := memory.NewLedgerStore()
	store := memory.NewDailyBalanceStore()
	ctx := context.Background()

	require.NoError(t, store.Upsert(ctx, snapshot("2024-08-15", 0)))

	// Midnight belongs to the new day, not the one before it.
	seedBuy(t, ledger, "b1", 0.5, msAt("2024-08-17", 0))

	settler := New(wallet, ledger, store, zap.NewNop())
	_, err := settler.Run(ctx, "2024-08-18")
	require.NoError(t, err)

	snaps, err := store.Range(ctx, wallet, "2024-08-16", "2024-08-17")
	require.NoError(t, err)
	require.Len(t, snaps, 2)
	assert.InDelta(t, 0, snaps[0].Balance, 1e-9)
	assert.InDelta(t, -0.5, snaps[1].Balance, 1e-9)
}

func TestSettler_RejectsMalformedDay(t *testing.T) {
	settler := New(wallet, memory.NewLedgerStore(), memory.NewDailyBalanceStore(), zap.NewNop())

	_, err := settler.Run(context.Background(), "18-08-2024")
	assert.Error(t, err)
}
