// Package settlement computes end-of-day base-asset balance snapshots
// from the transaction ledger.
package settlement

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"solana-copy-trader/internal/domain"
	"solana-copy-trader/internal/storage"
)

// DayFormat is the snapshot day key, UTC.
const DayFormat = "2006-01-02"

// backfillWindow bounds the first run when no snapshot exists yet.
const backfillWindow = -1 // months

// Settler walks forward from the last daily snapshot, accumulating the
// wallet's net base-asset flow one day at a time.
type Settler struct {
	wallet string
	ledger storage.Ledger
	store  storage.DailyBalanceStore
	log    *zap.Logger
}

// New creates a Settler for the wallet.
func New(wallet string, ledger storage.Ledger, store storage.DailyBalanceStore, log *zap.Logger) *Settler {
	return &Settler{wallet: wallet, ledger: ledger, store: store, log: log}
}

// Run settles every day strictly before upToDay ("YYYY-MM-DD", UTC) that
// does not have a snapshot yet. It returns the number of days written.
// Re-running with the same arguments is a no-op.
func (s *Settler) Run(ctx context.Context, upToDay string) (int, error) {
	upTo, err := time.ParseInLocation(DayFormat, upToDay, time.UTC)
	if err != nil {
		return 0, fmt.Errorf("parse settlement day %q: %w", upToDay, err)
	}

	day, balance, err := s.resumePoint(ctx, upTo)
	if err != nil {
		return 0, err
	}

	written := 0
	for day.Before(upTo) {
		start := day.UnixMilli()
		end := day.AddDate(0, 0, 1).UnixMilli()

		spent, received, err := s.ledger.GetBaseVolume(ctx, s.wallet, domain.WSOL, start, end)
		if err != nil {
			return written, fmt.Errorf("base volume for %s: %w", day.Format(DayFormat), err)
		}
		balance = balance - spent + received

		snapshot := &domain.DailyBalance{
			Wallet:  s.wallet,
			Day:     day.Format(DayFormat),
			Balance: balance,
		}
		if err := s.store.Upsert(ctx, snapshot); err != nil {
			return written, fmt.Errorf("write snapshot for %s: %w", snapshot.Day, err)
		}
		written++

		s.log.Info("settled day",
			zap.String("day", snapshot.Day),
			zap.Float64("spent", spent),
			zap.Float64("received", received),
			zap.Float64("balance", balance))

		day = day.AddDate(0, 0, 1)
	}
	return written, nil
}

// resumePoint returns the first unsettled day and its opening balance.
// With no prior snapshot the walk starts one month back at zero.
func (s *Settler) resumePoint(ctx context.Context, upTo time.Time) (time.Time, float64, error) {
	latest, err := s.store.Latest(ctx, s.wallet)
	if errors.Is(err, storage.ErrNotFound) {
		return upTo.AddDate(0, backfillWindow, 0), 0, nil
	}
	if err != nil {
		return time.Time{}, 0, fmt.Errorf("read latest snapshot: %w", err)
	}

	last, err := time.ParseInLocation(DayFormat, latest.Day, time.UTC)
	if err != nil {
		return time.Time{}, 0, fmt.Errorf("parse latest snapshot day %q: %w", latest.Day, err)
	}
	return last.AddDate(0, 0, 1), latest.Balance, nil
}
