// Command settle runs the daily balance settlement once and exits. It is
// intended to run from cron shortly after midnight UTC.
package main

import (
	"context"
	"flag"
	"time"

	"go.uber.org/zap"

	"solana-copy-trader/internal/config"
	"solana-copy-trader/internal/settlement"
	"solana-copy-trader/internal/storage/clickhouse"
	"solana-copy-trader/internal/storage/migrations"
	"solana-copy-trader/internal/storage/postgres"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to yaml config")
	day := flag.String("day", "", "settle days strictly before this day (YYYY-MM-DD, default today UTC)")
	flag.Parse()

	logger, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}
	if cfg.ClickhouseDSN == "" {
		logger.Fatal("'clickhouse_dsn' is required for settlement")
	}

	upToDay := *day
	if upToDay == "" {
		upToDay = time.Now().UTC().Format(settlement.DayFormat)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	pool, err := postgres.NewPool(ctx, cfg.PostgresDSN)
	if err != nil {
		logger.Fatal("connect postgres", zap.Error(err))
	}
	defer pool.Close()

	conn, err := migrations.RunClickhouseMigrations(ctx, cfg.ClickhouseDSN)
	if err != nil {
		logger.Fatal("connect clickhouse", zap.Error(err))
	}
	defer conn.Close()

	ledger := postgres.NewLedgerStore(pool)
	store := clickhouse.NewDailyBalanceStore(conn)

	settler := settlement.New(cfg.Wallet, ledger, store, logger)
	written, err := settler.Run(ctx, upToDay)
	if err != nil {
		logger.Fatal("settlement failed", zap.Error(err))
	}

	logger.Info("settlement complete",
		zap.String("up_to", upToDay),
		zap.Int("days_written", written))
}
