package main

import (
	"context"
	"flag"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"solana-copy-trader/internal/classify"
	"solana-copy-trader/internal/config"
	"solana-copy-trader/internal/domain"
	"solana-copy-trader/internal/engine"
	"solana-copy-trader/internal/gateway"
	"solana-copy-trader/internal/metadata"
	"solana-copy-trader/internal/notify"
	"solana-copy-trader/internal/observability"
	"solana-copy-trader/internal/orchestrator"
	"solana-copy-trader/internal/price"
	"solana-copy-trader/internal/solana"
	"solana-copy-trader/internal/storage/migrations"
	"solana-copy-trader/internal/storage/postgres"
)

// stubPrice is the fill price used when execution is simulated.
const stubPrice = 0.001

func main() {
	configPath := flag.String("config", "config.yaml", "path to yaml config")
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

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.MetricsAddr != "" {
		go serveMetrics(cfg.MetricsAddr, logger)
	}

	pool, err := postgres.NewPool(ctx, cfg.PostgresDSN)
	if err != nil {
		logger.Fatal("connect postgres", zap.Error(err))
	}
	defer pool.Close()

	if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
		logger.Fatal("run migrations", zap.Error(err))
	}

	ledger := postgres.NewLedgerStore(pool)
	metadataStore := postgres.NewMetadataStore(pool)
	denyList := postgres.NewDenyListStore(pool)

	rpc := solana.NewHTTPClient(cfg.RPCURL)
	resolver := metadata.NewResolver(metadataStore,
		metadata.NewHTTPSource(cfg.MetadataURL, 10*time.Second), rpc, logger)

	var (
		oracle   price.Oracle
		gw       gateway.Gateway
		notifier notify.Notifier
	)
	if cfg.DryRun {
		logger.Info("dry run: simulated execution, log-only notifications")
		oracle = &price.FixedOracle{Price: stubPrice}
		gw = gateway.NewStubGateway(stubPrice)
		notifier = notify.NewLogNotifier(logger)
	} else {
		oracle = price.NewHTTPOracle(cfg.PriceURL, 10*time.Second)
		gw = gateway.NewHTTPGateway(cfg.GatewayURL, cfg.Wallet, logger)
		notifier = notify.NewTelegramNotifier(cfg.TelegramBotKey, cfg.TelegramChatID, logger)
	}

	policies := domain.NewPolicySet(cfg.Policies)
	eng := engine.New(engine.Config{
		Wallet:  cfg.Wallet,
		CanBuy:  cfg.CanBuy,
		CanSell: cfg.CanSell,
	}, ledger, denyList, resolver, oracle, gw, notifier, rpc, policies, logger)

	classifier := classify.NewClassifier(rpc, resolver, ledger, logger)

	orch := orchestrator.New(orchestrator.Options{
		Wallet:           cfg.Wallet,
		Classifier:       classifier,
		Engine:           eng,
		Ledger:           ledger,
		Notifier:         notifier,
		Logger:           logger,
		ClassifyInterval: cfg.ClassifyInterval,
		TradeInterval:    cfg.TradeInterval,
		AlertInterval:    cfg.AlertInterval,
	})

	ws, err := solana.NewWSClient(ctx, cfg.WSURL, nil)
	if err != nil {
		logger.Fatal("connect websocket", zap.Error(err))
	}
	defer ws.Close()

	for _, wallet := range policies.Wallets() {
		notifications, err := ws.SubscribeWalletLogs(ctx, wallet)
		if err != nil {
			logger.Fatal("subscribe wallet logs", zap.String("wallet", wallet), zap.Error(err))
		}
		logger.Info("monitoring wallet", zap.String("wallet", wallet))

		go func(wallet string, notifications <-chan solana.LogNotification) {
			for n := range notifications {
				observability.DefaultMetrics.SignaturesReceived.Inc()
				orch.EnqueueTx(n.Signature)
			}
		}(wallet, notifications)
	}

	go reportQueueDepths(ctx, orch)

	logger.Info("copy trader started",
		zap.String("wallet", cfg.Wallet),
		zap.Int("monitored_wallets", len(cfg.Policies)),
		zap.Bool("dry_run", cfg.DryRun))

	orch.Run(ctx)
	logger.Info("copy trader stopped")
}

func serveMetrics(addr string, logger *zap.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", observability.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	logger.Info("metrics server listening", zap.String("addr", addr))
	if err := http.ListenAndServe(addr, mux); err != nil && err != http.ErrServerClosed {
		logger.Error("metrics server", zap.Error(err))
	}
}

func reportQueueDepths(ctx context.Context, orch *orchestrator.Orchestrator) {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			observability.SetQueueDepths(orch.QueueDepths())
		}
	}
}
