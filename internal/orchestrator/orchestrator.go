// Package orchestrator runs the copy-trading pipeline.
// It coordinates: classification → trade decision → notification
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"solana-copy-trader/internal/classify"
	"solana-copy-trader/internal/domain"
	"solana-copy-trader/internal/notify"
	"solana-copy-trader/internal/observability"
	"solana-copy-trader/internal/storage"
)

// Default loop timing.
const (
	DefaultClassifyInterval = 500 * time.Millisecond
	DefaultTradeInterval    = 500 * time.Millisecond
	DefaultAlertInterval    = time.Second
	DefaultBackoffBase      = time.Second
	DefaultBackoffCap       = 30 * time.Second
	DefaultQueueSize        = 1024
)

// Classifier turns one transaction signature into an outcome. A non-nil
// error is transient and retried.
type Classifier interface {
	Process(ctx context.Context, signature string) (*classify.Outcome, error)
}

// Engine consumes classified swaps.
type Engine interface {
	HandleSwap(ctx context.Context, swap *domain.ClassifiedSwap) error
}

// Orchestrator runs three single-consumer loops over in-process queues:
// classification, trade decision, and transfer alerting. Each stage pulls
// at most one item per tick, so there is at most one in-flight evaluation
// per stage.
type Orchestrator struct {
	wallet     string
	classifier Classifier
	engine     Engine
	ledger     storage.Ledger
	notifier   notify.Notifier
	log        *zap.Logger

	classifyInterval time.Duration
	tradeInterval    time.Duration
	alertInterval    time.Duration
	backoffBase      time.Duration
	backoffCap       time.Duration

	txCh       chan string
	swapCh     chan *domain.ClassifiedSwap
	transferCh chan *domain.TransferEvent
}

// Options for creating Orchestrator.
type Options struct {
	// Wallet is the operator wallet, used to decide transfer relevance.
	Wallet     string
	Classifier Classifier
	Engine     Engine
	Ledger     storage.Ledger
	Notifier   notify.Notifier
	Logger     *zap.Logger

	// Loop timing; zero values take the package defaults.
	ClassifyInterval time.Duration
	TradeInterval    time.Duration
	AlertInterval    time.Duration
	BackoffBase      time.Duration
	BackoffCap       time.Duration
	QueueSize        int
}

// New creates a new Orchestrator.
func New(opts Options) *Orchestrator {
	if opts.ClassifyInterval <= 0 {
		opts.ClassifyInterval = DefaultClassifyInterval
	}
	if opts.TradeInterval <= 0 {
		opts.TradeInterval = DefaultTradeInterval
	}
	if opts.AlertInterval <= 0 {
		opts.AlertInterval = DefaultAlertInterval
	}
	if opts.BackoffBase <= 0 {
		opts.BackoffBase = DefaultBackoffBase
	}
	if opts.BackoffCap <= 0 {
		opts.BackoffCap = DefaultBackoffCap
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = DefaultQueueSize
	}

	return &Orchestrator{
		wallet:           opts.Wallet,
		classifier:       opts.Classifier,
		engine:           opts.Engine,
		ledger:           opts.Ledger,
		notifier:         opts.Notifier,
		log:              opts.Logger,
		classifyInterval: opts.ClassifyInterval,
		tradeInterval:    opts.TradeInterval,
		alertInterval:    opts.AlertInterval,
		backoffBase:      opts.BackoffBase,
		backoffCap:       opts.BackoffCap,
		txCh:             make(chan string, opts.QueueSize),
		swapCh:           make(chan *domain.ClassifiedSwap, opts.QueueSize),
		transferCh:       make(chan *domain.TransferEvent, opts.QueueSize),
	}
}

// EnqueueTx queues a transaction signature for classification. Returns
// false when the queue is saturated and the signature was dropped.
func (o *Orchestrator) EnqueueTx(signature string) bool {
	select {
	case o.txCh <- signature:
		return true
	default:
		o.log.Warn("classification queue full, dropping signature",
			zap.String("tx", signature))
		return false
	}
}

// EnqueueSwap queues a classified swap for the trade-decision loop.
func (o *Orchestrator) EnqueueSwap(swap *domain.ClassifiedSwap) bool {
	select {
	case o.swapCh <- swap:
		return true
	default:
		o.log.Warn("trade queue full, dropping swap", zap.String("tx", swap.TxSignature))
		return false
	}
}

// EnqueueTransfer queues a transfer event for the alert loop.
func (o *Orchestrator) EnqueueTransfer(ev *domain.TransferEvent) bool {
	select {
	case o.transferCh <- ev:
		return true
	default:
		o.log.Warn("alert queue full, dropping transfer", zap.String("tx", ev.TxSignature))
		return false
	}
}

// QueueDepths reports the current length of each queue, for metrics.
func (o *Orchestrator) QueueDepths() (classification, trade, alert int) {
	return len(o.txCh), len(o.swapCh), len(o.transferCh)
}

// Run starts all three loops and blocks until ctx is cancelled. No
// pending work is flushed on shutdown.
func (o *Orchestrator) Run(ctx context.Context) {
	var wg sync.WaitGroup
	wg.Add(3)
	go func() {
		defer wg.Done()
		o.classificationLoop(ctx)
	}()
	go func() {
		defer wg.Done()
		o.tradeLoop(ctx)
	}()
	go func() {
		defer wg.Done()
		o.alertLoop(ctx)
	}()
	wg.Wait()
}

// classificationLoop pops one pending signature per tick, classifies it,
// and routes the outcome. A transient error keeps the same item at the
// head and doubles the wait up to the cap; success resets the backoff.
func (o *Orchestrator) classificationLoop(ctx context.Context) {
	wait := o.classifyInterval
	var pending string
	havePending := false

	for {
		select {
		case <-ctx.Done():
			return
		case <-time.After(wait):
		}

		if !havePending {
			select {
			case pending = <-o.txCh:
				havePending = true
			default:
				wait = o.classifyInterval
				continue
			}
		}

		outcome, err := o.classifier.Process(ctx, pending)
		if err != nil {
			observability.DefaultMetrics.ClassificationRetries.Inc()
			if wait < o.backoffBase {
				wait = o.backoffBase
			} else {
				wait *= 2
				if wait > o.backoffCap {
					wait = o.backoffCap
				}
			}
			o.log.Warn("classification failed, backing off",
				zap.String("tx", pending),
				zap.Duration("wait", wait),
				zap.Error(err))
			continue
		}

		observability.RecordClassified(outcome.Kind.String())
		observability.DefaultMetrics.LastSuccessfulClassification.SetToCurrentTime()

		o.route(ctx, outcome)
		havePending = false
		wait = o.classifyInterval
	}
}

// route forwards a classified outcome to its downstream queue. Sends
// block so no classified item is lost; each downstream stage has a
// single consumer draining it.
func (o *Orchestrator) route(ctx context.Context, outcome *classify.Outcome) {
	switch outcome.Kind {
	case classify.KindSwap:
		select {
		case o.swapCh <- outcome.Swap:
		case <-ctx.Done():
		}
	case classify.KindTransfer:
		select {
		case o.transferCh <- outcome.Transfer:
		case <-ctx.Done():
		}
	case classify.KindIrrelevant:
		o.log.Debug("transaction irrelevant", zap.String("reason", outcome.Reason))
	case classify.KindDuplicate:
		o.log.Debug("transaction already processed")
	}
}

// tradeLoop feeds one classified swap per tick to the decision engine.
// Failures are logged and the loop continues at the fixed interval, so a
// poisoned swap never blocks the ones behind it.
func (o *Orchestrator) tradeLoop(ctx context.Context) {
	ticker := time.NewTicker(o.tradeInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		select {
		case swap := <-o.swapCh:
			if err := o.engine.HandleSwap(ctx, swap); err != nil {
				o.log.Error("trade decision failed",
					zap.String("tx", swap.TxSignature),
					zap.Error(err))
			}
		default:
		}
	}
}

// alertLoop notifies the operator when a monitored wallet transfers out a
// token we currently hold.
func (o *Orchestrator) alertLoop(ctx context.Context) {
	ticker := time.NewTicker(o.alertInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		select {
		case ev := <-o.transferCh:
			o.handleTransfer(ctx, ev)
		default:
		}
	}
}

func (o *Orchestrator) handleTransfer(ctx context.Context, ev *domain.TransferEvent) {
	_, err := o.ledger.GetPosition(ctx, o.wallet, ev.Mint)
	if errors.Is(err, storage.ErrNotFound) {
		return
	}
	if err != nil {
		o.log.Error("transfer alert position lookup failed",
			zap.String("mint", ev.Mint), zap.Error(err))
		return
	}

	o.notifier.Notify(ctx, fmt.Sprintf("%s transferred %f %s[%s] to %s while we hold a position",
		ev.FromWallet, ev.Amount, ev.Symbol, ev.Mint, ev.ToWallet))
}
