package orchestrator

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"solana-copy-trader/internal/classify"
	"solana-copy-trader/internal/domain"
	"solana-copy-trader/internal/notify"
	"solana-copy-trader/internal/storage"
	"solana-copy-trader/internal/storage/memory"
)

const testWallet = "MyWaLLet111111111111111111111111111111111111"

type fakeClassifier struct {
	mu    sync.Mutex
	fn    func(signature string) (*classify.Outcome, error)
	calls []string
}

func (c *fakeClassifier) Process(_ context.Context, signature string) (*classify.Outcome, error) {
	c.mu.Lock()
	c.calls = append(c.calls, signature)
	c.mu.Unlock()
	return c.fn(signature)
}

func (c *fakeClassifier) callCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.calls)
}

type fakeEngine struct {
	mu      sync.Mutex
	err     error
	handled []string
}

func (e *fakeEngine) HandleSwap(_ context.Context, swap *domain.ClassifiedSwap) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.handled = append(e.handled, swap.TxSignature)
	return e.err
}

func (e *fakeEngine) handledTxs() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]string, len(e.handled))
	copy(out, e.handled)
	return out
}

func swapOutcome(sig string) *classify.Outcome {
	return &classify.Outcome{
		Kind: classify.KindSwap,
		Swap: &domain.ClassifiedSwap{
			Wallet:      "SrcWaLLet11111111111111111111111111111111111",
			FromMint:    domain.WSOL,
			FromAmount:  1.0,
			ToMint:      "TokenMint1111111111111111111111111111111111",
			ToSymbol:    "TKA",
			ToAmount:    1000,
			TxSignature: sig,
		},
	}
}

func newTestOrchestrator(classifier Classifier, engine Engine, ledger storage.Ledger, rec *notify.Recorder) *Orchestrator {
	if ledger == nil {
		ledger = memory.NewLedgerStore()
	}
	return New(Options{
		Wallet:           testWallet,
		Classifier:       classifier,
		Engine:           engine,
		Ledger:           ledger,
		Notifier:         rec,
		Logger:           zap.NewNop(),
		ClassifyInterval: time.Millisecond,
		TradeInterval:    time.Millisecond,
		AlertInterval:    time.Millisecond,
		BackoffBase:      2 * time.Millisecond,
		BackoffCap:       10 * time.Millisecond,
	})
}

func TestOrchestrator_RoutesSwapToEngine(t *testing.T) {
	classifier := &fakeClassifier{fn: func(sig string) (*classify.Outcome, error) {
		return swapOutcome(sig), nil
	}}
	engine := &fakeEngine{}
	o := newTestOrchestrator(classifier, engine, nil, &notify.Recorder{})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		o.Run(ctx)
		close(done)
	}()

	require.True(t, o.EnqueueTx("sig1"))
	require.True(t, o.EnqueueTx("sig2"))

	require.Eventually(t, func() bool {
		return len(engine.handledTxs()) == 2
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"sig1", "sig2"}, engine.handledTxs(), "strict FIFO")

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("orchestrator did not stop on cancellation")
	}
}

func TestOrchestrator_TransientErrorRetriesSameItem(t *testing.T) {
	var mu sync.Mutex
	failures := 2
	classifier := &fakeClassifier{}
	classifier.fn = func(sig string) (*classify.Outcome, error) {
		mu.Lock()
		defer mu.Unlock()
		if failures > 0 {
			failures--
			return nil, errors.New("not yet indexed")
		}
		return swapOutcome(sig), nil
	}
	engine := &fakeEngine{}
	o := newTestOrchestrator(classifier, engine, nil, &notify.Recorder{})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go o.Run(ctx)

	o.EnqueueTx("sigA")

	require.Eventually(t, func() bool {
		return len(engine.handledTxs()) == 1
	}, time.Second, 5*time.Millisecond)

	// The same signature was attempted on every retry.
	classifier.mu.Lock()
	defer classifier.mu.Unlock()
	require.GreaterOrEqual(t, len(classifier.calls), 3)
	for _, sig := range classifier.calls {
		assert.Equal(t, "sigA", sig)
	}
}

func TestOrchestrator_PoisonedSwapDoesNotBlockQueue(t *testing.T) {
	classifier := &fakeClassifier{fn: func(sig string) (*classify.Outcome, error) {
		return swapOutcome(sig), nil
	}}
	engine := &fakeEngine{err: errors.New("gateway exhausted retries")}
	o := newTestOrchestrator(classifier, engine, nil, &notify.Recorder{})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go o.Run(ctx)

	o.EnqueueTx("sig1")
	o.EnqueueTx("sig2")
	o.EnqueueTx("sig3")

	// All three are attempted despite every one failing.
	require.Eventually(t, func() bool {
		return len(engine.handledTxs()) == 3
	}, time.Second, 5*time.Millisecond)
}

func TestOrchestrator_IrrelevantOutcomeNotRouted(t *testing.T) {
	classifier := &fakeClassifier{fn: func(string) (*classify.Outcome, error) {
		return &classify.Outcome{Kind: classify.KindIrrelevant, Reason: "no dex"}, nil
	}}
	engine := &fakeEngine{}
	o := newTestOrchestrator(classifier, engine, nil, &notify.Recorder{})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go o.Run(ctx)

	o.EnqueueTx("sig1")

	require.Eventually(t, func() bool {
		return classifier.callCount() == 1
	}, time.Second, 5*time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	assert.Empty(t, engine.handledTxs())
}

func TestOrchestrator_TransferAlertForHeldToken(t *testing.T) {
	ledger := memory.NewLedgerStore()
	require.NoError(t, ledger.ApplyBuy(context.Background(), &storage.BuyOp{
		Owner: testWallet, Asset: "HeldMint11111111111111111111111111111111111",
		Symbol: "HLD", BaseSpent: 0.1, AssetReceived: 100,
		TxID: "buy1", Time: time.Now().UnixMilli(),
	}))

	classifier := &fakeClassifier{fn: func(string) (*classify.Outcome, error) {
		return &classify.Outcome{Kind: classify.KindIrrelevant}, nil
	}}
	rec := &notify.Recorder{}
	o := newTestOrchestrator(classifier, &fakeEngine{}, ledger, rec)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go o.Run(ctx)

	o.EnqueueTransfer(&domain.TransferEvent{
		FromWallet:  "SrcWaLLet11111111111111111111111111111111111",
		ToWallet:    "OtherWaLLet111111111111111111111111111111111",
		Mint:        "HeldMint11111111111111111111111111111111111",
		Symbol:      "HLD",
		Amount:      500,
		TxSignature: "xfer1",
	})
	o.EnqueueTransfer(&domain.TransferEvent{
		FromWallet:  "SrcWaLLet11111111111111111111111111111111111",
		ToWallet:    "OtherWaLLet111111111111111111111111111111111",
		Mint:        "UnheldMint111111111111111111111111111111111",
		Symbol:      "UNH",
		Amount:      500,
		TxSignature: "xfer2",
	})

	require.Eventually(t, func() bool {
		return len(rec.Messages()) == 1
	}, time.Second, 5*time.Millisecond)
	time.Sleep(20 * time.Millisecond)

	msgs := rec.Messages()
	require.Len(t, msgs, 1, "only the held token alerts")
	assert.Contains(t, msgs[0], "HLD")
}

func TestOrchestrator_QueueSaturationDrops(t *testing.T) {
	classifier := &fakeClassifier{fn: func(sig string) (*classify.Outcome, error) {
		return swapOutcome(sig), nil
	}}
	o := New(Options{
		Wallet:     testWallet,
		Classifier: classifier,
		Engine:     &fakeEngine{},
		Ledger:     memory.NewLedgerStore(),
		Notifier:   &notify.Recorder{},
		Logger:     zap.NewNop(),
		QueueSize:  2,
	})

	// Not running: the queue fills.
	assert.True(t, o.EnqueueTx("sig1"))
	assert.True(t, o.EnqueueTx("sig2"))
	assert.False(t, o.EnqueueTx("sig3"))

	classification, trade, alert := o.QueueDepths()
	assert.Equal(t, 2, classification)
	assert.Equal(t, 0, trade)
	assert.Equal(t, 0, alert)
}
