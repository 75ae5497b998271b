package gateway

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
)

// StubGateway implements Gateway without touching the chain. Every swap
// fills completely at a fixed price, used for dev mode and tests.
type StubGateway struct {
	// Price is the to-per-from fill ratio applied to every swap.
	Price float64
	// Decimals used to convert smallest units back to ui amounts.
	FromDecimals int

	// Err, when set, fails every execution.
	Err error

	mu    sync.Mutex
	calls []StubCall
	seq   atomic.Uint64
}

// StubCall records one execution request.
type StubCall struct {
	FromMint string
	ToMint   string
	Amount   uint64
}

// NewStubGateway creates a stub filling at the given price.
func NewStubGateway(price float64) *StubGateway {
	return &StubGateway{Price: price, FromDecimals: 9}
}

var _ Gateway = (*StubGateway)(nil)

// ExecuteSwap fills the swap at the fixed price.
func (g *StubGateway) ExecuteSwap(_ context.Context, fromMint, toMint string, amountSmallestUnits uint64) (*SwapResult, error) {
	g.mu.Lock()
	g.calls = append(g.calls, StubCall{FromMint: fromMint, ToMint: toMint, Amount: amountSmallestUnits})
	g.mu.Unlock()

	if g.Err != nil {
		return nil, g.Err
	}

	divisor := 1.0
	for i := 0; i < g.FromDecimals; i++ {
		divisor *= 10
	}
	fromAmount := float64(amountSmallestUnits) / divisor

	return &SwapResult{
		ExecutedFromAmount: fromAmount,
		ExecutedToAmount:   fromAmount / g.Price,
		PriceRatio:         g.Price,
		ExecutionID:        fmt.Sprintf("stub-%d", g.seq.Add(1)),
	}, nil
}

// Calls returns all recorded execution requests.
func (g *StubGateway) Calls() []StubCall {
	g.mu.Lock()
	defer g.mu.Unlock()

	out := make([]StubCall, len(g.calls))
	copy(out, g.calls)
	return out
}
