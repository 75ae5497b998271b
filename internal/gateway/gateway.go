// Package gateway executes swaps through an external trading router.
// Retry policy lives entirely inside this boundary: callers never retry a
// failed execution themselves.
package gateway

import "context"

// SwapResult is the outcome of one executed swap, amounts in ui units.
type SwapResult struct {
	ExecutedFromAmount float64
	ExecutedToAmount   float64
	PriceRatio         float64
	ExecutionID        string
}

// Gateway submits swaps for the operator wallet.
type Gateway interface {
	// ExecuteSwap swaps amountSmallestUnits of fromMint into toMint.
	// The amount is integer smallest units of fromMint. Fails only after
	// the gateway's own bounded retry is exhausted.
	ExecuteSwap(ctx context.Context, fromMint, toMint string, amountSmallestUnits uint64) (*SwapResult, error)
}
