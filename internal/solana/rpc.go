package solana

import (
	"context"
	"errors"
)

// ErrTxNotFound is returned when a transaction is not yet indexed by the
// RPC node. It is transient: callers retry with backoff.
var ErrTxNotFound = errors.New("transaction not found")

// RPCClient defines the Solana RPC HTTP interface used by the bot.
type RPCClient interface {
	// GetTransaction retrieves a confirmed transaction with full metadata.
	// Returns ErrTxNotFound if the signature is not indexed yet.
	GetTransaction(ctx context.Context, signature string) (*Transaction, error)

	// GetSignaturesForAddress retrieves signatures for an address with pagination.
	GetSignaturesForAddress(ctx context.Context, address string, opts *SignaturesOpts) ([]SignatureInfo, error)

	// GetTokenBalance returns the ui balance of a mint held by a wallet,
	// summed across its token accounts.
	GetTokenBalance(ctx context.Context, owner, mint string) (float64, error)

	// GetTokenSupply returns the total ui supply of a mint.
	GetTokenSupply(ctx context.Context, mint string) (float64, error)
}
