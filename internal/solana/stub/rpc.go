package stub

import (
	"context"
	"sync"

	"solana-copy-trader/internal/solana"
)

// RPCClient implements solana.RPCClient for testing.
type RPCClient struct {
	mu           sync.Mutex
	Transactions map[string]*solana.Transaction
	Signatures   map[string][]solana.SignatureInfo
	Balances     map[string]float64 // owner:mint -> ui balance
	Supplies     map[string]float64 // mint -> ui supply

	// TxErr, when set, is returned by GetTransaction for every call.
	TxErr error
	// BalanceErr, when set, is returned by GetTokenBalance for every call.
	BalanceErr error

	// TxCalls counts GetTransaction invocations.
	TxCalls int
}

// NewRPCClient creates a new stub RPC client.
func NewRPCClient() *RPCClient {
	return &RPCClient{
		Transactions: make(map[string]*solana.Transaction),
		Signatures:   make(map[string][]solana.SignatureInfo),
		Balances:     make(map[string]float64),
		Supplies:     make(map[string]float64),
	}
}

var _ solana.RPCClient = (*RPCClient)(nil)

// GetTransaction retrieves a transaction by signature from the stub store.
func (c *RPCClient) GetTransaction(_ context.Context, signature string) (*solana.Transaction, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.TxCalls++
	if c.TxErr != nil {
		return nil, c.TxErr
	}
	tx, ok := c.Transactions[signature]
	if !ok {
		return nil, solana.ErrTxNotFound
	}
	return tx, nil
}

// GetSignaturesForAddress retrieves signatures for an address from the stub store.
func (c *RPCClient) GetSignaturesForAddress(_ context.Context, address string, opts *solana.SignaturesOpts) ([]solana.SignatureInfo, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	sigs, ok := c.Signatures[address]
	if !ok {
		return nil, nil
	}

	if opts != nil && opts.Limit > 0 && opts.Limit < len(sigs) {
		return sigs[:opts.Limit], nil
	}

	return sigs, nil
}

// GetTokenBalance returns the configured balance for owner and mint.
func (c *RPCClient) GetTokenBalance(_ context.Context, owner, mint string) (float64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.BalanceErr != nil {
		return 0, c.BalanceErr
	}
	return c.Balances[owner+":"+mint], nil
}

// GetTokenSupply returns the configured supply for the mint.
func (c *RPCClient) GetTokenSupply(_ context.Context, mint string) (float64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.Supplies[mint], nil
}

// AddTransaction adds a transaction to the stub store.
func (c *RPCClient) AddTransaction(tx *solana.Transaction) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.Transactions[tx.Signature] = tx
}

// AddSignatures adds signatures for an address to the stub store.
func (c *RPCClient) AddSignatures(address string, sigs []solana.SignatureInfo) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.Signatures[address] = sigs
}

// SetTokenBalance sets the balance returned for owner and mint.
func (c *RPCClient) SetTokenBalance(owner, mint string, balance float64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.Balances[owner+":"+mint] = balance
}

// SetTokenSupply sets the supply returned for the mint.
func (c *RPCClient) SetTokenSupply(mint string, supply float64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.Supplies[mint] = supply
}
