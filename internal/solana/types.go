package solana

// Transaction is a confirmed Solana transaction with the metadata needed to
// reconstruct balance deltas for its signer.
type Transaction struct {
	Slot      int64
	Signature string
	BlockTime int64 // Unix timestamp (seconds)
	Meta      *TransactionMeta
	Message   *TransactionMessage
}

// TransactionMeta contains execution metadata.
type TransactionMeta struct {
	Err               interface{} // non-nil for failed transactions
	LogMessages       []string
	PreBalances       []uint64 // lamports per account, before
	PostBalances      []uint64 // lamports per account, after
	PreTokenBalances  []TokenBalance
	PostTokenBalances []TokenBalance
	LoadedAddresses   *LoadedAddresses
}

// TokenBalance is one pre/post token balance record.
type TokenBalance struct {
	AccountIndex  int           `json:"accountIndex"`
	Mint          string        `json:"mint"`
	Owner         string        `json:"owner"`
	UITokenAmount UITokenAmount `json:"uiTokenAmount"`
}

// UITokenAmount is the RPC token amount shape.
type UITokenAmount struct {
	Amount   string   `json:"amount"`
	Decimals int      `json:"decimals"`
	UIAmount *float64 `json:"uiAmount"`
}

// Value returns the ui amount, treating null as zero.
func (a UITokenAmount) Value() float64 {
	if a.UIAmount == nil {
		return 0
	}
	return *a.UIAmount
}

// LoadedAddresses are address-table accounts resolved at execution time.
type LoadedAddresses struct {
	Writable []string `json:"writable"`
	Readonly []string `json:"readonly"`
}

// TransactionMessage is the parsed message.
type TransactionMessage struct {
	AccountKeys  []string
	Instructions []CompiledInstruction
}

// CompiledInstruction references accounts by index into the message keys.
type CompiledInstruction struct {
	ProgramIDIndex int    `json:"programIdIndex"`
	Accounts       []int  `json:"accounts"`
	Data           string `json:"data"` // base58
}

// Signer returns the fee payer, the first static account key.
func (t *Transaction) Signer() string {
	if t.Message == nil || len(t.Message.AccountKeys) == 0 {
		return ""
	}
	return t.Message.AccountKeys[0]
}

// AllAccountKeys returns static keys plus addresses loaded from lookup
// tables, in RPC order.
func (t *Transaction) AllAccountKeys() []string {
	if t.Message == nil {
		return nil
	}
	keys := make([]string, 0, len(t.Message.AccountKeys))
	keys = append(keys, t.Message.AccountKeys...)
	if t.Meta != nil && t.Meta.LoadedAddresses != nil {
		keys = append(keys, t.Meta.LoadedAddresses.Writable...)
		keys = append(keys, t.Meta.LoadedAddresses.Readonly...)
	}
	return keys
}

// Failed reports whether the transaction errored on chain.
func (t *Transaction) Failed() bool {
	return t.Meta != nil && t.Meta.Err != nil
}

// SignatureInfo from getSignaturesForAddress.
type SignatureInfo struct {
	Signature string
	Slot      int64
	BlockTime *int64
	Err       interface{}
}

// SignaturesOpts defines optional pagination parameters for getSignaturesForAddress.
type SignaturesOpts struct {
	Before string // start searching backwards from this signature
	Until  string // search until this signature
	Limit  int    // maximum number of signatures to return
}
