package domain

// Position is a tracked holding for one (wallet, mint) pair.
// Corresponds to the positions table. Positions for monitored wallets are
// "shadow" positions kept only to compute proportional exits; positions for
// the operator wallet mirror real holdings.
type Position struct {
	Wallet       string  // owner wallet
	Mint         string  // token mint
	Symbol       string  // token symbol
	Balance      float64 // ui amount, always > 0 (rows at <= 0 are deleted)
	UpdateTime   int64   // last mutation, Unix milliseconds
	SourceWallet string  // monitored wallet this position was copied from, if any
}

// LedgerEntry is an immutable record of one processed transaction, keyed
// uniquely by TxSignature. An entry exists for every classified outcome,
// including irrelevant ones, so a txId is never re-fetched.
// Corresponds to the transactions table.
type LedgerEntry struct {
	TxSignature string
	Wallet      string  // signer wallet
	FromMint    string  // empty for non-swap entries
	FromSymbol  string
	FromAmount  float64
	ToMint      string
	ToSymbol    string
	ToAmount    float64
	Dex         string // exchange name, or a short note for non-swap outcomes
	BlockTime   int64  // Unix milliseconds
	Note        string // source wallet for copied trades, or the skip reason
}

// DailyBalance is one settlement snapshot: the cumulative base-asset balance
// of a wallet at the end of a day. Keyed by (wallet, day).
type DailyBalance struct {
	Wallet  string
	Day     string // "YYYY-MM-DD", UTC
	Balance float64
}
