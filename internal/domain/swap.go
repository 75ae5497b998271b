package domain

// WSOL is the wrapped SOL mint address, used as the base asset everywhere.
const WSOL = "So11111111111111111111111111111111111111112"

// SOLDecimals is the number of decimals of the native asset.
const SOLDecimals = 9

// ClassifiedSwap is a swap reconstructed from a monitored wallet's transaction.
type ClassifiedSwap struct {
	Wallet      string  // signer wallet that performed the swap
	FromMint    string  // mint sold
	FromSymbol  string  // symbol of the mint sold
	FromAmount  float64 // ui amount sold, always > 0
	ToMint      string  // mint bought
	ToSymbol    string  // symbol of the mint bought
	ToAmount    float64 // ui amount bought, always > 0
	Dex         string  // exchange program name ("Jupiter V6", "Raydium V4", ...)
	TxSignature string  // Solana transaction signature
	Timestamp   int64   // block time, Unix milliseconds
}

// IsBuy reports whether the swap spends the base asset for a token.
func (s *ClassifiedSwap) IsBuy() bool {
	return s.FromMint == WSOL
}

// IsSell reports whether the swap sells a token back into the base asset.
func (s *ClassifiedSwap) IsSell() bool {
	return s.ToMint == WSOL
}

// TransferEvent is a plain token transfer between two wallets.
type TransferEvent struct {
	FromWallet  string  // sender (the monitored signer)
	ToWallet    string  // receiver
	Mint        string  // token mint transferred
	Symbol      string  // token symbol
	Amount      float64 // ui amount, always > 0
	TxSignature string
	Timestamp   int64 // Unix milliseconds
}
