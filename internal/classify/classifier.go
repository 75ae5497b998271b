package classify

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/mr-tron/base58"
	"go.uber.org/zap"

	"solana-copy-trader/internal/domain"
	"solana-copy-trader/internal/solana"
	"solana-copy-trader/internal/storage"
)

// Classification errors. Both mark the transaction permanently irrelevant;
// neither is retried.
var (
	// ErrAmbiguousTransaction means the signer's balance deltas do not
	// form a two-sided swap shape.
	ErrAmbiguousTransaction = errors.New("ambiguous balance deltas")

	// ErrInvalidSwap means both deltas move in the same direction.
	ErrInvalidSwap = errors.New("same-sign balance deltas")
)

// Exchange programs whose presence among a transaction's account keys marks
// it as a swap.
var dexPrograms = map[string]string{
	"JUP6LkbZbjS1jKKwapdHNy74zcZ3tLUZoi5QNyVTaV4":  "Jupiter V6",
	"675kPX9MHTjS2zt1qfr1NYHuzeLXfQM9H24wFSUt1Mp8": "Raydium V4",
	"routeUGWgWzqBWFcrCfv8tritsqukccJPu3q5GPP3xS":  "Raydium Routing",
	"6EF8rrecthR5Dkzon8Nwu78hRvfCKubJ14M5uBEwF6P":  "Pump.fun",
	"Eo7WjKq67rjJQSZxS6z3YkapzY3eMj6Xy8X5EQVn5UaB": "Meteora",
}

// Programs producing swap-like balance shapes that must not be parsed as
// swaps. Jupiter DCA is the known case.
var excludedPrograms = map[string]bool{
	"DCA265Vj8a9CEuX1eb1LWRnDT7uK6q1xMipnNyatn23M": true,
}

// Kind is the classification result category.
type Kind int

const (
	KindIrrelevant Kind = iota
	KindSwap
	KindTransfer
	// KindDuplicate means the transaction was already processed.
	KindDuplicate
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindSwap:
		return "swap"
	case KindTransfer:
		return "transfer"
	case KindDuplicate:
		return "duplicate"
	default:
		return "irrelevant"
	}
}

// Outcome is one classified transaction. Exactly one of Swap and Transfer
// is set, matching Kind; Reason explains Irrelevant outcomes.
type Outcome struct {
	Kind     Kind
	Swap     *domain.ClassifiedSwap
	Transfer *domain.TransferEvent
	Reason   string
}

// MetadataResolver supplies symbol and decimals for a mint.
type MetadataResolver interface {
	Resolve(ctx context.Context, mint string) (*domain.TokenMetadata, error)
}

// Classifier turns raw transaction signatures into typed swap, transfer or
// irrelevant outcomes and records every outcome so the same signature is
// never fetched twice.
type Classifier struct {
	rpc      solana.RPCClient
	resolver MetadataResolver
	ledger   storage.Ledger
	log      *zap.Logger
}

// NewClassifier creates a classifier.
func NewClassifier(rpc solana.RPCClient, resolver MetadataResolver, ledger storage.Ledger, log *zap.Logger) *Classifier {
	return &Classifier{rpc: rpc, resolver: resolver, ledger: ledger, log: log}
}

// Process fetches and classifies one transaction by signature. Irrelevant
// and transfer outcomes are persisted immediately; swap outcomes are
// persisted by the downstream position update. A non-nil error is
// transient and the caller retries with backoff.
func (c *Classifier) Process(ctx context.Context, signature string) (*Outcome, error) {
	seen, err := c.ledger.HasTransaction(ctx, signature)
	if err != nil {
		return nil, fmt.Errorf("check transaction: %w", err)
	}
	if seen {
		return &Outcome{Kind: KindDuplicate}, nil
	}

	tx, err := c.rpc.GetTransaction(ctx, signature)
	if err != nil {
		return nil, fmt.Errorf("fetch transaction %s: %w", signature, err)
	}

	outcome := c.classify(ctx, tx)

	switch outcome.Kind {
	case KindIrrelevant:
		if err := c.recordIrrelevant(ctx, tx, outcome.Reason); err != nil {
			return nil, err
		}
	case KindTransfer:
		if err := c.recordTransfer(ctx, outcome.Transfer); err != nil {
			return nil, err
		}
	}

	return outcome, nil
}

// classify inspects a fetched transaction.
func (c *Classifier) classify(ctx context.Context, tx *solana.Transaction) *Outcome {
	if tx.Failed() {
		return &Outcome{Kind: KindIrrelevant, Reason: "failed on chain"}
	}
	if tx.Meta == nil || (len(tx.Meta.PreTokenBalances) == 0 && len(tx.Meta.PostTokenBalances) == 0) {
		return &Outcome{Kind: KindIrrelevant, Reason: "no token balances"}
	}

	wallet := tx.Signer()
	if wallet == "" {
		return &Outcome{Kind: KindIrrelevant, Reason: "no signer"}
	}

	if dex, ok := c.matchDex(tx); ok {
		swap, err := c.buildSwap(ctx, tx, wallet, dex)
		if err != nil {
			c.log.Warn("swap shape rejected",
				zap.String("tx", tx.Signature),
				zap.String("dex", dex),
				zap.Error(err))
			return &Outcome{Kind: KindIrrelevant, Reason: err.Error()}
		}
		return &Outcome{Kind: KindSwap, Swap: swap}
	}

	if transfer := c.detectTransfer(ctx, tx, wallet); transfer != nil {
		return &Outcome{Kind: KindTransfer, Transfer: transfer}
	}

	return &Outcome{Kind: KindIrrelevant, Reason: "no dex or transfer instruction"}
}

// matchDex reports the exchange name when the transaction's account keys
// intersect the allow-list and avoid the exclusion list.
func (c *Classifier) matchDex(tx *solana.Transaction) (string, bool) {
	keys := tx.AllAccountKeys()
	for _, key := range keys {
		if excludedPrograms[key] {
			return "", false
		}
	}
	for _, key := range keys {
		if name, ok := dexPrograms[key]; ok {
			return name, true
		}
	}
	return "", false
}

// buildSwap derives the swap sides from the signer's balance deltas.
func (c *Classifier) buildSwap(ctx context.Context, tx *solana.Transaction, wallet, dex string) (*domain.ClassifiedSwap, error) {
	deltas := TokenDeltas(tx, wallet)

	var from, to AssetDelta
	switch len(deltas) {
	case 2:
		if (deltas[0].Amount < 0) == (deltas[1].Amount < 0) {
			return nil, ErrInvalidSwap
		}
		if deltas[0].Amount < 0 {
			from, to = deltas[0], deltas[1]
		} else {
			from, to = deltas[1], deltas[0]
		}
	case 1:
		// The other side is native SOL, read from the signer's lamport
		// balance change.
		native := AssetDelta{
			Mint:     domain.WSOL,
			Amount:   NativeDelta(tx, wallet),
			Decimals: domain.SOLDecimals,
		}
		if native.Amount == 0 {
			return nil, ErrAmbiguousTransaction
		}
		if deltas[0].Amount < 0 {
			from, to = deltas[0], native
		} else {
			from, to = native, deltas[0]
		}
	default:
		return nil, fmt.Errorf("%w: %d nonzero deltas", ErrAmbiguousTransaction, len(deltas))
	}

	swap := &domain.ClassifiedSwap{
		Wallet:      wallet,
		FromMint:    from.Mint,
		FromSymbol:  c.symbol(ctx, from.Mint),
		FromAmount:  math.Abs(from.Amount),
		ToMint:      to.Mint,
		ToSymbol:    c.symbol(ctx, to.Mint),
		ToAmount:    math.Abs(to.Amount),
		Dex:         dex,
		TxSignature: tx.Signature,
		Timestamp:   tx.BlockTime * 1000,
	}
	return swap, nil
}

// detectTransfer looks for an SPL transfer instruction paired with a
// matched decrease/increase of one mint between the signer and exactly one
// other owner.
func (c *Classifier) detectTransfer(ctx context.Context, tx *solana.Transaction, wallet string) *domain.TransferEvent {
	if !hasTransferOpcode(tx) {
		return nil
	}

	owners := ownerDeltas(tx)
	signerDeltas := owners[wallet]

	// Exactly one outgoing mint for the signer.
	var mint string
	var sent float64
	for m, amount := range signerDeltas {
		if amount >= 0 {
			continue
		}
		if mint != "" {
			return nil
		}
		mint = m
		sent = -amount
	}
	if mint == "" {
		return nil
	}

	// Exactly one other owner receiving the same mint for the same amount.
	var recipient string
	for owner, deltas := range owners {
		if owner == wallet {
			continue
		}
		received, ok := deltas[mint]
		if !ok || received <= 0 {
			continue
		}
		if recipient != "" {
			return nil
		}
		if math.Abs(received-sent) > sent*1e-9 {
			return nil
		}
		recipient = owner
	}
	if recipient == "" {
		return nil
	}

	return &domain.TransferEvent{
		FromWallet:  wallet,
		ToWallet:    recipient,
		Mint:        mint,
		Symbol:      c.symbol(ctx, mint),
		Amount:      sent,
		TxSignature: tx.Signature,
		Timestamp:   tx.BlockTime * 1000,
	}
}

// hasTransferOpcode reports whether any instruction carries the SPL
// transfer opcode as its first data byte.
func hasTransferOpcode(tx *solana.Transaction) bool {
	if tx.Message == nil {
		return false
	}
	for _, ins := range tx.Message.Instructions {
		data, err := base58.Decode(ins.Data)
		if err != nil || len(data) == 0 {
			continue
		}
		if data[0] == 2 {
			return true
		}
	}
	return false
}

// symbol resolves a mint's symbol, falling back to the unknown marker.
// Resolver failures are soft.
func (c *Classifier) symbol(ctx context.Context, mint string) string {
	if mint == domain.WSOL {
		return "SOL"
	}
	md, err := c.resolver.Resolve(ctx, mint)
	if err != nil || md == nil {
		return domain.UnknownSymbol
	}
	return md.Symbol
}

// recordIrrelevant persists a skip entry so the signature is never
// re-fetched.
func (c *Classifier) recordIrrelevant(ctx context.Context, tx *solana.Transaction, reason string) error {
	entry := &domain.LedgerEntry{
		TxSignature: tx.Signature,
		Wallet:      tx.Signer(),
		BlockTime:   tx.BlockTime * 1000,
		Note:        "irrelevant: " + reason,
	}
	if err := c.ledger.RecordTransaction(ctx, entry); err != nil && !errors.Is(err, storage.ErrDuplicateKey) {
		return fmt.Errorf("record irrelevant: %w", err)
	}
	return nil
}

// recordTransfer persists the transfer's ledger entry.
func (c *Classifier) recordTransfer(ctx context.Context, t *domain.TransferEvent) error {
	entry := &domain.LedgerEntry{
		TxSignature: t.TxSignature,
		Wallet:      t.FromWallet,
		FromMint:    t.Mint,
		FromSymbol:  t.Symbol,
		FromAmount:  t.Amount,
		BlockTime:   t.Timestamp,
		Note:        "transfer to " + t.ToWallet,
	}
	if err := c.ledger.RecordTransaction(ctx, entry); err != nil && !errors.Is(err, storage.ErrDuplicateKey) {
		return fmt.Errorf("record transfer: %w", err)
	}
	return nil
}
