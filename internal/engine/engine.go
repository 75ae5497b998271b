// Package engine decides whether and how much to replicate classified
// swaps from monitored wallets into the operator wallet.
package engine

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"

	"solana-copy-trader/internal/domain"
	"solana-copy-trader/internal/gateway"
	"solana-copy-trader/internal/notify"
	"solana-copy-trader/internal/observability"
	"solana-copy-trader/internal/price"
	"solana-copy-trader/internal/solana"
	"solana-copy-trader/internal/storage"
)

// Config holds the engine's own trading switches.
type Config struct {
	// Wallet is the operator wallet address.
	Wallet string
	// CanBuy globally enables follow-buys.
	CanBuy bool
	// CanSell globally enables follow-sells.
	CanSell bool
}

// MetadataResolver supplies symbol, decimals and supply for a mint.
type MetadataResolver interface {
	Resolve(ctx context.Context, mint string) (*domain.TokenMetadata, error)
}

// Engine is the copy-trade decision engine. Every classified swap first
// updates the source wallet's shadow position, then runs the buy or sell
// policy for the operator wallet.
type Engine struct {
	cfg      Config
	ledger   storage.Ledger
	denyList storage.DenyListStore
	resolver MetadataResolver
	oracle   price.Oracle
	gateway  gateway.Gateway
	notifier notify.Notifier
	rpc      solana.RPCClient
	policies domain.PolicySet
	log      *zap.Logger

	// now and schedule are injectable for tests.
	now      func() time.Time
	schedule func(d time.Duration, f func())
}

// New creates an engine.
func New(
	cfg Config,
	ledger storage.Ledger,
	denyList storage.DenyListStore,
	resolver MetadataResolver,
	oracle price.Oracle,
	gw gateway.Gateway,
	notifier notify.Notifier,
	rpc solana.RPCClient,
	policies domain.PolicySet,
	log *zap.Logger,
) *Engine {
	return &Engine{
		cfg:      cfg,
		ledger:   ledger,
		denyList: denyList,
		resolver: resolver,
		oracle:   oracle,
		gateway:  gw,
		notifier: notifier,
		rpc:      rpc,
		policies: policies,
		log:      log,
		now:      time.Now,
		schedule: func(d time.Duration, f func()) { time.AfterFunc(d, f) },
	}
}

// HandleSwap processes one classified swap from a monitored wallet.
func (e *Engine) HandleSwap(ctx context.Context, swap *domain.ClassifiedSwap) error {
	e.updateShadowPosition(ctx, swap)

	policy := e.policies.Get(swap.Wallet)
	if policy == nil {
		return nil
	}

	switch {
	case swap.IsBuy():
		if !e.cfg.CanBuy {
			e.log.Info("buying disabled, skipping", zap.String("tx", swap.TxSignature))
			return nil
		}
		return e.followBuy(ctx, swap, policy)
	case swap.IsSell():
		if !e.cfg.CanSell {
			e.log.Info("selling disabled, skipping", zap.String("tx", swap.TxSignature))
			return nil
		}
		return e.followSell(ctx, swap, policy)
	}
	return nil
}

// updateShadowPosition mirrors the source wallet's own trade into the
// ledger. This runs before any follow decision so later sells can compute
// a correct proportional exit. Failures are logged, never fatal.
func (e *Engine) updateShadowPosition(ctx context.Context, swap *domain.ClassifiedSwap) {
	var err error
	switch {
	case swap.IsBuy():
		err = e.ledger.ApplyBuy(ctx, &storage.BuyOp{
			Owner:         swap.Wallet,
			Asset:         swap.ToMint,
			Symbol:        swap.ToSymbol,
			BaseSpent:     swap.FromAmount,
			AssetReceived: swap.ToAmount,
			Dex:           swap.Dex,
			TxID:          swap.TxSignature,
			Time:          swap.Timestamp,
		})
	case swap.IsSell():
		err = e.ledger.ApplySell(ctx, &storage.SellOp{
			Owner:        swap.Wallet,
			Asset:        swap.FromMint,
			Symbol:       swap.FromSymbol,
			AssetSold:    swap.FromAmount,
			BaseReceived: swap.ToAmount,
			Dex:          swap.Dex,
			TxID:         swap.TxSignature,
			Time:         swap.Timestamp,
		})
		// A sell with no tracked position means the source bought before
		// monitoring started. There is no position to mirror, but the
		// signature still gets a ledger entry so it is never re-fetched.
		if errors.Is(err, storage.ErrInsufficientPosition) {
			err = e.ledger.RecordTransaction(ctx, &domain.LedgerEntry{
				TxSignature: swap.TxSignature,
				Wallet:      swap.Wallet,
				FromMint:    swap.FromMint,
				FromSymbol:  swap.FromSymbol,
				FromAmount:  swap.FromAmount,
				ToMint:      swap.ToMint,
				ToSymbol:    swap.ToSymbol,
				ToAmount:    swap.ToAmount,
				Dex:         swap.Dex,
				BlockTime:   swap.Timestamp,
				Note:        "sell without tracked position",
			})
			if errors.Is(err, storage.ErrDuplicateKey) {
				err = nil
			}
		}
	}
	if err != nil {
		e.log.Error("update shadow position",
			zap.String("wallet", swap.Wallet),
			zap.String("tx", swap.TxSignature),
			zap.Error(err))
	}
}

// followBuy runs the eligibility gates and executes the follow purchase.
func (e *Engine) followBuy(ctx context.Context, swap *domain.ClassifiedSwap, policy *domain.FollowPolicy) error {
	label := policy.Label()
	token := swap.ToMint
	symbol := swap.ToSymbol

	e.notifier.Notify(ctx, fmt.Sprintf("%s spent %.2f SOL buying %f %s[%s]",
		label, swap.FromAmount, swap.ToAmount, symbol, token))

	if !policy.FollowBuy {
		e.log.Info("follow-buy disabled for wallet", zap.String("wallet", label))
		return nil
	}

	denied, err := e.denyList.Contains(ctx, token)
	if err != nil {
		e.log.Error("deny list lookup failed", zap.String("mint", token), zap.Error(err))
	} else if denied {
		e.log.Info("token on deny list, not following", zap.String("mint", token))
		return nil
	}

	if policy.MinBuyingAmount > 0 && swap.FromAmount < policy.MinBuyingAmount {
		e.log.Info("source spent below minimum, not following",
			zap.Float64("spent", swap.FromAmount),
			zap.Float64("min", policy.MinBuyingAmount))
		return nil
	}

	now := e.now()
	weekAgo := now.Add(-7 * 24 * time.Hour)
	exposure, err := e.ledger.GetNetFlow(ctx, e.cfg.Wallet, token, domain.WSOL,
		weekAgo.UnixMilli(), now.UnixMilli())
	if err != nil {
		e.log.Error("weekly exposure lookup failed", zap.String("mint", token), zap.Error(err))
		return nil
	}
	if exposure >= domain.WeeklyExposureCeiling {
		msg := fmt.Sprintf("weekly net exposure for %s[%s] reached %.2f SOL, not following",
			symbol, token, exposure)
		e.log.Info(msg)
		e.notifier.Notify(ctx, msg)
		return nil
	}

	if policy.MaxMarketValue > 0 && !e.withinMarketValue(ctx, token, symbol, policy.MaxMarketValue) {
		return nil
	}

	followAmount := e.followAmount(swap, policy)

	if policy.DelaySeconds > 0 {
		e.log.Info("delaying follow-buy",
			zap.String("wallet", label),
			zap.Int("delay_seconds", policy.DelaySeconds))
		e.scheduleDelayBuy(swap, policy, followAmount)
		return nil
	}

	return e.executeBuy(ctx, token, symbol, followAmount, swap.Wallet, label)
}

// withinMarketValue checks decimals-adjusted supply times price against
// the policy ceiling. Lookup failures are soft: the trade proceeds.
func (e *Engine) withinMarketValue(ctx context.Context, token, symbol string, maxValue float64) bool {
	tokenPrice, err := e.oracle.GetPrice(ctx, token)
	if err != nil {
		e.log.Error("price lookup failed, proceeding", zap.String("mint", token), zap.Error(err))
		return true
	}
	md, err := e.resolver.Resolve(ctx, token)
	if err != nil {
		e.log.Error("metadata lookup failed, proceeding", zap.String("mint", token), zap.Error(err))
		return true
	}

	marketValue := math.Floor(md.Supply * tokenPrice)
	if marketValue > maxValue {
		e.notifier.Notify(ctx, fmt.Sprintf("%s[%s] market value %.0f exceeds limit %.0f, not following",
			symbol, token, marketValue, maxValue))
		return false
	}
	return true
}

// followAmount computes how much SOL to spend on the follow purchase.
func (e *Engine) followAmount(swap *domain.ClassifiedSwap, policy *domain.FollowPolicy) float64 {
	if policy.FollowAmount > 0 {
		return policy.FollowAmount
	}
	if policy.FollowPercent > 0 {
		max := policy.MaxFollowAmount
		if max <= 0 {
			max = domain.DefaultMaxFollowAmount
		}
		return math.Min(swap.FromAmount*policy.FollowPercent, max)
	}
	return domain.DefaultFollowAmount
}

// scheduleDelayBuy arms the delayed re-confirmation. Once armed it cannot
// be cancelled; the re-check at expiry decides.
func (e *Engine) scheduleDelayBuy(swap *domain.ClassifiedSwap, policy *domain.FollowPolicy, followAmount float64) {
	observedAmount := swap.ToAmount
	e.schedule(time.Duration(policy.DelaySeconds)*time.Second, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()
		e.delayBuy(ctx, swap, policy, followAmount, observedAmount)
	})
}

// delayBuy re-reads the source's shadow position at expiry and buys only
// if the source still holds at least 60% of the observed purchase.
func (e *Engine) delayBuy(ctx context.Context, swap *domain.ClassifiedSwap, policy *domain.FollowPolicy, followAmount, observedAmount float64) {
	label := policy.Label()
	token := swap.ToMint
	symbol := swap.ToSymbol

	pos, err := e.ledger.GetPosition(ctx, swap.Wallet, token)
	if errors.Is(err, storage.ErrNotFound) {
		e.log.Info("source position gone, cancelling delayed buy",
			zap.String("wallet", label), zap.String("mint", token))
		return
	}
	if err != nil {
		e.log.Error("delayed buy position lookup failed", zap.Error(err))
		return
	}
	if pos.Balance < observedAmount*domain.DelayBuyHoldThreshold {
		e.log.Info("source reduced holding below threshold, cancelling delayed buy",
			zap.String("wallet", label),
			zap.Float64("balance", pos.Balance),
			zap.Float64("observed", observedAmount))
		return
	}

	if err := e.executeBuy(ctx, token, symbol, followAmount, swap.Wallet, label); err != nil {
		e.log.Error("delayed buy failed", zap.Error(err))
	}
}

// executeBuy runs the gateway purchase and records it.
func (e *Engine) executeBuy(ctx context.Context, token, symbol string, solAmount float64, sourceWallet, label string) error {
	lamports := uint64(math.Floor(solAmount * 1e9))
	result, err := e.gateway.ExecuteSwap(ctx, domain.WSOL, token, lamports)
	if err != nil {
		observability.RecordFollowBuy("failed")
		msg := fmt.Sprintf("follow-buy of %s[%s] after %s failed: %v", symbol, token, label, err)
		e.log.Error(msg)
		e.notifier.Notify(ctx, msg)
		return fmt.Errorf("execute buy: %w", err)
	}
	observability.RecordFollowBuy("executed")

	err = e.ledger.ApplyBuy(ctx, &storage.BuyOp{
		Owner:         e.cfg.Wallet,
		Asset:         token,
		Symbol:        symbol,
		BaseSpent:     result.ExecutedFromAmount,
		AssetReceived: result.ExecutedToAmount,
		SourceWallet:  sourceWallet,
		Dex:           "Jupiter V6",
		TxID:          result.ExecutionID,
		Time:          e.now().UnixMilli(),
	})
	if err != nil {
		return fmt.Errorf("record buy: %w", err)
	}

	e.notifier.Notify(ctx, fmt.Sprintf("followed %s: bought %f %s[%s] for %f SOL",
		label, result.ExecutedToAmount, symbol, token, result.ExecutedFromAmount))
	return nil
}

// followSell mirrors the source's exit proportionally.
func (e *Engine) followSell(ctx context.Context, swap *domain.ClassifiedSwap, policy *domain.FollowPolicy) error {
	label := policy.Label()
	token := swap.FromMint
	symbol := swap.FromSymbol

	e.notifier.Notify(ctx, fmt.Sprintf("%s sold %f %s[%s] for %.2f SOL",
		label, swap.FromAmount, symbol, token, swap.ToAmount))

	if !policy.FollowSell {
		e.log.Info("follow-sell disabled for wallet", zap.String("wallet", label))
		return nil
	}

	position, err := e.ledger.GetPosition(ctx, e.cfg.Wallet, token)
	if errors.Is(err, storage.ErrNotFound) {
		// Nothing to follow.
		e.log.Info("no own position for sold token", zap.String("mint", token))
		return nil
	}
	if err != nil {
		return fmt.Errorf("read own position: %w", err)
	}

	// The shadow position was already decremented, so the fraction is
	// saleAmount over (remaining + saleAmount). A source with no tracked
	// prior position bought before monitoring started: full exit.
	sellPercent := 1.0
	srcPos, err := e.ledger.GetPosition(ctx, swap.Wallet, token)
	if err == nil {
		sellPercent = swap.FromAmount / (srcPos.Balance + swap.FromAmount)
	} else if !errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("read source position: %w", err)
	}
	if sellPercent > domain.FullExitSnapThreshold {
		e.log.Info("sell fraction above snap threshold, treating as full exit",
			zap.Float64("percent", sellPercent))
		sellPercent = 1.0
	}

	sellAmount := position.Balance * sellPercent
	if sellPercent == 1.0 {
		// Ledger drift from untracked transfers makes the stored balance
		// unreliable for a full exit; trust the chain instead.
		balance, err := e.rpc.GetTokenBalance(ctx, e.cfg.Wallet, token)
		switch {
		case err != nil:
			e.log.Error("on-chain balance lookup failed, using ledger balance",
				zap.String("mint", token), zap.Error(err))
		case balance == 0:
			e.log.Info("on-chain balance is zero, nothing to sell", zap.String("mint", token))
			return nil
		default:
			if err := e.ledger.SetBalance(ctx, e.cfg.Wallet, token, balance); err != nil {
				e.log.Error("persist corrected balance failed", zap.Error(err))
			}
			e.log.Info("corrected sell amount from chain",
				zap.Float64("ledger", sellAmount), zap.Float64("chain", balance))
			sellAmount = balance
		}
	}

	e.log.Info("following sell",
		zap.String("wallet", label),
		zap.Float64("own_balance", position.Balance),
		zap.Float64("percent", sellPercent),
		zap.Float64("amount", sellAmount))

	result, err := e.executeSell(ctx, token, symbol, sellAmount)
	if err != nil {
		observability.RecordFollowSell("failed")
		msg := fmt.Sprintf("follow-sell of %s[%s] after %s failed: %v", symbol, token, label, err)
		e.log.Error(msg)
		e.notifier.Notify(ctx, msg)
		return err
	}
	observability.RecordFollowSell("executed")

	err = e.ledger.ApplySell(ctx, &storage.SellOp{
		Owner:        e.cfg.Wallet,
		Asset:        token,
		Symbol:       symbol,
		AssetSold:    sellAmount,
		BaseReceived: result.ExecutedToAmount,
		SourceWallet: swap.Wallet,
		Dex:          "Jupiter V6",
		TxID:         result.ExecutionID,
		Time:         e.now().UnixMilli(),
	})
	if err != nil {
		return fmt.Errorf("record sell: %w", err)
	}

	e.notifier.Notify(ctx, fmt.Sprintf("followed %s: sold %f %s[%s] for %f SOL",
		label, sellAmount, symbol, token, result.ExecutedToAmount))
	return nil
}

// executeSell converts the ui amount to integer smallest units, always
// rounding down, and runs the gateway swap into SOL.
func (e *Engine) executeSell(ctx context.Context, token, symbol string, sellAmount float64) (*gateway.SwapResult, error) {
	md, err := e.resolver.Resolve(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("resolve decimals for %s: %w", token, err)
	}
	if !md.Known() {
		return nil, fmt.Errorf("unknown decimals for %s, cannot size sell", token)
	}

	units := uint64(math.Floor(sellAmount * math.Pow(10, float64(md.Decimals))))
	if units == 0 {
		return nil, fmt.Errorf("sell amount %f of %s rounds to zero units", sellAmount, symbol)
	}

	result, err := e.gateway.ExecuteSwap(ctx, token, domain.WSOL, units)
	if err != nil {
		return nil, fmt.Errorf("execute sell: %w", err)
	}
	return result, nil
}

// ManualBuy purchases a fixed 0.1 SOL of the token, bypassing all policy
// gates. Used by the operator directly.
func (e *Engine) ManualBuy(ctx context.Context, token string) (*gateway.SwapResult, error) {
	solAmount := domain.DefaultFollowAmount

	symbol := domain.UnknownSymbol
	if md, err := e.resolver.Resolve(ctx, token); err == nil {
		symbol = md.Symbol
	}

	// Keep the original source attribution if this token is already a
	// followed position.
	sourceWallet := ""
	if pos, err := e.ledger.GetPosition(ctx, e.cfg.Wallet, token); err == nil {
		sourceWallet = pos.SourceWallet
	}

	lamports := uint64(math.Floor(solAmount * 1e9))
	result, err := e.gateway.ExecuteSwap(ctx, domain.WSOL, token, lamports)
	if err != nil {
		return nil, fmt.Errorf("manual buy: %w", err)
	}

	err = e.ledger.ApplyBuy(ctx, &storage.BuyOp{
		Owner:         e.cfg.Wallet,
		Asset:         token,
		Symbol:        symbol,
		BaseSpent:     result.ExecutedFromAmount,
		AssetReceived: result.ExecutedToAmount,
		SourceWallet:  sourceWallet,
		Dex:           "Jupiter V6",
		TxID:          result.ExecutionID,
		Time:          e.now().UnixMilli(),
	})
	if err != nil {
		return nil, fmt.Errorf("record manual buy: %w", err)
	}

	e.log.Info("manual buy executed",
		zap.String("mint", token),
		zap.Float64("sol", result.ExecutedFromAmount),
		zap.Float64("received", result.ExecutedToAmount))
	return result, nil
}

// SellPercent sells a fraction of the operator's position in the token.
// Unlike the automated path, a missing position surfaces
// ErrInsufficientPosition to the caller.
func (e *Engine) SellPercent(ctx context.Context, token string, percent float64) (*gateway.SwapResult, error) {
	if percent <= 0 || percent > 1 {
		return nil, fmt.Errorf("sell percent %f out of range (0, 1]", percent)
	}

	position, err := e.ledger.GetPosition(ctx, e.cfg.Wallet, token)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, storage.ErrInsufficientPosition
	}
	if err != nil {
		return nil, fmt.Errorf("read position: %w", err)
	}

	sellAmount := position.Balance * percent
	result, err := e.executeSell(ctx, token, position.Symbol, sellAmount)
	if err != nil {
		return nil, err
	}

	err = e.ledger.ApplySell(ctx, &storage.SellOp{
		Owner:        e.cfg.Wallet,
		Asset:        token,
		Symbol:       position.Symbol,
		AssetSold:    sellAmount,
		BaseReceived: result.ExecutedToAmount,
		SourceWallet: position.SourceWallet,
		Dex:          "Jupiter V6",
		TxID:         result.ExecutionID,
		Time:         e.now().UnixMilli(),
	})
	if err != nil {
		return nil, fmt.Errorf("record manual sell: %w", err)
	}

	e.log.Info("manual sell executed",
		zap.String("mint", token),
		zap.Float64("percent", percent),
		zap.Float64("amount", sellAmount))
	return result, nil
}
