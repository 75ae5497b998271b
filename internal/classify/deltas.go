package classify

import (
	"sort"

	"solana-copy-trader/internal/solana"
)

// AssetDelta is the net balance change of one mint for one owner across a
// transaction.
type AssetDelta struct {
	Mint     string
	Amount   float64
	Decimals int
}

// TokenDeltas computes per-mint balance deltas (post minus pre) for all
// token accounts owned by the wallet. Mints whose net change is zero are
// dropped. The result is ordered by mint for determinism.
func TokenDeltas(tx *solana.Transaction, wallet string) []AssetDelta {
	if tx.Meta == nil {
		return nil
	}

	amounts := make(map[string]float64)
	decimals := make(map[string]int)

	for _, b := range tx.Meta.PreTokenBalances {
		if b.Owner != wallet {
			continue
		}
		amounts[b.Mint] -= b.UITokenAmount.Value()
		decimals[b.Mint] = b.UITokenAmount.Decimals
	}
	for _, b := range tx.Meta.PostTokenBalances {
		if b.Owner != wallet {
			continue
		}
		amounts[b.Mint] += b.UITokenAmount.Value()
		decimals[b.Mint] = b.UITokenAmount.Decimals
	}

	deltas := make([]AssetDelta, 0, len(amounts))
	for mint, amount := range amounts {
		if amount == 0 {
			continue
		}
		deltas = append(deltas, AssetDelta{Mint: mint, Amount: amount, Decimals: decimals[mint]})
	}
	sort.Slice(deltas, func(i, j int) bool { return deltas[i].Mint < deltas[j].Mint })
	return deltas
}

// NativeDelta returns the wallet's lamport balance change in SOL units.
func NativeDelta(tx *solana.Transaction, wallet string) float64 {
	if tx.Meta == nil || tx.Message == nil {
		return 0
	}
	keys := tx.AllAccountKeys()
	for i, key := range keys {
		if key != wallet {
			continue
		}
		if i >= len(tx.Meta.PreBalances) || i >= len(tx.Meta.PostBalances) {
			return 0
		}
		lamports := int64(tx.Meta.PostBalances[i]) - int64(tx.Meta.PreBalances[i])
		return float64(lamports) / 1e9
	}
	return 0
}

// ownerDeltas computes per-owner per-mint deltas for every owner in the
// transaction, used by transfer detection.
func ownerDeltas(tx *solana.Transaction) map[string]map[string]float64 {
	out := make(map[string]map[string]float64)
	if tx.Meta == nil {
		return out
	}
	add := func(owner, mint string, amount float64) {
		if out[owner] == nil {
			out[owner] = make(map[string]float64)
		}
		out[owner][mint] += amount
	}
	for _, b := range tx.Meta.PreTokenBalances {
		add(b.Owner, b.Mint, -b.UITokenAmount.Value())
	}
	for _, b := range tx.Meta.PostTokenBalances {
		add(b.Owner, b.Mint, b.UITokenAmount.Value())
	}
	return out
}
