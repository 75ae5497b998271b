// Package metadata resolves token symbol, name, decimals and supply,
// backed by a persistent cache that is never refreshed once populated.
package metadata

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"solana-copy-trader/internal/domain"
	"solana-copy-trader/internal/solana"
	"solana-copy-trader/internal/storage"
)

// Source fetches token metadata from an external provider.
type Source interface {
	Fetch(ctx context.Context, mint string) (*domain.TokenMetadata, error)
}

// Resolver serves metadata from the cache, fetching and caching on miss.
// Unknown results are returned but never cached, so a later listing can
// still resolve the token.
type Resolver struct {
	store  storage.MetadataStore
	source Source
	rpc    solana.RPCClient
	log    *zap.Logger
}

// NewResolver creates a resolver.
func NewResolver(store storage.MetadataStore, source Source, rpc solana.RPCClient, log *zap.Logger) *Resolver {
	return &Resolver{store: store, source: source, rpc: rpc, log: log}
}

// Resolve returns metadata for a mint.
func (r *Resolver) Resolve(ctx context.Context, mint string) (*domain.TokenMetadata, error) {
	md, err := r.store.Get(ctx, mint)
	if err == nil {
		return md, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("metadata cache: %w", err)
	}

	md, err = r.source.Fetch(ctx, mint)
	if err != nil {
		return nil, fmt.Errorf("fetch metadata %s: %w", mint, err)
	}

	if !md.Known() {
		return md, nil
	}

	// Supply is fetched once alongside the rest so market-value checks
	// don't need a second lookup.
	supply, err := r.rpc.GetTokenSupply(ctx, mint)
	if err != nil {
		r.log.Warn("token supply lookup failed", zap.String("mint", mint), zap.Error(err))
	} else {
		md.Supply = supply
	}
	md.FetchedAt = time.Now().UnixMilli()

	if err := r.store.Put(ctx, md); err != nil {
		return nil, fmt.Errorf("cache metadata %s: %w", mint, err)
	}
	return md, nil
}

// HTTPSource fetches metadata from a token-list API that serves
// GET <base>/v1/mints/<mint> with a JSON body.
type HTTPSource struct {
	baseURL string
	client  *http.Client
}

// NewHTTPSource creates an HTTP metadata source.
func NewHTTPSource(baseURL string, timeout time.Duration) *HTTPSource {
	return &HTTPSource{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

var _ Source = (*HTTPSource)(nil)

// Fetch requests metadata for one mint. A missing token is not an error:
// it returns an Unknown record, mirroring how unlisted tokens behave.
func (s *HTTPSource) Fetch(ctx context.Context, mint string) (*domain.TokenMetadata, error) {
	unknown := &domain.TokenMetadata{
		Mint:   mint,
		Name:   domain.UnknownSymbol,
		Symbol: domain.UnknownSymbol,
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"/v1/mints/"+mint, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch mint %s: %w", mint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return unknown, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d for mint %s", resp.StatusCode, mint)
	}

	var body struct {
		Name     string `json:"name"`
		Symbol   string `json:"symbol"`
		Decimals int    `json:"decimals"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode mint %s: %w", mint, err)
	}
	if body.Symbol == "" {
		return unknown, nil
	}

	return &domain.TokenMetadata{
		Mint:     mint,
		Name:     body.Name,
		Symbol:   body.Symbol,
		Decimals: body.Decimals,
	}, nil
}
