package metadata

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"solana-copy-trader/internal/domain"
	"solana-copy-trader/internal/solana/stub"
	"solana-copy-trader/internal/storage/memory"
)

type fakeSource struct {
	tokens  map[string]*domain.TokenMetadata
	fetches int
	err     error
}

func (s *fakeSource) Fetch(_ context.Context, mint string) (*domain.TokenMetadata, error) {
	s.fetches++
	if s.err != nil {
		return nil, s.err
	}
	md, ok := s.tokens[mint]
	if !ok {
		return &domain.TokenMetadata{Mint: mint, Name: domain.UnknownSymbol, Symbol: domain.UnknownSymbol}, nil
	}
	mdCopy := *md
	return &mdCopy, nil
}

func TestResolver_FetchOnceThenCache(t *testing.T) {
	store := memory.NewMetadataStore()
	source := &fakeSource{tokens: map[string]*domain.TokenMetadata{
		"mint1": {Mint: "mint1", Name: "Token One", Symbol: "ONE", Decimals: 6},
	}}
	rpc := stub.NewRPCClient()
	rpc.SetTokenSupply("mint1", 1_000_000)

	r := NewResolver(store, source, rpc, zap.NewNop())
	ctx := context.Background()

	md, err := r.Resolve(ctx, "mint1")
	require.NoError(t, err)
	assert.Equal(t, "ONE", md.Symbol)
	assert.Equal(t, 1_000_000.0, md.Supply)

	// Second resolve hits the cache.
	md, err = r.Resolve(ctx, "mint1")
	require.NoError(t, err)
	assert.Equal(t, "ONE", md.Symbol)
	assert.Equal(t, 1, source.fetches)
}

func TestResolver_UnknownNotCached(t *testing.T) {
	store := memory.NewMetadataStore()
	source := &fakeSource{}
	r := NewResolver(store, source, stub.NewRPCClient(), zap.NewNop())
	ctx := context.Background()

	md, err := r.Resolve(ctx, "unlisted")
	require.NoError(t, err)
	assert.Equal(t, domain.UnknownSymbol, md.Symbol)

	// An unknown token is fetched again next time rather than pinned as
	// unknown forever.
	_, err = r.Resolve(ctx, "unlisted")
	require.NoError(t, err)
	assert.Equal(t, 2, source.fetches)
}

func TestResolver_SourceErrorSurfaces(t *testing.T) {
	store := memory.NewMetadataStore()
	source := &fakeSource{err: errors.New("upstream down")}
	r := NewResolver(store, source, stub.NewRPCClient(), zap.NewNop())

	_, err := r.Resolve(context.Background(), "mint1")
	assert.Error(t, err)
}

func TestResolver_SupplyFailureSoft(t *testing.T) {
	store := memory.NewMetadataStore()
	source := &fakeSource{tokens: map[string]*domain.TokenMetadata{
		"mint1": {Mint: "mint1", Name: "Token One", Symbol: "ONE", Decimals: 6},
	}}
	rpc := stub.NewRPCClient()
	// Supply stays zero when the lookup has no data; resolve still
	// succeeds and caches.
	r := NewResolver(store, source, rpc, zap.NewNop())

	md, err := r.Resolve(context.Background(), "mint1")
	require.NoError(t, err)
	assert.Equal(t, 0.0, md.Supply)

	cached, err := store.Get(context.Background(), "mint1")
	require.NoError(t, err)
	assert.Equal(t, "ONE", cached.Symbol)
}
