package domain

// TokenMetadata describes a mint as reported by the metadata service.
// Corresponds to the token_metadata table; cached entries are never
// auto-refreshed.
type TokenMetadata struct {
	Mint      string
	Name      string
	Symbol    string
	Decimals  int
	Supply    float64 // total ui supply, 0 when unknown
	FetchedAt int64   // when metadata was fetched, Unix milliseconds
}

// UnknownSymbol is used for mints the metadata service cannot resolve.
// Unknown metadata is returned to callers but never cached.
const UnknownSymbol = "Unknown"

// Known reports whether the metadata was actually resolved.
func (m *TokenMetadata) Known() bool {
	return m.Symbol != UnknownSymbol
}
