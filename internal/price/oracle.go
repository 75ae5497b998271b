// Package price provides best-effort token price lookups in SOL.
package price

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// Oracle returns the current price of a mint in SOL.
type Oracle interface {
	GetPrice(ctx context.Context, mint string) (float64, error)
}

// HTTPOracle queries a price API serving
// GET <base>/v6/price?ids=<mint> with a JSON body keyed by mint.
type HTTPOracle struct {
	baseURL string
	client  *http.Client
}

// NewHTTPOracle creates an HTTP price oracle.
func NewHTTPOracle(baseURL string, timeout time.Duration) *HTTPOracle {
	return &HTTPOracle{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

var _ Oracle = (*HTTPOracle)(nil)

// GetPrice fetches the price for one mint.
func (o *HTTPOracle) GetPrice(ctx context.Context, mint string) (float64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, o.baseURL+"/v6/price?ids="+mint, nil)
	if err != nil {
		return 0, fmt.Errorf("create request: %w", err)
	}

	resp, err := o.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("fetch price %s: %w", mint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("unexpected status %d for mint %s", resp.StatusCode, mint)
	}

	var body struct {
		Data map[string]struct {
			Price float64 `json:"price"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return 0, fmt.Errorf("decode price %s: %w", mint, err)
	}

	entry, ok := body.Data[mint]
	if !ok {
		return 0, fmt.Errorf("no price for mint %s", mint)
	}
	return entry.Price, nil
}

// FixedOracle returns a constant price for every mint, used in dev mode.
type FixedOracle struct {
	Price float64
}

var _ Oracle = (*FixedOracle)(nil)

// GetPrice returns the fixed price.
func (o *FixedOracle) GetPrice(_ context.Context, _ string) (float64, error) {
	return o.Price, nil
}
