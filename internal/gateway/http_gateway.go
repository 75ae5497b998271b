package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"solana-copy-trader/internal/observability"
)

// Default configuration values.
const (
	DefaultTimeout    = 90 * time.Second
	DefaultMaxRetries = 3
	DefaultRetryDelay = 2 * time.Second
)

// HTTPGateway implements Gateway against a swap-router HTTP API. It posts
// the swap request and retries transient failures up to a fixed bound.
type HTTPGateway struct {
	baseURL     string
	wallet      string
	slippageBps int
	client      *http.Client
	maxRetries  int
	retryDelay  time.Duration
	log         *zap.Logger
}

// GatewayOption configures HTTPGateway.
type GatewayOption func(*HTTPGateway)

// WithMaxRetries sets maximum retry attempts.
func WithMaxRetries(n int) GatewayOption {
	return func(g *HTTPGateway) {
		g.maxRetries = n
	}
}

// WithRetryDelay sets the delay between retries.
func WithRetryDelay(d time.Duration) GatewayOption {
	return func(g *HTTPGateway) {
		g.retryDelay = d
	}
}

// WithSlippageBps sets the maximum slippage in basis points.
func WithSlippageBps(bps int) GatewayOption {
	return func(g *HTTPGateway) {
		g.slippageBps = bps
	}
}

// WithHTTPClient sets a custom http.Client.
func WithHTTPClient(client *http.Client) GatewayOption {
	return func(g *HTTPGateway) {
		g.client = client
	}
}

// NewHTTPGateway creates a gateway for the operator wallet.
func NewHTTPGateway(baseURL, wallet string, log *zap.Logger, opts ...GatewayOption) *HTTPGateway {
	g := &HTTPGateway{
		baseURL:     baseURL,
		wallet:      wallet,
		slippageBps: 1000,
		client:      &http.Client{Timeout: DefaultTimeout},
		maxRetries:  DefaultMaxRetries,
		retryDelay:  DefaultRetryDelay,
		log:         log,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

var _ Gateway = (*HTTPGateway)(nil)

// swapRequest is the router's execution request body.
type swapRequest struct {
	FromMint    string `json:"from_mint"`
	ToMint      string `json:"to_mint"`
	Amount      uint64 `json:"amount"`
	Wallet      string `json:"wallet"`
	SlippageBps int    `json:"slippage_bps"`
}

// swapResponse is the router's execution response body.
type swapResponse struct {
	InAmount   float64 `json:"in_amount"`
	OutAmount  float64 `json:"out_amount"`
	PriceRatio float64 `json:"price_ratio"`
	TxHash     string  `json:"tx_hash"`
	Error      string  `json:"error"`
}

// ExecuteSwap submits the swap and waits for confirmation, retrying
// transient failures up to the configured bound.
func (g *HTTPGateway) ExecuteSwap(ctx context.Context, fromMint, toMint string, amountSmallestUnits uint64) (*SwapResult, error) {
	body, err := json.Marshal(swapRequest{
		FromMint:    fromMint,
		ToMint:      toMint,
		Amount:      amountSmallestUnits,
		Wallet:      g.wallet,
		SlippageBps: g.slippageBps,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal swap request: %w", err)
	}

	start := time.Now()
	defer func() {
		observability.DefaultMetrics.GatewayLatency.Observe(time.Since(start).Seconds())
	}()

	var lastErr error
	for attempt := 0; attempt <= g.maxRetries; attempt++ {
		if attempt > 0 {
			g.log.Warn("retrying swap execution",
				zap.Int("attempt", attempt),
				zap.String("from", fromMint),
				zap.String("to", toMint),
				zap.Error(lastErr))
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(g.retryDelay):
			}
		}

		result, err := g.submit(ctx, body)
		if err != nil {
			lastErr = err
			continue
		}
		return result, nil
	}

	return nil, fmt.Errorf("swap execution exhausted retries: %w", lastErr)
}

func (g *HTTPGateway) submit(ctx context.Context, body []byte) (*SwapResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/v1/swap", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("submit swap: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read swap response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(respBody))
	}

	var sr swapResponse
	if err := json.Unmarshal(respBody, &sr); err != nil {
		return nil, fmt.Errorf("decode swap response: %w", err)
	}
	if sr.Error != "" {
		return nil, fmt.Errorf("swap rejected: %s", sr.Error)
	}
	if sr.TxHash == "" {
		return nil, fmt.Errorf("swap response missing tx hash")
	}

	return &SwapResult{
		ExecutedFromAmount: sr.InAmount,
		ExecutedToAmount:   sr.OutAmount,
		PriceRatio:         sr.PriceRatio,
		ExecutionID:        sr.TxHash,
	}, nil
}
