package solana

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"solana-copy-trader/internal/observability"
)

// WSConfig configures WebSocket client behavior.
type WSConfig struct {
	// ReconnectDelay is the initial delay before a reconnect attempt.
	ReconnectDelay time.Duration
	// MaxReconnectDelay caps the delay between reconnect attempts.
	MaxReconnectDelay time.Duration
	// ReadTimeout is the timeout for reading messages.
	ReadTimeout time.Duration
	// WriteTimeout is the timeout for writing messages.
	WriteTimeout time.Duration
	// SubscribeTimeout is how long to wait for a subscription confirmation.
	SubscribeTimeout time.Duration
}

// DefaultWSConfig returns the default WebSocket configuration.
func DefaultWSConfig() WSConfig {
	return WSConfig{
		ReconnectDelay:    1 * time.Second,
		MaxReconnectDelay: 30 * time.Second,
		ReadTimeout:       120 * time.Second,
		WriteTimeout:      10 * time.Second,
		SubscribeTimeout:  30 * time.Second,
	}
}

// walletSub is one active logsSubscribe keyed by the wallet it mentions.
type walletSub struct {
	wallet string
	ch     chan LogNotification
}

// WSClientImpl implements WSClient using gorilla/websocket. On connection
// loss it reconnects with exponential backoff and re-issues every active
// wallet subscription.
type WSClientImpl struct {
	endpoint string
	config   WSConfig

	conn      *websocket.Conn
	connMu    sync.Mutex
	closed    atomic.Bool
	requestID atomic.Uint64

	// subs maps server subscription ID to the wallet subscription.
	subs   map[int64]*walletSub
	subsMu sync.Mutex

	// pending maps request ID to a channel waiting for the subscription ID.
	pending   map[uint64]chan int64
	pendingMu sync.Mutex

	reconnecting atomic.Bool
	done         chan struct{}
	wg           sync.WaitGroup
}

// NewWSClient connects to the endpoint and starts the read loop.
func NewWSClient(ctx context.Context, endpoint string, config *WSConfig) (*WSClientImpl, error) {
	cfg := DefaultWSConfig()
	if config != nil {
		cfg = *config
	}

	c := &WSClientImpl{
		endpoint: endpoint,
		config:   cfg,
		subs:     make(map[int64]*walletSub),
		pending:  make(map[uint64]chan int64),
		done:     make(chan struct{}),
	}

	if err := c.connect(ctx); err != nil {
		return nil, err
	}

	c.wg.Add(1)
	go c.readLoop()

	return c, nil
}

var _ WSClient = (*WSClientImpl)(nil)

func (c *WSClientImpl) connect(ctx context.Context) error {
	c.connMu.Lock()
	defer c.connMu.Unlock()

	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, c.endpoint, nil)
	if err != nil {
		return fmt.Errorf("websocket dial: %w", err)
	}
	c.conn = conn
	return nil
}

// wsRequest is a JSON-RPC 2.0 websocket request.
type wsRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      uint64        `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params"`
}

// SubscribeWalletLogs subscribes to logs mentioning the wallet.
func (c *WSClientImpl) SubscribeWalletLogs(ctx context.Context, wallet string) (<-chan LogNotification, error) {
	subID, err := c.sendSubscribe(ctx, wallet)
	if err != nil {
		return nil, err
	}

	// Buffer absorbs bursts; the consumer drains one item per tick.
	sub := &walletSub{wallet: wallet, ch: make(chan LogNotification, 1024)}
	c.subsMu.Lock()
	c.subs[subID] = sub
	c.subsMu.Unlock()

	return sub.ch, nil
}

// sendSubscribe issues logsSubscribe and waits for the subscription ID.
func (c *WSClientImpl) sendSubscribe(ctx context.Context, wallet string) (int64, error) {
	if c.closed.Load() {
		return 0, fmt.Errorf("client closed")
	}

	reqID := c.requestID.Add(1)
	req := wsRequest{
		JSONRPC: "2.0",
		ID:      reqID,
		Method:  "logsSubscribe",
		Params: []interface{}{
			map[string]interface{}{"mentions": []string{wallet}},
			map[string]string{"commitment": "confirmed"},
		},
	}

	confirmCh := make(chan int64, 1)
	c.pendingMu.Lock()
	c.pending[reqID] = confirmCh
	c.pendingMu.Unlock()

	cleanup := func() {
		c.pendingMu.Lock()
		delete(c.pending, reqID)
		c.pendingMu.Unlock()
	}

	c.connMu.Lock()
	if c.conn == nil {
		c.connMu.Unlock()
		cleanup()
		return 0, fmt.Errorf("not connected")
	}
	c.conn.SetWriteDeadline(time.Now().Add(c.config.WriteTimeout))
	err := c.conn.WriteJSON(req)
	c.connMu.Unlock()
	if err != nil {
		cleanup()
		return 0, fmt.Errorf("write subscribe: %w", err)
	}

	select {
	case subID := <-confirmCh:
		return subID, nil
	case <-time.After(c.config.SubscribeTimeout):
		cleanup()
		return 0, fmt.Errorf("subscription timeout after %v", c.config.SubscribeTimeout)
	case <-c.done:
		return 0, fmt.Errorf("client closed")
	case <-ctx.Done():
		cleanup()
		return 0, ctx.Err()
	}
}

// Close closes the connection and all subscription channels.
func (c *WSClientImpl) Close() error {
	if c.closed.Swap(true) {
		return nil
	}

	close(c.done)

	c.connMu.Lock()
	if c.conn != nil {
		c.conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		c.conn.Close()
	}
	c.connMu.Unlock()

	c.subsMu.Lock()
	for id, sub := range c.subs {
		close(sub.ch)
		delete(c.subs, id)
	}
	c.subsMu.Unlock()

	c.pendingMu.Lock()
	for id, ch := range c.pending {
		close(ch)
		delete(c.pending, id)
	}
	c.pendingMu.Unlock()

	c.wg.Wait()
	return nil
}

// readLoop reads messages and dispatches them; on error it schedules a
// reconnect with exponential backoff.
func (c *WSClientImpl) readLoop() {
	defer c.wg.Done()

	reconnectDelay := c.config.ReconnectDelay

	for !c.closed.Load() {
		c.connMu.Lock()
		conn := c.conn
		c.connMu.Unlock()

		if conn == nil {
			select {
			case <-c.done:
				return
			case <-time.After(100 * time.Millisecond):
				continue
			}
		}

		conn.SetReadDeadline(time.Now().Add(c.config.ReadTimeout))
		_, message, err := conn.ReadMessage()
		if err != nil {
			if c.closed.Load() {
				return
			}
			if !c.reconnecting.Swap(true) {
				go c.reconnect(reconnectDelay)
			}
			reconnectDelay *= 2
			if reconnectDelay > c.config.MaxReconnectDelay {
				reconnectDelay = c.config.MaxReconnectDelay
			}
			select {
			case <-c.done:
				return
			case <-time.After(100 * time.Millisecond):
				continue
			}
		}

		reconnectDelay = c.config.ReconnectDelay
		c.handleMessage(message)
	}
}

// reconnect re-establishes the connection and re-issues every active
// wallet subscription under a fresh subscription ID.
func (c *WSClientImpl) reconnect(delay time.Duration) {
	defer c.reconnecting.Store(false)

	select {
	case <-c.done:
		return
	case <-time.After(delay):
	}

	c.connMu.Lock()
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
	c.connMu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := c.connect(ctx); err != nil {
		// Next read error triggers another attempt.
		return
	}
	observability.DefaultMetrics.WSReconnects.Inc()

	c.subsMu.Lock()
	active := make(map[int64]*walletSub, len(c.subs))
	for id, sub := range c.subs {
		active[id] = sub
	}
	c.subsMu.Unlock()

	for oldID, sub := range active {
		subCtx, subCancel := context.WithTimeout(context.Background(), 10*time.Second)
		newID, err := c.sendSubscribe(subCtx, sub.wallet)
		subCancel()
		if err != nil {
			continue
		}
		c.subsMu.Lock()
		delete(c.subs, oldID)
		c.subs[newID] = sub
		c.subsMu.Unlock()
	}
}

// wsMessage covers both subscription confirmations and notifications.
type wsMessage struct {
	ID     uint64          `json:"id"`
	Result json.RawMessage `json:"result"`
	Method string          `json:"method"`
	Params *struct {
		Subscription int64 `json:"subscription"`
		Result       struct {
			Context struct {
				Slot int64 `json:"slot"`
			} `json:"context"`
			Value struct {
				Signature string      `json:"signature"`
				Logs      []string    `json:"logs"`
				Err       interface{} `json:"err"`
			} `json:"value"`
		} `json:"result"`
	} `json:"params"`
}

// handleMessage dispatches one websocket frame.
func (c *WSClientImpl) handleMessage(message []byte) {
	var msg wsMessage
	if err := json.Unmarshal(message, &msg); err != nil {
		return
	}

	// Subscription confirmation: {"id": N, "result": <subID>}
	if msg.ID != 0 && msg.Result != nil {
		var subID int64
		if err := json.Unmarshal(msg.Result, &subID); err != nil {
			return
		}
		c.pendingMu.Lock()
		ch, ok := c.pending[msg.ID]
		if ok {
			delete(c.pending, msg.ID)
		}
		c.pendingMu.Unlock()
		if ok {
			ch <- subID
		}
		return
	}

	if msg.Method != "logsNotification" || msg.Params == nil {
		return
	}

	c.subsMu.Lock()
	sub, ok := c.subs[msg.Params.Subscription]
	c.subsMu.Unlock()
	if !ok {
		return
	}

	n := LogNotification{
		Signature: msg.Params.Result.Value.Signature,
		Slot:      msg.Params.Result.Context.Slot,
		Logs:      msg.Params.Result.Value.Logs,
		Err:       msg.Params.Result.Value.Err,
	}

	select {
	case sub.ch <- n:
	default:
		// Drop when the consumer is saturated; the next poll of
		// getSignaturesForAddress can backfill.
	}
}
