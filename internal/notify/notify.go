// Package notify delivers operator alerts. Delivery is fire-and-forget:
// failures are logged and swallowed, never propagated.
package notify

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"go.uber.org/zap"

	"solana-copy-trader/internal/observability"
)

// Notifier sends one message to the operator.
type Notifier interface {
	Notify(ctx context.Context, message string)
}

// TelegramNotifier sends messages through the Telegram bot API.
type TelegramNotifier struct {
	botKey string
	chatID string
	client *http.Client
	log    *zap.Logger
}

// NewTelegramNotifier creates a Telegram notifier. Group chat IDs get the
// -100 supergroup prefix applied by the caller's config.
func NewTelegramNotifier(botKey, chatID string, log *zap.Logger) *TelegramNotifier {
	return &TelegramNotifier{
		botKey: botKey,
		chatID: chatID,
		client: &http.Client{Timeout: 10 * time.Second},
		log:    log,
	}
}

var _ Notifier = (*TelegramNotifier)(nil)

// Notify sends the message. Errors are logged, never returned.
func (n *TelegramNotifier) Notify(ctx context.Context, message string) {
	endpoint := fmt.Sprintf("https://api.telegram.org/bot%s/sendMessage?chat_id=%s&text=%s",
		n.botKey, n.chatID, url.QueryEscape(message))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		n.log.Error("build notification request", zap.Error(err))
		return
	}

	resp, err := n.client.Do(req)
	if err != nil {
		n.log.Error("send notification", zap.Error(err))
		return
	}
	resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		n.log.Error("notification rejected", zap.Int("status", resp.StatusCode))
		return
	}
	observability.DefaultMetrics.NotificationsSent.Inc()
}

// LogNotifier writes messages to the log only, used in dev mode.
type LogNotifier struct {
	log *zap.Logger
}

// NewLogNotifier creates a log-only notifier.
func NewLogNotifier(log *zap.Logger) *LogNotifier {
	return &LogNotifier{log: log}
}

var _ Notifier = (*LogNotifier)(nil)

// Notify logs the message.
func (n *LogNotifier) Notify(_ context.Context, message string) {
	n.log.Info("notification", zap.String("message", message))
	observability.DefaultMetrics.NotificationsSent.Inc()
}

// Recorder collects messages for tests.
type Recorder struct {
	mu       sync.Mutex
	messages []string
}

var _ Notifier = (*Recorder)(nil)

// Notify records the message.
func (r *Recorder) Notify(_ context.Context, message string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.messages = append(r.messages, message)
}

// Messages returns all recorded messages.
func (r *Recorder) Messages() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]string, len(r.messages))
	copy(out, r.messages)
	return out
}
