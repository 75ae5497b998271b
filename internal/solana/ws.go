package solana

import "context"

// WSClient defines the Solana WebSocket subscription interface.
type WSClient interface {
	// SubscribeWalletLogs subscribes to log notifications mentioning a
	// wallet. Each notification carries the signature of one transaction
	// the wallet took part in.
	SubscribeWalletLogs(ctx context.Context, wallet string) (<-chan LogNotification, error)

	// Close closes the WebSocket connection and all subscription channels.
	Close() error
}

// LogNotification represents a logsNotification message.
type LogNotification struct {
	Signature string
	Slot      int64
	Logs      []string
	Err       interface{}
}
