package solana

import "context"

// WSClient defines the Solana WebSocket subscription interface.
type WSClient interface {
	// SubscribeLogs subscribes to transaction logs matching the filter.
	SubscribeLogs(ctx context.Context, filter LogsFilter) (<-chan LogNotification, error)

	// Close closes the WebSocket connection.
	Close() error
}

// LogsFilter defines a logsSubscribe filter.
type LogsFilter struct {
	// Mentions filters logs that mention any of these addresses
	// (token mint or program ID).
	Mentions []string
}

// LogNotification is one logsNotification message.
type LogNotification struct {
	Signature string
	Slot      int64
	Logs      []string
	Err       interface{} // non-nil for failed transactions
}
