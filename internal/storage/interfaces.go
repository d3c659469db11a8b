package storage

import (
	"context"
	"time"

	"solana-buy-watcher/internal/domain"
)

// AlertStore provides access to sent-alert history storage.
type AlertStore interface {
	// Insert adds a new alert record. Returns ErrDuplicateKey if the
	// signature was already recorded.
	Insert(ctx context.Context, a *domain.AlertRecord) error

	// GetBySignature retrieves an alert by transaction signature.
	// Returns ErrNotFound if not exists.
	GetBySignature(ctx context.Context, signature string) (*domain.AlertRecord, error)

	// GetRecent retrieves the most recent alerts, newest first.
	GetRecent(ctx context.Context, limit int) ([]*domain.AlertRecord, error)
}

// BuyEventStore provides access to the raw buy-event archive.
type BuyEventStore interface {
	// Insert appends an observed buy event.
	Insert(ctx context.Context, e *domain.BuyEventRecord) error

	// GetByTimeRange retrieves events observed within [start, end]
	// (inclusive), ordered by observation time ASC.
	GetByTimeRange(ctx context.Context, start, end time.Time) ([]*domain.BuyEventRecord, error)
}
