package clickhouse

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"solana-buy-watcher/internal/domain"
	"solana-buy-watcher/internal/observability"
	"solana-buy-watcher/internal/storage"
)

// BuyEventStore implements storage.BuyEventStore using ClickHouse. The
// archive is append-only; MergeTree does not enforce uniqueness and
// reconnect replays may land twice, which downstream analysis is
// expected to tolerate.
type BuyEventStore struct {
	conn *Conn
}

// NewBuyEventStore creates a new BuyEventStore.
func NewBuyEventStore(conn *Conn) *BuyEventStore {
	return &BuyEventStore{conn: conn}
}

// Compile-time interface check.
var _ storage.BuyEventStore = (*BuyEventStore)(nil)

// Insert appends an observed buy event.
func (s *BuyEventStore) Insert(ctx context.Context, e *domain.BuyEventRecord) (err error) {
	if e == nil || e.Signature == "" {
		return storage.ErrInvalidInput
	}
	start := time.Now()
	defer func() { observability.RecordDBQuery("clickhouse", "insert_event", time.Since(start).Seconds(), err) }()

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO buy_events (
			signature, buyer, quote_amount, asset_amount, observed_at
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	err = batch.Append(
		e.Signature,
		e.Buyer,
		e.QuoteAmount.InexactFloat64(),
		e.AssetAmount.InexactFloat64(),
		e.ObservedAt,
	)
	if err != nil {
		return fmt.Errorf("append to batch: %w", err)
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}

	return nil
}

// GetByTimeRange retrieves events observed within [start, end]
// (inclusive), ordered by observation time ASC.
func (s *BuyEventStore) GetByTimeRange(ctx context.Context, start, end time.Time) ([]*domain.BuyEventRecord, error) {
	query := `
		SELECT signature, buyer, quote_amount, asset_amount, observed_at
		FROM buy_events
		WHERE observed_at >= ? AND observed_at <= ?
		ORDER BY observed_at ASC, signature ASC
	`

	rows, err := s.conn.Query(ctx, query, start, end)
	if err != nil {
		return nil, fmt.Errorf("query by time range: %w", err)
	}
	defer rows.Close()

	var events []*domain.BuyEventRecord
	for rows.Next() {
		var e domain.BuyEventRecord
		var quote, asset float64
		var observedAt time.Time

		err := rows.Scan(&e.Signature, &e.Buyer, &quote, &asset, &observedAt)
		if err != nil {
			return nil, fmt.Errorf("scan buy event row: %w", err)
		}

		e.QuoteAmount = decimal.NewFromFloat(quote)
		e.AssetAmount = decimal.NewFromFloat(asset)
		e.ObservedAt = observedAt
		events = append(events, &e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate buy event rows: %w", err)
	}

	return events, nil
}
