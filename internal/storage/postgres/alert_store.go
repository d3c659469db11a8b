package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"solana-buy-watcher/internal/domain"
	"solana-buy-watcher/internal/observability"
	"solana-buy-watcher/internal/storage"
)

// AlertStore implements storage.AlertStore using PostgreSQL.
type AlertStore struct {
	pool *Pool
}

// NewAlertStore creates a new AlertStore.
func NewAlertStore(pool *Pool) *AlertStore {
	return &AlertStore{pool: pool}
}

// Compile-time interface check.
var _ storage.AlertStore = (*AlertStore)(nil)

// Insert adds a new alert record. Returns ErrDuplicateKey if the
// signature exists.
func (s *AlertStore) Insert(ctx context.Context, a *domain.AlertRecord) (err error) {
	if a == nil || a.Signature == "" {
		return storage.ErrInvalidInput
	}
	start := time.Now()
	defer func() { observability.RecordDBQuery("postgres", "insert_alert", time.Since(start).Seconds(), err) }()

	query := `
		INSERT INTO buy_alerts (
			signature, buyer, quote_amount, asset_amount, usd_value, whale, sent_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err = s.pool.Exec(ctx, query,
		a.Signature,
		a.Buyer,
		a.QuoteAmount.String(),
		a.AssetAmount.String(),
		a.USDValue.String(),
		a.Whale,
		a.SentAt,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert buy alert: %w", err)
	}
	return nil
}

// GetBySignature retrieves an alert by signature. Returns ErrNotFound
// if not exists.
func (s *AlertStore) GetBySignature(ctx context.Context, signature string) (*domain.AlertRecord, error) {
	query := `
		SELECT signature, buyer, quote_amount::text, asset_amount::text, usd_value::text, whale, sent_at
		FROM buy_alerts
		WHERE signature = $1
	`

	row := s.pool.QueryRow(ctx, query, signature)
	rec, err := scanAlertRecord(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get buy alert by signature: %w", err)
	}
	return rec, nil
}

// GetRecent retrieves the most recent alerts, newest first.
func (s *AlertStore) GetRecent(ctx context.Context, limit int) ([]*domain.AlertRecord, error) {
	if limit <= 0 {
		return nil, storage.ErrInvalidInput
	}

	query := `
		SELECT signature, buyer, quote_amount::text, asset_amount::text, usd_value::text, whale, sent_at
		FROM buy_alerts
		ORDER BY sent_at DESC, signature DESC
		LIMIT $1
	`

	rows, err := s.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("get recent buy alerts: %w", err)
	}
	defer rows.Close()

	var alerts []*domain.AlertRecord
	for rows.Next() {
		rec, err := scanAlertRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan buy alert row: %w", err)
		}
		alerts = append(alerts, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate buy alert rows: %w", err)
	}

	return alerts, nil
}

// scanAlertRecord scans one row into an AlertRecord. Decimal columns
// travel as NUMERIC text to keep exact precision.
func scanAlertRecord(row pgx.Row) (*domain.AlertRecord, error) {
	var rec domain.AlertRecord
	var quote, asset, usd string
	var sentAt time.Time

	err := row.Scan(
		&rec.Signature,
		&rec.Buyer,
		&quote,
		&asset,
		&usd,
		&rec.Whale,
		&sentAt,
	)
	if err != nil {
		return nil, err
	}

	if rec.QuoteAmount, err = decimal.NewFromString(quote); err != nil {
		return nil, fmt.Errorf("parse quote_amount: %w", err)
	}
	if rec.AssetAmount, err = decimal.NewFromString(asset); err != nil {
		return nil, fmt.Errorf("parse asset_amount: %w", err)
	}
	if rec.USDValue, err = decimal.NewFromString(usd); err != nil {
		return nil, fmt.Errorf("parse usd_value: %w", err)
	}
	rec.SentAt = sentAt

	return &rec, nil
}
