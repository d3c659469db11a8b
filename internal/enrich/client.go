package enrich

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"solana-buy-watcher/internal/domain"
	"solana-buy-watcher/internal/observability"
)

// Defaults for the cache-or-fallback discipline.
const (
	DefaultCacheTTL = 30 * time.Second
)

// DefaultFallbackSOLPrice is served when no SOL price was ever fetched.
var DefaultFallbackSOLPrice = decimal.NewFromInt(150)

// ClientConfig tunes the enrichment client.
type ClientConfig struct {
	Mint             string
	CacheTTL         time.Duration
	FallbackSOLPrice decimal.Decimal // last-known-good constant
}

// Client caches a market snapshot and the SOL/USD price, refreshing
// lazily on access. All provider failure is absorbed: callers get the
// last good value, or a conservative default if nothing was ever
// fetched. The cache is the only cross-task state and is mutex-guarded;
// holding the lock across a refresh also collapses concurrent refreshes
// into one provider call.
type Client struct {
	market MarketDataProvider
	quote  QuotePriceProvider
	cfg    ClientConfig
	logger zerolog.Logger
	now    func() time.Time

	mu          sync.Mutex
	snapshot    *domain.EnrichmentSnapshot
	snapshotAt  time.Time
	solPrice    decimal.Decimal
	solPriceAt  time.Time
	hasSolPrice bool
}

// NewClient creates an enrichment client over the given providers.
func NewClient(market MarketDataProvider, quote QuotePriceProvider, cfg ClientConfig, logger zerolog.Logger) *Client {
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = DefaultCacheTTL
	}
	if cfg.FallbackSOLPrice.IsZero() {
		cfg.FallbackSOLPrice = DefaultFallbackSOLPrice
	}
	return &Client{
		market: market,
		quote:  quote,
		cfg:    cfg,
		logger: logger.With().Str("component", "enrichment").Logger(),
		now:    time.Now,
	}
}

// Snapshot returns the freshest available market snapshot. Never fails:
// on provider error the previous snapshot is served unchanged, or the
// zero snapshot if none exists yet.
func (c *Client) Snapshot(ctx context.Context) domain.EnrichmentSnapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if c.snapshot != nil && now.Sub(c.snapshotAt) < c.cfg.CacheTTL {
		observability.RecordEnrichmentCache(true)
		return *c.snapshot
	}
	observability.RecordEnrichmentCache(false)

	snap, err := c.market.FetchSnapshot(ctx, c.cfg.Mint)
	if err != nil {
		c.logger.Warn().Err(err).Msg("market data fetch failed, serving cached")
		if c.snapshot != nil {
			return *c.snapshot
		}
		return domain.EnrichmentSnapshot{}
	}

	c.snapshot = snap
	c.snapshotAt = now
	return *snap
}

// QuoteUSDPrice returns the cached SOL/USD price, refreshing when stale.
// Falls back to the last good value, then to the configured constant.
func (c *Client) QuoteUSDPrice(ctx context.Context) decimal.Decimal {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if c.hasSolPrice && now.Sub(c.solPriceAt) < c.cfg.CacheTTL {
		observability.RecordEnrichmentCache(true)
		return c.solPrice
	}
	observability.RecordEnrichmentCache(false)

	price, err := c.quote.FetchUSDPrice(ctx)
	if err != nil {
		c.logger.Warn().Err(err).Msg("sol price fetch failed, serving fallback")
		if c.hasSolPrice {
			return c.solPrice
		}
		return c.cfg.FallbackSOLPrice
	}

	c.solPrice = price
	c.solPriceAt = now
	c.hasSolPrice = true
	return price
}
