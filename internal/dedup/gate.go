// Package dedup enforces at-most-once delivery per transaction signature
// and applies the minimum buy-size threshold.
package dedup

import (
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"solana-buy-watcher/internal/domain"
)

// Default retention bounds for the seen-signature set.
const (
	DefaultRetention  = 1 * time.Hour
	DefaultMaxEntries = 10_000
)

// Config tunes the gate.
type Config struct {
	// MinQuoteAmount is the minimum SOL spend for an event to pass.
	// Events below it are marked seen but never admitted.
	MinQuoteAmount decimal.Decimal
	// Retention is how long a signature stays in the seen set.
	Retention time.Duration
	// MaxEntries caps the seen set; oldest entries are evicted first.
	MaxEntries int
}

// Gate is the single synchronization point deciding whether a signature
// has already triggered an alert. It exclusively owns the seen set.
type Gate struct {
	cfg    Config
	logger zerolog.Logger
	now    func() time.Time

	mu    sync.Mutex
	seen  map[string]time.Time
	order []string // insertion order, for expiry and eviction
}

// NewGate creates a gate with the given config, applying defaults for
// zero retention bounds.
func NewGate(cfg Config, logger zerolog.Logger) *Gate {
	if cfg.Retention <= 0 {
		cfg.Retention = DefaultRetention
	}
	if cfg.MaxEntries <= 0 {
		cfg.MaxEntries = DefaultMaxEntries
	}
	return &Gate{
		cfg:    cfg,
		logger: logger.With().Str("component", "dedup_gate").Logger(),
		now:    time.Now,
		seen:   make(map[string]time.Time),
	}
}

// Admit returns true exactly once per distinct signature, and only when
// the event meets the minimum quote amount. Sub-threshold events are
// still marked seen so a re-observation cannot alert later. Safe for
// concurrent use.
func (g *Gate) Admit(ev *domain.BuyEvent) bool {
	if ev == nil || ev.Signature == "" {
		return false
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	g.prune(now)

	if _, ok := g.seen[ev.Signature]; ok {
		return false
	}
	g.seen[ev.Signature] = now
	g.order = append(g.order, ev.Signature)

	if ev.QuoteAmount.LessThan(g.cfg.MinQuoteAmount) {
		g.logger.Debug().
			Str("signature", ev.Signature).
			Str("sol", ev.QuoteAmount.String()).
			Msg("below threshold, suppressed")
		return false
	}

	return true
}

// Len reports the current size of the seen set.
func (g *Gate) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.seen)
}

// prune drops expired entries and enforces the size cap. Caller holds
// the lock. Insertion times are monotone in order, so expiry scans stop
// at the first live entry.
func (g *Gate) prune(now time.Time) {
	cutoff := now.Add(-g.cfg.Retention)

	i := 0
	for ; i < len(g.order); i++ {
		sig := g.order[i]
		at, ok := g.seen[sig]
		if ok && at.After(cutoff) {
			break
		}
		delete(g.seen, sig)
	}

	// Evict oldest beyond the cap, leaving room for the next insert.
	for len(g.order)-i >= g.cfg.MaxEntries {
		delete(g.seen, g.order[i])
		i++
	}

	if i > 0 {
		g.order = append(g.order[:0:0], g.order[i:]...)
	}
}
