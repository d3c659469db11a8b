// Package watch runs the live subscription loop that turns log
// notifications into dispatched buy alerts.
package watch

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"solana-buy-watcher/internal/domain"
	"solana-buy-watcher/internal/extract"
	"solana-buy-watcher/internal/observability"
	"solana-buy-watcher/internal/solana"
	"solana-buy-watcher/internal/storage"
)

// Defaults for the watch loop.
const (
	DefaultGracePeriod      = 3 * time.Second
	DefaultResubscribeDelay = 5 * time.Second
	DefaultProcessTimeout   = 30 * time.Second
)

// Admitter decides whether an extracted event may produce an alert.
type Admitter interface {
	Admit(ev *domain.BuyEvent) bool
}

// Dispatcher delivers an admitted buy event.
type Dispatcher interface {
	Dispatch(ctx context.Context, ev *domain.BuyEvent)
}

// Config tunes the watch loop.
type Config struct {
	// Mint is the tracked token mint address.
	Mint string

	// GracePeriod is the wait between seeing a signature and fetching
	// its detail, giving the transaction time to be fully indexed.
	GracePeriod time.Duration

	// ResubscribeDelay is the wait before reopening a closed
	// subscription stream.
	ResubscribeDelay time.Duration

	// ProcessTimeout bounds the handling of a single signature.
	ProcessTimeout time.Duration
}

// Watcher consumes the log subscription for the tracked mint and drives
// each signature through extraction, archival, dedup and dispatch. Each
// signature is processed in its own goroutine so a slow detail fetch
// never stalls the stream.
type Watcher struct {
	ws         solana.WSClient
	parser     extract.Parser
	gate       Admitter
	dispatcher Dispatcher
	archive    storage.BuyEventStore // optional
	cfg        Config
	logger     zerolog.Logger

	wg sync.WaitGroup
}

// NewWatcher creates a watcher. archive may be nil to disable the raw
// buy-event archive.
func NewWatcher(ws solana.WSClient, parser extract.Parser, gate Admitter, dispatcher Dispatcher, archive storage.BuyEventStore, cfg Config, logger zerolog.Logger) *Watcher {
	if cfg.GracePeriod <= 0 {
		cfg.GracePeriod = DefaultGracePeriod
	}
	if cfg.ResubscribeDelay <= 0 {
		cfg.ResubscribeDelay = DefaultResubscribeDelay
	}
	if cfg.ProcessTimeout <= 0 {
		cfg.ProcessTimeout = DefaultProcessTimeout
	}
	return &Watcher{
		ws:         ws,
		parser:     parser,
		gate:       gate,
		dispatcher: dispatcher,
		archive:    archive,
		cfg:        cfg,
		logger:     logger.With().Str("component", "watcher").Logger(),
	}
}

// Run subscribes and consumes notifications until ctx is cancelled.
// A closed stream is reopened after the resubscribe delay, forever; the
// only exit is cancellation. In-flight signature handlers are drained
// before returning.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.wg.Wait()

	for {
		ch, err := w.ws.SubscribeLogs(ctx, solana.LogsFilter{Mentions: []string{w.cfg.Mint}})
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			w.logger.Error().Err(err).
				Dur("retry_in", w.cfg.ResubscribeDelay).
				Msg("subscribe failed")
			if err := w.sleep(ctx, w.cfg.ResubscribeDelay); err != nil {
				return err
			}
			continue
		}

		w.logger.Info().Str("mint", w.cfg.Mint).Msg("subscribed to token logs")
		w.consume(ctx, ch)

		if ctx.Err() != nil {
			return ctx.Err()
		}
		w.logger.Warn().
			Dur("retry_in", w.cfg.ResubscribeDelay).
			Msg("subscription stream closed, resubscribing")
		if err := w.sleep(ctx, w.cfg.ResubscribeDelay); err != nil {
			return err
		}
	}
}

func (w *Watcher) consume(ctx context.Context, ch <-chan solana.LogNotification) {
	for {
		select {
		case <-ctx.Done():
			return
		case notif, ok := <-ch:
			if !ok {
				return
			}
			observability.RecordSignatureObserved()
			if notif.Err != nil {
				observability.RecordSuppressed("failed_tx")
				continue
			}
			if notif.Signature == "" {
				continue
			}
			w.wg.Add(1)
			go w.process(ctx, notif.Signature)
		}
	}
}

// process handles one signature end to end. Extraction waits out the
// grace period first so the detail API has the transaction indexed.
func (w *Watcher) process(ctx context.Context, signature string) {
	defer w.wg.Done()

	start := time.Now()
	if err := w.sleep(ctx, w.cfg.GracePeriod); err != nil {
		return
	}

	pctx, cancel := context.WithTimeout(ctx, w.cfg.ProcessTimeout)
	defer cancel()

	ev, err := w.parser.Extract(pctx, signature)
	if err != nil {
		w.logger.Error().Err(err).Str("signature", signature).Msg("extraction failed")
		return
	}
	if ev == nil {
		observability.RecordSuppressed("not_a_buy")
		return
	}
	observability.RecordBuyExtracted()
	observability.RecordExtractionLatency(time.Since(start).Seconds())

	if w.archive != nil {
		rec := &domain.BuyEventRecord{
			Signature:   ev.Signature,
			Buyer:       ev.Buyer,
			QuoteAmount: ev.QuoteAmount,
			AssetAmount: ev.AssetAmount,
			ObservedAt:  ev.ObservedAt,
		}
		if err := w.archive.Insert(pctx, rec); err != nil && !errors.Is(err, storage.ErrDuplicateKey) {
			w.logger.Warn().Err(err).Str("signature", signature).Msg("failed to archive buy event")
		}
	}

	if !w.gate.Admit(ev) {
		observability.RecordSuppressed("duplicate_or_below_threshold")
		return
	}

	w.dispatcher.Dispatch(pctx, ev)
}

func (w *Watcher) sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
