// Package app aggregates configuration and wires the runtime
// components for the CLI commands.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"solana-buy-watcher/internal/alert"
	"solana-buy-watcher/internal/config"
	"solana-buy-watcher/internal/dedup"
	"solana-buy-watcher/internal/domain"
	"solana-buy-watcher/internal/enrich"
	"solana-buy-watcher/internal/extract"
	"solana-buy-watcher/internal/notify"
	"solana-buy-watcher/internal/observability"
	"solana-buy-watcher/internal/solana"
	"solana-buy-watcher/internal/storage"
	chstore "solana-buy-watcher/internal/storage/clickhouse"
	"solana-buy-watcher/internal/storage/memory"
	"solana-buy-watcher/internal/storage/migrations"
	"solana-buy-watcher/internal/storage/postgres"
	"solana-buy-watcher/internal/watch"
)

// App aggregates configuration and shared dependencies for the CLI commands.
type App struct {
	Config *config.Config
	Logger zerolog.Logger
}

// NewApp constructs a new application handle.
func NewApp(cfg *config.Config, logger zerolog.Logger) *App {
	return &App{Config: cfg, Logger: logger.With().Str("component", "app").Logger()}
}

func (a *App) newEnricher() *enrich.Client {
	market := enrich.NewDexScreenerProvider(
		a.Config.Enrichment.MarketBaseURL,
		a.Config.Enrichment.RequestTimeout,
		a.Logger,
	)
	quote := enrich.NewCoinGeckoProvider(
		a.Config.Enrichment.PriceBaseURL,
		a.Config.Enrichment.RequestTimeout,
		a.Logger,
	)
	return enrich.NewClient(market, quote, enrich.ClientConfig{
		Mint:             a.Config.Token.Mint,
		CacheTTL:         a.Config.Enrichment.CacheTTL,
		FallbackSOLPrice: decimal.NewFromFloat(a.Config.Enrichment.FallbackSOLPrice),
	}, a.Logger)
}

func (a *App) newDispatcher(enricher *enrich.Client, history storage.AlertStore) *alert.Dispatcher {
	notifier := notify.NewTelegramSender(a.Config.Telegram.APIBase, a.Config.Telegram.BotToken)
	return alert.NewDispatcher(alert.DispatcherConfig{
		ChannelID:   a.Config.Telegram.ChannelID,
		TokenSymbol: a.Config.Token.Symbol,
		TokenMint:   a.Config.Token.Mint,
		WhaleMinSOL: decimal.NewFromFloat(a.Config.Alerting.WhaleMinSOL),
		MediaURLs:   a.Config.Alerting.MediaURLs,
	}, enricher, notifier, history, a.Logger)
}

// openHistory connects the alert history store. An empty DSN selects
// the in-memory store.
func (a *App) openHistory(ctx context.Context) (storage.AlertStore, func(), error) {
	if a.Config.Database.PostgresDSN == "" {
		a.Logger.Info().Msg("database.postgres_dsn not configured; using in-memory alert history")
		return memory.NewAlertStore(), nil, nil
	}

	pool, err := postgres.NewPool(ctx, a.Config.Database.PostgresDSN)
	if err != nil {
		return nil, nil, err
	}
	if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
		pool.Close()
		return nil, nil, err
	}

	return postgres.NewAlertStore(pool), pool.Close, nil
}

// openArchive connects the raw buy-event archive. An empty DSN selects
// the in-memory store.
func (a *App) openArchive(ctx context.Context) (storage.BuyEventStore, func(), error) {
	if a.Config.Database.ClickhouseDSN == "" {
		a.Logger.Info().Msg("database.clickhouse_dsn not configured; using in-memory buy event archive")
		return memory.NewBuyEventStore(), nil, nil
	}

	conn, err := migrations.RunClickhouseMigrations(ctx, a.Config.Database.ClickhouseDSN)
	if err != nil {
		return nil, nil, err
	}

	closer := func() { conn.Close() }
	return chstore.NewBuyEventStore(conn), closer, nil
}

// buildWSEndpoint appends the api-key query parameter, preserving any
// query string the configured endpoint already carries.
func buildWSEndpoint(endpoint, apiKey string) (string, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return "", fmt.Errorf("parse ws endpoint: %w", err)
	}
	q := u.Query()
	q.Set("api-key", apiKey)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func (a *App) serveMetrics(ctx context.Context) {
	if a.Config.Metrics.Addr == "" {
		return
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", observability.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	srv := &http.Server{Addr: a.Config.Metrics.Addr, Handler: mux}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	go func() {
		a.Logger.Info().Str("addr", a.Config.Metrics.Addr).Msg("metrics endpoint listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.Logger.Error().Err(err).Msg("metrics server failed")
		}
	}()
}

// Run executes the long-running watch service.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	a.Logger.Info().
		Str("mint", a.Config.Token.Mint).
		Str("symbol", a.Config.Token.Symbol).
		Str("channel", a.Config.Telegram.ChannelID).
		Msg("starting buy watcher")

	history, closeHistory, err := a.openHistory(ctx)
	if err != nil {
		return err
	}
	if closeHistory != nil {
		defer closeHistory()
	}

	archive, closeArchive, err := a.openArchive(ctx)
	if err != nil {
		return err
	}
	if closeArchive != nil {
		defer closeArchive()
	}

	a.serveMetrics(ctx)

	enricher := a.newEnricher()

	// Startup market context, same data the captions use.
	snap := enricher.Snapshot(ctx)
	a.Logger.Info().
		Str("price_usd", alert.FormatPrice(snap.PriceUSD)).
		Str("market_cap_usd", alert.FormatNumber(snap.MarketCapUSD)).
		Msg("current market data")

	wsEndpoint, err := buildWSEndpoint(a.Config.Solana.WSEndpoint, a.Config.Solana.APIKey)
	if err != nil {
		return err
	}
	wsCfg := solana.DefaultWSConfig()
	wsCfg.ReconnectDelay = a.Config.Monitor.ReconnectDelay

	ws, err := solana.NewWSConn(ctx, wsEndpoint, &wsCfg, a.Logger)
	if err != nil {
		return err
	}
	defer ws.Close()

	provider := solana.NewHTTPProvider(
		a.Config.Solana.APIEndpoint,
		a.Config.Solana.APIKey,
		solana.WithTimeout(a.Config.Solana.RequestTimeout),
	)
	extractor := extract.NewExtractor(provider, a.Config.Token.Mint, a.Logger)

	gate := dedup.NewGate(dedup.Config{
		MinQuoteAmount: decimal.NewFromFloat(a.Config.Alerting.MinBuySOL),
		Retention:      a.Config.Dedup.Retention,
		MaxEntries:     a.Config.Dedup.MaxEntries,
	}, a.Logger)

	dispatcher := a.newDispatcher(enricher, history)

	watcher := watch.NewWatcher(ws, extractor, gate, dispatcher, archive, watch.Config{
		Mint:             a.Config.Token.Mint,
		GracePeriod:      a.Config.Monitor.GracePeriod,
		ResubscribeDelay: a.Config.Monitor.ReconnectDelay,
		ProcessTimeout:   a.Config.Monitor.ProcessTimeout,
	}, a.Logger)

	err = watcher.Run(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		a.Logger.Error().Err(err).Msg("watcher terminated with error")
		return err
	}

	a.Logger.Info().Msg("buy watcher stopped")
	return nil
}

// TestAlert sends one synthetic buy alert through the real enrichment
// and delivery path, without touching the database.
func (a *App) TestAlert(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	enricher := a.newEnricher()
	dispatcher := a.newDispatcher(enricher, nil)

	a.Logger.Info().Msg("sending test alert")
	dispatcher.Dispatch(ctx, &domain.BuyEvent{
		Signature:   "TestTransaction1234567890",
		Buyer:       "DudleyTestWallet1234567890abcdefghijklmnop",
		QuoteAmount: decimal.NewFromFloat(2.5),
		AssetAmount: decimal.NewFromInt(125_000_000),
		ObservedAt:  time.Now(),
	})

	return nil
}
