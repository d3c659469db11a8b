package alert

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"solana-buy-watcher/internal/domain"
	"solana-buy-watcher/internal/notify"
	"solana-buy-watcher/internal/observability"
	"solana-buy-watcher/internal/storage"
)

// Enricher supplies best-effort market context for a caption. Both
// methods absorb provider failure and always return a usable value.
type Enricher interface {
	Snapshot(ctx context.Context) domain.EnrichmentSnapshot
	QuoteUSDPrice(ctx context.Context) decimal.Decimal
}

// DefaultWhaleMinSOL is the quote amount from which a buy is styled as
// a whale buy.
var DefaultWhaleMinSOL = decimal.NewFromInt(10)

var (
	buyEmojis   = []string{"🚀", "💎", "🔥", "💰", "🌙", "⚡", "🎯", "💸", "🏆", "🎰"}
	whaleEmojis = []string{"🐋", "🦈", "🐳"}
)

const regularBuyerEmoji = "🐟"

var defaultMediaURLs = []string{
	"https://media.giphy.com/media/l0HlQ7LRalQqdWfao/giphy.gif",
	"https://media.giphy.com/media/67ThRZlYBvibtdF9JH/giphy.gif",
	"https://media.giphy.com/media/JpG2A9P3dPHXaTYrwu/giphy.gif",
	"https://media.giphy.com/media/5VKbvrjxpVJCM/giphy.gif",
}

// DispatcherConfig tunes alert rendering and delivery.
type DispatcherConfig struct {
	ChannelID   string
	TokenSymbol string
	TokenMint   string
	WhaleMinSOL decimal.Decimal
	MediaURLs   []string
}

// Dispatcher renders a buy event into a Telegram caption and delivers
// it with a randomly chosen animation. A send failure is logged and
// dropped; the event is not retried and no history row is written.
type Dispatcher struct {
	cfg      DispatcherConfig
	enricher Enricher
	notifier notify.Notifier
	history  storage.AlertStore // optional
	logger   zerolog.Logger
	now      func() time.Time

	mu  sync.Mutex
	rng *rand.Rand
}

// NewDispatcher creates a dispatcher. history may be nil to disable the
// alert audit trail.
func NewDispatcher(cfg DispatcherConfig, enricher Enricher, notifier notify.Notifier, history storage.AlertStore, logger zerolog.Logger) *Dispatcher {
	if cfg.WhaleMinSOL.IsZero() {
		cfg.WhaleMinSOL = DefaultWhaleMinSOL
	}
	if len(cfg.MediaURLs) == 0 {
		cfg.MediaURLs = defaultMediaURLs
	}
	return &Dispatcher{
		cfg:      cfg,
		enricher: enricher,
		notifier: notifier,
		history:  history,
		logger:   logger.With().Str("component", "alert").Logger(),
		now:      time.Now,
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Dispatch enriches, renders and sends one buy alert.
func (d *Dispatcher) Dispatch(ctx context.Context, ev *domain.BuyEvent) {
	snapshot := d.enricher.Snapshot(ctx)
	solPrice := d.enricher.QuoteUSDPrice(ctx)
	usdValue := ev.QuoteAmount.Mul(solPrice)
	whale := ev.QuoteAmount.GreaterThanOrEqual(d.cfg.WhaleMinSOL)

	caption := d.renderCaption(ev, snapshot, usdValue, whale)
	media := d.pickMedia()

	if err := d.notifier.SendAnimation(ctx, d.cfg.ChannelID, media, caption); err != nil {
		observability.RecordAlertFailed()
		d.logger.Error().Err(err).
			Str("signature", ev.Signature).
			Msg("failed to send buy alert")
		return
	}

	observability.RecordAlertSent()
	d.logger.Info().
		Str("signature", ev.Signature).
		Str("buyer", ev.Buyer).
		Str("sol", ev.QuoteAmount.StringFixed(3)).
		Str("usd", usdValue.StringFixed(2)).
		Bool("whale", whale).
		Msg("buy alert sent")

	if d.history == nil {
		return
	}
	rec := &domain.AlertRecord{
		Signature:   ev.Signature,
		Buyer:       ev.Buyer,
		QuoteAmount: ev.QuoteAmount,
		AssetAmount: ev.AssetAmount,
		USDValue:    usdValue,
		Whale:       whale,
		SentAt:      d.now(),
	}
	if err := d.history.Insert(ctx, rec); err != nil && !errors.Is(err, storage.ErrDuplicateKey) {
		d.logger.Warn().Err(err).
			Str("signature", ev.Signature).
			Msg("failed to record alert history")
	}
}

func (d *Dispatcher) renderCaption(ev *domain.BuyEvent, snap domain.EnrichmentSnapshot, usdValue decimal.Decimal, whale bool) string {
	buyerEmoji := regularBuyerEmoji
	if whale {
		buyerEmoji = d.pickWhaleEmoji()
	}

	var b strings.Builder
	fmt.Fprintf(&b, "<b>%s Buy!</b>\n", d.cfg.TokenSymbol)
	b.WriteString(d.pickBuyEmojis(3) + "\n")
	fmt.Fprintf(&b, "%s spent <b>$%s</b> (<b>%s SOL</b>)\n",
		buyerEmoji, FormatNumber(usdValue.InexactFloat64()), ev.QuoteAmount.StringFixed(3))
	fmt.Fprintf(&b, "Got <b>%s %s</b>\n",
		FormatNumber(ev.AssetAmount.InexactFloat64()), d.cfg.TokenSymbol)
	fmt.Fprintf(&b, "💵 Price: <b>$%s</b>\n", FormatPrice(snap.PriceUSD))
	if changes := formatPriceChanges(snap); changes != "" {
		fmt.Fprintf(&b, "📊 %s\n", changes)
	}
	fmt.Fprintf(&b, "💰 MCap: <b>$%s</b> | Vol: <b>$%s</b>\n",
		FormatNumber(snap.MarketCapUSD), FormatNumber(snap.Volume24hUSD))
	fmt.Fprintf(&b, "🌊 Liq: <b>$%s</b> | Txns: <b>%d</b>\n", FormatNumber(snap.LiquidityUSD), snap.Txns24h)
	b.WriteString("\n")
	fmt.Fprintf(&b, "Buyer: <a href=\"https://solscan.io/account/%s\">%s</a> | TX: <a href=\"https://solscan.io/tx/%s\">%s</a>\n",
		ev.Buyer, ShortenAddress(ev.Buyer), ev.Signature, ShortenAddress(ev.Signature))
	b.WriteString("\n")
	fmt.Fprintf(&b, "<a href=\"https://dexscreener.com/solana/%s\">📊 Chart</a> | <a href=\"https://pump.fun/coin/%s\">🎰 Pump</a>",
		d.cfg.TokenMint, d.cfg.TokenMint)
	return b.String()
}

// formatPriceChanges builds the movement line, omitting windows with no
// recorded change. Returns "" when nothing moved so the line disappears
// from the caption.
func formatPriceChanges(snap domain.EnrichmentSnapshot) string {
	var parts []string
	if snap.PriceChange5m != 0 {
		parts = append(parts, fmt.Sprintf("5m: %s%%", signedPercent(snap.PriceChange5m)))
	}
	if snap.PriceChange1h != 0 {
		parts = append(parts, fmt.Sprintf("1h: %s%%", signedPercent(snap.PriceChange1h)))
	}
	if snap.PriceChange24h != 0 {
		parts = append(parts, fmt.Sprintf("24h: %s%%", signedPercent(snap.PriceChange24h)))
	}
	return strings.Join(parts, " ")
}

func signedPercent(v float64) string {
	if v > 0 {
		return fmt.Sprintf("+%.1f", v)
	}
	return fmt.Sprintf("%.1f", v)
}

func (d *Dispatcher) pickBuyEmojis(count int) string {
	d.mu.Lock()
	perm := d.rng.Perm(len(buyEmojis))
	d.mu.Unlock()

	picked := make([]string, 0, count)
	for _, idx := range perm[:count] {
		picked = append(picked, buyEmojis[idx])
	}
	return strings.Join(picked, " ")
}

func (d *Dispatcher) pickWhaleEmoji() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return whaleEmojis[d.rng.Intn(len(whaleEmojis))]
}

func (d *Dispatcher) pickMedia() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.cfg.MediaURLs[d.rng.Intn(len(d.cfg.MediaURLs))]
}
