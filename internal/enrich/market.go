// Package enrich supplies best-effort market data for the tracked token,
// caching provider responses to bound external call volume.
package enrich

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"solana-buy-watcher/internal/domain"
)

// MarketDataProvider returns market statistics for a token mint.
type MarketDataProvider interface {
	FetchSnapshot(ctx context.Context, mint string) (*domain.EnrichmentSnapshot, error)
}

// DexScreenerProvider implements MarketDataProvider against the
// DexScreener token endpoint. The first listed pair (highest liquidity)
// wins.
type DexScreenerProvider struct {
	baseURL string
	client  *http.Client
	logger  zerolog.Logger
}

// NewDexScreenerProvider creates a DexScreener market data provider.
func NewDexScreenerProvider(baseURL string, timeout time.Duration, logger zerolog.Logger) *DexScreenerProvider {
	if baseURL == "" {
		baseURL = "https://api.dexscreener.com"
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &DexScreenerProvider{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
		logger:  logger.With().Str("component", "dexscreener").Logger(),
	}
}

// FetchSnapshot retrieves the latest pair statistics for the mint.
func (p *DexScreenerProvider) FetchSnapshot(ctx context.Context, mint string) (*domain.EnrichmentSnapshot, error) {
	endpoint := fmt.Sprintf("%s/latest/dex/tokens/%s", p.baseURL, mint)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch token pairs: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var payload tokenPairsResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("unmarshal response: %w", err)
	}
	if len(payload.Pairs) == 0 {
		return nil, fmt.Errorf("no pairs listed for %s", mint)
	}

	pair := payload.Pairs[0]

	price, _ := strconv.ParseFloat(pair.PriceUSD, 64)

	return &domain.EnrichmentSnapshot{
		PriceUSD:       price,
		MarketCapUSD:   pair.FDV,
		LiquidityUSD:   pair.Liquidity.USD,
		Volume24hUSD:   pair.Volume.H24,
		PriceChange5m:  pair.PriceChange.M5,
		PriceChange1h:  pair.PriceChange.H1,
		PriceChange24h: pair.PriceChange.H24,
		Txns24h:        pair.Txns.H24.Buys + pair.Txns.H24.Sells,
		PairAddress:    pair.PairAddress,
	}, nil
}

type tokenPairsResponse struct {
	Pairs []pairInfo `json:"pairs"`
}

type pairInfo struct {
	PairAddress string  `json:"pairAddress"`
	PriceUSD    string  `json:"priceUsd"`
	FDV         float64 `json:"fdv"`
	Liquidity   struct {
		USD float64 `json:"usd"`
	} `json:"liquidity"`
	Volume struct {
		H24 float64 `json:"h24"`
	} `json:"volume"`
	PriceChange struct {
		M5  float64 `json:"m5"`
		H1  float64 `json:"h1"`
		H24 float64 `json:"h24"`
	} `json:"priceChange"`
	Txns struct {
		H24 struct {
			Buys  int `json:"buys"`
			Sells int `json:"sells"`
		} `json:"h24"`
	} `json:"txns"`
}

// Verify interface compliance at compile time.
var _ MarketDataProvider = (*DexScreenerProvider)(nil)
