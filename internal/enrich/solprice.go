package enrich

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// QuotePriceProvider returns the current USD price of the chain's native
// currency (SOL).
type QuotePriceProvider interface {
	FetchUSDPrice(ctx context.Context) (decimal.Decimal, error)
}

// CoinGeckoProvider implements QuotePriceProvider against the CoinGecko
// simple-price endpoint.
type CoinGeckoProvider struct {
	baseURL string
	client  *http.Client
	logger  zerolog.Logger
}

// NewCoinGeckoProvider creates a SOL/USD price provider.
func NewCoinGeckoProvider(baseURL string, timeout time.Duration, logger zerolog.Logger) *CoinGeckoProvider {
	if baseURL == "" {
		baseURL = "https://api.coingecko.com"
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &CoinGeckoProvider{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
		logger:  logger.With().Str("component", "coingecko").Logger(),
	}
}

// FetchUSDPrice retrieves the current SOL price in USD.
func (p *CoinGeckoProvider) FetchUSDPrice(ctx context.Context) (decimal.Decimal, error) {
	endpoint := p.baseURL + "/api/v3/simple/price?ids=solana&vs_currencies=usd"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("create request: %w", err)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("fetch sol price: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return decimal.Decimal{}, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	var payload struct {
		Solana struct {
			USD float64 `json:"usd"`
		} `json:"solana"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return decimal.Decimal{}, fmt.Errorf("unmarshal response: %w", err)
	}
	if payload.Solana.USD <= 0 {
		return decimal.Decimal{}, fmt.Errorf("price missing from response")
	}

	return decimal.NewFromFloat(payload.Solana.USD), nil
}

// Verify interface compliance at compile time.
var _ QuotePriceProvider = (*CoinGeckoProvider)(nil)
