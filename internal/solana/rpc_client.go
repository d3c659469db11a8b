package solana

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Default configuration values.
const (
	DefaultTimeout     = 30 * time.Second
	DefaultMaxRetries  = 3
	DefaultRetryDelay  = 1 * time.Second
	DefaultMaxDelay    = 10 * time.Second
	DefaultBackoffMult = 2.0
)

// HTTPProvider implements TransactionProvider against the
// enhanced-transactions HTTP API (POST /v0/transactions).
type HTTPProvider struct {
	endpoint    string
	apiKey      string
	client      *http.Client
	maxRetries  int
	retryDelay  time.Duration
	maxDelay    time.Duration
	backoffMult float64
}

// ProviderOption configures HTTPProvider.
type ProviderOption func(*HTTPProvider)

// WithTimeout sets the HTTP client timeout.
func WithTimeout(d time.Duration) ProviderOption {
	return func(p *HTTPProvider) {
		p.client.Timeout = d
	}
}

// WithMaxRetries sets maximum retry attempts.
func WithMaxRetries(n int) ProviderOption {
	return func(p *HTTPProvider) {
		p.maxRetries = n
	}
}

// WithRetryDelay sets the initial retry delay.
func WithRetryDelay(d time.Duration) ProviderOption {
	return func(p *HTTPProvider) {
		p.retryDelay = d
	}
}

// WithHTTPClient sets a custom http.Client.
func WithHTTPClient(client *http.Client) ProviderOption {
	return func(p *HTTPProvider) {
		p.client = client
	}
}

// NewHTTPProvider creates an enhanced-transactions client. The API key is
// appended as a query parameter on each request; pass "" if the endpoint
// embeds credentials already.
func NewHTTPProvider(endpoint, apiKey string, opts ...ProviderOption) *HTTPProvider {
	p := &HTTPProvider{
		endpoint:    strings.TrimRight(endpoint, "/"),
		apiKey:      apiKey,
		client:      &http.Client{Timeout: DefaultTimeout},
		maxRetries:  DefaultMaxRetries,
		retryDelay:  DefaultRetryDelay,
		maxDelay:    DefaultMaxDelay,
		backoffMult: DefaultBackoffMult,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

type enhancedTxRequest struct {
	Transactions []string `json:"transactions"`
}

// GetEnhancedTransactions fetches decoded transactions for the given
// signatures, retrying transient failures with exponential backoff.
func (p *HTTPProvider) GetEnhancedTransactions(ctx context.Context, signatures []string) ([]EnhancedTransaction, error) {
	if len(signatures) == 0 {
		return nil, nil
	}

	body, err := json.Marshal(enhancedTxRequest{Transactions: signatures})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	endpoint := p.endpoint + "/v0/transactions"
	if p.apiKey != "" {
		endpoint += "?api-key=" + url.QueryEscape(p.apiKey)
	}

	delay := p.retryDelay
	var lastErr error

	for attempt := 0; attempt <= p.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
			delay = time.Duration(float64(delay) * p.backoffMult)
			if delay > p.maxDelay {
				delay = p.maxDelay
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
		if err != nil {
			return nil, fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := p.client.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("http request: %w", err)
			continue
		}

		respBody, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = fmt.Errorf("read response: %w", err)
			continue
		}

		if resp.StatusCode == http.StatusTooManyRequests {
			lastErr = fmt.Errorf("rate limited (429)")
			continue
		}

		// Other 4xx statuses will not improve with retries.
		if resp.StatusCode >= 400 && resp.StatusCode < 500 {
			return nil, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(respBody))
		}

		if resp.StatusCode != http.StatusOK {
			lastErr = fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(respBody))
			continue
		}

		var txs []EnhancedTransaction
		if err := json.Unmarshal(respBody, &txs); err != nil {
			return nil, fmt.Errorf("unmarshal transactions: %w", err)
		}

		return txs, nil
	}

	return nil, fmt.Errorf("max retries exceeded: %w", lastErr)
}

// Verify interface compliance at compile time.
var _ TransactionProvider = (*HTTPProvider)(nil)
