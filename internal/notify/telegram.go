package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// DefaultAPIBase is the public Telegram Bot API host.
const DefaultAPIBase = "https://api.telegram.org"

// TelegramSender delivers notifications via the Telegram Bot API.
type TelegramSender struct {
	apiBase string
	token   string
	client  *http.Client
}

// NewTelegramSender creates a TelegramSender for the given bot token.
// An empty apiBase selects the public API host.
func NewTelegramSender(apiBase, token string) *TelegramSender {
	if apiBase == "" {
		apiBase = DefaultAPIBase
	}
	return &TelegramSender{
		apiBase: strings.TrimRight(apiBase, "/"),
		token:   token,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

// SendPhoto posts a photo with an HTML caption using the sendPhoto API.
func (t *TelegramSender) SendPhoto(ctx context.Context, chatID, photoURL, caption string) error {
	return t.send(ctx, "sendPhoto", map[string]any{
		"chat_id":                  chatID,
		"photo":                    photoURL,
		"caption":                  caption,
		"parse_mode":               "HTML",
		"disable_web_page_preview": true,
	})
}

// SendAnimation posts a GIF with an HTML caption using the
// sendAnimation API.
func (t *TelegramSender) SendAnimation(ctx context.Context, chatID, animationURL, caption string) error {
	return t.send(ctx, "sendAnimation", map[string]any{
		"chat_id":                  chatID,
		"animation":                animationURL,
		"caption":                  caption,
		"parse_mode":               "HTML",
		"disable_web_page_preview": true,
	})
}

func (t *TelegramSender) send(ctx context.Context, method string, payload map[string]any) error {
	url := fmt.Sprintf("%s/bot%s/%s", t.apiBase, t.token, method)

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("telegram: marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("telegram: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("telegram: send request: %w", err)
	}
	defer resp.Body.Close()

	// Success responses embed the full Message object and can be large;
	// read everything and pick out the fields that matter.
	respBody, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("telegram: unexpected status %d: %s", resp.StatusCode, string(respBody))
	}

	var result struct {
		OK          bool   `json:"ok"`
		Description string `json:"description"`
	}
	if err := json.Unmarshal(respBody, &result); err != nil {
		return fmt.Errorf("telegram: unmarshal response: %w", err)
	}
	if !result.OK {
		return fmt.Errorf("telegram: api error: %s", result.Description)
	}

	return nil
}

// Name returns the sender identifier.
func (t *TelegramSender) Name() string {
	return "telegram"
}

// Verify interface compliance at compile time.
var _ Notifier = (*TelegramSender)(nil)
