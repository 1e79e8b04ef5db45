package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/ricirt/plexnotify/internal/domain"
)

// Telegram delivers notifications through the Telegram Bot API.
// The base URL is injected from config so tests can point to a local
// mock. A single token-bucket limiter paces all sends: Telegram caps
// bots at roughly 30 messages per second across chats, and exceeding
// it turns into a burst of 429 failures mid-fan-out.
type Telegram struct {
	baseURL    string
	token      string
	httpClient *http.Client
	limiter    *rate.Limiter
}

func NewTelegram(baseURL, token string, timeout time.Duration, ratePerSec int) *Telegram {
	return &Telegram{
		baseURL: baseURL,
		token:   token,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		// burst == rate: no saved-up burst above the per-second cap
		limiter: rate.NewLimiter(rate.Limit(ratePerSec), ratePerSec),
	}
}

type sendMessageRequest struct {
	ChatID string `json:"chat_id"`
	Text   string `json:"text"`
}

type sendPhotoRequest struct {
	ChatID  string `json:"chat_id"`
	Photo   string `json:"photo"`
	Caption string `json:"caption"`
}

type apiResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description,omitempty"`
}

// Send posts a sendPhoto call when a thumbnail is available, otherwise
// a plain sendMessage. Any transport error, non-2xx status, or
// ok:false body surfaces as ErrDeliveryFailed for the dispatcher to
// record.
func (t *Telegram) Send(ctx context.Context, chatID, text, photoRef string) error {
	if err := t.limiter.Wait(ctx); err != nil {
		return err
	}

	var (
		method  string
		payload any
	)
	if photoRef != "" {
		method = "sendPhoto"
		payload = sendPhotoRequest{ChatID: chatID, Photo: photoRef, Caption: text}
	} else {
		method = "sendMessage"
		payload = sendMessageRequest{ChatID: chatID, Text: text}
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/bot%s/%s", t.baseURL, t.token, method)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrDeliveryFailed, err)
	}
	defer resp.Body.Close()

	var apiResp apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return fmt.Errorf("%w: decode response: %v", domain.ErrDeliveryFailed, err)
	}
	if !apiResp.OK {
		return fmt.Errorf("%w: %s (status %d)", domain.ErrDeliveryFailed, apiResp.Description, resp.StatusCode)
	}
	return nil
}

// compile-time check that Telegram implements Notifier
var _ Notifier = (*Telegram)(nil)
