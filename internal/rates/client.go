// Package rates получает курсы валют из внешнего источника и подставляет их в форматтер.
package rates

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Base задаёт валюту, относительно которой запрашиваются курсы.
const Base = "USD"

var (
	// ErrNotConfigured возвращается клиентом без адреса источника.
	ErrNotConfigured = errors.New("rates source address is not configured")
	// ErrNoRates возвращается, если источник ответил 204.
	ErrNoRates = errors.New("rates source has no data")
)

// RateLimitedError сообщает, что источник ограничил частоту запросов.
type RateLimitedError struct {
	RetryAfter time.Duration
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("rates source rate limited, retry after %s", e.RetryAfter)
}

// Snapshot описывает ответ источника курсов.
type Snapshot struct {
	Base  string                     `json:"base"`
	Rates map[string]decimal.Decimal `json:"rates"`
}

// Client запрашивает курсы по HTTP.
type Client struct {
	endpoint   string
	httpClient *http.Client
}

// NewClient создаёт клиент источника курсов. Адрес без схемы считается http.
func NewClient(address string) *Client {
	address = strings.TrimRight(strings.TrimSpace(address), "/")
	if address == "" {
		return &Client{}
	}
	if !strings.Contains(address, "://") {
		address = "http://" + address
	}

	return &Client{
		endpoint: address + "/api/rates?" + url.Values{"base": {Base}}.Encode(),
		httpClient: &http.Client{
			Timeout: 5 * time.Second,
		},
	}
}

// GetRates запрашивает курсы относительно доллара США.
func (c *Client) GetRates(ctx context.Context) (*Snapshot, error) {
	if c == nil || c.endpoint == "" {
		return nil, ErrNotConfigured
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("create rates request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request rates: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNoContent:
		return nil, ErrNoRates
	case http.StatusTooManyRequests:
		return nil, &RateLimitedError{RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After"), time.Now())}
	default:
		return nil, fmt.Errorf("rates source responded %d", resp.StatusCode)
	}

	var snap Snapshot
	if err := json.NewDecoder(resp.Body).Decode(&snap); err != nil {
		return nil, fmt.Errorf("decode rates: %w", err)
	}
	if snap.Base != "" && !strings.EqualFold(snap.Base, Base) {
		return nil, fmt.Errorf("unexpected base currency %q", snap.Base)
	}
	return &snap, nil
}

// parseRetryAfter понимает обе формы заголовка: число секунд и HTTP-дату.
func parseRetryAfter(v string, now time.Time) time.Duration {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0
	}
	if seconds, err := strconv.Atoi(v); err == nil {
		if seconds < 0 {
			return 0
		}
		return time.Duration(seconds) * time.Second
	}
	if at, err := http.ParseTime(v); err == nil && at.After(now) {
		return at.Sub(now)
	}
	return 0
}
