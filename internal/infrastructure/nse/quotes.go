package nse

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"filingscout/internal/config"
	"filingscout/internal/ports"
)

// QuoteClient resolves a display price for a symbol from the exchange's
// quote endpoint. It shares the primed session client so the API accepts it.
type QuoteClient struct {
	cfg    config.FeedConfig
	client *http.Client
}

var _ ports.QuoteProvider = (*QuoteClient)(nil)

// NewQuoteClient builds a quote lookup; pass the API fetcher's client to
// reuse its cookie jar.
func NewQuoteClient(cfg config.FeedConfig, client *http.Client) *QuoteClient {
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	return &QuoteClient{cfg: cfg, client: client}
}

// Quote returns "₹{last} ({pct}%)" for the symbol, or an error the caller
// downgrades to a placeholder.
func (q *QuoteClient) Quote(ctx context.Context, symbol string) (string, error) {
	u := fmt.Sprintf("%s/api/quote-equity?symbol=%s", q.cfg.BaseURL, url.QueryEscape(symbol))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", q.cfg.UserAgent)
	req.Header.Set("Accept", "*/*")

	resp, err := q.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("request quote: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("quote API returned %s", resp.Status)
	}

	var payload struct {
		PriceInfo struct {
			LastPrice float64 `json:"lastPrice"`
			PChange   float64 `json:"pChange"`
		} `json:"priceInfo"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", fmt.Errorf("decode quote: %w", err)
	}

	if payload.PriceInfo.LastPrice == 0 {
		return "", fmt.Errorf("no price for %s", symbol)
	}
	return fmt.Sprintf("₹%.2f (%+.2f%%)", payload.PriceInfo.LastPrice, payload.PriceInfo.PChange), nil
}
