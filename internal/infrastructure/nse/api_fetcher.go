// Package nse implements feed strategies against the exchange's public
// endpoints: the JSON announcements API (primary) and the HTML table
// (fallback), plus a quote lookup sharing the same primed session.
package nse

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"time"

	"filingscout/internal/config"
	"filingscout/internal/feed"
	"filingscout/internal/normalize"
	"filingscout/internal/ports"
)

// APIFetcher calls the JSON announcements endpoint. The API rejects bare
// requests; a session must first be primed by visiting the announcements
// page so the returned cookies accompany the API call.
type APIFetcher struct {
	cfg    config.FeedConfig
	client *http.Client
}

var _ feed.Fetcher = (*APIFetcher)(nil)

// NewAPIFetcher wires an HTTP client with a cookie jar for session priming.
func NewAPIFetcher(cfg config.FeedConfig, client *http.Client) *APIFetcher {
	if client == nil {
		jar, _ := cookiejar.New(nil)
		client = &http.Client{Timeout: 30 * time.Second, Jar: jar}
	}
	return &APIFetcher{cfg: cfg, client: client}
}

// Name identifies the strategy inside the registry.
func (f *APIFetcher) Name() string {
	return "nse-api"
}

// Fetch primes the session, calls the announcements API, and unwraps the
// response envelope.
func (f *APIFetcher) Fetch(ctx context.Context, req feed.Request) ([]ports.RawRecord, error) {
	if err := f.prime(ctx); err != nil {
		return nil, fmt.Errorf("prime session: %w", err)
	}

	apiURL, err := f.buildAPIURL(req)
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	f.setHeaders(httpReq)
	httpReq.Header.Set("X-Requested-With", "XMLHttpRequest")

	resp, err := f.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("request announcements: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("announcements API returned %s", resp.Status)
	}

	var payload any
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	records, err := normalize.Records(payload)
	if err != nil {
		return nil, fmt.Errorf("unwrap response: %w", err)
	}
	return records, nil
}

func (f *APIFetcher) prime(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.cfg.BaseURL+f.cfg.PrimePath, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	f.setHeaders(req)

	resp, err := f.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("priming page returned %s", resp.Status)
	}
	return nil
}

func (f *APIFetcher) buildAPIURL(req feed.Request) (string, error) {
	u, err := url.Parse(f.cfg.BaseURL + f.cfg.APIPath)
	if err != nil {
		return "", fmt.Errorf("parse API URL: %w", err)
	}

	q := u.Query()
	index := req.Index
	if index == "" {
		index = f.cfg.Index
	}
	q.Set("index", index)
	if req.FromDate != "" {
		q.Set("from_date", req.FromDate)
	}
	if req.ToDate != "" {
		q.Set("to_date", req.ToDate)
	}
	if req.Symbol != "" {
		q.Set("symbol", req.Symbol)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func (f *APIFetcher) setHeaders(req *http.Request) {
	req.Header.Set("User-Agent", f.cfg.UserAgent)
	req.Header.Set("Accept", "*/*")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	req.Header.Set("Referer", f.cfg.BaseURL+f.cfg.PrimePath)
}
