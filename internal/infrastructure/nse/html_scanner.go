package nse

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"filingscout/internal/config"
	"filingscout/internal/feed"
	"filingscout/internal/ports"
)

// HTMLScanner parses the public announcements table. It backs up the JSON
// API: slower and coarser, but it survives API reshapes.
//
// Expected row layout: symbol, company, subject, details, attachment link,
// broadcast time. The attachment cell's link text carries a parenthetical
// size marker ("PDF (597.28 KB)"), which the normalizer extracts.
type HTMLScanner struct {
	cfg    config.FeedConfig
	client *http.Client
}

var _ feed.Fetcher = (*HTMLScanner)(nil)

// NewHTMLScanner wires an HTTP client; a nil client gets sane timeouts.
func NewHTMLScanner(cfg config.FeedConfig, client *http.Client) *HTMLScanner {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &HTMLScanner{cfg: cfg, client: client}
}

// Name identifies the strategy inside the registry.
func (s *HTMLScanner) Name() string {
	return "nse-html"
}

// Fetch downloads the announcements page and extracts one raw record per
// table row. Symbol filtering is applied locally since the page is not
// parameterized.
func (s *HTMLScanner) Fetch(ctx context.Context, req feed.Request) ([]ports.RawRecord, error) {
	doc, err := s.fetchDocument(ctx, s.cfg.BaseURL+s.cfg.HTMLPath)
	if err != nil {
		return nil, err
	}

	var records []ports.RawRecord
	doc.Find("table tbody tr").Each(func(_ int, row *goquery.Selection) {
		record := s.extractRow(row)
		if record == nil {
			return
		}
		if req.Symbol != "" && record["symbol"] != req.Symbol {
			return
		}
		records = append(records, record)
	})

	if len(records) == 0 {
		return nil, fmt.Errorf("no announcement rows found")
	}
	return records, nil
}

func (s *HTMLScanner) fetchDocument(ctx context.Context, pageURL string) (*goquery.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", s.cfg.UserAgent)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request document: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("announcements page returned %s", resp.Status)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse document: %w", err)
	}

	return doc, nil
}

func (s *HTMLScanner) extractRow(row *goquery.Selection) ports.RawRecord {
	cells := row.Find("td")
	if cells.Length() < 6 {
		return nil
	}

	text := func(i int) string {
		return strings.TrimSpace(cells.Eq(i).Text())
	}

	record := ports.RawRecord{
		"symbol":       text(0),
		"company_name": text(1),
		"subject":      text(2),
		"details":      text(3),
		"broadcast_at": text(5),
	}

	link := cells.Eq(4).Find("a").First()
	if href, ok := link.Attr("href"); ok {
		record["attachment_link"] = strings.TrimSpace(href)
		record["attachment_size"] = strings.TrimSpace(link.Text())
	}

	return record
}
