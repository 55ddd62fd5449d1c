// Package normalize maps heterogeneous upstream records into the canonical
// filing schema. Upstream key names vary by code path (JSON API, HTML table,
// older exports); all alias resolution lives here so consumers never repeat
// it.
package normalize

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"filingscout/internal/domain"
	"filingscout/internal/ports"
)

// ErrNoCompany marks a raw record with no resolvable company identity.
// Such records are dropped, not stored.
var ErrNoCompany = errors.New("no resolvable company identity")

var (
	companyKeys    = []string{"sm_name", "Company", "company", "company_name"}
	symbolKeys     = []string{"symbol", "Symbol"}
	subjectKeys    = []string{"desc", "Subject", "subject"}
	detailsKeys    = []string{"attchmntText", "Description", "details", "Details"}
	attachmentKeys = []string{"attchmntFile", "Attachment_URL", "attachment_link", "attachment_url"}
	sizeKeys       = []string{"sm_size", "File_Size", "attachment_size"}
	broadcastKeys  = []string{"an_dt", "Timestamp", "broadcast_at", "broadcastAt"}
)

// Upstream timestamp formats observed across feed variants.
var broadcastLayouts = []string{
	"02-Jan-2006 15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"02/01/2006 15:04",
	time.RFC3339,
}

// Parenthetical size markers near attachment links, e.g. "PDF (597.28 KB)".
var sizeExpr = regexp.MustCompile(`\(([^)]+)\)`)

// Normalizer converts raw upstream records into FilingRecords.
type Normalizer struct {
	baseURL string
}

// New builds a normalizer that resolves relative attachment paths against
// the upstream site's base URL.
func New(baseURL string) *Normalizer {
	return &Normalizer{baseURL: strings.TrimRight(baseURL, "/")}
}

// Record maps one raw record into the canonical schema. It fails only when
// no usable company value exists; unknown fields are discarded silently.
func (n *Normalizer) Record(raw ports.RawRecord) (domain.FilingRecord, error) {
	symbol := strings.TrimSpace(firstString(raw, symbolKeys))

	// Prefer an explicit company-name field; fall back to the ticker only
	// when no name field is present.
	company := strings.TrimSpace(firstString(raw, companyKeys))
	if company == "" {
		company = symbol
	}
	if company == "" {
		return domain.FilingRecord{}, fmt.Errorf("normalize record: %w", ErrNoCompany)
	}

	broadcastAt := strings.TrimSpace(firstString(raw, broadcastKeys))

	rec := domain.FilingRecord{
		Symbol:         symbol,
		Company:        company,
		Subject:        strings.TrimSpace(firstString(raw, subjectKeys)),
		Details:        strings.TrimSpace(firstString(raw, detailsKeys)),
		AttachmentURL:  n.resolveURL(strings.TrimSpace(firstString(raw, attachmentKeys))),
		AttachmentSize: extractSize(firstString(raw, sizeKeys)),
		BroadcastAt:    broadcastAt,
		BroadcastTime:  parseBroadcast(broadcastAt),
	}

	return rec, nil
}

func (n *Normalizer) resolveURL(u string) string {
	if u == "" || !strings.HasPrefix(u, "/") {
		return u
	}
	return n.baseURL + u
}

// extractSize pulls a parenthetical size out of link text when present;
// a bare size value passes through unchanged. Absence is not an error.
func extractSize(v string) string {
	v = strings.TrimSpace(v)
	if m := sizeExpr.FindStringSubmatch(v); m != nil {
		return strings.TrimSpace(m[1])
	}
	return v
}

func parseBroadcast(v string) time.Time {
	for _, layout := range broadcastLayouts {
		if t, err := time.Parse(layout, v); err == nil {
			return t
		}
	}
	return time.Time{}
}

func firstString(raw ports.RawRecord, keys []string) string {
	for _, key := range keys {
		v, ok := raw[key]
		if !ok {
			continue
		}
		if s, ok := v.(string); ok && s != "" {
			return s
		}
	}
	return ""
}
