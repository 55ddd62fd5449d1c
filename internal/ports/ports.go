package ports

import (
	"context"
	"time"

	"filingscout/internal/domain"
)

// RawRecord is one upstream record before normalization. Key names vary by
// source; the normalizer owns alias resolution.
type RawRecord map[string]any

// FeedQuery narrows an upstream fetch.
type FeedQuery struct {
	Index    string
	FromDate string
	ToDate   string
	Symbol   string
}

// FeedSource pulls raw filing records from the upstream exchange.
type FeedSource interface {
	Fetch(ctx context.Context, q FeedQuery) ([]RawRecord, error)
}

// BaselineStore persists the last-known-filings snapshot. Load returns an
// empty baseline when nothing is persisted yet; it never fails on missing
// state. Save is versioned: a save whose baseline does not supersede the
// persisted version is rejected so overlapping cycles cannot interleave
// their writes.
type BaselineStore interface {
	Load(ctx context.Context) (domain.Baseline, error)
	Save(ctx context.Context, baseline domain.Baseline) error
}

// JobStore persists filing jobs between cycles so retried runs resume
// instead of reprocessing. Get returns nil without error when no job exists
// for the company.
type JobStore interface {
	Get(ctx context.Context, company string) (*domain.FilingJob, error)
	Put(ctx context.Context, job *domain.FilingJob) error
	// ListUnfinished returns jobs not yet done, so a cancelled or failed
	// cycle resumes them on the next run.
	ListUnfinished(ctx context.Context) ([]*domain.FilingJob, error)
}

// RecipientDirectory lists notification targets. Implementations return only
// recipients whose phone survived normalization.
type RecipientDirectory interface {
	ListRecipients(ctx context.Context) ([]domain.Recipient, error)
}

// Downloader fetches attachment bytes (PDF expected but not guaranteed).
type Downloader interface {
	Download(ctx context.Context, url string) ([]byte, error)
}

// TextExtractor turns attachment bytes into plain text. Best-effort: returns
// an empty string for malformed input, never an error that should stop a job.
type TextExtractor interface {
	ExtractText(ctx context.Context, data []byte) string
}

// Summarizer produces a short summary of a filing's extracted text.
type Summarizer interface {
	Summarize(ctx context.Context, company, text string) (string, error)
}

// Notification carries the template parameters the messaging channel binds
// positionally: customer, company, price, update. The order is a strict
// contract with the channel.
type Notification struct {
	Customer string
	Company  string
	Price    string
	Update   string
}

// Notifier sends one templated message to one recipient phone.
type Notifier interface {
	Send(ctx context.Context, phone string, n Notification) error
}

// QuoteProvider resolves a display price string for a symbol. Optional;
// the pipeline falls back to "N/A" when unset or on error.
type QuoteProvider interface {
	Quote(ctx context.Context, symbol string) (string, error)
}

// Scheduler controls when cycles execute.
type Scheduler interface {
	Start(ctx context.Context, job func(time.Time)) error
	Stop(ctx context.Context) error
}
