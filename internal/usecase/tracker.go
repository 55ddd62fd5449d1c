package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"filingscout/internal/domain"
	"filingscout/internal/ports"
)

// Tracker drives filing jobs through summarization and notification with
// exactly-once semantics per (company, fingerprint) and at-most-once sends
// per (job, recipient).
type Tracker struct {
	jobs       ports.JobStore
	downloader ports.Downloader
	extractor  ports.TextExtractor
	primary    ports.Summarizer
	fallback   ports.Summarizer
	quotes     ports.QuoteProvider
	logger     *slog.Logger
}

// TrackerDeps wires the tracker's collaborators. Primary may be nil
// (unconfigured); Fallback must always be set so summarizing never stalls.
type TrackerDeps struct {
	Jobs       ports.JobStore
	Downloader ports.Downloader
	Extractor  ports.TextExtractor
	Primary    ports.Summarizer
	Fallback   ports.Summarizer
	Quotes     ports.QuoteProvider
	Logger     *slog.Logger
}

// NewTracker constructs the job tracker.
func NewTracker(deps TrackerDeps) *Tracker {
	return &Tracker{
		jobs:       deps.Jobs,
		downloader: deps.Downloader,
		extractor:  deps.Extractor,
		primary:    deps.Primary,
		fallback:   deps.Fallback,
		quotes:     deps.Quotes,
		logger:     deps.Logger,
	}
}

// Enqueue creates a pending job for a novel filing, keyed by company.
// Re-enqueueing an already-done company for the same fingerprint is a no-op;
// a different fingerprint starts a fresh job for the newer filing.
func (t *Tracker) Enqueue(ctx context.Context, rec domain.FilingRecord, fp domain.Fingerprint) (*domain.FilingJob, error) {
	existing, err := t.jobs.Get(ctx, rec.Company)
	if err != nil {
		return nil, &PersistError{Op: "load job", Err: err}
	}

	if existing != nil && existing.Fingerprint == fp {
		return existing, nil
	}

	job := domain.NewFilingJob(rec, fp)
	job.UpdatedAt = time.Now().UTC()
	if err := t.jobs.Put(ctx, job); err != nil {
		return nil, &PersistError{Op: "save job", Err: err}
	}
	return job, nil
}

// AdvanceResult reports what one Advance call did, so the orchestrator can
// aggregate counters without sharing mutable state with workers.
type AdvanceResult struct {
	Summarized   bool
	FallbackUsed bool
	Sent         int
	SendFailed   int
	Failed       bool
	Err          error
}

// Advance drives one job as far as it can go: summarize, then fan out to
// every recipient not yet acknowledged, then done. Jobs already done are
// left untouched. Per-recipient failures are recorded and never block other
// recipients; a retried job re-attempts only unacknowledged recipients.
//
// A dry advance stops after summarizing: it previews the would-be sends
// through the notifier but records no recipient acknowledgements and leaves
// the job short of notifying, so a later real run still delivers.
func (t *Tracker) Advance(ctx context.Context, job *domain.FilingJob, notifier ports.Notifier, recipients []domain.Recipient, dry bool) AdvanceResult {
	var res AdvanceResult

	if job.Status.Terminal() {
		return res
	}

	job.AttemptCount++

	if job.Status == domain.JobPending || job.Status == domain.JobSummarizing ||
		(job.Status == domain.JobFailed && job.Summary == "") {
		if err := t.summarize(ctx, job, &res); err != nil {
			res.Failed = true
			res.Err = err
			return res
		}
		res.Summarized = true
	}

	if dry {
		t.preview(ctx, job, notifier, recipients, &res)
		return res
	}

	if err := t.transition(ctx, job, domain.JobNotifying); err != nil {
		res.Failed = true
		res.Err = err
		return res
	}

	t.notify(ctx, job, notifier, recipients, &res)

	// All recipients have been attempted; per-recipient failures are
	// recorded on the result but do not keep the job from completing.
	if err := t.transition(ctx, job, domain.JobDone); err != nil {
		res.Failed = true
		res.Err = err
	}
	return res
}

func (t *Tracker) summarize(ctx context.Context, job *domain.FilingJob, res *AdvanceResult) error {
	if err := t.transition(ctx, job, domain.JobSummarizing); err != nil {
		return err
	}

	text := t.attachmentText(ctx, job)
	summary, fallbackUsed, err := t.runSummarizers(ctx, job.Record.Company, text)
	if err != nil {
		job.Status = domain.JobFailed
		job.LastError = err.Error()
		if putErr := t.put(ctx, job); putErr != nil {
			return putErr
		}
		return fmt.Errorf("summarize %s: %w", job.Company, err)
	}

	res.FallbackUsed = fallbackUsed
	job.Summary = summary
	job.LastError = ""
	return t.transition(ctx, job, domain.JobSummarized)
}

// attachmentText downloads and extracts the attachment body. Best-effort:
// a job with no attachment, a failed download, or an unreadable PDF proceeds
// with empty text and gets the heuristic's placeholder summary.
func (t *Tracker) attachmentText(ctx context.Context, job *domain.FilingJob) string {
	url := job.Record.AttachmentURL
	if url == "" || t.downloader == nil {
		return ""
	}

	data, err := t.downloader.Download(ctx, url)
	if err != nil {
		t.debug("attachment download failed", "company", job.Company, "error", err)
		return ""
	}
	if t.extractor == nil {
		return ""
	}
	return t.extractor.ExtractText(ctx, data)
}

func (t *Tracker) runSummarizers(ctx context.Context, company, text string) (string, bool, error) {
	if t.primary != nil {
		summary, err := t.primary.Summarize(ctx, company, text)
		if err == nil {
			return summary, false, nil
		}
		t.debug("primary summarizer failed, falling back", "company", company, "error", err)
	}

	if t.fallback == nil {
		return "", false, fmt.Errorf("no summarizer available")
	}

	summary, err := t.fallback.Summarize(ctx, company, text)
	if err != nil {
		return "", true, err
	}
	return summary, t.primary != nil, nil
}

func (t *Tracker) notify(ctx context.Context, job *domain.FilingJob, notifier ports.Notifier, recipients []domain.Recipient, res *AdvanceResult) {
	if notifier == nil || len(recipients) == 0 {
		return
	}

	price := t.price(ctx, job.Record.Symbol)

	for _, rcpt := range recipients {
		if job.Notified(rcpt.Phone) {
			continue
		}

		n := ports.Notification{
			Customer: rcpt.DisplayName,
			Company:  job.Record.Company,
			Price:    price,
			Update:   job.Summary,
		}

		if err := notifier.Send(ctx, rcpt.Phone, n); err != nil {
			res.SendFailed++
			job.LastError = err.Error()
			t.debug("notification failed", "company", job.Company, "phone", rcpt.Phone, "error", err)
			continue
		}

		// Checkpoint immediately so a mid-batch crash leaves an accurate
		// record of who has already been messaged.
		job.MarkNotified(rcpt.Phone)
		res.Sent++
		if err := t.put(ctx, job); err != nil {
			res.Err = err
			return
		}
	}
}

// preview runs the recipient fan-out without persisting anything: no
// acknowledgements, no status transition. Send counts still land on the
// result so the report shows what a real run would do.
func (t *Tracker) preview(ctx context.Context, job *domain.FilingJob, notifier ports.Notifier, recipients []domain.Recipient, res *AdvanceResult) {
	if notifier == nil || len(recipients) == 0 {
		return
	}

	price := t.price(ctx, job.Record.Symbol)

	for _, rcpt := range recipients {
		if job.Notified(rcpt.Phone) {
			continue
		}

		n := ports.Notification{
			Customer: rcpt.DisplayName,
			Company:  job.Record.Company,
			Price:    price,
			Update:   job.Summary,
		}

		if err := notifier.Send(ctx, rcpt.Phone, n); err != nil {
			res.SendFailed++
			continue
		}
		res.Sent++
	}
}

func (t *Tracker) price(ctx context.Context, symbol string) string {
	if t.quotes == nil || symbol == "" {
		return "N/A"
	}
	price, err := t.quotes.Quote(ctx, symbol)
	if err != nil || price == "" {
		return "N/A"
	}
	return price
}

func (t *Tracker) transition(ctx context.Context, job *domain.FilingJob, next domain.JobStatus) error {
	job.Status = next
	return t.put(ctx, job)
}

func (t *Tracker) put(ctx context.Context, job *domain.FilingJob) error {
	job.UpdatedAt = time.Now().UTC()
	if err := t.jobs.Put(ctx, job); err != nil {
		return &PersistError{Op: "save job", Err: err}
	}
	return nil
}

func (t *Tracker) debug(msg string, args ...any) {
	if t.logger != nil {
		t.logger.Debug(msg, args...)
	}
}
