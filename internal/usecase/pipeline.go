package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"filingscout/internal/dedupe"
	"filingscout/internal/domain"
	"filingscout/internal/normalize"
	"filingscout/internal/ports"
)

const defaultConcurrency = 4

// PipelineDeps wires all driven adapters into the orchestration pipeline.
type PipelineDeps struct {
	Source      ports.FeedSource
	Normalizer  *normalize.Normalizer
	Baseline    ports.BaselineStore
	Tracker     *Tracker
	Recipients  ports.RecipientDirectory
	Notifier    ports.Notifier
	DryRun      ports.Notifier
	Concurrency int
	Logger      *slog.Logger
}

// Pipeline implements one full ingestion cycle:
// fetch -> normalize -> dedupe -> persist baseline -> summarize -> notify.
type Pipeline struct {
	source      ports.FeedSource
	normalizer  *normalize.Normalizer
	baseline    ports.BaselineStore
	tracker     *Tracker
	recipients  ports.RecipientDirectory
	notifier    ports.Notifier
	dryRun      ports.Notifier
	concurrency int
	logger      *slog.Logger
}

// NewPipeline constructs the orchestration component.
func NewPipeline(deps PipelineDeps) *Pipeline {
	concurrency := deps.Concurrency
	if concurrency <= 0 {
		concurrency = defaultConcurrency
	}
	return &Pipeline{
		source:      deps.Source,
		normalizer:  deps.Normalizer,
		baseline:    deps.Baseline,
		tracker:     deps.Tracker,
		recipients:  deps.Recipients,
		notifier:    deps.Notifier,
		dryRun:      deps.DryRun,
		concurrency: concurrency,
		logger:      deps.Logger,
	}
}

// RunOptions scope one cycle.
type RunOptions struct {
	Query ports.FeedQuery
	// Limit caps the number of jobs advanced this cycle; zero means all.
	Limit int
	// DryRun suppresses actual outbound notification.
	DryRun bool
}

// Run executes one cycle. It returns a non-nil error only for cycle-fatal
// conditions (fetch failure, unrecovered persist failure); per-record and
// per-recipient failures are isolated into the report. Callers derive the
// exit status from report.Clean().
func (p *Pipeline) Run(ctx context.Context, opts RunOptions) (domain.CycleReport, error) {
	report := domain.CycleReport{RunID: uuid.NewString()}
	log := p.logger
	if log == nil {
		log = slog.Default()
	}
	log = log.With("run_id", report.RunID)

	// A total fetch failure aborts before any state mutation.
	raws, err := p.source.Fetch(ctx, opts.Query)
	if err != nil {
		return report, &FetchError{Err: err}
	}
	if len(raws) == 0 {
		return report, &FetchError{Err: errors.New("feed returned no records")}
	}
	report.Fetched = len(raws)

	current := p.normalizeAll(raws, &report, log)

	baseline, err := p.baseline.Load(ctx)
	if err != nil {
		return report, &PersistError{Op: "load baseline", Err: err}
	}

	novel, updated := dedupe.Diff(baseline, current)
	report.Novel = len(novel)
	report.Refreshed = len(current) - len(novel)
	log.Info("dedupe complete", "fetched", report.Fetched, "dropped", report.Dropped,
		"novel", report.Novel, "refreshed", report.Refreshed)

	// Enqueue before committing the baseline: pending jobs are durable, so
	// the tracker never trails a committed baseline.
	for _, rec := range novel {
		if _, err := p.tracker.Enqueue(ctx, rec, dedupe.FingerprintOf(rec)); err != nil {
			return report, err
		}
	}

	if err := p.baseline.Save(ctx, updated); err != nil {
		return report, &PersistError{Op: "save baseline", Err: err}
	}

	jobs, err := p.tracker.jobs.ListUnfinished(ctx)
	if err != nil {
		return report, &PersistError{Op: "list jobs", Err: err}
	}
	if opts.Limit > 0 && len(jobs) > opts.Limit {
		jobs = jobs[:opts.Limit]
	}

	recipients, err := p.listRecipients(ctx)
	if err != nil {
		report.RecordError(fmt.Sprintf("list recipients: %v", err))
		recipients = nil
	}

	// A dry run swaps in the logging notifier and advances jobs in preview
	// mode: nothing is acknowledged, nothing reaches done.
	notifier := p.notifier
	if opts.DryRun {
		notifier = p.dryRun
	}

	p.advanceAll(ctx, jobs, notifier, recipients, opts.DryRun, &report, log)

	log.Info("cycle complete", "summarized", report.Summarized,
		"sent", report.NotificationsSent, "send_failed", report.NotificationsFailed,
		"jobs_failed", report.JobsFailed, "clean", report.Clean())
	return report, nil
}

// normalizeAll drops unusable records, counting them without failing the
// cycle.
func (p *Pipeline) normalizeAll(raws []ports.RawRecord, report *domain.CycleReport, log *slog.Logger) []domain.FilingRecord {
	current := make([]domain.FilingRecord, 0, len(raws))
	for _, raw := range raws {
		rec, err := p.normalizer.Record(raw)
		if err != nil {
			report.Dropped++
			if !errors.Is(err, normalize.ErrNoCompany) {
				log.Warn("record dropped", "error", err)
			}
			continue
		}
		current = append(current, rec)
	}
	return current
}

func (p *Pipeline) listRecipients(ctx context.Context) ([]domain.Recipient, error) {
	if p.recipients == nil {
		return nil, nil
	}
	return p.recipients.ListRecipients(ctx)
}

// advanceAll fans out over jobs with a bounded worker pool. Each job owns
// disjoint state (distinct company key), so parallel advancement is safe;
// the semaphore gates outbound calls to respect third-party rate limits.
func (p *Pipeline) advanceAll(ctx context.Context, jobs []*domain.FilingJob, notifier ports.Notifier, recipients []domain.Recipient, dry bool, report *domain.CycleReport, log *slog.Logger) {
	var (
		wg  sync.WaitGroup
		mu  sync.Mutex
		sem = make(chan struct{}, p.concurrency)
	)

	for _, job := range jobs {
		wg.Add(1)
		sem <- struct{}{}

		go func(job *domain.FilingJob) {
			defer wg.Done()
			defer func() { <-sem }()

			res := p.tracker.Advance(ctx, job, notifier, recipients, dry)

			mu.Lock()
			defer mu.Unlock()
			if res.Summarized {
				report.Summarized++
			}
			if res.FallbackUsed {
				report.SummaryFallbacks++
			}
			report.NotificationsSent += res.Sent
			report.NotificationsFailed += res.SendFailed
			if res.Failed {
				report.JobsFailed++
			}
			if res.Err != nil {
				report.RecordError(fmt.Sprintf("job %s: %v", job.Company, res.Err))
				log.Warn("job did not complete", "company", job.Company, "error", res.Err)
			}
		}(job)
	}

	wg.Wait()
}
