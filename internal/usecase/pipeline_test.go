package usecase

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"filingscout/internal/domain"
	"filingscout/internal/infrastructure/storage"
	"filingscout/internal/normalize"
	"filingscout/internal/ports"
)

type fakeSource struct {
	records []ports.RawRecord
	err     error
	calls   int
}

func (f *fakeSource) Fetch(_ context.Context, _ ports.FeedQuery) ([]ports.RawRecord, error) {
	f.calls++
	return f.records, f.err
}

func rawRecord(symbol, company, subject, broadcastAt string) ports.RawRecord {
	return ports.RawRecord{
		"symbol":  symbol,
		"sm_name": company,
		"desc":    subject,
		"an_dt":   broadcastAt,
	}
}

func newTestPipeline(source ports.FeedSource, store *storage.MemoryStore, notifier ports.Notifier, dryRun ports.Notifier) *Pipeline {
	tracker := NewTracker(TrackerDeps{
		Jobs:     store,
		Fallback: &fakeSummarizer{summary: "filing summary"},
	})
	return NewPipeline(PipelineDeps{
		Source:     source,
		Normalizer: normalize.New("https://www.nseindia.com"),
		Baseline:   store,
		Tracker:    tracker,
		Recipients: store,
		Notifier:   notifier,
		DryRun:     dryRun,
	})
}

func TestRunFullCycle(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := storage.NewMemoryStore()
	store.SetRecipients([]domain.Recipient{{Phone: "918081489340", DisplayName: "Asha"}})

	source := &fakeSource{records: []ports.RawRecord{
		rawRecord("ACME", "Acme Ltd", "Board Meeting", "12-Aug-2026 18:30:00"),
		rawRecord("GLB", "Globex", "Dividend", "12-Aug-2026 19:00:00"),
	}}
	notifier := &fakeNotifier{}

	p := newTestPipeline(source, store, notifier, nil)
	report, err := p.Run(ctx, RunOptions{})
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	if report.Fetched != 2 || report.Novel != 2 || report.Dropped != 0 {
		t.Fatalf("unexpected counters: %+v", report)
	}
	if report.NotificationsSent != 2 {
		t.Fatalf("expected one send per job, got %d", report.NotificationsSent)
	}
	if !report.Clean() {
		t.Fatalf("expected clean cycle, got %+v", report)
	}

	baseline, _ := store.Load(ctx)
	if len(baseline.Entries) != 2 || baseline.Version != 1 {
		t.Fatalf("baseline not committed: %+v", baseline)
	}

	job, _ := store.Get(ctx, "Acme Ltd")
	if job == nil || job.Status != domain.JobDone {
		t.Fatalf("job not completed: %+v", job)
	}
}

func TestRunIdempotentOnRepeat(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := storage.NewMemoryStore()
	store.SetRecipients([]domain.Recipient{{Phone: "918081489340"}})

	source := &fakeSource{records: []ports.RawRecord{
		rawRecord("ACME", "Acme Ltd", "Board Meeting", "12-Aug-2026 18:30:00"),
	}}
	notifier := &fakeNotifier{}
	p := newTestPipeline(source, store, notifier, nil)

	if _, err := p.Run(ctx, RunOptions{}); err != nil {
		t.Fatalf("first run: %v", err)
	}
	report, err := p.Run(ctx, RunOptions{})
	if err != nil {
		t.Fatalf("second run: %v", err)
	}

	if report.Novel != 0 || report.Refreshed != 1 {
		t.Fatalf("repeat of the same window must refresh, not re-notify: %+v", report)
	}
	if notifier.calls != 1 {
		t.Fatalf("expected exactly one send across both runs, got %d", notifier.calls)
	}
}

func TestRunFetchFailureLeavesStateUntouched(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := storage.NewMemoryStore()
	p := newTestPipeline(&fakeSource{err: fmt.Errorf("upstream down")}, store, &fakeNotifier{}, nil)

	_, err := p.Run(ctx, RunOptions{})

	var fetchErr *FetchError
	if !errors.As(err, &fetchErr) {
		t.Fatalf("expected FetchError, got %v", err)
	}

	baseline, _ := store.Load(ctx)
	if len(baseline.Entries) != 0 || baseline.Version != 0 {
		t.Fatalf("fetch failure must not mutate the baseline: %+v", baseline)
	}
}

func TestRunEmptyFeedIsAFetchFailure(t *testing.T) {
	t.Parallel()

	p := newTestPipeline(&fakeSource{}, storage.NewMemoryStore(), &fakeNotifier{}, nil)
	_, err := p.Run(context.Background(), RunOptions{})

	var fetchErr *FetchError
	if !errors.As(err, &fetchErr) {
		t.Fatalf("expected FetchError for empty feed, got %v", err)
	}
}

func TestRunCountsDroppedRecords(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := storage.NewMemoryStore()
	source := &fakeSource{records: []ports.RawRecord{
		rawRecord("ACME", "Acme Ltd", "Board Meeting", "12-Aug-2026 18:30:00"),
		{"desc": "record with no company"},
	}}
	p := newTestPipeline(source, store, &fakeNotifier{}, nil)

	report, err := p.Run(ctx, RunOptions{})
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	if report.Fetched != 2 || report.Dropped != 1 || report.Novel != 1 {
		t.Fatalf("unexpected counters: %+v", report)
	}
	if !report.Clean() {
		t.Fatal("dropped records must not dirty the cycle")
	}
}

func TestRunDryRunSuppressesOutbound(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := storage.NewMemoryStore()
	store.SetRecipients([]domain.Recipient{{Phone: "918081489340"}})

	source := &fakeSource{records: []ports.RawRecord{
		rawRecord("ACME", "Acme Ltd", "Board Meeting", "12-Aug-2026 18:30:00"),
	}}
	real := &fakeNotifier{}
	dry := &fakeNotifier{}
	p := newTestPipeline(source, store, real, dry)

	report, err := p.Run(ctx, RunOptions{DryRun: true})
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	if real.calls != 0 {
		t.Fatalf("dry run must not touch the real notifier, got %d calls", real.calls)
	}
	if dry.calls != 1 || report.NotificationsSent != 1 {
		t.Fatalf("dry-run sends still count: dry=%d report=%+v", dry.calls, report)
	}
}

func TestRunDryRunDoesNotConsumeNotifications(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := storage.NewMemoryStore()
	store.SetRecipients([]domain.Recipient{{Phone: "918081489340"}})

	source := &fakeSource{records: []ports.RawRecord{
		rawRecord("ACME", "Acme Ltd", "Board Meeting", "12-Aug-2026 18:30:00"),
	}}
	real := &fakeNotifier{}
	p := newTestPipeline(source, store, real, &fakeNotifier{})

	if _, err := p.Run(ctx, RunOptions{DryRun: true}); err != nil {
		t.Fatalf("dry run: %v", err)
	}

	// The dry cycle committed the baseline but left the job deliverable.
	unfinished, _ := store.ListUnfinished(ctx)
	if len(unfinished) != 1 {
		t.Fatalf("dry run must leave the job unfinished, got %d", len(unfinished))
	}

	report, err := p.Run(ctx, RunOptions{})
	if err != nil {
		t.Fatalf("real run: %v", err)
	}
	if real.calls != 1 || report.NotificationsSent != 1 {
		t.Fatalf("real run after dry run must deliver, calls=%d report=%+v", real.calls, report)
	}

	job, _ := store.Get(ctx, "Acme Ltd")
	if job.Status != domain.JobDone {
		t.Fatalf("expected done after real run, got %s", job.Status)
	}
}

type conflictingBaseline struct {
	*storage.MemoryStore
}

func (c conflictingBaseline) Save(context.Context, domain.Baseline) error {
	return storage.ErrVersionConflict
}

func TestRunAbortsBeforeAdvancingWhenSaveFails(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := storage.NewMemoryStore()
	store.SetRecipients([]domain.Recipient{{Phone: "918081489340"}})

	source := &fakeSource{records: []ports.RawRecord{
		rawRecord("ACME", "Acme Ltd", "Board Meeting", "12-Aug-2026 18:30:00"),
	}}
	summarizer := &fakeSummarizer{summary: "s"}
	notifier := &fakeNotifier{}

	tracker := NewTracker(TrackerDeps{Jobs: store, Fallback: summarizer})
	p := NewPipeline(PipelineDeps{
		Source:     source,
		Normalizer: normalize.New(""),
		Baseline:   conflictingBaseline{store},
		Tracker:    tracker,
		Recipients: store,
		Notifier:   notifier,
	})

	_, err := p.Run(ctx, RunOptions{})

	var persistErr *PersistError
	if !errors.As(err, &persistErr) {
		t.Fatalf("expected PersistError, got %v", err)
	}
	if !errors.Is(err, storage.ErrVersionConflict) {
		t.Fatalf("version conflict must be preserved in the chain: %v", err)
	}

	// The cycle never advanced past the unwritten baseline.
	if summarizer.calls != 0 || notifier.calls != 0 {
		t.Fatalf("no job may advance after a failed save: summarize=%d send=%d",
			summarizer.calls, notifier.calls)
	}

	// The enqueued job survives as pending, resumable by the next cycle.
	unfinished, _ := store.ListUnfinished(ctx)
	if len(unfinished) != 1 || unfinished[0].Status != domain.JobPending {
		t.Fatalf("pending job must survive the abort: %+v", unfinished)
	}
}

func TestRunLimitCapsJobAdvancement(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := storage.NewMemoryStore()
	source := &fakeSource{records: []ports.RawRecord{
		rawRecord("ACME", "Acme Ltd", "Board Meeting", "12-Aug-2026 18:30:00"),
		rawRecord("GLB", "Globex", "Dividend", "12-Aug-2026 19:00:00"),
	}}
	p := newTestPipeline(source, store, &fakeNotifier{}, nil)

	report, err := p.Run(ctx, RunOptions{Limit: 1})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if report.Summarized != 1 {
		t.Fatalf("limit must cap advanced jobs, got %d", report.Summarized)
	}

	// The job left behind is picked up by the next cycle.
	unfinished, _ := store.ListUnfinished(ctx)
	if len(unfinished) != 1 {
		t.Fatalf("expected one unfinished job, got %d", len(unfinished))
	}
}

func TestRunRecipientLookupFailureIsNotFatal(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := storage.NewMemoryStore()
	source := &fakeSource{records: []ports.RawRecord{
		rawRecord("ACME", "Acme Ltd", "Board Meeting", "12-Aug-2026 18:30:00"),
	}}

	tracker := NewTracker(TrackerDeps{Jobs: store, Fallback: &fakeSummarizer{summary: "s"}})
	p := NewPipeline(PipelineDeps{
		Source:     source,
		Normalizer: normalize.New(""),
		Baseline:   store,
		Tracker:    tracker,
		Recipients: failingDirectory{},
		Notifier:   &fakeNotifier{},
	})

	report, err := p.Run(ctx, RunOptions{})
	if err != nil {
		t.Fatalf("recipient lookup failure must not abort the cycle: %v", err)
	}
	if report.Clean() {
		t.Fatal("the failure must surface in the report")
	}
	// Jobs still advance to done with zero sends.
	job, _ := store.Get(ctx, "Acme Ltd")
	if job.Status != domain.JobDone {
		t.Fatalf("job must still complete, got %s", job.Status)
	}
}

type failingDirectory struct{}

func (failingDirectory) ListRecipients(context.Context) ([]domain.Recipient, error) {
	return nil, fmt.Errorf("contacts table unavailable")
}
