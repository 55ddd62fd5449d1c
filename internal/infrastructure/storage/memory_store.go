package storage

import (
	"context"
	"sort"
	"sync"

	"filingscout/internal/domain"
	"filingscout/internal/ports"
)

// MemoryStore keeps the baseline, jobs, and contacts in process memory.
// It backs tests and one-off dry runs where no database is configured.
type MemoryStore struct {
	mu         sync.Mutex
	baseline   domain.Baseline
	jobs       map[string]*domain.FilingJob
	recipients []domain.Recipient
}

var (
	_ ports.BaselineStore      = (*MemoryStore)(nil)
	_ ports.JobStore           = (*MemoryStore)(nil)
	_ ports.RecipientDirectory = (*MemoryStore)(nil)
)

// NewMemoryStore builds an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		baseline: domain.NewBaseline(),
		jobs:     make(map[string]*domain.FilingJob),
	}
}

// Load returns a copy of the current baseline.
func (s *MemoryStore) Load(_ context.Context) (domain.Baseline, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.baseline.Clone(), nil
}

// Save replaces the baseline when the version matches, mirroring the
// optimistic check the Postgres store performs.
func (s *MemoryStore) Save(_ context.Context, baseline domain.Baseline) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if baseline.Version != s.baseline.Version {
		return ErrVersionConflict
	}
	next := baseline.Clone()
	next.Version = baseline.Version + 1
	s.baseline = next
	return nil
}

// Get returns a copy of the job for the company, or nil when absent.
func (s *MemoryStore) Get(_ context.Context, company string) (*domain.FilingJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[company]
	if !ok {
		return nil, nil
	}
	return copyJob(job), nil
}

// Put stores a copy of the job snapshot.
func (s *MemoryStore) Put(_ context.Context, job *domain.FilingJob) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[job.Company] = copyJob(job)
	return nil
}

// ListUnfinished returns copies of every job that has not reached done,
// ordered by company for stable tests.
func (s *MemoryStore) ListUnfinished(_ context.Context) ([]*domain.FilingJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var jobs []*domain.FilingJob
	for _, job := range s.jobs {
		if job.Status.Terminal() {
			continue
		}
		jobs = append(jobs, copyJob(job))
	}
	sort.Slice(jobs, func(i, j int) bool { return jobs[i].Company < jobs[j].Company })
	return jobs, nil
}

// ListRecipients returns the configured recipients.
func (s *MemoryStore) ListRecipients(_ context.Context) ([]domain.Recipient, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Recipient, len(s.recipients))
	copy(out, s.recipients)
	return out, nil
}

// SetRecipients replaces the recipient list.
func (s *MemoryStore) SetRecipients(recipients []domain.Recipient) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recipients = append([]domain.Recipient(nil), recipients...)
}

func copyJob(job *domain.FilingJob) *domain.FilingJob {
	dup := *job
	dup.NotifiedRecipients = make(map[string]bool, len(job.NotifiedRecipients))
	for phone, ok := range job.NotifiedRecipients {
		dup.NotifiedRecipients[phone] = ok
	}
	return &dup
}
