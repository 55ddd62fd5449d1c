package domain

import "time"

// JobStatus enumerates the summarize-and-notify state machine.
type JobStatus string

const (
	JobPending     JobStatus = "pending"
	JobSummarizing JobStatus = "summarizing"
	JobSummarized  JobStatus = "summarized"
	JobNotifying   JobStatus = "notifying"
	JobDone        JobStatus = "done"
	JobFailed      JobStatus = "failed"
)

// Terminal reports whether the status admits no further transitions.
// Failed is retryable and therefore not terminal.
func (s JobStatus) Terminal() bool {
	return s == JobDone
}

// FilingJob tracks processing of exactly one novel filing through
// summarization and notification. Jobs are keyed by company.
type FilingJob struct {
	Company      string
	Fingerprint  Fingerprint
	Record       FilingRecord
	Status       JobStatus
	Summary      string
	AttemptCount int
	LastError    string
	// NotifiedRecipients records phones that were successfully messaged for
	// this job, so a retried run never sends twice to the same recipient.
	NotifiedRecipients map[string]bool
	UpdatedAt          time.Time
}

// NewFilingJob builds a pending job for a novel filing.
func NewFilingJob(rec FilingRecord, fp Fingerprint) *FilingJob {
	return &FilingJob{
		Company:            rec.Company,
		Fingerprint:        fp,
		Record:             rec,
		Status:             JobPending,
		NotifiedRecipients: map[string]bool{},
	}
}

// Notified reports whether the recipient phone was already messaged.
func (j *FilingJob) Notified(phone string) bool {
	return j.NotifiedRecipients[phone]
}

// MarkNotified records a successful send to one recipient.
func (j *FilingJob) MarkNotified(phone string) {
	if j.NotifiedRecipients == nil {
		j.NotifiedRecipients = map[string]bool{}
	}
	j.NotifiedRecipients[phone] = true
}
