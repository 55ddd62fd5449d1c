package domain

// CycleReport aggregates per-cycle counters. Per-record and per-recipient
// failures are isolated into counters; only fetch and unrecovered persist
// errors abort a cycle.
type CycleReport struct {
	RunID               string   `json:"run_id"`
	Fetched             int      `json:"fetched"`
	Dropped             int      `json:"dropped"`
	Novel               int      `json:"novel"`
	Refreshed           int      `json:"refreshed"`
	Summarized          int      `json:"summarized"`
	SummaryFallbacks    int      `json:"summary_fallbacks"`
	NotificationsSent   int      `json:"notifications_sent"`
	NotificationsFailed int      `json:"notifications_failed"`
	JobsFailed          int      `json:"jobs_failed"`
	Errors              []string `json:"errors,omitempty"`
}

// RecordError appends a non-fatal error to the cycle report.
func (r *CycleReport) RecordError(msg string) {
	r.Errors = append(r.Errors, msg)
}

// Clean reports whether the cycle completed without unrecovered errors.
// The process exit code and the HTTP response status derive from this.
func (r *CycleReport) Clean() bool {
	return len(r.Errors) == 0 && r.JobsFailed == 0 && r.NotificationsFailed == 0
}
