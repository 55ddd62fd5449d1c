// Package storage persists the run baseline, filing jobs, and the contact
// directory in Postgres. The baseline is owned exclusively by the pipeline
// for the duration of a cycle; saves are versioned so two overlapping cycles
// can never interleave their writes.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/lib/pq"

	"filingscout/internal/domain"
	"filingscout/internal/normalize"
	"filingscout/internal/ports"
)

// ErrVersionConflict marks a baseline save that does not supersede the
// persisted version. The caller treats it as an unrecovered persist failure.
var ErrVersionConflict = errors.New("baseline version conflict")

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// PostgresStore implements BaselineStore, JobStore, and RecipientDirectory
// on one database handle.
type PostgresStore struct {
	db *sql.DB
}

var (
	_ ports.BaselineStore      = (*PostgresStore)(nil)
	_ ports.JobStore           = (*PostgresStore)(nil)
	_ ports.RecipientDirectory = (*PostgresStore)(nil)
)

// NewPostgresStore wires a sql.DB implementation.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Schema holds the DDL this store expects.
const Schema = `
CREATE TABLE IF NOT EXISTS baseline_meta (
    id      INT PRIMARY KEY,
    version BIGINT NOT NULL
);

CREATE TABLE IF NOT EXISTS run_baseline (
    company         TEXT PRIMARY KEY,
    symbol          TEXT NOT NULL DEFAULT '',
    subject         TEXT NOT NULL DEFAULT '',
    details         TEXT NOT NULL DEFAULT '',
    attachment_url  TEXT NOT NULL DEFAULT '',
    attachment_size TEXT NOT NULL DEFAULT '',
    broadcast_at    TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS filing_jobs (
    company         TEXT PRIMARY KEY,
    fingerprint     TEXT NOT NULL,
    symbol          TEXT NOT NULL DEFAULT '',
    subject         TEXT NOT NULL DEFAULT '',
    details         TEXT NOT NULL DEFAULT '',
    attachment_url  TEXT NOT NULL DEFAULT '',
    attachment_size TEXT NOT NULL DEFAULT '',
    broadcast_at    TEXT NOT NULL DEFAULT '',
    status          TEXT NOT NULL,
    summary         TEXT NOT NULL DEFAULT '',
    attempt_count   INT NOT NULL DEFAULT 0,
    last_error      TEXT NOT NULL DEFAULT '',
    notified        TEXT[] NOT NULL DEFAULT '{}',
    updated_at      TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS contacts (
    phone TEXT PRIMARY KEY,
    name  TEXT NOT NULL DEFAULT ''
);
`

// EnsureSchema creates the tables when missing.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

// Load reads the persisted baseline. A database without state yields an
// empty baseline at version zero, never an error.
func (s *PostgresStore) Load(ctx context.Context) (domain.Baseline, error) {
	baseline := domain.NewBaseline()

	err := s.db.QueryRowContext(ctx, `SELECT version FROM baseline_meta WHERE id = 1`).
		Scan(&baseline.Version)
	if errors.Is(err, sql.ErrNoRows) {
		return baseline, nil
	}
	if err != nil {
		return domain.Baseline{}, fmt.Errorf("load baseline version: %w", err)
	}

	query, args, err := psql.
		Select("company", "symbol", "subject", "details", "attachment_url", "attachment_size", "broadcast_at").
		From("run_baseline").
		ToSql()
	if err != nil {
		return domain.Baseline{}, fmt.Errorf("build baseline query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return domain.Baseline{}, fmt.Errorf("query baseline: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var rec domain.FilingRecord
		if err := rows.Scan(&rec.Company, &rec.Symbol, &rec.Subject, &rec.Details,
			&rec.AttachmentURL, &rec.AttachmentSize, &rec.BroadcastAt); err != nil {
			return domain.Baseline{}, fmt.Errorf("scan baseline row: %w", err)
		}
		baseline.Entries[rec.Company] = rec
	}
	if err := rows.Err(); err != nil {
		return domain.Baseline{}, fmt.Errorf("baseline rows: %w", err)
	}

	return baseline, nil
}

// Save replaces the baseline wholesale inside one transaction. The write is
// rejected with ErrVersionConflict when another cycle committed since this
// baseline was loaded, so a failed save leaves the previous baseline intact.
func (s *PostgresStore) Save(ctx context.Context, baseline domain.Baseline) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin baseline save: %w", err)
	}
	defer tx.Rollback()

	if err := s.bumpVersion(ctx, tx, baseline.Version); err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM run_baseline`); err != nil {
		return fmt.Errorf("clear baseline: %w", err)
	}

	for _, rec := range baseline.Entries {
		query, args, err := psql.
			Insert("run_baseline").
			Columns("company", "symbol", "subject", "details", "attachment_url", "attachment_size", "broadcast_at").
			Values(rec.Company, rec.Symbol, rec.Subject, rec.Details,
				rec.AttachmentURL, rec.AttachmentSize, rec.BroadcastAt).
			ToSql()
		if err != nil {
			return fmt.Errorf("build baseline insert: %w", err)
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("insert baseline row %s: %w", rec.Company, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit baseline: %w", err)
	}
	return nil
}

func (s *PostgresStore) bumpVersion(ctx context.Context, tx *sql.Tx, loaded int64) error {
	res, err := tx.ExecContext(ctx,
		`UPDATE baseline_meta SET version = $1 WHERE id = 1 AND version = $2`,
		loaded+1, loaded)
	if err != nil {
		return fmt.Errorf("bump baseline version: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("bump baseline version: %w", err)
	}
	if affected == 1 {
		return nil
	}

	// No meta row yet: first save ever. Anything else is a lost race.
	if loaded == 0 {
		res, err = tx.ExecContext(ctx,
			`INSERT INTO baseline_meta (id, version) VALUES (1, 1) ON CONFLICT (id) DO NOTHING`)
		if err != nil {
			return fmt.Errorf("init baseline version: %w", err)
		}
		if affected, err = res.RowsAffected(); err == nil && affected == 1 {
			return nil
		}
	}

	return ErrVersionConflict
}

// Get returns the job for a company, or nil when none exists.
func (s *PostgresStore) Get(ctx context.Context, company string) (*domain.FilingJob, error) {
	query, args, err := jobSelect().Where(sq.Eq{"company": company}).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build job query: %w", err)
	}

	job, err := scanJob(s.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load job %s: %w", company, err)
	}
	return job, nil
}

// Put upserts the job snapshot, including the notified-recipients
// checkpoint.
func (s *PostgresStore) Put(ctx context.Context, job *domain.FilingJob) error {
	notified := make([]string, 0, len(job.NotifiedRecipients))
	for phone := range job.NotifiedRecipients {
		notified = append(notified, phone)
	}

	query := `INSERT INTO filing_jobs
              (company, fingerprint, symbol, subject, details, attachment_url, attachment_size,
               broadcast_at, status, summary, attempt_count, last_error, notified, updated_at)
              VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
              ON CONFLICT (company) DO UPDATE
              SET fingerprint = EXCLUDED.fingerprint,
                  symbol = EXCLUDED.symbol,
                  subject = EXCLUDED.subject,
                  details = EXCLUDED.details,
                  attachment_url = EXCLUDED.attachment_url,
                  attachment_size = EXCLUDED.attachment_size,
                  broadcast_at = EXCLUDED.broadcast_at,
                  status = EXCLUDED.status,
                  summary = EXCLUDED.summary,
                  attempt_count = EXCLUDED.attempt_count,
                  last_error = EXCLUDED.last_error,
                  notified = EXCLUDED.notified,
                  updated_at = EXCLUDED.updated_at`

	_, err := s.db.ExecContext(ctx, query,
		job.Company,
		string(job.Fingerprint),
		job.Record.Symbol,
		job.Record.Subject,
		job.Record.Details,
		job.Record.AttachmentURL,
		job.Record.AttachmentSize,
		job.Record.BroadcastAt,
		string(job.Status),
		job.Summary,
		job.AttemptCount,
		job.LastError,
		pq.StringArray(notified),
		job.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert job %s: %w", job.Company, err)
	}
	return nil
}

// ListUnfinished returns jobs that have not reached done, oldest first, so
// interrupted cycles resume them.
func (s *PostgresStore) ListUnfinished(ctx context.Context) ([]*domain.FilingJob, error) {
	query, args, err := jobSelect().
		Where(sq.NotEq{"status": string(domain.JobDone)}).
		OrderBy("updated_at ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build unfinished query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query unfinished jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*domain.FilingJob
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("scan job row: %w", err)
		}
		jobs = append(jobs, job)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("job rows: %w", err)
	}

	return jobs, nil
}

// ListRecipients reads the contacts table, excluding entries whose phone
// fails normalization.
func (s *PostgresStore) ListRecipients(ctx context.Context) ([]domain.Recipient, error) {
	query, args, err := psql.Select("phone", "name").From("contacts").OrderBy("phone").ToSql()
	if err != nil {
		return nil, fmt.Errorf("build contacts query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query contacts: %w", err)
	}
	defer rows.Close()

	var recipients []domain.Recipient
	for rows.Next() {
		var phone, name string
		if err := rows.Scan(&phone, &name); err != nil {
			return nil, fmt.Errorf("scan contact: %w", err)
		}
		normalized, ok := normalize.Phone(phone)
		if !ok {
			continue
		}
		recipients = append(recipients, domain.Recipient{Phone: normalized, DisplayName: name})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("contact rows: %w", err)
	}

	return recipients, nil
}

func jobSelect() sq.SelectBuilder {
	return psql.Select(
		"company", "fingerprint", "symbol", "subject", "details",
		"attachment_url", "attachment_size", "broadcast_at",
		"status", "summary", "attempt_count", "last_error", "notified", "updated_at",
	).From("filing_jobs")
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(row rowScanner) (*domain.FilingJob, error) {
	var (
		job      domain.FilingJob
		fp       string
		status   string
		notified pq.StringArray
		updated  time.Time
	)

	err := row.Scan(
		&job.Company, &fp,
		&job.Record.Symbol, &job.Record.Subject, &job.Record.Details,
		&job.Record.AttachmentURL, &job.Record.AttachmentSize, &job.Record.BroadcastAt,
		&status, &job.Summary, &job.AttemptCount, &job.LastError, &notified, &updated,
	)
	if err != nil {
		return nil, err
	}

	job.Record.Company = job.Company
	job.Fingerprint = domain.Fingerprint(fp)
	job.Status = domain.JobStatus(status)
	job.UpdatedAt = updated
	job.NotifiedRecipients = make(map[string]bool, len(notified))
	for _, phone := range notified {
		job.NotifiedRecipients[phone] = true
	}

	return &job, nil
}
