package webhooks

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/surveypulse/courier/internal/retry"
)

const jobColumns = `
	id, business_id, survey_id, subject_id, score, comment,
	webhook_url, webhook_secret, scheduled_for, status, attempts,
	last_attempt_at, next_retry_at, response_status_code, response_body,
	created_at, updated_at`

// Repository is the Postgres-backed job store.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates a new webhook job repository.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// Insert creates a new pending job row.
func (r *Repository) Insert(ctx context.Context, job *Job) error {
	now := time.Now().UTC()
	job.ID = uuid.New().String()
	job.Status = StatusPending
	job.CreatedAt = now
	job.UpdatedAt = now

	query := `
		INSERT INTO webhook_jobs (
			id, business_id, survey_id, subject_id, score, comment,
			webhook_url, webhook_secret, scheduled_for, status, attempts,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`

	_, err := r.db.Exec(ctx, query,
		job.ID,
		job.BusinessID,
		job.SurveyID,
		job.SubjectID,
		job.Score,
		job.Comment,
		job.WebhookURL,
		job.WebhookSecret,
		job.ScheduledFor,
		job.Status,
		job.Attempts,
		job.CreatedAt,
		job.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert webhook job: %w", err)
	}
	return nil
}

// UpdateComment amends the comment on a still-pending job. The status guard
// lives in the statement itself so a job already claimed by a worker is never
// modified.
func (r *Repository) UpdateComment(ctx context.Context, businessID, surveyID, subjectID, comment string) (bool, error) {
	query := `
		UPDATE webhook_jobs
		SET comment = $4, updated_at = $5
		WHERE business_id = $1 AND survey_id = $2 AND subject_id = $3
		  AND status = 'pending'
	`

	tag, err := r.db.Exec(ctx, query, businessID, surveyID, subjectID, comment, time.Now().UTC())
	if err != nil {
		return false, fmt.Errorf("failed to update webhook job comment: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// FetchPendingDue returns pending jobs whose scheduled time has passed,
// oldest first.
func (r *Repository) FetchPendingDue(ctx context.Context, limit int) ([]*Job, error) {
	query := `
		SELECT ` + jobColumns + `
		FROM webhook_jobs
		WHERE status = 'pending' AND scheduled_for <= $1
		ORDER BY scheduled_for ASC
		LIMIT $2
	`

	return r.queryJobs(ctx, query, time.Now().UTC(), limit)
}

// FetchRetryDue returns failed jobs whose retry time has passed and that
// still have attempts left, earliest retry first.
func (r *Repository) FetchRetryDue(ctx context.Context, limit int) ([]*Job, error) {
	query := `
		SELECT ` + jobColumns + `
		FROM webhook_jobs
		WHERE status = 'failed'
		  AND next_retry_at IS NOT NULL
		  AND next_retry_at <= $1
		  AND attempts < $2
		ORDER BY next_retry_at ASC
		LIMIT $3
	`

	return r.queryJobs(ctx, query, time.Now().UTC(), retry.MaxAttempts, limit)
}

// TryClaim transitions a job to processing with a single conditional update.
// The status predicate makes the claim atomic: of any number of concurrent
// callers, exactly one sees a row affected.
func (r *Repository) TryClaim(ctx context.Context, jobID string) (bool, error) {
	query := `
		UPDATE webhook_jobs
		SET status = 'processing', updated_at = $2
		WHERE id = $1 AND status IN ('pending', 'failed')
	`

	tag, err := r.db.Exec(ctx, query, jobID, time.Now().UTC())
	if err != nil {
		return false, fmt.Errorf("failed to claim webhook job: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// RecordAttempt stores a delivery attempt's outcome.
func (r *Repository) RecordAttempt(ctx context.Context, jobID string, success bool, statusCode int, responseBody string, attempts int) error {
	now := time.Now().UTC()
	body := TruncateBody(responseBody)

	var (
		status      Status
		nextRetryAt *time.Time
	)
	if success {
		status = StatusDelivered
	} else {
		status = StatusFailed
		next := retry.NextRetryAt(now, attempts-1)
		nextRetryAt = &next
	}

	query := `
		UPDATE webhook_jobs
		SET status = $2, attempts = $3, last_attempt_at = $4, next_retry_at = $5,
		    response_status_code = $6, response_body = $7, updated_at = $4
		WHERE id = $1
	`

	_, err := r.db.Exec(ctx, query, jobID, status, attempts, now, nextRetryAt, statusCode, body)
	if err != nil {
		return fmt.Errorf("failed to record webhook attempt: %w", err)
	}
	return nil
}

// RecentDeliveries returns a business's jobs, newest first, for the settings
// UI.
func (r *Repository) RecentDeliveries(ctx context.Context, businessID string, limit int) ([]*Job, error) {
	query := `
		SELECT ` + jobColumns + `
		FROM webhook_jobs
		WHERE business_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`

	return r.queryJobs(ctx, query, businessID, limit)
}

func (r *Repository) queryJobs(ctx context.Context, query string, args ...any) ([]*Job, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query webhook jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read webhook job rows: %w", err)
	}

	return jobs, nil
}

func scanJob(rows pgx.Rows) (*Job, error) {
	var j Job

	err := rows.Scan(
		&j.ID,
		&j.BusinessID,
		&j.SurveyID,
		&j.SubjectID,
		&j.Score,
		&j.Comment,
		&j.WebhookURL,
		&j.WebhookSecret,
		&j.ScheduledFor,
		&j.Status,
		&j.Attempts,
		&j.LastAttemptAt,
		&j.NextRetryAt,
		&j.ResponseStatusCode,
		&j.ResponseBody,
		&j.CreatedAt,
		&j.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to scan webhook job: %w", err)
	}

	return &j, nil
}
