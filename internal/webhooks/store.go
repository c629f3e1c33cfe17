package webhooks

import (
	"context"
	"errors"
)

// ErrNotConfigured is returned by operations that explicitly require a tenant
// webhook configuration, such as test deliveries.
var ErrNotConfigured = errors.New("webhooks: business has no webhook configuration")

// Store persists webhook delivery jobs. All mutation happens through
// single-row conditional updates so multiple worker processes can share one
// queue table safely.
type Store interface {
	// Insert creates a new pending job. The implementation assigns ID,
	// CreatedAt and UpdatedAt.
	Insert(ctx context.Context, job *Job) error

	// UpdateComment amends the comment on the job matching the response
	// identity, only while the job is still pending. It reports whether a
	// row was updated.
	UpdateComment(ctx context.Context, businessID, surveyID, subjectID, comment string) (bool, error)

	// FetchPendingDue returns up to limit pending jobs whose scheduled_for
	// has passed, oldest first.
	FetchPendingDue(ctx context.Context, limit int) ([]*Job, error)

	// FetchRetryDue returns up to limit failed jobs whose next_retry_at has
	// passed and that still have attempts left, earliest retry first.
	FetchRetryDue(ctx context.Context, limit int) ([]*Job, error)

	// TryClaim atomically transitions a pending or failed job to processing.
	// A false return means the job was not claimable (already processing,
	// delivered, or claimed by a concurrent worker) and is not an error.
	TryClaim(ctx context.Context, jobID string) (bool, error)

	// RecordAttempt stores the outcome of a delivery attempt. On success the
	// job becomes delivered and next_retry_at is cleared; on failure it
	// becomes failed with next_retry_at set from the backoff schedule.
	// attempts is the new total attempt count.
	RecordAttempt(ctx context.Context, jobID string, success bool, statusCode int, responseBody string, attempts int) error

	// RecentDeliveries returns a business's jobs ordered by creation time
	// descending, for the settings UI.
	RecentDeliveries(ctx context.Context, businessID string, limit int) ([]*Job, error)
}

// ConfigSource supplies per-tenant webhook configuration. It is owned by the
// business settings side of the product; the queue only reads it. A nil
// Config with nil error means the tenant has not enabled webhooks.
type ConfigSource interface {
	GetWebhookConfig(ctx context.Context, businessID string) (*Config, error)
}
