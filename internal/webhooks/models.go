package webhooks

import (
	"time"

	"github.com/surveypulse/courier/internal/delivery"
)

// Status represents the delivery state of a webhook job.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusDelivered  Status = "delivered"
	StatusFailed     Status = "failed"
)

// MaxResponseBodyLen is the delivery client's response capture cap; stored
// response bodies are bounded by the same limit.
const MaxResponseBodyLen = delivery.MaxResponseBodyLen

// Job represents one queued outbound notification for a single survey
// response event. The webhook URL and secret are snapshotted from the
// tenant's configuration at enqueue time; later reconfiguration never
// affects jobs already in the queue.
type Job struct {
	ID         string  `json:"id" db:"id"`
	BusinessID string  `json:"business_id" db:"business_id"`
	SurveyID   string  `json:"survey_id" db:"survey_id"`
	SubjectID  string  `json:"subject_id" db:"subject_id"`
	Score      int     `json:"score" db:"score"`
	Comment    *string `json:"comment" db:"comment"`

	WebhookURL    string `json:"webhook_url" db:"webhook_url"`
	WebhookSecret string `json:"-" db:"webhook_secret"`

	ScheduledFor time.Time `json:"scheduled_for" db:"scheduled_for"`
	Status       Status    `json:"status" db:"status"`
	Attempts     int       `json:"attempts" db:"attempts"`

	LastAttemptAt      *time.Time `json:"last_attempt_at" db:"last_attempt_at"`
	NextRetryAt        *time.Time `json:"next_retry_at" db:"next_retry_at"`
	ResponseStatusCode *int       `json:"response_status_code" db:"response_status_code"`
	ResponseBody       *string    `json:"response_body" db:"response_body"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// ResponseEvent carries the survey response captured by the product when a
// subject submits a score. It is the payload content of a webhook job.
type ResponseEvent struct {
	SurveyID  string  `json:"survey_id"`
	SubjectID string  `json:"subject_id"`
	Score     int     `json:"score"`
	Comment   *string `json:"comment"`
}

// Config is a tenant's webhook configuration as supplied by the business
// settings store.
type Config struct {
	URL    string `json:"url"`
	Secret string `json:"secret"`
}

// TruncateBody bounds a response body to MaxResponseBodyLen so endpoint
// responses cannot grow storage without limit.
func TruncateBody(body string) string {
	if len(body) > MaxResponseBodyLen {
		return body[:MaxResponseBodyLen]
	}
	return body
}
