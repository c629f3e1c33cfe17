package webhooks

import (
	"context"
	"time"

	"github.com/surveypulse/courier/internal/delivery"
	"github.com/surveypulse/courier/internal/logger"
	"github.com/surveypulse/courier/internal/observability"
)

// DefaultEnqueueDelay is how long delivery waits after a response is
// captured, giving the subject time to add a comment before the webhook
// fires.
const DefaultEnqueueDelay = 180 * time.Second

// Sender delivers a signed payload to a webhook endpoint.
type Sender interface {
	Send(ctx context.Context, payload []byte, url, secret string) delivery.Result
}

// Service is the queue's collaborator-facing surface: response-recorded
// events enqueue through it, and the settings UI reads delivery history and
// fires test deliveries through it.
type Service struct {
	store        Store
	configs      ConfigSource
	sender       Sender
	enqueueDelay time.Duration
	metrics      *observability.CourierMetrics
}

// NewService creates a webhook service with the default enqueue delay.
func NewService(store Store, configs ConfigSource, sender Sender) *Service {
	metrics, err := observability.NewCourierMetrics()
	if err != nil {
		logger.NewLogger("webhook-service").Warn("failed to create metrics", "error", err)
	}
	return &Service{
		store:        store,
		configs:      configs,
		sender:       sender,
		enqueueDelay: DefaultEnqueueDelay,
		metrics:      metrics,
	}
}

// SetEnqueueDelay overrides the delay between response capture and the first
// delivery attempt.
func (s *Service) SetEnqueueDelay(d time.Duration) {
	s.enqueueDelay = d
}

// EnqueueResponse creates a delivery job for a captured survey response.
// Webhooks are opt-in per tenant: when the business has no URL or secret
// configured, no job is created and the returned id is empty. The tenant's
// URL and secret are copied onto the job so reconfiguration never changes
// in-flight deliveries.
func (s *Service) EnqueueResponse(ctx context.Context, businessID string, event ResponseEvent) (string, error) {
	log := logger.NewLogger("webhook-service")

	cfg, err := s.configs.GetWebhookConfig(ctx, businessID)
	if err != nil {
		return "", err
	}
	if cfg == nil || cfg.URL == "" || cfg.Secret == "" {
		log.Debug("skipping enqueue, webhooks not configured", "business_id", businessID)
		return "", nil
	}

	job := &Job{
		BusinessID:    businessID,
		SurveyID:      event.SurveyID,
		SubjectID:     event.SubjectID,
		Score:         event.Score,
		Comment:       event.Comment,
		WebhookURL:    cfg.URL,
		WebhookSecret: cfg.Secret,
		ScheduledFor:  time.Now().UTC().Add(s.enqueueDelay),
	}
	if err := s.store.Insert(ctx, job); err != nil {
		return "", err
	}

	if s.metrics != nil {
		s.metrics.JobsEnqueued.Add(ctx, 1)
	}

	log.Info("enqueued webhook job",
		"job_id", job.ID,
		"business_id", businessID,
		"survey_id", event.SurveyID,
		"scheduled_for", job.ScheduledFor,
	)
	return job.ID, nil
}

// UpdateComment amends a late-arriving comment on a still-pending job. It
// reports whether a job was updated; once the job leaves pending the comment
// snapshot is fixed.
func (s *Service) UpdateComment(ctx context.Context, businessID, surveyID, subjectID, comment string) (bool, error) {
	return s.store.UpdateComment(ctx, businessID, surveyID, subjectID, comment)
}

// RecentDeliveries returns a business's latest jobs for the settings UI.
func (s *Service) RecentDeliveries(ctx context.Context, businessID string, limit int) ([]*Job, error) {
	return s.store.RecentDeliveries(ctx, businessID, limit)
}

// SendTestDelivery sends a synthetic payload to the tenant's endpoint
// immediately, bypassing the queue. Unlike enqueue, a missing configuration
// is surfaced as ErrNotConfigured because the caller explicitly asked for a
// delivery.
func (s *Service) SendTestDelivery(ctx context.Context, businessID string) (delivery.Result, error) {
	cfg, err := s.configs.GetWebhookConfig(ctx, businessID)
	if err != nil {
		return delivery.Result{}, err
	}
	if cfg == nil || cfg.URL == "" || cfg.Secret == "" {
		return delivery.Result{}, ErrNotConfigured
	}

	comment := "This is a test delivery from Surveypulse."
	payload, err := delivery.NewPayload("test-survey", "test-subject", 10, &comment).Marshal()
	if err != nil {
		return delivery.Result{}, err
	}

	result := s.sender.Send(ctx, payload, cfg.URL, cfg.Secret)
	logger.NewLogger("webhook-service").Info("sent test delivery",
		"business_id", businessID,
		"success", result.Success,
		"status_code", result.StatusCode,
	)
	return result, nil
}
