// Package worker runs the polling loop that drains the webhook job queue.
package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/surveypulse/courier/internal/delivery"
	"github.com/surveypulse/courier/internal/logger"
	"github.com/surveypulse/courier/internal/observability"
	"github.com/surveypulse/courier/internal/webhooks"
)

// Config controls the worker's polling and dispatch behavior.
type Config struct {
	// PollInterval is the time between processing cycles.
	PollInterval time.Duration
	// FetchLimit caps how many pending-due and how many retry-due jobs one
	// cycle fetches (FetchLimit of each).
	FetchLimit int
	// BatchSize bounds how many jobs are dispatched concurrently.
	BatchSize int
}

// DefaultConfig returns the standard worker configuration.
func DefaultConfig() Config {
	return Config{
		PollInterval: 10 * time.Second,
		FetchLimit:   10,
		BatchSize:    5,
	}
}

// Status reports the worker's observable state.
type Status struct {
	// Running is true while the polling loop is scheduled.
	Running bool
	// CycleActive is true while a processing cycle is executing.
	CycleActive bool
}

// Worker polls the job store for due deliveries and dispatches them with
// bounded concurrency. Each Worker owns its own timer and cycle guard so
// multiple instances can coexist; cross-instance safety comes from the
// store's atomic claim, not from anything here.
type Worker struct {
	store   webhooks.Store
	sender  webhooks.Sender
	cfg     Config
	metrics *observability.CourierMetrics

	running atomic.Bool
	busy    atomic.Bool

	mu       sync.Mutex
	cancel   context.CancelFunc
	done     chan struct{}
	draining bool
	cycles   sync.WaitGroup
}

// New creates a worker over the given store and sender.
func New(store webhooks.Store, sender webhooks.Sender, cfg Config) *Worker {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultConfig().PollInterval
	}
	if cfg.FetchLimit <= 0 {
		cfg.FetchLimit = DefaultConfig().FetchLimit
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultConfig().BatchSize
	}
	metrics, err := observability.NewCourierMetrics()
	if err != nil {
		logger.NewLogger("webhook-worker").Warn("failed to create metrics", "error", err)
	}
	return &Worker{
		store:   store,
		sender:  sender,
		cfg:     cfg,
		metrics: metrics,
	}
}

// Start launches the polling loop. The first cycle runs immediately, then
// every PollInterval until Stop is called.
func (w *Worker) Start() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.running.Load() {
		return errors.New("worker already started")
	}

	ctx, cancel := context.WithCancel(context.Background())
	w.cancel = cancel
	w.done = make(chan struct{})
	w.draining = false
	w.running.Store(true)

	go w.run(ctx)

	logger.NewLogger("webhook-worker").Info("worker started",
		"poll_interval", w.cfg.PollInterval,
		"fetch_limit", w.cfg.FetchLimit,
		"batch_size", w.cfg.BatchSize,
	)
	return nil
}

// Stop cancels the timer and waits for every in-flight cycle to finish,
// including cycles started through ProcessNow. In-progress HTTP deliveries
// are not interrupted. After Stop returns, ProcessNow is a no-op until the
// worker is started again.
func (w *Worker) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.running.Load() {
		return
	}

	w.draining = true
	w.cancel()
	<-w.done
	w.cycles.Wait()
	w.running.Store(false)

	logger.NewLogger("webhook-worker").Info("worker stopped")
}

// Status reports whether the loop is scheduled and whether a cycle is
// currently executing.
func (w *Worker) Status() Status {
	return Status{
		Running:     w.running.Load(),
		CycleActive: w.busy.Load(),
	}
}

// ProcessNow runs one processing cycle immediately. It is a no-op when a
// cycle is already executing or when the worker has been stopped. Cycles
// started here are registered with Stop's wait set, so shutdown lets them
// settle every job they claim.
func (w *Worker) ProcessNow(ctx context.Context) {
	w.mu.Lock()
	if w.draining {
		w.mu.Unlock()
		return
	}
	w.cycles.Add(1)
	w.mu.Unlock()
	defer w.cycles.Done()

	w.runCycle(ctx)
}

func (w *Worker) run(ctx context.Context) {
	defer close(w.done)

	// Jobs claimed mid-cycle must settle even when Stop fires, so cycles
	// run on a context that survives loop cancellation.
	cycleCtx := context.WithoutCancel(ctx)

	w.runCycle(cycleCtx)

	ticker := time.NewTicker(w.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.runCycle(cycleCtx)
		}
	}
}

// runCycle fetches due jobs and dispatches them. The busy flag makes
// overlapping invocations (a slow cycle outlasting the tick, or a manual
// trigger during a tick) no-ops.
func (w *Worker) runCycle(ctx context.Context) {
	if !w.busy.CompareAndSwap(false, true) {
		return
	}
	defer w.busy.Store(false)

	log := logger.NewLogger("webhook-worker")

	pending, err := w.store.FetchPendingDue(ctx, w.cfg.FetchLimit)
	if err != nil {
		log.Error("failed to fetch pending jobs", "error", err)
		pending = nil
	}
	retries, err := w.store.FetchRetryDue(ctx, w.cfg.FetchLimit)
	if err != nil {
		log.Error("failed to fetch retry jobs", "error", err)
		retries = nil
	}

	jobs := append(pending, retries...)
	if len(jobs) == 0 {
		return
	}

	log.Info("processing webhook jobs", "pending", len(pending), "retries", len(retries))

	for start := 0; start < len(jobs); start += w.cfg.BatchSize {
		end := min(start+w.cfg.BatchSize, len(jobs))

		var wg sync.WaitGroup
		for _, job := range jobs[start:end] {
			wg.Add(1)
			go func(job *webhooks.Job) {
				defer wg.Done()
				w.processJob(ctx, job)
			}(job)
		}
		wg.Wait()
	}
}

// processJob runs the claim-send-record sequence for one job. Every failure
// mode, including panics from a misbehaving store or sender, is converted
// into a recorded failed attempt so one job can never take down the loop or
// its batch siblings.
func (w *Worker) processJob(ctx context.Context, job *webhooks.Job) {
	log := logger.NewLogger("webhook-worker")

	defer func() {
		if r := recover(); r != nil {
			log.Error("panic while processing webhook job", "job_id", job.ID, "panic", r)
			w.recordFailure(ctx, job, fmt.Sprintf("internal error: %v", r))
		}
	}()

	claimed, err := w.store.TryClaim(ctx, job.ID)
	if err != nil {
		log.Error("failed to claim webhook job", "job_id", job.ID, "error", err)
		return
	}
	if !claimed {
		// Another worker or an overlapping cycle took it.
		log.Debug("webhook job already claimed", "job_id", job.ID)
		return
	}

	payload, err := delivery.NewPayload(job.SurveyID, job.SubjectID, job.Score, job.Comment).Marshal()
	if err != nil {
		log.Error("failed to build webhook payload", "job_id", job.ID, "error", err)
		w.recordFailure(ctx, job, fmt.Sprintf("payload error: %v", err))
		return
	}

	sendStart := time.Now()
	result := w.sender.Send(ctx, payload, job.WebhookURL, job.WebhookSecret)

	if w.metrics != nil {
		attrs := metric.WithAttributes(attribute.Bool("success", result.Success))
		w.metrics.WebhookDeliveries.Add(ctx, 1, attrs)
		w.metrics.DeliveryDuration.Record(ctx, time.Since(sendStart).Seconds(), attrs)
	}

	if err := w.store.RecordAttempt(ctx, job.ID, result.Success, result.StatusCode, result.Body, job.Attempts+1); err != nil {
		log.Error("failed to record webhook attempt", "job_id", job.ID, "error", err)
		return
	}

	if result.Success {
		log.Info("webhook delivered",
			"job_id", job.ID,
			"business_id", job.BusinessID,
			"status_code", result.StatusCode,
			"attempts", job.Attempts+1,
		)
	} else {
		log.Warn("webhook delivery failed",
			"job_id", job.ID,
			"business_id", job.BusinessID,
			"status_code", result.StatusCode,
			"attempts", job.Attempts+1,
		)
	}
}

func (w *Worker) recordFailure(ctx context.Context, job *webhooks.Job, message string) {
	if err := w.store.RecordAttempt(ctx, job.ID, false, 0, message, job.Attempts+1); err != nil {
		logger.NewLogger("webhook-worker").Error("failed to record webhook failure",
			"job_id", job.ID, "error", err)
	}
}
