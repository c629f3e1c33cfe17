package webhooks

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/surveypulse/courier/internal/retry"
)

// MemoryStore is an in-memory Store used in tests and for running the
// service without Postgres. It mirrors the repository's conditional-update
// semantics under a mutex, so claim races behave the same as against the
// database.
type MemoryStore struct {
	mu   sync.Mutex
	jobs map[string]*Job
}

// NewMemoryStore creates an empty in-memory job store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{jobs: make(map[string]*Job)}
}

func (s *MemoryStore) Insert(_ context.Context, job *Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	job.ID = uuid.New().String()
	job.Status = StatusPending
	job.CreatedAt = now
	job.UpdatedAt = now

	stored := *job
	s.jobs[job.ID] = &stored
	return nil
}

func (s *MemoryStore) UpdateComment(_ context.Context, businessID, surveyID, subjectID, comment string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	updated := false
	for _, job := range s.jobs {
		if job.BusinessID == businessID && job.SurveyID == surveyID && job.SubjectID == subjectID &&
			job.Status == StatusPending {
			c := comment
			job.Comment = &c
			job.UpdatedAt = time.Now().UTC()
			updated = true
		}
	}
	return updated, nil
}

func (s *MemoryStore) FetchPendingDue(_ context.Context, limit int) ([]*Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	var due []*Job
	for _, job := range s.jobs {
		if job.Status == StatusPending && !job.ScheduledFor.After(now) {
			due = append(due, copyJob(job))
		}
	}
	sort.Slice(due, func(i, j int) bool { return due[i].ScheduledFor.Before(due[j].ScheduledFor) })
	if len(due) > limit {
		due = due[:limit]
	}
	return due, nil
}

func (s *MemoryStore) FetchRetryDue(_ context.Context, limit int) ([]*Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	var due []*Job
	for _, job := range s.jobs {
		if job.Status == StatusFailed && job.NextRetryAt != nil && !job.NextRetryAt.After(now) &&
			job.Attempts < retry.MaxAttempts {
			due = append(due, copyJob(job))
		}
	}
	sort.Slice(due, func(i, j int) bool { return due[i].NextRetryAt.Before(*due[j].NextRetryAt) })
	if len(due) > limit {
		due = due[:limit]
	}
	return due, nil
}

func (s *MemoryStore) TryClaim(_ context.Context, jobID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[jobID]
	if !ok {
		return false, nil
	}
	if job.Status != StatusPending && job.Status != StatusFailed {
		return false, nil
	}
	job.Status = StatusProcessing
	job.UpdatedAt = time.Now().UTC()
	return true, nil
}

func (s *MemoryStore) RecordAttempt(_ context.Context, jobID string, success bool, statusCode int, responseBody string, attempts int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[jobID]
	if !ok {
		return nil
	}

	now := time.Now().UTC()
	body := TruncateBody(responseBody)

	job.Attempts = attempts
	job.LastAttemptAt = &now
	job.ResponseStatusCode = &statusCode
	job.ResponseBody = &body
	job.UpdatedAt = now

	if success {
		job.Status = StatusDelivered
		job.NextRetryAt = nil
	} else {
		job.Status = StatusFailed
		next := retry.NextRetryAt(now, attempts-1)
		job.NextRetryAt = &next
	}
	return nil
}

func (s *MemoryStore) RecentDeliveries(_ context.Context, businessID string, limit int) ([]*Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var jobs []*Job
	for _, job := range s.jobs {
		if job.BusinessID == businessID {
			jobs = append(jobs, copyJob(job))
		}
	}
	sort.Slice(jobs, func(i, j int) bool { return jobs[i].CreatedAt.After(jobs[j].CreatedAt) })
	if len(jobs) > limit {
		jobs = jobs[:limit]
	}
	return jobs, nil
}

// Put stores a fully-formed job as-is, for seeding specific states in
// tests. The job must carry an ID.
func (s *MemoryStore) Put(job *Job) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[job.ID] = copyJob(job)
}

// Get returns a snapshot of a job by id, for tests.
func (s *MemoryStore) Get(jobID string) (*Job, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[jobID]
	if !ok {
		return nil, false
	}
	return copyJob(job), true
}

func copyJob(job *Job) *Job {
	c := *job
	return &c
}
