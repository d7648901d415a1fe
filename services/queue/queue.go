package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Job types, one lane each.
const (
	TypeSearch  = "search"
	TypeProduct = "product"
	TypeSeller  = "seller"
)

// ErrNoJob is returned when a blocking dequeue times out with an empty lane.
var ErrNoJob = errors.New("no job available")

// ScrapeJob is the unit of work carried on a lane. Payload stays opaque to
// the queue; the worker decodes it per job type.
type ScrapeJob struct {
	ID          string          `json:"id"`
	Type        string          `json:"type"`
	Payload     json.RawMessage `json:"payload"`
	Attempts    int             `json:"attempts"`
	MaxAttempts int             `json:"max_attempts"`
	EnqueuedAt  time.Time       `json:"enqueued_at"`
}

// NewJob creates a job with a fresh id and zero attempts.
func NewJob(jobType string, payload interface{}, maxAttempts int) (*ScrapeJob, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode job payload: %w", err)
	}
	return &ScrapeJob{
		ID:          uuid.NewString(),
		Type:        jobType,
		Payload:     raw,
		MaxAttempts: maxAttempts,
		EnqueuedAt:  time.Now().UTC(),
	}, nil
}

// Validate rejects jobs the worker could never process.
func (j *ScrapeJob) Validate() error {
	switch j.Type {
	case TypeSearch, TypeProduct, TypeSeller:
	default:
		return fmt.Errorf("unknown job type %q", j.Type)
	}
	if j.ID == "" {
		return errors.New("job id is empty")
	}
	if len(j.Payload) == 0 {
		return errors.New("job payload is empty")
	}
	return nil
}

// Exhausted reports whether the job has burned its attempt budget.
func (j *ScrapeJob) Exhausted() bool {
	return j.Attempts >= j.MaxAttempts
}

// BackoffDelay doubles per attempt: base, 2x base, 4x base and so on.
func BackoffDelay(base time.Duration, attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	return base << (attempt - 1)
}

// Queue is the job transport between the enqueueing API and the worker pool.
type Queue interface {
	// Enqueue appends the job to its lane.
	Enqueue(ctx context.Context, job *ScrapeJob) error

	// Dequeue blocks up to timeout for the next job on the lane.
	// Returns ErrNoJob when the lane stays empty.
	Dequeue(ctx context.Context, jobType string, timeout time.Duration) (*ScrapeJob, error)

	// Retry schedules the job to reappear on its lane after delay.
	Retry(ctx context.Context, job *ScrapeJob, delay time.Duration) error

	// DeadLetter parks the job permanently with a failure reason.
	DeadLetter(ctx context.Context, job *ScrapeJob, reason string) error

	// PromoteDelayed moves due retry jobs back onto their lanes and returns
	// how many it moved.
	PromoteDelayed(ctx context.Context) (int, error)

	// Close releases the transport connection.
	Close() error
}
