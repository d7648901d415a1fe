package publisher

import (
	"context"
	"time"
)

// Event statuses.
const (
	StatusCompleted = "completed"
	StatusFailed    = "failed"
	StatusDead      = "dead_lettered"
)

// Event is the per-job outcome notification consumed by downstream services
// (dashboards, alerting, the ingesting backend).
type Event struct {
	JobID    string        `json:"job_id"`
	JobType  string        `json:"job_type"`
	Status   string        `json:"status"`
	Records  int           `json:"records"`
	Error    string        `json:"error,omitempty"`
	Duration time.Duration `json:"duration"`
	At       time.Time     `json:"at"`
}

// Publisher emits job outcome events.
type Publisher interface {
	// Publish emits one event.
	Publish(ctx context.Context, event Event) error

	// Trim caps the event backlog to the configured maximum length.
	Trim(ctx context.Context) error

	// Close closes the publisher connection.
	Close() error
}
