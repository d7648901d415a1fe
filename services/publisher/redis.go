package publisher

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// defaultMaxLength keeps the event stream from growing without bound when no
// consumer trims it.
const defaultMaxLength = 10000

// RedisPublisher implements Publisher on a single Redis stream.
type RedisPublisher struct {
	client    *redis.Client
	stream    string
	maxLength int64
}

// NewRedisPublisher creates a publisher writing to the given stream.
func NewRedisPublisher(addr string, db int, stream string) *RedisPublisher {
	client := redis.NewClient(&redis.Options{
		Addr: addr,
		DB:   db,
	})
	return &RedisPublisher{
		client:    client,
		stream:    stream,
		maxLength: defaultMaxLength,
	}
}

// Publish appends the event to the stream as flat field pairs, trimming
// approximately to the maximum length on the way.
func (p *RedisPublisher) Publish(ctx context.Context, event Event) error {
	if event.At.IsZero() {
		event.At = time.Now().UTC()
	}

	values := map[string]interface{}{
		"job_id":      event.JobID,
		"job_type":    event.JobType,
		"status":      event.Status,
		"records":     event.Records,
		"duration_ms": event.Duration.Milliseconds(),
		"at":          event.At.Format(time.RFC3339),
	}
	if event.Error != "" {
		values["error"] = event.Error
	}

	err := p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: p.stream,
		MaxLen: p.maxLength,
		Approx: true,
		Values: values,
	}).Err()
	if err != nil {
		return fmt.Errorf("publish %s event for job %s: %w", event.Status, event.JobID, err)
	}
	return nil
}

// Trim caps the stream to the configured maximum length exactly.
func (p *RedisPublisher) Trim(ctx context.Context) error {
	return p.client.XTrimMaxLen(ctx, p.stream, p.maxLength).Err()
}

// Close closes the Redis connection.
func (p *RedisPublisher) Close() error {
	return p.client.Close()
}
