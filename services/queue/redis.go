package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"sip/scraperworker/internal/metrics"
)

// RedisQueue implements Queue on plain Redis lists plus a sorted set for
// delayed retries.
//
// Keys:
//
//	<prefix>:<type>    job lane (list, RPUSH in, BLPOP out)
//	<prefix>:delayed   retry schedule (zset scored by due time)
//	<prefix>:dead      dead-letter park (list)
type RedisQueue struct {
	client *redis.Client
	prefix string
}

// NewRedisQueue connects a queue to Redis.
func NewRedisQueue(addr string, db int, prefix string) *RedisQueue {
	client := redis.NewClient(&redis.Options{
		Addr: addr,
		DB:   db,
	})
	return &RedisQueue{client: client, prefix: prefix}
}

func (q *RedisQueue) laneKey(jobType string) string {
	return q.prefix + ":" + jobType
}

func (q *RedisQueue) delayedKey() string {
	return q.prefix + ":delayed"
}

func (q *RedisQueue) deadKey() string {
	return q.prefix + ":dead"
}

// Enqueue appends the job to its lane.
func (q *RedisQueue) Enqueue(ctx context.Context, job *ScrapeJob) error {
	if err := job.Validate(); err != nil {
		return err
	}
	raw, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("encode job: %w", err)
	}
	if err := q.client.RPush(ctx, q.laneKey(job.Type), raw).Err(); err != nil {
		return fmt.Errorf("push job %s: %w", job.ID, err)
	}
	return nil
}

// Dequeue blocks up to timeout for the next job on the lane.
func (q *RedisQueue) Dequeue(ctx context.Context, jobType string, timeout time.Duration) (*ScrapeJob, error) {
	res, err := q.client.BLPop(ctx, timeout, q.laneKey(jobType)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNoJob
	}
	if err != nil {
		return nil, fmt.Errorf("pop %s lane: %w", jobType, err)
	}
	// BLPOP returns [key, value].
	if len(res) != 2 {
		return nil, fmt.Errorf("unexpected BLPOP reply length %d", len(res))
	}

	var job ScrapeJob
	if err := json.Unmarshal([]byte(res[1]), &job); err != nil {
		return nil, fmt.Errorf("decode job: %w", err)
	}
	return &job, nil
}

// Retry schedules the job to reappear on its lane after delay. The attempt
// counter is bumped before scheduling.
func (q *RedisQueue) Retry(ctx context.Context, job *ScrapeJob, delay time.Duration) error {
	job.Attempts++
	raw, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("encode job: %w", err)
	}
	due := float64(time.Now().Add(delay).UnixMilli())
	err = q.client.ZAdd(ctx, q.delayedKey(), redis.Z{Score: due, Member: raw}).Err()
	if err != nil {
		return fmt.Errorf("schedule retry for %s: %w", job.ID, err)
	}
	metrics.JobsRetried.WithLabelValues(job.Type).Inc()
	return nil
}

// deadLetterEntry wraps a parked job with its terminal failure reason.
type deadLetterEntry struct {
	Job      *ScrapeJob `json:"job"`
	Reason   string     `json:"reason"`
	FailedAt time.Time  `json:"failed_at"`
}

// DeadLetter parks the job permanently with a failure reason.
func (q *RedisQueue) DeadLetter(ctx context.Context, job *ScrapeJob, reason string) error {
	raw, err := json.Marshal(deadLetterEntry{
		Job:      job,
		Reason:   reason,
		FailedAt: time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("encode dead letter: %w", err)
	}
	if err := q.client.RPush(ctx, q.deadKey(), raw).Err(); err != nil {
		return fmt.Errorf("park job %s: %w", job.ID, err)
	}
	metrics.JobsDeadLettered.WithLabelValues(job.Type).Inc()
	return nil
}

// PromoteDelayed moves due retry jobs back onto their lanes. Intended to run
// on a short ticker from the worker pool.
func (q *RedisQueue) PromoteDelayed(ctx context.Context) (int, error) {
	now := fmt.Sprintf("%d", time.Now().UnixMilli())
	members, err := q.client.ZRangeByScore(ctx, q.delayedKey(), &redis.ZRangeBy{
		Min: "-inf",
		Max: now,
	}).Result()
	if err != nil {
		return 0, fmt.Errorf("read delayed jobs: %w", err)
	}

	moved := 0
	for _, member := range members {
		var job ScrapeJob
		if err := json.Unmarshal([]byte(member), &job); err != nil {
			// Unreadable member would loop forever; drop it.
			q.client.ZRem(ctx, q.delayedKey(), member)
			continue
		}

		// Remove first so a concurrent promoter cannot double-deliver.
		removed, err := q.client.ZRem(ctx, q.delayedKey(), member).Result()
		if err != nil || removed == 0 {
			continue
		}
		if err := q.client.RPush(ctx, q.laneKey(job.Type), member).Err(); err != nil {
			return moved, fmt.Errorf("promote job %s: %w", job.ID, err)
		}
		moved++
	}
	return moved, nil
}

// DeadLetters returns up to limit parked jobs without removing them.
func (q *RedisQueue) DeadLetters(ctx context.Context, limit int64) ([]string, error) {
	return q.client.LRange(ctx, q.deadKey(), 0, limit-1).Result()
}

// LaneDepth reports how many jobs are waiting on a lane.
func (q *RedisQueue) LaneDepth(ctx context.Context, jobType string) (int64, error) {
	return q.client.LLen(ctx, q.laneKey(jobType)).Result()
}

// Ping verifies the Redis connection.
func (q *RedisQueue) Ping(ctx context.Context) error {
	return q.client.Ping(ctx).Err()
}

// Close releases the Redis connection.
func (q *RedisQueue) Close() error {
	return q.client.Close()
}
