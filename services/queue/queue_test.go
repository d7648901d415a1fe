package queue

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewJob(t *testing.T) {
	job, err := NewJob(TypeSearch, map[string]string{"keyword": "sepatu"}, 3)
	require.NoError(t, err)

	assert.NotEmpty(t, job.ID)
	assert.Equal(t, TypeSearch, job.Type)
	assert.Equal(t, 0, job.Attempts)
	assert.Equal(t, 3, job.MaxAttempts)
	assert.False(t, job.EnqueuedAt.IsZero())

	var payload map[string]string
	require.NoError(t, json.Unmarshal(job.Payload, &payload))
	assert.Equal(t, "sepatu", payload["keyword"])
}

func TestJobValidate(t *testing.T) {
	job, err := NewJob(TypeProduct, map[string]string{"url": "x"}, 3)
	require.NoError(t, err)
	assert.NoError(t, job.Validate())

	bad := *job
	bad.Type = "unknown"
	assert.Error(t, bad.Validate())

	bad = *job
	bad.ID = ""
	assert.Error(t, bad.Validate())

	bad = *job
	bad.Payload = nil
	assert.Error(t, bad.Validate())
}

func TestJobExhausted(t *testing.T) {
	job := &ScrapeJob{MaxAttempts: 3}
	assert.False(t, job.Exhausted())

	job.Attempts = 2
	assert.False(t, job.Exhausted())

	job.Attempts = 3
	assert.True(t, job.Exhausted())
}

func TestBackoffDelay(t *testing.T) {
	base := 5 * time.Second

	assert.Equal(t, 5*time.Second, BackoffDelay(base, 1))
	assert.Equal(t, 10*time.Second, BackoffDelay(base, 2))
	assert.Equal(t, 20*time.Second, BackoffDelay(base, 3))
	assert.Equal(t, 5*time.Second, BackoffDelay(base, 0))
}
