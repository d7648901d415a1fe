package errors

import (
	"fmt"
	"time"
)

// ErrorType represents the type of error
type ErrorType string

const (
	// ErrorTypeNavigation represents browser navigation and element-wait timeouts
	ErrorTypeNavigation ErrorType = "navigation"
	// ErrorTypePagination represents pagination-advance failures
	ErrorTypePagination ErrorType = "pagination"
	// ErrorTypeParsing represents HTML parsing errors
	ErrorTypeParsing ErrorType = "parsing"
	// ErrorTypeBlocked represents anti-bot detection / rate limiting
	ErrorTypeBlocked ErrorType = "blocked"
	// ErrorTypeStore represents record store write errors
	ErrorTypeStore ErrorType = "store"
	// ErrorTypeQueue represents queue transport errors
	ErrorTypeQueue ErrorType = "queue"
	// ErrorTypeValidation represents job payload validation errors
	ErrorTypeValidation ErrorType = "validation"
	// ErrorTypeConfiguration represents configuration errors
	ErrorTypeConfiguration ErrorType = "configuration"
)

// ScrapeError represents a pipeline-specific error
type ScrapeError struct {
	Type    ErrorType
	JobType string
	Message string
	Err     error
	Time    time.Time
}

// Error implements the error interface
func (e *ScrapeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %s - %v", e.Type, e.JobType, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Type, e.JobType, e.Message)
}

// Unwrap returns the underlying error
func (e *ScrapeError) Unwrap() error {
	return e.Err
}

// IsRetryable reports whether the job attempt should be retried by the queue
func (e *ScrapeError) IsRetryable() bool {
	switch e.Type {
	case ErrorTypeNavigation, ErrorTypeQueue:
		return true
	case ErrorTypeBlocked:
		return true
	case ErrorTypeValidation, ErrorTypeConfiguration:
		return false
	default:
		return false
	}
}

// New creates a new ScrapeError
func New(errType ErrorType, jobType, message string, err error) *ScrapeError {
	return &ScrapeError{
		Type:    errType,
		JobType: jobType,
		Message: message,
		Err:     err,
		Time:    time.Now(),
	}
}

// NewNavigation creates a new navigation error
func NewNavigation(jobType, message string, err error) *ScrapeError {
	return New(ErrorTypeNavigation, jobType, message, err)
}

// NewPagination creates a new pagination-advance error
func NewPagination(jobType, message string) *ScrapeError {
	return New(ErrorTypePagination, jobType, message, nil)
}

// NewParsing creates a new parsing error
func NewParsing(jobType, message string, err error) *ScrapeError {
	return New(ErrorTypeParsing, jobType, message, err)
}

// NewBlocked creates a new anti-bot block error
func NewBlocked(jobType string, duration time.Duration) *ScrapeError {
	message := fmt.Sprintf("blocked for %v", duration)
	return New(ErrorTypeBlocked, jobType, message, nil)
}

// NewStore creates a new record store error
func NewStore(jobType, message string, err error) *ScrapeError {
	return New(ErrorTypeStore, jobType, message, err)
}

// NewQueue creates a new queue transport error
func NewQueue(message string, err error) *ScrapeError {
	return New(ErrorTypeQueue, "", message, err)
}

// NewValidation creates a new validation error
func NewValidation(jobType, message string) *ScrapeError {
	return New(ErrorTypeValidation, jobType, message, nil)
}

// NewConfiguration creates a new configuration error
func NewConfiguration(message string, err error) *ScrapeError {
	return New(ErrorTypeConfiguration, "", message, err)
}
