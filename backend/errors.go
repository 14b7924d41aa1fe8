// ABOUTME: Error types for backend calls.
// ABOUTME: JobCreationError wraps any failure of POST /ask; StatusError carries a non-2xx reply.

package backend

import (
	"errors"
	"fmt"
)

var errEmptyJobID = errors.New("response has no job_id")

// StatusError is a non-2xx HTTP response.
type StatusError struct {
	StatusCode int
	Detail     string
}

func (e *StatusError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("unexpected status %d", e.StatusCode)
	}
	return fmt.Sprintf("unexpected status %d: %s", e.StatusCode, e.Detail)
}

// JobCreationError means a query could not be turned into a job.
type JobCreationError struct {
	StatusCode int
	Err        error
}

func (e *JobCreationError) Error() string {
	return "creating job: " + e.Err.Error()
}

func (e *JobCreationError) Unwrap() error { return e.Err }
