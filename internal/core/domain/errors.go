package domain

import (
	"errors"
	"fmt"
	"net"
	"strings"
)

// Domain errors - used across all layers
var (
	// ErrNotFound indicates the requested resource was not found
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates the input is invalid
	ErrInvalidInput = errors.New("invalid input")

	// ErrUnauthorized indicates authentication failed or missing
	ErrUnauthorized = errors.New("unauthorized")

	// ErrForbidden indicates the principal lacks permission for this action
	ErrForbidden = errors.New("forbidden")

	// ErrTokenExpired indicates the auth token has expired
	ErrTokenExpired = errors.New("token expired")

	// ErrTokenInvalid indicates the auth token is malformed or invalid
	ErrTokenInvalid = errors.New("token invalid")

	// ErrUnknownObjectType indicates an object type without a backing index
	ErrUnknownObjectType = errors.New("unknown object type")

	// ErrReindexInProgress indicates another process holds the reindex lock
	ErrReindexInProgress = errors.New("reindex already in progress")

	// ErrServiceUnavailable indicates the document store could not be reached
	ErrServiceUnavailable = errors.New("service unavailable")
)

// ReindexError is raised when a bulk request reports item failures that
// cannot be ignored. Callers treat it as fatal for the batch.
type ReindexError struct {
	ObjectType ObjectType
	Op         string
	Errors     []BulkItemError
	Message    string
}

func (e *ReindexError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	parts := make([]string, 0, len(e.Errors))
	for _, item := range e.Errors {
		parts = append(parts, fmt.Sprintf("%s %s: %s (%s)", item.Op, item.ID, item.Type, item.Reason))
	}
	return fmt.Sprintf("error during bulk %s %s: %s", e.ObjectType, e.Op, strings.Join(parts, "; "))
}

// StoreError is a non-2xx response from the document store
type StoreError struct {
	Op         string
	StatusCode int
	Body       string
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("%s failed: status %d: %s", e.Op, e.StatusCode, e.Body)
}

// IsClientError reports a 4xx response. Throttling (429) is both a client
// error and transient.
func (e *StoreError) IsClientError() bool {
	return e.StatusCode >= 400 && e.StatusCode < 500
}

// IsTransient reports a response worth retrying (5xx or throttling).
func (e *StoreError) IsTransient() bool {
	return e.StatusCode >= 500 || e.StatusCode == 429
}

// IsNotFound reports a 404 response.
func (e *StoreError) IsNotFound() bool {
	return e.StatusCode == 404
}

// IsVersionConflict reports a 409 response.
func (e *StoreError) IsVersionConflict() bool {
	return e.StatusCode == 409
}

// RetryError wraps a failure that the task layer should retry.
type RetryError struct {
	Err error
}

func (e *RetryError) Error() string {
	return "retryable: " + e.Err.Error()
}

func (e *RetryError) Unwrap() error {
	return e.Err
}

// Retryable wraps err so that IsRetryable reports true for it.
func Retryable(err error) error {
	if err == nil {
		return nil
	}
	return &RetryError{Err: err}
}

// IsRetryable classifies err for the task retry policy: connection-class
// failures and transient store responses are retryable, data errors are not.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	var retryErr *RetryError
	if errors.As(err, &retryErr) {
		return true
	}

	var reindexErr *ReindexError
	if errors.As(err, &reindexErr) {
		return false
	}

	var storeErr *StoreError
	if errors.As(err, &storeErr) {
		return storeErr.IsTransient()
	}

	if errors.Is(err, ErrServiceUnavailable) || errors.Is(err, ErrReindexInProgress) {
		return true
	}

	var netErr net.Error
	return errors.As(err, &netErr)
}

// StoreStatus returns the status code of a StoreError in err's chain, or 0.
func StoreStatus(err error) int {
	var storeErr *StoreError
	if errors.As(err, &storeErr) {
		return storeErr.StatusCode
	}
	return 0
}
