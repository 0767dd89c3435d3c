package models

import (
	"errors"
	"fmt"
)

// Common errors
var (
	ErrEmptyProduct       = errors.New("product cannot be empty")
	ErrInvalidSize        = errors.New("size cannot be negative")
	ErrInvalidDateRange   = errors.New("date_received_min must not be after date_received_max")
	ErrEmptyEnvelope      = errors.New("empty complaint response")
	ErrMissingHits        = errors.New("complaint response has no hits object")
	ErrSnapshotNotFound   = errors.New("analysis snapshot not found")
	ErrStorageUnavailable = errors.New("storage is not configured")
	ErrArchiveUnavailable = errors.New("report archive is not configured")
	ErrNoRecipients       = errors.New("at least one recipient is required")
	ErrMailerUnavailable  = errors.New("email delivery is not configured")
	ErrNoReport           = errors.New("analysis snapshot has no archived report")
)

// UpstreamKind classifies how a call to the complaint API failed.
type UpstreamKind string

const (
	// KindTransport covers network errors and timeouts.
	KindTransport UpstreamKind = "transport"
	// KindStatus is a non-2xx response.
	KindStatus UpstreamKind = "status"
	// KindMalformed is a 2xx response whose body is HTML or invalid JSON.
	KindMalformed UpstreamKind = "malformed"
)

// UpstreamError is returned by the complaint fetcher for every failed call.
type UpstreamError struct {
	Kind       UpstreamKind
	URL        string
	StatusCode int
	HTML       bool
	Preview    string
	Err        error
}

func (e *UpstreamError) Error() string {
	switch {
	case e.HTML:
		return fmt.Sprintf("complaint api returned html instead of json (status %d)", e.StatusCode)
	case e.Kind == KindStatus:
		return fmt.Sprintf("complaint api returned status %d", e.StatusCode)
	case e.Err != nil:
		return fmt.Sprintf("complaint api %s error: %v", e.Kind, e.Err)
	default:
		return fmt.Sprintf("complaint api %s error", e.Kind)
	}
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}

// IsUpstreamError reports whether err wraps an *UpstreamError.
func IsUpstreamError(err error) bool {
	var ue *UpstreamError
	return errors.As(err, &ue)
}

// AnalysisError records a failure inside one extraction step.
type AnalysisError struct {
	Step string
	Err  error
}

func (e *AnalysisError) Error() string {
	return fmt.Sprintf("analysis step %s failed: %v", e.Step, e.Err)
}

func (e *AnalysisError) Unwrap() error {
	return e.Err
}
