package domain

import (
	"errors"
	"fmt"
)

// Error taxonomy of the curation core. Every failure is isolated to one
// item, one source or one synthesis step.
var (
	ErrTransientNetwork   = errors.New("transient network error")
	ErrPermanentFetch     = errors.New("permanent fetch error")
	ErrScoringParse       = errors.New("scoring parse error")
	ErrAdapterUnavailable = errors.New("adapter unavailable")
	ErrSynthesisFailure   = errors.New("synthesis failure")
)

// FetchError describes a failed network fetch and its classification.
type FetchError struct {
	URL        string
	StatusCode int
	Kind       error
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("fetch %s: http %d: %v", e.URL, e.StatusCode, e.Kind)
	}
	if e.Err != nil {
		return fmt.Sprintf("fetch %s: %v: %v", e.URL, e.Kind, e.Err)
	}
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Kind)
}

// Is lets errors.Is match the classification sentinel.
func (e *FetchError) Is(target error) bool {
	return e.Kind == target
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// Transient reports whether err should be retried.
func Transient(err error) bool {
	return errors.Is(err, ErrTransientNetwork)
}
