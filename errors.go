package tgfetch

import (
	"errors"
	"fmt"
)

// FetchReason classifies why a fetch failed, so callers can pick the
// designated fallback (relaxed format selection, alternate client identity)
// before giving up on an item.
type FetchReason string

const (
	ReasonFormatUnavailable FetchReason = "format not available"
	ReasonForbidden         FetchReason = "forbidden"
	ReasonOther             FetchReason = "fetch failed"
)

// FetchError is the failure of fetching one item. It never aborts a bulk
// run; the controller records it and moves on.
type FetchError struct {
	Reason FetchReason
	Err    error
}

func (e *FetchError) Error() string {
	if e.Err == nil {
		return string(e.Reason)
	}
	return fmt.Sprintf("%s: %v", e.Reason, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// NewFetchError wraps err with a classification, leaving an existing
// FetchError untouched.
func NewFetchError(reason FetchReason, err error) error {
	var fe *FetchError
	if errors.As(err, &fe) {
		return err
	}
	return &FetchError{Reason: reason, Err: err}
}

// FetchReasonOf extracts the classification from an error chain, defaulting
// to ReasonOther.
func FetchReasonOf(err error) FetchReason {
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe.Reason
	}
	return ReasonOther
}
