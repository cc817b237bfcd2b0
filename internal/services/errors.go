package services

import (
	"errors"
	"fmt"
)

var (
	ErrUnsupportedUnit   = errors.New("unsupported unit")
	ErrUnsupportedFamily = errors.New("unsupported family")
	ErrSelectorDisabled  = errors.New("chart selector is disabled until a report is loaded")
	ErrUnknownWidget     = errors.New("unknown widget")
	ErrNothingToRetry    = errors.New("no failed report request to retry")
	ErrNothingToRefresh  = errors.New("no report range to refresh")
	ErrCacheUnavailable  = errors.New("report cache unavailable")
)

// MalformedRecordError reports records that cannot be aggregated: an
// unparseable date or a counter that is not a finite number.
type MalformedRecordError struct {
	Indices []int
	Reason  string
}

func (e *MalformedRecordError) Error() string {
	reason := e.Reason
	if reason == "" {
		reason = "unparseable date"
	}
	return fmt.Sprintf("malformed report records at indices %v: %s", e.Indices, reason)
}
