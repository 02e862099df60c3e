// Package extract reads job title, company and description from a loaded job
// page using per-site selector profiles.
package extract

import (
	"context"
	"fmt"
	"time"
)

// Page is a loaded document the extractor reads from. Implementations must
// not mutate the page.
type Page interface {
	// Location returns the URL of the page.
	Location() string
	// QueryText returns the visible text of the first element matching
	// selector. found is false when no element matches.
	QueryText(ctx context.Context, selector string) (text string, found bool, err error)
	// Title returns the document title.
	Title(ctx context.Context) (string, error)
	// WaitForAny blocks until an element matching any selector exists or
	// timeout elapses. A timeout is reported as (false, nil).
	WaitForAny(ctx context.Context, selectors []string, timeout time.Duration) (bool, error)
}

// EnvironmentError means the page could not be read at all, as opposed to a
// page that was read but had nothing matching.
type EnvironmentError struct {
	Message string
	Cause   error
}

func (e *EnvironmentError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("extraction environment error: %s: %v", e.Message, e.Cause)
	}
	return fmt.Sprintf("extraction environment error: %s", e.Message)
}

func (e *EnvironmentError) Unwrap() error {
	return e.Cause
}
