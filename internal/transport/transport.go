// Package transport fetches raw listing pages from the marketplace. The
// Transport interface is the boundary the scan cycle consumes; the
// Kleinanzeigen client below is the production implementation.
package transport

import (
	"context"
	"fmt"

	"ramwatch/internal/models"
)

// Transport supplies raw listings for a search page and accepts the rotate
// signal. FetchPage must be safely retryable.
type Transport interface {
	FetchPage(ctx context.Context, page int) ([]models.RawListing, error)
	RotateSession()
}

// FetchError is a transient fetch failure (network fault, anti-bot block).
// The caller retries and, after exhausting retries, skips the page.
type FetchError struct {
	Page int
	Err  error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch page %d: %v", e.Page, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}
