// Package fetch produces the permit records the pipeline consumes.
//
// Implementations stream records for a numeric pass-number window and
// district. PortalFetcher is the production implementation, walking the
// portal's public lookup pages; tests and alternative transports supply
// their own Fetcher.
package fetch

import (
	"context"
	"strings"
	"time"
)

// Record is one transport-permit entry fetched from the licensing portal.
// Immutable once received.
type Record struct {
	Identifier          string
	DestinationDistrict string
	DestinationAddress  string
	Quantity            string
	GeneratedOn         time.Time
}

// Valid reports whether the record carries a usable identifier.
func (r Record) Valid() bool {
	return strings.TrimSpace(r.Identifier) != ""
}

// Fetcher streams permit records for an identifier range and district. The
// emit callback receives records in arrival order; returning an error from it
// stops the stream. Implementations must respect ctx cancellation.
type Fetcher interface {
	Fetch(ctx context.Context, start, end int64, district string, emit func(Record) error) error
}

// FetcherFunc adapts a function to the Fetcher interface.
type FetcherFunc func(ctx context.Context, start, end int64, district string, emit func(Record) error) error

func (f FetcherFunc) Fetch(ctx context.Context, start, end int64, district string, emit func(Record) error) error {
	return f(ctx, start, end, district, emit)
}
