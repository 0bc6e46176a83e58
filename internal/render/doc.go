// Package render produces the certificate PDFs.
//
// Rendering happens in two steps: a field overlay is drawn on a blank A4 page
// at fixed coordinates (see layout.go), then the overlay is stamped onto the
// first page of the configured background template. The coordinate grid is
// keyed by field name and never moves, so generated documents are suitable for
// deterministic visual regression comparison. PDF byte assembly is synchronous
// CPU work; callers on the hot path run it off the coordinating goroutine.
package render
