// Package services defines the error taxonomy shared by the pipeline stages.
//
// Stage code wraps failures with a sentinel marker so the coordinator can
// distinguish errors that abort a stage (login page unreachable, attempts
// exhausted, bad configuration) from per-item failures that are logged and
// skipped while the batch continues.
package services
