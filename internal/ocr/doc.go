// Package ocr recognizes CAPTCHA text by shelling out to tesseract.
//
// The engine is a single process-wide instance shared by every session. Model
// loading dominates invocation cost, so concurrency is bounded by a small
// semaphore instead of spawning one tesseract per session. Recognition output
// that is not a pure digit string is reported as ErrNotDigits, the signal the
// authentication engine retries on without consuming a login attempt.
package ocr
