// Package pipeline coordinates the per-session permit workflow.
//
// A session moves through three operator-driven stages: fetching permit
// records for a pass-number window, processing them through the portal's
// eligibility probe behind a CAPTCHA login, and generating certificate PDFs
// from the public lookup pages. The coordinator serializes stages per
// session, runs sessions in parallel, emits typed progress events toward the
// caller, and guarantees the browser is closed on every exit path.
package pipeline
