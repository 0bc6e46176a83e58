// Package session manages per-user working sets for the permit pipeline.
//
// Each session owns a private directory (with a pdf subdirectory for
// generated certificates) and a SQLite-backed working set of fetched permit
// records, eligibility verdicts, and generated documents. The store hands out
// one live handle per user; the handle's stage slot serializes that user's
// pipeline stages while independent users proceed in parallel.
//
// Sessions are transient. Teardown deletes both the database rows and the
// directory, and is safe to repeat. A periodic sweep tears down sessions that
// have been idle past the configured age and removes directories no session
// claims.
package session
