// Command permitflow runs the transit-pass certificate pipeline: a serve
// mode with a console transport, a one-shot process mode, and utilities for
// sessions, configuration, and dependency preflight.
package main
