// Package notifications delivers push notifications for pipeline milestones
// via ntfy. Without a configured topic every notification is a noop, and each
// event class can be gated off individually in configuration.
package notifications
