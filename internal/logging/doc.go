// Package logging assembles the structured slog loggers used across
// PermitFlow components.
//
// It owns the console and JSON handler plumbing, exposes typed attribute
// helpers plus the standardized field keys (component, stage, user,
// identifier), and provides a no-op logger for tests and wiring code that
// cannot fail. Prefer these constructors over hand-rolled slog setup so every
// component emits records with the same shape.
package logging
