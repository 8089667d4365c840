// Package logging centralizes slog construction and the structured field
// conventions used across the pipeline: component names, session identifiers,
// stage names, and lifecycle event types. Loggers derive per-session fields
// from context via WithContext so stage transitions carry consistent
// correlation keys.
package logging
