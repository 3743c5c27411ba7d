// Package logging constructs the slog loggers used across the service and
// defines the standardized attribute keys handlers and callers share.
package logging
