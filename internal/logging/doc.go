// Package logging configures structured logging for the daemon and CLI.
//
// Loggers are log/slog loggers with either a console or a JSON handler.
// Components obtain derived loggers via NewComponentLogger and enrich records
// with context-scoped fields (media id, step, correlation id) through
// WithContext.
package logging
