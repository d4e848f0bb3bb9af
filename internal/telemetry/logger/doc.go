// Package logger builds the process-wide structured logger.
//
// It wraps log/slog with:
//   - JSON or text output, optionally rotated to a file
//   - a dynamic level that can change at runtime (config reload)
//   - redaction of credentials (JWTs, API keys, secrets) in attributes
//   - request and trace ids taken from the context of *Context calls
package logger
