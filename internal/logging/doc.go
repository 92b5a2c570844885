// Package logging wraps log/slog with the attribute helpers, context-derived
// fields, and handler construction shared by the daemon and CLI.
package logging
