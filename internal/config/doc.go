// Package config loads, normalizes, and validates the TOML configuration that
// drives the daemon, the CLI, and every pipeline step.
package config
