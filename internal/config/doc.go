// Package config loads, normalizes, and validates the TOML configuration for
// the daemon and CLI. Loading resolves ${VAR} environment references for
// credentials, expands tilde paths, applies defaults, and rejects incomplete
// configurations before the poll loop can start.
package config
