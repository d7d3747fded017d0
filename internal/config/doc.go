// ABOUTME: Package documentation for configuration loading.
// ABOUTME: Explains the YAML shape and environment variable expansion.

// Package config loads the agent subsystem configuration from a YAML
// file. Values in the form ${VAR_NAME} are expanded from the
// environment before parsing, and duration fields accept Go duration
// strings ("30s", "1m30s"). Missing fields fall back to defaults; the
// only required field is agent.binaries_dir, which points at the
// directory holding the bundled agent binaries and manifest.toml.
package config
