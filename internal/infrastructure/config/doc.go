// Package config loads service configuration.
//
// Values resolve in three layers: built-in defaults, an optional YAML or
// TOML file named by LIVECODE_CONFIG, and LIVECODE_* environment variables.
// Nested sections map to prefixed variables, e.g. LIVECODE_SERVER_PORT or
// LIVECODE_PREVIEW_PROVENANCE.
package config
