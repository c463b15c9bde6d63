// Package config loads, normalizes, and validates videofront configuration.
//
// Configuration lives in a TOML file (default ~/.config/videofront/config.toml)
// layered over repository defaults, with environment variable fallbacks for
// credentials. Callers should obtain a *Config via Load and treat it as
// read-only afterwards.
package config
