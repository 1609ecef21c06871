// Package config loads, normalizes, and validates artdedup configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// ARTDEDUP_API_TOKEN. The Config type centralizes the knobs the daemon, the
// CLI and the duplicate scanner need: storage locations, similarity
// thresholds, blocking parameters and logging.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
