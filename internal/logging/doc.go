// Package logging assembles structured slog loggers and formatting helpers used
// across artdedup.
//
// It owns the configurable console/JSON handlers, centralizes level and output
// plumbing, and exposes context-aware helpers so scanner, resolution and merge
// code can tag log lines with scan handles, artwork IDs and correlation IDs.
// The package also provides a no-op logger for tests and wiring code that
// cannot fail.
package logging
