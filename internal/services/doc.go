// Package services defines shared utilities consumed by the scanner, the
// resolution workflow, the merge engine and their transports.
//
// Key responsibilities:
//   - Context helpers that stamp scan handles, artwork IDs and correlation
//     identifiers for logging.
//   - Structured error markers plus the Wrap helper and Kind classifier that
//     translate failures into stable error kinds for callers (HTTP status,
//     bulk outcomes, CLI output).
//
// Use these helpers when wiring new operations so error reporting and
// observability stay uniform across the subsystem.
package services
