// Package api is the transport-agnostic service surface of artdedup. It wraps
// the scanner, resolution workflow and merge engine, and translates their
// models into DTOs the HTTP daemon and the CLI render without coupling to
// internal types.
//
// # Key Types
//
// Service: scan, candidate, resolution and merge operations.
//
// ScanStatus, Candidate, MergeSummary, MergeAudit: wire representations.
//
// # Design Notes
//
// DTOs use camelCase JSON tags. Enums (candidate status, method, scan state)
// are exposed as lowercase strings. Timestamps use RFC3339 with milliseconds.
// Scores are omitted when the signal was unavailable for the pair.
package api
