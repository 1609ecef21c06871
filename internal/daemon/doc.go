// Package daemon coordinates the long-running artdedup process.
//
// It wires configuration, the catalog store, the scanner and the API service
// into a single lifecycle with flock-based locking to prevent multiple
// instances, and serves the JSON API and Prometheus metrics over HTTP.
//
// Keep orchestration here: detection, resolution and merge logic live in
// their own packages while the daemon focuses on startup, shutdown and
// transport.
package daemon
