// Package main hosts the artdedup CLI entrypoint and command graph.
//
// The Cobra-based command tree turns terminal invocations into calls against
// the artdedupd HTTP API: starting and watching scans, reviewing candidates,
// resolving and merging pairs, tailing daemon logs and scaffolding
// configuration. When no daemon answers, the same operations run in process
// against the catalog database through internal/api, so every command keeps
// working on a workstation without a background service. Catalog and
// relationship commands always open the database directly.
//
// Keep this package lean: add behavior to the internal packages first, then
// surface it here through a command or flag. Rendering (tables, status lines,
// --json output) belongs here; decisions about candidates and merges do not.
package main
