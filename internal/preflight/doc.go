// Package preflight provides readiness checks for the filesystem paths,
// database and daemon endpoint that artdedup depends on.
//
// The daemon runs RunAll before it starts serving and refuses to start when
// a required check fails. The CLI "artdedup status" command renders the same
// results next to the daemon's own status.
package preflight
