// Package daemonctl launches and stops the artdedupd process on behalf of
// the CLI.
package daemonctl
