// Package daemonrun hosts the artdedupd process runtime: logger setup,
// preflight checks, the pid file and the service stack behind the daemon.
package daemonrun
