package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"artdedup/internal/access"
	"artdedup/internal/api"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show daemon, candidate and scan status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withAccess(cmd, func(a access.Access) error {
				status, err := a.Status(cmd.Context())
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, status)
				}
				out := cmd.OutOrStdout()
				printLines(out, statusLines(status, a.Remote(), ctx.configPath, shouldColorize(out)))
				return nil
			})
		},
	}
}

func statusLines(status *api.DaemonStatus, remote bool, configPath string, colorize bool) []string {
	lines := renderSectionHeader("System Status", colorize)
	switch {
	case remote && status.Running:
		lines = append(lines, renderStatusLine("Daemon", statusOK, "running (pid "+strconv.Itoa(status.PID)+")", colorize))
	case remote:
		lines = append(lines, renderStatusLine("Daemon", statusWarn, "answering but not started", colorize))
	default:
		lines = append(lines, renderStatusLine("Daemon", statusWarn, "not running; using the database directly", colorize))
	}
	if configPath != "" {
		lines = append(lines, renderStatusLine("Config", statusInfo, configPath, colorize))
	}
	lines = append(lines, renderStatusLine("Database", statusInfo, orDash(status.DatabasePath), colorize))
	if status.LockFilePath != "" {
		lines = append(lines, renderStatusLine("Lock file", statusInfo, status.LockFilePath, colorize))
	}
	lines = append(lines, "")

	lines = append(lines, renderSectionHeader("Candidates", colorize)...)
	for _, s := range statusOrder {
		n := status.Candidates[s]
		kind := statusInfo
		if s == "pending" && n > 0 {
			kind = candidateStatusKind(s)
		}
		lines = append(lines, renderStatusLine(s, kind, count(int64(n)), colorize))
	}
	lines = append(lines, "")

	lines = append(lines, renderSectionHeader("Scans", colorize)...)
	if len(status.Scans) == 0 {
		lines = append(lines, renderStatusLine("Scans", statusInfo, "none retained", colorize))
	}
	for _, s := range status.Scans {
		msg := fmt.Sprintf("%s %.0f%%, %s candidates, started %s",
			s.State, s.Percent, count(s.CandidatesFound), relativeTime(s.StartedAt))
		lines = append(lines, renderStatusLine(shortHandle(s.Handle), scanStateKind(s.State), msg, colorize))
	}
	return lines
}

func shortHandle(handle string) string {
	if len(handle) > 8 {
		return handle[:8]
	}
	return handle
}
