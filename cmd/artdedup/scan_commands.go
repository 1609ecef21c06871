package main

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"artdedup/internal/access"
	"artdedup/internal/api"
)

func newScanCommand(ctx *commandContext) *cobra.Command {
	var (
		methods    []string
		imageT     float64
		titleT     float64
		metadataT  float64
		combinedT  float64
		yearFrom   int
		yearTo     int
		ids        []int64
		wait       bool
		pollPeriod time.Duration
	)

	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Start a full duplicate scan",
		Long: "Start a full duplicate scan in the background.\n\n" +
			"Without a running daemon the scan runs in this process and the command waits for it to finish.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			req := api.ScanRequest{Methods: methods}
			flags := cmd.Flags()
			thresholds := &api.Thresholds{}
			override := false
			for _, t := range []struct {
				flag  string
				value float64
				dst   **float64
			}{
				{"image-threshold", imageT, &thresholds.ImageHash},
				{"title-threshold", titleT, &thresholds.Title},
				{"metadata-threshold", metadataT, &thresholds.Metadata},
				{"combined-threshold", combinedT, &thresholds.Combined},
			} {
				if flags.Changed(t.flag) {
					v := t.value
					*t.dst = &v
					override = true
				}
			}
			if override {
				req.Thresholds = thresholds
			}
			if flags.Changed("year-from") {
				req.Scope.YearFrom = &yearFrom
			}
			if flags.Changed("year-to") {
				req.Scope.YearTo = &yearTo
			}
			req.Scope.IDs = ids

			return ctx.withAccess(cmd, func(a access.Access) error {
				status, err := a.StartScan(cmd.Context(), req)
				if err != nil {
					return err
				}
				if wait || !a.Remote() {
					if status, err = waitForScan(cmd.Context(), a, status.Handle, pollPeriod, progressWriter(ctx, cmd)); err != nil {
						return err
					}
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, status)
				}
				printLines(cmd.OutOrStdout(), scanStatusLines(status, shouldColorize(cmd.OutOrStdout())))
				return nil
			})
		},
	}

	cmd.Flags().StringSliceVar(&methods, "method", nil, "Detection method to run (image_hash, title, metadata, combined); repeatable")
	cmd.Flags().Float64Var(&imageT, "image-threshold", 0, "Override the image hash threshold")
	cmd.Flags().Float64Var(&titleT, "title-threshold", 0, "Override the title threshold")
	cmd.Flags().Float64Var(&metadataT, "metadata-threshold", 0, "Override the metadata threshold")
	cmd.Flags().Float64Var(&combinedT, "combined-threshold", 0, "Override the combined threshold")
	cmd.Flags().IntVar(&yearFrom, "year-from", 0, "Only scan records dated from this year")
	cmd.Flags().IntVar(&yearTo, "year-to", 0, "Only scan records dated up to this year")
	cmd.Flags().Int64SliceVar(&ids, "id", nil, "Only scan these artwork ids; repeatable")
	cmd.Flags().BoolVarP(&wait, "wait", "w", false, "Wait for the scan to finish")
	cmd.Flags().DurationVar(&pollPeriod, "poll", 500*time.Millisecond, "Progress poll interval while waiting")
	return cmd
}

func newScansCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "scans [handle]",
		Short: "List retained scans or show one scan",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withAccess(cmd, func(a access.Access) error {
				if len(args) == 1 {
					status, err := a.ScanStatus(cmd.Context(), args[0])
					if err != nil {
						return err
					}
					if ctx.jsonOutput() {
						return writeJSON(cmd, status)
					}
					printLines(cmd.OutOrStdout(), scanStatusLines(status, shouldColorize(cmd.OutOrStdout())))
					return nil
				}
				scans, err := a.ListScans(cmd.Context())
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, api.ScanListResponse{Scans: scans})
				}
				out := cmd.OutOrStdout()
				if len(scans) == 0 {
					fmt.Fprintln(out, "No scans")
					return nil
				}
				fmt.Fprint(out, renderTable(
					[]string{"Handle", "State", "Progress", "Candidates", "Errors", "Started"},
					buildScanRows(scans),
					[]columnAlignment{alignLeft, alignLeft, alignRight, alignRight, alignRight, alignLeft},
					"",
				))
				return nil
			})
		},
	}
}

func newCancelCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "cancel <handle>",
		Short: "Cancel a running scan",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withAccess(cmd, func(a access.Access) error {
				status, err := a.CancelScan(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, status)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Scan %s cancelled; %s candidates written so far remain\n",
					status.Handle, count(status.CandidatesFound))
				return nil
			})
		},
	}
}

func progressWriter(ctx *commandContext, cmd *cobra.Command) io.Writer {
	if ctx.jsonOutput() {
		return io.Discard
	}
	return cmd.ErrOrStderr()
}

// waitForScan polls a scan until it leaves the running state.
func waitForScan(ctx context.Context, a access.Access, handle string, period time.Duration, progress io.Writer) (*api.ScanStatus, error) {
	if period <= 0 {
		period = 500 * time.Millisecond
	}
	ticker := time.NewTicker(period)
	defer ticker.Stop()
	last := ""
	for {
		status, err := a.ScanStatus(ctx, handle)
		if err != nil {
			return nil, err
		}
		if status.State != "running" {
			return status, nil
		}
		line := fmt.Sprintf("scanning: %s/%s records (%.0f%%), %s candidates",
			count(status.Processed), count(status.Total), status.Percent, count(status.CandidatesFound))
		if line != last {
			fmt.Fprintln(progress, line)
			last = line
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

func scanStatusLines(status *api.ScanStatus, colorize bool) []string {
	lines := renderSectionHeader("Scan "+status.Handle, colorize)
	lines = append(lines,
		renderStatusLine("State", scanStateKind(status.State), status.State, colorize),
		renderStatusLine("Progress", statusInfo, fmt.Sprintf("%s/%s records (%.0f%%)",
			count(status.Processed), count(status.Total), status.Percent), colorize),
		renderStatusLine("Candidates", statusInfo, count(status.CandidatesFound), colorize),
		renderStatusLine("Fingerprinted", statusInfo, count(status.Fingerprinted), colorize),
	)
	errKind := statusOK
	if status.Errors > 0 {
		errKind = statusWarn
	}
	lines = append(lines, renderStatusLine("Errors", errKind, count(status.Errors), colorize))
	if status.Skipped > 0 {
		lines = append(lines, renderStatusLine("Skipped", statusWarn, fmt.Sprintf("%s images with recorded fingerprint failures", count(status.Skipped)), colorize))
	}
	if len(status.Methods) > 0 {
		lines = append(lines, renderStatusLine("Methods", statusInfo, strings.Join(status.Methods, ", "), colorize))
	}
	lines = append(lines, renderStatusLine("Started", statusInfo, relativeTime(status.StartedAt), colorize))
	if status.FinishedAt != "" {
		lines = append(lines, renderStatusLine("Finished", statusInfo, relativeTime(status.FinishedAt), colorize))
	}
	if status.LastError != "" {
		lines = append(lines, renderStatusLine("Last error", statusError, status.LastError, colorize))
	}
	return lines
}

func buildScanRows(scans []api.ScanStatus) [][]string {
	rows := make([][]string, 0, len(scans))
	for _, s := range scans {
		rows = append(rows, []string{
			s.Handle,
			s.State,
			fmt.Sprintf("%.0f%%", s.Percent),
			count(s.CandidatesFound),
			count(s.Errors),
			relativeTime(s.StartedAt),
		})
	}
	return rows
}
