package main

import (
	"fmt"
	"maps"
	"slices"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"artdedup/internal/access"
	"artdedup/internal/api"
)

func newMergeCommand(ctx *commandContext) *cobra.Command {
	var (
		policy      map[string]string
		candidateID int64
		reason      string
		dryRun      bool
	)

	cmd := &cobra.Command{
		Use:   "merge <source-id> <target-id>",
		Short: "Fold the source artwork into the target",
		Long: "Fold the source artwork into the target in one transaction. Images, exhibitions and other\n" +
			"child records move to the target and the source is deleted.\n\n" +
			"Fields keep the target's value unless --policy says otherwise, e.g. --policy provenance=combine,medium=use_source.",
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			source, err := parseID(args[0])
			if err != nil {
				return err
			}
			target, err := parseID(args[1])
			if err != nil {
				return err
			}
			req := api.MergeRequest{
				SourceID:    source,
				TargetID:    target,
				Policy:      policy,
				CandidateID: candidateID,
				Reason:      reason,
				DryRun:      dryRun,
			}
			return ctx.withAccess(cmd, func(a access.Access) error {
				summary, err := a.Merge(cmd.Context(), req)
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, summary)
				}
				printMergeSummary(cmd, summary)
				return nil
			})
		},
	}
	cmd.Flags().StringToStringVarP(&policy, "policy", "p", nil, "Field policy as field=use_source|use_target|combine")
	cmd.Flags().Int64Var(&candidateID, "candidate", 0, "Candidate resolved by this merge (default: the open candidate for the pair)")
	cmd.Flags().StringVarP(&reason, "reason", "r", "", "Reason recorded on the candidate")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Show the merged record without writing anything")
	return cmd
}

func printMergeSummary(cmd *cobra.Command, s *api.MergeSummary) {
	out := cmd.OutOrStdout()
	colorize := shouldColorize(out)
	title := fmt.Sprintf("Merge %d into %d", s.SourceID, s.TargetID)
	if s.DryRun {
		title += " (dry run)"
	}
	lines := renderSectionHeader(title, colorize)
	fields := "none"
	if len(s.FieldsChanged) > 0 {
		fields = strings.Join(s.FieldsChanged, ", ")
	}
	lines = append(lines, renderStatusLine("Fields changed", statusInfo, fields, colorize))

	var total int64
	for _, n := range s.Children {
		total += n
	}
	verb := "Children moved"
	if s.DryRun {
		verb = "Children to move"
	}
	lines = append(lines, renderStatusLine(verb, statusInfo, childSummary(s.Children, total), colorize))
	if !s.DryRun {
		lines = append(lines,
			renderStatusLine("Candidates moved", statusInfo, count(s.CandidatesRepointed), colorize),
			renderStatusLine("Relations moved", statusInfo, count(s.RelationshipsRepointed), colorize),
		)
		if s.CandidateID > 0 {
			lines = append(lines, renderStatusLine("Candidate", statusOK, fmt.Sprintf("%d marked merged", s.CandidateID), colorize))
		}
		if s.AuditID > 0 {
			lines = append(lines, renderStatusLine("Audit entry", statusOK, strconv.FormatInt(s.AuditID, 10), colorize))
		}
	}
	printLines(out, lines)
	if s.Target != nil {
		fmt.Fprintln(out)
		fmt.Fprint(out, renderTable([]string{"Field", "Result"}, artworkRows(s.Target), nil, ""))
	}
}

func childSummary(children map[string]int64, total int64) string {
	if total == 0 {
		return "none"
	}
	parts := make([]string, 0, len(children))
	for _, table := range slices.Sorted(maps.Keys(children)) {
		if n := children[table]; n > 0 {
			parts = append(parts, fmt.Sprintf("%s %s", table, count(n)))
		}
	}
	return fmt.Sprintf("%s (%s)", count(total), strings.Join(parts, ", "))
}

func artworkRows(a *api.Artwork) [][]string {
	return [][]string{
		{"ID", strconv.FormatInt(a.ID, 10)},
		{"Title", orDash(a.Title)},
		{"Year", yearLabel(a.Year, a.YearCirca)},
		{"Medium", orDash(a.Medium)},
		{"Dimensions", orDash(a.Dimensions)},
		{"Type", orDash(a.ArtType)},
		{"Catalog no.", orDash(a.CatalogNumber)},
		{"Version", strconv.FormatInt(a.Version, 10)},
	}
}

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent merges, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withAccess(cmd, func(a access.Access) error {
				merges, err := a.MergeHistory(cmd.Context(), limit)
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, api.MergeHistoryResponse{Merges: merges})
				}
				out := cmd.OutOrStdout()
				if len(merges) == 0 {
					fmt.Fprintln(out, "No merges recorded")
					return nil
				}
				fmt.Fprint(out, renderTable(
					[]string{"Audit", "Source", "Target", "Candidate", "Children", "Fields", "Merged"},
					buildHistoryRows(merges),
					[]columnAlignment{alignRight, alignRight, alignRight, alignRight, alignRight, alignLeft, alignLeft},
					"",
				))
				return nil
			})
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum entries to show")
	return cmd
}

func buildHistoryRows(merges []api.MergeAudit) [][]string {
	rows := make([][]string, 0, len(merges))
	for _, m := range merges {
		candidate := "-"
		if m.CandidateID != nil {
			candidate = strconv.FormatInt(*m.CandidateID, 10)
		}
		rows = append(rows, []string{
			strconv.FormatInt(m.ID, 10),
			strconv.FormatInt(m.SourceID, 10),
			strconv.FormatInt(m.TargetID, 10),
			candidate,
			count(m.ChildrenReassigned),
			orDash(strings.Join(m.FieldsChanged, ", ")),
			relativeTime(m.MergedAt),
		})
	}
	return rows
}
