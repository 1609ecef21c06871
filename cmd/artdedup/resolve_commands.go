package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"artdedup/internal/access"
	"artdedup/internal/api"
)

const resolutionHelp = "not_duplicate, ignored, confirmed_duplicate or merged"

func newResolveCommand(ctx *commandContext) *cobra.Command {
	var (
		target int64
		reason string
		policy map[string]string
	)

	cmd := &cobra.Command{
		Use:   "resolve <candidate-id> <resolution>",
		Short: "Record a decision for one candidate",
		Long: "Record a decision for one pending candidate: " + resolutionHelp + ".\n\n" +
			"merged folds the other artwork into --target (default: the lower id) using --policy field=choice pairs.",
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			req := api.ResolveRequest{
				Resolution:    strings.TrimSpace(args[1]),
				MergeTargetID: target,
				Reason:        reason,
				Policy:        policy,
			}
			return ctx.withAccess(cmd, func(a access.Access) error {
				resp, err := a.ResolveCandidate(cmd.Context(), id, req)
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, resp)
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Candidate %d is now %s\n", resp.Candidate.ID, resp.Candidate.Status)
				if resp.Merge != nil {
					printMergeSummary(cmd, resp.Merge)
				}
				return nil
			})
		},
	}
	cmd.Flags().Int64Var(&target, "target", 0, "Artwork kept by a merge (must be one of the pair)")
	cmd.Flags().StringVarP(&reason, "reason", "r", "", "Reason recorded with the decision")
	cmd.Flags().StringToStringVarP(&policy, "policy", "p", nil, "Merge field policy as field=use_source|use_target|combine")
	return cmd
}

func newBulkResolveCommand(ctx *commandContext) *cobra.Command {
	var reason string

	cmd := &cobra.Command{
		Use:   "bulk-resolve <resolution> <candidate-id>...",
		Short: "Apply one decision to many candidates",
		Long:  "Apply not_duplicate, ignored or confirmed_duplicate to many candidates. Each id succeeds or fails on its own.",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids := make([]int64, 0, len(args)-1)
			for _, arg := range args[1:] {
				id, err := parseID(arg)
				if err != nil {
					return err
				}
				ids = append(ids, id)
			}
			req := api.BulkResolveRequest{IDs: ids, Resolution: strings.TrimSpace(args[0]), Reason: reason}
			return ctx.withAccess(cmd, func(a access.Access) error {
				resp, err := a.BulkResolve(cmd.Context(), req)
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					if err := writeJSON(cmd, resp); err != nil {
						return err
					}
				} else {
					fmt.Fprint(cmd.OutOrStdout(), renderTable(
						[]string{"ID", "Result", "Detail"},
						buildBulkRows(resp.Outcomes),
						[]columnAlignment{alignRight, alignLeft, alignLeft},
						fmt.Sprintf("%d succeeded, %d failed", resp.Succeeded, resp.Failed),
					))
				}
				if resp.Failed > 0 {
					err := fmt.Errorf("%d of %d candidates could not be resolved", resp.Failed, len(resp.Outcomes))
					if ctx.jsonOutput() {
						return silentError{err}
					}
					return err
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&reason, "reason", "r", "", "Reason recorded with each decision")
	return cmd
}

func buildBulkRows(outcomes []api.BulkOutcome) [][]string {
	rows := make([][]string, 0, len(outcomes))
	for _, o := range outcomes {
		result, detail := "ok", ""
		if o.Candidate != nil {
			detail = o.Candidate.Status
		}
		if !o.OK {
			result, detail = o.Kind, o.Error
		}
		rows = append(rows, []string{strconv.FormatInt(o.ID, 10), result, detail})
	}
	return rows
}

func newResetCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "reset <candidate-id>",
		Short: "Clear a resolved candidate so the pair can be detected again",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return ctx.withAccess(cmd, func(a access.Access) error {
				if err := a.ResetCandidate(cmd.Context(), id); err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, map[string]any{"id": id, "reset": true})
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Candidate %d reset; the pair will be reconsidered by the next scan\n", id)
				return nil
			})
		},
	}
}
