package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"artdedup/internal/access"
	"artdedup/internal/api"
	"artdedup/internal/services"
)

func newCheckCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "check <artwork-id>",
		Short: "Compare one artwork against the catalog",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return ctx.withAccess(cmd, func(a access.Access) error {
				resp, err := a.CheckRecord(cmd.Context(), id)
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, resp)
				}
				printMatches(cmd, resp)
				return nil
			})
		},
	}
}

func printMatches(cmd *cobra.Command, resp *api.CheckResponse) {
	out := cmd.OutOrStdout()
	if len(resp.Matches) == 0 {
		fmt.Fprintf(out, "No likely duplicates of artwork %d\n", resp.ArtworkID)
		return
	}
	rows := make([][]string, 0, len(resp.Matches))
	for _, m := range resp.Matches {
		state := "new"
		if m.Existing {
			state = "existing"
		}
		rows = append(rows, []string{
			strconv.FormatInt(m.ArtworkID, 10),
			m.Method,
			score(m.Score),
			strconv.FormatInt(m.CandidateID, 10),
			m.Status,
			state,
		})
	}
	fmt.Fprint(out, renderTable(
		[]string{"Artwork", "Method", "Score", "Candidate", "Status", "Record"},
		rows,
		[]columnAlignment{alignRight, alignLeft, alignRight, alignRight, alignLeft, alignLeft},
		fmt.Sprintf("%d possible duplicates of artwork %d", len(resp.Matches), resp.ArtworkID),
	))
}

func newCandidatesCommand(ctx *commandContext) *cobra.Command {
	candidatesCmd := &cobra.Command{
		Use:     "candidates",
		Aliases: []string{"candidate"},
		Short:   "Review duplicate candidates",
	}
	candidatesCmd.AddCommand(newCandidatesListCommand(ctx))
	candidatesCmd.AddCommand(newCandidatesShowCommand(ctx))
	candidatesCmd.AddCommand(newCandidatesStatsCommand(ctx))
	return candidatesCmd
}

func newCandidatesListCommand(ctx *commandContext) *cobra.Command {
	var q api.CandidateQuery

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List candidates, highest score first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withAccess(cmd, func(a access.Access) error {
				resp, err := a.ListCandidates(cmd.Context(), q)
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, resp)
				}
				out := cmd.OutOrStdout()
				if len(resp.Items) == 0 {
					fmt.Fprintln(out, "No candidates")
					return nil
				}
				fmt.Fprint(out, renderTable(
					[]string{"ID", "Artwork A", "Artwork B", "Method", "Score", "Status", "Detected"},
					buildCandidateRows(resp.Items),
					[]columnAlignment{alignRight, alignRight, alignRight, alignLeft, alignRight, alignLeft, alignLeft},
					pageFooter(resp),
				))
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&q.Status, "status", "pending", "Filter by status (empty for all)")
	cmd.Flags().Float64Var(&q.MinScore, "min-score", 0, "Only show candidates at or above this score")
	cmd.Flags().StringVar(&q.Method, "method", "", "Filter by detection method")
	cmd.Flags().Int64Var(&q.ArtworkID, "artwork", 0, "Only show candidates involving this artwork")
	cmd.Flags().IntVar(&q.Page, "page", 1, "Page number")
	cmd.Flags().IntVar(&q.PageSize, "page-size", 0, "Page size (default 50, max 500)")
	return cmd
}

func pageFooter(resp *api.CandidateListResponse) string {
	pages := 1
	if resp.PageSize > 0 {
		pages = max((resp.Total+resp.PageSize-1)/resp.PageSize, 1)
	}
	return fmt.Sprintf("page %d of %d, %s candidates", resp.Page, pages, count(int64(resp.Total)))
}

func buildCandidateRows(items []api.Candidate) [][]string {
	rows := make([][]string, 0, len(items))
	for _, c := range items {
		rows = append(rows, []string{
			strconv.FormatInt(c.ID, 10),
			strconv.FormatInt(c.ArtworkID1, 10),
			strconv.FormatInt(c.ArtworkID2, 10),
			c.Method,
			score(c.Score),
			c.Status,
			relativeTime(c.DetectedAt),
		})
	}
	return rows
}

func newCandidatesShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <candidate-id>",
		Short: "Show a candidate next to both artworks",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return ctx.withAccess(cmd, func(a access.Access) error {
				detail, err := a.GetCandidate(cmd.Context(), id)
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, detail)
				}
				printCandidateDetail(cmd, detail)
				return nil
			})
		},
	}
}

func printCandidateDetail(cmd *cobra.Command, detail *api.CandidateDetail) {
	out := cmd.OutOrStdout()
	colorize := shouldColorize(out)
	c := detail.Candidate
	lines := renderSectionHeader(fmt.Sprintf("Candidate %d", c.ID), colorize)
	lines = append(lines,
		renderStatusLine("Status", candidateStatusKind(c.Status), c.Status, colorize),
		renderStatusLine("Method", statusInfo, c.Method, colorize),
		renderStatusLine("Score", statusInfo, score(c.Score), colorize),
		renderStatusLine("Image score", statusInfo, optionalScore(c.ImageScore), colorize),
		renderStatusLine("Title score", statusInfo, optionalScore(c.TitleScore), colorize),
		renderStatusLine("Metadata score", statusInfo, optionalScore(c.MetadataScore), colorize),
		renderStatusLine("Detected", statusInfo, relativeTime(c.DetectedAt), colorize),
	)
	if c.ResolvedAt != "" {
		lines = append(lines, renderStatusLine("Resolved", statusInfo, relativeTime(c.ResolvedAt), colorize))
	}
	if c.Reason != "" {
		lines = append(lines, renderStatusLine("Reason", statusInfo, c.Reason, colorize))
	}
	if c.MergedInto != nil {
		lines = append(lines, renderStatusLine("Merged into", statusOK, strconv.FormatInt(*c.MergedInto, 10), colorize))
	}
	printLines(out, lines)
	fmt.Fprintln(out)

	headers := []string{"Field", fmt.Sprintf("A (%d)", c.ArtworkID1), fmt.Sprintf("B (%d)", c.ArtworkID2)}
	fmt.Fprint(out, renderTable(headers, comparisonRows(detail.ArtworkA, detail.ArtworkB), nil, ""))
}

func comparisonRows(a, b *api.Artwork) [][]string {
	field := func(art *api.Artwork, fn func(*api.Artwork) string) string {
		if art == nil {
			return "(merged away)"
		}
		return orDash(fn(art))
	}
	specs := []struct {
		label string
		fn    func(*api.Artwork) string
	}{
		{"Title", func(x *api.Artwork) string { return x.Title }},
		{"Year", func(x *api.Artwork) string { return yearLabel(x.Year, x.YearCirca) }},
		{"Medium", func(x *api.Artwork) string { return x.Medium }},
		{"Dimensions", func(x *api.Artwork) string { return x.Dimensions }},
		{"Type", func(x *api.Artwork) string { return x.ArtType }},
		{"Catalog no.", func(x *api.Artwork) string { return x.CatalogNumber }},
		{"Source", func(x *api.Artwork) string { return x.SourceURL }},
		{"Updated", func(x *api.Artwork) string { return relativeTime(x.UpdatedAt) }},
	}
	rows := make([][]string, 0, len(specs))
	for _, s := range specs {
		rows = append(rows, []string{s.label, field(a, s.fn), field(b, s.fn)})
	}
	return rows
}

func newCandidatesStatsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Count candidates by status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withAccess(cmd, func(a access.Access) error {
				status, err := a.Status(cmd.Context())
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, api.CandidateStatsResponse{Counts: status.Candidates})
				}
				fmt.Fprint(cmd.OutOrStdout(), renderTable(
					[]string{"Status", "Count"},
					buildCountRows(status.Candidates),
					[]columnAlignment{alignLeft, alignRight},
					"",
				))
				return nil
			})
		},
	}
}

var statusOrder = []string{"pending", "confirmed_duplicate", "not_duplicate", "ignored", "merged"}

func buildCountRows(counts map[string]int) [][]string {
	rows := make([][]string, 0, len(statusOrder))
	for _, status := range statusOrder {
		rows = append(rows, []string{status, count(int64(counts[status]))})
	}
	return rows
}

func parseID(value string) (int64, error) {
	id, err := strconv.ParseInt(value, 10, 64)
	if err != nil || id <= 0 {
		return 0, services.Wrap(services.ErrValidation, "cli", "parse id", fmt.Sprintf("invalid id %q", value), nil)
	}
	return id, nil
}
