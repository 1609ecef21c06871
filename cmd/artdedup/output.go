package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"artdedup/internal/api"
	"artdedup/internal/services"
)

// writeJSON encodes v as indented JSON to the command's stdout.
func writeJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// silentError fails the command after its output was already written.
type silentError struct{ error }

func (e silentError) Unwrap() error { return e.error }

// reportError prints err as "error: <message>", or as a JSON error body when
// --json is set.
func reportError(cmd *cobra.Command, err error) {
	var silent silentError
	if errors.As(err, &silent) {
		return
	}
	if flag := cmd.PersistentFlags().Lookup("json"); flag != nil && flag.Value.String() == "true" {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		_ = enc.Encode(api.ErrorResponse{Error: err.Error(), Kind: services.Kind(err)})
		return
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "error: %s\n", err)
}

// relativeTime renders an API timestamp as "3 minutes ago".
func relativeTime(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return "-"
	}
	ts, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return value
	}
	return humanize.Time(ts)
}

func count(n int64) string {
	return humanize.Comma(n)
}

func score(value float64) string {
	return fmt.Sprintf("%.3f", value)
}

func optionalScore(value *float64) string {
	if value == nil {
		return "-"
	}
	return score(*value)
}

func orDash(value string) string {
	if strings.TrimSpace(value) == "" {
		return "-"
	}
	return value
}

func yearLabel(year *int, circa bool) string {
	if year == nil {
		return "-"
	}
	if circa {
		return fmt.Sprintf("c. %d", *year)
	}
	return fmt.Sprintf("%d", *year)
}

func printLines(w io.Writer, lines []string) {
	for _, line := range lines {
		fmt.Fprintln(w, line)
	}
}
