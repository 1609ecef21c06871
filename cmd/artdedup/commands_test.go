package main

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"artdedup/internal/api"
)

func catalogAdd(t *testing.T, env *cliTestEnv, args ...string) api.CatalogEntry {
	t.Helper()
	var entry api.CatalogEntry
	decodeJSON(t, mustRunCLI(t, env, append([]string{"--json", "catalog", "add"}, args...)...), &entry)
	if entry.Artwork == nil || entry.Artwork.ID == 0 {
		t.Fatalf("expected created artwork, got %+v", entry)
	}
	return entry
}

func TestCatalogCheckResolveAndHistory(t *testing.T) {
	env := setupCLITestEnv(t)

	first := catalogAdd(t, env, "--title", "The Harbor", "--year", "1985", "--medium", "Oil on canvas", "--number")
	if first.Artwork.CatalogNumber == "" {
		t.Fatalf("expected catalog number, got %+v", first.Artwork)
	}
	if len(first.Matches) != 0 {
		t.Fatalf("first record should have no matches, got %+v", first.Matches)
	}
	second := catalogAdd(t, env, "--title", "The Harbor", "--year", "1985", "--medium", "Oil on canvas")
	if len(second.Matches) == 0 || second.Matches[0].ArtworkID != first.Artwork.ID {
		t.Fatalf("expected match against artwork %d, got %+v", first.Artwork.ID, second.Matches)
	}

	var list api.CandidateListResponse
	decodeJSON(t, mustRunCLI(t, env, "--json", "candidates", "list"), &list)
	if list.Total == 0 || len(list.Items) == 0 {
		t.Fatalf("expected pending candidates, got %+v", list)
	}
	candidateID := strconv.FormatInt(list.Items[0].ID, 10)

	out := mustRunCLI(t, env, "candidates", "show", candidateID)
	requireContains(t, out, "The Harbor")

	targetID := strconv.FormatInt(first.Artwork.ID, 10)
	out = mustRunCLI(t, env, "resolve", candidateID, "merged", "--target", targetID, "--reason", "same canvas")
	requireContains(t, out, "is now merged")

	var history api.MergeHistoryResponse
	decodeJSON(t, mustRunCLI(t, env, "--json", "history"), &history)
	if len(history.Merges) != 1 || history.Merges[0].TargetID != first.Artwork.ID || history.Merges[0].SourceID != second.Artwork.ID {
		t.Fatalf("unexpected merge history %+v", history.Merges)
	}

	_, _, err := runCLI(t, env, "catalog", "show", strconv.FormatInt(second.Artwork.ID, 10))
	if err == nil || !strings.Contains(err.Error(), "merged into artwork "+targetID) {
		t.Fatalf("expected merged-away error, got %v", err)
	}

	out = mustRunCLI(t, env, "status")
	requireContains(t, out, "using the database directly")
	requireContains(t, out, "merged")
}

func TestRelateAndShow(t *testing.T) {
	env := setupCLITestEnv(t)

	study := catalogAdd(t, env, "--title", "Study of Hands", "--no-check")
	final := catalogAdd(t, env, "--title", "The Apostles", "--no-check")
	from := strconv.FormatInt(study.Artwork.ID, 10)
	to := strconv.FormatInt(final.Artwork.ID, 10)

	out := mustRunCLI(t, env, "relate", from, "study_for", to, "--note", "sketchbook page 4")
	requireContains(t, out, "study_for")

	out = mustRunCLI(t, env, "catalog", "show", from)
	requireContains(t, out, "sketchbook page 4")

	if _, _, err := runCLI(t, env, "relate", from, "cousin_of", to); err == nil {
		t.Fatal("expected unknown relationship kind to fail")
	}
}

func TestJSONErrorCarriesKind(t *testing.T) {
	env := setupCLITestEnv(t)

	tests := []struct {
		name string
		args []string
		kind string
	}{
		{name: "missing candidate", args: []string{"candidates", "show", "999"}, kind: "record_not_found"},
		{name: "bad id", args: []string{"check", "abc"}, kind: "validation"},
		{name: "unknown scan", args: []string{"scans", "nope"}, kind: "scan_not_found"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, _, err := runCLI(t, env, append([]string{"--json"}, tt.args...)...)
			if err == nil {
				t.Fatal("expected error")
			}
			var resp api.ErrorResponse
			decodeJSON(t, out, &resp)
			if resp.Kind != tt.kind {
				t.Fatalf("kind = %q, want %q (%s)", resp.Kind, tt.kind, resp.Error)
			}
		})
	}
}

func TestBulkResolveReportsFailures(t *testing.T) {
	env := setupCLITestEnv(t)

	catalogAdd(t, env, "--title", "Harbor at Dusk", "--year", "1901")
	catalogAdd(t, env, "--title", "Harbor at Dusk", "--year", "1901")

	var list api.CandidateListResponse
	decodeJSON(t, mustRunCLI(t, env, "--json", "candidates", "list"), &list)
	if len(list.Items) == 0 {
		t.Fatal("expected a candidate")
	}
	id := strconv.FormatInt(list.Items[0].ID, 10)

	out, stderr, err := runCLI(t, env, "--json", "bulk-resolve", "not_duplicate", id, "4242")
	if err == nil {
		t.Fatal("expected failure exit for partial bulk resolve")
	}
	if stderr != "" {
		t.Fatalf("expected no stderr in JSON mode, got %q", stderr)
	}
	var resp api.BulkResolveResponse
	decodeJSON(t, out, &resp)
	if resp.Succeeded != 1 || resp.Failed != 1 {
		t.Fatalf("unexpected bulk response %+v", resp)
	}
}

func TestScanRunsLocally(t *testing.T) {
	env := setupCLITestEnv(t)

	catalogAdd(t, env, "--title", "Still Life with Lemons", "--year", "1650", "--no-check")
	catalogAdd(t, env, "--title", "Still Life with Lemons", "--year", "1651", "--no-check")

	var status api.ScanStatus
	decodeJSON(t, mustRunCLI(t, env, "--json", "scan", "--method", "title"), &status)
	if status.State != "completed" || status.CandidatesFound != 1 {
		t.Fatalf("unexpected scan status %+v", status)
	}
}

func TestLogsPrintsTail(t *testing.T) {
	env := setupCLITestEnv(t)
	logDir := filepath.Join(env.baseDir, "logs")
	if err := os.MkdirAll(logDir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	content := "first\nsecond\nthird\n"
	if err := os.WriteFile(filepath.Join(logDir, "artdedup.log"), []byte(content), 0o644); err != nil {
		t.Fatalf("write log: %v", err)
	}

	out := mustRunCLI(t, env, "logs", "-n", "2")
	if out != "second\nthird\n" {
		t.Fatalf("unexpected logs output %q", out)
	}
}
