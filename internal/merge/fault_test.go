package merge

import (
	"context"
	"errors"
	"testing"

	"artdedup/internal/logging"
	"artdedup/internal/services"
	"artdedup/internal/store"
	"artdedup/internal/testsupport"
)

func TestMergeFaultMidReassignLeavesRecordsUnchanged(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	target := testsupport.SeedArtwork(t, st, "Harbor")
	source := testsupport.SeedArtwork(t, st, "The Harbor", testsupport.WithMedium("oil"))
	testsupport.SeedImage(t, st, source.ID, "/img/s.jpg")
	if _, err := st.AddNotification(ctx, source.ID, "note", "seen at fair"); err != nil {
		t.Fatalf("AddNotification: %v", err)
	}
	pair := testsupport.SeedCandidate(t, st, source.ID, target.ID, 0.9)

	boom := errors.New("disk unplugged")
	engine := New(st, logging.NewNop())
	var seen []string
	engine.afterReassign = func(table string) error {
		seen = append(seen, table)
		if len(seen) == 1 {
			return boom
		}
		return nil
	}

	_, err := engine.Merge(ctx, Request{SourceID: source.ID, TargetID: target.ID, Policy: Policy{"medium": UseSource}})
	if !errors.Is(err, boom) {
		t.Fatalf("expected injected fault, got %v", err)
	}

	for _, original := range []*store.Artwork{target, source} {
		got, err := st.GetArtwork(ctx, original.ID)
		if err != nil {
			t.Fatalf("GetArtwork(%d): %v", original.ID, err)
		}
		if got.Version != original.Version || got.Medium != original.Medium {
			t.Fatalf("record %d changed: %+v", original.ID, got)
		}
	}
	counts, err := st.CountChildren(ctx, source.ID)
	if err != nil {
		t.Fatalf("CountChildren: %v", err)
	}
	if counts["artwork_images"] != 1 || counts["notifications"] != 1 {
		t.Fatalf("source lost children: %v", counts)
	}
	c, err := st.GetCandidate(ctx, pair.ID)
	if err != nil || c.Status != store.StatusPending {
		t.Fatalf("candidate changed: %+v %v", c, err)
	}
	audits, err := st.ListMergeAudits(ctx, 10)
	if err != nil || len(audits) != 0 {
		t.Fatalf("expected no audit rows, got %d %v", len(audits), err)
	}

	// The same merge succeeds once the fault is gone.
	engine.afterReassign = nil
	summary, err := engine.Merge(ctx, Request{SourceID: source.ID, TargetID: target.ID, Policy: Policy{"medium": UseSource}})
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}
	if summary.ChildrenTotal() != 2 || summary.Target.Medium != "oil" {
		t.Fatalf("unexpected summary %+v", summary)
	}
}

func TestConflictStripsCauseMarker(t *testing.T) {
	err := conflict("update target", services.Wrap(services.ErrRecordNotFound, "store", "update artwork", "artwork 4", nil))
	if !errors.Is(err, services.ErrMergeConflict) || errors.Is(err, services.ErrRecordNotFound) {
		t.Fatalf("unexpected classification for %v", err)
	}
	if services.Kind(conflict("delete source", store.ErrStaleVersion)) != "merge_conflict" {
		t.Fatal("expected stale version to map to merge_conflict")
	}
	other := errors.New("io")
	if conflict("x", other) != other {
		t.Fatal("expected unrelated errors to pass through")
	}
}

func TestCombineText(t *testing.T) {
	tests := []struct {
		target, source, want string
	}{
		{"", "", ""},
		{"a", "", "a"},
		{"", "b", "b"},
		{"a", "a", "a"},
		{"a\n\nb", "b\n\nc", "a\n\nb\n\nc"},
		{"  a  ", "a", "a"},
	}
	for _, tc := range tests {
		if got := combineText(tc.target, tc.source); got != tc.want {
			t.Fatalf("combineText(%q, %q) = %q, want %q", tc.target, tc.source, got, tc.want)
		}
	}
}
