package merge_test

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"artdedup/internal/logging"
	"artdedup/internal/merge"
	"artdedup/internal/services"
	"artdedup/internal/store"
	"artdedup/internal/testsupport"
)

func newEngine(t *testing.T) (*merge.Engine, *store.Store) {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	return merge.New(st, logging.NewNop()), st
}

func TestMergeFoldsSourceIntoTarget(t *testing.T) {
	engine, st := newEngine(t)
	ctx := context.Background()

	target := testsupport.SeedArtwork(t, st, "Harbor at Dusk", testsupport.WithYear(1890),
		testsupport.WithFields(func(a *store.Artwork) { a.Provenance = "Private collection" }))
	source := testsupport.SeedArtwork(t, st, "Harbor, Dusk", testsupport.WithYear(1891),
		testsupport.WithMedium("oil on canvas"),
		testsupport.WithFields(func(a *store.Artwork) { a.Provenance = "Sotheby's 1950\n\nPrivate collection" }))
	other := testsupport.SeedArtwork(t, st, "Harbor Study")
	testsupport.SeedImage(t, st, target.ID, "/img/t.jpg")
	testsupport.SeedImage(t, st, source.ID, "/img/s.jpg")
	pair := testsupport.SeedCandidate(t, st, source.ID, target.ID, 0.9)
	third := testsupport.SeedCandidate(t, st, other.ID, source.ID, 0.82)

	summary, err := engine.Merge(ctx, merge.Request{
		SourceID: source.ID,
		TargetID: target.ID,
		Policy:   merge.Policy{"medium": merge.UseSource, "provenance": merge.Combine},
		Reason:   "same painting",
	})
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}
	if summary.CandidateID != pair.ID || summary.AuditID == 0 {
		t.Fatalf("unexpected summary %+v", summary)
	}
	if want := []string{"medium", "provenance"}; !reflect.DeepEqual(summary.FieldsChanged, want) {
		t.Fatalf("fields changed = %v, want %v", summary.FieldsChanged, want)
	}
	if summary.Children["artwork_images"] != 1 || summary.CandidatesRepointed != 1 {
		t.Fatalf("unexpected counts %+v", summary)
	}

	if _, err := st.GetArtwork(ctx, source.ID); !errors.Is(err, services.ErrRecordNotFound) {
		t.Fatalf("expected source deleted, got %v", err)
	}
	got, err := st.GetArtwork(ctx, target.ID)
	if err != nil {
		t.Fatalf("GetArtwork: %v", err)
	}
	if got.Medium != "oil on canvas" || got.Title != "Harbor at Dusk" || *got.Year != 1890 {
		t.Fatalf("unexpected merged record %+v", got)
	}
	if got.Provenance != "Private collection\n\nSotheby's 1950" {
		t.Fatalf("provenance = %q", got.Provenance)
	}
	if got.Version != target.Version+1 {
		t.Fatalf("expected version bump, got %d", got.Version)
	}

	images, err := st.ImagesFor(ctx, target.ID)
	if err != nil || len(images) != 2 {
		t.Fatalf("ImagesFor = %d, %v", len(images), err)
	}

	resolved, err := st.GetCandidate(ctx, pair.ID)
	if err != nil {
		t.Fatalf("GetCandidate: %v", err)
	}
	if resolved.Status != store.StatusMerged || resolved.MergedInto == nil || *resolved.MergedInto != target.ID {
		t.Fatalf("expected candidate merged into target, got %+v", resolved)
	}
	moved, err := st.GetCandidate(ctx, third.ID)
	if err != nil {
		t.Fatalf("GetCandidate: %v", err)
	}
	if moved.Pair() != store.NewPairKey(other.ID, target.ID) || moved.Status != store.StatusPending {
		t.Fatalf("expected candidate re-pointed to target, got %+v", moved)
	}

	audits, err := st.ListMergeAudits(ctx, 10)
	if err != nil || len(audits) != 1 {
		t.Fatalf("ListMergeAudits = %d, %v", len(audits), err)
	}
	if audits[0].SourceID != source.ID || audits[0].Policy["provenance"] != "combine" {
		t.Fatalf("unexpected audit %+v", audits[0])
	}
}

func TestMergeRejectsBeforeWriting(t *testing.T) {
	engine, st := newEngine(t)
	ctx := context.Background()

	target := testsupport.SeedArtwork(t, st, "Harbor")
	source := testsupport.SeedArtwork(t, st, "The Harbor")

	tests := []struct {
		name string
		req  merge.Request
		want error
	}{
		{"combine title", merge.Request{SourceID: source.ID, TargetID: target.ID, Policy: merge.Policy{"title": merge.Combine}}, services.ErrInvalidFieldPolicy},
		{"unknown field", merge.Request{SourceID: source.ID, TargetID: target.ID, Policy: merge.Policy{"colour": merge.UseSource}}, services.ErrInvalidFieldPolicy},
		{"unknown choice", merge.Request{SourceID: source.ID, TargetID: target.ID, Policy: merge.Policy{"notes": "append"}}, services.ErrInvalidFieldPolicy},
		{"self", merge.Request{SourceID: source.ID, TargetID: source.ID}, services.ErrValidation},
		{"missing source", merge.Request{SourceID: 9999, TargetID: target.ID}, services.ErrRecordNotFound},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := engine.Merge(ctx, tc.req); !errors.Is(err, tc.want) {
				t.Fatalf("Merge err = %v, want %v", err, tc.want)
			}
		})
	}

	for _, original := range []*store.Artwork{target, source} {
		got, err := st.GetArtwork(ctx, original.ID)
		if err != nil {
			t.Fatalf("GetArtwork: %v", err)
		}
		if got.Version != original.Version || got.Title != original.Title {
			t.Fatalf("record %d changed: %+v", original.ID, got)
		}
	}
}

func TestMergeIntoMergedAwayTarget(t *testing.T) {
	engine, st := newEngine(t)
	ctx := context.Background()

	a := testsupport.SeedArtwork(t, st, "Harbor")
	b := testsupport.SeedArtwork(t, st, "Harbor I")
	c := testsupport.SeedArtwork(t, st, "Harbor II")

	if _, err := engine.Merge(ctx, merge.Request{SourceID: b.ID, TargetID: a.ID}); err != nil {
		t.Fatalf("Merge: %v", err)
	}
	_, err := engine.Merge(ctx, merge.Request{SourceID: c.ID, TargetID: b.ID})
	if !errors.Is(err, services.ErrTargetNoLongerExists) {
		t.Fatalf("expected target no longer exists, got %v", err)
	}
	if services.Kind(err) != "target_no_longer_exists" {
		t.Fatalf("Kind = %q", services.Kind(err))
	}
	if _, err := st.GetArtwork(ctx, c.ID); err != nil {
		t.Fatalf("expected source untouched: %v", err)
	}
}

func TestMergeChecksCandidate(t *testing.T) {
	engine, st := newEngine(t)
	ctx := context.Background()

	a := testsupport.SeedArtwork(t, st, "Harbor")
	b := testsupport.SeedArtwork(t, st, "The Harbor")
	c := testsupport.SeedArtwork(t, st, "Harbor Study")
	unrelated := testsupport.SeedCandidate(t, st, a.ID, c.ID, 0.8)
	rejected := testsupport.SeedCandidate(t, st, a.ID, b.ID, 0.9)
	if _, err := st.TransitionCandidate(ctx, rejected.ID, []store.CandidateStatus{store.StatusPending}, store.StatusNotDuplicate, "different"); err != nil {
		t.Fatalf("TransitionCandidate: %v", err)
	}

	if _, err := engine.Merge(ctx, merge.Request{SourceID: b.ID, TargetID: a.ID, CandidateID: unrelated.ID}); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if _, err := engine.Merge(ctx, merge.Request{SourceID: b.ID, TargetID: a.ID, CandidateID: rejected.ID}); !errors.Is(err, services.ErrInvalidTransition) {
		t.Fatalf("expected invalid transition, got %v", err)
	}

	// Without an explicit candidate the resolved pair stays as history.
	summary, err := engine.Merge(ctx, merge.Request{SourceID: b.ID, TargetID: a.ID})
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}
	if summary.CandidateID != 0 {
		t.Fatalf("expected no candidate resolved, got %d", summary.CandidateID)
	}
	kept, err := st.GetCandidate(ctx, rejected.ID)
	if err != nil || kept.Status != store.StatusNotDuplicate {
		t.Fatalf("expected rejected candidate kept, got %+v %v", kept, err)
	}
}

func TestPreviewDoesNotWrite(t *testing.T) {
	engine, st := newEngine(t)
	ctx := context.Background()

	target := testsupport.SeedArtwork(t, st, "Harbor", testsupport.WithFields(func(a *store.Artwork) { a.Notes = "cleaned 1990" }))
	source := testsupport.SeedArtwork(t, st, "Harbor", testsupport.WithYear(1890),
		testsupport.WithFields(func(a *store.Artwork) { a.Notes = "relined" }))
	testsupport.SeedImage(t, st, source.ID, "/img/s.jpg")

	preview, err := engine.Preview(ctx, merge.Request{
		SourceID: source.ID,
		TargetID: target.ID,
		Policy:   merge.Policy{"year": merge.UseSource, "notes": merge.Combine},
	})
	if err != nil {
		t.Fatalf("Preview: %v", err)
	}
	if preview.Merged.Year == nil || *preview.Merged.Year != 1890 || preview.Merged.Notes != "cleaned 1990\n\nrelined" {
		t.Fatalf("unexpected merged preview %+v", preview.Merged)
	}
	if want := []string{"year", "notes"}; !reflect.DeepEqual(preview.FieldsChanged, want) {
		t.Fatalf("fields changed = %v, want %v", preview.FieldsChanged, want)
	}
	if preview.Children["artwork_images"] != 1 {
		t.Fatalf("unexpected children %v", preview.Children)
	}
	got, err := st.GetArtwork(ctx, target.ID)
	if err != nil || got.Year != nil || got.Version != target.Version {
		t.Fatalf("preview wrote target: %+v %v", got, err)
	}
}

func TestParsePolicy(t *testing.T) {
	p, err := merge.ParsePolicy(map[string]string{"Medium": "USE_SOURCE", "notes": "combine"})
	if err != nil {
		t.Fatalf("ParsePolicy: %v", err)
	}
	if p["medium"] != merge.UseSource || p["notes"] != merge.Combine {
		t.Fatalf("unexpected policy %v", p)
	}
	if _, err := merge.ParsePolicy(map[string]string{"year": "combine"}); !errors.Is(err, services.ErrInvalidFieldPolicy) {
		t.Fatalf("expected invalid field policy, got %v", err)
	}
	if _, err := merge.ParsePolicy(map[string]string{"notes": "both"}); !errors.Is(err, services.ErrInvalidFieldPolicy) {
		t.Fatalf("expected invalid choice, got %v", err)
	}

	free := 0
	for _, f := range merge.Fields() {
		if f.FreeText {
			free++
		}
	}
	if free != 7 {
		t.Fatalf("expected 7 free-text fields, got %d", free)
	}
}
