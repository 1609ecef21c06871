package store_test

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"testing"

	_ "modernc.org/sqlite"

	"artdedup/internal/services"
	"artdedup/internal/similarity"
	"artdedup/internal/store"
	"artdedup/internal/testsupport"
)

func TestOpenCreatesAndReopensSchema(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	a := testsupport.SeedArtwork(t, st, "Harbor")
	if err := st.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	reopened, err := store.Open(cfg)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()
	got, err := reopened.GetArtwork(context.Background(), a.ID)
	if err != nil {
		t.Fatalf("GetArtwork after reopen: %v", err)
	}
	if got.Title != "Harbor" || got.Version != 1 {
		t.Fatalf("unexpected artwork after reopen: %+v", got)
	}
}

func TestOpenRejectsSchemaMismatch(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	path := st.Path()
	_ = st.Close()

	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("sql.Open: %v", err)
	}
	if _, err := db.Exec("UPDATE schema_version SET version = 999"); err != nil {
		t.Fatalf("bump version: %v", err)
	}
	_ = db.Close()

	if _, err := store.OpenPath(path); !errors.Is(err, store.ErrSchemaMismatch) {
		t.Fatalf("expected ErrSchemaMismatch, got %v", err)
	}
}

func TestArtworkVersionedUpdate(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	a := testsupport.SeedArtwork(t, st, "Dune", testsupport.WithYear(1970), testsupport.WithMedium("Gouache"))
	stale := *a

	a.Notes = "cleaned 2001"
	if err := st.UpdateArtwork(ctx, a); err != nil {
		t.Fatalf("UpdateArtwork: %v", err)
	}
	if a.Version != 2 {
		t.Fatalf("expected version 2, got %d", a.Version)
	}

	stale.Notes = "lost update"
	if err := st.UpdateArtwork(ctx, &stale); !errors.Is(err, store.ErrStaleVersion) {
		t.Fatalf("expected ErrStaleVersion, got %v", err)
	}

	missing := store.Artwork{ID: 9999, Version: 1}
	if err := st.UpdateArtwork(ctx, &missing); !errors.Is(err, services.ErrRecordNotFound) {
		t.Fatalf("expected ErrRecordNotFound, got %v", err)
	}

	got, err := st.GetArtwork(ctx, a.ID)
	if err != nil {
		t.Fatalf("GetArtwork: %v", err)
	}
	if got.Notes != "cleaned 2001" || got.Year == nil || *got.Year != 1970 {
		t.Fatalf("unexpected stored artwork: %+v", got)
	}
	if _, err := st.GetArtwork(ctx, 9999); !errors.Is(err, services.ErrRecordNotFound) {
		t.Fatalf("expected ErrRecordNotFound, got %v", err)
	}
}

func TestIterateArtworksBatches(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	for i := 0; i < 7; i++ {
		testsupport.SeedArtwork(t, st, "Work", testsupport.WithYear(1900+i))
	}
	testsupport.SeedArtwork(t, st, "Undated")

	var batches []int
	var seen []int64
	err := st.IterateArtworks(ctx, store.ArtworkFilter{}, 3, func(batch []*store.Artwork) error {
		batches = append(batches, len(batch))
		for _, a := range batch {
			seen = append(seen, a.ID)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("IterateArtworks: %v", err)
	}
	if len(batches) != 3 || batches[0] != 3 || batches[2] != 2 {
		t.Fatalf("unexpected batches %v", batches)
	}
	for i := 1; i < len(seen); i++ {
		if seen[i] <= seen[i-1] {
			t.Fatalf("ids not ascending: %v", seen)
		}
	}

	from, to := 1902, 1904
	count, err := st.CountArtworks(ctx, store.ArtworkFilter{YearFrom: &from, YearTo: &to})
	if err != nil {
		t.Fatalf("CountArtworks: %v", err)
	}
	if count != 3 {
		t.Fatalf("expected 3 artworks in range, got %d", count)
	}
}

func TestImagesPrimaryAndFingerprints(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	a := testsupport.SeedArtwork(t, st, "Harbor")
	first := testsupport.SeedImage(t, st, a.ID, "/tmp/one.jpg")
	second := testsupport.SeedImage(t, st, a.ID, "/tmp/two.jpg")
	if !first.IsPrimary || second.IsPrimary {
		t.Fatalf("expected first image primary: %+v %+v", first, second)
	}
	if second.Position != first.Position+1 {
		t.Fatalf("expected appended position, got %d after %d", second.Position, first.Position)
	}

	pending, err := st.UnfingerprintedImages(ctx, store.ArtworkFilter{})
	if err != nil {
		t.Fatalf("UnfingerprintedImages: %v", err)
	}
	if len(pending) != 2 {
		t.Fatalf("expected 2 unfingerprinted images, got %d", len(pending))
	}

	if err := st.SetImageFingerprint(ctx, first.ID, "00ff00ff00ff00ff"); err != nil {
		t.Fatalf("SetImageFingerprint: %v", err)
	}
	if err := st.SetImageFingerprintError(ctx, second.ID, "truncated"); err != nil {
		t.Fatalf("SetImageFingerprintError: %v", err)
	}
	pending, err = st.UnfingerprintedImages(ctx, store.ArtworkFilter{})
	if err != nil {
		t.Fatalf("UnfingerprintedImages: %v", err)
	}
	if len(pending) != 0 {
		t.Fatalf("expected no pending images, got %d", len(pending))
	}
	if failed, err := st.FailedImageCount(ctx, store.ArtworkFilter{}); err != nil || failed != 1 {
		t.Fatalf("FailedImageCount = %d, %v", failed, err)
	}

	fps, err := st.FingerprintsFor(ctx, []int64{a.ID})
	if err != nil {
		t.Fatalf("FingerprintsFor: %v", err)
	}
	if got := fps[a.ID]; len(got) != 1 || got[0] != "00ff00ff00ff00ff" {
		t.Fatalf("unexpected fingerprints %v", got)
	}

	primary, err := st.PrimaryImage(ctx, a.ID)
	if err != nil || primary == nil || primary.ID != first.ID {
		t.Fatalf("PrimaryImage = %+v, %v", primary, err)
	}

	cleared, err := st.ClearFingerprintErrors(ctx)
	if err != nil || cleared != 1 {
		t.Fatalf("ClearFingerprintErrors = %d, %v", cleared, err)
	}
}

func newCandidate(a, b int64, score float64) store.NewCandidate {
	title := score
	return store.NewCandidate{ArtworkA: a, ArtworkB: b, Method: similarity.MethodTitle, Score: score, TitleScore: &title}
}

func TestInsertCandidateNormalizesAndDeduplicates(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	a := testsupport.SeedArtwork(t, st, "Harbor")
	b := testsupport.SeedArtwork(t, st, "The Harbor")

	c, inserted, err := st.InsertCandidate(ctx, newCandidate(b.ID, a.ID, 0.9))
	if err != nil || !inserted {
		t.Fatalf("InsertCandidate = %v, %v", inserted, err)
	}
	if c.ArtworkID1 != a.ID || c.ArtworkID2 != b.ID || c.Status != store.StatusPending {
		t.Fatalf("unexpected candidate %+v", c)
	}
	if c.ImageScore != nil || c.TitleScore == nil || *c.TitleScore != 0.9 {
		t.Fatalf("unexpected per-signal scores %+v", c)
	}

	again, inserted, err := st.InsertCandidate(ctx, newCandidate(a.ID, b.ID, 0.95))
	if err != nil {
		t.Fatalf("InsertCandidate again: %v", err)
	}
	if inserted || again.ID != c.ID || again.Score != 0.9 {
		t.Fatalf("expected existing candidate untouched, got inserted=%v %+v", inserted, again)
	}

	if _, _, err := st.InsertCandidate(ctx, newCandidate(a.ID, a.ID, 1)); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected self pair validation error, got %v", err)
	}
	bad := newCandidate(a.ID, b.ID, 0.9)
	bad.Method = "phash"
	if _, _, err := st.InsertCandidate(ctx, bad); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected method validation error, got %v", err)
	}
}

func TestConcurrentCandidateInsertsYieldOneRow(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	a := testsupport.SeedArtwork(t, st, "Harbor")
	b := testsupport.SeedArtwork(t, st, "Harbor")

	const writers = 8
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		inserted int
		errs     []error
	)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			x, y := a.ID, b.ID
			if i%2 == 1 {
				x, y = y, x
			}
			_, ok, err := st.InsertCandidate(ctx, newCandidate(x, y, 1))
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs = append(errs, err)
			}
			if ok {
				inserted++
			}
		}(i)
	}
	wg.Wait()

	if len(errs) > 0 {
		t.Fatalf("unexpected insert errors: %v", errs)
	}
	if inserted != 1 {
		t.Fatalf("expected exactly one winning insert, got %d", inserted)
	}
	_, total, err := st.ListCandidates(ctx, store.CandidateFilter{}, store.Page{})
	if err != nil || total != 1 {
		t.Fatalf("ListCandidates total = %d, %v", total, err)
	}
}

func TestTransitionAndDeleteCandidate(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	a := testsupport.SeedArtwork(t, st, "A")
	b := testsupport.SeedArtwork(t, st, "B")
	c, _, err := st.InsertCandidate(ctx, newCandidate(a.ID, b.ID, 0.9))
	if err != nil {
		t.Fatalf("InsertCandidate: %v", err)
	}

	pending := []store.CandidateStatus{store.StatusPending}
	if err := st.DeleteCandidate(ctx, c.ID, []store.CandidateStatus{store.StatusNotDuplicate}); !errors.Is(err, services.ErrInvalidTransition) {
		t.Fatalf("expected invalid transition deleting pending candidate, got %v", err)
	}

	resolved, err := st.TransitionCandidate(ctx, c.ID, pending, store.StatusNotDuplicate, "different sizes")
	if err != nil {
		t.Fatalf("TransitionCandidate: %v", err)
	}
	if resolved.Status != store.StatusNotDuplicate || resolved.Reason != "different sizes" || resolved.ResolvedAt == nil {
		t.Fatalf("unexpected resolved candidate %+v", resolved)
	}

	if _, err := st.TransitionCandidate(ctx, c.ID, pending, store.StatusIgnored, ""); !errors.Is(err, services.ErrInvalidTransition) {
		t.Fatalf("expected invalid transition, got %v", err)
	}
	if _, err := st.TransitionCandidate(ctx, 424242, pending, store.StatusIgnored, ""); !errors.Is(err, services.ErrRecordNotFound) {
		t.Fatalf("expected record not found, got %v", err)
	}

	if err := st.DeleteCandidate(ctx, c.ID, []store.CandidateStatus{store.StatusNotDuplicate}); err != nil {
		t.Fatalf("DeleteCandidate: %v", err)
	}
	if _, err := st.GetCandidate(ctx, c.ID); !errors.Is(err, services.ErrRecordNotFound) {
		t.Fatalf("expected deleted candidate to be gone, got %v", err)
	}
}

func TestListCandidatesFiltersAndPages(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	var ids []int64
	for i := 0; i < 5; i++ {
		ids = append(ids, testsupport.SeedArtwork(t, st, "Work").ID)
	}
	scores := []float64{0.81, 0.95, 0.88, 0.9}
	for i, score := range scores {
		if _, _, err := st.InsertCandidate(ctx, newCandidate(ids[0], ids[i+1], score)); err != nil {
			t.Fatalf("InsertCandidate: %v", err)
		}
	}
	img := 0.99
	if _, _, err := st.InsertCandidate(ctx, store.NewCandidate{ArtworkA: ids[1], ArtworkB: ids[2], Method: similarity.MethodImageHash, Score: img, ImageScore: &img}); err != nil {
		t.Fatalf("InsertCandidate: %v", err)
	}

	page, total, err := st.ListCandidates(ctx, store.CandidateFilter{Method: similarity.MethodTitle, MinScore: 0.85}, store.Page{Number: 1, Size: 2})
	if err != nil {
		t.Fatalf("ListCandidates: %v", err)
	}
	if total != 3 || len(page) != 2 {
		t.Fatalf("expected 2 of 3 candidates, got %d of %d", len(page), total)
	}
	if page[0].Score != 0.95 || page[1].Score != 0.9 {
		t.Fatalf("expected descending scores, got %v %v", page[0].Score, page[1].Score)
	}

	second, _, err := st.ListCandidates(ctx, store.CandidateFilter{Method: similarity.MethodTitle, MinScore: 0.85}, store.Page{Number: 2, Size: 2})
	if err != nil || len(second) != 1 || second[0].Score != 0.88 {
		t.Fatalf("unexpected second page %+v, %v", second, err)
	}

	byArtwork, total, err := st.ListCandidates(ctx, store.CandidateFilter{ArtworkID: ids[2]}, store.Page{})
	if err != nil || total != 2 || len(byArtwork) != 2 {
		t.Fatalf("expected 2 candidates touching artwork, got %d, %v", total, err)
	}

	keys, err := st.PairKeys(ctx)
	if err != nil {
		t.Fatalf("PairKeys: %v", err)
	}
	if _, ok := keys[store.NewPairKey(ids[2], ids[1])]; !ok || len(keys) != 5 {
		t.Fatalf("unexpected pair keys %v", keys)
	}

	stats, err := st.CandidateStats(ctx)
	if err != nil || stats[store.StatusPending] != 5 {
		t.Fatalf("CandidateStats = %v, %v", stats, err)
	}
}

func TestPageNormalize(t *testing.T) {
	cases := []struct {
		in   store.Page
		want store.Page
	}{
		{store.Page{}, store.Page{Number: 1, Size: store.DefaultPageSize}},
		{store.Page{Number: 3, Size: 10}, store.Page{Number: 3, Size: 10}},
		{store.Page{Number: -1, Size: 10000}, store.Page{Number: 1, Size: store.MaxPageSize}},
	}
	for _, tc := range cases {
		if got := tc.in.Normalize(); got != tc.want {
			t.Fatalf("Normalize(%+v) = %+v, want %+v", tc.in, got, tc.want)
		}
	}
}
