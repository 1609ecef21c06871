package scanner

import (
	"testing"
	"time"

	"artdedup/internal/fingerprint"
	"artdedup/internal/similarity"
	"artdedup/internal/store"
)

func profile(id int64, year int, fingerprinted bool) *similarity.Profile {
	var y *int
	if year != 0 {
		y = &year
	}
	var fps []fingerprint.Fingerprint
	if fingerprinted {
		fps = []fingerprint.Fingerprint{fingerprint.Fingerprint(id)}
	}
	p := similarity.NewProfile(id, "Untitled", y, "", "", fps)
	return &p
}

func TestForEachPairMatchesBlockingRule(t *testing.T) {
	profiles := []*similarity.Profile{
		profile(1, 1900, false),
		profile(2, 1903, true),
		profile(3, 1904, false),
		profile(4, 1950, true),
		profile(5, 1951, false),
		profile(6, 0, false),
		profile(7, 0, true),
		profile(8, 1990, true),
		profile(9, 1905, false),
	}
	const window = 5

	visited := make(map[store.PairKey]int)
	doneCalls := 0
	ok := forEachPair(profiles, window, func(a, b *similarity.Profile) bool {
		if a.ID == b.ID {
			t.Fatalf("self pair %d", a.ID)
		}
		visited[store.NewPairKey(a.ID, b.ID)]++
		return true
	}, func() { doneCalls++ })
	if !ok {
		t.Fatal("walk stopped unexpectedly")
	}
	if doneCalls != len(profiles) {
		t.Fatalf("expected done per record, got %d", doneCalls)
	}

	for i, a := range profiles {
		for _, b := range profiles[i+1:] {
			key := store.NewPairKey(a.ID, b.ID)
			want := shouldCompare(a, b, window)
			switch n := visited[key]; {
			case want && n != 1:
				t.Fatalf("pair %s visited %d times, want once", key, n)
			case !want && n != 0:
				t.Fatalf("pair %s visited but blocked", key)
			}
		}
	}
	// 1900 and 1950 records meet only through fingerprints
	if visited[store.NewPairKey(1, 4)] != 0 || visited[store.NewPairKey(2, 4)] != 1 || visited[store.NewPairKey(2, 8)] != 1 {
		t.Fatalf("unexpected cross-window pairs: %v", visited)
	}
}

func TestForEachPairStops(t *testing.T) {
	profiles := []*similarity.Profile{profile(1, 1900, false), profile(2, 1900, false), profile(3, 1900, false)}
	calls := 0
	ok := forEachPair(profiles, 5, func(a, b *similarity.Profile) bool {
		calls++
		return false
	}, func() {})
	if ok || calls != 1 {
		t.Fatalf("expected stop after first pair, got ok=%v calls=%d", ok, calls)
	}
}

func TestRegistryPrunesFinishedScans(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	reg := newRegistry(time.Hour)
	reg.now = func() time.Time { return now }

	finished := newRun("old", nil, func() {}, now.Add(-3*time.Hour))
	finished.finish(StateCompleted, nil, now.Add(-2*time.Hour))
	running := newRun("live", nil, func() {}, now.Add(-3*time.Hour))
	recent := newRun("recent", nil, func() {}, now.Add(-10*time.Minute))
	recent.finish(StateCancelled, nil, now.Add(-5*time.Minute))

	reg.add(finished)
	reg.add(running)
	reg.add(recent)

	if _, ok := reg.get("old"); ok {
		t.Fatal("expected expired scan to be pruned")
	}
	if _, ok := reg.get("live"); !ok {
		t.Fatal("running scans must never be pruned")
	}
	if _, ok := reg.get("recent"); !ok {
		t.Fatal("recently finished scan must be retained")
	}
	if got := len(reg.all()); got != 2 {
		t.Fatalf("expected 2 retained scans, got %d", got)
	}
}
