package scanner

import (
	"context"
	"testing"
	"time"

	"artdedup/internal/fingerprint"
	"artdedup/internal/logging"
	"artdedup/internal/testsupport"
)

func TestCancelStopsRunningScan(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	a := testsupport.SeedArtwork(t, st, "Harbor")
	testsupport.SeedImage(t, st, a.ID, "harbor.jpg")

	sc, err := New(cfg, st, logging.NewNop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer sc.Close()

	entered := make(chan struct{})
	release := make(chan struct{})
	sc.generate = func(string) (fingerprint.Fingerprint, error) {
		close(entered)
		<-release
		return 42, nil
	}

	handle, err := sc.Start(context.Background(), Options{})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	select {
	case <-entered:
	case <-time.After(5 * time.Second):
		t.Fatal("scan never reached fingerprinting")
	}

	if _, err := sc.Cancel(handle); err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	progress, err := sc.Wait(ctx, handle)
	if err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if progress.State != StateCancelled || progress.FinishedAt == nil {
		t.Fatalf("expected cancelled scan, got %+v", progress)
	}
}
