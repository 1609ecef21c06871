package access_test

import (
	"context"
	"errors"
	"net/http/httptest"
	"testing"

	"artdedup/internal/access"
	"artdedup/internal/api"
	"artdedup/internal/apiclient"
	"artdedup/internal/daemon"
	"artdedup/internal/logging"
	"artdedup/internal/merge"
	"artdedup/internal/resolution"
	"artdedup/internal/scanner"
	"artdedup/internal/store"
	"artdedup/internal/testsupport"
)

func newService(t *testing.T) (*api.Service, *scanner.Scanner, *store.Store) {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	sc, err := scanner.New(cfg, st, logging.NewNop())
	if err != nil {
		t.Fatalf("scanner.New: %v", err)
	}
	t.Cleanup(sc.Close)
	engine := merge.New(st, nil)
	return api.NewService(st, sc, resolution.New(st, engine, nil), engine), sc, st
}

func TestOpenWithFallbackUsesLocalWhenDaemonUnavailable(t *testing.T) {
	svc, _, st := newService(t)
	a := testsupport.SeedArtwork(t, st, "Harbor")
	b := testsupport.SeedArtwork(t, st, "Harbor")
	cand := testsupport.SeedCandidate(t, st, a.ID, b.ID, 0.95)

	closed := false
	session, err := access.OpenWithFallback(
		func() (*apiclient.Client, error) { return nil, errors.New("connection refused") },
		func() (access.Session, error) {
			return access.Local(svc, func() error { closed = true; return nil }), nil
		},
	)
	if err != nil {
		t.Fatalf("OpenWithFallback: %v", err)
	}
	if session.Access.Remote() {
		t.Fatal("expected local access")
	}

	ctx := context.Background()
	detail, err := session.Access.GetCandidate(ctx, cand.ID)
	if err != nil {
		t.Fatalf("GetCandidate: %v", err)
	}
	if detail.ArtworkA == nil || detail.ArtworkA.ID != a.ID {
		t.Fatalf("unexpected detail %+v", detail)
	}
	resp, err := session.Access.ResolveCandidate(ctx, cand.ID, api.ResolveRequest{Resolution: "merged"})
	if err != nil {
		t.Fatalf("ResolveCandidate: %v", err)
	}
	if resp.Merge == nil || resp.Merge.TargetID != a.ID {
		t.Fatalf("expected merge into lower id, got %+v", resp.Merge)
	}
	history, err := session.Access.MergeHistory(ctx, 0)
	if err != nil || len(history) != 1 {
		t.Fatalf("MergeHistory: %v %+v", err, history)
	}

	if err := session.Close(); err != nil || !closed {
		t.Fatalf("expected local cleanup to run, err=%v", err)
	}
}

func TestOpenWithFallbackPrefersDaemon(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	sc, err := scanner.New(cfg, st, nil)
	if err != nil {
		t.Fatalf("scanner.New: %v", err)
	}
	engine := merge.New(st, nil)
	d, err := daemon.New(cfg, st, sc, api.NewService(st, sc, resolution.New(st, engine, nil), engine), nil)
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	srv := httptest.NewServer(d.Handler())
	t.Cleanup(func() {
		srv.Close()
		d.Close()
	})

	localOpened := false
	session, err := access.OpenWithFallback(
		func() (*apiclient.Client, error) { return apiclient.Dial(context.Background(), srv.URL, "") },
		func() (access.Session, error) {
			localOpened = true
			return access.Session{}, errors.New("should not open")
		},
	)
	if err != nil {
		t.Fatalf("OpenWithFallback: %v", err)
	}
	defer session.Close()
	if !session.Access.Remote() || localOpened {
		t.Fatal("expected daemon-backed access")
	}
	scans, err := session.Access.ListScans(context.Background())
	if err != nil || len(scans) != 0 {
		t.Fatalf("ListScans: %v %+v", err, scans)
	}
}

func TestOpenWithFallbackReportsLocalFailure(t *testing.T) {
	_, err := access.OpenWithFallback(nil, func() (access.Session, error) {
		return access.Session{}, errors.New("database locked")
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if _, err := access.OpenWithFallback(nil, nil); err == nil {
		t.Fatal("expected error without openers")
	}
}
