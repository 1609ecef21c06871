package apiclient_test

import (
	"context"
	"errors"
	"net/http/httptest"
	"testing"
	"time"

	"artdedup/internal/api"
	"artdedup/internal/apiclient"
	"artdedup/internal/daemon"
	"artdedup/internal/logging"
	"artdedup/internal/merge"
	"artdedup/internal/resolution"
	"artdedup/internal/scanner"
	"artdedup/internal/services"
	"artdedup/internal/store"
	"artdedup/internal/testsupport"
)

func newServer(t *testing.T, opts ...testsupport.ConfigOption) (*httptest.Server, *store.Store) {
	t.Helper()
	cfg := testsupport.NewConfig(t, opts...)
	st := testsupport.MustOpenStore(t, cfg)
	logger := logging.NewNop()
	sc, err := scanner.New(cfg, st, logger)
	if err != nil {
		t.Fatalf("scanner.New: %v", err)
	}
	engine := merge.New(st, logger)
	svc := api.NewService(st, sc, resolution.New(st, engine, logger), engine)
	d, err := daemon.New(cfg, st, sc, svc, logger)
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	srv := httptest.NewServer(d.Handler())
	t.Cleanup(func() {
		srv.Close()
		d.Close()
	})
	return srv, st
}

func TestClientScanAndResolve(t *testing.T) {
	srv, st := newServer(t)
	ctx := context.Background()

	client, err := apiclient.Dial(ctx, srv.URL, "")
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer client.Close()

	a := testsupport.SeedArtwork(t, st, "The Harbor", testsupport.WithYear(1985), testsupport.WithMedium("Oil on canvas"))
	b := testsupport.SeedArtwork(t, st, "The Harbor", testsupport.WithYear(1985), testsupport.WithMedium("Oil on canvas"))

	started, err := client.StartScan(ctx, api.ScanRequest{Methods: []string{"metadata"}})
	if err != nil {
		t.Fatalf("StartScan: %v", err)
	}
	deadline := time.Now().Add(10 * time.Second)
	status := started
	for status.State == string(scanner.StateRunning) {
		if time.Now().After(deadline) {
			t.Fatalf("scan did not finish: %+v", status)
		}
		time.Sleep(20 * time.Millisecond)
		if status, err = client.ScanStatus(ctx, started.Handle); err != nil {
			t.Fatalf("ScanStatus: %v", err)
		}
	}
	if status.State != string(scanner.StateCompleted) || status.CandidatesFound != 1 {
		t.Fatalf("unexpected scan status %+v", status)
	}
	scans, err := client.ListScans(ctx)
	if err != nil || len(scans) != 1 {
		t.Fatalf("ListScans: %v %+v", err, scans)
	}

	list, err := client.ListCandidates(ctx, api.CandidateQuery{Status: "pending", ArtworkID: b.ID, PageSize: 10})
	if err != nil {
		t.Fatalf("ListCandidates: %v", err)
	}
	if list.Total != 1 || list.Items[0].ArtworkID1 != a.ID {
		t.Fatalf("unexpected list %+v", list)
	}
	id := list.Items[0].ID

	preview, err := client.Merge(ctx, api.MergeRequest{SourceID: b.ID, TargetID: a.ID, DryRun: true})
	if err != nil || !preview.DryRun {
		t.Fatalf("dry run: %v %+v", err, preview)
	}

	resp, err := client.ResolveCandidate(ctx, id, api.ResolveRequest{Resolution: "not_duplicate", Reason: "different editions"})
	if err != nil {
		t.Fatalf("ResolveCandidate: %v", err)
	}
	if resp.Candidate.Status != "not_duplicate" || resp.Candidate.Reason != "different editions" {
		t.Fatalf("unexpected resolution %+v", resp.Candidate)
	}

	_, err = client.ResolveCandidate(ctx, id, api.ResolveRequest{Resolution: "ignored"})
	if !errors.Is(err, services.ErrInvalidTransition) {
		t.Fatalf("expected invalid transition, got %v", err)
	}
	if err := client.ResetCandidate(ctx, id); err != nil {
		t.Fatalf("ResetCandidate: %v", err)
	}
	if _, err := client.GetCandidate(ctx, id); services.Kind(err) != "record_not_found" {
		t.Fatalf("expected record_not_found after reset, got %v", err)
	}

	bulk, err := client.BulkResolve(ctx, api.BulkResolveRequest{IDs: []int64{id}, Resolution: "ignored"})
	if err != nil {
		t.Fatalf("BulkResolve: %v", err)
	}
	if bulk.Failed != 1 || bulk.Outcomes[0].Kind != "record_not_found" {
		t.Fatalf("unexpected bulk outcome %+v", bulk)
	}

	summary, err := client.Merge(ctx, api.MergeRequest{SourceID: b.ID, TargetID: a.ID})
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}
	history, err := client.MergeHistory(ctx, 10)
	if err != nil || len(history) != 1 || history[0].ID != summary.AuditID {
		t.Fatalf("MergeHistory: %v %+v", err, history)
	}

	_, err = client.Merge(ctx, api.MergeRequest{SourceID: a.ID, TargetID: b.ID})
	if !errors.Is(err, services.ErrTargetNoLongerExists) {
		t.Fatalf("expected target_no_longer_exists, got %v", err)
	}
}

func TestClientToken(t *testing.T) {
	srv, _ := newServer(t, testsupport.WithAPIToken("s3cret"))
	ctx := context.Background()

	if _, err := apiclient.Dial(ctx, srv.URL, ""); err == nil {
		t.Fatal("expected dial without token to fail")
	}
	client, err := apiclient.Dial(ctx, srv.URL, "s3cret")
	if err != nil {
		t.Fatalf("Dial with token: %v", err)
	}
	status, err := client.Status(ctx)
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if status.Running {
		t.Fatal("daemon was never started, expected running=false")
	}
}

func TestDialUnreachable(t *testing.T) {
	if _, err := apiclient.Dial(context.Background(), "127.0.0.1:1", ""); err == nil {
		t.Fatal("expected dial failure")
	}
	if _, err := apiclient.Dial(context.Background(), "", ""); err == nil {
		t.Fatal("expected empty address to fail")
	}
}
