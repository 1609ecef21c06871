package preflight

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"artdedup/internal/testsupport"
)

func TestCheckDirectoryAccess_OK(t *testing.T) {
	dir := t.TempDir()
	result := CheckDirectoryAccess("test", dir)
	if !result.Passed {
		t.Fatalf("expected pass for temp dir, got: %s", result.Detail)
	}
}

func TestCheckDirectoryAccess_NotExist(t *testing.T) {
	result := CheckDirectoryAccess("test", filepath.Join(t.TempDir(), "nope"))
	if result.Passed {
		t.Fatal("expected failure for missing dir")
	}
	if result.Detail == "" {
		t.Fatal("expected non-empty detail")
	}
}

func TestCheckDirectoryAccess_NotDir(t *testing.T) {
	f := filepath.Join(t.TempDir(), "file.txt")
	if err := os.WriteFile(f, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	result := CheckDirectoryAccess("test", f)
	if result.Passed {
		t.Fatal("expected failure for file path")
	}
}

func TestCheckDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "artdedup.db")
	if result := CheckDatabase(context.Background(), path); !result.Passed {
		t.Fatalf("expected pass for fresh database, got: %s", result.Detail)
	}
	if result := CheckDatabase(context.Background(), filepath.Join(t.TempDir(), "missing", "x.db")); result.Passed {
		t.Fatal("expected failure for missing parent directory")
	}
}

func TestCheckBindAddress(t *testing.T) {
	tests := []struct {
		bind string
		ok   bool
	}{
		{"127.0.0.1:7420", true},
		{":7420", true},
		{"localhost:0", true},
		{"7420", false},
		{"127.0.0.1:http", false},
		{"not a host:80", false},
	}
	for _, tc := range tests {
		if got := CheckBindAddress(tc.bind); got.Passed != tc.ok {
			t.Fatalf("CheckBindAddress(%q) = %+v, want passed=%v", tc.bind, got, tc.ok)
		}
	}
}

func TestCheckDaemon(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/status" || r.Header.Get("Authorization") != "Bearer good" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	if result := CheckDaemon(context.Background(), srv.URL, "good"); !result.Passed {
		t.Fatalf("expected pass, got: %s", result.Detail)
	}
	if result := CheckDaemon(context.Background(), srv.URL, "bad"); result.Passed {
		t.Fatal("expected failure for bad token")
	}
	if result := CheckDaemon(context.Background(), "", "good"); result.Passed {
		t.Fatal("expected failure for missing url")
	}
}

func TestRunAll(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}
	results := RunAll(context.Background(), cfg)
	if len(results) != 5 {
		t.Fatalf("expected 5 results, got %d: %+v", len(results), results)
	}
	if failed := Failed(results); len(failed) != 0 {
		t.Fatalf("expected all checks to pass, got %+v", failed)
	}

	cfg.Paths.LogDir = filepath.Join(t.TempDir(), "gone")
	failed := Failed(RunAll(context.Background(), cfg))
	if len(failed) != 1 || failed[0].Name != "Log directory" {
		t.Fatalf("expected log directory failure, got %+v", failed)
	}
	if err := ErrorDetail(failed); err == nil {
		t.Fatal("expected error detail")
	}
}
