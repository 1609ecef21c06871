package services_test

import (
	"context"
	"testing"

	"artdedup/internal/services"
)

func TestContextHelpers(t *testing.T) {
	ctx := context.Background()
	if _, ok := services.ScanIDFromContext(ctx); ok {
		t.Fatal("expected no scan id on empty context")
	}
	ctx = services.WithScanID(ctx, "abc")
	ctx = services.WithArtworkID(ctx, 42)
	ctx = services.WithRequestID(ctx, "req-1")

	if id, ok := services.ScanIDFromContext(ctx); !ok || id != "abc" {
		t.Fatalf("unexpected scan id %q", id)
	}
	if id, ok := services.ArtworkIDFromContext(ctx); !ok || id != 42 {
		t.Fatalf("unexpected artwork id %d", id)
	}
	if id, ok := services.RequestIDFromContext(ctx); !ok || id != "req-1" {
		t.Fatalf("unexpected request id %q", id)
	}
	if services.WithScanID(ctx, "") != ctx {
		t.Fatal("expected empty scan id to leave context untouched")
	}
}
