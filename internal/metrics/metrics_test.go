package metrics_test

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"artdedup/internal/metrics"
)

func TestRecordAPIRequest(t *testing.T) {
	before := testutil.ToFloat64(metrics.APIRequestsTotal.WithLabelValues("GET", "/api/status", "200"))
	metrics.RecordAPIRequest("GET", "/api/status", 200, 3*time.Millisecond)
	after := testutil.ToFloat64(metrics.APIRequestsTotal.WithLabelValues("GET", "/api/status", "200"))
	if after-before != 1 {
		t.Fatalf("expected request counter to advance by 1, got %v", after-before)
	}
}

func TestRecordFingerprintAndScan(t *testing.T) {
	cases := []string{"ok", "unreadable", "error"}
	for _, outcome := range cases {
		before := testutil.ToFloat64(metrics.FingerprintsGenerated.WithLabelValues(outcome))
		metrics.RecordFingerprint(outcome, time.Millisecond)
		if got := testutil.ToFloat64(metrics.FingerprintsGenerated.WithLabelValues(outcome)) - before; got != 1 {
			t.Fatalf("%s: expected +1, got %v", outcome, got)
		}
	}

	before := testutil.ToFloat64(metrics.ScansFinished.WithLabelValues("completed"))
	metrics.RecordScanFinished("completed", time.Second)
	if got := testutil.ToFloat64(metrics.ScansFinished.WithLabelValues("completed")) - before; got != 1 {
		t.Fatalf("expected scan counter +1, got %v", got)
	}
}
