package fingerprint_test

import (
	"errors"
	"path/filepath"
	"testing"

	"artdedup/internal/fingerprint"
	"artdedup/internal/services"
	"artdedup/internal/testsupport"
)

func TestGenerateIsDeterministic(t *testing.T) {
	data := testsupport.EncodePNG(t, testsupport.SceneImage(320, 240, 1))
	first, err := fingerprint.Generate(data)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	for i := 0; i < 3; i++ {
		again, err := fingerprint.Generate(data)
		if err != nil {
			t.Fatalf("Generate: %v", err)
		}
		if again != first {
			t.Fatalf("fingerprint changed between runs: %s vs %s", first, again)
		}
	}
}

func TestGenerateToleratesRecompressionAndResize(t *testing.T) {
	scene := testsupport.SceneImage(640, 480, 2)
	original, err := fingerprint.Generate(testsupport.EncodePNG(t, scene))
	if err != nil {
		t.Fatalf("Generate original: %v", err)
	}

	recompressed, err := fingerprint.Generate(testsupport.EncodeJPEG(t, scene, 60))
	if err != nil {
		t.Fatalf("Generate recompressed: %v", err)
	}
	if d := original.Distance(recompressed); d >= 10 {
		t.Fatalf("expected small distance after recompression, got %d", d)
	}

	smaller, err := fingerprint.Generate(testsupport.EncodeJPEG(t, testsupport.SceneImage(320, 240, 2), 85))
	if err != nil {
		t.Fatalf("Generate resized: %v", err)
	}
	if d := original.Distance(smaller); d >= 10 {
		t.Fatalf("expected small distance after resize, got %d", d)
	}
}

func TestUnrelatedImagesAreNearChance(t *testing.T) {
	const pairs = 24
	total := 0
	for i := 0; i < pairs; i++ {
		a, err := fingerprint.Generate(testsupport.EncodePNG(t, testsupport.NoiseImage(128, 128, uint64(2*i+1))))
		if err != nil {
			t.Fatalf("Generate: %v", err)
		}
		b, err := fingerprint.Generate(testsupport.EncodePNG(t, testsupport.NoiseImage(128, 128, uint64(2*i+2))))
		if err != nil {
			t.Fatalf("Generate: %v", err)
		}
		if sim := a.Similarity(b); sim >= 0.80 {
			t.Fatalf("pair %d: unrelated images scored %.2f", i, sim)
		}
		total += a.Distance(b)
	}
	mean := float64(total) / pairs
	if mean < 24 || mean > 40 {
		t.Fatalf("expected mean distance near 32, got %.1f", mean)
	}
}

func TestGenerateRejectsUnreadableInput(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{"empty", nil},
		{"garbage", []byte("definitely not an image")},
		{"truncated png", testsupport.EncodePNG(t, testsupport.SceneImage(64, 64, 0))[:40]},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := fingerprint.Generate(tt.data)
			if err == nil {
				t.Fatal("expected error")
			}
			if !errors.Is(err, services.ErrUnreadableImage) {
				t.Fatalf("expected unreadable image marker, got %v", err)
			}
			var typed *fingerprint.UnreadableImageError
			if !errors.As(err, &typed) {
				t.Fatalf("expected *UnreadableImageError, got %T", err)
			}
		})
	}
}

func TestGenerateFileReportsSource(t *testing.T) {
	dir := t.TempDir()
	good := testsupport.WriteImage(t, dir, "good.jpg", testsupport.EncodeJPEG(t, testsupport.SceneImage(200, 150, 3), 90))
	if _, err := fingerprint.GenerateFile(good); err != nil {
		t.Fatalf("GenerateFile: %v", err)
	}

	missing := filepath.Join(dir, "missing.png")
	_, err := fingerprint.GenerateFile(missing)
	var typed *fingerprint.UnreadableImageError
	if !errors.As(err, &typed) || typed.Source != missing {
		t.Fatalf("expected unreadable error naming %s, got %v", missing, err)
	}
	if !fingerprint.IsUnreadable(err) {
		t.Fatal("expected IsUnreadable to match")
	}
}

func TestParseRoundTrip(t *testing.T) {
	fp := fingerprint.Fingerprint(0xdeadbeef00c0ffee)
	parsed, err := fingerprint.Parse(fp.String())
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if parsed != fp {
		t.Fatalf("expected %s, got %s", fp, parsed)
	}
	for _, bad := range []string{"", "xyz", "deadbeef", "zzzzzzzzzzzzzzzz"} {
		if _, err := fingerprint.Parse(bad); err == nil {
			t.Fatalf("expected error for %q", bad)
		}
	}
}

func TestDistanceAndSimilarity(t *testing.T) {
	a := fingerprint.Fingerprint(0)
	b := fingerprint.Fingerprint(0xffffffffffffffff)
	if a.Distance(b) != 64 || a.Similarity(b) != 0 {
		t.Fatalf("unexpected distance %d similarity %v", a.Distance(b), a.Similarity(b))
	}
	c := fingerprint.Fingerprint(0xff)
	if a.Distance(c) != 8 || c.Distance(a) != 8 {
		t.Fatal("distance must be symmetric")
	}
	if a.Similarity(c) != 1-8.0/64 {
		t.Fatalf("unexpected similarity %v", a.Similarity(c))
	}
}
