package logs_test

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"artdedup/internal/logs"
)

func TestTailLastLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "artdedup.log")
	if err := os.WriteFile(path, []byte("a\nb\nc\n"), 0o644); err != nil {
		t.Fatalf("write log: %v", err)
	}

	tests := []struct {
		limit int
		want  []string
	}{
		{limit: 2, want: []string{"b", "c"}},
		{limit: 3, want: []string{"a", "b", "c"}},
		{limit: 10, want: []string{"a", "b", "c"}},
		{limit: 0, want: nil},
	}
	for _, tt := range tests {
		lines, offset, err := logs.Tail(path, tt.limit)
		if err != nil {
			t.Fatalf("Tail(%d): %v", tt.limit, err)
		}
		if offset != 6 {
			t.Fatalf("Tail(%d) offset = %d, want 6", tt.limit, offset)
		}
		if len(lines) != len(tt.want) {
			t.Fatalf("Tail(%d) = %#v, want %#v", tt.limit, lines, tt.want)
		}
		for i := range lines {
			if lines[i] != tt.want[i] {
				t.Fatalf("Tail(%d) = %#v, want %#v", tt.limit, lines, tt.want)
			}
		}
	}
}

func TestTailMissingFile(t *testing.T) {
	lines, offset, err := logs.Tail(filepath.Join(t.TempDir(), "absent.log"), 5)
	if err != nil || lines != nil || offset != 0 {
		t.Fatalf("expected empty tail, got %v %d %v", lines, offset, err)
	}
}

func TestFollowEmitsAppendedLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "artdedup.log")
	if err := os.WriteFile(path, []byte("start\n"), 0o644); err != nil {
		t.Fatalf("write log: %v", err)
	}
	_, offset, err := logs.Tail(path, 1)
	if err != nil {
		t.Fatalf("Tail: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var mu sync.Mutex
	var got []string
	done := make(chan error, 1)
	go func() {
		done <- logs.Follow(ctx, path, offset, 10*time.Millisecond, func(line string) {
			mu.Lock()
			got = append(got, line)
			n := len(got)
			mu.Unlock()
			if n == 2 {
				cancel()
			}
		})
	}()

	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		t.Fatalf("open log: %v", err)
	}
	if _, err := f.WriteString("scan started\npart"); err != nil {
		t.Fatalf("append: %v", err)
	}
	time.Sleep(50 * time.Millisecond)
	if _, err := f.WriteString("ial done\n"); err != nil {
		t.Fatalf("append: %v", err)
	}
	f.Close()

	if err := <-done; err != nil {
		t.Fatalf("Follow: %v", err)
	}
	mu.Lock()
	defer mu.Unlock()
	if len(got) != 2 || got[0] != "scan started" || got[1] != "partial done" {
		t.Fatalf("unexpected followed lines %#v", got)
	}
}
