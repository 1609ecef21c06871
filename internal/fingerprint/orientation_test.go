package fingerprint

import (
	"image"
	"image/color"
	"testing"
)

func TestApplyOrientationRotatesClockwise(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 2, 1))
	red := color.RGBA{R: 255, A: 255}
	blue := color.RGBA{B: 255, A: 255}
	src.SetRGBA(0, 0, red)
	src.SetRGBA(1, 0, blue)

	out := applyOrientation(src, 6)
	if b := out.Bounds(); b.Dx() != 1 || b.Dy() != 2 {
		t.Fatalf("expected 1x2 output, got %v", b)
	}
	if got := color.RGBAModel.Convert(out.At(0, 0)); got != red {
		t.Fatalf("expected red on top, got %v", got)
	}
	if got := color.RGBAModel.Convert(out.At(0, 1)); got != blue {
		t.Fatalf("expected blue below, got %v", got)
	}
}

func TestApplyOrientationIdentity(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 3, 2))
	for _, o := range []int{0, 1, 9} {
		if applyOrientation(src, o) != image.Image(src) {
			t.Fatalf("orientation %d should return the input unchanged", o)
		}
	}
}

func TestReadOrientationDefaults(t *testing.T) {
	if got := readOrientation([]byte("not an image"), "gif"); got != 1 {
		t.Fatalf("expected default orientation, got %d", got)
	}
	if got := readOrientation([]byte{0xff, 0xd8, 0xff}, "jpeg"); got != 1 {
		t.Fatalf("expected default orientation for truncated jpeg, got %d", got)
	}
}

func TestOrientationValue(t *testing.T) {
	tests := []struct {
		in   any
		want int
		ok   bool
	}{
		{uint16(6), 6, true},
		{uint32(3), 3, true},
		{int(8), 8, true},
		{uint16(0), 0, false},
		{uint16(12), 0, false},
		{"6", 0, false},
	}
	for _, tt := range tests {
		got, ok := orientationValue(tt.in)
		if got != tt.want || ok != tt.ok {
			t.Fatalf("orientationValue(%v) = (%d, %v), want (%d, %v)", tt.in, got, ok, tt.want, tt.ok)
		}
	}
}
