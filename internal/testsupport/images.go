package testsupport

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"math"
	"math/rand/v2"
	"os"
	"path/filepath"
	"testing"
)

// SceneImage renders a smooth synthetic scene (gradient sky, a sun and a
// horizon band) whose layout depends on variant. Different variants produce
// perceptually different images; the same variant always renders identically.
func SceneImage(width, height, variant int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	cx := float64(width) * (0.25 + 0.5*float64(variant%3)/2)
	cy := float64(height) * (0.2 + 0.15*float64(variant%4))
	radius := float64(min(width, height)) * 0.15
	horizon := int(float64(height) * (0.55 + 0.1*float64(variant%2)))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			t := float64(y) / float64(height)
			c := color.RGBA{R: uint8(40 + 100*t), G: uint8(90 + 80*t), B: uint8(200 - 60*t), A: 255}
			if y > horizon {
				c = color.RGBA{R: 30, G: uint8(60 + 40*float64(x)/float64(width)), B: 40, A: 255}
			}
			if math.Hypot(float64(x)-cx, float64(y)-cy) < radius {
				c = color.RGBA{R: 250, G: 220, B: 90, A: 255}
			}
			img.SetRGBA(x, y, c)
		}
	}
	return img
}

// NoiseImage renders deterministic per-pixel noise from seed. Two different
// seeds give statistically unrelated images.
func NoiseImage(width, height int, seed uint64) *image.RGBA {
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	// 8x8 blocks keep low-frequency energy so the DCT hash sees structure.
	const block = 8
	for by := 0; by < height; by += block {
		for bx := 0; bx < width; bx += block {
			v := uint8(rng.IntN(256))
			for y := by; y < min(by+block, height); y++ {
				for x := bx; x < min(bx+block, width); x++ {
					img.SetRGBA(x, y, color.RGBA{R: v, G: v, B: v, A: 255})
				}
			}
		}
	}
	return img
}

// EncodePNG encodes img as PNG bytes.
func EncodePNG(t testing.TB, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

// EncodeJPEG encodes img as JPEG bytes at the given quality.
func EncodeJPEG(t testing.TB, img image.Image, quality int) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		t.Fatalf("encode jpeg: %v", err)
	}
	return buf.Bytes()
}

// WriteImage writes encoded image bytes under dir and returns the path.
func WriteImage(t testing.TB, dir, name string, data []byte) string {
	t.Helper()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir %s: %v", dir, err)
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	return path
}
