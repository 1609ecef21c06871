package fingerprint

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"math/bits"
	"os"
	"strconv"

	"github.com/corona10/goimagehash"
	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"artdedup/internal/services"
)

// Bits is the fingerprint width.
const Bits = 64

// maxEdge bounds the longest side before hashing. The hash itself works on a
// 64x64 reduction, so larger inputs only cost decode time.
const maxEdge = 512

// Fingerprint is a 64-bit perceptual hash.
type Fingerprint uint64

// String renders the fingerprint as 16 lowercase hex digits.
func (f Fingerprint) String() string {
	return fmt.Sprintf("%016x", uint64(f))
}

// Distance returns the Hamming distance between two fingerprints.
func (f Fingerprint) Distance(other Fingerprint) int {
	return bits.OnesCount64(uint64(f) ^ uint64(other))
}

// Similarity returns 1 - distance/64.
func (f Fingerprint) Similarity(other Fingerprint) float64 {
	return 1 - float64(f.Distance(other))/Bits
}

// Parse decodes a fingerprint previously produced by String.
func Parse(value string) (Fingerprint, error) {
	if len(value) != 16 {
		return 0, fmt.Errorf("fingerprint %q: expected 16 hex digits", value)
	}
	v, err := strconv.ParseUint(value, 16, 64)
	if err != nil {
		return 0, fmt.Errorf("fingerprint %q: %w", value, err)
	}
	return Fingerprint(v), nil
}

// UnreadableImageError reports an image that could not be fingerprinted.
type UnreadableImageError struct {
	Source string
	Reason string
	Err    error
}

func (e *UnreadableImageError) Error() string {
	msg := "unreadable image"
	if e.Source != "" {
		msg += " " + e.Source
	}
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *UnreadableImageError) Unwrap() []error {
	if e.Err == nil {
		return []error{services.ErrUnreadableImage}
	}
	return []error{services.ErrUnreadableImage, e.Err}
}

// Generate fingerprints encoded image bytes.
func Generate(data []byte) (Fingerprint, error) {
	if len(data) == 0 {
		return 0, &UnreadableImageError{Reason: "empty input"}
	}
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return 0, &UnreadableImageError{Reason: "decode", Err: err}
	}
	bounds := img.Bounds()
	if bounds.Dx() <= 0 || bounds.Dy() <= 0 {
		return 0, &UnreadableImageError{Reason: "empty bounds"}
	}

	img = applyOrientation(img, readOrientation(data, format))
	img = downscale(img, maxEdge)

	hash, err := goimagehash.PerceptionHash(img)
	if err != nil {
		return 0, &UnreadableImageError{Reason: "hash", Err: err}
	}
	return Fingerprint(hash.GetHash()), nil
}

// GenerateFile reads and fingerprints the image at path.
func GenerateFile(path string) (Fingerprint, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, &UnreadableImageError{Source: path, Reason: "read", Err: err}
	}
	fp, err := Generate(data)
	if err != nil {
		var unreadable *UnreadableImageError
		if errors.As(err, &unreadable) {
			unreadable.Source = path
		}
		return 0, err
	}
	return fp, nil
}

// IsUnreadable reports whether err came from an image that could not be decoded.
func IsUnreadable(err error) bool {
	return errors.Is(err, services.ErrUnreadableImage)
}

func downscale(img image.Image, limit int) image.Image {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w <= limit && h <= limit {
		return img
	}
	if w >= h {
		h = max(1, h*limit/w)
		w = limit
	} else {
		w = max(1, w*limit/h)
		h = limit
	}
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), img, b, draw.Src, nil)
	return dst
}
