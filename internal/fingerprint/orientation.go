package fingerprint

import (
	"bytes"
	"image"

	"github.com/bep/imagemeta"
	"golang.org/x/image/draw"
)

// readOrientation returns the EXIF orientation (1-8), defaulting to 1 when the
// image carries no usable metadata.
func readOrientation(data []byte, format string) int {
	var imageFormat imagemeta.ImageFormat
	switch format {
	case "jpeg":
		imageFormat = imagemeta.JPEG
	case "png":
		imageFormat = imagemeta.PNG
	case "webp":
		imageFormat = imagemeta.WebP
	case "tiff":
		imageFormat = imagemeta.TIFF
	default:
		return 1
	}

	orientation := 1
	_, err := imagemeta.Decode(imagemeta.Options{
		R:           bytes.NewReader(data),
		ImageFormat: imageFormat,
		Sources:     imagemeta.EXIF,
		ShouldHandleTag: func(ti imagemeta.TagInfo) bool {
			return ti.Tag == "Orientation"
		},
		HandleTag: func(ti imagemeta.TagInfo) error {
			if v, ok := orientationValue(ti.Value); ok {
				orientation = v
			}
			return nil
		},
	})
	if err != nil {
		return 1
	}
	return orientation
}

func orientationValue(v any) (int, bool) {
	var n int
	switch val := v.(type) {
	case uint16:
		n = int(val)
	case uint32:
		n = int(val)
	case int:
		n = val
	case int64:
		n = int(val)
	case uint8:
		n = int(val)
	default:
		return 0, false
	}
	if n < 1 || n > 8 {
		return 0, false
	}
	return n, true
}

// applyOrientation rotates and flips img so it displays upright.
func applyOrientation(img image.Image, orientation int) image.Image {
	if orientation <= 1 || orientation > 8 {
		return img
	}
	src := image.NewRGBA(image.Rect(0, 0, img.Bounds().Dx(), img.Bounds().Dy()))
	draw.Draw(src, src.Bounds(), img, img.Bounds().Min, draw.Src)
	w, h := src.Bounds().Dx(), src.Bounds().Dy()

	// Orientations 5-8 swap axes.
	dw, dh := w, h
	if orientation >= 5 {
		dw, dh = h, w
	}
	dst := image.NewRGBA(image.Rect(0, 0, dw, dh))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			var dx, dy int
			switch orientation {
			case 2:
				dx, dy = w-1-x, y
			case 3:
				dx, dy = w-1-x, h-1-y
			case 4:
				dx, dy = x, h-1-y
			case 5:
				dx, dy = y, x
			case 6:
				dx, dy = h-1-y, x
			case 7:
				dx, dy = h-1-y, w-1-x
			case 8:
				dx, dy = y, w-1-x
			}
			dst.SetRGBA(dx, dy, src.RGBAAt(x, y))
		}
	}
	return dst
}
