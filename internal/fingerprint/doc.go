// Package fingerprint derives 64-bit perceptual fingerprints from image bytes.
//
// Images are decoded (JPEG, PNG, GIF, WebP, BMP, TIFF), rotated upright
// according to their EXIF orientation, downscaled, and hashed with a DCT
// perceptual hash. Perceptually identical images produce identical or nearly
// identical fingerprints; unrelated images differ in about half of the bits.
//
// Generate is pure and safe for concurrent use. Failures are reported as
// *UnreadableImageError so callers can skip one bad image and continue.
package fingerprint
