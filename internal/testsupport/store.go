package testsupport

import (
	"context"
	"testing"

	"artdedup/internal/config"
	"artdedup/internal/similarity"
	"artdedup/internal/store"
)

// MustOpenStore opens a store.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *store.Store {
	t.Helper()

	st, err := store.Open(cfg)
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() {
		st.Close()
	})
	return st
}

// ArtworkOption customizes a seeded artwork.
type ArtworkOption func(*store.Artwork)

// WithYear sets the artwork year.
func WithYear(year int) ArtworkOption {
	return func(a *store.Artwork) { a.Year = &year }
}

// WithMedium sets the artwork medium.
func WithMedium(medium string) ArtworkOption {
	return func(a *store.Artwork) { a.Medium = medium }
}

// WithDimensions sets the artwork dimensions.
func WithDimensions(dims string) ArtworkOption {
	return func(a *store.Artwork) { a.Dimensions = dims }
}

// WithFields lets a test set arbitrary fields.
func WithFields(fn func(*store.Artwork)) ArtworkOption {
	return fn
}

// SeedArtwork inserts an artwork for tests.
func SeedArtwork(t testing.TB, st *store.Store, title string, opts ...ArtworkOption) *store.Artwork {
	t.Helper()

	a := &store.Artwork{Title: title}
	for _, opt := range opts {
		opt(a)
	}
	created, err := st.CreateArtwork(context.Background(), a)
	if err != nil {
		t.Fatalf("store.CreateArtwork: %v", err)
	}
	return created
}

// SeedImage attaches an image file to an artwork for tests.
func SeedImage(t testing.TB, st *store.Store, artworkID int64, path string) *store.Image {
	t.Helper()

	img, err := st.AddImage(context.Background(), &store.Image{ArtworkID: artworkID, Path: path})
	if err != nil {
		t.Fatalf("store.AddImage: %v", err)
	}
	return img
}

// SeedFingerprint attaches an already fingerprinted image to an artwork.
func SeedFingerprint(t testing.TB, st *store.Store, artworkID int64, fingerprint string) *store.Image {
	t.Helper()

	img, err := st.AddImage(context.Background(), &store.Image{ArtworkID: artworkID, URL: "https://example.test/image.jpg", Fingerprint: fingerprint})
	if err != nil {
		t.Fatalf("store.AddImage: %v", err)
	}
	return img
}

// SeedCandidate stores a pending title candidate for the pair.
func SeedCandidate(t testing.TB, st *store.Store, a, b int64, score float64) *store.Candidate {
	t.Helper()

	title := score
	c, _, err := st.InsertCandidate(context.Background(), store.NewCandidate{
		ArtworkA:   a,
		ArtworkB:   b,
		Method:     similarity.MethodTitle,
		Score:      score,
		TitleScore: &title,
	})
	if err != nil {
		t.Fatalf("store.InsertCandidate: %v", err)
	}
	return c
}

// WriteTestImage writes a JPEG rendering of a synthetic scene under the
// config's image directory and returns its path.
func WriteTestImage(t testing.TB, cfg *config.Config, name string, variant int) string {
	t.Helper()
	return WriteImage(t, cfg.Paths.ImageDir, name, EncodeJPEG(t, SceneImage(320, 240, variant), 90))
}
