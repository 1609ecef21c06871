package similarity

import (
	"artdedup/internal/fingerprint"
	"artdedup/internal/textutil"
)

// Profile is the normalized view of an artwork that comparators work on.
// Build it once per record with NewProfile; comparisons then allocate nothing
// beyond the title LCS rows.
type Profile struct {
	ID           int64
	Title        string
	Year         *int
	Medium       string
	Dimensions   string
	Fingerprints []fingerprint.Fingerprint
}

// NewProfile normalizes raw record fields. When dimensions are empty, a
// trailing dimension expression in the medium ("Oil on canvas, 24x36in") is
// used instead.
func NewProfile(id int64, title string, year *int, medium, dimensions string, fps []fingerprint.Fingerprint) Profile {
	rest, embedded := textutil.SplitMediumDimensions(medium)
	if dimensions == "" {
		dimensions = embedded
	}
	var y *int
	if year != nil {
		v := *year
		y = &v
	}
	return Profile{
		ID:           id,
		Title:        textutil.NormalizeTitle(title),
		Year:         y,
		Medium:       textutil.NormalizeMedium(rest),
		Dimensions:   textutil.NormalizeDimensions(dimensions),
		Fingerprints: fps,
	}
}

// HasFingerprint reports whether any image of the record was fingerprinted.
func (p *Profile) HasFingerprint() bool {
	return len(p.Fingerprints) > 0
}
