package similarity

import (
	"fmt"

	"artdedup/internal/fingerprint"
	"artdedup/internal/textutil"
)

// CompareImages returns the best similarity over all fingerprint pairs, absent
// when either side has none.
func CompareImages(a, b []fingerprint.Fingerprint) Score {
	if len(a) == 0 || len(b) == 0 {
		return Score{}
	}
	best := 0.0
	for _, fa := range a {
		for _, fb := range b {
			if s := fa.Similarity(fb); s > best {
				best = s
			}
		}
	}
	return Some(best)
}

// CompareTitles normalizes both titles and returns their LCS ratio, absent
// when either title normalizes to nothing.
func CompareTitles(a, b string) Score {
	return compareNormalizedTitles(textutil.NormalizeTitle(a), textutil.NormalizeTitle(b))
}

func compareNormalizedTitles(a, b string) Score {
	if a == "" || b == "" {
		return Score{}
	}
	return Some(textutil.LCSRatio(a, b))
}

// MissingFieldPolicy controls how the metadata comparator treats a field
// missing on either record.
type MissingFieldPolicy string

const (
	// Renormalize weighs only the fields present on both records.
	Renormalize MissingFieldPolicy = "renormalize"
	// ZeroFill scores a missing field as a mismatch.
	ZeroFill MissingFieldPolicy = "zero"
)

// ParseMissingFieldPolicy validates a policy name.
func ParseMissingFieldPolicy(value string) (MissingFieldPolicy, error) {
	switch p := MissingFieldPolicy(value); p {
	case Renormalize, ZeroFill:
		return p, nil
	case "":
		return Renormalize, nil
	}
	return "", fmt.Errorf("unknown missing field policy %q", value)
}

// Metadata term weights.
const (
	weightTitle      = 0.4
	weightYear       = 0.3
	weightMedium     = 0.2
	weightDimensions = 0.1
)

// CompareMetadata blends title similarity, exact year, medium and dimension
// matches. Under Renormalize the score is absent unless year, medium or
// dimensions is comparable on both records, so a title alone never reads as
// metadata evidence.
func CompareMetadata(a, b *Profile, policy MissingFieldPolicy) Score {
	var sum, weights float64
	fields := 0
	term := func(weight float64, present bool, match float64) {
		if !present {
			if policy == ZeroFill {
				weights += weight
			}
			return
		}
		weights += weight
		sum += weight * match
	}
	field := func(weight float64, present bool, match float64) {
		if present {
			fields++
		}
		term(weight, present, match)
	}

	title := compareNormalizedTitles(a.Title, b.Title)
	term(weightTitle, title.Present, title.Value)
	field(weightYear, a.Year != nil && b.Year != nil, boolScore(a.Year != nil && b.Year != nil && *a.Year == *b.Year))
	field(weightMedium, a.Medium != "" && b.Medium != "", boolScore(a.Medium == b.Medium))
	field(weightDimensions, a.Dimensions != "" && b.Dimensions != "", boolScore(a.Dimensions == b.Dimensions))

	if weights == 0 || (policy == Renormalize && fields == 0) {
		return Score{}
	}
	return Some(sum / weights)
}

func boolScore(v bool) float64 {
	if v {
		return 1
	}
	return 0
}

// Combined signal weights, renormalized over the present signals.
const (
	combinedImageWeight    = 0.5
	combinedTitleWeight    = 0.25
	combinedMetadataWeight = 0.25
)

// CombineScores blends present signals into a single score. It is absent
// unless at least two signals are present.
func CombineScores(image, title, metadata Score) Score {
	var sum, weights float64
	present := 0
	for _, part := range []struct {
		score  Score
		weight float64
	}{
		{image, combinedImageWeight},
		{title, combinedTitleWeight},
		{metadata, combinedMetadataWeight},
	} {
		if !part.score.Present {
			continue
		}
		sum += part.weight * part.score.Value
		weights += part.weight
		present++
	}
	if present < 2 {
		return Score{}
	}
	return Some(sum / weights)
}
