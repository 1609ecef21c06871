package similarity_test

import (
	"math"
	"testing"

	"artdedup/internal/fingerprint"
	"artdedup/internal/similarity"
)

func intPtr(v int) *int { return &v }

func TestHarborMetadataScenario(t *testing.T) {
	a := similarity.NewProfile(1, "The Harbor", intPtr(1985), "Oil on canvas", "", nil)
	b := similarity.NewProfile(2, "The Harbor", intPtr(1985), "Oil on canvas, 24x36in", "", nil)

	for _, policy := range []similarity.MissingFieldPolicy{similarity.Renormalize, similarity.ZeroFill} {
		score := similarity.CompareMetadata(&a, &b, policy)
		if !score.Present || score.Value < 0.75 {
			t.Fatalf("%s: expected metadata score >= 0.75, got %v", policy, score)
		}

		cmp, err := similarity.NewComparator(similarity.DefaultThresholds(), policy, similarity.MethodMetadata)
		if err != nil {
			t.Fatalf("NewComparator: %v", err)
		}
		res := cmp.Evaluate(&a, &b)
		if !res.Qualified || res.Method != similarity.MethodMetadata {
			t.Fatalf("%s: expected metadata candidate, got %+v", policy, res)
		}
	}

	all, err := similarity.NewComparator(similarity.DefaultThresholds(), similarity.Renormalize)
	if err != nil {
		t.Fatalf("NewComparator: %v", err)
	}
	res := all.Evaluate(&a, &b)
	if !res.Qualified || res.Method != similarity.MethodMetadata || res.Score != 1 {
		t.Fatalf("expected metadata to win the tie at 1.0, got %+v", res)
	}
	if res.Image.Present {
		t.Fatal("image score must be absent without fingerprints")
	}
}

func TestMetadataMissingFieldPolicies(t *testing.T) {
	a := similarity.NewProfile(1, "Still Life with Pears", intPtr(1990), "", "", nil)
	b := similarity.NewProfile(2, "Still Life with Pears", intPtr(1990), "", "", nil)

	zero := similarity.CompareMetadata(&a, &b, similarity.ZeroFill)
	if math.Abs(zero.Value-0.7) > 1e-9 {
		t.Fatalf("zero fill: expected 0.7, got %v", zero.Value)
	}
	renorm := similarity.CompareMetadata(&a, &b, similarity.Renormalize)
	if renorm.Value != 1 {
		t.Fatalf("renormalize: expected 1, got %v", renorm.Value)
	}

	empty := similarity.NewProfile(3, "", nil, "", "", nil)
	if s := similarity.CompareMetadata(&empty, &empty, similarity.Renormalize); s.Present {
		t.Fatalf("expected absent score when nothing is comparable, got %v", s)
	}
	if s := similarity.CompareMetadata(&empty, &empty, similarity.ZeroFill); !s.Present || s.Value != 0 {
		t.Fatalf("expected zero score under zero fill, got %v", s)
	}
}

func TestTitleOnlyPairIsNotMetadataEvidence(t *testing.T) {
	a := similarity.NewProfile(1, "Harbor at Dawn", nil, "", "", nil)
	b := similarity.NewProfile(2, "Harbor at Noon", nil, "", "", nil)

	if s := similarity.CompareMetadata(&a, &b, similarity.Renormalize); s.Present {
		t.Fatalf("renormalize: expected absent metadata score for titles only, got %v", s)
	}
	if s := similarity.CompareMetadata(&a, &b, similarity.ZeroFill); !s.Present || s.Value > 0.4 {
		t.Fatalf("zero fill: expected title-weighted score <= 0.4, got %v", s)
	}

	for _, policy := range []similarity.MissingFieldPolicy{similarity.Renormalize, similarity.ZeroFill} {
		cmp, err := similarity.NewComparator(similarity.DefaultThresholds(), policy)
		if err != nil {
			t.Fatalf("NewComparator: %v", err)
		}
		res := cmp.Evaluate(&a, &b)
		if !res.Title.Present || res.Title.Value >= similarity.DefaultThresholds().Title {
			t.Fatalf("%s: expected title below threshold, got %v", policy, res.Title)
		}
		if res.Qualified {
			t.Fatalf("%s: titles alone below the title threshold must not qualify, got %+v", policy, res)
		}
	}

	cmp, err := similarity.NewComparator(similarity.DefaultThresholds(), similarity.Renormalize)
	if err != nil {
		t.Fatalf("NewComparator: %v", err)
	}
	if res := cmp.Evaluate(&a, &b); res.Combined.Present {
		t.Fatalf("expected absent combined score with a single signal, got %v", res.Combined)
	}
}

func TestMetadataWeights(t *testing.T) {
	a := similarity.NewProfile(1, "Dune", intPtr(1970), "Gouache", "10x12in", nil)
	b := similarity.NewProfile(2, "Dune", intPtr(1971), "gouache", "10 x 12 in", nil)
	got := similarity.CompareMetadata(&a, &b, similarity.ZeroFill)
	if math.Abs(got.Value-0.7) > 1e-9 {
		t.Fatalf("expected 0.4+0.2+0.1 = 0.7, got %v", got.Value)
	}
}

func TestImageComparator(t *testing.T) {
	if s := similarity.CompareImages(nil, []fingerprint.Fingerprint{1}); s.Present {
		t.Fatal("expected absent image score when one side has no fingerprint")
	}
	a := []fingerprint.Fingerprint{0xffff000000000000, 0x00000000000000ff}
	b := []fingerprint.Fingerprint{0x00000000000000fe}
	s := similarity.CompareImages(a, b)
	if !s.Present || s.Value != 1-1.0/64 {
		t.Fatalf("expected best pair similarity, got %v", s)
	}
}

func TestTitleComparator(t *testing.T) {
	if s := similarity.CompareTitles("The Harbor!", "the   harbor"); s.Value != 1 {
		t.Fatalf("expected identical after normalization, got %v", s)
	}
	if s := similarity.CompareTitles("", "The Harbor"); s.Present {
		t.Fatal("expected absent title score for empty title")
	}
	if s := similarity.CompareTitles("Harbor at Dawn", "Portrait of a Lady"); s.Value >= 0.85 {
		t.Fatalf("unexpectedly similar titles: %v", s)
	}
}

func TestComparatorsAreSymmetric(t *testing.T) {
	profiles := []similarity.Profile{
		similarity.NewProfile(1, "The Harbor", intPtr(1985), "Oil on canvas", "", []fingerprint.Fingerprint{0x0f0f0f0f0f0f0f0f}),
		similarity.NewProfile(2, "Harbour at Night", intPtr(1987), "Oil on board, 12x16in", "", nil),
		similarity.NewProfile(3, "Untitled", nil, "", "30 x 40 cm", []fingerprint.Fingerprint{0x0f0f0f0f0f0f0f00, 42}),
		similarity.NewProfile(4, "", intPtr(1985), "Oil on Canvas", "", nil),
	}
	for _, policy := range []similarity.MissingFieldPolicy{similarity.Renormalize, similarity.ZeroFill} {
		cmp, err := similarity.NewComparator(similarity.DefaultThresholds(), policy)
		if err != nil {
			t.Fatalf("NewComparator: %v", err)
		}
		for i := range profiles {
			for j := range profiles {
				ab := cmp.Evaluate(&profiles[i], &profiles[j])
				ba := cmp.Evaluate(&profiles[j], &profiles[i])
				if ab != ba {
					t.Fatalf("%s: compare(%d,%d) = %+v, compare(%d,%d) = %+v", policy, i, j, ab, j, i, ba)
				}
			}
		}
	}
}

func TestComparatorPrefersHighestScore(t *testing.T) {
	a := similarity.NewProfile(1, "Sunflowers", nil, "", "", []fingerprint.Fingerprint{0})
	b := similarity.NewProfile(2, "Sunflower", nil, "", "", []fingerprint.Fingerprint{0})
	cmp, err := similarity.NewComparator(similarity.DefaultThresholds(), similarity.Renormalize)
	if err != nil {
		t.Fatalf("NewComparator: %v", err)
	}
	res := cmp.Evaluate(&a, &b)
	if res.Method != similarity.MethodImageHash || res.Score != 1 {
		t.Fatalf("expected identical fingerprints to win, got %+v", res)
	}

	titleOnly, err := similarity.NewComparator(similarity.DefaultThresholds(), similarity.Renormalize, similarity.MethodTitle)
	if err != nil {
		t.Fatalf("NewComparator: %v", err)
	}
	res = titleOnly.Evaluate(&a, &b)
	if res.Method != similarity.MethodTitle || !res.Qualified {
		t.Fatalf("expected title method when restricted, got %+v", res)
	}
}

func TestComparatorRejectsBelowThreshold(t *testing.T) {
	a := similarity.NewProfile(1, "Harbor", nil, "", "", []fingerprint.Fingerprint{0})
	b := similarity.NewProfile(2, "Mountains", nil, "", "", []fingerprint.Fingerprint{0x00000000ffffffff})
	cmp, err := similarity.NewComparator(similarity.DefaultThresholds(), similarity.Renormalize)
	if err != nil {
		t.Fatalf("NewComparator: %v", err)
	}
	res := cmp.Evaluate(&a, &b)
	if res.Qualified {
		t.Fatalf("expected no qualifying method, got %+v", res)
	}
	if !res.Image.Present || res.Image.Value != 0.5 {
		t.Fatalf("expected image similarity 0.5, got %v", res.Image)
	}
}

func TestNewComparatorValidation(t *testing.T) {
	bad := similarity.DefaultThresholds()
	bad.Title = 1.5
	if _, err := similarity.NewComparator(bad, similarity.Renormalize); err == nil {
		t.Fatal("expected threshold validation error")
	}
	if _, err := similarity.NewComparator(similarity.DefaultThresholds(), "sometimes"); err == nil {
		t.Fatal("expected policy validation error")
	}
	if _, err := similarity.ParseMethods([]string{"image_hash", "audio"}); err == nil {
		t.Fatal("expected unknown method error")
	}
}

func TestCombineScores(t *testing.T) {
	if s := similarity.CombineScores(similarity.Score{}, similarity.Score{}, similarity.Score{}); s.Present {
		t.Fatal("expected absent combined score")
	}
	if s := similarity.CombineScores(similarity.Score{}, similarity.Some(0.9), similarity.Score{}); s.Present {
		t.Fatalf("expected absent combined score with one signal, got %v", s)
	}
	s := similarity.CombineScores(similarity.Score{}, similarity.Some(0.8), similarity.Some(0.6))
	if math.Abs(s.Value-0.7) > 1e-9 {
		t.Fatalf("expected renormalized 0.7, got %v", s.Value)
	}
	s = similarity.CombineScores(similarity.Some(1), similarity.Some(0.5), similarity.Some(0.5))
	if math.Abs(s.Value-0.75) > 1e-9 {
		t.Fatalf("expected 0.75, got %v", s.Value)
	}
}
