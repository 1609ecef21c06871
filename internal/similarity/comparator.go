package similarity

import (
	"fmt"
	"slices"
)

// Thresholds are the minimum scores at which each method marks a candidate.
type Thresholds struct {
	ImageHash float64 `json:"image_hash"`
	Title     float64 `json:"title"`
	Metadata  float64 `json:"metadata"`
	Combined  float64 `json:"combined"`
}

// DefaultThresholds returns image 0.80, title 0.85, metadata 0.75, combined 0.80.
func DefaultThresholds() Thresholds {
	return Thresholds{ImageHash: 0.80, Title: 0.85, Metadata: 0.75, Combined: 0.80}
}

// For returns the threshold of one method.
func (t Thresholds) For(m Method) float64 {
	switch m {
	case MethodImageHash:
		return t.ImageHash
	case MethodTitle:
		return t.Title
	case MethodMetadata:
		return t.Metadata
	case MethodCombined:
		return t.Combined
	}
	return 1
}

// Validate checks every threshold lies in [0,1].
func (t Thresholds) Validate() error {
	for _, m := range AllMethods {
		if v := t.For(m); v < 0 || v > 1 {
			return fmt.Errorf("%s threshold must be between 0 and 1, got %v", m, v)
		}
	}
	return nil
}

// Result holds every signal for a pair plus the best qualifying method.
type Result struct {
	Image     Score
	Title     Score
	Metadata  Score
	Combined  Score
	Method    Method
	Score     float64
	Qualified bool
}

// ScoreFor returns the signal behind one method.
func (r Result) ScoreFor(m Method) Score {
	switch m {
	case MethodImageHash:
		return r.Image
	case MethodTitle:
		return r.Title
	case MethodMetadata:
		return r.Metadata
	case MethodCombined:
		return r.Combined
	}
	return Score{}
}

// Comparator applies the comparators and threshold policy to record pairs.
// It is immutable and safe for concurrent use.
type Comparator struct {
	thresholds Thresholds
	policy     MissingFieldPolicy
	methods    []Method
}

// NewComparator builds a comparator. An empty method list enables all methods.
func NewComparator(thresholds Thresholds, policy MissingFieldPolicy, methods ...Method) (*Comparator, error) {
	if err := thresholds.Validate(); err != nil {
		return nil, err
	}
	if policy == "" {
		policy = Renormalize
	}
	if policy != Renormalize && policy != ZeroFill {
		return nil, fmt.Errorf("unknown missing field policy %q", policy)
	}
	enabled := make([]Method, 0, len(AllMethods))
	for _, m := range AllMethods {
		if len(methods) == 0 || slices.Contains(methods, m) {
			enabled = append(enabled, m)
		}
	}
	if len(enabled) == 0 {
		return nil, fmt.Errorf("no known detection methods in %v", methods)
	}
	return &Comparator{thresholds: thresholds, policy: policy, methods: enabled}, nil
}

// Thresholds returns the configured thresholds.
func (c *Comparator) Thresholds() Thresholds { return c.thresholds }

// Methods returns the enabled methods in tie-break order.
func (c *Comparator) Methods() []Method { return append([]Method(nil), c.methods...) }

// Evaluate scores a pair. The result is the same for (a, b) and (b, a).
func (c *Comparator) Evaluate(a, b *Profile) Result {
	var r Result
	r.Image = CompareImages(a.Fingerprints, b.Fingerprints)
	r.Title = compareNormalizedTitles(a.Title, b.Title)
	r.Metadata = CompareMetadata(a, b, c.policy)
	r.Combined = CombineScores(r.Image, r.Title, r.Metadata)

	for _, m := range c.methods {
		s := r.ScoreFor(m)
		if !s.Present || s.Value < c.thresholds.For(m) {
			continue
		}
		if !r.Qualified || s.Value > r.Score {
			r.Method = m
			r.Score = s.Value
			r.Qualified = true
		}
	}
	return r
}
