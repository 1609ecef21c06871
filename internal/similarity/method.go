package similarity

import (
	"fmt"
	"strings"
)

// Method names the signal that qualified a pair as a duplicate candidate.
type Method string

const (
	MethodImageHash Method = "image_hash"
	MethodTitle     Method = "title"
	MethodMetadata  Method = "metadata"
	MethodCombined  Method = "combined"
)

// AllMethods lists methods in tie-break order: when two methods qualify with
// equal scores the earlier one is reported.
var AllMethods = []Method{MethodImageHash, MethodMetadata, MethodTitle, MethodCombined}

// ParseMethod validates a method name.
func ParseMethod(value string) (Method, error) {
	m := Method(strings.ToLower(strings.TrimSpace(value)))
	switch m {
	case MethodImageHash, MethodTitle, MethodMetadata, MethodCombined:
		return m, nil
	}
	return "", fmt.Errorf("unknown detection method %q", value)
}

// ParseMethods validates a list of method names. An empty list selects all methods.
func ParseMethods(values []string) ([]Method, error) {
	if len(values) == 0 {
		return append([]Method(nil), AllMethods...), nil
	}
	out := make([]Method, 0, len(values))
	for _, v := range values {
		m, err := ParseMethod(v)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, nil
}

// Score is a similarity in [0,1] or an absent signal.
type Score struct {
	Value   float64
	Present bool
}

// Some returns a present score clamped to [0,1].
func Some(v float64) Score {
	switch {
	case v < 0:
		v = 0
	case v > 1:
		v = 1
	}
	return Score{Value: v, Present: true}
}

// Ptr returns the score as a pointer, nil when absent. Used for nullable storage.
func (s Score) Ptr() *float64 {
	if !s.Present {
		return nil
	}
	v := s.Value
	return &v
}

func (s Score) String() string {
	if !s.Present {
		return "-"
	}
	return fmt.Sprintf("%.3f", s.Value)
}
