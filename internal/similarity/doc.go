// Package similarity scores how likely two artwork records describe the same
// physical work.
//
// Three independent comparators (image, title, metadata) and a combined blend
// each return a Score in [0,1] that may be absent: an image score is absent
// when either record lacks a fingerprint, so it never drags a blend down.
// A Comparator applies per-method thresholds and reports the best qualifying
// method for a pair. Every comparison is symmetric and free of side effects.
package similarity
