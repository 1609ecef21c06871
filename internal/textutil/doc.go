// Package textutil provides text processing utilities for artwork title
// matching, dimension normalization, and filename sanitization.
//
// Titles are normalized by decomposing Unicode (NFKD), dropping combining
// marks, case folding, spelling out ampersands, and replacing punctuation with
// spaces before collapsing whitespace runs. Similarity between normalized
// strings is measured with a longest-common-subsequence ratio.
package textutil
