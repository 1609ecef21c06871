// Package resolution moves duplicate candidates through operator review.
//
// A pending candidate is resolved once, to not_duplicate, ignored,
// confirmed_duplicate or merged. Confirmed candidates may still be merged.
// Reset deletes a resolved, unmerged candidate so a later scan can detect the
// pair again.
package resolution
