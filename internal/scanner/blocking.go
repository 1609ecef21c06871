package scanner

import (
	"cmp"
	"slices"
	"sort"

	"artdedup/internal/similarity"
)

// shouldCompare is the blocking rule: records are compared when their years
// are within window, when either year is unknown, or when both carry
// fingerprints.
func shouldCompare(a, b *similarity.Profile, window int) bool {
	if a.Year == nil || b.Year == nil {
		return true
	}
	diff := *a.Year - *b.Year
	if diff < 0 {
		diff = -diff
	}
	if diff <= window {
		return true
	}
	return a.HasFingerprint() && b.HasFingerprint()
}

// forEachPair visits every pair that passes shouldCompare exactly once
// without testing all n² pairs: dated records are walked in year order with a
// sliding window, fingerprinted records beyond the window are found by binary
// search, and undated records are compared with everything. done is called
// once per record after its pairs were visited. It returns false when compare
// stopped the walk.
func forEachPair(profiles []*similarity.Profile, window int, compare func(a, b *similarity.Profile) bool, done func()) bool {
	var dated, undated []*similarity.Profile
	for _, p := range profiles {
		if p.Year != nil {
			dated = append(dated, p)
		} else {
			undated = append(undated, p)
		}
	}
	slices.SortStableFunc(dated, func(a, b *similarity.Profile) int {
		if c := cmp.Compare(*a.Year, *b.Year); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	var fingerprinted []*similarity.Profile
	for _, p := range dated {
		if p.HasFingerprint() {
			fingerprinted = append(fingerprinted, p)
		}
	}

	for i, a := range dated {
		year := *a.Year
		for _, b := range dated[i+1:] {
			if *b.Year-year > window {
				break
			}
			if !compare(a, b) {
				return false
			}
		}
		if a.HasFingerprint() {
			start := sort.Search(len(fingerprinted), func(k int) bool { return *fingerprinted[k].Year > year+window })
			for _, b := range fingerprinted[start:] {
				if !compare(a, b) {
					return false
				}
			}
		}
		done()
	}

	for i, a := range undated {
		for _, b := range dated {
			if !compare(a, b) {
				return false
			}
		}
		for _, b := range undated[i+1:] {
			if !compare(a, b) {
				return false
			}
		}
		done()
	}
	return true
}
