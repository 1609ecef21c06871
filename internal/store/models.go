package store

import (
	"fmt"
	"strings"
	"time"

	"artdedup/internal/similarity"
)

// Artwork is a catalog record.
type Artwork struct {
	ID                int64
	Title             string
	Year              *int
	YearCirca         bool
	Medium            string
	Dimensions        string
	ArtType           string
	Description       string
	Signed            string
	Inscription       string
	Provenance        string
	ExhibitionHistory string
	Literature        string
	Condition         string
	Notes             string
	SourcePlatform    string
	SourceURL         string
	CatalogNumber     string
	Version           int64
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// Image is one ordered image of an artwork.
type Image struct {
	ID        int64
	ArtworkID int64
	Position  int
	IsPrimary bool
	Path      string
	URL       string
	Width     int
	Height    int
	// Fingerprint is the cached 16-digit hex perceptual hash, empty until generated.
	Fingerprint      string
	FingerprintError string
	CreatedAt        time.Time
}

// CandidateStatus is the review state of a duplicate candidate.
type CandidateStatus string

const (
	StatusPending            CandidateStatus = "pending"
	StatusConfirmedDuplicate CandidateStatus = "confirmed_duplicate"
	StatusNotDuplicate       CandidateStatus = "not_duplicate"
	StatusMerged             CandidateStatus = "merged"
	StatusIgnored            CandidateStatus = "ignored"
)

var allStatuses = []CandidateStatus{
	StatusPending,
	StatusConfirmedDuplicate,
	StatusNotDuplicate,
	StatusMerged,
	StatusIgnored,
}

// AllStatuses returns every candidate status.
func AllStatuses() []CandidateStatus {
	return append([]CandidateStatus(nil), allStatuses...)
}

// ParseStatus validates a status name.
func ParseStatus(value string) (CandidateStatus, bool) {
	s := CandidateStatus(strings.ToLower(strings.TrimSpace(value)))
	for _, candidate := range allStatuses {
		if candidate == s {
			return s, true
		}
	}
	return "", false
}

// IsTerminal reports whether the status ends the review of a pair.
func (s CandidateStatus) IsTerminal() bool {
	return s != StatusPending
}

// Candidate is a detected, unordered pair of artworks awaiting or past review.
type Candidate struct {
	ID            int64
	ArtworkID1    int64
	ArtworkID2    int64
	Method        similarity.Method
	Score         float64
	ImageScore    *float64
	TitleScore    *float64
	MetadataScore *float64
	Status        CandidateStatus
	Reason        string
	MergedInto    *int64
	DetectedAt    time.Time
	ResolvedAt    *time.Time
}

// Pair returns the normalized pair key.
func (c *Candidate) Pair() PairKey {
	return PairKey{Low: c.ArtworkID1, High: c.ArtworkID2}
}

// Other returns the id paired with id, or 0 when id is not part of the pair.
func (c *Candidate) Other(id int64) int64 {
	switch id {
	case c.ArtworkID1:
		return c.ArtworkID2
	case c.ArtworkID2:
		return c.ArtworkID1
	}
	return 0
}

// PairKey is an unordered artwork pair with Low < High.
type PairKey struct {
	Low  int64
	High int64
}

// NewPairKey orders a and b.
func NewPairKey(a, b int64) PairKey {
	if a > b {
		a, b = b, a
	}
	return PairKey{Low: a, High: b}
}

func (k PairKey) String() string {
	return fmt.Sprintf("%d-%d", k.Low, k.High)
}

// NewCandidate is the insert payload for a detected pair. The ids may be in
// either order.
type NewCandidate struct {
	ArtworkA      int64
	ArtworkB      int64
	Method        similarity.Method
	Score         float64
	ImageScore    *float64
	TitleScore    *float64
	MetadataScore *float64
}

// CandidateFromResult builds an insert payload from a comparator result.
func CandidateFromResult(a, b int64, r similarity.Result) NewCandidate {
	return NewCandidate{
		ArtworkA:      a,
		ArtworkB:      b,
		Method:        r.Method,
		Score:         r.Score,
		ImageScore:    r.Image.Ptr(),
		TitleScore:    r.Title.Ptr(),
		MetadataScore: r.Metadata.Ptr(),
	}
}

// CandidateFilter narrows ListCandidates. Zero values match everything.
type CandidateFilter struct {
	Status    CandidateStatus
	MinScore  float64
	Method    similarity.Method
	ArtworkID int64
}

// Page selects one page of a listing.
type Page struct {
	Number int
	Size   int
}

const (
	DefaultPageSize = 50
	MaxPageSize     = 500
)

// Normalize clamps the page to Number >= 1 and Size in 1..MaxPageSize,
// defaulting Size to DefaultPageSize.
func (p Page) Normalize() Page {
	if p.Number < 1 {
		p.Number = 1
	}
	switch {
	case p.Size <= 0:
		p.Size = DefaultPageSize
	case p.Size > MaxPageSize:
		p.Size = MaxPageSize
	}
	return p
}

func (p Page) offset() int {
	return (p.Number - 1) * p.Size
}

// ArtworkFilter scopes artwork listings and scans. Zero values match everything.
type ArtworkFilter struct {
	YearFrom *int
	YearTo   *int
	IDs      []int64
	// AfterID is the keyset cursor for batched iteration.
	AfterID int64
	Limit   int
}

// MergeAudit records one completed merge.
type MergeAudit struct {
	ID                 int64
	SourceID           int64
	TargetID           int64
	CandidateID        *int64
	Policy             map[string]string
	ChildrenReassigned int64
	FieldsChanged      []string
	MergedAt           time.Time
}

// RelationshipKind is a curatorial link between two distinct works.
type RelationshipKind string

const (
	RelationStudyFor  RelationshipKind = "study_for"
	RelationVariantOf RelationshipKind = "variant_of"
	RelationCopyAfter RelationshipKind = "copy_after"
	RelationPendantOf RelationshipKind = "pendant_of"
)

var relationshipKinds = []RelationshipKind{RelationStudyFor, RelationVariantOf, RelationCopyAfter, RelationPendantOf}

// ParseRelationshipKind validates a relationship kind.
func ParseRelationshipKind(value string) (RelationshipKind, bool) {
	k := RelationshipKind(strings.ToLower(strings.TrimSpace(value)))
	for _, kind := range relationshipKinds {
		if kind == k {
			return k, true
		}
	}
	return "", false
}

// Relationship links two artworks that are related but not duplicates.
type Relationship struct {
	ID        int64
	FromID    int64
	ToID      int64
	Kind      RelationshipKind
	Note      string
	CreatedAt time.Time
}

// ChildTable declares a table whose rows reference an artwork and must follow
// it through a merge.
type ChildTable struct {
	Table  string
	Column string
	// UniqueWith names the column that is unique together with Column; rows
	// of the source that would collide with the target are dropped.
	UniqueWith string
	// Positioned tables keep an ordered position and a single primary row.
	Positioned bool
}

var childTables = []ChildTable{
	{Table: "artwork_images", Column: "artwork_id", Positioned: true},
	{Table: "notifications", Column: "artwork_id"},
	{Table: "artwork_exhibitions", Column: "artwork_id", UniqueWith: "exhibition_id"},
	{Table: "alert_results", Column: "promoted_to_artwork_id"},
	{Table: "research_leads", Column: "found_artwork_id"},
}

// ChildTables returns every table that references artworks, in reassignment order.
func ChildTables() []ChildTable {
	return append([]ChildTable(nil), childTables...)
}
