package api

// dateTimeFormat is used for RFC3339 timestamps in API payloads.
const dateTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// Thresholds overrides individual method thresholds; nil fields keep the
// configured value.
type Thresholds struct {
	ImageHash *float64 `json:"imageHash,omitempty"`
	Title     *float64 `json:"title,omitempty"`
	Metadata  *float64 `json:"metadata,omitempty"`
	Combined  *float64 `json:"combined,omitempty"`
}

// ScanScope restricts a full scan.
type ScanScope struct {
	YearFrom *int    `json:"yearFrom,omitempty"`
	YearTo   *int    `json:"yearTo,omitempty"`
	IDs      []int64 `json:"ids,omitempty"`
}

// ScanRequest starts a full scan.
type ScanRequest struct {
	Methods    []string    `json:"methods,omitempty"`
	Thresholds *Thresholds `json:"thresholds,omitempty"`
	Scope      ScanScope   `json:"scope"`
}

// ScanStatus reports the progress of a background scan.
type ScanStatus struct {
	Handle          string   `json:"handle"`
	State           string   `json:"state"`
	Processed       int64    `json:"processed"`
	Total           int64    `json:"total"`
	Percent         float64  `json:"percent"`
	CandidatesFound int64    `json:"candidatesFound"`
	Errors          int64    `json:"errors"`
	Fingerprinted   int64    `json:"fingerprinted"`
	Skipped         int64    `json:"skipped"`
	Methods         []string `json:"methods"`
	StartedAt       string   `json:"startedAt"`
	FinishedAt      string   `json:"finishedAt,omitempty"`
	LastError       string   `json:"lastError,omitempty"`
}

// ScanListResponse wraps retained scans.
type ScanListResponse struct {
	Scans []ScanStatus `json:"scans"`
}

// Match is one qualifying pair found by a single-record check.
type Match struct {
	ArtworkID   int64   `json:"artworkId"`
	Method      string  `json:"method"`
	Score       float64 `json:"score"`
	CandidateID int64   `json:"candidateId"`
	Status      string  `json:"status"`
	Existing    bool    `json:"existing"`
}

// CheckResponse lists the matches of a single-record check.
type CheckResponse struct {
	ArtworkID int64   `json:"artworkId"`
	Matches   []Match `json:"matches"`
}

// Candidate describes a duplicate candidate.
type Candidate struct {
	ID            int64    `json:"id"`
	ArtworkID1    int64    `json:"artworkId1"`
	ArtworkID2    int64    `json:"artworkId2"`
	Method        string   `json:"method"`
	Score         float64  `json:"score"`
	ImageScore    *float64 `json:"imageScore,omitempty"`
	TitleScore    *float64 `json:"titleScore,omitempty"`
	MetadataScore *float64 `json:"metadataScore,omitempty"`
	Status        string   `json:"status"`
	Reason        string   `json:"reason,omitempty"`
	MergedInto    *int64   `json:"mergedInto,omitempty"`
	DetectedAt    string   `json:"detectedAt,omitempty"`
	ResolvedAt    string   `json:"resolvedAt,omitempty"`
}

// Artwork is the subset of a catalog record shown next to a candidate.
type Artwork struct {
	ID            int64  `json:"id"`
	Title         string `json:"title"`
	Year          *int   `json:"year,omitempty"`
	YearCirca     bool   `json:"yearCirca,omitempty"`
	Medium        string `json:"medium,omitempty"`
	Dimensions    string `json:"dimensions,omitempty"`
	ArtType       string `json:"artType,omitempty"`
	CatalogNumber string `json:"catalogNumber,omitempty"`
	SourceURL     string `json:"sourceUrl,omitempty"`
	Version       int64  `json:"version"`
	UpdatedAt     string `json:"updatedAt,omitempty"`
}

// CandidateDetail pairs a candidate with both records. A record that has
// since been merged away is omitted.
type CandidateDetail struct {
	Candidate Candidate `json:"candidate"`
	ArtworkA  *Artwork  `json:"artworkA,omitempty"`
	ArtworkB  *Artwork  `json:"artworkB,omitempty"`
}

// CandidateQuery filters and pages a candidate listing.
type CandidateQuery struct {
	Status    string
	MinScore  float64
	Method    string
	ArtworkID int64
	Page      int
	PageSize  int
}

// CandidateListResponse is one page of candidates.
type CandidateListResponse struct {
	Items    []Candidate `json:"items"`
	Total    int         `json:"total"`
	Page     int         `json:"page"`
	PageSize int         `json:"pageSize"`
}

// CandidateStatsResponse counts candidates by status.
type CandidateStatsResponse struct {
	Counts map[string]int `json:"counts"`
}

// ResolveRequest resolves one candidate.
type ResolveRequest struct {
	Resolution    string            `json:"resolution"`
	MergeTargetID int64             `json:"mergeTargetId,omitempty"`
	Reason        string            `json:"reason,omitempty"`
	Policy        map[string]string `json:"policy,omitempty"`
}

// ResolveResponse reports a resolution, with the merge summary when merged.
type ResolveResponse struct {
	Candidate Candidate     `json:"candidate"`
	Merge     *MergeSummary `json:"merge,omitempty"`
}

// BulkResolveRequest applies one resolution to many candidates.
type BulkResolveRequest struct {
	IDs        []int64 `json:"ids"`
	Resolution string  `json:"resolution"`
	Reason     string  `json:"reason,omitempty"`
}

// BulkOutcome is the result for one id of a bulk resolution.
type BulkOutcome struct {
	ID        int64      `json:"id"`
	OK        bool       `json:"ok"`
	Candidate *Candidate `json:"candidate,omitempty"`
	Error     string     `json:"error,omitempty"`
	Kind      string     `json:"kind,omitempty"`
}

// BulkResolveResponse lists per-id outcomes in request order.
type BulkResolveResponse struct {
	Outcomes  []BulkOutcome `json:"outcomes"`
	Succeeded int           `json:"succeeded"`
	Failed    int           `json:"failed"`
}

// MergeRequest merges two records directly.
type MergeRequest struct {
	SourceID    int64             `json:"sourceId"`
	TargetID    int64             `json:"targetId"`
	Policy      map[string]string `json:"policy,omitempty"`
	CandidateID int64             `json:"candidateId,omitempty"`
	Reason      string            `json:"reason,omitempty"`
	DryRun      bool              `json:"dryRun,omitempty"`
}

// MergeSummary reports a completed or previewed merge.
type MergeSummary struct {
	SourceID               int64            `json:"sourceId"`
	TargetID               int64            `json:"targetId"`
	CandidateID            int64            `json:"candidateId,omitempty"`
	AuditID                int64            `json:"auditId,omitempty"`
	FieldsChanged          []string         `json:"fieldsChanged"`
	Children               map[string]int64 `json:"childrenReassigned"`
	CandidatesRepointed    int64            `json:"candidatesRepointed"`
	RelationshipsRepointed int64            `json:"relationshipsRepointed"`
	DryRun                 bool             `json:"dryRun,omitempty"`
	Target                 *Artwork         `json:"target,omitempty"`
}

// MergeAudit is one merge history entry.
type MergeAudit struct {
	ID                 int64             `json:"id"`
	SourceID           int64             `json:"sourceId"`
	TargetID           int64             `json:"targetId"`
	CandidateID        *int64            `json:"candidateId,omitempty"`
	Policy             map[string]string `json:"policy"`
	ChildrenReassigned int64             `json:"childrenReassigned"`
	FieldsChanged      []string          `json:"fieldsChanged"`
	MergedAt           string            `json:"mergedAt"`
}

// MergeHistoryResponse wraps merge audit entries, newest first.
type MergeHistoryResponse struct {
	Merges []MergeAudit `json:"merges"`
}

// DaemonStatus aggregates daemon runtime information for API consumers.
type DaemonStatus struct {
	Running      bool           `json:"running"`
	PID          int            `json:"pid"`
	DatabasePath string         `json:"databasePath"`
	LockFilePath string         `json:"lockFilePath"`
	Candidates   map[string]int `json:"candidates"`
	Scans        []ScanStatus   `json:"scans"`
}

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
}

// Relationship is a curatorial link between two artworks.
type Relationship struct {
	ID        int64  `json:"id"`
	FromID    int64  `json:"fromId"`
	ToID      int64  `json:"toId"`
	Kind      string `json:"kind"`
	Note      string `json:"note,omitempty"`
	CreatedAt string `json:"createdAt"`
}

// CatalogEntry describes one artwork with its relationships and, after an
// add, the duplicate check run against it.
type CatalogEntry struct {
	Artwork       *Artwork       `json:"artwork"`
	Relationships []Relationship `json:"relationships"`
	Matches       []Match        `json:"matches,omitempty"`
}
