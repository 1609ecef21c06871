package api

import (
	"time"

	"artdedup/internal/merge"
	"artdedup/internal/scanner"
	"artdedup/internal/similarity"
	"artdedup/internal/store"
)

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(dateTimeFormat)
}

func formatTimePtr(t *time.Time) string {
	if t == nil {
		return ""
	}
	return formatTime(*t)
}

func methodNames(methods []similarity.Method) []string {
	out := make([]string, len(methods))
	for i, m := range methods {
		out[i] = string(m)
	}
	return out
}

// FromProgress converts scanner progress into its wire form.
func FromProgress(p scanner.Progress) ScanStatus {
	status := ScanStatus{
		Handle:          p.Handle,
		State:           string(p.State),
		Processed:       p.Processed,
		Total:           p.Total,
		CandidatesFound: p.CandidatesFound,
		Errors:          p.Errors,
		Fingerprinted:   p.Fingerprinted,
		Skipped:         p.Skipped,
		Methods:         methodNames(p.Methods),
		StartedAt:       formatTime(p.StartedAt),
		FinishedAt:      formatTimePtr(p.FinishedAt),
		LastError:       p.LastError,
	}
	switch {
	case p.Total > 0:
		status.Percent = min(100, float64(p.Processed)*100/float64(p.Total))
	case p.Done():
		status.Percent = 100
	}
	return status
}

// FromCandidate converts a stored candidate.
func FromCandidate(c *store.Candidate) Candidate {
	if c == nil {
		return Candidate{}
	}
	return Candidate{
		ID:            c.ID,
		ArtworkID1:    c.ArtworkID1,
		ArtworkID2:    c.ArtworkID2,
		Method:        string(c.Method),
		Score:         c.Score,
		ImageScore:    c.ImageScore,
		TitleScore:    c.TitleScore,
		MetadataScore: c.MetadataScore,
		Status:        string(c.Status),
		Reason:        c.Reason,
		MergedInto:    c.MergedInto,
		DetectedAt:    formatTime(c.DetectedAt),
		ResolvedAt:    formatTimePtr(c.ResolvedAt),
	}
}

// FromCandidates converts a slice of candidates.
func FromCandidates(list []*store.Candidate) []Candidate {
	out := make([]Candidate, 0, len(list))
	for _, c := range list {
		out = append(out, FromCandidate(c))
	}
	return out
}

// FromArtwork converts a catalog record.
func FromArtwork(a *store.Artwork) *Artwork {
	if a == nil {
		return nil
	}
	return &Artwork{
		ID:            a.ID,
		Title:         a.Title,
		Year:          a.Year,
		YearCirca:     a.YearCirca,
		Medium:        a.Medium,
		Dimensions:    a.Dimensions,
		ArtType:       a.ArtType,
		CatalogNumber: a.CatalogNumber,
		SourceURL:     a.SourceURL,
		Version:       a.Version,
		UpdatedAt:     formatTime(a.UpdatedAt),
	}
}

// FromMatch converts a single-record check match.
func FromMatch(m scanner.Match) Match {
	return Match{
		ArtworkID:   m.OtherID,
		Method:      string(m.Method),
		Score:       m.Score,
		CandidateID: m.CandidateID,
		Status:      string(m.Status),
		Existing:    m.Existing,
	}
}

// FromSummary converts a completed merge.
func FromSummary(s *merge.Summary) *MergeSummary {
	if s == nil {
		return nil
	}
	return &MergeSummary{
		SourceID:               s.SourceID,
		TargetID:               s.TargetID,
		CandidateID:            s.CandidateID,
		AuditID:                s.AuditID,
		FieldsChanged:          nonNil(s.FieldsChanged),
		Children:               s.Children,
		CandidatesRepointed:    s.CandidatesRepointed,
		RelationshipsRepointed: s.RelationshipsRepointed,
		Target:                 FromArtwork(s.Target),
	}
}

// FromPreview converts a merge preview.
func FromPreview(p *merge.Preview) *MergeSummary {
	if p == nil {
		return nil
	}
	return &MergeSummary{
		SourceID:      p.Source.ID,
		TargetID:      p.Target.ID,
		FieldsChanged: nonNil(p.FieldsChanged),
		Children:      p.Children,
		DryRun:        true,
		Target:        FromArtwork(p.Merged),
	}
}

// FromAudit converts a merge audit row.
func FromAudit(a *store.MergeAudit) MergeAudit {
	return MergeAudit{
		ID:                 a.ID,
		SourceID:           a.SourceID,
		TargetID:           a.TargetID,
		CandidateID:        a.CandidateID,
		Policy:             a.Policy,
		ChildrenReassigned: a.ChildrenReassigned,
		FieldsChanged:      nonNil(a.FieldsChanged),
		MergedAt:           formatTime(a.MergedAt),
	}
}

// FromRelationship converts a curatorial relationship.
func FromRelationship(r *store.Relationship) Relationship {
	return Relationship{
		ID:        r.ID,
		FromID:    r.FromID,
		ToID:      r.ToID,
		Kind:      string(r.Kind),
		Note:      r.Note,
		CreatedAt: formatTime(r.CreatedAt),
	}
}

// CandidateStats normalizes status counts so every status is present.
func CandidateStats(stats map[store.CandidateStatus]int) map[string]int {
	out := make(map[string]int, len(stats))
	for _, status := range store.AllStatuses() {
		out[string(status)] = stats[status]
	}
	return out
}

func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}
