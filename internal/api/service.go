package api

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"artdedup/internal/merge"
	"artdedup/internal/resolution"
	"artdedup/internal/scanner"
	"artdedup/internal/services"
	"artdedup/internal/similarity"
	"artdedup/internal/store"
)

// Service exposes the dedup operations with wire-format inputs and outputs.
type Service struct {
	store    *store.Store
	scanner  *scanner.Scanner
	resolver *resolution.Resolver
	merger   *merge.Engine
}

// NewService wires the service around its collaborators.
func NewService(st *store.Store, sc *scanner.Scanner, resolver *resolution.Resolver, merger *merge.Engine) *Service {
	return &Service{store: st, scanner: sc, resolver: resolver, merger: merger}
}

func invalid(operation, format string, args ...any) error {
	return services.Wrap(services.ErrValidation, "api", operation, fmt.Sprintf(format, args...), nil)
}

// StartScan launches a background scan and returns its initial status.
func (s *Service) StartScan(ctx context.Context, req ScanRequest) (ScanStatus, error) {
	opts := scanner.Options{
		Scope: scanner.Scope{
			YearFrom: req.Scope.YearFrom,
			YearTo:   req.Scope.YearTo,
			IDs:      req.Scope.IDs,
		},
	}
	if len(req.Methods) > 0 {
		methods, err := similarity.ParseMethods(req.Methods)
		if err != nil {
			return ScanStatus{}, services.Wrap(services.ErrValidation, "api", "start scan", "", err)
		}
		opts.Methods = methods
	}
	if req.Thresholds != nil {
		t := s.scanner.Thresholds()
		overlay(&t.ImageHash, req.Thresholds.ImageHash)
		overlay(&t.Title, req.Thresholds.Title)
		overlay(&t.Metadata, req.Thresholds.Metadata)
		overlay(&t.Combined, req.Thresholds.Combined)
		if err := t.Validate(); err != nil {
			return ScanStatus{}, services.Wrap(services.ErrValidation, "api", "start scan", "", err)
		}
		opts.Thresholds = &t
	}
	handle, err := s.scanner.Start(ctx, opts)
	if err != nil {
		return ScanStatus{}, err
	}
	return s.ScanStatus(handle)
}

func overlay(dst *float64, value *float64) {
	if value != nil {
		*dst = *value
	}
}

// ScanStatus reports one scan.
func (s *Service) ScanStatus(handle string) (ScanStatus, error) {
	progress, err := s.scanner.Status(strings.TrimSpace(handle))
	if err != nil {
		return ScanStatus{}, err
	}
	return FromProgress(progress), nil
}

// ListScans reports every retained scan, oldest first.
func (s *Service) ListScans() []ScanStatus {
	scans := s.scanner.Scans()
	out := make([]ScanStatus, 0, len(scans))
	for _, p := range scans {
		out = append(out, FromProgress(p))
	}
	return out
}

// CancelScan stops a running scan.
func (s *Service) CancelScan(handle string) (ScanStatus, error) {
	progress, err := s.scanner.Cancel(strings.TrimSpace(handle))
	if err != nil {
		return ScanStatus{}, err
	}
	return FromProgress(progress), nil
}

// CheckRecord compares one record against the catalog.
func (s *Service) CheckRecord(ctx context.Context, id int64) (CheckResponse, error) {
	matches, err := s.scanner.CheckRecord(ctx, id)
	if err != nil {
		return CheckResponse{}, err
	}
	resp := CheckResponse{ArtworkID: id, Matches: make([]Match, 0, len(matches))}
	for _, m := range matches {
		resp.Matches = append(resp.Matches, FromMatch(m))
	}
	return resp, nil
}

// ListCandidates returns one page of candidates, highest score first.
func (s *Service) ListCandidates(ctx context.Context, q CandidateQuery) (CandidateListResponse, error) {
	var filter store.CandidateFilter
	if value := strings.TrimSpace(q.Status); value != "" {
		status, ok := store.ParseStatus(value)
		if !ok {
			return CandidateListResponse{}, invalid("list candidates", "unknown status %q", value)
		}
		filter.Status = status
	}
	if value := strings.TrimSpace(q.Method); value != "" {
		method, err := similarity.ParseMethod(value)
		if err != nil {
			return CandidateListResponse{}, services.Wrap(services.ErrValidation, "api", "list candidates", "", err)
		}
		filter.Method = method
	}
	if q.MinScore < 0 || q.MinScore > 1 {
		return CandidateListResponse{}, invalid("list candidates", "min score must be between 0 and 1, got %v", q.MinScore)
	}
	filter.MinScore = q.MinScore
	filter.ArtworkID = q.ArtworkID

	page := store.Page{Number: q.Page, Size: q.PageSize}.Normalize()
	list, total, err := s.store.ListCandidates(ctx, filter, page)
	if err != nil {
		return CandidateListResponse{}, err
	}
	return CandidateListResponse{
		Items:    FromCandidates(list),
		Total:    total,
		Page:     page.Number,
		PageSize: page.Size,
	}, nil
}

// CandidateStats counts candidates by status.
func (s *Service) CandidateStats(ctx context.Context) (map[string]int, error) {
	stats, err := s.store.CandidateStats(ctx)
	if err != nil {
		return nil, err
	}
	return CandidateStats(stats), nil
}

// GetCandidate returns a candidate with both of its records.
func (s *Service) GetCandidate(ctx context.Context, id int64) (CandidateDetail, error) {
	c, err := s.store.GetCandidate(ctx, id)
	if err != nil {
		return CandidateDetail{}, err
	}
	detail := CandidateDetail{Candidate: FromCandidate(c)}
	for _, slot := range []struct {
		id  int64
		dst **Artwork
	}{{c.ArtworkID1, &detail.ArtworkA}, {c.ArtworkID2, &detail.ArtworkB}} {
		a, err := s.store.GetArtwork(ctx, slot.id)
		switch {
		case err == nil:
			*slot.dst = FromArtwork(a)
		case errors.Is(err, services.ErrRecordNotFound):
		default:
			return CandidateDetail{}, err
		}
	}
	return detail, nil
}

// ResolveCandidate applies an operator decision to one candidate.
func (s *Service) ResolveCandidate(ctx context.Context, id int64, req ResolveRequest) (ResolveResponse, error) {
	res, err := resolution.ParseResolution(req.Resolution)
	if err != nil {
		return ResolveResponse{}, err
	}
	var policy merge.Policy
	if len(req.Policy) > 0 {
		if res != resolution.Merged {
			return ResolveResponse{}, invalid("resolve candidate", "a field policy only applies to the merged resolution")
		}
		if policy, err = merge.ParsePolicy(req.Policy); err != nil {
			return ResolveResponse{}, err
		}
	}
	result, err := s.resolver.Resolve(ctx, resolution.Request{
		CandidateID:   id,
		Resolution:    res,
		MergeTargetID: req.MergeTargetID,
		Reason:        req.Reason,
		Policy:        policy,
	})
	if err != nil {
		return ResolveResponse{}, err
	}
	return ResolveResponse{Candidate: FromCandidate(result.Candidate), Merge: FromSummary(result.Merge)}, nil
}

// BulkResolve applies one resolution to many candidates independently.
func (s *Service) BulkResolve(ctx context.Context, req BulkResolveRequest) (BulkResolveResponse, error) {
	if len(req.IDs) == 0 {
		return BulkResolveResponse{}, invalid("bulk resolve", "no candidate ids given")
	}
	res, err := resolution.ParseResolution(req.Resolution)
	if err != nil {
		return BulkResolveResponse{}, err
	}
	outcomes := s.resolver.BulkResolve(ctx, req.IDs, res, req.Reason)
	resp := BulkResolveResponse{Outcomes: make([]BulkOutcome, 0, len(outcomes))}
	for _, o := range outcomes {
		out := BulkOutcome{ID: o.ID, OK: o.Err == nil}
		if o.Err != nil {
			out.Error = o.Err.Error()
			out.Kind = o.Kind()
			resp.Failed++
		} else {
			c := FromCandidate(o.Candidate)
			out.Candidate = &c
			resp.Succeeded++
		}
		resp.Outcomes = append(resp.Outcomes, out)
	}
	return resp, nil
}

// ResetCandidate deletes a resolved candidate so it can be detected again.
func (s *Service) ResetCandidate(ctx context.Context, id int64) error {
	return s.resolver.Reset(ctx, id)
}

// Merge merges two records directly, or previews the merge when DryRun is set.
func (s *Service) Merge(ctx context.Context, req MergeRequest) (*MergeSummary, error) {
	policy, err := merge.ParsePolicy(req.Policy)
	if err != nil {
		return nil, err
	}
	mreq := merge.Request{
		SourceID:    req.SourceID,
		TargetID:    req.TargetID,
		Policy:      policy,
		CandidateID: req.CandidateID,
		Reason:      req.Reason,
	}
	if req.DryRun {
		preview, err := s.merger.Preview(ctx, mreq)
		if err != nil {
			return nil, err
		}
		return FromPreview(preview), nil
	}
	summary, err := s.merger.Merge(ctx, mreq)
	if err != nil {
		return nil, err
	}
	return FromSummary(summary), nil
}

// MergeHistory lists recent merges, newest first.
func (s *Service) MergeHistory(ctx context.Context, limit int) ([]MergeAudit, error) {
	audits, err := s.store.ListMergeAudits(ctx, limit)
	if err != nil {
		return nil, err
	}
	out := make([]MergeAudit, 0, len(audits))
	for _, a := range audits {
		out = append(out, FromAudit(a))
	}
	return out, nil
}

// Status reports catalog-level state. Daemon fields are left for the caller.
func (s *Service) Status(ctx context.Context) (DaemonStatus, error) {
	counts, err := s.CandidateStats(ctx)
	if err != nil {
		return DaemonStatus{}, err
	}
	return DaemonStatus{
		DatabasePath: s.store.Path(),
		Candidates:   counts,
		Scans:        s.ListScans(),
	}, nil
}
