package resolution

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"artdedup/internal/logging"
	"artdedup/internal/merge"
	"artdedup/internal/metrics"
	"artdedup/internal/services"
	"artdedup/internal/store"
)

// Resolution is an operator decision on a candidate.
type Resolution string

const (
	NotDuplicate       Resolution = "not_duplicate"
	Ignored            Resolution = "ignored"
	ConfirmedDuplicate Resolution = "confirmed_duplicate"
	Merged             Resolution = "merged"
)

// ParseResolution validates a resolution name.
func ParseResolution(value string) (Resolution, error) {
	switch r := Resolution(strings.ToLower(strings.TrimSpace(value))); r {
	case NotDuplicate, Ignored, ConfirmedDuplicate, Merged:
		return r, nil
	}
	return "", services.Wrap(services.ErrValidation, "resolution", "parse resolution",
		fmt.Sprintf("unknown resolution %q (want not_duplicate, ignored, confirmed_duplicate or merged)", value), nil)
}

func (r Resolution) status() store.CandidateStatus {
	return store.CandidateStatus(r)
}

// resettable are the resolved states an operator may undo.
var resettable = []store.CandidateStatus{
	store.StatusConfirmedDuplicate,
	store.StatusNotDuplicate,
	store.StatusIgnored,
}

// Request is one resolution.
type Request struct {
	CandidateID int64
	Resolution  Resolution
	// MergeTargetID picks the surviving record for a merge; zero means the
	// lower id of the pair.
	MergeTargetID int64
	Reason        string
	Policy        merge.Policy
}

// Result is the candidate after resolution, plus the merge summary when the
// resolution merged the pair.
type Result struct {
	Candidate *store.Candidate
	Merge     *merge.Summary
}

// Outcome is the per-id result of a bulk resolution.
type Outcome struct {
	ID        int64
	Candidate *store.Candidate
	Err       error
}

// Kind returns the outcome's error kind, or "" on success.
func (o Outcome) Kind() string {
	return services.Kind(o.Err)
}

// Resolver applies operator decisions.
type Resolver struct {
	store  *store.Store
	merger *merge.Engine
	logger *slog.Logger
}

// New returns a resolver that merges through engine.
func New(st *store.Store, engine *merge.Engine, logger *slog.Logger) *Resolver {
	return &Resolver{store: st, merger: engine, logger: logging.NewComponentLogger(logger, "resolution")}
}

// Resolve applies req to a single candidate.
func (r *Resolver) Resolve(ctx context.Context, req Request) (*Result, error) {
	if _, err := ParseResolution(string(req.Resolution)); err != nil {
		return nil, err
	}
	logger := logging.WithContext(ctx, r.logger).With(
		logging.Int64(logging.FieldCandidateID, req.CandidateID),
		logging.String("resolution", string(req.Resolution)),
	)

	if req.Resolution == Merged {
		result, err := r.merge(ctx, req)
		if err != nil {
			return nil, err
		}
		metrics.CandidatesResolved.WithLabelValues(string(Merged)).Inc()
		logger.Info("candidate resolved", logging.Int64("target_id", result.Merge.TargetID))
		return result, nil
	}

	if req.MergeTargetID != 0 {
		return nil, services.Wrap(services.ErrValidation, "resolution", "resolve",
			"merge target only applies to the merged resolution", nil)
	}
	c, err := r.store.TransitionCandidate(ctx, req.CandidateID,
		[]store.CandidateStatus{store.StatusPending}, req.Resolution.status(), req.Reason)
	if err != nil {
		return nil, err
	}
	metrics.CandidatesResolved.WithLabelValues(string(req.Resolution)).Inc()
	logger.Info("candidate resolved")
	return &Result{Candidate: c}, nil
}

func (r *Resolver) merge(ctx context.Context, req Request) (*Result, error) {
	if r.merger == nil {
		return nil, errors.New("resolver has no merge engine")
	}
	c, err := r.store.GetCandidate(ctx, req.CandidateID)
	if err != nil {
		return nil, err
	}
	if c.Status != store.StatusPending && c.Status != store.StatusConfirmedDuplicate {
		return nil, services.Wrap(services.ErrInvalidTransition, "resolution", "merge",
			fmt.Sprintf("candidate %d is %s, cannot become merged", c.ID, c.Status), nil)
	}
	target := req.MergeTargetID
	if target == 0 {
		target = c.ArtworkID1
	}
	source := c.Other(target)
	if source == 0 {
		return nil, services.Wrap(services.ErrValidation, "resolution", "merge",
			fmt.Sprintf("merge target %d is not part of candidate %d", target, c.ID), nil)
	}

	summary, err := r.merger.Merge(ctx, merge.Request{
		SourceID:    source,
		TargetID:    target,
		Policy:      req.Policy,
		CandidateID: c.ID,
		Reason:      req.Reason,
	})
	if err != nil {
		return nil, err
	}
	updated, err := r.store.GetCandidate(ctx, c.ID)
	if err != nil {
		return nil, err
	}
	return &Result{Candidate: updated, Merge: summary}, nil
}

// BulkResolve resolves each id independently. Merging is not available in
// bulk because every merge needs its own target decision.
func (r *Resolver) BulkResolve(ctx context.Context, ids []int64, resolution Resolution, reason string) []Outcome {
	outcomes := make([]Outcome, 0, len(ids))
	_, parseErr := ParseResolution(string(resolution))
	for _, id := range ids {
		out := Outcome{ID: id}
		switch {
		case parseErr != nil:
			out.Err = parseErr
		case resolution == Merged:
			out.Err = services.Wrap(services.ErrValidation, "resolution", "bulk resolve",
				"merged requires a per-candidate target; resolve individually", nil)
		case ctx.Err() != nil:
			out.Err = ctx.Err()
		default:
			result, err := r.Resolve(ctx, Request{CandidateID: id, Resolution: resolution, Reason: reason})
			if err != nil {
				out.Err = err
			} else {
				out.Candidate = result.Candidate
			}
		}
		outcomes = append(outcomes, out)
	}

	failed := 0
	for _, out := range outcomes {
		if out.Err != nil {
			failed++
		}
	}
	logging.WithContext(ctx, r.logger).Info("bulk resolution finished",
		logging.String("resolution", string(resolution)),
		logging.Int("requested", len(ids)),
		logging.Int("failed", failed),
	)
	return outcomes
}

// Reset deletes a resolved candidate so the pair can be detected again.
// Pending and merged candidates cannot be reset.
func (r *Resolver) Reset(ctx context.Context, id int64) error {
	if err := r.store.DeleteCandidate(ctx, id, resettable); err != nil {
		return err
	}
	metrics.CandidatesReset.Inc()
	logging.WithContext(ctx, r.logger).Info("candidate reset", logging.Int64(logging.FieldCandidateID, id))
	return nil
}
