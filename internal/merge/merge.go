package merge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"artdedup/internal/logging"
	"artdedup/internal/metrics"
	"artdedup/internal/services"
	"artdedup/internal/store"
)

// Request describes one merge. Source is folded into Target and deleted.
type Request struct {
	SourceID int64
	TargetID int64
	Policy   Policy
	// CandidateID optionally names the candidate being resolved. When zero the
	// open candidate for the pair, if any, is used.
	CandidateID int64
	Reason      string
}

// Summary reports a completed merge.
type Summary struct {
	SourceID               int64
	TargetID               int64
	CandidateID            int64
	AuditID                int64
	FieldsChanged          []string
	Children               map[string]int64
	CandidatesRepointed    int64
	CandidatesDropped      int64
	RelationshipsRepointed int64
	Target                 *store.Artwork
}

// ChildrenTotal sums reassigned child rows across tables.
func (s *Summary) ChildrenTotal() int64 {
	var total int64
	for _, n := range s.Children {
		total += n
	}
	return total
}

// Preview is the outcome a merge would have, computed without writing.
type Preview struct {
	Source        *store.Artwork
	Target        *store.Artwork
	Merged        *store.Artwork
	FieldsChanged []string
	Children      map[string]int64
}

// Engine performs merges against a store.
type Engine struct {
	store  *store.Store
	logger *slog.Logger

	// afterLoad runs once both records are read, before the transaction opens.
	afterLoad func()
	// afterReassign runs after each child table is moved; a non-nil error
	// aborts the merge.
	afterReassign func(table string) error
}

// New returns a merge engine.
func New(st *store.Store, logger *slog.Logger) *Engine {
	return &Engine{store: st, logger: logging.NewComponentLogger(logger, "merge")}
}

type participants struct {
	source      *store.Artwork
	target      *store.Artwork
	candidateID int64
}

func (e *Engine) load(ctx context.Context, req Request) (*participants, error) {
	if req.SourceID <= 0 || req.TargetID <= 0 {
		return nil, services.Wrap(services.ErrValidation, "merge", "validate request", "source and target ids are required", nil)
	}
	if req.SourceID == req.TargetID {
		return nil, services.Wrap(services.ErrValidation, "merge", "validate request",
			fmt.Sprintf("cannot merge artwork %d into itself", req.SourceID), nil)
	}
	if err := req.Policy.Validate(); err != nil {
		return nil, err
	}

	target, err := e.store.GetArtwork(ctx, req.TargetID)
	if err != nil {
		if errors.Is(err, services.ErrRecordNotFound) {
			into, merged, lookupErr := e.store.MergedAwayInto(ctx, req.TargetID)
			if lookupErr != nil {
				return nil, lookupErr
			}
			if merged {
				return nil, services.Wrap(services.ErrTargetNoLongerExists, "merge", "load target",
					fmt.Sprintf("artwork %d was merged into %d", req.TargetID, into), nil)
			}
		}
		return nil, err
	}
	source, err := e.store.GetArtwork(ctx, req.SourceID)
	if err != nil {
		return nil, err
	}

	p := &participants{source: source, target: target, candidateID: req.CandidateID}
	if req.CandidateID > 0 {
		c, err := e.store.GetCandidate(ctx, req.CandidateID)
		if err != nil {
			return nil, err
		}
		if c.Pair() != store.NewPairKey(req.SourceID, req.TargetID) {
			return nil, services.Wrap(services.ErrValidation, "merge", "validate request",
				fmt.Sprintf("candidate %d does not pair artworks %d and %d", c.ID, req.SourceID, req.TargetID), nil)
		}
		if !openForMerge(c.Status) {
			return nil, services.Wrap(services.ErrInvalidTransition, "merge", "validate request",
				fmt.Sprintf("candidate %d is already %s", c.ID, c.Status), nil)
		}
		return p, nil
	}
	c, err := e.store.GetCandidateByPair(ctx, req.SourceID, req.TargetID)
	if err != nil {
		return nil, err
	}
	if c != nil && openForMerge(c.Status) {
		p.candidateID = c.ID
	}
	return p, nil
}

func openForMerge(status store.CandidateStatus) bool {
	return status == store.StatusPending || status == store.StatusConfirmedDuplicate
}

// Preview validates req and returns the merged record and the child rows that
// would move, without writing anything.
func (e *Engine) Preview(ctx context.Context, req Request) (*Preview, error) {
	p, err := e.load(ctx, req)
	if err != nil {
		return nil, err
	}
	if e.afterLoad != nil {
		e.afterLoad()
	}
	merged, changed := apply(p.target, p.source, req.Policy)
	children, err := e.store.CountChildren(ctx, p.source.ID)
	if err != nil {
		return nil, err
	}
	return &Preview{
		Source:        p.source,
		Target:        p.target,
		Merged:        merged,
		FieldsChanged: changed,
		Children:      children,
	}, nil
}

// Merge folds req.SourceID into req.TargetID. Validation happens before any
// write and every write shares one transaction, so a failed merge leaves both
// records as they were.
func (e *Engine) Merge(ctx context.Context, req Request) (*Summary, error) {
	start := time.Now()
	logger := logging.WithContext(ctx, e.logger).With(
		logging.Int64("source_id", req.SourceID),
		logging.Int64("target_id", req.TargetID),
	)

	p, err := e.load(ctx, req)
	if err != nil {
		metrics.MergesTotal.WithLabelValues("rejected").Inc()
		logging.WarnWithContext(logger, "merge rejected", "merge_rejected",
			logging.String("error_kind", services.Kind(err)),
			logging.Error(err),
		)
		return nil, err
	}
	merged, changed := apply(p.target, p.source, req.Policy)

	summary := &Summary{
		SourceID:      p.source.ID,
		TargetID:      p.target.ID,
		CandidateID:   p.candidateID,
		FieldsChanged: changed,
		Children:      make(map[string]int64),
	}
	err = e.store.WithTx(ctx, func(tx *store.Tx) error {
		clear(summary.Children)
		var total int64
		for _, table := range store.ChildTables() {
			n, err := tx.ReassignChildren(ctx, table, p.source.ID, p.target.ID)
			if err != nil {
				return err
			}
			summary.Children[table.Table] = n
			total += n
			if e.afterReassign != nil {
				if err := e.afterReassign(table.Table); err != nil {
					return err
				}
			}
		}

		moved, dropped, err := tx.RepointCandidates(ctx, p.source.ID, p.target.ID, p.candidateID)
		if err != nil {
			return err
		}
		summary.CandidatesRepointed, summary.CandidatesDropped = moved, dropped
		if summary.RelationshipsRepointed, err = tx.RepointRelationships(ctx, p.source.ID, p.target.ID); err != nil {
			return err
		}

		// The source goes first so a catalog number taken from it stays unique.
		if err := tx.DeleteArtwork(ctx, p.source.ID, p.source.Version); err != nil {
			return conflict("delete source", err)
		}
		record := *merged
		if err := tx.UpdateArtwork(ctx, &record); err != nil {
			return conflict("update target", err)
		}

		var candidateID *int64
		if p.candidateID > 0 {
			id := p.candidateID
			candidateID = &id
		}
		auditID, err := tx.InsertMergeAudit(ctx, &store.MergeAudit{
			SourceID:           p.source.ID,
			TargetID:           p.target.ID,
			CandidateID:        candidateID,
			Policy:             req.Policy.Strings(),
			ChildrenReassigned: total,
			FieldsChanged:      changed,
		})
		if err != nil {
			return err
		}
		if p.candidateID > 0 {
			if err := tx.MarkCandidateMerged(ctx, p.candidateID, p.target.ID, req.Reason); err != nil {
				return conflict("mark candidate", err)
			}
		}
		summary.AuditID = auditID
		summary.Target = &record
		return nil
	})
	if err != nil {
		outcome := "error"
		if errors.Is(err, services.ErrMergeConflict) {
			outcome = "conflict"
		}
		metrics.MergesTotal.WithLabelValues(outcome).Inc()
		logging.ErrorWithContext(logger, "merge failed", "merge_failed",
			logging.String("error_kind", services.Kind(err)),
			logging.Error(err),
		)
		return nil, err
	}

	metrics.MergesTotal.WithLabelValues("merged").Inc()
	for table, n := range summary.Children {
		if n > 0 {
			metrics.ChildrenReassigned.WithLabelValues(table).Add(float64(n))
		}
	}
	logger.Info("artworks merged",
		logging.Int64(logging.FieldCandidateID, summary.CandidateID),
		logging.Int64("audit_id", summary.AuditID),
		logging.Int64("children_reassigned", summary.ChildrenTotal()),
		logging.Any("fields_changed", summary.FieldsChanged),
		logging.Duration("duration", time.Since(start)),
	)
	return summary, nil
}

// conflict reports a concurrent change seen inside the merge transaction. The
// cause's text is kept but not its marker, so callers classify it as a
// conflict rather than a missing record.
func conflict(operation string, err error) error {
	switch {
	case errors.Is(err, store.ErrStaleVersion),
		errors.Is(err, services.ErrRecordNotFound),
		errors.Is(err, services.ErrInvalidTransition):
		return services.Wrap(services.ErrMergeConflict, "merge", operation, err.Error()+"; retry", nil)
	}
	return err
}
