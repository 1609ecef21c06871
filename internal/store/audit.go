package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
)

// ListMergeAudits returns the most recent merges first.
func (s *Store) ListMergeAudits(ctx context.Context, limit int) ([]*MergeAudit, error) {
	if limit <= 0 {
		limit = DefaultPageSize
	}
	rows, err := s.db.QueryContext(ensureContext(ctx),
		`SELECT id, source_id, target_id, candidate_id, policy_json, children_reassigned, fields_changed_json, merged_at
         FROM merge_audit ORDER BY id DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list merge audits: %w", err)
	}
	defer rows.Close()

	var audits []*MergeAudit
	for rows.Next() {
		var (
			a         MergeAudit
			candidate sql.NullInt64
			policyRaw string
			fieldsRaw string
			mergedRaw string
		)
		if err := rows.Scan(&a.ID, &a.SourceID, &a.TargetID, &candidate, &policyRaw, &a.ChildrenReassigned, &fieldsRaw, &mergedRaw); err != nil {
			return nil, fmt.Errorf("scan merge audit: %w", err)
		}
		a.CandidateID = int64Ptr(candidate)
		if err := json.Unmarshal([]byte(policyRaw), &a.Policy); err != nil {
			return nil, fmt.Errorf("decode merge policy %d: %w", a.ID, err)
		}
		if err := json.Unmarshal([]byte(fieldsRaw), &a.FieldsChanged); err != nil {
			return nil, fmt.Errorf("decode changed fields %d: %w", a.ID, err)
		}
		if merged, err := parseTimeString(mergedRaw); err == nil {
			a.MergedAt = merged
		}
		audits = append(audits, &a)
	}
	return audits, rows.Err()
}

// MergedAwayInto reports whether id was deleted as the source of a merge and,
// if so, the record it was merged into.
func (s *Store) MergedAwayInto(ctx context.Context, id int64) (int64, bool, error) {
	var target int64
	err := s.db.QueryRowContext(ensureContext(ctx),
		`SELECT target_id FROM merge_audit WHERE source_id = ? ORDER BY id DESC LIMIT 1`,
		id,
	).Scan(&target)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("look up merge of %d: %w", id, err)
	}
	return target, true, nil
}
