package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// openStatuses are the candidate states still awaiting an outcome; a merge
// carries them over to the surviving record.
var openStatuses = []CandidateStatus{StatusPending, StatusConfirmedDuplicate}

// GetArtwork reads a record inside the transaction.
func (tx *Tx) GetArtwork(ctx context.Context, id int64) (*Artwork, error) {
	return getArtwork(ensureContext(ctx), tx.tx, id)
}

// GetCandidate reads a candidate inside the transaction.
func (tx *Tx) GetCandidate(ctx context.Context, id int64) (*Candidate, error) {
	return getCandidate(ensureContext(ctx), tx.tx, id)
}

// UpdateArtwork writes a with an optimistic version check; see Store.UpdateArtwork.
func (tx *Tx) UpdateArtwork(ctx context.Context, a *Artwork) error {
	return updateArtwork(ensureContext(ctx), tx.tx, a)
}

// DeleteArtwork removes a record at the expected version. Child rows must
// already have been reassigned.
func (tx *Tx) DeleteArtwork(ctx context.Context, id, version int64) error {
	return deleteArtwork(ensureContext(ctx), tx.tx, id, version)
}

// ReassignChildren moves every row of table that references from to to. For
// tables with a unique link, source rows that would collide with an existing
// target row are dropped. Positioned rows are appended after the target's
// last position and lose their primary flag when the target has one.
func (tx *Tx) ReassignChildren(ctx context.Context, table ChildTable, from, to int64) (int64, error) {
	ctx = ensureContext(ctx)
	if table.UniqueWith != "" {
		query := fmt.Sprintf(
			`DELETE FROM %[1]s WHERE %[2]s = ? AND %[3]s IN (SELECT %[3]s FROM %[1]s WHERE %[2]s = ?)`,
			table.Table, table.Column, table.UniqueWith,
		)
		if _, err := tx.tx.ExecContext(ctx, query, from, to); err != nil {
			return 0, fmt.Errorf("drop conflicting %s rows: %w", table.Table, err)
		}
	}

	var (
		query string
		args  []any
	)
	if table.Positioned {
		var offset, targetHasPrimary int
		if err := tx.tx.QueryRowContext(ctx,
			fmt.Sprintf(`SELECT COALESCE(MAX(position) + 1, 0), COALESCE(MAX(is_primary), 0) FROM %s WHERE %s = ?`, table.Table, table.Column),
			to,
		).Scan(&offset, &targetHasPrimary); err != nil {
			return 0, fmt.Errorf("read %s positions: %w", table.Table, err)
		}
		query = fmt.Sprintf(
			`UPDATE %[1]s SET %[2]s = ?, position = position + ?, is_primary = CASE WHEN ? = 1 THEN 0 ELSE is_primary END WHERE %[2]s = ?`,
			table.Table, table.Column,
		)
		args = []any{to, offset, targetHasPrimary, from}
	} else {
		query = fmt.Sprintf(`UPDATE %[1]s SET %[2]s = ? WHERE %[2]s = ?`, table.Table, table.Column)
		args = []any{to, from}
	}
	res, err := tx.tx.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("reassign %s: %w", table.Table, err)
	}
	return res.RowsAffected()
}

type pairRow struct {
	id   int64
	low  int64
	high int64
}

// RepointCandidates moves open candidates that reference from onto to, except
// the candidate skip. Rows that would pair to with itself or duplicate an
// existing pair are deleted. It returns the number of rows moved and dropped.
func (tx *Tx) RepointCandidates(ctx context.Context, from, to, skip int64) (moved, dropped int64, err error) {
	ctx = ensureContext(ctx)
	args := []any{from, from, skip}
	for _, status := range openStatuses {
		args = append(args, string(status))
	}
	rows, err := tx.tx.QueryContext(ctx,
		`SELECT id, artwork_id_1, artwork_id_2 FROM duplicate_candidates
         WHERE (artwork_id_1 = ? OR artwork_id_2 = ?) AND id <> ? AND status IN (`+makePlaceholders(len(openStatuses))+`)`,
		args...,
	)
	if err != nil {
		return 0, 0, fmt.Errorf("select candidates of %d: %w", from, err)
	}
	var pending []pairRow
	for rows.Next() {
		var r pairRow
		if err := rows.Scan(&r.id, &r.low, &r.high); err != nil {
			_ = rows.Close()
			return 0, 0, fmt.Errorf("scan candidate: %w", err)
		}
		pending = append(pending, r)
	}
	if err := rows.Close(); err != nil {
		return 0, 0, err
	}

	for _, r := range pending {
		other := r.high
		if other == from {
			other = r.low
		}
		drop := other == to
		key := NewPairKey(other, to)
		if !drop {
			var exists int
			if err := tx.tx.QueryRowContext(ctx,
				`SELECT COUNT(1) FROM duplicate_candidates WHERE artwork_id_1 = ? AND artwork_id_2 = ?`,
				key.Low, key.High,
			).Scan(&exists); err != nil {
				return moved, dropped, fmt.Errorf("check pair %s: %w", key, err)
			}
			drop = exists > 0
		}
		if drop {
			if _, err := tx.tx.ExecContext(ctx, `DELETE FROM duplicate_candidates WHERE id = ?`, r.id); err != nil {
				return moved, dropped, fmt.Errorf("drop candidate %d: %w", r.id, err)
			}
			dropped++
			continue
		}
		if _, err := tx.tx.ExecContext(ctx,
			`UPDATE duplicate_candidates SET artwork_id_1 = ?, artwork_id_2 = ? WHERE id = ?`,
			key.Low, key.High, r.id,
		); err != nil {
			return moved, dropped, fmt.Errorf("repoint candidate %d: %w", r.id, err)
		}
		moved++
	}
	return moved, dropped, nil
}

// RepointRelationships moves relationships that reference from onto to,
// dropping those that would become self links or duplicates.
func (tx *Tx) RepointRelationships(ctx context.Context, from, to int64) (int64, error) {
	ctx = ensureContext(ctx)
	rows, err := tx.tx.QueryContext(ctx,
		`SELECT id, from_id, to_id, kind FROM artwork_relationships WHERE from_id = ? OR to_id = ?`,
		from, from,
	)
	if err != nil {
		return 0, fmt.Errorf("select relationships of %d: %w", from, err)
	}
	type relRow struct {
		id     int64
		fromID int64
		toID   int64
		kind   string
	}
	var rels []relRow
	for rows.Next() {
		var r relRow
		if err := rows.Scan(&r.id, &r.fromID, &r.toID, &r.kind); err != nil {
			_ = rows.Close()
			return 0, fmt.Errorf("scan relationship: %w", err)
		}
		rels = append(rels, r)
	}
	if err := rows.Close(); err != nil {
		return 0, err
	}

	var moved int64
	for _, r := range rels {
		if r.fromID == from {
			r.fromID = to
		}
		if r.toID == from {
			r.toID = to
		}
		drop := r.fromID == r.toID
		if !drop {
			var exists int
			if err := tx.tx.QueryRowContext(ctx,
				`SELECT COUNT(1) FROM artwork_relationships WHERE from_id = ? AND to_id = ? AND kind = ? AND id <> ?`,
				r.fromID, r.toID, r.kind, r.id,
			).Scan(&exists); err != nil {
				return moved, fmt.Errorf("check relationship: %w", err)
			}
			drop = exists > 0
		}
		if drop {
			if _, err := tx.tx.ExecContext(ctx, `DELETE FROM artwork_relationships WHERE id = ?`, r.id); err != nil {
				return moved, fmt.Errorf("drop relationship %d: %w", r.id, err)
			}
			continue
		}
		if _, err := tx.tx.ExecContext(ctx,
			`UPDATE artwork_relationships SET from_id = ?, to_id = ? WHERE id = ?`,
			r.fromID, r.toID, r.id,
		); err != nil {
			return moved, fmt.Errorf("repoint relationship %d: %w", r.id, err)
		}
		moved++
	}
	return moved, nil
}

// MarkCandidateMerged records that candidate id was resolved by merging into
// target. Only open candidates can be marked.
func (tx *Tx) MarkCandidateMerged(ctx context.Context, id, target int64, reason string) error {
	return transitionCandidate(ensureContext(ctx), tx.tx, id, openStatuses, StatusMerged, reason, &target)
}

// InsertMergeAudit appends an audit row and returns its id.
func (tx *Tx) InsertMergeAudit(ctx context.Context, audit *MergeAudit) (int64, error) {
	ctx = ensureContext(ctx)
	policy := audit.Policy
	if policy == nil {
		policy = map[string]string{}
	}
	policyJSON, err := json.Marshal(policy)
	if err != nil {
		return 0, fmt.Errorf("encode merge policy: %w", err)
	}
	fields := audit.FieldsChanged
	if fields == nil {
		fields = []string{}
	}
	fieldsJSON, err := json.Marshal(fields)
	if err != nil {
		return 0, fmt.Errorf("encode changed fields: %w", err)
	}
	res, err := tx.tx.ExecContext(ctx,
		`INSERT INTO merge_audit (source_id, target_id, candidate_id, policy_json, children_reassigned, fields_changed_json, merged_at)
         VALUES (?, ?, ?, ?, ?, ?, ?)`,
		audit.SourceID,
		audit.TargetID,
		nullableInt64(audit.CandidateID),
		string(policyJSON),
		audit.ChildrenReassigned,
		string(fieldsJSON),
		nowString(),
	)
	if err != nil {
		return 0, fmt.Errorf("insert merge audit: %w", err)
	}
	return res.LastInsertId()
}

// NextSequence issues the next value of a named counter, starting at 1.
func (tx *Tx) NextSequence(ctx context.Context, name string) (int64, error) {
	ctx = ensureContext(ctx)
	name = strings.TrimSpace(name)
	if name == "" {
		return 0, fmt.Errorf("sequence name is empty")
	}
	if _, err := tx.tx.ExecContext(ctx,
		`INSERT INTO catalog_sequences (name, next_value) VALUES (?, 1) ON CONFLICT (name) DO NOTHING`,
		name,
	); err != nil {
		return 0, fmt.Errorf("init sequence %s: %w", name, err)
	}
	var value int64
	if err := tx.tx.QueryRowContext(ctx, `SELECT next_value FROM catalog_sequences WHERE name = ?`, name).Scan(&value); err != nil {
		return 0, fmt.Errorf("read sequence %s: %w", name, err)
	}
	if _, err := tx.tx.ExecContext(ctx, `UPDATE catalog_sequences SET next_value = next_value + 1 WHERE name = ?`, name); err != nil {
		return 0, fmt.Errorf("advance sequence %s: %w", name, err)
	}
	return value, nil
}
