package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"artdedup/internal/services"
	"artdedup/internal/similarity"
)

const candidateColumns = "id, artwork_id_1, artwork_id_2, method, score, image_score, title_score, metadata_score, status, reason, merged_into, detected_at, resolved_at"

func scanCandidate(scanner rowScanner) (*Candidate, error) {
	var (
		c           Candidate
		method      string
		status      string
		imageScore  sql.NullFloat64
		titleScore  sql.NullFloat64
		metaScore   sql.NullFloat64
		reason      sql.NullString
		mergedInto  sql.NullInt64
		detectedRaw string
		resolvedRaw sql.NullString
	)
	if err := scanner.Scan(
		&c.ID,
		&c.ArtworkID1,
		&c.ArtworkID2,
		&method,
		&c.Score,
		&imageScore,
		&titleScore,
		&metaScore,
		&status,
		&reason,
		&mergedInto,
		&detectedRaw,
		&resolvedRaw,
	); err != nil {
		return nil, err
	}
	c.Method = similarity.Method(method)
	c.Status = CandidateStatus(status)
	c.ImageScore = floatPtr(imageScore)
	c.TitleScore = floatPtr(titleScore)
	c.MetadataScore = floatPtr(metaScore)
	c.Reason = reason.String
	c.MergedInto = int64Ptr(mergedInto)
	if detected, err := parseTimeString(detectedRaw); err == nil {
		c.DetectedAt = detected
	}
	c.ResolvedAt = parseTimePtr(resolvedRaw)
	return &c, nil
}

func validateNewCandidate(nc NewCandidate) error {
	if nc.ArtworkA <= 0 || nc.ArtworkB <= 0 {
		return services.Wrap(services.ErrValidation, "store", "insert candidate", "artwork ids must be positive", nil)
	}
	if nc.ArtworkA == nc.ArtworkB {
		return services.Wrap(services.ErrValidation, "store", "insert candidate",
			fmt.Sprintf("artwork %d cannot be paired with itself", nc.ArtworkA), nil)
	}
	if _, err := similarity.ParseMethod(string(nc.Method)); err != nil {
		return services.Wrap(services.ErrValidation, "store", "insert candidate", "", err)
	}
	if nc.Score < 0 || nc.Score > 1 {
		return services.Wrap(services.ErrValidation, "store", "insert candidate",
			fmt.Sprintf("score %v outside [0,1]", nc.Score), nil)
	}
	return nil
}

// InsertCandidate stores a pending candidate for an unordered pair. When the
// pair already exists in any status nothing is written, inserted is false and
// the existing candidate is returned.
func (s *Store) InsertCandidate(ctx context.Context, nc NewCandidate) (*Candidate, bool, error) {
	if err := validateNewCandidate(nc); err != nil {
		return nil, false, err
	}
	ctx = ensureContext(ctx)
	key := NewPairKey(nc.ArtworkA, nc.ArtworkB)
	res, err := s.execWithRetry(ctx,
		`INSERT INTO duplicate_candidates (artwork_id_1, artwork_id_2, method, score, image_score, title_score,
            metadata_score, status, detected_at)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
         ON CONFLICT (artwork_id_1, artwork_id_2) DO NOTHING`,
		key.Low,
		key.High,
		string(nc.Method),
		nc.Score,
		nullableFloat(nc.ImageScore),
		nullableFloat(nc.TitleScore),
		nullableFloat(nc.MetadataScore),
		StatusPending,
		nowString(),
	)
	if err != nil {
		return nil, false, fmt.Errorf("insert candidate %s: %w", key, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, false, fmt.Errorf("insert candidate %s: %w", key, err)
	}
	if affected == 0 {
		existing, err := s.GetCandidateByPair(ctx, key.Low, key.High)
		return existing, false, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, true, fmt.Errorf("fetch candidate id: %w", err)
	}
	c, err := s.GetCandidate(ctx, id)
	return c, true, err
}

// GetCandidate fetches a candidate by id. A missing candidate yields
// services.ErrRecordNotFound.
func (s *Store) GetCandidate(ctx context.Context, id int64) (*Candidate, error) {
	return getCandidate(ensureContext(ctx), s.db, id)
}

func getCandidate(ctx context.Context, q querier, id int64) (*Candidate, error) {
	row := q.QueryRowContext(ctx, `SELECT `+candidateColumns+` FROM duplicate_candidates WHERE id = ?`, id)
	c, err := scanCandidate(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, candidateNotFound("get candidate", id)
	}
	if err != nil {
		return nil, fmt.Errorf("get candidate %d: %w", id, err)
	}
	return c, nil
}

// GetCandidateByPair returns the candidate for a pair in either order, or nil.
func (s *Store) GetCandidateByPair(ctx context.Context, a, b int64) (*Candidate, error) {
	key := NewPairKey(a, b)
	row := s.db.QueryRowContext(ensureContext(ctx),
		`SELECT `+candidateColumns+` FROM duplicate_candidates WHERE artwork_id_1 = ? AND artwork_id_2 = ?`,
		key.Low, key.High,
	)
	c, err := scanCandidate(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get candidate %s: %w", key, err)
	}
	return c, nil
}

func (f CandidateFilter) where() (string, []any) {
	var (
		clauses []string
		args    []any
	)
	if f.Status != "" {
		clauses = append(clauses, "status = ?")
		args = append(args, string(f.Status))
	}
	if f.MinScore > 0 {
		clauses = append(clauses, "score >= ?")
		args = append(args, f.MinScore)
	}
	if f.Method != "" {
		clauses = append(clauses, "method = ?")
		args = append(args, string(f.Method))
	}
	if f.ArtworkID > 0 {
		clauses = append(clauses, "(artwork_id_1 = ? OR artwork_id_2 = ?)")
		args = append(args, f.ArtworkID, f.ArtworkID)
	}
	if len(clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

// ListCandidates returns one page of candidates matching filter, highest
// score first, plus the total number of matches.
func (s *Store) ListCandidates(ctx context.Context, filter CandidateFilter, page Page) ([]*Candidate, int, error) {
	ctx = ensureContext(ctx)
	page = page.Normalize()
	where, args := filter.where()

	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM duplicate_candidates`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count candidates: %w", err)
	}

	query := `SELECT ` + candidateColumns + ` FROM duplicate_candidates` + where +
		` ORDER BY score DESC, id LIMIT ? OFFSET ?`
	rows, err := s.db.QueryContext(ctx, query, append(args, page.Size, page.offset())...)
	if err != nil {
		return nil, 0, fmt.Errorf("list candidates: %w", err)
	}
	defer rows.Close()

	var candidates []*Candidate
	for rows.Next() {
		c, err := scanCandidate(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan candidate: %w", err)
		}
		candidates = append(candidates, c)
	}
	return candidates, total, rows.Err()
}

// CandidateStats counts candidates per status.
func (s *Store) CandidateStats(ctx context.Context) (map[CandidateStatus]int, error) {
	rows, err := s.db.QueryContext(ensureContext(ctx), `SELECT status, COUNT(1) FROM duplicate_candidates GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("candidate stats: %w", err)
	}
	defer rows.Close()

	stats := make(map[CandidateStatus]int, len(allStatuses))
	for rows.Next() {
		var (
			status string
			count  int
		)
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("scan candidate stats: %w", err)
		}
		stats[CandidateStatus(status)] = count
	}
	return stats, rows.Err()
}

// PairKeys returns every stored pair regardless of status. Scans preload it
// to skip pairs that were already detected or resolved.
func (s *Store) PairKeys(ctx context.Context) (map[PairKey]struct{}, error) {
	rows, err := s.db.QueryContext(ensureContext(ctx), `SELECT artwork_id_1, artwork_id_2 FROM duplicate_candidates`)
	if err != nil {
		return nil, fmt.Errorf("load pair keys: %w", err)
	}
	defer rows.Close()

	keys := make(map[PairKey]struct{})
	for rows.Next() {
		var key PairKey
		if err := rows.Scan(&key.Low, &key.High); err != nil {
			return nil, fmt.Errorf("scan pair key: %w", err)
		}
		keys[key] = struct{}{}
	}
	return keys, rows.Err()
}

// TransitionCandidate moves a candidate to status `to` when it is currently in
// one of `from`. A missing candidate yields services.ErrRecordNotFound; any
// other status yields services.ErrInvalidTransition.
func (s *Store) TransitionCandidate(ctx context.Context, id int64, from []CandidateStatus, to CandidateStatus, reason string) (*Candidate, error) {
	ctx = ensureContext(ctx)
	if err := retryOnBusy(ctx, func() error {
		return transitionCandidate(ctx, s.db, id, from, to, reason, nil)
	}); err != nil {
		return nil, err
	}
	return s.GetCandidate(ctx, id)
}

func transitionCandidate(ctx context.Context, q querier, id int64, from []CandidateStatus, to CandidateStatus, reason string, mergedInto *int64) error {
	if len(from) == 0 {
		return errors.New("transition requires at least one source status")
	}
	args := []any{string(to), nullableString(strings.TrimSpace(reason)), nullableInt64(mergedInto), nowString(), id}
	for _, status := range from {
		args = append(args, string(status))
	}
	res, err := q.ExecContext(ctx,
		`UPDATE duplicate_candidates
         SET status = ?, reason = COALESCE(?, reason), merged_into = COALESCE(?, merged_into), resolved_at = ?
         WHERE id = ? AND status IN (`+makePlaceholders(len(from))+`)`,
		args...,
	)
	if err != nil {
		return fmt.Errorf("transition candidate %d: %w", id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("transition candidate %d: %w", id, err)
	}
	if affected > 0 {
		return nil
	}
	current, err := getCandidate(ctx, q, id)
	if err != nil {
		return err
	}
	return services.Wrap(services.ErrInvalidTransition, "store", "transition candidate",
		fmt.Sprintf("candidate %d is %s, cannot become %s", id, current.Status, to), nil)
}

// DeleteCandidate removes a candidate currently in one of `from` so the pair
// can be detected again. Error semantics match TransitionCandidate.
func (s *Store) DeleteCandidate(ctx context.Context, id int64, from []CandidateStatus) error {
	ctx = ensureContext(ctx)
	if len(from) == 0 {
		return errors.New("delete requires at least one allowed status")
	}
	args := []any{id}
	for _, status := range from {
		args = append(args, string(status))
	}
	res, err := s.execWithRetry(ctx,
		`DELETE FROM duplicate_candidates WHERE id = ? AND status IN (`+makePlaceholders(len(from))+`)`,
		args...,
	)
	if err != nil {
		return fmt.Errorf("delete candidate %d: %w", id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete candidate %d: %w", id, err)
	}
	if affected > 0 {
		return nil
	}
	current, err := s.GetCandidate(ctx, id)
	if err != nil {
		return err
	}
	return services.Wrap(services.ErrInvalidTransition, "store", "delete candidate",
		fmt.Sprintf("candidate %d is %s and cannot be reset", id, current.Status), nil)
}
