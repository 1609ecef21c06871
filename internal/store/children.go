package store

import (
	"context"
	"fmt"
	"strings"
)

// AddNotification attaches a notification to an artwork.
func (s *Store) AddNotification(ctx context.Context, artworkID int64, kind, message string) (int64, error) {
	res, err := s.execWithRetry(ctx,
		`INSERT INTO notifications (artwork_id, kind, message, created_at) VALUES (?, ?, ?, ?)`,
		artworkID, strings.TrimSpace(kind), nullableString(message), nowString(),
	)
	if err != nil {
		return 0, fmt.Errorf("insert notification: %w", err)
	}
	return res.LastInsertId()
}

// CreateExhibition registers an exhibition that artworks can be linked to.
func (s *Store) CreateExhibition(ctx context.Context, name, venue string, year *int) (int64, error) {
	res, err := s.execWithRetry(ctx,
		`INSERT INTO exhibitions (name, venue, year) VALUES (?, ?, ?)`,
		strings.TrimSpace(name), nullableString(venue), nullableInt(year),
	)
	if err != nil {
		return 0, fmt.Errorf("insert exhibition: %w", err)
	}
	return res.LastInsertId()
}

// LinkExhibition records that an artwork was shown in an exhibition. Linking
// the same pair twice is a no-op.
func (s *Store) LinkExhibition(ctx context.Context, artworkID, exhibitionID int64, catalogueRef string) error {
	if _, err := s.execWithRetry(ctx,
		`INSERT INTO artwork_exhibitions (artwork_id, exhibition_id, catalogue_ref) VALUES (?, ?, ?)
         ON CONFLICT (artwork_id, exhibition_id) DO NOTHING`,
		artworkID, exhibitionID, nullableString(catalogueRef),
	); err != nil {
		return fmt.Errorf("link exhibition: %w", err)
	}
	return nil
}

// AddAlertResult stores a search alert hit, optionally promoted to an artwork.
func (s *Store) AddAlertResult(ctx context.Context, query, title, url string, promotedTo *int64) (int64, error) {
	res, err := s.execWithRetry(ctx,
		`INSERT INTO alert_results (query, title, url, promoted_to_artwork_id, created_at) VALUES (?, ?, ?, ?, ?)`,
		query, nullableString(title), nullableString(url), nullableInt64(promotedTo), nowString(),
	)
	if err != nil {
		return 0, fmt.Errorf("insert alert result: %w", err)
	}
	return res.LastInsertId()
}

// AddResearchLead stores a research lead, optionally resolved to an artwork.
func (s *Store) AddResearchLead(ctx context.Context, description string, foundArtwork *int64) (int64, error) {
	res, err := s.execWithRetry(ctx,
		`INSERT INTO research_leads (description, found_artwork_id, created_at) VALUES (?, ?, ?)`,
		description, nullableInt64(foundArtwork), nowString(),
	)
	if err != nil {
		return 0, fmt.Errorf("insert research lead: %w", err)
	}
	return res.LastInsertId()
}

// CountChildren counts the rows of every child table that reference artworkID.
func (s *Store) CountChildren(ctx context.Context, artworkID int64) (map[string]int64, error) {
	ctx = ensureContext(ctx)
	counts := make(map[string]int64, len(childTables))
	for _, table := range childTables {
		var n int64
		query := fmt.Sprintf(`SELECT COUNT(1) FROM %s WHERE %s = ?`, table.Table, table.Column)
		if err := s.db.QueryRowContext(ctx, query, artworkID).Scan(&n); err != nil {
			return nil, fmt.Errorf("count %s: %w", table.Table, err)
		}
		counts[table.Table] = n
	}
	return counts, nil
}
