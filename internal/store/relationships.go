package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"artdedup/internal/services"
)

// AddRelationship links two distinct artworks with a curatorial relationship.
// Adding the same link twice returns the existing row.
func (s *Store) AddRelationship(ctx context.Context, fromID, toID int64, kind RelationshipKind, note string) (*Relationship, error) {
	ctx = ensureContext(ctx)
	if _, ok := ParseRelationshipKind(string(kind)); !ok {
		return nil, services.Wrap(services.ErrValidation, "store", "add relationship",
			fmt.Sprintf("unknown relationship kind %q", kind), nil)
	}
	if fromID == toID {
		return nil, services.Wrap(services.ErrValidation, "store", "add relationship",
			fmt.Sprintf("artwork %d cannot be related to itself", fromID), nil)
	}
	for _, id := range []int64{fromID, toID} {
		if _, err := s.GetArtwork(ctx, id); err != nil {
			return nil, err
		}
	}
	if _, err := s.execWithRetry(ctx,
		`INSERT INTO artwork_relationships (from_id, to_id, kind, note, created_at) VALUES (?, ?, ?, ?, ?)
         ON CONFLICT (from_id, to_id, kind) DO NOTHING`,
		fromID, toID, string(kind), nullableString(strings.TrimSpace(note)), nowString(),
	); err != nil {
		return nil, fmt.Errorf("insert relationship: %w", err)
	}
	row := s.db.QueryRowContext(ctx,
		`SELECT id, from_id, to_id, kind, note, created_at FROM artwork_relationships WHERE from_id = ? AND to_id = ? AND kind = ?`,
		fromID, toID, string(kind),
	)
	return scanRelationship(row)
}

// ListRelationships returns every relationship touching artworkID in either direction.
func (s *Store) ListRelationships(ctx context.Context, artworkID int64) ([]*Relationship, error) {
	rows, err := s.db.QueryContext(ensureContext(ctx),
		`SELECT id, from_id, to_id, kind, note, created_at FROM artwork_relationships
         WHERE from_id = ? OR to_id = ? ORDER BY id`,
		artworkID, artworkID,
	)
	if err != nil {
		return nil, fmt.Errorf("list relationships: %w", err)
	}
	defer rows.Close()

	var rels []*Relationship
	for rows.Next() {
		r, err := scanRelationship(rows)
		if err != nil {
			return nil, err
		}
		rels = append(rels, r)
	}
	return rels, rows.Err()
}

func scanRelationship(scanner rowScanner) (*Relationship, error) {
	var (
		r          Relationship
		kind       string
		note       sql.NullString
		createdRaw string
	)
	if err := scanner.Scan(&r.ID, &r.FromID, &r.ToID, &kind, &note, &createdRaw); err != nil {
		return nil, fmt.Errorf("scan relationship: %w", err)
	}
	r.Kind = RelationshipKind(kind)
	r.Note = note.String
	if created, err := parseTimeString(createdRaw); err == nil {
		r.CreatedAt = created
	}
	return &r, nil
}
