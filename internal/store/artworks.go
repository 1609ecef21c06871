package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

const artworkColumns = "id, title, year, year_circa, medium, dimensions, art_type, description, signed, inscription, provenance, exhibition_history, literature, condition, notes, source_platform, source_url, catalog_number, version, created_at, updated_at"

func scanArtwork(scanner rowScanner) (*Artwork, error) {
	var (
		a          Artwork
		year       sql.NullInt64
		circa      int
		medium     sql.NullString
		dimensions sql.NullString
		artType    sql.NullString
		desc       sql.NullString
		signed     sql.NullString
		inscr      sql.NullString
		provenance sql.NullString
		exhibition sql.NullString
		literature sql.NullString
		condition  sql.NullString
		notes      sql.NullString
		platform   sql.NullString
		sourceURL  sql.NullString
		catalogNo  sql.NullString
		createdRaw string
		updatedRaw string
	)
	if err := scanner.Scan(
		&a.ID,
		&a.Title,
		&year,
		&circa,
		&medium,
		&dimensions,
		&artType,
		&desc,
		&signed,
		&inscr,
		&provenance,
		&exhibition,
		&literature,
		&condition,
		&notes,
		&platform,
		&sourceURL,
		&catalogNo,
		&a.Version,
		&createdRaw,
		&updatedRaw,
	); err != nil {
		return nil, err
	}
	a.Year = intPtr(year)
	a.YearCirca = circa != 0
	a.Medium = medium.String
	a.Dimensions = dimensions.String
	a.ArtType = artType.String
	a.Description = desc.String
	a.Signed = signed.String
	a.Inscription = inscr.String
	a.Provenance = provenance.String
	a.ExhibitionHistory = exhibition.String
	a.Literature = literature.String
	a.Condition = condition.String
	a.Notes = notes.String
	a.SourcePlatform = platform.String
	a.SourceURL = sourceURL.String
	a.CatalogNumber = catalogNo.String
	if created, err := parseTimeString(createdRaw); err == nil {
		a.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw); err == nil {
		a.UpdatedAt = updated
	}
	return &a, nil
}

// where renders the filter as a WHERE clause over alias (may be empty).
// Year bounds exclude records without a year.
func (f ArtworkFilter) where(alias string) (string, []any) {
	col := func(name string) string {
		if alias == "" {
			return name
		}
		return alias + "." + name
	}
	var (
		clauses []string
		args    []any
	)
	if f.YearFrom != nil {
		clauses = append(clauses, col("year")+" >= ?")
		args = append(args, *f.YearFrom)
	}
	if f.YearTo != nil {
		clauses = append(clauses, col("year")+" <= ?")
		args = append(args, *f.YearTo)
	}
	if len(f.IDs) > 0 {
		clauses = append(clauses, col("id")+" IN ("+makePlaceholders(len(f.IDs))+")")
		args = append(args, int64Args(f.IDs)...)
	}
	if f.AfterID > 0 {
		clauses = append(clauses, col("id")+" > ?")
		args = append(args, f.AfterID)
	}
	if len(clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

// CreateArtwork inserts a new record at version 1 and returns it as stored.
func (s *Store) CreateArtwork(ctx context.Context, a *Artwork) (*Artwork, error) {
	if a == nil {
		return nil, errors.New("artwork is nil")
	}
	now := nowString()
	res, err := s.execWithRetry(ctx,
		`INSERT INTO artworks (title, year, year_circa, medium, dimensions, art_type, description, signed,
            inscription, provenance, exhibition_history, literature, condition, notes, source_platform,
            source_url, catalog_number, version, created_at, updated_at)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 1, ?, ?)`,
		strings.TrimSpace(a.Title),
		nullableInt(a.Year),
		boolToInt(a.YearCirca),
		nullableString(a.Medium),
		nullableString(a.Dimensions),
		nullableString(a.ArtType),
		nullableString(a.Description),
		nullableString(a.Signed),
		nullableString(a.Inscription),
		nullableString(a.Provenance),
		nullableString(a.ExhibitionHistory),
		nullableString(a.Literature),
		nullableString(a.Condition),
		nullableString(a.Notes),
		nullableString(a.SourcePlatform),
		nullableString(a.SourceURL),
		nullableString(a.CatalogNumber),
		now,
		now,
	)
	if err != nil {
		return nil, fmt.Errorf("insert artwork: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("fetch artwork id: %w", err)
	}
	return s.GetArtwork(ctx, id)
}

// GetArtwork fetches a record by id. A missing record yields
// services.ErrRecordNotFound.
func (s *Store) GetArtwork(ctx context.Context, id int64) (*Artwork, error) {
	return getArtwork(ensureContext(ctx), s.db, id)
}

func getArtwork(ctx context.Context, q querier, id int64) (*Artwork, error) {
	row := q.QueryRowContext(ctx, `SELECT `+artworkColumns+` FROM artworks WHERE id = ?`, id)
	a, err := scanArtwork(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, artworkNotFound("get artwork", id)
	}
	if err != nil {
		return nil, fmt.Errorf("get artwork %d: %w", id, err)
	}
	return a, nil
}

// UpdateArtwork writes every field of a when the stored version still equals
// a.Version, then bumps a.Version. A version mismatch yields ErrStaleVersion.
func (s *Store) UpdateArtwork(ctx context.Context, a *Artwork) error {
	ctx = ensureContext(ctx)
	return retryOnBusy(ctx, func() error { return updateArtwork(ctx, s.db, a) })
}

func updateArtwork(ctx context.Context, q querier, a *Artwork) error {
	now := nowString()
	res, err := q.ExecContext(ctx,
		`UPDATE artworks SET title = ?, year = ?, year_circa = ?, medium = ?, dimensions = ?, art_type = ?,
            description = ?, signed = ?, inscription = ?, provenance = ?, exhibition_history = ?,
            literature = ?, condition = ?, notes = ?, source_platform = ?, source_url = ?,
            catalog_number = ?, version = version + 1, updated_at = ?
         WHERE id = ? AND version = ?`,
		strings.TrimSpace(a.Title),
		nullableInt(a.Year),
		boolToInt(a.YearCirca),
		nullableString(a.Medium),
		nullableString(a.Dimensions),
		nullableString(a.ArtType),
		nullableString(a.Description),
		nullableString(a.Signed),
		nullableString(a.Inscription),
		nullableString(a.Provenance),
		nullableString(a.ExhibitionHistory),
		nullableString(a.Literature),
		nullableString(a.Condition),
		nullableString(a.Notes),
		nullableString(a.SourcePlatform),
		nullableString(a.SourceURL),
		nullableString(a.CatalogNumber),
		now,
		a.ID,
		a.Version,
	)
	if err != nil {
		return fmt.Errorf("update artwork %d: %w", a.ID, err)
	}
	if err := versionedResult(ctx, q, res, a.ID, "update artwork"); err != nil {
		return err
	}
	a.Version++
	if updated, err := parseTimeString(now); err == nil {
		a.UpdatedAt = updated
	}
	return nil
}

func deleteArtwork(ctx context.Context, q querier, id, version int64) error {
	res, err := q.ExecContext(ctx, `DELETE FROM artworks WHERE id = ? AND version = ?`, id, version)
	if err != nil {
		return fmt.Errorf("delete artwork %d: %w", id, err)
	}
	return versionedResult(ctx, q, res, id, "delete artwork")
}

// versionedResult distinguishes a missing record from a stale version when a
// versioned write touched no rows.
func versionedResult(ctx context.Context, q querier, res sql.Result, id int64, operation string) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s %d: %w", operation, id, err)
	}
	if affected > 0 {
		return nil
	}
	var exists int
	if err := q.QueryRowContext(ctx, `SELECT COUNT(1) FROM artworks WHERE id = ?`, id).Scan(&exists); err != nil {
		return fmt.Errorf("%s %d: %w", operation, id, err)
	}
	if exists == 0 {
		return artworkNotFound(operation, id)
	}
	return fmt.Errorf("%s %d: %w", operation, id, ErrStaleVersion)
}

// ListArtworks returns records matching filter in id order.
func (s *Store) ListArtworks(ctx context.Context, filter ArtworkFilter) ([]*Artwork, error) {
	ctx = ensureContext(ctx)
	where, args := filter.where("")
	query := `SELECT ` + artworkColumns + ` FROM artworks` + where + ` ORDER BY id`
	if filter.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, filter.Limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list artworks: %w", err)
	}
	defer rows.Close()

	var artworks []*Artwork
	for rows.Next() {
		a, err := scanArtwork(rows)
		if err != nil {
			return nil, fmt.Errorf("scan artwork: %w", err)
		}
		artworks = append(artworks, a)
	}
	return artworks, rows.Err()
}

// CountArtworks counts records matching filter, ignoring AfterID and Limit.
func (s *Store) CountArtworks(ctx context.Context, filter ArtworkFilter) (int, error) {
	filter.AfterID = 0
	where, args := filter.where("")
	var count int
	if err := s.db.QueryRowContext(ensureContext(ctx), `SELECT COUNT(1) FROM artworks`+where, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("count artworks: %w", err)
	}
	return count, nil
}

// IterateArtworks walks records matching filter in id-ordered batches,
// issuing one short query per batch. Returning an error from fn stops the walk.
func (s *Store) IterateArtworks(ctx context.Context, filter ArtworkFilter, batchSize int, fn func([]*Artwork) error) error {
	ctx = ensureContext(ctx)
	if batchSize <= 0 {
		batchSize = 500
	}
	filter.Limit = batchSize
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		batch, err := s.ListArtworks(ctx, filter)
		if err != nil {
			return err
		}
		if len(batch) == 0 {
			return nil
		}
		if err := fn(batch); err != nil {
			return err
		}
		if len(batch) < batchSize {
			return nil
		}
		filter.AfterID = batch[len(batch)-1].ID
	}
}
