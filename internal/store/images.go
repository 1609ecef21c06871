package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

const imageColumns = "id, artwork_id, position, is_primary, path, url, width, height, fingerprint, fingerprint_error, created_at"

func scanImage(scanner rowScanner) (*Image, error) {
	var (
		img        Image
		primary    int
		path       sql.NullString
		url        sql.NullString
		width      sql.NullInt64
		height     sql.NullInt64
		fp         sql.NullString
		fpErr      sql.NullString
		createdRaw string
	)
	if err := scanner.Scan(&img.ID, &img.ArtworkID, &img.Position, &primary, &path, &url, &width, &height, &fp, &fpErr, &createdRaw); err != nil {
		return nil, err
	}
	img.IsPrimary = primary != 0
	img.Path = path.String
	img.URL = url.String
	img.Width = int(width.Int64)
	img.Height = int(height.Int64)
	img.Fingerprint = fp.String
	img.FingerprintError = fpErr.String
	if created, err := parseTimeString(createdRaw); err == nil {
		img.CreatedAt = created
	}
	return &img, nil
}

// AddImage appends an image to an artwork. The first image becomes primary;
// a later image marked primary takes over. Position is assigned after the
// current last image when zero or negative.
func (s *Store) AddImage(ctx context.Context, img *Image) (*Image, error) {
	if img == nil || img.ArtworkID == 0 {
		return nil, errors.New("image requires an artwork id")
	}
	ctx = ensureContext(ctx)
	var id int64
	err := s.WithTx(ctx, func(tx *Tx) error {
		if _, err := getArtwork(ctx, tx.tx, img.ArtworkID); err != nil {
			return err
		}
		var (
			count   int
			nextPos int
		)
		if err := tx.tx.QueryRowContext(ctx,
			`SELECT COUNT(1), COALESCE(MAX(position) + 1, 0) FROM artwork_images WHERE artwork_id = ?`,
			img.ArtworkID,
		).Scan(&count, &nextPos); err != nil {
			return fmt.Errorf("read image positions: %w", err)
		}
		position := img.Position
		if position <= 0 {
			position = nextPos
		}
		primary := img.IsPrimary || count == 0
		if primary && count > 0 {
			if _, err := tx.tx.ExecContext(ctx, `UPDATE artwork_images SET is_primary = 0 WHERE artwork_id = ?`, img.ArtworkID); err != nil {
				return fmt.Errorf("clear primary image: %w", err)
			}
		}
		res, err := tx.tx.ExecContext(ctx,
			`INSERT INTO artwork_images (artwork_id, position, is_primary, path, url, width, height, fingerprint, fingerprint_error, created_at)
             VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			img.ArtworkID,
			position,
			boolToInt(primary),
			nullableString(img.Path),
			nullableString(img.URL),
			nullableDimension(img.Width),
			nullableDimension(img.Height),
			nullableString(img.Fingerprint),
			nullableString(img.FingerprintError),
			nowString(),
		)
		if err != nil {
			return fmt.Errorf("insert image: %w", err)
		}
		id, err = res.LastInsertId()
		return err
	})
	if err != nil {
		return nil, err
	}
	return s.GetImage(ctx, id)
}

func nullableDimension(v int) any {
	if v <= 0 {
		return nil
	}
	return v
}

// GetImage fetches one image by id.
func (s *Store) GetImage(ctx context.Context, id int64) (*Image, error) {
	row := s.db.QueryRowContext(ensureContext(ctx), `SELECT `+imageColumns+` FROM artwork_images WHERE id = ?`, id)
	img, err := scanImage(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get image %d: %w", id, err)
	}
	return img, nil
}

// ImagesFor returns an artwork's images in position order.
func (s *Store) ImagesFor(ctx context.Context, artworkID int64) ([]*Image, error) {
	return s.queryImages(ctx, `SELECT `+imageColumns+` FROM artwork_images WHERE artwork_id = ? ORDER BY position, id`, artworkID)
}

// PrimaryImage returns the primary image of an artwork, falling back to the
// first by position. It returns nil when the artwork has no images.
func (s *Store) PrimaryImage(ctx context.Context, artworkID int64) (*Image, error) {
	row := s.db.QueryRowContext(ensureContext(ctx),
		`SELECT `+imageColumns+` FROM artwork_images WHERE artwork_id = ? ORDER BY is_primary DESC, position, id LIMIT 1`,
		artworkID,
	)
	img, err := scanImage(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("primary image for %d: %w", artworkID, err)
	}
	return img, nil
}

// FingerprintsFor returns the cached fingerprints of every listed artwork,
// keyed by artwork id. Images without a fingerprint are skipped.
func (s *Store) FingerprintsFor(ctx context.Context, artworkIDs []int64) (map[int64][]string, error) {
	out := make(map[int64][]string, len(artworkIDs))
	if len(artworkIDs) == 0 {
		return out, nil
	}
	rows, err := s.db.QueryContext(ensureContext(ctx),
		`SELECT artwork_id, fingerprint FROM artwork_images
         WHERE fingerprint IS NOT NULL AND artwork_id IN (`+makePlaceholders(len(artworkIDs))+`)
         ORDER BY artwork_id, position, id`,
		int64Args(artworkIDs)...,
	)
	if err != nil {
		return nil, fmt.Errorf("load fingerprints: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			id int64
			fp string
		)
		if err := rows.Scan(&id, &fp); err != nil {
			return nil, fmt.Errorf("scan fingerprint: %w", err)
		}
		out[id] = append(out[id], fp)
	}
	return out, rows.Err()
}

// UnfingerprintedImages returns local images of artworks matching filter that
// have neither a fingerprint nor a recorded failure.
func (s *Store) UnfingerprintedImages(ctx context.Context, filter ArtworkFilter) ([]*Image, error) {
	filter.AfterID = 0
	filter.Limit = 0
	where, args := filter.where("a")
	clause := " WHERE "
	if where != "" {
		clause = where + " AND "
	}
	query := `SELECT i.id, i.artwork_id, i.position, i.is_primary, i.path, i.url, i.width, i.height,
            i.fingerprint, i.fingerprint_error, i.created_at
         FROM artwork_images i JOIN artworks a ON a.id = i.artwork_id` +
		clause + `i.fingerprint IS NULL AND i.fingerprint_error IS NULL AND i.path IS NOT NULL
         ORDER BY i.artwork_id, i.position, i.id`
	return s.queryImages(ctx, query, args...)
}

// FailedImageCount counts local images of artworks matching filter whose
// fingerprinting failed in an earlier pass and is still on record.
func (s *Store) FailedImageCount(ctx context.Context, filter ArtworkFilter) (int64, error) {
	filter.AfterID = 0
	filter.Limit = 0
	where, args := filter.where("a")
	clause := " WHERE "
	if where != "" {
		clause = where + " AND "
	}
	query := `SELECT COUNT(1) FROM artwork_images i JOIN artworks a ON a.id = i.artwork_id` +
		clause + `i.fingerprint IS NULL AND i.fingerprint_error IS NOT NULL AND i.path IS NOT NULL`
	var n int64
	if err := s.db.QueryRowContext(ensureContext(ctx), query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count failed images: %w", err)
	}
	return n, nil
}

func (s *Store) queryImages(ctx context.Context, query string, args ...any) ([]*Image, error) {
	rows, err := s.db.QueryContext(ensureContext(ctx), query, args...)
	if err != nil {
		return nil, fmt.Errorf("query images: %w", err)
	}
	defer rows.Close()
	var images []*Image
	for rows.Next() {
		img, err := scanImage(rows)
		if err != nil {
			return nil, fmt.Errorf("scan image: %w", err)
		}
		images = append(images, img)
	}
	return images, rows.Err()
}

// SetImageFingerprint caches a generated fingerprint and clears any recorded failure.
func (s *Store) SetImageFingerprint(ctx context.Context, imageID int64, fingerprint string) error {
	if _, err := s.execWithRetry(ctx,
		`UPDATE artwork_images SET fingerprint = ?, fingerprint_error = NULL WHERE id = ?`,
		fingerprint, imageID,
	); err != nil {
		return fmt.Errorf("set fingerprint for image %d: %w", imageID, err)
	}
	return nil
}

// SetImageFingerprintError records why an image could not be fingerprinted so
// later scans skip it.
func (s *Store) SetImageFingerprintError(ctx context.Context, imageID int64, reason string) error {
	if reason == "" {
		reason = "unreadable"
	}
	if _, err := s.execWithRetry(ctx,
		`UPDATE artwork_images SET fingerprint = NULL, fingerprint_error = ? WHERE id = ?`,
		reason, imageID,
	); err != nil {
		return fmt.Errorf("record fingerprint failure for image %d: %w", imageID, err)
	}
	return nil
}

// ClearFingerprintErrors makes previously unreadable images eligible for a
// new attempt. It returns the number of images reset.
func (s *Store) ClearFingerprintErrors(ctx context.Context) (int64, error) {
	res, err := s.execWithRetry(ctx, `UPDATE artwork_images SET fingerprint_error = NULL WHERE fingerprint_error IS NOT NULL`)
	if err != nil {
		return 0, fmt.Errorf("clear fingerprint errors: %w", err)
	}
	return res.RowsAffected()
}
