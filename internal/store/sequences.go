package store

import (
	"context"
	"fmt"
	"strings"
)

// CatalogSequence is the counter behind catalog numbers.
const CatalogSequence = "catalog_number"

// FormatCatalogNumber renders n as PREFIX-000N with width digits.
func FormatCatalogNumber(prefix string, width int, n int64) string {
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		return fmt.Sprintf("%0*d", width, n)
	}
	return fmt.Sprintf("%s-%0*d", prefix, width, n)
}

// NextCatalogNumber issues the next value of a named sequence in its own
// immediate transaction.
func (s *Store) NextCatalogNumber(ctx context.Context, name string) (int64, error) {
	var value int64
	err := s.WithTx(ctx, func(tx *Tx) error {
		var err error
		value, err = tx.NextSequence(ctx, name)
		return err
	})
	return value, err
}

// AssignCatalogNumber stamps an artwork with the next catalog number unless
// it already has one. It returns the artwork's number and whether it was
// newly assigned.
func (s *Store) AssignCatalogNumber(ctx context.Context, artworkID int64, prefix string, width int) (string, bool, error) {
	ctx = ensureContext(ctx)
	var (
		number   string
		assigned bool
	)
	err := s.WithTx(ctx, func(tx *Tx) error {
		assigned = false
		a, err := tx.GetArtwork(ctx, artworkID)
		if err != nil {
			return err
		}
		if a.CatalogNumber != "" {
			number = a.CatalogNumber
			return nil
		}
		n, err := tx.NextSequence(ctx, CatalogSequence)
		if err != nil {
			return err
		}
		a.CatalogNumber = FormatCatalogNumber(prefix, width, n)
		if err := tx.UpdateArtwork(ctx, a); err != nil {
			return err
		}
		number = a.CatalogNumber
		assigned = true
		return nil
	})
	if err != nil {
		return "", false, fmt.Errorf("assign catalog number to %d: %w", artworkID, err)
	}
	return number, assigned, nil
}
