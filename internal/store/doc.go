// Package store persists the artwork catalog and the duplicate detection
// state in a single SQLite database.
//
// Catalog records, their images and every dependent child table live next to
// duplicate_candidates, merge_audit, artwork_relationships and
// catalog_sequences so a merge can move children, re-point candidates and
// delete the source record inside one immediate transaction.
//
// Candidate pairs are stored normalized (artwork_id_1 < artwork_id_2) and the
// unique index is the only arbiter between concurrent writers: InsertCandidate
// reports inserted=false instead of an error when the pair already exists.
//
// Schema changes bump schemaVersion in schema.go; an older database is
// rejected with ErrSchemaMismatch.
package store
