// Package scanner detects duplicate candidates across the catalog.
//
// A full scan runs in the background under a uuid handle: it backfills
// missing image fingerprints with a bounded worker pool, loads the scope in
// id-ordered batches into compact similarity profiles, compares the pairs
// that survive year blocking and writes every qualifying pair as a pending
// candidate. Progress counters are updated atomically and can be polled with
// Status while the scan runs; finished scans stay queryable for the
// configured retention.
//
// CheckRecord runs the same comparison for one record against the whole
// catalog synchronously and is used when a record is added.
package scanner
