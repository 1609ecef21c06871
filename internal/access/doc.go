// Package access gives the CLI one interface over the dedup operations,
// served either by a running daemon or by an in-process service opened on the
// catalog database when no daemon answers.
package access
