// Package merge consolidates two artwork records into one.
//
// A Policy chooses, per declared field, whether the surviving record keeps
// its own value, takes the source's, or combines both (free-text fields
// only). Merge validates the policy before touching anything, then in a
// single immediate transaction reassigns every child table, re-points open
// candidates and relationships, deletes the source, writes the merged target
// under an optimistic version check and records a merge_audit row. Any
// failure leaves both records untouched.
package merge
