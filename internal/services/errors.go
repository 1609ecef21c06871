package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrUnreadableImage marks an image that could not be decoded or hashed.
	// Scans count and skip these.
	ErrUnreadableImage = errors.New("unreadable image")
	// ErrRecordNotFound marks a missing artwork or candidate.
	ErrRecordNotFound = errors.New("record not found")
	// ErrDuplicatePair marks a losing concurrent candidate insert. The store
	// absorbs it; it should never reach a caller.
	ErrDuplicatePair = errors.New("duplicate pair conflict")
	// ErrTargetNoLongerExists marks a merge into a record that was itself
	// merged away.
	ErrTargetNoLongerExists = errors.New("target no longer exists")
	// ErrMergeConflict marks a concurrent modification of a record involved in
	// a merge. Callers may retry.
	ErrMergeConflict = errors.New("merge conflict")
	// ErrInvalidFieldPolicy marks a field policy naming an unknown field or
	// combining a non-text field.
	ErrInvalidFieldPolicy = errors.New("invalid field policy")
	// ErrInvalidTransition marks a resolution applied to a candidate that is
	// no longer in a state that allows it.
	ErrInvalidTransition = errors.New("invalid transition")
	// ErrScanNotFound marks an unknown or pruned scan handle.
	ErrScanNotFound = errors.New("scan not found")
	ErrValidation   = errors.New("validation error")
)

// Wrap builds an error message that includes component context while tagging it
// with the provided marker for later classification. The marker should be one
// of the exported sentinel errors above.
func Wrap(marker error, component, operation, message string, err error) error {
	detail := buildDetail(component, operation, message)
	if marker == nil {
		if err != nil {
			return fmt.Errorf("%s: %w", detail, err)
		}
		return errors.New(detail)
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

var kinds = []struct {
	marker error
	name   string
}{
	{ErrRecordNotFound, "record_not_found"},
	{ErrTargetNoLongerExists, "target_no_longer_exists"},
	{ErrMergeConflict, "merge_conflict"},
	{ErrInvalidFieldPolicy, "invalid_field_policy"},
	{ErrInvalidTransition, "invalid_transition"},
	{ErrUnreadableImage, "unreadable_image"},
	{ErrDuplicatePair, "duplicate_pair_conflict"},
	{ErrScanNotFound, "scan_not_found"},
	{ErrValidation, "validation"},
}

// Kind returns a stable snake_case identifier for the error's marker, or
// "internal" when the error carries none.
func Kind(err error) string {
	if err == nil {
		return ""
	}
	for _, k := range kinds {
		if errors.Is(err, k.marker) {
			return k.name
		}
	}
	return "internal"
}

// FromKind rebuilds a marked error from a kind reported by a remote caller,
// so errors.Is keeps working across the HTTP API.
func FromKind(kind, message string) error {
	for _, k := range kinds {
		if k.name == kind {
			if message == "" || message == k.marker.Error() {
				return k.marker
			}
			return fmt.Errorf("%w: %s", k.marker, strings.TrimPrefix(message, k.marker.Error()+": "))
		}
	}
	if message == "" {
		message = "remote error"
	}
	return errors.New(message)
}

func buildDetail(component, operation, message string) string {
	parts := make([]string, 0, 3)
	if component = strings.TrimSpace(component); component != "" {
		parts = append(parts, component)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
