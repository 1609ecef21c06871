package store

import (
	"errors"
	"fmt"

	"artdedup/internal/services"
)

// ErrStaleVersion reports a versioned write whose expected version no longer
// matches the stored record.
var ErrStaleVersion = errors.New("stale record version")

func artworkNotFound(operation string, id int64) error {
	return services.Wrap(services.ErrRecordNotFound, "store", operation, fmt.Sprintf("artwork %d", id), nil)
}

func candidateNotFound(operation string, id int64) error {
	return services.Wrap(services.ErrRecordNotFound, "store", operation, fmt.Sprintf("candidate %d", id), nil)
}
