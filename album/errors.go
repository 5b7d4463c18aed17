package album

import (
	"errors"
	"fmt"

	"github.com/quailyquaily/albumbot/kvstore"
)

var (
	ErrAlreadyActive    = errors.New("album: session already active")
	ErrNoActiveSession  = errors.New("album: no active session")
	ErrValidationFailed = errors.New("album: validation failed")
	ErrNotFound         = errors.New("album: not found")
	ErrAllocationFailed = errors.New("album: code allocation failed")
	ErrStoreUnavailable = errors.New("album: store unavailable")
	ErrInvalidRecord    = errors.New("album: stored value is not an album record")
)

type Missing string

const (
	MissingTitle Missing = "title"
	MissingFiles Missing = "files"
)

// ValidationError names the first unmet finalize precondition.
type ValidationError struct {
	Missing Missing
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("album: validation failed: missing %s", e.Missing)
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidationFailed
}

// storeError maps a kvstore failure onto the album taxonomy.
func storeError(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, kvstore.ErrNotFound) {
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	}
	return fmt.Errorf("%w: %s: %w", ErrStoreUnavailable, op, err)
}

// IsTransient reports whether retrying the same request later may succeed.
func IsTransient(err error) bool {
	return errors.Is(err, ErrStoreUnavailable) || errors.Is(err, ErrAllocationFailed)
}
