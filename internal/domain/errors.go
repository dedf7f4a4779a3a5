package domain

import (
	"errors"
	"fmt"
)

// Error taxonomy. Adapters return plain causes; the pipeline and ingestor tag
// them with one of these so callers can branch with errors.Is.
var (
	// ErrFetch: the source feed was unreachable or returned unusable content.
	// A run that hits it ends without touching any store.
	ErrFetch = errors.New("fetch failed")
	// ErrStoreAuth: the store rejected our credentials. Fatal for the run.
	ErrStoreAuth = errors.New("store authorization failed")
	// ErrStoreRead: reading existing rows failed.
	ErrStoreRead = errors.New("store read failed")
	// ErrStoreWrite: creating a store or appending a row failed.
	ErrStoreWrite = errors.New("store write failed")
)

// Tag wraps cause with a taxonomy sentinel. A nil cause stays nil.
func Tag(kind, cause error) error {
	if cause == nil {
		return nil
	}
	if errors.Is(cause, kind) {
		return cause
	}
	return fmt.Errorf("%w: %w", kind, cause)
}
