package shared

import (
	"errors"
	"fmt"
)

// ErrNotFound indicates resource not found.
var ErrNotFound = errors.New("not found")

// LookupError reports a missing referenced entity (membership, payment,
// plan). It is fatal to the operation that raised it and propagates to the
// caller unmodified.
type LookupError struct {
	Entity string
	ID     int64
}

func (e *LookupError) Error() string {
	return fmt.Sprintf("%s %d: %v", e.Entity, e.ID, ErrNotFound)
}

func (e *LookupError) Unwrap() error {
	return ErrNotFound
}

// NewLookupError constructs a LookupError for the given entity reference.
func NewLookupError(entity string, id int64) error {
	return &LookupError{Entity: entity, ID: id}
}
