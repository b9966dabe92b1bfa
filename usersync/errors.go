package usersync

import (
	"errors"
	"fmt"
)

var (
	// ErrAuthRequired is returned by mutations made without a signed-in user
	ErrAuthRequired = errors.New("sign in required")
	// ErrCapExceeded matches any *CapExceededError
	ErrCapExceeded = errors.New("limit reached")
	// ErrNotFound is returned when a document does not exist
	ErrNotFound = errors.New("document not found")
	// ErrInvalidInput is the parent of every validation error
	ErrInvalidInput = errors.New("invalid input")

	ErrNotInLibrary  = fmt.Errorf("%w: anime is not in the library", ErrNotFound)
	ErrInvalidScore  = fmt.Errorf("%w: score must be between 0 and 10", ErrInvalidInput)
	ErrInvalidStatus = fmt.Errorf("%w: unknown status", ErrInvalidInput)
)

// CapExceededError is returned when adding to a capped collection that is full.
// Nothing is written.
type CapExceededError struct {
	Collection string
	Cap        int
}

func (e *CapExceededError) Error() string {
	return fmt.Sprintf("you can have at most %d %s", e.Cap, e.Collection)
}

func (e *CapExceededError) Is(target error) bool {
	return target == ErrCapExceeded
}
