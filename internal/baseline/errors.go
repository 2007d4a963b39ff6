package baseline

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound matches a NotFoundError.
	ErrNotFound = errors.New("baseline not found")
	// ErrCorrupt matches a CorruptError.
	ErrCorrupt = errors.New("baseline corrupt")
)

// NotFoundError is returned when no baseline has been saved yet.
type NotFoundError struct {
	Path string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("no baseline at %s", e.Path)
}

func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// CorruptError is returned when a baseline exists but cannot be trusted.
type CorruptError struct {
	Path string
	Err  error
}

func (e *CorruptError) Error() string {
	return fmt.Sprintf("baseline %s is corrupt: %v", e.Path, e.Err)
}

func (e *CorruptError) Unwrap() error {
	return e.Err
}

func (e *CorruptError) Is(target error) bool {
	return target == ErrCorrupt
}
