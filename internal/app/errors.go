package app

import (
	"errors"
	"fmt"

	"github.com/hylla/tavla/internal/domain"
)

// ErrNotFound and related errors describe validation and runtime failures.
var (
	ErrNotFound          = errors.New("not found")
	ErrPersistFailed     = errors.New("persist failed")
	ErrInvalidSnapshot   = errors.New("invalid snapshot")
	ErrUnsupportedFormat = errors.New("unsupported snapshot format")
)

// MoveError reports a move whose persistence failed. Restored tells whether
// the local model was reverted to the pre-move position; it stays false when a
// newer remote revision already superseded the optimistic state.
type MoveError struct {
	Kind     domain.ItemKind
	ItemID   string
	Restored bool
	Err      error
}

// Error returns the error text.
func (e *MoveError) Error() string {
	return fmt.Sprintf("move %s %q: %v: %v", e.Kind, e.ItemID, ErrPersistFailed, e.Err)
}

// Unwrap exposes both ErrPersistFailed and the transport cause.
func (e *MoveError) Unwrap() []error {
	return []error{ErrPersistFailed, e.Err}
}
