package drag

import "errors"

// ErrNotDragging and related errors describe invalid gesture transitions.
var (
	ErrNotDragging     = errors.New("no drag in progress")
	ErrAlreadyDragging = errors.New("drag already in progress")
	ErrUnknownItem     = errors.New("item not present in layout")
)
