package board

import "errors"

// ErrUnknownBoard and related errors describe container model lookup failures.
var (
	ErrUnknownBoard      = errors.New("unknown board")
	ErrUnknownColumn     = errors.New("unknown column")
	ErrUnknownCard       = errors.New("unknown card")
	ErrCrossBoardMove    = errors.New("move crosses board boundary")
	ErrInconsistentState = errors.New("inconsistent container state")
)
