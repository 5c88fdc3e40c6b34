package domain

import "errors"

var (
	ErrInvalidID       = errors.New("invalid id")
	ErrInvalidTitle    = errors.New("invalid title")
	ErrInvalidBoardID  = errors.New("invalid board id")
	ErrInvalidColumnID = errors.New("invalid column id")
	ErrInvalidOrderKey = errors.New("invalid order key")
	ErrInvalidItemKind = errors.New("invalid item kind")
	ErrInvalidStep     = errors.New("invalid order key step")

	// ErrKeyExhausted reports that no key exists strictly between two neighbours.
	ErrKeyExhausted = errors.New("order key space exhausted")
)
