package domain

import (
	"strings"
	"time"
)

// Column represents column data used by this package.
type Column struct {
	ID        string    `json:"id"`
	BoardID   string    `json:"board_id"`
	Title     string    `json:"title"`
	OrderKey  OrderKey  `json:"order_key"`
	Revision  int64     `json:"revision"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewColumn constructs a new value for this package.
func NewColumn(id, boardID, title string, key OrderKey, now time.Time) (Column, error) {
	id = strings.TrimSpace(id)
	boardID = strings.TrimSpace(boardID)
	title = strings.TrimSpace(title)
	if id == "" {
		return Column{}, ErrInvalidID
	}
	if boardID == "" {
		return Column{}, ErrInvalidBoardID
	}
	if title == "" {
		return Column{}, ErrInvalidTitle
	}
	if !key.Valid() {
		return Column{}, ErrInvalidOrderKey
	}

	return Column{
		ID:        id,
		BoardID:   boardID,
		Title:     title,
		OrderKey:  key,
		CreatedAt: now.UTC(),
		UpdatedAt: now.UTC(),
	}, nil
}

// Rename renames the requested operation.
func (c *Column) Rename(title string, now time.Time) error {
	title = strings.TrimSpace(title)
	if title == "" {
		return ErrInvalidTitle
	}
	c.Title = title
	c.UpdatedAt = now.UTC()
	return nil
}

// SetOrderKey handles set order key.
func (c *Column) SetOrderKey(key OrderKey, now time.Time) error {
	if !key.Valid() {
		return ErrInvalidOrderKey
	}
	c.OrderKey = key
	c.UpdatedAt = now.UTC()
	return nil
}
