package domain

import (
	"strings"
	"time"
)

type Card struct {
	ID          string    `json:"id"`
	BoardID     string    `json:"board_id"`
	ColumnID    string    `json:"column_id"`
	OrderKey    OrderKey  `json:"order_key"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Revision    int64     `json:"revision"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type CardInput struct {
	ID          string
	BoardID     string
	ColumnID    string
	OrderKey    OrderKey
	Title       string
	Description string
}

func NewCard(in CardInput, now time.Time) (Card, error) {
	in.ID = strings.TrimSpace(in.ID)
	in.BoardID = strings.TrimSpace(in.BoardID)
	in.ColumnID = strings.TrimSpace(in.ColumnID)
	in.Title = strings.TrimSpace(in.Title)
	in.Description = strings.TrimSpace(in.Description)

	if in.ID == "" {
		return Card{}, ErrInvalidID
	}
	if in.BoardID == "" {
		return Card{}, ErrInvalidBoardID
	}
	if in.ColumnID == "" {
		return Card{}, ErrInvalidColumnID
	}
	if in.Title == "" {
		return Card{}, ErrInvalidTitle
	}
	if !in.OrderKey.Valid() {
		return Card{}, ErrInvalidOrderKey
	}

	return Card{
		ID:          in.ID,
		BoardID:     in.BoardID,
		ColumnID:    in.ColumnID,
		OrderKey:    in.OrderKey,
		Title:       in.Title,
		Description: in.Description,
		CreatedAt:   now.UTC(),
		UpdatedAt:   now.UTC(),
	}, nil
}

// Move places the card in a column at the given key.
func (c *Card) Move(columnID string, key OrderKey, now time.Time) error {
	columnID = strings.TrimSpace(columnID)
	if columnID == "" {
		return ErrInvalidColumnID
	}
	if !key.Valid() {
		return ErrInvalidOrderKey
	}
	c.ColumnID = columnID
	c.OrderKey = key
	c.UpdatedAt = now.UTC()
	return nil
}

// UpdateDetails replaces title and description; an empty description clears it.
func (c *Card) UpdateDetails(title, description string, now time.Time) error {
	title = strings.TrimSpace(title)
	if title == "" {
		return ErrInvalidTitle
	}
	c.Title = title
	c.Description = strings.TrimSpace(description)
	c.UpdatedAt = now.UTC()
	return nil
}
