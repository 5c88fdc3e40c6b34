package domain

import (
	"strings"
	"time"
)

// Board represents one kanban board owning an ordered set of columns.
type Board struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Owner     string    `json:"owner"`
	Color     string    `json:"color"`
	Revision  int64     `json:"revision"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewBoard constructs a new value for this package.
func NewBoard(id, title, owner, color string, now time.Time) (Board, error) {
	id = strings.TrimSpace(id)
	title = strings.TrimSpace(title)
	if id == "" {
		return Board{}, ErrInvalidID
	}
	if title == "" {
		return Board{}, ErrInvalidTitle
	}
	return Board{
		ID:        id,
		Title:     title,
		Owner:     strings.TrimSpace(owner),
		Color:     normalizeColor(color),
		CreatedAt: now.UTC(),
		UpdatedAt: now.UTC(),
	}, nil
}

// Rename renames the board.
func (b *Board) Rename(title string, now time.Time) error {
	title = strings.TrimSpace(title)
	if title == "" {
		return ErrInvalidTitle
	}
	b.Title = title
	b.UpdatedAt = now.UTC()
	return nil
}

// SetColor updates the board accent color.
func (b *Board) SetColor(color string, now time.Time) {
	b.Color = normalizeColor(color)
	b.UpdatedAt = now.UTC()
}

// normalizeColor trims and lowercases hex-like color values.
func normalizeColor(color string) string {
	return strings.ToLower(strings.TrimSpace(color))
}
