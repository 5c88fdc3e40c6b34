package domain

import (
	"slices"
	"strings"
)

// ItemKind identifies which ordered collection an item belongs to.
type ItemKind string

// ItemKind values.
const (
	ItemKindCard   ItemKind = "card"
	ItemKindColumn ItemKind = "column"
)

// Valid reports whether the kind is known.
func (k ItemKind) Valid() bool {
	return slices.Contains([]ItemKind{ItemKindCard, ItemKindColumn}, k)
}

// ItemPosition is a write request placing an item in a container at a key.
// For cards the container is a column, for columns it is the board.
type ItemPosition struct {
	Kind        ItemKind `json:"kind"`
	ItemID      string   `json:"item_id"`
	ContainerID string   `json:"container_id"`
	OrderKey    OrderKey `json:"order_key"`
}

// Validate normalizes and checks the position.
func (p ItemPosition) Validate() (ItemPosition, error) {
	p.ItemID = strings.TrimSpace(p.ItemID)
	p.ContainerID = strings.TrimSpace(p.ContainerID)
	if !p.Kind.Valid() {
		return ItemPosition{}, ErrInvalidItemKind
	}
	if p.ItemID == "" {
		return ItemPosition{}, ErrInvalidID
	}
	if p.ContainerID == "" {
		if p.Kind == ItemKindColumn {
			return ItemPosition{}, ErrInvalidBoardID
		}
		return ItemPosition{}, ErrInvalidColumnID
	}
	if !p.OrderKey.Valid() {
		return ItemPosition{}, ErrInvalidOrderKey
	}
	return p, nil
}

// KeyAssignment assigns one key inside a batch reorder.
type KeyAssignment struct {
	ItemID   string   `json:"item_id"`
	OrderKey OrderKey `json:"order_key"`
}

// ItemChange is one authoritative remote snapshot entry.
type ItemChange struct {
	Kind        ItemKind `json:"kind"`
	BoardID     string   `json:"board_id"`
	ItemID      string   `json:"item_id"`
	ContainerID string   `json:"container_id"`
	OrderKey    OrderKey `json:"order_key"`
	Revision    int64    `json:"revision"`
	Deleted     bool     `json:"deleted,omitempty"`
	Title       string   `json:"title,omitempty"`
	Description string   `json:"description,omitempty"`
}

// CardChange describes the current state of a card as a snapshot entry.
func CardChange(c Card) ItemChange {
	return ItemChange{
		Kind:        ItemKindCard,
		BoardID:     c.BoardID,
		ItemID:      c.ID,
		ContainerID: c.ColumnID,
		OrderKey:    c.OrderKey,
		Revision:    c.Revision,
		Title:       c.Title,
		Description: c.Description,
	}
}

// ColumnChange describes the current state of a column as a snapshot entry.
func ColumnChange(c Column) ItemChange {
	return ItemChange{
		Kind:        ItemKindColumn,
		BoardID:     c.BoardID,
		ItemID:      c.ID,
		ContainerID: c.BoardID,
		OrderKey:    c.OrderKey,
		Revision:    c.Revision,
		Title:       c.Title,
	}
}

// BoardState is the full authoritative content of one board.
type BoardState struct {
	Board   Board    `json:"board"`
	Columns []Column `json:"columns"`
	Cards   []Card   `json:"cards"`
}
