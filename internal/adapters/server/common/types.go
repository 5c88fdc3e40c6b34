// Package common provides transport-agnostic server contracts used by HTTP and MCP adapters.
package common

import (
	"context"
	"errors"

	"github.com/hylla/tavla/internal/domain"
)

// ErrInvalidRequest reports malformed transport input.
var ErrInvalidRequest = errors.New("invalid request")

// ErrNotFound reports missing transport-visible resources.
var ErrNotFound = errors.New("not found")

// ErrConflict reports writes rejected because ordering could not be resolved.
var ErrConflict = errors.New("conflict")

// ErrUnavailable reports a surface whose backing service is not configured.
var ErrUnavailable = errors.New("service unavailable")

// ColumnView is one column with its cards in display order.
type ColumnView struct {
	domain.Column
	Cards []domain.Card `json:"cards"`
}

// BoardView is the ordered board read returned to HTTP and MCP callers.
type BoardView struct {
	Board   domain.Board `json:"board"`
	Columns []ColumnView `json:"columns"`
}

// MoveCardRequest captures an index-based card move.
type MoveCardRequest struct {
	CardID   string `json:"card_id"`
	ColumnID string `json:"column_id"`
	Index    int    `json:"index"`
}

// MoveColumnRequest captures an index-based column move.
type MoveColumnRequest struct {
	ColumnID string `json:"column_id"`
	Index    int    `json:"index"`
}

// MoveResult reports where an item ended up after a move.
type MoveResult struct {
	Kind            domain.ItemKind `json:"kind"`
	BoardID         string          `json:"board_id"`
	ItemID          string          `json:"item_id"`
	FromContainerID string          `json:"from_container_id"`
	FromIndex       int             `json:"from_index"`
	ToContainerID   string          `json:"to_container_id"`
	ToIndex         int             `json:"to_index"`
	OrderKey        domain.OrderKey `json:"order_key"`
	Revision        int64           `json:"revision"`
	Changed         bool            `json:"changed"`
}

// BoardService captures the index-based board operations exposed by transports.
type BoardService interface {
	ListBoards(context.Context) ([]domain.Board, error)
	GetBoard(context.Context, string) (BoardView, error)
	MoveCard(context.Context, MoveCardRequest) (MoveResult, error)
	MoveColumn(context.Context, MoveColumnRequest) (MoveResult, error)
	ListChangeEvents(context.Context, string, int) ([]domain.ChangeEvent, error)
}
