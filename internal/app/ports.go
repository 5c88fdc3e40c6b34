package app

import (
	"context"

	"github.com/hylla/tavla/internal/domain"
)

// Repository represents repository data used by this package.
// Writes return the stored entity carrying its server-assigned revision.
type Repository interface {
	CreateBoard(context.Context, domain.Board) (domain.Board, error)
	UpdateBoard(context.Context, domain.Board) (domain.Board, error)
	GetBoard(context.Context, string) (domain.Board, error)
	ListBoards(context.Context) ([]domain.Board, error)
	DeleteBoard(context.Context, string) error
	LoadBoard(context.Context, string) (domain.BoardState, error)

	CreateColumn(context.Context, domain.Column) (domain.Column, error)
	UpdateColumn(context.Context, domain.Column) (domain.Column, error)
	GetColumn(context.Context, string) (domain.Column, error)
	DeleteColumn(context.Context, string) error

	CreateCard(context.Context, domain.Card) (domain.Card, error)
	UpdateCard(context.Context, domain.Card) (domain.Card, error)
	GetCard(context.Context, string) (domain.Card, error)
	DeleteCard(context.Context, string) error

	ListBoardChangeEvents(context.Context, string, int) ([]domain.ChangeEvent, error)
}

// RemoteSync is the persistence and realtime contract used by the reconciler.
type RemoteSync interface {
	// PersistItemPosition stores one item's container and key and returns the
	// authoritative entry with its new revision.
	PersistItemPosition(context.Context, domain.ItemPosition) (domain.ItemChange, error)
	// PersistBatchReorder stores every assignment of a container or none of them.
	PersistBatchReorder(context.Context, domain.ItemKind, string, []domain.KeyAssignment) ([]domain.ItemChange, error)
	// SubscribeToContainerChanges delivers remote snapshots for a board until the
	// returned func is called or ctx ends.
	SubscribeToContainerChanges(context.Context, string, func([]domain.ItemChange)) (func(), error)
}

// Backend combines entity storage with position sync.
type Backend interface {
	Repository
	RemoteSync
}
