package common

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/hylla/tavla/internal/app"
	"github.com/hylla/tavla/internal/board"
	"github.com/hylla/tavla/internal/domain"
)

var _ BoardService = (*AppServiceAdapter)(nil)

// AppServiceAdapter maps transport contracts onto app.Service board APIs.
type AppServiceAdapter struct {
	service *app.Service
}

// NewAppServiceAdapter builds one common adapter over an app.Service instance.
func NewAppServiceAdapter(service *app.Service) *AppServiceAdapter {
	return &AppServiceAdapter{service: service}
}

// ListBoards lists boards through the service.
func (a *AppServiceAdapter) ListBoards(ctx context.Context) ([]domain.Board, error) {
	if err := a.ready(); err != nil {
		return nil, err
	}
	boards, err := a.service.ListBoards(ctx)
	if err != nil {
		return nil, MapAppError("list boards", err)
	}
	return boards, nil
}

// GetBoard returns the ordered view of one board.
func (a *AppServiceAdapter) GetBoard(ctx context.Context, boardID string) (BoardView, error) {
	if err := a.ready(); err != nil {
		return BoardView{}, err
	}
	boardID = strings.TrimSpace(boardID)
	if boardID == "" {
		return BoardView{}, fmt.Errorf("board_id is required: %w", ErrInvalidRequest)
	}
	state, err := a.service.BoardState(ctx, boardID)
	if err != nil {
		return BoardView{}, MapAppError("get board", err)
	}
	return NewBoardView(state), nil
}

// MoveCard runs an index-based card move through the reconciler.
func (a *AppServiceAdapter) MoveCard(ctx context.Context, in MoveCardRequest) (MoveResult, error) {
	if err := a.ready(); err != nil {
		return MoveResult{}, err
	}
	in.CardID = strings.TrimSpace(in.CardID)
	in.ColumnID = strings.TrimSpace(in.ColumnID)
	if in.CardID == "" || in.ColumnID == "" {
		return MoveResult{}, fmt.Errorf("card_id and column_id are required: %w", ErrInvalidRequest)
	}
	if in.Index < 0 {
		return MoveResult{}, fmt.Errorf("index must be >= 0: %w", ErrInvalidRequest)
	}
	res, err := a.service.MoveCard(ctx, in.CardID, in.ColumnID, in.Index)
	if err != nil {
		return MoveResult{}, MapAppError("move card", err)
	}
	return mapMoveResult(res), nil
}

// MoveColumn runs an index-based column move through the reconciler.
func (a *AppServiceAdapter) MoveColumn(ctx context.Context, in MoveColumnRequest) (MoveResult, error) {
	if err := a.ready(); err != nil {
		return MoveResult{}, err
	}
	in.ColumnID = strings.TrimSpace(in.ColumnID)
	if in.ColumnID == "" {
		return MoveResult{}, fmt.Errorf("column_id is required: %w", ErrInvalidRequest)
	}
	if in.Index < 0 {
		return MoveResult{}, fmt.Errorf("index must be >= 0: %w", ErrInvalidRequest)
	}
	res, err := a.service.MoveColumn(ctx, in.ColumnID, in.Index)
	if err != nil {
		return MoveResult{}, MapAppError("move column", err)
	}
	return mapMoveResult(res), nil
}

// ListChangeEvents lists recent ledger entries for a board.
func (a *AppServiceAdapter) ListChangeEvents(ctx context.Context, boardID string, limit int) ([]domain.ChangeEvent, error) {
	if err := a.ready(); err != nil {
		return nil, err
	}
	events, err := a.service.ListBoardChangeEvents(ctx, strings.TrimSpace(boardID), limit)
	if err != nil {
		return nil, MapAppError("list change events", err)
	}
	return events, nil
}

func (a *AppServiceAdapter) ready() error {
	if a == nil || a.service == nil {
		return fmt.Errorf("app service adapter is not configured: %w", ErrUnavailable)
	}
	return nil
}

// NewBoardView groups an ordered board state into columns with their cards.
func NewBoardView(state domain.BoardState) BoardView {
	view := BoardView{Board: state.Board, Columns: make([]ColumnView, 0, len(state.Columns))}
	index := make(map[string]int, len(state.Columns))
	for i, col := range state.Columns {
		index[col.ID] = i
		view.Columns = append(view.Columns, ColumnView{Column: col, Cards: []domain.Card{}})
	}
	for _, card := range state.Cards {
		i, ok := index[card.ColumnID]
		if !ok {
			continue
		}
		view.Columns[i].Cards = append(view.Columns[i].Cards, card)
	}
	return view
}

// mapMoveResult maps one model move result into its transport shape.
func mapMoveResult(res board.MoveResult) MoveResult {
	return MoveResult{
		Kind:            res.Kind,
		BoardID:         res.BoardID,
		ItemID:          res.ItemID,
		FromContainerID: res.From.ContainerID,
		FromIndex:       res.From.Index,
		ToContainerID:   res.To.ContainerID,
		ToIndex:         res.To.Index,
		OrderKey:        res.To.OrderKey,
		Revision:        res.Revision,
		Changed:         res.Changed,
	}
}

// MapAppError maps app, board and domain errors into transport-layer error sentinels.
func MapAppError(operation string, err error) error {
	if err == nil {
		return nil
	}

	switch {
	case errors.Is(err, app.ErrNotFound),
		errors.Is(err, board.ErrUnknownBoard),
		errors.Is(err, board.ErrUnknownColumn),
		errors.Is(err, board.ErrUnknownCard):
		return fmt.Errorf("%s: %w", operation, errors.Join(ErrNotFound, err))
	case errors.Is(err, domain.ErrKeyExhausted),
		errors.Is(err, board.ErrInconsistentState),
		errors.Is(err, app.ErrPersistFailed):
		return fmt.Errorf("%s: %w", operation, errors.Join(ErrConflict, err))
	case errors.Is(err, domain.ErrInvalidID),
		errors.Is(err, domain.ErrInvalidTitle),
		errors.Is(err, domain.ErrInvalidBoardID),
		errors.Is(err, domain.ErrInvalidColumnID),
		errors.Is(err, domain.ErrInvalidOrderKey),
		errors.Is(err, domain.ErrInvalidItemKind),
		errors.Is(err, board.ErrCrossBoardMove),
		errors.Is(err, app.ErrInvalidSnapshot):
		return fmt.Errorf("%s: %w", operation, errors.Join(ErrInvalidRequest, err))
	default:
		return fmt.Errorf("%s: %w", operation, err)
	}
}
