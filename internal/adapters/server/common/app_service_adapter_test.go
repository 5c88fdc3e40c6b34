package common

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/hylla/tavla/internal/adapters/storage/sqlite"
	"github.com/hylla/tavla/internal/app"
	"github.com/hylla/tavla/internal/board"
	"github.com/hylla/tavla/internal/domain"
)

// newAdapterFixture builds a sqlite-backed service with one board holding cards a, b in its first column.
func newAdapterFixture(t *testing.T) (*AppServiceAdapter, domain.BoardState) {
	t.Helper()
	repo, err := sqlite.Open(filepath.Join(t.TempDir(), "tavla.db"))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { _ = repo.Close() })

	n := 0
	svc := app.NewService(repo, func() string {
		n++
		return fmt.Sprintf("id-%d", n)
	}, func() time.Time { return time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC) }, app.ServiceConfig{})
	t.Cleanup(svc.Close)

	ctx := context.Background()
	b, err := svc.CreateBoard(ctx, app.CreateBoardInput{Title: "Roadmap", Columns: []string{"Todo", "Done"}})
	if err != nil {
		t.Fatalf("CreateBoard() error = %v", err)
	}
	state, err := svc.BoardState(ctx, b.ID)
	if err != nil {
		t.Fatalf("BoardState() error = %v", err)
	}
	for _, title := range []string{"a", "b"} {
		if _, err := svc.CreateCard(ctx, app.CreateCardInput{ColumnID: state.Columns[0].ID, Title: title, Index: -1}); err != nil {
			t.Fatalf("CreateCard() error = %v", err)
		}
	}
	state, err = svc.BoardState(ctx, b.ID)
	if err != nil {
		t.Fatalf("BoardState() error = %v", err)
	}
	return NewAppServiceAdapter(svc), state
}

func TestAppServiceAdapterBoardViewAndMoves(t *testing.T) {
	adapter, state := newAdapterFixture(t)
	ctx := context.Background()
	todo, done := state.Columns[0].ID, state.Columns[1].ID

	view, err := adapter.GetBoard(ctx, state.Board.ID)
	if err != nil {
		t.Fatalf("GetBoard() error = %v", err)
	}
	if len(view.Columns) != 2 || len(view.Columns[0].Cards) != 2 || view.Columns[0].Cards[0].Title != "a" {
		t.Fatalf("unexpected view %#v", view)
	}

	cardID := view.Columns[0].Cards[0].ID
	res, err := adapter.MoveCard(ctx, MoveCardRequest{CardID: cardID, ColumnID: done, Index: 0})
	if err != nil {
		t.Fatalf("MoveCard() error = %v", err)
	}
	if !res.Changed || res.FromContainerID != todo || res.ToContainerID != done || res.Revision == 0 {
		t.Fatalf("unexpected move result %#v", res)
	}

	colRes, err := adapter.MoveColumn(ctx, MoveColumnRequest{ColumnID: done, Index: 0})
	if err != nil {
		t.Fatalf("MoveColumn() error = %v", err)
	}
	if colRes.ToIndex != 0 || colRes.FromIndex != 1 {
		t.Fatalf("unexpected column move %#v", colRes)
	}

	events, err := adapter.ListChangeEvents(ctx, state.Board.ID, 2)
	if err != nil {
		t.Fatalf("ListChangeEvents() error = %v", err)
	}
	if len(events) != 2 || events[0].Operation != domain.ChangeOperationMove || events[0].ItemKind != domain.ItemKindColumn {
		t.Fatalf("unexpected events %#v", events)
	}
}

func TestAppServiceAdapterValidatesInput(t *testing.T) {
	adapter, _ := newAdapterFixture(t)
	ctx := context.Background()

	if _, err := adapter.MoveCard(ctx, MoveCardRequest{CardID: " ", ColumnID: "c"}); !errors.Is(err, ErrInvalidRequest) {
		t.Fatalf("expected ErrInvalidRequest, got %v", err)
	}
	if _, err := adapter.MoveColumn(ctx, MoveColumnRequest{ColumnID: "c", Index: -1}); !errors.Is(err, ErrInvalidRequest) {
		t.Fatalf("expected ErrInvalidRequest, got %v", err)
	}
	if _, err := adapter.MoveCard(ctx, MoveCardRequest{CardID: "missing", ColumnID: "c"}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	var nilAdapter *AppServiceAdapter
	if _, err := nilAdapter.ListBoards(ctx); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}

func TestMapAppError(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want error
	}{
		{name: "not found", err: app.ErrNotFound, want: ErrNotFound},
		{name: "unknown card", err: board.ErrUnknownCard, want: ErrNotFound},
		{name: "exhausted", err: domain.ErrKeyExhausted, want: ErrConflict},
		{name: "persist", err: &app.MoveError{Kind: domain.ItemKindCard, ItemID: "x", Err: errors.New("down")}, want: ErrConflict},
		{name: "title", err: domain.ErrInvalidTitle, want: ErrInvalidRequest},
		{name: "cross board", err: board.ErrCrossBoardMove, want: ErrInvalidRequest},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := MapAppError("op", tc.err)
			if !errors.Is(got, tc.want) || !errors.Is(got, tc.err) {
				t.Fatalf("MapAppError() = %v, want %v wrapping %v", got, tc.want, tc.err)
			}
		})
	}
	if MapAppError("op", nil) != nil {
		t.Fatal("expected nil for nil error")
	}
}
