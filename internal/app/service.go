package app

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/hylla/tavla/internal/board"
	"github.com/hylla/tavla/internal/domain"
)

// ServiceConfig holds configuration for service.
type ServiceConfig struct {
	Allocator      domain.Allocator
	DefaultColumns []string
	Logger         *log.Logger
}

// IDGenerator returns unique identifiers for new entities.
type IDGenerator func() string

// Clock returns the current time.
type Clock func() time.Time

// Service represents service data used by this package.
type Service struct {
	backend        Backend
	model          *board.Model
	reconciler     *Reconciler
	idGen          IDGenerator
	clock          Clock
	defaultColumns []string
	logger         *log.Logger

	mu   sync.Mutex
	subs map[string]func()
}

// NewService constructs a new value for this package.
func NewService(backend Backend, idGen IDGenerator, clock Clock, cfg ServiceConfig) *Service {
	if idGen == nil {
		idGen = func() string { return "" }
	}
	if clock == nil {
		clock = time.Now
	}
	if cfg.Logger == nil {
		cfg.Logger = log.New(io.Discard)
	}
	if cfg.Allocator == (domain.Allocator{}) {
		cfg.Allocator = domain.DefaultAllocator()
	}
	if cfg.DefaultColumns == nil {
		cfg.DefaultColumns = []string{"To Do", "In Progress", "Done"}
	}
	model := board.NewModel(cfg.Allocator, board.WithClock(clock))
	return &Service{
		backend:        backend,
		model:          model,
		reconciler:     NewReconciler(model, backend, cfg.Logger),
		idGen:          idGen,
		clock:          clock,
		defaultColumns: sanitizeColumnNames(cfg.DefaultColumns),
		logger:         cfg.Logger,
		subs:           map[string]func(){},
	}
}

// Model returns the container model backing open boards.
func (s *Service) Model() *board.Model {
	return s.model
}

// Reconciler returns the reconciler driving moves.
func (s *Service) Reconciler() *Reconciler {
	return s.reconciler
}

// Close stops every board subscription.
func (s *Service) Close() {
	s.mu.Lock()
	subs := s.subs
	s.subs = map[string]func(){}
	s.mu.Unlock()
	for _, stop := range subs {
		stop()
	}
}

// ListBoards lists boards.
func (s *Service) ListBoards(ctx context.Context) ([]domain.Board, error) {
	return s.backend.ListBoards(ctx)
}

// OpenBoard loads a board into the model and subscribes to its remote changes.
// Opening an already open board reloads it.
func (s *Service) OpenBoard(ctx context.Context, boardID string) (domain.BoardState, error) {
	state, err := s.backend.LoadBoard(ctx, boardID)
	if err != nil {
		return domain.BoardState{}, err
	}
	if err := s.model.Load(state); err != nil {
		return domain.BoardState{}, err
	}
	s.mu.Lock()
	_, subscribed := s.subs[boardID]
	s.mu.Unlock()
	if subscribed {
		return state, nil
	}
	stop, err := s.reconciler.Subscribe(context.WithoutCancel(ctx), boardID)
	if err != nil {
		return domain.BoardState{}, err
	}
	s.mu.Lock()
	s.subs[boardID] = stop
	s.mu.Unlock()
	s.logger.Debug("board opened", "board_id", boardID, "columns", len(state.Columns), "cards", len(state.Cards))
	return state, nil
}

// CloseBoard stops the subscription for a board and forgets its local state.
func (s *Service) CloseBoard(boardID string) {
	s.mu.Lock()
	stop, ok := s.subs[boardID]
	delete(s.subs, boardID)
	s.mu.Unlock()
	if ok {
		stop()
	}
	_ = s.model.RemoveBoard(boardID)
}

// ensureOpen opens a board on first use.
func (s *Service) ensureOpen(ctx context.Context, boardID string) error {
	if _, ok := s.model.Board(boardID); ok {
		return nil
	}
	_, err := s.OpenBoard(ctx, boardID)
	return err
}

// BoardState returns the model's ordered view of an open board.
func (s *Service) BoardState(ctx context.Context, boardID string) (domain.BoardState, error) {
	if err := s.ensureOpen(ctx, boardID); err != nil {
		return domain.BoardState{}, err
	}
	b, _ := s.model.Board(boardID)
	cols, err := s.model.OrderedColumns(boardID)
	if err != nil {
		return domain.BoardState{}, err
	}
	state := domain.BoardState{Board: b, Columns: cols, Cards: []domain.Card{}}
	for _, col := range cols {
		cards, err := s.model.OrderedCards(col.ID)
		if err != nil {
			return domain.BoardState{}, err
		}
		state.Cards = append(state.Cards, cards...)
	}
	return state, nil
}

// CreateBoardInput holds input values for create board operations.
type CreateBoardInput struct {
	Title   string
	Owner   string
	Color   string
	Columns []string
}

// CreateBoard creates a board with its initial columns.
func (s *Service) CreateBoard(ctx context.Context, in CreateBoardInput) (domain.Board, error) {
	now := s.clock()
	b, err := domain.NewBoard(s.idGen(), in.Title, in.Owner, in.Color, now)
	if err != nil {
		return domain.Board{}, err
	}
	stored, err := s.backend.CreateBoard(ctx, b)
	if err != nil {
		return domain.Board{}, err
	}
	names := sanitizeColumnNames(in.Columns)
	if in.Columns == nil {
		names = s.defaultColumns
	}
	keys := s.model.Allocator().Spread(len(names))
	for i, name := range names {
		col, err := domain.NewColumn(s.idGen(), stored.ID, name, keys[i], now)
		if err != nil {
			return domain.Board{}, err
		}
		if _, err := s.backend.CreateColumn(ctx, col); err != nil {
			return domain.Board{}, err
		}
	}
	return stored, nil
}

// UpdateBoardInput holds input values for update board operations.
type UpdateBoardInput struct {
	ID    string
	Title string
	Color *string
}

// UpdateBoard renames or recolors a board.
func (s *Service) UpdateBoard(ctx context.Context, in UpdateBoardInput) (domain.Board, error) {
	b, err := s.backend.GetBoard(ctx, in.ID)
	if err != nil {
		return domain.Board{}, err
	}
	now := s.clock()
	if strings.TrimSpace(in.Title) != "" {
		if err := b.Rename(in.Title, now); err != nil {
			return domain.Board{}, err
		}
	}
	if in.Color != nil {
		b.SetColor(*in.Color, now)
	}
	stored, err := s.backend.UpdateBoard(ctx, b)
	if err != nil {
		return domain.Board{}, err
	}
	if _, ok := s.model.Board(stored.ID); ok {
		s.model.UpsertBoard(stored)
	}
	return stored, nil
}

// DeleteBoard deletes a board with its columns and cards.
func (s *Service) DeleteBoard(ctx context.Context, boardID string) error {
	if err := s.backend.DeleteBoard(ctx, boardID); err != nil {
		return err
	}
	s.CloseBoard(boardID)
	return nil
}

// CreateColumnInput holds input values for create column operations.
// A negative Index appends.
type CreateColumnInput struct {
	BoardID string
	Title   string
	Index   int
}

// CreateColumn creates a column at the requested index.
func (s *Service) CreateColumn(ctx context.Context, in CreateColumnInput) (domain.Column, error) {
	if err := s.ensureOpen(ctx, in.BoardID); err != nil {
		return domain.Column{}, err
	}
	key, err := s.keyFor(ctx, domain.ItemKindColumn, in.BoardID, in.Index)
	if err != nil {
		return domain.Column{}, err
	}
	col, err := domain.NewColumn(s.idGen(), in.BoardID, in.Title, key, s.clock())
	if err != nil {
		return domain.Column{}, err
	}
	stored, err := s.backend.CreateColumn(ctx, col)
	if err != nil {
		return domain.Column{}, err
	}
	if err := s.model.UpsertColumn(stored); err != nil {
		return domain.Column{}, err
	}
	return stored, nil
}

// RenameColumn renames a column.
func (s *Service) RenameColumn(ctx context.Context, columnID, title string) (domain.Column, error) {
	col, err := s.backend.GetColumn(ctx, columnID)
	if err != nil {
		return domain.Column{}, err
	}
	if err := col.Rename(title, s.clock()); err != nil {
		return domain.Column{}, err
	}
	stored, err := s.backend.UpdateColumn(ctx, col)
	if err != nil {
		return domain.Column{}, err
	}
	s.upsertIfOpen(stored.BoardID, func() error { return s.model.UpsertColumn(stored) })
	return stored, nil
}

// DeleteColumn deletes a column and its cards.
func (s *Service) DeleteColumn(ctx context.Context, columnID string) error {
	if err := s.backend.DeleteColumn(ctx, columnID); err != nil {
		return err
	}
	if err := s.model.RemoveColumn(columnID); err != nil && !errors.Is(err, board.ErrUnknownColumn) {
		return err
	}
	return nil
}

// CreateCardInput holds input values for create card operations.
// A negative Index appends.
type CreateCardInput struct {
	ColumnID    string
	Title       string
	Description string
	Index       int
}

// CreateCard creates a card at the requested index of a column.
func (s *Service) CreateCard(ctx context.Context, in CreateCardInput) (domain.Card, error) {
	col, err := s.backend.GetColumn(ctx, in.ColumnID)
	if err != nil {
		return domain.Card{}, err
	}
	if err := s.ensureOpen(ctx, col.BoardID); err != nil {
		return domain.Card{}, err
	}
	key, err := s.keyFor(ctx, domain.ItemKindCard, col.ID, in.Index)
	if err != nil {
		return domain.Card{}, err
	}
	card, err := domain.NewCard(domain.CardInput{
		ID:          s.idGen(),
		BoardID:     col.BoardID,
		ColumnID:    col.ID,
		OrderKey:    key,
		Title:       in.Title,
		Description: in.Description,
	}, s.clock())
	if err != nil {
		return domain.Card{}, err
	}
	stored, err := s.backend.CreateCard(ctx, card)
	if err != nil {
		return domain.Card{}, err
	}
	if err := s.model.UpsertCard(stored); err != nil {
		return domain.Card{}, err
	}
	return stored, nil
}

// UpdateCardInput holds input values for update card operations.
type UpdateCardInput struct {
	ID          string
	Title       string
	Description string
}

// UpdateCard replaces a card's title and description.
func (s *Service) UpdateCard(ctx context.Context, in UpdateCardInput) (domain.Card, error) {
	card, err := s.backend.GetCard(ctx, in.ID)
	if err != nil {
		return domain.Card{}, err
	}
	if err := card.UpdateDetails(in.Title, in.Description, s.clock()); err != nil {
		return domain.Card{}, err
	}
	stored, err := s.backend.UpdateCard(ctx, card)
	if err != nil {
		return domain.Card{}, err
	}
	s.upsertIfOpen(stored.BoardID, func() error { return s.model.UpsertCard(stored) })
	return stored, nil
}

// DeleteCard deletes a card.
func (s *Service) DeleteCard(ctx context.Context, cardID string) error {
	if err := s.backend.DeleteCard(ctx, cardID); err != nil {
		return err
	}
	if err := s.model.RemoveCard(cardID); err != nil && !errors.Is(err, board.ErrUnknownCard) {
		return err
	}
	return nil
}

// MoveCard moves a card to an index of a column, opening its board if needed.
func (s *Service) MoveCard(ctx context.Context, cardID, columnID string, index int) (board.MoveResult, error) {
	card, err := s.backend.GetCard(ctx, cardID)
	if err != nil {
		return board.MoveResult{}, err
	}
	if err := s.ensureOpen(ctx, card.BoardID); err != nil {
		return board.MoveResult{}, err
	}
	return s.reconciler.Move(ctx, cardID, columnID, index)
}

// MoveColumn moves a column to an index of its board, opening the board if needed.
func (s *Service) MoveColumn(ctx context.Context, columnID string, index int) (board.MoveResult, error) {
	col, err := s.backend.GetColumn(ctx, columnID)
	if err != nil {
		return board.MoveResult{}, err
	}
	if err := s.ensureOpen(ctx, col.BoardID); err != nil {
		return board.MoveResult{}, err
	}
	return s.reconciler.MoveColumn(ctx, columnID, index)
}

// ListBoardChangeEvents lists recent ledger entries for a board, newest first.
func (s *Service) ListBoardChangeEvents(ctx context.Context, boardID string, limit int) ([]domain.ChangeEvent, error) {
	if limit <= 0 {
		limit = 50
	}
	return s.backend.ListBoardChangeEvents(ctx, boardID, limit)
}

// keyFor allocates a key at index, appending for negative indexes. Exhausted
// neighbours trigger a persisted re-key of the container first.
func (s *Service) keyFor(ctx context.Context, kind domain.ItemKind, containerID string, index int) (domain.OrderKey, error) {
	if index < 0 {
		index = int(^uint(0) >> 1)
	}
	key, err := s.model.KeyFor(kind, containerID, index)
	if !errors.Is(err, domain.ErrKeyExhausted) {
		return key, err
	}
	rk, err := s.model.RekeyContainer(kind, containerID)
	if err != nil {
		return 0, err
	}
	changes, err := s.backend.PersistBatchReorder(ctx, kind, containerID, rk.Assignments)
	if err != nil {
		_ = s.model.ApplyKeys(kind, containerID, rk.Previous)
		return 0, &MoveError{Kind: kind, ItemID: containerID, Restored: true, Err: err}
	}
	s.model.ApplyRemoteSnapshot(changes)
	return s.model.KeyFor(kind, containerID, index)
}

// upsertIfOpen mirrors a confirmed write into the model when the board is open.
func (s *Service) upsertIfOpen(boardID string, fn func() error) {
	if _, ok := s.model.Board(boardID); !ok {
		return
	}
	if err := fn(); err != nil {
		s.logger.Warn("model upsert failed", "board_id", boardID, "err", err)
	}
}

// sanitizeColumnNames trims names and drops blanks and duplicates.
func sanitizeColumnNames(names []string) []string {
	out := make([]string, 0, len(names))
	seen := map[string]struct{}{}
	for _, name := range names {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		key := strings.ToLower(name)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, name)
	}
	return out
}
