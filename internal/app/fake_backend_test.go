package app

import (
	"context"
	"slices"
	"strings"
	"sync"

	"github.com/hylla/tavla/internal/domain"
)

// fakeBackend represents fake backend data used by this package.
type fakeBackend struct {
	mu      sync.Mutex
	rev     int64
	boards  map[string]domain.Board
	columns map[string]domain.Column
	cards   map[string]domain.Card
	events  []domain.ChangeEvent
	subs    map[string][]func([]domain.ItemChange)

	failPosition  error
	failBatch     error
	positionCalls int
	batchCalls    int
	// beforePositionReply runs after the write is decided but before it returns.
	beforePositionReply func()
	// publishBatch echoes committed batches to subscribers before returning, as the sqlite hub does.
	publishBatch bool
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		boards:  map[string]domain.Board{},
		columns: map[string]domain.Column{},
		cards:   map[string]domain.Card{},
		subs:    map[string][]func([]domain.ItemChange){},
	}
}

func (f *fakeBackend) nextRev() int64 {
	f.rev++
	return f.rev
}

func (f *fakeBackend) record(boardID string, kind domain.ItemKind, itemID string, op domain.ChangeOperation) int64 {
	rev := f.nextRev()
	f.events = append(f.events, domain.ChangeEvent{ID: rev, BoardID: boardID, ItemKind: kind, ItemID: itemID, Operation: op})
	return rev
}

func (f *fakeBackend) CreateBoard(_ context.Context, b domain.Board) (domain.Board, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b.Revision = f.nextRev()
	f.boards[b.ID] = b
	return b, nil
}

func (f *fakeBackend) UpdateBoard(_ context.Context, b domain.Board) (domain.Board, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.boards[b.ID]; !ok {
		return domain.Board{}, ErrNotFound
	}
	b.Revision = f.nextRev()
	f.boards[b.ID] = b
	return b, nil
}

func (f *fakeBackend) GetBoard(_ context.Context, id string) (domain.Board, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.boards[id]
	if !ok {
		return domain.Board{}, ErrNotFound
	}
	return b, nil
}

func (f *fakeBackend) ListBoards(context.Context) ([]domain.Board, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]domain.Board, 0, len(f.boards))
	for _, b := range f.boards {
		out = append(out, b)
	}
	slices.SortFunc(out, func(a, b domain.Board) int { return strings.Compare(a.ID, b.ID) })
	return out, nil
}

func (f *fakeBackend) DeleteBoard(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.boards[id]; !ok {
		return ErrNotFound
	}
	delete(f.boards, id)
	for cid, c := range f.columns {
		if c.BoardID == id {
			delete(f.columns, cid)
		}
	}
	for cid, c := range f.cards {
		if c.BoardID == id {
			delete(f.cards, cid)
		}
	}
	return nil
}

func (f *fakeBackend) LoadBoard(_ context.Context, id string) (domain.BoardState, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.boards[id]
	if !ok {
		return domain.BoardState{}, ErrNotFound
	}
	state := domain.BoardState{Board: b}
	for _, c := range f.columns {
		if c.BoardID == id {
			state.Columns = append(state.Columns, c)
		}
	}
	for _, c := range f.cards {
		if c.BoardID == id {
			state.Cards = append(state.Cards, c)
		}
	}
	return state, nil
}

func (f *fakeBackend) CreateColumn(_ context.Context, c domain.Column) (domain.Column, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.boards[c.BoardID]; !ok {
		return domain.Column{}, ErrNotFound
	}
	c.Revision = f.record(c.BoardID, domain.ItemKindColumn, c.ID, domain.ChangeOperationCreate)
	f.columns[c.ID] = c
	return c, nil
}

func (f *fakeBackend) UpdateColumn(_ context.Context, c domain.Column) (domain.Column, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	prev, ok := f.columns[c.ID]
	if !ok {
		return domain.Column{}, ErrNotFound
	}
	c.BoardID, c.OrderKey = prev.BoardID, prev.OrderKey
	c.Revision = f.record(c.BoardID, domain.ItemKindColumn, c.ID, domain.ChangeOperationUpdate)
	f.columns[c.ID] = c
	return c, nil
}

func (f *fakeBackend) GetColumn(_ context.Context, id string) (domain.Column, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.columns[id]
	if !ok {
		return domain.Column{}, ErrNotFound
	}
	return c, nil
}

func (f *fakeBackend) DeleteColumn(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.columns[id]
	if !ok {
		return ErrNotFound
	}
	f.record(c.BoardID, domain.ItemKindColumn, id, domain.ChangeOperationDelete)
	delete(f.columns, id)
	for cid, card := range f.cards {
		if card.ColumnID == id {
			delete(f.cards, cid)
		}
	}
	return nil
}

func (f *fakeBackend) CreateCard(_ context.Context, c domain.Card) (domain.Card, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.columns[c.ColumnID]; !ok {
		return domain.Card{}, ErrNotFound
	}
	c.Revision = f.record(c.BoardID, domain.ItemKindCard, c.ID, domain.ChangeOperationCreate)
	f.cards[c.ID] = c
	return c, nil
}

func (f *fakeBackend) UpdateCard(_ context.Context, c domain.Card) (domain.Card, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	prev, ok := f.cards[c.ID]
	if !ok {
		return domain.Card{}, ErrNotFound
	}
	c.BoardID, c.ColumnID, c.OrderKey = prev.BoardID, prev.ColumnID, prev.OrderKey
	c.Revision = f.record(c.BoardID, domain.ItemKindCard, c.ID, domain.ChangeOperationUpdate)
	f.cards[c.ID] = c
	return c, nil
}

func (f *fakeBackend) GetCard(_ context.Context, id string) (domain.Card, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.cards[id]
	if !ok {
		return domain.Card{}, ErrNotFound
	}
	return c, nil
}

func (f *fakeBackend) DeleteCard(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.cards[id]
	if !ok {
		return ErrNotFound
	}
	f.record(c.BoardID, domain.ItemKindCard, id, domain.ChangeOperationDelete)
	delete(f.cards, id)
	return nil
}

func (f *fakeBackend) ListBoardChangeEvents(_ context.Context, boardID string, limit int) ([]domain.ChangeEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.ChangeEvent
	for i := len(f.events) - 1; i >= 0 && len(out) < limit; i-- {
		if f.events[i].BoardID == boardID {
			out = append(out, f.events[i])
		}
	}
	return out, nil
}

func (f *fakeBackend) PersistItemPosition(_ context.Context, pos domain.ItemPosition) (domain.ItemChange, error) {
	f.mu.Lock()
	f.positionCalls++
	if f.failPosition != nil {
		err := f.failPosition
		f.mu.Unlock()
		if f.beforePositionReply != nil {
			f.beforePositionReply()
		}
		return domain.ItemChange{}, err
	}
	var change domain.ItemChange
	switch pos.Kind {
	case domain.ItemKindCard:
		c, ok := f.cards[pos.ItemID]
		if !ok {
			f.mu.Unlock()
			return domain.ItemChange{}, ErrNotFound
		}
		c.ColumnID = pos.ContainerID
		c.OrderKey = pos.OrderKey
		c.Revision = f.record(c.BoardID, domain.ItemKindCard, c.ID, domain.ChangeOperationMove)
		f.cards[c.ID] = c
		change = domain.CardChange(c)
	case domain.ItemKindColumn:
		c, ok := f.columns[pos.ItemID]
		if !ok {
			f.mu.Unlock()
			return domain.ItemChange{}, ErrNotFound
		}
		c.OrderKey = pos.OrderKey
		c.Revision = f.record(c.BoardID, domain.ItemKindColumn, c.ID, domain.ChangeOperationMove)
		f.columns[c.ID] = c
		change = domain.ColumnChange(c)
	}
	f.mu.Unlock()
	if f.beforePositionReply != nil {
		f.beforePositionReply()
	}
	return change, nil
}

func (f *fakeBackend) PersistBatchReorder(_ context.Context, kind domain.ItemKind, containerID string, keys []domain.KeyAssignment) ([]domain.ItemChange, error) {
	out, err := f.writeBatch(kind, containerID, keys)
	if err != nil {
		return nil, err
	}
	if f.publishBatch && len(out) > 0 {
		f.emit(out[0].BoardID, out)
	}
	return out, nil
}

func (f *fakeBackend) writeBatch(kind domain.ItemKind, containerID string, keys []domain.KeyAssignment) ([]domain.ItemChange, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.batchCalls++
	if f.failBatch != nil {
		return nil, f.failBatch
	}
	out := make([]domain.ItemChange, 0, len(keys))
	for _, k := range keys {
		switch kind {
		case domain.ItemKindCard:
			c := f.cards[k.ItemID]
			c.OrderKey = k.OrderKey
			c.Revision = f.record(c.BoardID, kind, c.ID, domain.ChangeOperationReorder)
			f.cards[c.ID] = c
			out = append(out, domain.CardChange(c))
		case domain.ItemKindColumn:
			c := f.columns[k.ItemID]
			c.OrderKey = k.OrderKey
			c.Revision = f.record(containerID, kind, c.ID, domain.ChangeOperationReorder)
			f.columns[c.ID] = c
			out = append(out, domain.ColumnChange(c))
		}
	}
	return out, nil
}

func (f *fakeBackend) SubscribeToContainerChanges(_ context.Context, boardID string, fn func([]domain.ItemChange)) (func(), error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.subs[boardID] = append(f.subs[boardID], fn)
	idx := len(f.subs[boardID]) - 1
	return func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		if idx < len(f.subs[boardID]) {
			f.subs[boardID][idx] = nil
		}
	}, nil
}

// emit delivers a remote snapshot to every subscriber of a board.
func (f *fakeBackend) emit(boardID string, changes []domain.ItemChange) {
	f.mu.Lock()
	subs := slices.Clone(f.subs[boardID])
	f.mu.Unlock()
	for _, fn := range subs {
		if fn != nil {
			fn(changes)
		}
	}
}

// seed stores a board with columns holding the given cards in order.
func (f *fakeBackend) seed(boardID string, columns []string, cards map[string][]string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.boards[boardID] = domain.Board{ID: boardID, Title: boardID, Revision: f.nextRev()}
	for i, colID := range columns {
		f.columns[colID] = domain.Column{ID: colID, BoardID: boardID, Title: colID, OrderKey: domain.OrderKey(i + 1), Revision: f.nextRev()}
		for j, cardID := range cards[colID] {
			f.cards[cardID] = domain.Card{ID: cardID, BoardID: boardID, ColumnID: colID, Title: cardID, OrderKey: domain.OrderKey(j + 1), Revision: f.nextRev()}
		}
	}
}
