package board

import (
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/hylla/tavla/internal/domain"
)

// Position locates an item inside its container.
type Position struct {
	ContainerID string          `json:"container_id"`
	Index       int             `json:"index"`
	OrderKey    domain.OrderKey `json:"order_key"`
}

// MoveResult describes the outcome of an applied move.
type MoveResult struct {
	Kind     domain.ItemKind
	BoardID  string
	ItemID   string
	From     Position
	To       Position
	Revision int64
	Changed  bool
}

// ItemPosition returns the persisted form of the move target.
func (r MoveResult) ItemPosition() domain.ItemPosition {
	return domain.ItemPosition{
		Kind:        r.Kind,
		ItemID:      r.ItemID,
		ContainerID: r.To.ContainerID,
		OrderKey:    r.To.OrderKey,
	}
}

// Option customizes a Model.
type Option func(*Model)

// WithClock overrides the clock used to stamp local mutations.
func WithClock(clock func() time.Time) Option {
	return func(m *Model) {
		if clock != nil {
			m.clock = clock
		}
	}
}

// Model holds the ordered columns and cards of every loaded board.
// All mutations are serialized by a single mutex; reads take the shared lock.
type Model struct {
	mu    sync.RWMutex
	alloc domain.Allocator
	clock func() time.Time

	boards      map[string]*boardState
	columnBoard map[string]string
	cardColumn  map[string]string

	confirmedColumns map[string]domain.Column
	confirmedCards   map[string]domain.Card
	tombstones       map[string]int64

	watchers map[string]map[int]chan struct{}
	nextWID  int
}

// boardState stores one board's containers.
type boardState struct {
	board   domain.Board
	columns map[string]domain.Column
	cards   map[string]map[string]domain.Card
}

// NewModel constructs a new value for this package.
func NewModel(alloc domain.Allocator, opts ...Option) *Model {
	m := &Model{
		alloc:            alloc,
		clock:            time.Now,
		boards:           map[string]*boardState{},
		columnBoard:      map[string]string{},
		cardColumn:       map[string]string{},
		confirmedColumns: map[string]domain.Column{},
		confirmedCards:   map[string]domain.Card{},
		tombstones:       map[string]int64{},
		watchers:         map[string]map[int]chan struct{}{},
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Allocator returns the key allocator used by the model.
func (m *Model) Allocator() domain.Allocator {
	return m.alloc
}

// Load replaces one board with authoritative state.
func (m *Model) Load(state domain.BoardState) error {
	boardID := strings.TrimSpace(state.Board.ID)
	if boardID == "" {
		return domain.ErrInvalidBoardID
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	m.dropBoardLocked(boardID)
	bs := &boardState{
		board:   state.Board,
		columns: map[string]domain.Column{},
		cards:   map[string]map[string]domain.Card{},
	}
	m.boards[boardID] = bs
	for _, col := range state.Columns {
		if col.BoardID != boardID {
			return fmt.Errorf("column %q: %w", col.ID, ErrCrossBoardMove)
		}
		bs.columns[col.ID] = col
		bs.cards[col.ID] = map[string]domain.Card{}
		m.columnBoard[col.ID] = boardID
		m.confirmedColumns[col.ID] = col
	}
	for _, card := range state.Cards {
		cards, ok := bs.cards[card.ColumnID]
		if !ok {
			return fmt.Errorf("card %q in column %q: %w", card.ID, card.ColumnID, ErrUnknownColumn)
		}
		cards[card.ID] = card
		m.cardColumn[card.ID] = card.ColumnID
		m.confirmedCards[card.ID] = card
	}
	m.notifyLocked(boardID)
	return nil
}

// Board returns a loaded board.
func (m *Model) Board(boardID string) (domain.Board, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	bs, ok := m.boards[boardID]
	if !ok {
		return domain.Board{}, false
	}
	return bs.board, true
}

// Column returns a loaded column.
func (m *Model) Column(columnID string) (domain.Column, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	col, _, ok := m.columnLocked(columnID)
	return col, ok
}

// Card returns a loaded card.
func (m *Model) Card(cardID string) (domain.Card, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	card, _, ok := m.cardLocked(cardID)
	return card, ok
}

// OrderedColumns returns the board's columns by order key, ties by id.
func (m *Model) OrderedColumns(boardID string) ([]domain.Column, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	bs, ok := m.boards[boardID]
	if !ok {
		return nil, ErrUnknownBoard
	}
	return sortedColumns(bs.columns, ""), nil
}

// OrderedCards returns the column's cards by order key, ties by id.
func (m *Model) OrderedCards(columnID string) ([]domain.Card, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, bs, ok := m.columnLocked(columnID)
	if !ok {
		return nil, ErrUnknownColumn
	}
	return sortedCards(bs.cards[columnID], ""), nil
}

// Locate returns the container and index currently holding an item.
func (m *Model) Locate(kind domain.ItemKind, itemID string) (Position, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.locateLocked(kind, itemID)
}

// Revision returns the last server revision applied to an item.
func (m *Model) Revision(kind domain.ItemKind, itemID string) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	switch kind {
	case domain.ItemKindCard:
		card, _, ok := m.cardLocked(itemID)
		if !ok {
			return 0, ErrUnknownCard
		}
		return card.Revision, nil
	case domain.ItemKindColumn:
		col, _, ok := m.columnLocked(itemID)
		if !ok {
			return 0, ErrUnknownColumn
		}
		return col.Revision, nil
	default:
		return 0, domain.ErrInvalidItemKind
	}
}

// BoardOf resolves the board owning an item.
func (m *Model) BoardOf(kind domain.ItemKind, itemID string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	switch kind {
	case domain.ItemKindCard:
		_, bs, ok := m.cardLocked(itemID)
		if !ok {
			return "", ErrUnknownCard
		}
		return bs.board.ID, nil
	case domain.ItemKindColumn:
		_, bs, ok := m.columnLocked(itemID)
		if !ok {
			return "", ErrUnknownColumn
		}
		return bs.board.ID, nil
	default:
		return "", domain.ErrInvalidItemKind
	}
}

// KeyFor allocates a key for inserting a new item at index in a container.
func (m *Model) KeyFor(kind domain.ItemKind, containerID string, index int) (domain.OrderKey, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	keys, err := m.siblingKeysLocked(kind, containerID, "")
	if err != nil {
		return 0, err
	}
	return m.keyAt(keys, clampIndex(index, len(keys)))
}

// ApplyMove moves a card to targetIndex in the target column.
// The index is interpreted against the target column without the moving card.
func (m *Model) ApplyMove(cardID, targetColumnID string, targetIndex int) (MoveResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	card, bs, ok := m.cardLocked(cardID)
	if !ok {
		return MoveResult{}, ErrUnknownCard
	}
	if _, targetBoard, ok := m.columnLocked(targetColumnID); !ok {
		return MoveResult{}, ErrUnknownColumn
	} else if targetBoard != bs {
		return MoveResult{}, ErrCrossBoardMove
	}
	from, err := m.locateLocked(domain.ItemKindCard, cardID)
	if err != nil {
		return MoveResult{}, err
	}
	siblings := sortedCards(bs.cards[targetColumnID], cardID)
	index := clampIndex(targetIndex, len(siblings))
	result := MoveResult{
		Kind:     domain.ItemKindCard,
		BoardID:  bs.board.ID,
		ItemID:   cardID,
		From:     from,
		To:       from,
		Revision: card.Revision,
	}
	if from.ContainerID == targetColumnID && from.Index == index {
		return result, nil
	}

	keys := make([]domain.OrderKey, len(siblings))
	for i, sib := range siblings {
		keys[i] = sib.OrderKey
	}
	key, err := m.keyAt(keys, index)
	if err != nil {
		return MoveResult{}, err
	}
	if err := m.placeCardLocked(bs, card, targetColumnID, key); err != nil {
		return MoveResult{}, err
	}
	result.To = Position{ContainerID: targetColumnID, Index: index, OrderKey: key}
	result.Changed = true
	m.notifyLocked(bs.board.ID)
	return result, nil
}

// ApplyColumnMove moves a column, with its cards, to targetIndex on its board.
func (m *Model) ApplyColumnMove(columnID string, targetIndex int) (MoveResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	col, bs, ok := m.columnLocked(columnID)
	if !ok {
		return MoveResult{}, ErrUnknownColumn
	}
	from, err := m.locateLocked(domain.ItemKindColumn, columnID)
	if err != nil {
		return MoveResult{}, err
	}
	siblings := sortedColumns(bs.columns, columnID)
	index := clampIndex(targetIndex, len(siblings))
	result := MoveResult{
		Kind:     domain.ItemKindColumn,
		BoardID:  bs.board.ID,
		ItemID:   columnID,
		From:     from,
		To:       from,
		Revision: col.Revision,
	}
	if from.Index == index {
		return result, nil
	}

	keys := make([]domain.OrderKey, len(siblings))
	for i, sib := range siblings {
		keys[i] = sib.OrderKey
	}
	key, err := m.keyAt(keys, index)
	if err != nil {
		return MoveResult{}, err
	}
	if err := col.SetOrderKey(key, m.clock()); err != nil {
		return MoveResult{}, err
	}
	bs.columns[columnID] = col
	result.To = Position{ContainerID: bs.board.ID, Index: index, OrderKey: key}
	result.Changed = true
	m.notifyLocked(bs.board.ID)
	return result, nil
}

// SetPosition places an item at an explicit container and key without allocating.
func (m *Model) SetPosition(pos domain.ItemPosition) error {
	pos, err := pos.Validate()
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	switch pos.Kind {
	case domain.ItemKindCard:
		card, bs, ok := m.cardLocked(pos.ItemID)
		if !ok {
			return ErrUnknownCard
		}
		if _, targetBoard, ok := m.columnLocked(pos.ContainerID); !ok {
			return ErrUnknownColumn
		} else if targetBoard != bs {
			return ErrCrossBoardMove
		}
		if err := m.placeCardLocked(bs, card, pos.ContainerID, pos.OrderKey); err != nil {
			return err
		}
		m.notifyLocked(bs.board.ID)
	case domain.ItemKindColumn:
		col, bs, ok := m.columnLocked(pos.ItemID)
		if !ok {
			return ErrUnknownColumn
		}
		if bs.board.ID != pos.ContainerID {
			return ErrCrossBoardMove
		}
		if err := col.SetOrderKey(pos.OrderKey, m.clock()); err != nil {
			return err
		}
		bs.columns[col.ID] = col
		m.notifyLocked(bs.board.ID)
	}
	return nil
}

// Rekey describes a full container re-key applied locally.
type Rekey struct {
	Kind        domain.ItemKind
	ContainerID string
	Assignments []domain.KeyAssignment
	Previous    []domain.KeyAssignment
}

// RekeyContainer reassigns evenly spaced keys to every item of a container in current order.
func (m *Model) RekeyContainer(kind domain.ItemKind, containerID string) (Rekey, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	previous, err := m.containerKeysLocked(kind, containerID)
	if err != nil {
		return Rekey{}, err
	}
	fresh := m.alloc.Spread(len(previous))
	assignments := make([]domain.KeyAssignment, len(previous))
	for i, prev := range previous {
		assignments[i] = domain.KeyAssignment{ItemID: prev.ItemID, OrderKey: fresh[i]}
	}
	if err := m.applyKeysLocked(kind, containerID, assignments); err != nil {
		return Rekey{}, err
	}
	return Rekey{Kind: kind, ContainerID: containerID, Assignments: assignments, Previous: previous}, nil
}

// ApplyKeys sets keys for items already in the container.
func (m *Model) ApplyKeys(kind domain.ItemKind, containerID string, keys []domain.KeyAssignment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.applyKeysLocked(kind, containerID, keys)
}

// UpsertBoard registers or updates board metadata without touching its containers.
func (m *Model) UpsertBoard(b domain.Board) {
	m.mu.Lock()
	defer m.mu.Unlock()
	bs, ok := m.boards[b.ID]
	if !ok {
		bs = &boardState{columns: map[string]domain.Column{}, cards: map[string]map[string]domain.Card{}}
		m.boards[b.ID] = bs
	}
	bs.board = b
	m.notifyLocked(b.ID)
}

// UpsertColumn inserts or replaces a column with confirmed state. A copy no
// newer than the held revision, or than a delete tombstone, is ignored.
func (m *Model) UpsertColumn(col domain.Column) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if local, _, known := m.columnLocked(col.ID); m.isStaleLocked(domain.ColumnChange(col), local.Revision, known) {
		return nil
	}
	bs, ok := m.boards[col.BoardID]
	if !ok {
		return ErrUnknownBoard
	}
	if owner, ok := m.columnBoard[col.ID]; ok && owner != col.BoardID {
		return ErrCrossBoardMove
	}
	bs.columns[col.ID] = col
	if _, ok := bs.cards[col.ID]; !ok {
		bs.cards[col.ID] = map[string]domain.Card{}
	}
	m.columnBoard[col.ID] = col.BoardID
	m.confirmedColumns[col.ID] = col
	m.notifyLocked(col.BoardID)
	return nil
}

// UpsertCard inserts or replaces a card with confirmed state. Stale copies are
// ignored the same way UpsertColumn ignores them.
func (m *Model) UpsertCard(card domain.Card) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if local, _, known := m.cardLocked(card.ID); m.isStaleLocked(domain.CardChange(card), local.Revision, known) {
		return nil
	}
	_, bs, ok := m.columnLocked(card.ColumnID)
	if !ok {
		return ErrUnknownColumn
	}
	if bs.board.ID != card.BoardID {
		return ErrCrossBoardMove
	}
	if oldColumn, ok := m.cardColumn[card.ID]; ok && oldColumn != card.ColumnID {
		delete(bs.cards[oldColumn], card.ID)
	}
	bs.cards[card.ColumnID][card.ID] = card
	m.cardColumn[card.ID] = card.ColumnID
	m.confirmedCards[card.ID] = card
	m.notifyLocked(bs.board.ID)
	return nil
}

// RemoveCard deletes a card from its column.
func (m *Model) RemoveCard(cardID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, bs, ok := m.cardLocked(cardID)
	if !ok {
		return ErrUnknownCard
	}
	m.removeCardLocked(bs, cardID)
	m.notifyLocked(bs.board.ID)
	return nil
}

// RemoveColumn deletes a column and every card it owns.
func (m *Model) RemoveColumn(columnID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, bs, ok := m.columnLocked(columnID)
	if !ok {
		return ErrUnknownColumn
	}
	m.removeColumnLocked(bs, columnID)
	m.notifyLocked(bs.board.ID)
	return nil
}

// RemoveBoard forgets a board and everything it contains.
func (m *Model) RemoveBoard(boardID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.boards[boardID]; !ok {
		return ErrUnknownBoard
	}
	m.dropBoardLocked(boardID)
	m.notifyLocked(boardID)
	return nil
}

// Verify checks that parent references and container membership agree.
func (m *Model) Verify(boardID string) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	bs, ok := m.boards[boardID]
	if !ok {
		return ErrUnknownBoard
	}
	return m.verifyLocked(bs)
}

// Reset rebuilds a board from the last confirmed state of its items,
// discarding unconfirmed local moves.
func (m *Model) Reset(boardID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	bs, ok := m.boards[boardID]
	if !ok {
		return ErrUnknownBoard
	}
	for colID := range bs.columns {
		for cardID := range bs.cards[colID] {
			delete(m.cardColumn, cardID)
		}
	}
	bs.columns = map[string]domain.Column{}
	bs.cards = map[string]map[string]domain.Card{}
	for id, col := range m.confirmedColumns {
		if col.BoardID != boardID {
			continue
		}
		bs.columns[id] = col
		bs.cards[id] = map[string]domain.Card{}
		m.columnBoard[id] = boardID
	}
	for id, card := range m.confirmedCards {
		if card.BoardID != boardID {
			continue
		}
		cards, ok := bs.cards[card.ColumnID]
		if !ok {
			continue
		}
		cards[id] = card
		m.cardColumn[id] = card.ColumnID
	}
	m.notifyLocked(boardID)
	return m.verifyLocked(bs)
}

// verifyLocked validates one board's membership indexes.
func (m *Model) verifyLocked(bs *boardState) error {
	boardID := bs.board.ID
	for colID, col := range bs.columns {
		if col.ID != colID || col.BoardID != boardID || m.columnBoard[colID] != boardID {
			return fmt.Errorf("column %q: %w", colID, ErrInconsistentState)
		}
		if _, ok := bs.cards[colID]; !ok {
			return fmt.Errorf("column %q has no card set: %w", colID, ErrInconsistentState)
		}
	}
	for colID, cards := range bs.cards {
		if _, ok := bs.columns[colID]; !ok {
			return fmt.Errorf("card set for missing column %q: %w", colID, ErrInconsistentState)
		}
		for cardID, card := range cards {
			if card.ID != cardID || card.ColumnID != colID || m.cardColumn[cardID] != colID {
				return fmt.Errorf("card %q: %w", cardID, ErrInconsistentState)
			}
		}
	}
	return nil
}

// placeCardLocked moves a card between card sets and updates indexes.
func (m *Model) placeCardLocked(bs *boardState, card domain.Card, columnID string, key domain.OrderKey) error {
	oldColumn := card.ColumnID
	if err := card.Move(columnID, key, m.clock()); err != nil {
		return err
	}
	delete(bs.cards[oldColumn], card.ID)
	bs.cards[columnID][card.ID] = card
	m.cardColumn[card.ID] = columnID
	return nil
}

// applyKeysLocked writes keys to container members; unknown ids fail before any write.
func (m *Model) applyKeysLocked(kind domain.ItemKind, containerID string, keys []domain.KeyAssignment) error {
	switch kind {
	case domain.ItemKindCard:
		_, bs, ok := m.columnLocked(containerID)
		if !ok {
			return ErrUnknownColumn
		}
		cards := bs.cards[containerID]
		for _, k := range keys {
			if _, ok := cards[k.ItemID]; !ok {
				return fmt.Errorf("card %q: %w", k.ItemID, ErrUnknownCard)
			}
		}
		now := m.clock()
		for _, k := range keys {
			card := cards[k.ItemID]
			if err := card.Move(containerID, k.OrderKey, now); err != nil {
				return err
			}
			cards[k.ItemID] = card
		}
		m.notifyLocked(bs.board.ID)
	case domain.ItemKindColumn:
		bs, ok := m.boards[containerID]
		if !ok {
			return ErrUnknownBoard
		}
		for _, k := range keys {
			if _, ok := bs.columns[k.ItemID]; !ok {
				return fmt.Errorf("column %q: %w", k.ItemID, ErrUnknownColumn)
			}
		}
		now := m.clock()
		for _, k := range keys {
			col := bs.columns[k.ItemID]
			if err := col.SetOrderKey(k.OrderKey, now); err != nil {
				return err
			}
			bs.columns[k.ItemID] = col
		}
		m.notifyLocked(containerID)
	default:
		return domain.ErrInvalidItemKind
	}
	return nil
}

// containerKeysLocked lists a container's members in order with their keys.
func (m *Model) containerKeysLocked(kind domain.ItemKind, containerID string) ([]domain.KeyAssignment, error) {
	switch kind {
	case domain.ItemKindCard:
		_, bs, ok := m.columnLocked(containerID)
		if !ok {
			return nil, ErrUnknownColumn
		}
		cards := sortedCards(bs.cards[containerID], "")
		out := make([]domain.KeyAssignment, len(cards))
		for i, c := range cards {
			out[i] = domain.KeyAssignment{ItemID: c.ID, OrderKey: c.OrderKey}
		}
		return out, nil
	case domain.ItemKindColumn:
		bs, ok := m.boards[containerID]
		if !ok {
			return nil, ErrUnknownBoard
		}
		cols := sortedColumns(bs.columns, "")
		out := make([]domain.KeyAssignment, len(cols))
		for i, c := range cols {
			out[i] = domain.KeyAssignment{ItemID: c.ID, OrderKey: c.OrderKey}
		}
		return out, nil
	default:
		return nil, domain.ErrInvalidItemKind
	}
}

// siblingKeysLocked returns ordered keys of a container, excluding one id.
func (m *Model) siblingKeysLocked(kind domain.ItemKind, containerID, exclude string) ([]domain.OrderKey, error) {
	all, err := m.containerKeysLocked(kind, containerID)
	if err != nil {
		return nil, err
	}
	keys := make([]domain.OrderKey, 0, len(all))
	for _, a := range all {
		if a.ItemID == exclude {
			continue
		}
		keys = append(keys, a.OrderKey)
	}
	return keys, nil
}

// keyAt allocates a key for position index among ordered sibling keys.
func (m *Model) keyAt(keys []domain.OrderKey, index int) (domain.OrderKey, error) {
	var prev, next *domain.OrderKey
	if index > 0 {
		prev = &keys[index-1]
	}
	if index < len(keys) {
		next = &keys[index]
	}
	return m.alloc.Between(prev, next)
}

// locateLocked finds the container and ordered index of an item.
func (m *Model) locateLocked(kind domain.ItemKind, itemID string) (Position, error) {
	switch kind {
	case domain.ItemKindCard:
		card, bs, ok := m.cardLocked(itemID)
		if !ok {
			return Position{}, ErrUnknownCard
		}
		ordered := sortedCards(bs.cards[card.ColumnID], "")
		idx := slices.IndexFunc(ordered, func(c domain.Card) bool { return c.ID == itemID })
		return Position{ContainerID: card.ColumnID, Index: idx, OrderKey: card.OrderKey}, nil
	case domain.ItemKindColumn:
		col, bs, ok := m.columnLocked(itemID)
		if !ok {
			return Position{}, ErrUnknownColumn
		}
		ordered := sortedColumns(bs.columns, "")
		idx := slices.IndexFunc(ordered, func(c domain.Column) bool { return c.ID == itemID })
		return Position{ContainerID: col.BoardID, Index: idx, OrderKey: col.OrderKey}, nil
	default:
		return Position{}, domain.ErrInvalidItemKind
	}
}

// columnLocked resolves a column and its board.
func (m *Model) columnLocked(columnID string) (domain.Column, *boardState, bool) {
	boardID, ok := m.columnBoard[columnID]
	if !ok {
		return domain.Column{}, nil, false
	}
	bs, ok := m.boards[boardID]
	if !ok {
		return domain.Column{}, nil, false
	}
	col, ok := bs.columns[columnID]
	return col, bs, ok
}

// cardLocked resolves a card and its board.
func (m *Model) cardLocked(cardID string) (domain.Card, *boardState, bool) {
	columnID, ok := m.cardColumn[cardID]
	if !ok {
		return domain.Card{}, nil, false
	}
	_, bs, ok := m.columnLocked(columnID)
	if !ok {
		return domain.Card{}, nil, false
	}
	card, ok := bs.cards[columnID][cardID]
	return card, bs, ok
}

func (m *Model) removeCardLocked(bs *boardState, cardID string) {
	if columnID, ok := m.cardColumn[cardID]; ok {
		delete(bs.cards[columnID], cardID)
	}
	delete(m.cardColumn, cardID)
	delete(m.confirmedCards, cardID)
}

func (m *Model) removeColumnLocked(bs *boardState, columnID string) {
	for cardID := range bs.cards[columnID] {
		m.removeCardLocked(bs, cardID)
	}
	delete(bs.cards, columnID)
	delete(bs.columns, columnID)
	delete(m.columnBoard, columnID)
	delete(m.confirmedColumns, columnID)
}

// dropBoardLocked forgets all indexes for a board.
func (m *Model) dropBoardLocked(boardID string) {
	bs, ok := m.boards[boardID]
	if !ok {
		return
	}
	for columnID := range bs.columns {
		m.removeColumnLocked(bs, columnID)
	}
	delete(m.boards, boardID)
}

// sortedColumns orders columns by key then id, skipping exclude.
func sortedColumns(in map[string]domain.Column, exclude string) []domain.Column {
	out := make([]domain.Column, 0, len(in))
	for id, col := range in {
		if id == exclude {
			continue
		}
		out = append(out, col)
	}
	slices.SortFunc(out, func(a, b domain.Column) int {
		return domain.CompareOrder(a.OrderKey, a.ID, b.OrderKey, b.ID)
	})
	return out
}

// sortedCards orders cards by key then id, skipping exclude.
func sortedCards(in map[string]domain.Card, exclude string) []domain.Card {
	out := make([]domain.Card, 0, len(in))
	for id, card := range in {
		if id == exclude {
			continue
		}
		out = append(out, card)
	}
	slices.SortFunc(out, func(a, b domain.Card) int {
		return domain.CompareOrder(a.OrderKey, a.ID, b.OrderKey, b.ID)
	})
	return out
}

// clampIndex bounds index into [0, n].
func clampIndex(index, n int) int {
	return max(0, min(index, n))
}
