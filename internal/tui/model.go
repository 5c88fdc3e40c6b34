package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"charm.land/bubbles/v2/help"
	"charm.land/bubbles/v2/key"
	"charm.land/bubbles/v2/textinput"
	tea "charm.land/bubbletea/v2"
	"github.com/atotto/clipboard"

	"github.com/hylla/tavla/internal/app"
	"github.com/hylla/tavla/internal/board"
	"github.com/hylla/tavla/internal/domain"
	"github.com/hylla/tavla/internal/drag"
)

// Service is the board surface the TUI drives. *app.Service satisfies it.
type Service interface {
	ListBoards(context.Context) ([]domain.Board, error)
	OpenBoard(context.Context, string) (domain.BoardState, error)
	BoardState(context.Context, string) (domain.BoardState, error)
	CreateBoard(context.Context, app.CreateBoardInput) (domain.Board, error)
	CreateColumn(context.Context, app.CreateColumnInput) (domain.Column, error)
	RenameColumn(context.Context, string, string) (domain.Column, error)
	DeleteColumn(context.Context, string) error
	CreateCard(context.Context, app.CreateCardInput) (domain.Card, error)
	UpdateCard(context.Context, app.UpdateCardInput) (domain.Card, error)
	DeleteCard(context.Context, string) error
	ListBoardChangeEvents(context.Context, string, int) ([]domain.ChangeEvent, error)
	Model() *board.Model
	Reconciler() *app.Reconciler
}

// inputMode identifies which overlay or prompt owns the keyboard.
type inputMode int

// inputMode values.
const (
	modeNone inputMode = iota
	modeAddCard
	modeEditCardTitle
	modeEditCardDescription
	modeAddColumn
	modeRenameColumn
	modeNewBoard
	modeBoardPicker
	modeCardInfo
	modeConfirmDelete
)

// lane is one rendered column with its cards in order.
type lane struct {
	column domain.Column
	cards  []domain.Card
}

// pressState records a pointer press that may turn into a drag.
type pressState struct {
	kind   domain.ItemKind
	itemID string
	at     drag.Point
}

// watchHandle is the model subscription for the open board.
type watchHandle struct {
	boardID string
	ch      <-chan struct{}
	stop    func()
}

type boardsLoadedMsg struct {
	boards []domain.Board
	err    error
}

type boardOpenedMsg struct {
	state domain.BoardState
	err   error
}

type boardChangedMsg struct {
	boardID string
}

type eventsLoadedMsg struct {
	boardID string
	events  []domain.ChangeEvent
	err     error
}

// actionMsg reports the outcome of a CRUD action.
type actionMsg struct {
	label       string
	status      string
	err         error
	focusKind   domain.ItemKind
	focusID     string
	openBoardID string
}

type moveCommittedMsg struct {
	result board.MoveResult
	err    error
}

// Model represents model data used by this package.
type Model struct {
	svc      Service
	keys     keyMap
	help     help.Model
	input    textinput.Model
	md       *markdownRenderer
	drag     *drag.Controller
	watch    *watchHandle
	copyText func(string) error

	width  int
	height int
	loaded bool

	boards  []domain.Board
	boardID string
	board   domain.Board
	lanes   []lane
	layout  drag.Layout

	selectedColumn int
	selectedCard   int
	pickerIndex    int

	mode        inputMode
	inputTarget string
	deleteKind  domain.ItemKind
	deleteID    string

	press       *pressState
	pointerDrag bool

	events     []domain.ChangeEvent
	eventLimit int
	status     string
	err        error
}

// NewModel constructs a new value for this package.
func NewModel(svc Service, opts ...Option) Model {
	h := help.New()
	h.ShowAll = false
	m := Model{
		svc:        svc,
		keys:       newKeyMap(),
		help:       h,
		input:      newModalInput("", "", "", 200),
		md:         &markdownRenderer{},
		drag:       drag.NewController(nil),
		copyText:   clipboard.WriteAll,
		eventLimit: 20,
		status:     "loading...",
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&m)
		}
	}
	return m
}

// Init handles init.
func (m Model) Init() tea.Cmd {
	return m.loadBoards
}

// Close stops the board subscription.
func (m Model) Close() {
	if m.watch != nil {
		m.watch.stop()
	}
}

// Update updates state for the requested operation.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.SetWidth(msg.Width)
		m.rebuildLayout()
		return m, nil

	case boardsLoadedMsg:
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.err = nil
		m.boards = msg.boards
		if len(m.boards) == 0 {
			m.loaded = true
			m.boardID = ""
			m.lanes = nil
			m.rebuildLayout()
			m.status = "no boards yet, press " + m.keys.newBoard.Help().Key + " to create one"
			return m, nil
		}
		target := m.boards[0].ID
		for _, b := range m.boards {
			if b.ID == m.boardID {
				target = b.ID
				break
			}
		}
		return m, m.openBoard(target)

	case boardOpenedMsg:
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.loaded = true
		if m.board.ID != msg.state.Board.ID {
			m.selectedColumn, m.selectedCard = 0, 0
			m.events = nil
		}
		m.boardID = msg.state.Board.ID
		m.applyState(msg.state)
		m.status = "ready"
		var wait tea.Cmd
		if m.watch == nil || m.watch.boardID != m.boardID {
			if m.watch != nil {
				m.watch.stop()
			}
			ch, stop := m.svc.Model().Watch(m.boardID)
			m.watch = &watchHandle{boardID: m.boardID, ch: ch, stop: stop}
			wait = waitForChange(m.watch)
		}
		return m, tea.Batch(wait, m.loadEvents(m.boardID))

	case boardChangedMsg:
		if m.watch == nil || msg.boardID != m.boardID {
			return m, nil
		}
		m.refresh()
		return m, tea.Batch(waitForChange(m.watch), m.loadEvents(m.boardID))

	case eventsLoadedMsg:
		if msg.boardID != m.boardID {
			return m, nil
		}
		if msg.err != nil {
			m.status = "activity unavailable: " + msg.err.Error()
			return m, nil
		}
		m.events = msg.events
		return m, nil

	case actionMsg:
		if msg.err != nil {
			m.status = msg.label + " failed: " + msg.err.Error()
			m.refresh()
			return m, nil
		}
		m.status = msg.status
		if msg.openBoardID != "" {
			m.boardID = msg.openBoardID
			return m, m.loadBoards
		}
		m.refresh()
		if msg.focusID != "" {
			m.focus(msg.focusKind, msg.focusID)
		}
		return m, m.loadEvents(m.boardID)

	case moveCommittedMsg:
		if msg.err != nil {
			var moveErr *app.MoveError
			if errors.As(msg.err, &moveErr) && moveErr.Restored {
				m.status = "move failed, restored: " + moveErr.Err.Error()
			} else {
				m.status = "move failed: " + msg.err.Error()
			}
			m.refresh()
			return m, nil
		}
		m.refresh()
		m.focus(msg.result.Kind, msg.result.ItemID)
		m.status = m.describeMove(msg.result)
		return m, m.loadEvents(m.boardID)

	case tea.KeyPressMsg:
		if m.err != nil {
			switch {
			case key.Matches(msg, m.keys.quit):
				m.Close()
				return m, tea.Quit
			case key.Matches(msg, m.keys.reload):
				m.err = nil
				m.status = "reloading..."
				return m, m.loadBoards
			}
			return m, nil
		}
		if m.mode != modeNone {
			return m.handleModeKey(msg)
		}
		if m.drag.State() == drag.StateDragging {
			return m.handleDragKey(msg)
		}
		return m.handleNormalKey(msg)

	case tea.MouseWheelMsg:
		return m.handleMouseWheel(msg)

	case tea.MouseClickMsg:
		return m.handleMouseClick(msg)

	case tea.MouseMotionMsg:
		return m.handleMouseMotion(msg)

	case tea.MouseReleaseMsg:
		return m.handleMouseRelease(msg)
	}
	return m, nil
}

// handleNormalKey handles board navigation and action keys.
func (m Model) handleNormalKey(msg tea.KeyPressMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.quit):
		m.Close()
		return m, tea.Quit
	case key.Matches(msg, m.keys.toggleHelp):
		m.help.ShowAll = !m.help.ShowAll
		return m, nil
	case key.Matches(msg, m.keys.reload):
		m.status = "reloading..."
		return m, m.loadBoards
	case key.Matches(msg, m.keys.newBoard):
		return m.startInput(modeNewBoard, "board: ", "title", "", "")
	case key.Matches(msg, m.keys.boards):
		if len(m.boards) == 0 {
			m.status = "no boards"
			return m, nil
		}
		m.mode = modeBoardPicker
		m.pickerIndex = 0
		for i, b := range m.boards {
			if b.ID == m.boardID {
				m.pickerIndex = i
			}
		}
		return m, nil
	}
	if m.boardID == "" {
		return m, nil
	}

	switch {
	case key.Matches(msg, m.keys.moveLeft):
		m.selectedColumn = clamp(m.selectedColumn-1, 0, len(m.lanes)-1)
		m.clampSelection()
	case key.Matches(msg, m.keys.moveRight):
		m.selectedColumn = clamp(m.selectedColumn+1, 0, len(m.lanes)-1)
		m.clampSelection()
	case key.Matches(msg, m.keys.moveUp):
		m.selectedCard--
		m.clampSelection()
	case key.Matches(msg, m.keys.moveDown):
		m.selectedCard++
		m.clampSelection()
	case key.Matches(msg, m.keys.grabCard):
		card, ok := m.selectedCardValue()
		if !ok {
			m.status = "no card selected"
			return m, nil
		}
		if err := m.drag.Pick(domain.ItemKindCard, card.ID, m.layout); err != nil {
			m.status = "cannot grab card: " + err.Error()
			return m, nil
		}
		m.status = "moving " + card.Title
	case key.Matches(msg, m.keys.grabColumn):
		col, ok := m.selectedColumnValue()
		if !ok {
			m.status = "no column selected"
			return m, nil
		}
		if err := m.drag.Pick(domain.ItemKindColumn, col.ID, m.layout); err != nil {
			m.status = "cannot grab column: " + err.Error()
			return m, nil
		}
		m.status = "moving column " + col.Title
	case key.Matches(msg, m.keys.addCard):
		col, ok := m.selectedColumnValue()
		if !ok {
			m.status = "create a column first"
			return m, nil
		}
		return m.startInput(modeAddCard, "card: ", "title", "", col.ID)
	case key.Matches(msg, m.keys.editCard):
		card, ok := m.selectedCardValue()
		if !ok {
			m.status = "no card selected"
			return m, nil
		}
		return m.startInput(modeEditCardTitle, "title: ", "title", card.Title, card.ID)
	case key.Matches(msg, m.keys.editDetails):
		card, ok := m.selectedCardValue()
		if !ok {
			m.status = "no card selected"
			return m, nil
		}
		return m.startInput(modeEditCardDescription, "description: ", "markdown", card.Description, card.ID)
	case key.Matches(msg, m.keys.cardInfo):
		if _, ok := m.selectedCardValue(); !ok {
			m.status = "no card selected"
			return m, nil
		}
		m.mode = modeCardInfo
	case key.Matches(msg, m.keys.deleteCard):
		card, ok := m.selectedCardValue()
		if !ok {
			m.status = "no card selected"
			return m, nil
		}
		m.mode = modeConfirmDelete
		m.deleteKind, m.deleteID = domain.ItemKindCard, card.ID
		m.status = fmt.Sprintf("delete card %q? (y/n)", card.Title)
	case key.Matches(msg, m.keys.addColumn):
		return m.startInput(modeAddColumn, "column: ", "title", "", m.boardID)
	case key.Matches(msg, m.keys.renameColumn):
		col, ok := m.selectedColumnValue()
		if !ok {
			m.status = "no column selected"
			return m, nil
		}
		return m.startInput(modeRenameColumn, "column: ", "title", col.Title, col.ID)
	case key.Matches(msg, m.keys.deleteColumn):
		col, ok := m.selectedColumnValue()
		if !ok {
			m.status = "no column selected"
			return m, nil
		}
		m.mode = modeConfirmDelete
		m.deleteKind, m.deleteID = domain.ItemKindColumn, col.ID
		m.status = fmt.Sprintf("delete column %q and its cards? (y/n)", col.Title)
	case key.Matches(msg, m.keys.yank):
		m.yankSelected()
	}
	return m, nil
}

// handleModeKey routes keys to the active overlay or prompt.
func (m Model) handleModeKey(msg tea.KeyPressMsg) (tea.Model, tea.Cmd) {
	switch m.mode {
	case modeBoardPicker:
		switch {
		case msg.String() == "esc", key.Matches(msg, m.keys.boards):
			m.mode = modeNone
		case key.Matches(msg, m.keys.moveUp):
			m.pickerIndex = clamp(m.pickerIndex-1, 0, len(m.boards)-1)
		case key.Matches(msg, m.keys.moveDown):
			m.pickerIndex = clamp(m.pickerIndex+1, 0, len(m.boards)-1)
		case msg.String() == "enter":
			m.mode = modeNone
			if m.pickerIndex < len(m.boards) {
				return m, m.openBoard(m.boards[m.pickerIndex].ID)
			}
		}
		return m, nil

	case modeCardInfo:
		switch {
		case key.Matches(msg, m.keys.yank):
			m.yankSelected()
		case key.Matches(msg, m.keys.editDetails):
			card, ok := m.selectedCardValue()
			if ok {
				return m.startInput(modeEditCardDescription, "description: ", "markdown", card.Description, card.ID)
			}
		case msg.String() == "esc", key.Matches(msg, m.keys.cardInfo), key.Matches(msg, m.keys.quit):
			m.mode = modeNone
		}
		return m, nil

	case modeConfirmDelete:
		switch msg.String() {
		case "y", "Y":
			m.mode = modeNone
			return m, m.deleteItem(m.deleteKind, m.deleteID)
		case "n", "N", "esc":
			m.mode = modeNone
			m.status = "delete cancelled"
		}
		return m, nil
	}

	switch msg.String() {
	case "esc":
		m.mode = modeNone
		m.input.Blur()
		m.status = "cancelled"
		return m, nil
	case "enter":
		mode, value := m.mode, strings.TrimSpace(m.input.Value())
		m.mode = modeNone
		m.input.Blur()
		return m.submitInput(mode, value)
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// startInput opens the prompt for a mode.
func (m Model) startInput(mode inputMode, prompt, placeholder, value, target string) (tea.Model, tea.Cmd) {
	m.mode = mode
	m.inputTarget = target
	m.input = newModalInput(prompt, placeholder, value, 200)
	if mode == modeEditCardDescription {
		m.input.CharLimit = 4000
	}
	m.input.CursorEnd()
	return m, m.input.Focus()
}

// submitInput runs the action for a completed prompt.
func (m Model) submitInput(mode inputMode, value string) (tea.Model, tea.Cmd) {
	if value == "" && mode != modeEditCardDescription {
		m.status = "title required"
		return m, nil
	}
	svc, target := m.svc, m.inputTarget
	switch mode {
	case modeNewBoard:
		return m, func() tea.Msg {
			b, err := svc.CreateBoard(context.Background(), app.CreateBoardInput{Title: value})
			return actionMsg{label: "create board", status: "created board " + b.Title, err: err, openBoardID: b.ID}
		}
	case modeAddColumn:
		return m, func() tea.Msg {
			col, err := svc.CreateColumn(context.Background(), app.CreateColumnInput{BoardID: target, Title: value, Index: -1})
			return actionMsg{label: "create column", status: "created column " + col.Title, err: err, focusKind: domain.ItemKindColumn, focusID: col.ID}
		}
	case modeRenameColumn:
		return m, func() tea.Msg {
			col, err := svc.RenameColumn(context.Background(), target, value)
			return actionMsg{label: "rename column", status: "renamed column to " + col.Title, err: err, focusKind: domain.ItemKindColumn, focusID: col.ID}
		}
	case modeAddCard:
		return m, func() tea.Msg {
			card, err := svc.CreateCard(context.Background(), app.CreateCardInput{ColumnID: target, Title: value, Index: -1})
			return actionMsg{label: "create card", status: "created card " + card.Title, err: err, focusKind: domain.ItemKindCard, focusID: card.ID}
		}
	case modeEditCardTitle, modeEditCardDescription:
		card, ok := m.cardByID(target)
		if !ok {
			m.status = "card no longer exists"
			return m, nil
		}
		in := app.UpdateCardInput{ID: card.ID, Title: card.Title, Description: card.Description}
		if mode == modeEditCardTitle {
			in.Title = value
		} else {
			in.Description = value
		}
		return m, func() tea.Msg {
			updated, err := svc.UpdateCard(context.Background(), in)
			return actionMsg{label: "update card", status: "updated card " + updated.Title, err: err, focusKind: domain.ItemKindCard, focusID: updated.ID}
		}
	}
	return m, nil
}

// deleteItem returns the command deleting a card or column.
func (m Model) deleteItem(kind domain.ItemKind, id string) tea.Cmd {
	svc := m.svc
	return func() tea.Msg {
		ctx := context.Background()
		if kind == domain.ItemKindColumn {
			return actionMsg{label: "delete column", status: "deleted column", err: svc.DeleteColumn(ctx, id)}
		}
		return actionMsg{label: "delete card", status: "deleted card", err: svc.DeleteCard(ctx, id)}
	}
}

// yankSelected copies the selected card's id and title.
func (m *Model) yankSelected() {
	card, ok := m.selectedCardValue()
	if !ok {
		m.status = "no card selected"
		return
	}
	if err := m.copyText(card.ID + " " + card.Title); err != nil {
		m.status = "copy failed: " + err.Error()
		return
	}
	m.status = "copied " + card.ID
}

// loadBoards loads the board list.
func (m Model) loadBoards() tea.Msg {
	boards, err := m.svc.ListBoards(context.Background())
	return boardsLoadedMsg{boards: boards, err: err}
}

// openBoard returns the command loading a board into the model.
func (m Model) openBoard(boardID string) tea.Cmd {
	svc := m.svc
	return func() tea.Msg {
		ctx := context.Background()
		if _, err := svc.OpenBoard(ctx, boardID); err != nil {
			return boardOpenedMsg{err: err}
		}
		state, err := svc.BoardState(ctx, boardID)
		return boardOpenedMsg{state: state, err: err}
	}
}

// loadEvents returns the command loading recent activity.
func (m Model) loadEvents(boardID string) tea.Cmd {
	if boardID == "" {
		return nil
	}
	svc, limit := m.svc, m.eventLimit
	return func() tea.Msg {
		events, err := svc.ListBoardChangeEvents(context.Background(), boardID, limit)
		return eventsLoadedMsg{boardID: boardID, events: events, err: err}
	}
}

// waitForChange blocks until the watched board changes.
func waitForChange(h *watchHandle) tea.Cmd {
	if h == nil {
		return nil
	}
	return func() tea.Msg {
		if _, ok := <-h.ch; !ok {
			return nil
		}
		return boardChangedMsg{boardID: h.boardID}
	}
}

// refresh re-reads the open board from the model.
func (m *Model) refresh() {
	if m.boardID == "" {
		return
	}
	state, err := m.svc.BoardState(context.Background(), m.boardID)
	if err != nil {
		m.status = "refresh failed: " + err.Error()
		return
	}
	m.applyState(state)
}

// applyState rebuilds lanes from an ordered board state and keeps the selection on the same card.
func (m *Model) applyState(state domain.BoardState) {
	keepCard := ""
	if card, ok := m.selectedCardValue(); ok {
		keepCard = card.ID
	}
	m.board = state.Board
	m.lanes = make([]lane, 0, len(state.Columns))
	index := map[string]int{}
	for _, col := range state.Columns {
		index[col.ID] = len(m.lanes)
		m.lanes = append(m.lanes, lane{column: col})
	}
	for _, card := range state.Cards {
		if i, ok := index[card.ColumnID]; ok {
			m.lanes[i].cards = append(m.lanes[i].cards, card)
		}
	}
	m.clampSelection()
	if keepCard != "" {
		m.focus(domain.ItemKindCard, keepCard)
	}
	m.rebuildLayout()
}

// focus selects an item by id when present.
func (m *Model) focus(kind domain.ItemKind, id string) {
	for li, l := range m.lanes {
		if kind == domain.ItemKindColumn && l.column.ID == id {
			m.selectedColumn = li
			m.clampSelection()
			return
		}
		for ci, card := range l.cards {
			if kind == domain.ItemKindCard && card.ID == id {
				m.selectedColumn, m.selectedCard = li, ci
				return
			}
		}
	}
}

// clampSelection keeps selection indexes inside the current lanes.
func (m *Model) clampSelection() {
	if len(m.lanes) == 0 {
		m.selectedColumn, m.selectedCard = 0, 0
		return
	}
	m.selectedColumn = clamp(m.selectedColumn, 0, len(m.lanes)-1)
	m.selectedCard = clamp(m.selectedCard, 0, max(0, len(m.lanes[m.selectedColumn].cards)-1))
}

func (m Model) selectedColumnValue() (domain.Column, bool) {
	if m.selectedColumn < 0 || m.selectedColumn >= len(m.lanes) {
		return domain.Column{}, false
	}
	return m.lanes[m.selectedColumn].column, true
}

func (m Model) selectedCardValue() (domain.Card, bool) {
	if m.selectedColumn < 0 || m.selectedColumn >= len(m.lanes) {
		return domain.Card{}, false
	}
	cards := m.lanes[m.selectedColumn].cards
	if m.selectedCard < 0 || m.selectedCard >= len(cards) {
		return domain.Card{}, false
	}
	return cards[m.selectedCard], true
}

func (m Model) cardByID(id string) (domain.Card, bool) {
	for _, l := range m.lanes {
		for _, card := range l.cards {
			if card.ID == id {
				return card, true
			}
		}
	}
	return domain.Card{}, false
}

func (m Model) columnTitle(id string) string {
	for _, l := range m.lanes {
		if l.column.ID == id {
			return l.column.Title
		}
	}
	return id
}

// describeMove summarizes a persisted move for the status line.
func (m Model) describeMove(res board.MoveResult) string {
	if !res.Changed {
		return "no change"
	}
	if res.Kind == domain.ItemKindColumn {
		return fmt.Sprintf("moved column %s to position %d (rev %d)", m.columnTitle(res.ItemID), res.To.Index+1, res.Revision)
	}
	title := res.ItemID
	if card, ok := m.cardByID(res.ItemID); ok {
		title = card.Title
	}
	return fmt.Sprintf("moved %s to %s #%d (rev %d)", title, m.columnTitle(res.To.ContainerID), res.To.Index+1, res.Revision)
}

// newModalInput constructs modal input.
func newModalInput(prompt, placeholder, value string, limit int) textinput.Model {
	in := textinput.New()
	in.Prompt = prompt
	in.Placeholder = placeholder
	in.CharLimit = limit
	if value != "" {
		in.SetValue(value)
	}
	return in
}

func clamp(v, lo, hi int) int {
	if hi < lo {
		return lo
	}
	return max(lo, min(v, hi))
}
