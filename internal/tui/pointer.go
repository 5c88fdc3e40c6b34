package tui

import (
	"context"
	"errors"

	"charm.land/bubbles/v2/key"
	tea "charm.land/bubbletea/v2"

	"github.com/hylla/tavla/internal/domain"
	"github.com/hylla/tavla/internal/drag"
)

// cellPoint maps a terminal cell to the layout point at its center.
func cellPoint(x, y int) drag.Point {
	return drag.Point{X: float64(x) + 0.5, Y: float64(y) + 0.5}
}

// sameCell reports whether two points fall in one terminal cell.
func sameCell(a, b drag.Point) bool {
	return int(a.X) == int(b.X) && int(a.Y) == int(b.Y)
}

// handleDragKey drives a keyboard move, or cancels a pointer move on esc.
func (m Model) handleDragKey(msg tea.KeyPressMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.cancelDrag):
		_ = m.drag.Cancel()
		m.pointerDrag = false
		m.press = nil
		m.status = "move cancelled"
		return m, nil
	case key.Matches(msg, m.keys.quit):
		_ = m.drag.Cancel()
		m.Close()
		return m, tea.Quit
	}
	if m.pointerDrag {
		return m, nil
	}

	var err error
	switch {
	case key.Matches(msg, m.keys.drop):
		inst, commitErr := m.drag.Commit()
		if commitErr != nil {
			m.status = "drop failed: " + commitErr.Error()
			return m, nil
		}
		return m.dispatch(inst)
	case key.Matches(msg, m.keys.moveLeft):
		_, err = m.drag.Step(-1, 0)
	case key.Matches(msg, m.keys.moveRight):
		_, err = m.drag.Step(1, 0)
	case key.Matches(msg, m.keys.moveUp):
		_, err = m.drag.Step(0, -1)
	case key.Matches(msg, m.keys.moveDown):
		_, err = m.drag.Step(0, 1)
	}
	if err != nil {
		m.status = "move failed: " + err.Error()
	}
	return m, nil
}

// handleMouseClick selects the item under the pointer and arms a possible drag.
// A click while a keyboard move is active drops the item there.
func (m Model) handleMouseClick(msg tea.MouseClickMsg) (tea.Model, tea.Cmd) {
	if m.mode != modeNone || msg.Button != tea.MouseLeft {
		return m, nil
	}
	p := cellPoint(msg.X, msg.Y)
	if m.drag.State() == drag.StateDragging {
		if m.pointerDrag {
			return m, nil
		}
		inst, err := m.drag.Drop(p)
		if err != nil {
			m.status = "drop failed: " + err.Error()
			return m, nil
		}
		return m.dispatch(inst)
	}

	m.press = nil
	if id, ok := m.layout.HitCard(p); ok {
		m.focus(domain.ItemKindCard, id)
		m.press = &pressState{kind: domain.ItemKindCard, itemID: id, at: p}
		return m, nil
	}
	if id, ok := m.layout.HitLane(p); ok {
		m.focus(domain.ItemKindColumn, id)
		if msg.Y == boardTop {
			m.press = &pressState{kind: domain.ItemKindColumn, itemID: id, at: p}
		}
	}
	return m, nil
}

// handleMouseMotion starts a drag once the pointer leaves the pressed cell and
// updates the preview afterwards.
func (m Model) handleMouseMotion(msg tea.MouseMotionMsg) (tea.Model, tea.Cmd) {
	if m.press == nil && !m.pointerDrag {
		return m, nil
	}
	p := cellPoint(msg.X, msg.Y)
	if !m.pointerDrag {
		if sameCell(p, m.press.at) {
			return m, nil
		}
		if err := m.drag.Begin(m.press.kind, m.press.itemID, m.press.at, m.layout); err != nil {
			m.press = nil
			m.status = "cannot start move: " + err.Error()
			return m, nil
		}
		m.pointerDrag = true
		m.status = "moving..."
	}
	if _, err := m.drag.Move(p); err != nil {
		m.pointerDrag = false
		m.press = nil
		m.status = "move interrupted: " + err.Error()
	}
	return m, nil
}

// handleMouseRelease drops an active pointer drag.
func (m Model) handleMouseRelease(msg tea.MouseReleaseMsg) (tea.Model, tea.Cmd) {
	m.press = nil
	if !m.pointerDrag {
		return m, nil
	}
	m.pointerDrag = false
	inst, err := m.drag.Drop(cellPoint(msg.X, msg.Y))
	if err != nil {
		m.status = "drop failed: " + err.Error()
		return m, nil
	}
	return m.dispatch(inst)
}

// handleMouseWheel moves the card selection.
func (m Model) handleMouseWheel(msg tea.MouseWheelMsg) (tea.Model, tea.Cmd) {
	if m.mode != modeNone || m.drag.State() == drag.StateDragging {
		return m, nil
	}
	switch msg.Button {
	case tea.MouseWheelUp:
		m.selectedCard--
	case tea.MouseWheelDown:
		m.selectedCard++
	}
	m.clampSelection()
	return m, nil
}

// dispatch applies a dropped instruction optimistically and persists it in the background.
func (m Model) dispatch(inst drag.Instruction) (tea.Model, tea.Cmd) {
	m.pointerDrag = false
	m.press = nil
	// The model decides whether the drop moves anything; the layout the
	// instruction came from may be older than the model.
	rec := m.svc.Reconciler()
	pending, err := rec.Begin(inst.Kind, inst.ItemID, inst.Target.ContainerID, inst.Target.Index)
	if err != nil {
		m.status = "move rejected: " + err.Error()
		m.refresh()
		return m, nil
	}
	if pending.Noop() {
		m.status = "no change"
		m.refresh()
		return m, nil
	}
	m.refresh()
	m.focus(inst.Kind, inst.ItemID)
	m.status = "saving move..."
	return m, func() tea.Msg {
		res, err := rec.Commit(context.Background(), pending)
		return moveCommittedMsg{result: res, err: err}
	}
}

// rebuildLayout recomputes hit-test geometry and hands it to an active drag.
func (m *Model) rebuildLayout() {
	m.layout = buildLayout(m.boardID, m.lanes, m.columnWidth(), m.laneHeight())
	if err := m.drag.Relayout(m.layout); err != nil {
		m.pointerDrag = false
		m.press = nil
		if errors.Is(err, drag.ErrUnknownItem) {
			m.status = "move cancelled: item was removed"
			return
		}
		m.status = "move cancelled: " + err.Error()
	}
}

// buildLayout lays lanes side by side below the header. Each card takes one row
// under the lane title and its rule.
func buildLayout(boardID string, lanes []lane, colWidth, laneHeight int) drag.Layout {
	layout := drag.Layout{BoardID: boardID, Lanes: make([]drag.Lane, 0, len(lanes))}
	for i, l := range lanes {
		x := float64(i * colWidth)
		dl := drag.Lane{
			ID:    l.column.ID,
			Rect:  drag.Rect{X: x, Y: boardTop, W: float64(colWidth), H: float64(laneHeight)},
			Cards: make([]drag.Box, 0, len(l.cards)),
		}
		for j, card := range l.cards {
			dl.Cards = append(dl.Cards, drag.Box{
				ID:   card.ID,
				Rect: drag.Rect{X: x, Y: float64(boardTop + laneHeaderRows + j), W: float64(colWidth), H: 1},
			})
		}
		layout.Lanes = append(layout.Lanes, dl)
	}
	return layout
}
