package board

import (
	"github.com/hylla/tavla/internal/domain"
)

// SnapshotResult counts how remote changes were merged.
type SnapshotResult struct {
	Applied int
	Stale   int
	Orphan  int
}

// ApplyRemoteSnapshot merges authoritative item changes. An entry is applied
// only when its revision is newer than the revision held locally for that item,
// so arrival order never decides the outcome. Items not mentioned are untouched.
func (m *Model) ApplyRemoteSnapshot(changes []domain.ItemChange) SnapshotResult {
	m.mu.Lock()
	defer m.mu.Unlock()

	var res SnapshotResult
	touched := map[string]struct{}{}
	// Columns first so cards landing in a freshly created column find it.
	for _, pass := range []domain.ItemKind{domain.ItemKindColumn, domain.ItemKindCard} {
		for _, ch := range changes {
			if ch.Kind != pass {
				continue
			}
			var outcome applyOutcome
			switch ch.Kind {
			case domain.ItemKindColumn:
				outcome = m.applyColumnChangeLocked(ch)
			case domain.ItemKindCard:
				outcome = m.applyCardChangeLocked(ch)
			}
			switch outcome {
			case outcomeApplied:
				res.Applied++
				touched[ch.BoardID] = struct{}{}
			case outcomeStale:
				res.Stale++
			case outcomeOrphan:
				res.Orphan++
			}
		}
	}
	for boardID := range touched {
		m.notifyLocked(boardID)
	}
	return res
}

type applyOutcome int

const (
	outcomeApplied applyOutcome = iota
	outcomeStale
	outcomeOrphan
)

// isStaleLocked reports whether a change is not newer than local knowledge.
func (m *Model) isStaleLocked(ch domain.ItemChange, localRevision int64, known bool) bool {
	if tomb, ok := m.tombstones[tombstoneKey(ch.Kind, ch.ItemID)]; ok && ch.Revision <= tomb {
		return true
	}
	return known && ch.Revision <= localRevision
}

func (m *Model) applyColumnChangeLocked(ch domain.ItemChange) applyOutcome {
	col, bs, known := m.columnLocked(ch.ItemID)
	if m.isStaleLocked(ch, col.Revision, known) {
		return outcomeStale
	}
	if ch.Deleted {
		m.tombstones[tombstoneKey(ch.Kind, ch.ItemID)] = ch.Revision
		if known {
			m.removeColumnLocked(bs, ch.ItemID)
		}
		return outcomeApplied
	}
	boardID := ch.ContainerID
	if boardID == "" {
		boardID = ch.BoardID
	}
	target, ok := m.boards[boardID]
	if !ok || (known && bs != target) {
		return outcomeOrphan
	}
	if !known {
		col = domain.Column{ID: ch.ItemID, BoardID: boardID, CreatedAt: m.clock().UTC()}
		target.cards[ch.ItemID] = map[string]domain.Card{}
		m.columnBoard[ch.ItemID] = boardID
	}
	if ch.Title != "" {
		col.Title = ch.Title
	}
	col.OrderKey = ch.OrderKey
	col.Revision = ch.Revision
	col.UpdatedAt = m.clock().UTC()
	target.columns[col.ID] = col
	m.confirmedColumns[col.ID] = col
	return outcomeApplied
}

func (m *Model) applyCardChangeLocked(ch domain.ItemChange) applyOutcome {
	card, bs, known := m.cardLocked(ch.ItemID)
	if m.isStaleLocked(ch, card.Revision, known) {
		return outcomeStale
	}
	if ch.Deleted {
		m.tombstones[tombstoneKey(ch.Kind, ch.ItemID)] = ch.Revision
		if known {
			m.removeCardLocked(bs, ch.ItemID)
		}
		return outcomeApplied
	}
	_, target, ok := m.columnLocked(ch.ContainerID)
	if !ok || (known && bs != target) {
		return outcomeOrphan
	}
	if !known {
		card = domain.Card{ID: ch.ItemID, BoardID: target.board.ID, ColumnID: ch.ContainerID, CreatedAt: m.clock().UTC()}
	} else if card.ColumnID != ch.ContainerID {
		delete(bs.cards[card.ColumnID], card.ID)
	}
	card.ColumnID = ch.ContainerID
	card.OrderKey = ch.OrderKey
	card.Revision = ch.Revision
	if ch.Title != "" {
		card.Title = ch.Title
		card.Description = ch.Description
	}
	card.UpdatedAt = m.clock().UTC()
	target.cards[ch.ContainerID][card.ID] = card
	m.cardColumn[card.ID] = ch.ContainerID
	m.confirmedCards[card.ID] = card
	return outcomeApplied
}

func tombstoneKey(kind domain.ItemKind, id string) string {
	return string(kind) + "/" + id
}
