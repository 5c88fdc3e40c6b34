package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	"github.com/hylla/tavla/internal/app"
	"github.com/hylla/tavla/internal/domain"
)

// PersistItemPosition stores one item's container and key and returns the authoritative state.
func (r *Repository) PersistItemPosition(ctx context.Context, pos domain.ItemPosition) (domain.ItemChange, error) {
	pos, err := pos.Validate()
	if err != nil {
		return domain.ItemChange{}, err
	}
	var change domain.ItemChange
	err = r.inTx(ctx, func(tx *sql.Tx) error {
		var err error
		change, err = r.writePosition(ctx, tx, pos, domain.ChangeOperationMove)
		return err
	})
	if err != nil {
		return domain.ItemChange{}, err
	}
	r.hub.publish(change.BoardID, []domain.ItemChange{change})
	return change, nil
}

// PersistBatchReorder rewrites keys for many siblings in a single transaction.
// Every item must already sit in containerID; a reorder never moves anything.
func (r *Repository) PersistBatchReorder(ctx context.Context, kind domain.ItemKind, containerID string, keys []domain.KeyAssignment) ([]domain.ItemChange, error) {
	if !kind.Valid() {
		return nil, domain.ErrInvalidItemKind
	}
	if len(keys) == 0 {
		return []domain.ItemChange{}, nil
	}
	out := make([]domain.ItemChange, 0, len(keys))
	err := r.inTx(ctx, func(tx *sql.Tx) error {
		for _, k := range keys {
			pos, err := domain.ItemPosition{Kind: kind, ItemID: k.ItemID, ContainerID: containerID, OrderKey: k.OrderKey}.Validate()
			if err != nil {
				return err
			}
			if err := requireSibling(ctx, tx, pos); err != nil {
				return fmt.Errorf("reorder %s %q: %w", kind, k.ItemID, err)
			}
			change, err := r.writePosition(ctx, tx, pos, domain.ChangeOperationReorder)
			if err != nil {
				return fmt.Errorf("reorder %s %q: %w", kind, k.ItemID, err)
			}
			out = append(out, change)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	r.hub.publish(out[0].BoardID, out)
	return out, nil
}

// SubscribeToContainerChanges delivers committed item changes for a board until ctx ends or stop is called.
// Callbacks run on the writer's goroutine after commit and must not block.
func (r *Repository) SubscribeToContainerChanges(ctx context.Context, boardID string, fn func([]domain.ItemChange)) (func(), error) {
	if fn == nil {
		return nil, fmt.Errorf("subscribe %q: nil callback", boardID)
	}
	if _, err := r.GetBoard(ctx, boardID); err != nil {
		return nil, err
	}
	unsubscribe := r.hub.subscribe(boardID, fn)
	done := make(chan struct{})
	var once sync.Once
	stop := func() {
		once.Do(func() {
			close(done)
			unsubscribe()
		})
	}
	go func() {
		select {
		case <-ctx.Done():
			stop()
		case <-done:
		}
	}()
	return stop, nil
}

// requireSibling rejects a reorder entry whose item currently lives outside the batch container.
func requireSibling(ctx context.Context, tx *sql.Tx, pos domain.ItemPosition) error {
	switch pos.Kind {
	case domain.ItemKindCard:
		card, err := getCardByID(ctx, tx, pos.ItemID)
		if err != nil {
			return err
		}
		if card.ColumnID != pos.ContainerID {
			return domain.ErrInvalidColumnID
		}
	case domain.ItemKindColumn:
		col, err := getColumnByID(ctx, tx, pos.ItemID)
		if err != nil {
			return err
		}
		if col.BoardID != pos.ContainerID {
			return domain.ErrInvalidBoardID
		}
	}
	return nil
}

// writePosition moves a card or column inside tx and records a ledger entry.
func (r *Repository) writePosition(ctx context.Context, tx *sql.Tx, pos domain.ItemPosition, op domain.ChangeOperation) (domain.ItemChange, error) {
	now := r.now()
	switch pos.Kind {
	case domain.ItemKindCard:
		card, err := getCardByID(ctx, tx, pos.ItemID)
		if err != nil {
			return domain.ItemChange{}, err
		}
		if pos.ContainerID != card.ColumnID {
			col, err := getColumnByID(ctx, tx, pos.ContainerID)
			if err != nil {
				return domain.ItemChange{}, err
			}
			if col.BoardID != card.BoardID {
				return domain.ItemChange{}, domain.ErrInvalidColumnID
			}
		}
		rev, err := insertChangeEvent(ctx, tx, now, domain.ChangeEvent{
			BoardID: card.BoardID, ItemKind: domain.ItemKindCard, ItemID: card.ID, Operation: op,
			Metadata: map[string]string{
				"from_column_id": card.ColumnID,
				"to_column_id":   pos.ContainerID,
				"order_key":      pos.OrderKey.String(),
			},
		})
		if err != nil {
			return domain.ItemChange{}, err
		}
		if err := card.Move(pos.ContainerID, pos.OrderKey, now); err != nil {
			return domain.ItemChange{}, err
		}
		card.Revision = rev
		res, err := tx.ExecContext(ctx, `
			UPDATE cards SET column_id = ?, order_key = ?, revision = ?, updated_at = ? WHERE id = ?
		`, card.ColumnID, float64(card.OrderKey), card.Revision, ts(card.UpdatedAt), card.ID)
		if err != nil {
			return domain.ItemChange{}, err
		}
		if err := translateNoRows(res); err != nil {
			return domain.ItemChange{}, err
		}
		return domain.CardChange(card), nil
	case domain.ItemKindColumn:
		col, err := getColumnByID(ctx, tx, pos.ItemID)
		if err != nil {
			return domain.ItemChange{}, err
		}
		if col.BoardID != pos.ContainerID {
			return domain.ItemChange{}, domain.ErrInvalidBoardID
		}
		rev, err := insertChangeEvent(ctx, tx, now, domain.ChangeEvent{
			BoardID: col.BoardID, ItemKind: domain.ItemKindColumn, ItemID: col.ID, Operation: op,
			Metadata: map[string]string{
				"from_order_key": col.OrderKey.String(),
				"order_key":      pos.OrderKey.String(),
			},
		})
		if err != nil {
			return domain.ItemChange{}, err
		}
		if err := col.SetOrderKey(pos.OrderKey, now); err != nil {
			return domain.ItemChange{}, err
		}
		col.Revision = rev
		res, err := tx.ExecContext(ctx, `
			UPDATE board_columns SET order_key = ?, revision = ?, updated_at = ? WHERE id = ?
		`, float64(col.OrderKey), col.Revision, ts(col.UpdatedAt), col.ID)
		if err != nil {
			return domain.ItemChange{}, err
		}
		if err := translateNoRows(res); err != nil {
			return domain.ItemChange{}, err
		}
		return domain.ColumnChange(col), nil
	default:
		return domain.ItemChange{}, domain.ErrInvalidItemKind
	}
}

// hub fans committed changes out to in-process subscribers.
type hub struct {
	mu   sync.Mutex
	next int
	subs map[string]map[int]func([]domain.ItemChange)
}

func newHub() *hub {
	return &hub{subs: map[string]map[int]func([]domain.ItemChange){}}
}

func (h *hub) subscribe(boardID string, fn func([]domain.ItemChange)) func() {
	h.mu.Lock()
	defer h.mu.Unlock()
	id := h.next
	h.next++
	if h.subs[boardID] == nil {
		h.subs[boardID] = map[int]func([]domain.ItemChange){}
	}
	h.subs[boardID][id] = fn
	return func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		delete(h.subs[boardID], id)
		if len(h.subs[boardID]) == 0 {
			delete(h.subs, boardID)
		}
	}
}

// publish runs callbacks outside the lock so they may subscribe or unsubscribe.
func (h *hub) publish(boardID string, changes []domain.ItemChange) {
	if len(changes) == 0 {
		return
	}
	h.mu.Lock()
	fns := make([]func([]domain.ItemChange), 0, len(h.subs[boardID]))
	for _, fn := range h.subs[boardID] {
		fns = append(fns, fn)
	}
	h.mu.Unlock()
	for _, fn := range fns {
		fn(changes)
	}
}

func (h *hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.subs = map[string]map[int]func([]domain.ItemChange){}
}

var _ app.RemoteSync = (*Repository)(nil)
