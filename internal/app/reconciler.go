package app

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/charmbracelet/log"

	"github.com/hylla/tavla/internal/board"
	"github.com/hylla/tavla/internal/domain"
)

// PendingMove is a move applied optimistically and awaiting persistence.
type PendingMove struct {
	Result board.MoveResult
	origin board.Position
	rekey  *board.Rekey
}

// Noop reports whether the move left the item where it was.
func (p PendingMove) Noop() bool {
	return !p.Result.Changed && p.rekey == nil
}

// Reconciler applies moves to the model before persisting them and settles
// the model against authoritative responses.
type Reconciler struct {
	model  *board.Model
	remote RemoteSync
	logger *log.Logger
}

// NewReconciler constructs a new value for this package.
func NewReconciler(model *board.Model, remote RemoteSync, logger *log.Logger) *Reconciler {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Reconciler{model: model, remote: remote, logger: logger}
}

// Model returns the container model the reconciler mutates.
func (r *Reconciler) Model() *board.Model {
	return r.model
}

// Move applies and persists a card move.
func (r *Reconciler) Move(ctx context.Context, cardID, targetColumnID string, targetIndex int) (board.MoveResult, error) {
	pending, err := r.Begin(domain.ItemKindCard, cardID, targetColumnID, targetIndex)
	if err != nil {
		return board.MoveResult{}, err
	}
	return r.Commit(ctx, pending)
}

// MoveColumn applies and persists a column move.
func (r *Reconciler) MoveColumn(ctx context.Context, columnID string, targetIndex int) (board.MoveResult, error) {
	boardID, err := r.model.BoardOf(domain.ItemKindColumn, columnID)
	if err != nil {
		return board.MoveResult{}, err
	}
	pending, err := r.Begin(domain.ItemKindColumn, columnID, boardID, targetIndex)
	if err != nil {
		return board.MoveResult{}, err
	}
	return r.Commit(ctx, pending)
}

// Begin applies a move to the model without any network call. It falls back
// to a local re-key of the target container when keys are exhausted; the
// re-key is persisted by Commit ahead of the move itself.
func (r *Reconciler) Begin(kind domain.ItemKind, itemID, containerID string, index int) (PendingMove, error) {
	origin, err := r.model.Locate(kind, itemID)
	if err != nil {
		return PendingMove{}, err
	}
	res, err := r.apply(kind, itemID, containerID, index)
	var rekey *board.Rekey
	if errors.Is(err, domain.ErrKeyExhausted) {
		r.logger.Debug("order keys exhausted, re-keying container", "kind", kind, "container_id", containerID)
		rk, rkErr := r.model.RekeyContainer(kind, containerID)
		if rkErr != nil {
			return PendingMove{}, rkErr
		}
		rekey = &rk
		res, err = r.apply(kind, itemID, containerID, index)
		if err != nil {
			r.restore(kind, itemID, origin, rekey)
			return PendingMove{}, err
		}
	}
	if err != nil {
		return PendingMove{}, err
	}
	if err := r.model.Verify(res.BoardID); err != nil {
		r.resetBoard(res.BoardID, err)
		return PendingMove{}, err
	}
	return PendingMove{Result: res, origin: origin, rekey: rekey}, nil
}

// Commit persists a pending move. On failure the item returns to its pre-move
// position unless a newer remote revision has already replaced it. A no-op
// move performs no write.
func (r *Reconciler) Commit(ctx context.Context, p PendingMove) (board.MoveResult, error) {
	if p.Noop() {
		return p.Result, nil
	}
	kind, itemID := p.Result.Kind, p.Result.ItemID
	restoreTo := p.origin

	if p.rekey != nil {
		changes, err := r.remote.PersistBatchReorder(ctx, p.rekey.Kind, p.rekey.ContainerID, p.rekey.Assignments)
		if err != nil {
			r.restore(kind, itemID, p.origin, p.rekey)
			r.logger.Warn("re-key batch rejected, move rolled back", "kind", kind, "item_id", itemID, "err", err)
			return p.Result, &MoveError{Kind: kind, ItemID: itemID, Restored: true, Err: err}
		}
		// The moving item's own entry would undo the optimistic slot; its
		// position write below carries a newer revision.
		others := make([]domain.ItemChange, 0, len(changes))
		for _, ch := range changes {
			if ch.ItemID == itemID && ch.Kind == kind {
				restoreTo.OrderKey = ch.OrderKey
				continue
			}
			others = append(others, ch)
		}
		r.model.ApplyRemoteSnapshot(others)
		if !p.Result.Changed {
			return p.Result, nil
		}
	}

	change, err := r.remote.PersistItemPosition(ctx, p.Result.ItemPosition())
	if err != nil {
		restored := r.rollback(p.Result, restoreTo)
		r.logger.Warn("move persist failed", "kind", kind, "item_id", itemID, "restored", restored, "err", err)
		return p.Result, &MoveError{Kind: kind, ItemID: itemID, Restored: restored, Err: err}
	}
	r.model.ApplyRemoteSnapshot([]domain.ItemChange{change})
	p.Result.Revision = change.Revision
	r.logger.Debug("move persisted", "kind", kind, "item_id", itemID, "container_id", change.ContainerID, "order_key", change.OrderKey.String(), "revision", change.Revision)
	return p.Result, nil
}

// Subscribe forwards remote snapshots for a board into the model.
func (r *Reconciler) Subscribe(ctx context.Context, boardID string) (func(), error) {
	return r.remote.SubscribeToContainerChanges(ctx, boardID, func(changes []domain.ItemChange) {
		r.ApplyRemote(boardID, changes)
	})
}

// ApplyRemote merges a remote snapshot and resets the board if it left the model inconsistent.
func (r *Reconciler) ApplyRemote(boardID string, changes []domain.ItemChange) board.SnapshotResult {
	res := r.model.ApplyRemoteSnapshot(changes)
	if res.Applied > 0 {
		if err := r.model.Verify(boardID); err != nil && !errors.Is(err, board.ErrUnknownBoard) {
			r.resetBoard(boardID, err)
		}
	}
	r.logger.Debug("remote snapshot", "board_id", boardID, "applied", res.Applied, "stale", res.Stale, "orphan", res.Orphan)
	return res
}

func (r *Reconciler) apply(kind domain.ItemKind, itemID, containerID string, index int) (board.MoveResult, error) {
	switch kind {
	case domain.ItemKindCard:
		return r.model.ApplyMove(itemID, containerID, index)
	case domain.ItemKindColumn:
		boardID, err := r.model.BoardOf(kind, itemID)
		if err != nil {
			return board.MoveResult{}, err
		}
		if boardID != containerID {
			return board.MoveResult{}, fmt.Errorf("column %q on board %q: %w", itemID, containerID, board.ErrCrossBoardMove)
		}
		return r.model.ApplyColumnMove(itemID, index)
	default:
		return board.MoveResult{}, domain.ErrInvalidItemKind
	}
}

// rollback reverts an optimistic move if no newer revision replaced it. An
// item already back at its pre-move slot counts as restored; a synchronously
// echoed re-key batch puts it there with the batch revision.
func (r *Reconciler) rollback(res board.MoveResult, to board.Position) bool {
	pos, err := r.model.Locate(res.Kind, res.ItemID)
	if err != nil {
		return false
	}
	if pos.ContainerID == to.ContainerID && pos.OrderKey == to.OrderKey {
		return true
	}
	current, err := r.model.Revision(res.Kind, res.ItemID)
	if err != nil || current != res.Revision {
		return false
	}
	if pos.ContainerID != res.To.ContainerID || pos.OrderKey != res.To.OrderKey {
		return false
	}
	if err := r.model.SetPosition(domain.ItemPosition{Kind: res.Kind, ItemID: res.ItemID, ContainerID: to.ContainerID, OrderKey: to.OrderKey}); err != nil {
		r.logger.Error("rollback failed", "kind", res.Kind, "item_id", res.ItemID, "err", err)
		return false
	}
	return true
}

// restore undoes a local re-key and returns the item to its origin.
func (r *Reconciler) restore(kind domain.ItemKind, itemID string, origin board.Position, rk *board.Rekey) {
	if err := r.model.SetPosition(domain.ItemPosition{Kind: kind, ItemID: itemID, ContainerID: origin.ContainerID, OrderKey: origin.OrderKey}); err != nil {
		r.logger.Error("restore item failed", "kind", kind, "item_id", itemID, "err", err)
	}
	if rk == nil {
		return
	}
	if err := r.model.ApplyKeys(rk.Kind, rk.ContainerID, rk.Previous); err != nil {
		r.logger.Error("restore re-key failed", "kind", rk.Kind, "container_id", rk.ContainerID, "err", err)
	}
}

func (r *Reconciler) resetBoard(boardID string, cause error) {
	r.logger.Error("container state inconsistent, resetting board", "board_id", boardID, "err", cause)
	if err := r.model.Reset(boardID); err != nil {
		r.logger.Error("reset failed", "board_id", boardID, "err", err)
	}
}
