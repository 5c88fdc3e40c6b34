package httpapi

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/hylla/tavla/internal/adapters/server/common"
	"github.com/hylla/tavla/internal/domain"
)

// Change feed timing.
const (
	feedWriteWait  = 10 * time.Second
	feedPongWait   = 60 * time.Second
	feedPingPeriod = feedPongWait * 9 / 10
	feedBuffer     = 64
)

// ChangeMessage is one websocket frame on the board change feed.
type ChangeMessage struct {
	BoardID string              `json:"board_id"`
	Changes []domain.ItemChange `json:"changes"`
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// handleChangeFeed serves GET `/boards/{id}/changes` as a websocket stream of committed changes.
// A subscriber that falls behind by more than feedBuffer batches is disconnected and must reload.
func (h *Handler) handleChangeFeed(w http.ResponseWriter, r *http.Request) {
	boardID := mux.Vars(r)["id"]
	if _, err := h.store.GetBoard(r.Context(), boardID); err != nil {
		writeErrorFrom(w, common.MapAppError("subscribe", err))
		return
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "board_id", boardID, "err", err)
		return
	}
	defer conn.Close()

	ctx := r.Context()
	queue := make(chan []domain.ItemChange, feedBuffer)
	overflow := make(chan struct{})
	var overflowOnce sync.Once
	stop, err := h.store.SubscribeToContainerChanges(ctx, boardID, func(changes []domain.ItemChange) {
		select {
		case queue <- changes:
		default:
			overflowOnce.Do(func() { close(overflow) })
		}
	})
	if err != nil {
		h.logger.Warn("change feed subscribe failed", "board_id", boardID, "err", err)
		_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseInternalServerErr, "subscribe failed"))
		return
	}
	defer stop()
	h.logger.Debug("change feed opened", "board_id", boardID, "remote", r.RemoteAddr)

	// The reader only services control frames and notices disconnects.
	closed := make(chan struct{})
	conn.SetReadLimit(512)
	_ = conn.SetReadDeadline(time.Now().Add(feedPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(feedPongWait))
	})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(feedPingPeriod)
	defer ticker.Stop()
	for {
		select {
		case changes := <-queue:
			_ = conn.SetWriteDeadline(time.Now().Add(feedWriteWait))
			if err := conn.WriteJSON(ChangeMessage{BoardID: boardID, Changes: changes}); err != nil {
				h.logger.Debug("change feed write failed", "board_id", boardID, "err", err)
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(feedWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-overflow:
			h.logger.Warn("change feed overflow", "board_id", boardID)
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseTryAgainLater, "subscriber too slow"),
				time.Now().Add(feedWriteWait))
			return
		case <-closed:
			return
		case <-ctx.Done():
			return
		}
	}
}
