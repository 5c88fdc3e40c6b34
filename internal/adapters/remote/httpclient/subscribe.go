package httpclient

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/hylla/tavla/internal/app"
	"github.com/hylla/tavla/internal/domain"
)

// Feed timing. The server pings well inside feedReadWait.
const (
	feedReadWait  = 75 * time.Second
	feedWriteWait = 10 * time.Second
)

// Backoff computes exponential reconnect delays with jitter.
type Backoff struct {
	Min        time.Duration
	Max        time.Duration
	Multiplier float64
	// Jitter is the maximum random spread as a fraction of the delay.
	Jitter float64
}

// DefaultBackoff returns the reconnect policy used when none is configured.
func DefaultBackoff() Backoff {
	return Backoff{Min: 500 * time.Millisecond, Max: 30 * time.Second, Multiplier: 2, Jitter: 0.2}
}

// normalized fills zero fields from DefaultBackoff and orders the bounds.
func (b Backoff) normalized() Backoff {
	def := DefaultBackoff()
	if b.Min <= 0 {
		b.Min = def.Min
	}
	if b.Max <= 0 {
		b.Max = def.Max
	}
	if b.Max < b.Min {
		b.Max = b.Min
	}
	if b.Multiplier < 1 {
		b.Multiplier = def.Multiplier
	}
	if b.Jitter < 0 || b.Jitter > 1 {
		b.Jitter = def.Jitter
	}
	return b
}

// Delay returns the wait before reconnect attempt n (0-based).
func (b Backoff) Delay(attempt int) time.Duration {
	delay := float64(b.Min) * math.Pow(b.Multiplier, float64(attempt))
	if delay > float64(b.Max) || math.IsInf(delay, 1) {
		delay = float64(b.Max)
	}
	if b.Jitter > 0 {
		delay += delay * b.Jitter * (2*rand.Float64() - 1)
	}
	if delay < float64(b.Min) {
		delay = float64(b.Min)
	}
	return time.Duration(delay)
}

// changeMessage mirrors one frame of the server change feed.
type changeMessage struct {
	BoardID string              `json:"board_id"`
	Changes []domain.ItemChange `json:"changes"`
}

// SubscribeToContainerChanges streams committed changes for one board.
// The first connection must succeed; later disconnects reconnect with backoff and
// deliver a full board resync before live changes resume.
func (c *Client) SubscribeToContainerChanges(ctx context.Context, boardID string, fn func([]domain.ItemChange)) (func(), error) {
	if fn == nil {
		return nil, errors.New("change callback is required")
	}
	boardID = strings.TrimSpace(boardID)
	if boardID == "" {
		return nil, domain.ErrInvalidBoardID
	}
	conn, err := c.dial(ctx, boardID)
	if err != nil {
		return nil, err
	}

	subCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		c.runFeed(subCtx, boardID, conn, fn)
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			cancel()
			<-done
		})
	}, nil
}

// dial opens one change feed connection.
func (c *Client) dial(ctx context.Context, boardID string) (*websocket.Conn, error) {
	target := c.wsURL + "/boards/" + url.PathEscape(boardID) + "/changes"
	conn, resp, err := c.dialer.DialContext(ctx, target, http.Header{})
	if err != nil {
		if resp != nil && resp.StatusCode >= http.StatusBadRequest {
			return nil, fmt.Errorf("subscribe %s: %w", boardID, decodeError(resp))
		}
		return nil, fmt.Errorf("subscribe %s: %w", boardID, errors.Join(ErrUnavailable, err))
	}
	return conn, nil
}

// runFeed reads frames until ctx ends, reconnecting after failures.
func (c *Client) runFeed(ctx context.Context, boardID string, conn *websocket.Conn, fn func([]domain.ItemChange)) {
	for {
		err := c.readFeed(ctx, conn, fn)
		if ctx.Err() != nil {
			return
		}
		c.logger.Warn("change feed disconnected", "board_id", boardID, "err", err)

		conn = c.reconnect(ctx, boardID)
		if conn == nil {
			return
		}
		c.logger.Info("change feed reconnected", "board_id", boardID)
		c.resync(ctx, boardID, fn)
	}
}

// reconnect dials with exponential backoff. It returns nil when ctx ends or the board is gone.
func (c *Client) reconnect(ctx context.Context, boardID string) *websocket.Conn {
	for attempt := 0; ; attempt++ {
		timer := time.NewTimer(c.backoff.Delay(attempt))
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case <-timer.C:
		}
		conn, err := c.dial(ctx, boardID)
		if err == nil {
			return conn
		}
		if errors.Is(err, app.ErrNotFound) {
			c.logger.Error("change feed board removed", "board_id", boardID, "err", err)
			return nil
		}
		c.logger.Warn("change feed reconnect failed", "board_id", boardID, "attempt", attempt+1, "err", err)
	}
}

// resync delivers the full board as one batch so changes missed while disconnected converge.
// Revisions let the receiver discard entries it already has.
func (c *Client) resync(ctx context.Context, boardID string, fn func([]domain.ItemChange)) {
	state, err := c.LoadBoard(ctx, boardID)
	if err != nil {
		c.logger.Warn("change feed resync failed", "board_id", boardID, "err", err)
		return
	}
	changes := make([]domain.ItemChange, 0, len(state.Columns)+len(state.Cards))
	for _, col := range state.Columns {
		changes = append(changes, domain.ColumnChange(col))
	}
	for _, card := range state.Cards {
		changes = append(changes, domain.CardChange(card))
	}
	if len(changes) > 0 {
		fn(changes)
	}
}

// readFeed delivers frames from one connection until it fails or ctx ends.
func (c *Client) readFeed(ctx context.Context, conn *websocket.Conn, fn func([]domain.ItemChange)) error {
	stopClose := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stopClose()
	defer conn.Close()

	_ = conn.SetReadDeadline(time.Now().Add(feedReadWait))
	conn.SetPingHandler(func(data string) error {
		_ = conn.SetReadDeadline(time.Now().Add(feedReadWait))
		err := conn.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(feedWriteWait))
		if errors.Is(err, websocket.ErrCloseSent) {
			return nil
		}
		return err
	})
	for {
		var msg changeMessage
		if err := conn.ReadJSON(&msg); err != nil {
			return err
		}
		_ = conn.SetReadDeadline(time.Now().Add(feedReadWait))
		if len(msg.Changes) > 0 {
			fn(msg.Changes)
		}
	}
}
