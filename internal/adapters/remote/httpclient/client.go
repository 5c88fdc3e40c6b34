// Package httpclient implements the app backend ports against a remote tavla server.
package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"

	"github.com/hylla/tavla/internal/app"
	"github.com/hylla/tavla/internal/domain"
)

// defaultRequestTimeout bounds one REST call when no http.Client is supplied.
const defaultRequestTimeout = 15 * time.Second

// Client talks to the REST API and change feed served by `tavla serve`.
type Client struct {
	baseURL string
	wsURL   string
	http    *http.Client
	dialer  *websocket.Dialer
	logger  *log.Logger
	backoff Backoff
}

var _ app.Backend = (*Client)(nil)

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets the http.Client used for REST calls.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithDialer sets the websocket dialer used by change subscriptions.
func WithDialer(d *websocket.Dialer) Option {
	return func(c *Client) {
		if d != nil {
			c.dialer = d
		}
	}
}

// WithLogger sets the logger used for subscription diagnostics.
func WithLogger(logger *log.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithReconnect sets the reconnect delay bounds for change subscriptions.
func WithReconnect(minDelay, maxDelay time.Duration) Option {
	return func(c *Client) {
		c.backoff.Min = minDelay
		c.backoff.Max = maxDelay
	}
}

// New constructs a client for the API rooted at baseURL, e.g. http://127.0.0.1:8080/api/v1.
func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimSpace(baseURL))
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	var wsScheme string
	switch u.Scheme {
	case "http":
		wsScheme = "ws"
	case "https":
		wsScheme = "wss"
	default:
		return nil, fmt.Errorf("base url %q: scheme must be http or https", baseURL)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("base url %q: host is required", baseURL)
	}
	u.Path = strings.TrimRight(u.Path, "/")
	u.RawQuery = ""
	u.Fragment = ""

	c := &Client{
		baseURL: u.String(),
		http:    &http.Client{Timeout: defaultRequestTimeout},
		dialer:  websocket.DefaultDialer,
		logger:  log.New(io.Discard),
		backoff: DefaultBackoff(),
	}
	u.Scheme = wsScheme
	c.wsURL = u.String()
	for _, opt := range opts {
		opt(c)
	}
	c.backoff = c.backoff.normalized()
	return c, nil
}

// CreateBoard creates one board.
func (c *Client) CreateBoard(ctx context.Context, b domain.Board) (domain.Board, error) {
	var out domain.Board
	err := c.do(ctx, http.MethodPost, "/boards", b, &out)
	return out, err
}

// UpdateBoard updates one board.
func (c *Client) UpdateBoard(ctx context.Context, b domain.Board) (domain.Board, error) {
	var out domain.Board
	err := c.do(ctx, http.MethodPut, "/boards/"+url.PathEscape(b.ID), b, &out)
	return out, err
}

// GetBoard returns one board.
func (c *Client) GetBoard(ctx context.Context, id string) (domain.Board, error) {
	var out domain.Board
	err := c.do(ctx, http.MethodGet, "/boards/"+url.PathEscape(id), nil, &out)
	return out, err
}

// ListBoards returns every board.
func (c *Client) ListBoards(ctx context.Context) ([]domain.Board, error) {
	var out struct {
		Boards []domain.Board `json:"boards"`
	}
	if err := c.do(ctx, http.MethodGet, "/boards", nil, &out); err != nil {
		return nil, err
	}
	return out.Boards, nil
}

// DeleteBoard deletes one board with its columns and cards.
func (c *Client) DeleteBoard(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/boards/"+url.PathEscape(id), nil, nil)
}

// LoadBoard returns the authoritative content of one board.
func (c *Client) LoadBoard(ctx context.Context, id string) (domain.BoardState, error) {
	var out domain.BoardState
	err := c.do(ctx, http.MethodGet, "/boards/"+url.PathEscape(id)+"/state", nil, &out)
	return out, err
}

// CreateColumn creates one column.
func (c *Client) CreateColumn(ctx context.Context, col domain.Column) (domain.Column, error) {
	var out domain.Column
	err := c.do(ctx, http.MethodPost, "/columns", col, &out)
	return out, err
}

// UpdateColumn updates one column.
func (c *Client) UpdateColumn(ctx context.Context, col domain.Column) (domain.Column, error) {
	var out domain.Column
	err := c.do(ctx, http.MethodPut, "/columns/"+url.PathEscape(col.ID), col, &out)
	return out, err
}

// GetColumn returns one column.
func (c *Client) GetColumn(ctx context.Context, id string) (domain.Column, error) {
	var out domain.Column
	err := c.do(ctx, http.MethodGet, "/columns/"+url.PathEscape(id), nil, &out)
	return out, err
}

// DeleteColumn deletes one column with its cards.
func (c *Client) DeleteColumn(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/columns/"+url.PathEscape(id), nil, nil)
}

// CreateCard creates one card.
func (c *Client) CreateCard(ctx context.Context, card domain.Card) (domain.Card, error) {
	var out domain.Card
	err := c.do(ctx, http.MethodPost, "/cards", card, &out)
	return out, err
}

// UpdateCard updates one card.
func (c *Client) UpdateCard(ctx context.Context, card domain.Card) (domain.Card, error) {
	var out domain.Card
	err := c.do(ctx, http.MethodPut, "/cards/"+url.PathEscape(card.ID), card, &out)
	return out, err
}

// GetCard returns one card.
func (c *Client) GetCard(ctx context.Context, id string) (domain.Card, error) {
	var out domain.Card
	err := c.do(ctx, http.MethodGet, "/cards/"+url.PathEscape(id), nil, &out)
	return out, err
}

// DeleteCard deletes one card.
func (c *Client) DeleteCard(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/cards/"+url.PathEscape(id), nil, nil)
}

// ListBoardChangeEvents returns the newest change events of one board.
func (c *Client) ListBoardChangeEvents(ctx context.Context, boardID string, limit int) ([]domain.ChangeEvent, error) {
	path := "/boards/" + url.PathEscape(boardID) + "/events"
	if limit > 0 {
		path += "?limit=" + strconv.Itoa(limit)
	}
	var out struct {
		Events []domain.ChangeEvent `json:"events"`
	}
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out.Events, nil
}

// PersistItemPosition stores one item position and returns the authoritative entry.
func (c *Client) PersistItemPosition(ctx context.Context, pos domain.ItemPosition) (domain.ItemChange, error) {
	var out domain.ItemChange
	err := c.do(ctx, http.MethodPut, "/positions", pos, &out)
	return out, err
}

// PersistBatchReorder stores every key assignment of one container atomically.
func (c *Client) PersistBatchReorder(ctx context.Context, kind domain.ItemKind, containerID string, keys []domain.KeyAssignment) ([]domain.ItemChange, error) {
	body := struct {
		Kind domain.ItemKind        `json:"kind"`
		Keys []domain.KeyAssignment `json:"keys"`
	}{Kind: kind, Keys: keys}
	var out struct {
		Changes []domain.ItemChange `json:"changes"`
	}
	if err := c.do(ctx, http.MethodPut, "/containers/"+url.PathEscape(containerID)+"/order", body, &out); err != nil {
		return nil, err
	}
	return out.Changes, nil
}

// do sends one JSON request and decodes a JSON response into out when non-nil.
func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode %s %s: %w", method, path, err)
		}
		body = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("build %s %s: %w", method, path, err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, errors.Join(ErrUnavailable, err))
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()
	if resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("%s %s: %w", method, path, decodeError(resp))
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}
