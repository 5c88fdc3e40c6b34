package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/hylla/tavla/internal/adapters/server/common"
	"github.com/hylla/tavla/internal/adapters/storage/sqlite"
	"github.com/hylla/tavla/internal/app"
	"github.com/hylla/tavla/internal/domain"
)

// newTestHandler builds a handler over a sqlite store seeded with board b1, columns A and B, and cards x, y in A.
func newTestHandler(t *testing.T) (*Handler, *sqlite.Repository) {
	t.Helper()
	repo, err := sqlite.Open(filepath.Join(t.TempDir(), "tavla.db"))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { _ = repo.Close() })
	svc := app.NewService(repo, nil, nil, app.ServiceConfig{})
	t.Cleanup(svc.Close)
	handler := NewHandler(repo, common.NewAppServiceAdapter(svc))

	now := time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)
	mustDo(t, handler, http.MethodPost, "/boards", domain.Board{ID: "b1", Title: "Launch", CreatedAt: now, UpdatedAt: now}, http.StatusCreated)
	for i, id := range []string{"A", "B"} {
		mustDo(t, handler, http.MethodPost, "/columns", domain.Column{ID: id, BoardID: "b1", Title: id, OrderKey: domain.OrderKey(i + 1), CreatedAt: now, UpdatedAt: now}, http.StatusCreated)
	}
	for i, id := range []string{"x", "y"} {
		mustDo(t, handler, http.MethodPost, "/cards", domain.Card{ID: id, BoardID: "b1", ColumnID: "A", Title: id, OrderKey: domain.OrderKey(i + 1), CreatedAt: now, UpdatedAt: now}, http.StatusCreated)
	}
	return handler, repo
}

// mustDo sends one JSON request and fails unless the status matches.
func mustDo(t *testing.T, handler http.Handler, method, path string, body any, want int) *httptest.ResponseRecorder {
	t.Helper()
	rec := do(t, handler, method, path, body)
	if rec.Code != want {
		t.Fatalf("%s %s status = %d, want %d body=%s", method, path, rec.Code, want, rec.Body.String())
	}
	return rec
}

func do(t *testing.T, handler http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body == nil {
		reader = bytes.NewReader(nil)
	} else {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("Marshal() error = %v", err)
		}
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

// decodeBody decodes one JSON response body into the requested type.
func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.NewDecoder(rec.Body).Decode(&out); err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	return out
}

func TestHandlerLoadBoardState(t *testing.T) {
	handler, _ := newTestHandler(t)

	rec := mustDo(t, handler, http.MethodGet, "/boards/b1/state", nil, http.StatusOK)
	state := decodeBody[domain.BoardState](t, rec)
	if state.Board.ID != "b1" || len(state.Columns) != 2 || len(state.Cards) != 2 {
		t.Fatalf("unexpected state %#v", state)
	}

	rec = mustDo(t, handler, http.MethodGet, "/boards/b1/view", nil, http.StatusOK)
	view := decodeBody[common.BoardView](t, rec)
	if len(view.Columns) != 2 || len(view.Columns[0].Cards) != 2 || view.Columns[0].Cards[1].ID != "y" {
		t.Fatalf("unexpected view %#v", view)
	}

	rec = mustDo(t, handler, http.MethodGet, "/boards", nil, http.StatusOK)
	listed := decodeBody[struct {
		Boards []domain.Board `json:"boards"`
	}](t, rec)
	if len(listed.Boards) != 1 {
		t.Fatalf("unexpected boards %#v", listed.Boards)
	}
}

func TestHandlerPersistPositionAndBatchOrder(t *testing.T) {
	handler, repo := newTestHandler(t)

	rec := mustDo(t, handler, http.MethodPut, "/positions", domain.ItemPosition{Kind: domain.ItemKindCard, ItemID: "x", ContainerID: "B", OrderKey: 1}, http.StatusOK)
	change := decodeBody[domain.ItemChange](t, rec)
	if change.ContainerID != "B" || change.Revision == 0 {
		t.Fatalf("unexpected change %#v", change)
	}

	rec = mustDo(t, handler, http.MethodPut, "/containers/A/order", BatchOrderRequest{
		Kind: domain.ItemKindCard,
		Keys: []domain.KeyAssignment{{ItemID: "y", OrderKey: 5}},
	}, http.StatusOK)
	batch := decodeBody[struct {
		Changes []domain.ItemChange `json:"changes"`
	}](t, rec)
	if len(batch.Changes) != 1 || batch.Changes[0].OrderKey != 5 || batch.Changes[0].Revision <= change.Revision {
		t.Fatalf("unexpected batch %#v", batch)
	}
	y, err := repo.GetCard(t.Context(), "y")
	if err != nil || y.OrderKey != 5 {
		t.Fatalf("expected stored key 5, got %#v err=%v", y, err)
	}

	rec = mustDo(t, handler, http.MethodGet, "/boards/b1/events?limit=2", nil, http.StatusOK)
	events := decodeBody[struct {
		Events []domain.ChangeEvent `json:"events"`
	}](t, rec)
	if len(events.Events) != 2 || events.Events[0].Operation != domain.ChangeOperationReorder {
		t.Fatalf("unexpected events %#v", events.Events)
	}
}

func TestHandlerIndexMoves(t *testing.T) {
	handler, repo := newTestHandler(t)

	rec := mustDo(t, handler, http.MethodPost, "/cards/y/move", common.MoveCardRequest{ColumnID: "A", Index: 0}, http.StatusOK)
	res := decodeBody[common.MoveResult](t, rec)
	if !res.Changed || res.ToIndex != 0 || res.OrderKey >= 1 {
		t.Fatalf("unexpected move %#v", res)
	}
	stored, _ := repo.GetCard(t.Context(), "y")
	if stored.OrderKey != res.OrderKey {
		t.Fatalf("expected stored key %v, got %v", res.OrderKey, stored.OrderKey)
	}

	rec = mustDo(t, handler, http.MethodPost, "/columns/B/move", common.MoveColumnRequest{Index: 0}, http.StatusOK)
	colRes := decodeBody[common.MoveResult](t, rec)
	if colRes.ToIndex != 0 || colRes.Kind != domain.ItemKindColumn {
		t.Fatalf("unexpected column move %#v", colRes)
	}
}

func TestHandlerErrorMapping(t *testing.T) {
	handler, _ := newTestHandler(t)
	cases := []struct {
		name   string
		method string
		path   string
		body   any
		status int
		code   string
	}{
		{name: "missing board", method: http.MethodGet, path: "/boards/nope", status: http.StatusNotFound, code: "not_found"},
		{name: "unknown route", method: http.MethodGet, path: "/widgets", status: http.StatusNotFound, code: "not_found"},
		{name: "wrong method", method: http.MethodPatch, path: "/boards", status: http.StatusMethodNotAllowed, code: "method_not_allowed"},
		{name: "bad kind", method: http.MethodPut, path: "/positions", body: domain.ItemPosition{Kind: "lane", ItemID: "x", ContainerID: "A", OrderKey: 1}, status: http.StatusBadRequest, code: "invalid_request"},
		{name: "empty title", method: http.MethodPut, path: "/cards/x", body: domain.Card{Title: " ", OrderKey: 1}, status: http.StatusBadRequest, code: "invalid_request"},
		{name: "bad limit", method: http.MethodGet, path: "/boards/b1/events?limit=zero", status: http.StatusBadRequest, code: "invalid_request"},
		{name: "unknown field", method: http.MethodPut, path: "/positions", body: map[string]any{"bogus": true}, status: http.StatusBadRequest, code: "invalid_request"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := do(t, handler, tc.method, tc.path, tc.body)
			if rec.Code != tc.status {
				t.Fatalf("status = %d, want %d body=%s", rec.Code, tc.status, rec.Body.String())
			}
			env := decodeBody[ErrorEnvelope](t, rec)
			if env.Error.Code != tc.code {
				t.Fatalf("code = %q, want %q", env.Error.Code, tc.code)
			}
		})
	}
}

func TestHandlerDeleteCascades(t *testing.T) {
	handler, _ := newTestHandler(t)
	mustDo(t, handler, http.MethodDelete, "/columns/A", nil, http.StatusNoContent)
	mustDo(t, handler, http.MethodGet, "/cards/x", nil, http.StatusNotFound)
	mustDo(t, handler, http.MethodDelete, "/boards/b1", nil, http.StatusNoContent)
	mustDo(t, handler, http.MethodGet, "/columns/B", nil, http.StatusNotFound)
}

func TestHandlerChangeFeedStreamsCommittedChanges(t *testing.T) {
	handler, repo := newTestHandler(t)
	server := httptest.NewServer(handler)
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http") + "/boards/b1/changes"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	defer conn.Close()

	// The subscription is registered after the upgrade completes; retry until a frame arrives.
	deadline := time.Now().Add(5 * time.Second)
	_ = conn.SetReadDeadline(deadline)
	received := make(chan ChangeMessage, 1)
	go func() {
		var msg ChangeMessage
		if err := conn.ReadJSON(&msg); err == nil {
			received <- msg
		}
		close(received)
	}()
	for key := domain.OrderKey(10); time.Now().Before(deadline); key++ {
		if _, err := repo.PersistItemPosition(t.Context(), domain.ItemPosition{Kind: domain.ItemKindCard, ItemID: "x", ContainerID: "A", OrderKey: key}); err != nil {
			t.Fatalf("PersistItemPosition() error = %v", err)
		}
		select {
		case msg, ok := <-received:
			if !ok {
				t.Fatal("feed closed without a frame")
			}
			if msg.BoardID != "b1" || len(msg.Changes) != 1 || msg.Changes[0].ItemID != "x" {
				t.Fatalf("unexpected frame %#v", msg)
			}
			return
		case <-time.After(50 * time.Millisecond):
		}
	}
	t.Fatal("no change frame received")
}

func TestHandlerChangeFeedUnknownBoard(t *testing.T) {
	handler, _ := newTestHandler(t)
	rec := do(t, handler, http.MethodGet, "/boards/missing/changes", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusNotFound)
	}
}
