package mcpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"slices"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/hylla/tavla/internal/adapters/server/common"
	"github.com/hylla/tavla/internal/domain"
)

// stubBoardService provides deterministic board responses for MCP tool tests.
type stubBoardService struct {
	boards         []domain.Board
	view           common.BoardView
	moveResult     common.MoveResult
	events         []domain.ChangeEvent
	err            error
	lastBoardID    string
	lastMoveCard   common.MoveCardRequest
	lastMoveColumn common.MoveColumnRequest
	lastLimit      int
}

// ListBoards returns deterministic board rows.
func (s *stubBoardService) ListBoards(context.Context) ([]domain.Board, error) {
	if s.err != nil {
		return nil, s.err
	}
	return append([]domain.Board(nil), s.boards...), nil
}

// GetBoard records the board id and returns the fixture view.
func (s *stubBoardService) GetBoard(_ context.Context, boardID string) (common.BoardView, error) {
	s.lastBoardID = boardID
	if s.err != nil {
		return common.BoardView{}, s.err
	}
	return s.view, nil
}

// MoveCard records the request and returns the fixture result.
func (s *stubBoardService) MoveCard(_ context.Context, req common.MoveCardRequest) (common.MoveResult, error) {
	s.lastMoveCard = req
	if s.err != nil {
		return common.MoveResult{}, s.err
	}
	return s.moveResult, nil
}

// MoveColumn records the request and returns the fixture result.
func (s *stubBoardService) MoveColumn(_ context.Context, req common.MoveColumnRequest) (common.MoveResult, error) {
	s.lastMoveColumn = req
	if s.err != nil {
		return common.MoveResult{}, s.err
	}
	return s.moveResult, nil
}

// ListChangeEvents records the limit and returns fixture events.
func (s *stubBoardService) ListChangeEvents(_ context.Context, boardID string, limit int) ([]domain.ChangeEvent, error) {
	s.lastBoardID = boardID
	s.lastLimit = limit
	if s.err != nil {
		return nil, s.err
	}
	return s.events, nil
}

// jsonRPCResponse models minimal JSON-RPC response fields used in MCP adapter tests.
type jsonRPCResponse struct {
	ID     float64        `json:"id"`
	Result map[string]any `json:"result"`
}

// callToolRequest constructs one deterministic tools/call JSON-RPC request payload.
func callToolRequest(id int, toolName string, arguments map[string]any) map[string]any {
	return map[string]any{
		"jsonrpc": "2.0",
		"id":      id,
		"method":  "tools/call",
		"params": map[string]any{
			"name":      toolName,
			"arguments": arguments,
		},
	}
}

// toolResultText decodes the first text entry from one tool-call result payload.
func toolResultText(t *testing.T, result map[string]any) string {
	t.Helper()

	contentRaw, ok := result["content"].([]any)
	if !ok || len(contentRaw) == 0 {
		t.Fatalf("content missing in tool result: %#v", result)
	}
	first, ok := contentRaw[0].(map[string]any)
	if !ok {
		t.Fatalf("first content entry has unexpected type: %#v", contentRaw[0])
	}
	text, ok := first["text"].(string)
	if !ok {
		t.Fatalf("content text missing in tool result: %#v", first)
	}
	return text
}

// postJSONRPC sends one JSON-RPC payload and decodes the response body.
func postJSONRPC(t *testing.T, client *http.Client, url string, payload any) (*http.Response, jsonRPCResponse) {
	t.Helper()
	body, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewBuffer(body))
	if err != nil {
		t.Fatalf("NewRequest() error = %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("Do() error = %v", err)
	}
	var decoded jsonRPCResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if err := resp.Body.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	return resp, decoded
}

// initializeRequest builds a deterministic MCP initialize request payload.
func initializeRequest() map[string]any {
	return map[string]any{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  "initialize",
		"params": map[string]any{
			"protocolVersion": mcp.LATEST_PROTOCOL_VERSION,
			"clientInfo": map[string]any{
				"name":    "tavla-test",
				"version": "1.0.0",
			},
		},
	}
}

// startServer serves one MCP handler and runs the initialize handshake.
func startServer(t *testing.T, boards common.BoardService) *httptest.Server {
	t.Helper()
	handler, err := NewHandler(Config{}, boards)
	if err != nil {
		t.Fatalf("NewHandler() error = %v", err)
	}
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	_, _ = postJSONRPC(t, server.Client(), server.URL, initializeRequest())
	return server
}

// TestHandlerUsesStatelessTransport verifies MCP transport does not issue session ids.
func TestHandlerUsesStatelessTransport(t *testing.T) {
	handler, err := NewHandler(Config{}, &stubBoardService{})
	if err != nil {
		t.Fatalf("NewHandler() error = %v", err)
	}
	server := httptest.NewServer(handler)
	defer server.Close()

	resp, decoded := postJSONRPC(t, server.Client(), server.URL, initializeRequest())
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}
	if decoded.ID != 1 {
		t.Fatalf("id = %v, want 1", decoded.ID)
	}
	if got := resp.Header.Get("Mcp-Session-Id"); got != "" {
		t.Fatalf("Mcp-Session-Id header = %q, want empty (stateless transport)", got)
	}
}

// TestHandlerRequiresBoardService verifies construction fails without a backing service.
func TestHandlerRequiresBoardService(t *testing.T) {
	if _, err := NewHandler(Config{}, nil); err == nil {
		t.Fatal("NewHandler() error = nil, want error")
	}
}

// TestHandlerRegistersBoardTools verifies tool discovery lists every board tool.
func TestHandlerRegistersBoardTools(t *testing.T) {
	server := startServer(t, &stubBoardService{})
	_, toolsResp := postJSONRPC(t, server.Client(), server.URL, map[string]any{
		"jsonrpc": "2.0",
		"id":      2,
		"method":  "tools/list",
	})

	toolsRaw, ok := toolsResp.Result["tools"].([]any)
	if !ok {
		t.Fatalf("tools list payload missing tools: %#v", toolsResp.Result)
	}
	toolNames := make([]string, 0, len(toolsRaw))
	for _, toolRaw := range toolsRaw {
		toolMap, ok := toolRaw.(map[string]any)
		if !ok {
			continue
		}
		name, _ := toolMap["name"].(string)
		toolNames = append(toolNames, name)
	}
	for _, required := range []string{
		"tavla.list_boards",
		"tavla.get_board",
		"tavla.list_change_events",
		"tavla.move_card",
		"tavla.move_column",
	} {
		if !slices.Contains(toolNames, required) {
			t.Fatalf("tool list missing %q: %#v", required, toolNames)
		}
	}
}

// TestHandlerMoveCardTool verifies move arguments reach the service and the result is returned.
func TestHandlerMoveCardTool(t *testing.T) {
	boards := &stubBoardService{
		moveResult: common.MoveResult{
			Kind:          domain.ItemKindCard,
			ItemID:        "x",
			ToContainerID: "B",
			ToIndex:       1,
			OrderKey:      2.5,
			Revision:      42,
			Changed:       true,
		},
	}
	server := startServer(t, boards)

	_, callResp := postJSONRPC(t, server.Client(), server.URL, callToolRequest(3, "tavla.move_card", map[string]any{
		"card_id":   "x",
		"column_id": "B",
		"index":     1,
	}))
	if boards.lastMoveCard != (common.MoveCardRequest{CardID: "x", ColumnID: "B", Index: 1}) {
		t.Fatalf("unexpected move request %#v", boards.lastMoveCard)
	}
	structured, ok := callResp.Result["structuredContent"].(map[string]any)
	if !ok {
		t.Fatalf("structuredContent missing in response: %#v", callResp.Result)
	}
	if structured["revision"] != float64(42) || structured["to_container_id"] != "B" {
		t.Fatalf("unexpected structured result %#v", structured)
	}
}

// TestHandlerMoveColumnTool verifies column moves reach the service.
func TestHandlerMoveColumnTool(t *testing.T) {
	boards := &stubBoardService{moveResult: common.MoveResult{Kind: domain.ItemKindColumn, ItemID: "B"}}
	server := startServer(t, boards)

	_, _ = postJSONRPC(t, server.Client(), server.URL, callToolRequest(3, "tavla.move_column", map[string]any{
		"column_id": "B",
		"index":     0,
	}))
	if boards.lastMoveColumn != (common.MoveColumnRequest{ColumnID: "B", Index: 0}) {
		t.Fatalf("unexpected move request %#v", boards.lastMoveColumn)
	}
}

// TestHandlerGetBoardAndEventsTools verifies read tools pass identifiers and limits through.
func TestHandlerGetBoardAndEventsTools(t *testing.T) {
	boards := &stubBoardService{
		view:   common.BoardView{Board: domain.Board{ID: "b1", Title: "Launch"}},
		events: []domain.ChangeEvent{{ID: 7, BoardID: "b1", Operation: domain.ChangeOperationMove}},
	}
	server := startServer(t, boards)

	_, viewResp := postJSONRPC(t, server.Client(), server.URL, callToolRequest(3, "tavla.get_board", map[string]any{"board_id": "b1"}))
	if boards.lastBoardID != "b1" {
		t.Fatalf("board_id = %q, want b1", boards.lastBoardID)
	}
	if text := toolResultText(t, viewResp.Result); !strings.Contains(text, "Launch") {
		t.Fatalf("expected board title in result text, got %q", text)
	}

	_, eventsResp := postJSONRPC(t, server.Client(), server.URL, callToolRequest(4, "tavla.list_change_events", map[string]any{"board_id": "b1", "limit": 5}))
	if boards.lastLimit != 5 {
		t.Fatalf("limit = %d, want 5", boards.lastLimit)
	}
	if text := toolResultText(t, eventsResp.Result); !strings.Contains(text, `"operation":"move"`) {
		t.Fatalf("expected move event in result text, got %q", text)
	}
}

// TestHandlerToolErrors verifies missing arguments and mapped service errors surface as tool errors.
func TestHandlerToolErrors(t *testing.T) {
	boards := &stubBoardService{err: fmt.Errorf("move card: %w", errors.Join(common.ErrNotFound, errors.New("card missing")))}
	server := startServer(t, boards)

	_, missingArgResp := postJSONRPC(t, server.Client(), server.URL, callToolRequest(3, "tavla.move_card", map[string]any{"card_id": "x"}))
	if isError, _ := missingArgResp.Result["isError"].(bool); !isError {
		t.Fatalf("isError = %v, want true", missingArgResp.Result["isError"])
	}

	_, mappedErrResp := postJSONRPC(t, server.Client(), server.URL, callToolRequest(4, "tavla.move_card", map[string]any{
		"card_id":   "x",
		"column_id": "B",
		"index":     0,
	}))
	if isError, _ := mappedErrResp.Result["isError"].(bool); !isError {
		t.Fatalf("isError = %v, want true", mappedErrResp.Result["isError"])
	}
	if text := toolResultText(t, mappedErrResp.Result); !strings.HasPrefix(text, "not_found:") {
		t.Fatalf("expected not_found prefix, got %q", text)
	}
}

// TestToolResultFromError verifies error-class prefixes.
func TestToolResultFromError(t *testing.T) {
	cases := []struct {
		err    error
		prefix string
	}{
		{err: common.ErrInvalidRequest, prefix: "invalid_request:"},
		{err: common.ErrConflict, prefix: "conflict:"},
		{err: common.ErrUnavailable, prefix: "not_implemented:"},
		{err: errors.New("boom"), prefix: "internal_error:"},
	}
	for _, tc := range cases {
		result := toolResultFromError(tc.err)
		if !result.IsError {
			t.Fatalf("IsError = false, want true")
		}
		text, ok := result.Content[0].(mcp.TextContent)
		if !ok || !strings.HasPrefix(text.Text, tc.prefix) {
			t.Fatalf("unexpected content %#v, want prefix %q", result.Content, tc.prefix)
		}
	}
}
