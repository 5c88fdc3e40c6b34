// Package mcpapi provides a stateless MCP streamable-HTTP adapter.
package mcpapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/hylla/tavla/internal/adapters/server/common"
)

// Config captures MCP transport configuration.
type Config struct {
	ServerName    string
	ServerVersion string
	EndpointPath  string
}

// Handler wraps one stateless MCP streamable HTTP handler.
type Handler struct {
	httpHandler http.Handler
}

// NewHandler builds one stateless MCP adapter exposing board tools.
func NewHandler(cfg Config, boards common.BoardService) (*Handler, error) {
	if boards == nil {
		return nil, fmt.Errorf("board service is required")
	}
	cfg = normalizeConfig(cfg)

	mcpSrv := mcpserver.NewMCPServer(
		cfg.ServerName,
		cfg.ServerVersion,
		mcpserver.WithToolCapabilities(false),
	)
	registerBoardTools(mcpSrv, boards)
	registerMoveTools(mcpSrv, boards)

	streamable := mcpserver.NewStreamableHTTPServer(
		mcpSrv,
		mcpserver.WithEndpointPath(cfg.EndpointPath),
		mcpserver.WithStateLess(true),
	)
	return &Handler{httpHandler: streamable}, nil
}

// ServeHTTP handles one MCP streamable HTTP request.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.httpHandler == nil {
		http.Error(w, "mcp handler unavailable", http.StatusServiceUnavailable)
		return
	}
	h.httpHandler.ServeHTTP(w, r)
}

// normalizeConfig applies deterministic defaults to MCP adapter config.
func normalizeConfig(cfg Config) Config {
	cfg.ServerName = strings.TrimSpace(cfg.ServerName)
	if cfg.ServerName == "" {
		cfg.ServerName = "tavla"
	}
	cfg.ServerVersion = strings.TrimSpace(cfg.ServerVersion)
	if cfg.ServerVersion == "" {
		cfg.ServerVersion = "dev"
	}
	cfg.EndpointPath = strings.TrimSpace(cfg.EndpointPath)
	if cfg.EndpointPath == "" {
		cfg.EndpointPath = "/mcp"
	}
	if !strings.HasPrefix(cfg.EndpointPath, "/") {
		cfg.EndpointPath = "/" + cfg.EndpointPath
	}
	cfg.EndpointPath = "/" + strings.Trim(cfg.EndpointPath, "/")
	return cfg
}

// registerBoardTools registers read-only board tools.
func registerBoardTools(srv *mcpserver.MCPServer, boards common.BoardService) {
	srv.AddTool(
		mcp.NewTool(
			"tavla.list_boards",
			mcp.WithDescription("List all boards."),
		),
		func(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			list, err := boards.ListBoards(ctx)
			if err != nil {
				return toolResultFromError(err), nil
			}
			result, err := mcp.NewToolResultJSON(map[string]any{
				"boards": list,
			})
			if err != nil {
				return nil, fmt.Errorf("encode list_boards result: %w", err)
			}
			return result, nil
		},
	)

	srv.AddTool(
		mcp.NewTool(
			"tavla.get_board",
			mcp.WithDescription("Return one board with its columns and cards in display order."),
			mcp.WithString("board_id", mcp.Required(), mcp.Description("Board identifier")),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			boardID, err := req.RequireString("board_id")
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			view, err := boards.GetBoard(ctx, boardID)
			if err != nil {
				return toolResultFromError(err), nil
			}
			result, err := mcp.NewToolResultJSON(view)
			if err != nil {
				return nil, fmt.Errorf("encode get_board result: %w", err)
			}
			return result, nil
		},
	)

	srv.AddTool(
		mcp.NewTool(
			"tavla.list_change_events",
			mcp.WithDescription("List recent change events for a board, newest first."),
			mcp.WithString("board_id", mcp.Required(), mcp.Description("Board identifier")),
			mcp.WithNumber("limit", mcp.Description("Maximum events to return (default 50)")),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			boardID, err := req.RequireString("board_id")
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			events, err := boards.ListChangeEvents(ctx, boardID, req.GetInt("limit", 0))
			if err != nil {
				return toolResultFromError(err), nil
			}
			result, err := mcp.NewToolResultJSON(map[string]any{
				"events": events,
			})
			if err != nil {
				return nil, fmt.Errorf("encode list_change_events result: %w", err)
			}
			return result, nil
		},
	)
}

// registerMoveTools registers index-based move tools that run through the reconciler.
func registerMoveTools(srv *mcpserver.MCPServer, boards common.BoardService) {
	srv.AddTool(
		mcp.NewTool(
			"tavla.move_card",
			mcp.WithDescription("Move a card to an index within a column. Index 0 is the top."),
			mcp.WithString("card_id", mcp.Required(), mcp.Description("Card identifier")),
			mcp.WithString("column_id", mcp.Required(), mcp.Description("Target column identifier")),
			mcp.WithNumber("index", mcp.Required(), mcp.Description("Target index among the column's other cards")),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			cardID, err := req.RequireString("card_id")
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			columnID, err := req.RequireString("column_id")
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			index, err := req.RequireInt("index")
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			res, err := boards.MoveCard(ctx, common.MoveCardRequest{
				CardID:   cardID,
				ColumnID: columnID,
				Index:    index,
			})
			if err != nil {
				return toolResultFromError(err), nil
			}
			result, err := mcp.NewToolResultJSON(res)
			if err != nil {
				return nil, fmt.Errorf("encode move_card result: %w", err)
			}
			return result, nil
		},
	)

	srv.AddTool(
		mcp.NewTool(
			"tavla.move_column",
			mcp.WithDescription("Move a column to an index within its board. Index 0 is the leftmost."),
			mcp.WithString("column_id", mcp.Required(), mcp.Description("Column identifier")),
			mcp.WithNumber("index", mcp.Required(), mcp.Description("Target index among the board's other columns")),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			columnID, err := req.RequireString("column_id")
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			index, err := req.RequireInt("index")
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			res, err := boards.MoveColumn(ctx, common.MoveColumnRequest{
				ColumnID: columnID,
				Index:    index,
			})
			if err != nil {
				return toolResultFromError(err), nil
			}
			result, err := mcp.NewToolResultJSON(res)
			if err != nil {
				return nil, fmt.Errorf("encode move_column result: %w", err)
			}
			return result, nil
		},
	)
}

// toolResultFromError maps service errors into MCP-visible tool errors.
func toolResultFromError(err error) *mcp.CallToolResult {
	switch {
	case err == nil:
		return mcp.NewToolResultError("unknown error")
	case errors.Is(err, common.ErrInvalidRequest):
		return mcp.NewToolResultError("invalid_request: " + err.Error())
	case errors.Is(err, common.ErrNotFound):
		return mcp.NewToolResultError("not_found: " + err.Error())
	case errors.Is(err, common.ErrConflict):
		return mcp.NewToolResultError("conflict: " + err.Error())
	case errors.Is(err, common.ErrUnavailable):
		return mcp.NewToolResultError("not_implemented: " + err.Error())
	default:
		return mcp.NewToolResultError("internal_error: " + err.Error())
	}
}
