// Package httpapi provides the REST and websocket adapter for the hosted backend.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/gorilla/mux"

	"github.com/hylla/tavla/internal/adapters/server/common"
	"github.com/hylla/tavla/internal/app"
	"github.com/hylla/tavla/internal/domain"
)

// maxRequestBodyBytes limits decoded JSON payload size for fail-closed request handling.
const maxRequestBodyBytes int64 = 1 << 20

// defaultEventLimit bounds change-event listings when no limit is given.
const defaultEventLimit = 50

// Handler serves the versioned API subrouter mounted under `/api/v1`.
type Handler struct {
	store  app.Backend
	boards common.BoardService
	logger *log.Logger
	router *mux.Router
}

// APIError represents one structured API failure response.
type APIError struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Hint    string         `json:"hint,omitempty"`
	Context map[string]any `json:"context,omitempty"`
}

// ErrorEnvelope wraps one structured API error.
type ErrorEnvelope struct {
	Error APIError `json:"error"`
}

// BatchOrderRequest is the body of PUT `/containers/{id}/order`.
type BatchOrderRequest struct {
	Kind domain.ItemKind        `json:"kind"`
	Keys []domain.KeyAssignment `json:"keys"`
}

// Option configures a Handler.
type Option func(*Handler)

// WithLogger sets the logger used for websocket feed diagnostics.
func WithLogger(logger *log.Logger) Option {
	return func(h *Handler) {
		if logger != nil {
			h.logger = logger
		}
	}
}

// NewHandler constructs one HTTP API adapter over the authoritative store and optional board service.
func NewHandler(store app.Backend, boards common.BoardService, opts ...Option) *Handler {
	h := &Handler{
		store:  store,
		boards: boards,
		logger: log.New(io.Discard),
	}
	for _, opt := range opts {
		opt(h)
	}
	h.router = h.routes()
	return h
}

// ServeHTTP routes one versioned API request to the matching handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path == "" {
		r.URL.Path = "/"
	}
	h.router.ServeHTTP(w, r)
}

// routes registers every endpoint on a fresh router.
func (h *Handler) routes() *mux.Router {
	r := mux.NewRouter()
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeJSONError(w, http.StatusNotFound, APIError{Code: "not_found", Message: "endpoint not found"})
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeJSONError(w, http.StatusMethodNotAllowed, APIError{Code: "method_not_allowed", Message: "method not allowed"})
	})

	r.HandleFunc("/boards", h.handleListBoards).Methods(http.MethodGet)
	r.HandleFunc("/boards", h.handleCreateBoard).Methods(http.MethodPost)
	r.HandleFunc("/boards/{id}", h.handleGetBoard).Methods(http.MethodGet)
	r.HandleFunc("/boards/{id}", h.handleUpdateBoard).Methods(http.MethodPut)
	r.HandleFunc("/boards/{id}", h.handleDeleteBoard).Methods(http.MethodDelete)
	r.HandleFunc("/boards/{id}/state", h.handleLoadBoard).Methods(http.MethodGet)
	r.HandleFunc("/boards/{id}/view", h.handleBoardView).Methods(http.MethodGet)
	r.HandleFunc("/boards/{id}/events", h.handleListEvents).Methods(http.MethodGet)
	r.HandleFunc("/boards/{id}/changes", h.handleChangeFeed).Methods(http.MethodGet)

	r.HandleFunc("/columns", h.handleCreateColumn).Methods(http.MethodPost)
	r.HandleFunc("/columns/{id}", h.handleGetColumn).Methods(http.MethodGet)
	r.HandleFunc("/columns/{id}", h.handleUpdateColumn).Methods(http.MethodPut)
	r.HandleFunc("/columns/{id}", h.handleDeleteColumn).Methods(http.MethodDelete)
	r.HandleFunc("/columns/{id}/move", h.handleMoveColumn).Methods(http.MethodPost)

	r.HandleFunc("/cards", h.handleCreateCard).Methods(http.MethodPost)
	r.HandleFunc("/cards/{id}", h.handleGetCard).Methods(http.MethodGet)
	r.HandleFunc("/cards/{id}", h.handleUpdateCard).Methods(http.MethodPut)
	r.HandleFunc("/cards/{id}", h.handleDeleteCard).Methods(http.MethodDelete)
	r.HandleFunc("/cards/{id}/move", h.handleMoveCard).Methods(http.MethodPost)

	r.HandleFunc("/positions", h.handlePersistPosition).Methods(http.MethodPut)
	r.HandleFunc("/containers/{id}/order", h.handleBatchOrder).Methods(http.MethodPut)
	return r
}

// handleListBoards serves GET `/boards`.
func (h *Handler) handleListBoards(w http.ResponseWriter, r *http.Request) {
	boards, err := h.store.ListBoards(r.Context())
	if err != nil {
		writeErrorFrom(w, common.MapAppError("list boards", err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"boards": boards})
}

// handleCreateBoard serves POST `/boards`.
func (h *Handler) handleCreateBoard(w http.ResponseWriter, r *http.Request) {
	var in domain.Board
	if err := decodeJSONBody(r.Context(), w, r, &in); err != nil {
		writeErrorFrom(w, err)
		return
	}
	b, err := domain.NewBoard(in.ID, in.Title, in.Owner, in.Color, in.CreatedAt)
	if err != nil {
		writeErrorFrom(w, common.MapAppError("create board", err))
		return
	}
	b.UpdatedAt = in.UpdatedAt.UTC()
	out, err := h.store.CreateBoard(r.Context(), b)
	if err != nil {
		writeErrorFrom(w, common.MapAppError("create board", err))
		return
	}
	writeJSON(w, http.StatusCreated, out)
}

// handleGetBoard serves GET `/boards/{id}`.
func (h *Handler) handleGetBoard(w http.ResponseWriter, r *http.Request) {
	b, err := h.store.GetBoard(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeErrorFrom(w, common.MapAppError("get board", err))
		return
	}
	writeJSON(w, http.StatusOK, b)
}

// handleUpdateBoard serves PUT `/boards/{id}`.
func (h *Handler) handleUpdateBoard(w http.ResponseWriter, r *http.Request) {
	var in domain.Board
	if err := decodeJSONBody(r.Context(), w, r, &in); err != nil {
		writeErrorFrom(w, err)
		return
	}
	in.ID = mux.Vars(r)["id"]
	if strings.TrimSpace(in.Title) == "" {
		writeErrorFrom(w, common.MapAppError("update board", domain.ErrInvalidTitle))
		return
	}
	out, err := h.store.UpdateBoard(r.Context(), in)
	if err != nil {
		writeErrorFrom(w, common.MapAppError("update board", err))
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// handleDeleteBoard serves DELETE `/boards/{id}`.
func (h *Handler) handleDeleteBoard(w http.ResponseWriter, r *http.Request) {
	if err := h.store.DeleteBoard(r.Context(), mux.Vars(r)["id"]); err != nil {
		writeErrorFrom(w, common.MapAppError("delete board", err))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleLoadBoard serves GET `/boards/{id}/state`.
func (h *Handler) handleLoadBoard(w http.ResponseWriter, r *http.Request) {
	state, err := h.store.LoadBoard(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeErrorFrom(w, common.MapAppError("load board", err))
		return
	}
	writeJSON(w, http.StatusOK, state)
}

// handleBoardView serves GET `/boards/{id}/view`.
func (h *Handler) handleBoardView(w http.ResponseWriter, r *http.Request) {
	if h.boards == nil {
		writeErrorFrom(w, fmt.Errorf("board view: %w", common.ErrUnavailable))
		return
	}
	view, err := h.boards.GetBoard(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// handleListEvents serves GET `/boards/{id}/events`.
func (h *Handler) handleListEvents(w http.ResponseWriter, r *http.Request) {
	limit := defaultEventLimit
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			writeJSONError(w, http.StatusBadRequest, APIError{
				Code:    "invalid_request",
				Message: "limit must be a positive integer",
			})
			return
		}
		limit = parsed
	}
	events, err := h.store.ListBoardChangeEvents(r.Context(), mux.Vars(r)["id"], limit)
	if err != nil {
		writeErrorFrom(w, common.MapAppError("list change events", err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"events": events})
}

// handleCreateColumn serves POST `/columns`.
func (h *Handler) handleCreateColumn(w http.ResponseWriter, r *http.Request) {
	var in domain.Column
	if err := decodeJSONBody(r.Context(), w, r, &in); err != nil {
		writeErrorFrom(w, err)
		return
	}
	col, err := domain.NewColumn(in.ID, in.BoardID, in.Title, in.OrderKey, in.CreatedAt)
	if err != nil {
		writeErrorFrom(w, common.MapAppError("create column", err))
		return
	}
	col.UpdatedAt = in.UpdatedAt.UTC()
	out, err := h.store.CreateColumn(r.Context(), col)
	if err != nil {
		writeErrorFrom(w, common.MapAppError("create column", err))
		return
	}
	writeJSON(w, http.StatusCreated, out)
}

// handleGetColumn serves GET `/columns/{id}`.
func (h *Handler) handleGetColumn(w http.ResponseWriter, r *http.Request) {
	col, err := h.store.GetColumn(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeErrorFrom(w, common.MapAppError("get column", err))
		return
	}
	writeJSON(w, http.StatusOK, col)
}

// handleUpdateColumn serves PUT `/columns/{id}`.
func (h *Handler) handleUpdateColumn(w http.ResponseWriter, r *http.Request) {
	var in domain.Column
	if err := decodeJSONBody(r.Context(), w, r, &in); err != nil {
		writeErrorFrom(w, err)
		return
	}
	in.ID = mux.Vars(r)["id"]
	if strings.TrimSpace(in.Title) == "" {
		writeErrorFrom(w, common.MapAppError("update column", domain.ErrInvalidTitle))
		return
	}
	if !in.OrderKey.Valid() {
		writeErrorFrom(w, common.MapAppError("update column", domain.ErrInvalidOrderKey))
		return
	}
	out, err := h.store.UpdateColumn(r.Context(), in)
	if err != nil {
		writeErrorFrom(w, common.MapAppError("update column", err))
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// handleDeleteColumn serves DELETE `/columns/{id}`.
func (h *Handler) handleDeleteColumn(w http.ResponseWriter, r *http.Request) {
	if err := h.store.DeleteColumn(r.Context(), mux.Vars(r)["id"]); err != nil {
		writeErrorFrom(w, common.MapAppError("delete column", err))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleMoveColumn serves POST `/columns/{id}/move`.
func (h *Handler) handleMoveColumn(w http.ResponseWriter, r *http.Request) {
	if h.boards == nil {
		writeErrorFrom(w, fmt.Errorf("move column: %w", common.ErrUnavailable))
		return
	}
	var in common.MoveColumnRequest
	if err := decodeJSONBody(r.Context(), w, r, &in); err != nil {
		writeErrorFrom(w, err)
		return
	}
	in.ColumnID = mux.Vars(r)["id"]
	res, err := h.boards.MoveColumn(r.Context(), in)
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// handleCreateCard serves POST `/cards`.
func (h *Handler) handleCreateCard(w http.ResponseWriter, r *http.Request) {
	var in domain.Card
	if err := decodeJSONBody(r.Context(), w, r, &in); err != nil {
		writeErrorFrom(w, err)
		return
	}
	card, err := domain.NewCard(domain.CardInput{
		ID:          in.ID,
		BoardID:     in.BoardID,
		ColumnID:    in.ColumnID,
		OrderKey:    in.OrderKey,
		Title:       in.Title,
		Description: in.Description,
	}, in.CreatedAt)
	if err != nil {
		writeErrorFrom(w, common.MapAppError("create card", err))
		return
	}
	card.UpdatedAt = in.UpdatedAt.UTC()
	out, err := h.store.CreateCard(r.Context(), card)
	if err != nil {
		writeErrorFrom(w, common.MapAppError("create card", err))
		return
	}
	writeJSON(w, http.StatusCreated, out)
}

// handleGetCard serves GET `/cards/{id}`.
func (h *Handler) handleGetCard(w http.ResponseWriter, r *http.Request) {
	card, err := h.store.GetCard(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeErrorFrom(w, common.MapAppError("get card", err))
		return
	}
	writeJSON(w, http.StatusOK, card)
}

// handleUpdateCard serves PUT `/cards/{id}`.
func (h *Handler) handleUpdateCard(w http.ResponseWriter, r *http.Request) {
	var in domain.Card
	if err := decodeJSONBody(r.Context(), w, r, &in); err != nil {
		writeErrorFrom(w, err)
		return
	}
	in.ID = mux.Vars(r)["id"]
	if strings.TrimSpace(in.Title) == "" {
		writeErrorFrom(w, common.MapAppError("update card", domain.ErrInvalidTitle))
		return
	}
	if !in.OrderKey.Valid() {
		writeErrorFrom(w, common.MapAppError("update card", domain.ErrInvalidOrderKey))
		return
	}
	out, err := h.store.UpdateCard(r.Context(), in)
	if err != nil {
		writeErrorFrom(w, common.MapAppError("update card", err))
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// handleDeleteCard serves DELETE `/cards/{id}`.
func (h *Handler) handleDeleteCard(w http.ResponseWriter, r *http.Request) {
	if err := h.store.DeleteCard(r.Context(), mux.Vars(r)["id"]); err != nil {
		writeErrorFrom(w, common.MapAppError("delete card", err))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleMoveCard serves POST `/cards/{id}/move`.
func (h *Handler) handleMoveCard(w http.ResponseWriter, r *http.Request) {
	if h.boards == nil {
		writeErrorFrom(w, fmt.Errorf("move card: %w", common.ErrUnavailable))
		return
	}
	var in common.MoveCardRequest
	if err := decodeJSONBody(r.Context(), w, r, &in); err != nil {
		writeErrorFrom(w, err)
		return
	}
	in.CardID = mux.Vars(r)["id"]
	res, err := h.boards.MoveCard(r.Context(), in)
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// handlePersistPosition serves PUT `/positions`.
func (h *Handler) handlePersistPosition(w http.ResponseWriter, r *http.Request) {
	var in domain.ItemPosition
	if err := decodeJSONBody(r.Context(), w, r, &in); err != nil {
		writeErrorFrom(w, err)
		return
	}
	change, err := h.store.PersistItemPosition(r.Context(), in)
	if err != nil {
		writeErrorFrom(w, common.MapAppError("persist position", err))
		return
	}
	writeJSON(w, http.StatusOK, change)
}

// handleBatchOrder serves PUT `/containers/{id}/order`.
func (h *Handler) handleBatchOrder(w http.ResponseWriter, r *http.Request) {
	var in BatchOrderRequest
	if err := decodeJSONBody(r.Context(), w, r, &in); err != nil {
		writeErrorFrom(w, err)
		return
	}
	changes, err := h.store.PersistBatchReorder(r.Context(), in.Kind, mux.Vars(r)["id"], in.Keys)
	if err != nil {
		writeErrorFrom(w, common.MapAppError("persist batch reorder", err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"changes": changes})
}

// writeErrorFrom maps adapter errors into structured HTTP responses.
func writeErrorFrom(w http.ResponseWriter, err error) {
	switch {
	case err == nil:
		writeJSONError(w, http.StatusInternalServerError, APIError{
			Code:    "internal_error",
			Message: "unknown error",
		})
	case errors.Is(err, common.ErrNotFound):
		writeJSONError(w, http.StatusNotFound, APIError{
			Code:    "not_found",
			Message: err.Error(),
		})
	case errors.Is(err, common.ErrConflict):
		writeJSONError(w, http.StatusConflict, APIError{
			Code:    "conflict",
			Message: err.Error(),
			Hint:    "Reload the board and retry the move.",
		})
	case errors.Is(err, common.ErrInvalidRequest):
		writeJSONError(w, http.StatusBadRequest, APIError{
			Code:    "invalid_request",
			Message: err.Error(),
		})
	case errors.Is(err, common.ErrUnavailable):
		writeJSONError(w, http.StatusNotImplemented, APIError{
			Code:    "not_implemented",
			Message: err.Error(),
		})
	default:
		writeJSONError(w, http.StatusInternalServerError, APIError{
			Code:    "internal_error",
			Message: err.Error(),
		})
	}
}

// writeJSONError writes one structured error envelope.
func writeJSONError(w http.ResponseWriter, statusCode int, apiErr APIError) {
	writeJSON(w, statusCode, ErrorEnvelope{Error: apiErr})
}

// writeJSON writes one JSON response envelope.
func writeJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		http.Error(w, fmt.Sprintf(`{"error":{"code":"encode_error","message":"%s"}}`, err.Error()), http.StatusInternalServerError)
	}
}

// decodeJSONBody decodes one required JSON request body with strict shape checks.
func decodeJSONBody(ctx context.Context, w http.ResponseWriter, r *http.Request, out any) error {
	reader := http.MaxBytesReader(w, r.Body, maxRequestBodyBytes)
	defer reader.Close()

	decoder := json.NewDecoder(reader)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(out); err != nil {
		return fmt.Errorf("decode request body: %w", errors.Join(common.ErrInvalidRequest, err))
	}
	// Reject trailing payloads so malformed JSON bodies fail closed.
	if err := decoder.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return fmt.Errorf("decode request body: trailing content: %w", common.ErrInvalidRequest)
	}
	select {
	case <-ctx.Done():
		return fmt.Errorf("request canceled: %w", ctx.Err())
	default:
		return nil
	}
}
