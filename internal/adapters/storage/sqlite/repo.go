package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/hylla/tavla/internal/app"
	"github.com/hylla/tavla/internal/domain"
)

// driverName defines a package constant value.
const driverName = "sqlite"

// dsnPragmas apply to every pooled connection.
const dsnPragmas = "_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"

// boardItemKind tags ledger entries that describe the board itself.
const boardItemKind domain.ItemKind = "board"

var _ app.Backend = (*Repository)(nil)

// Repository represents repository data used by this package.
type Repository struct {
	db    *sql.DB
	hub   *hub
	clock func() time.Time
}

// Open opens the requested operation.
func Open(path string) (*Repository, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("sqlite path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create sqlite dir: %w", err)
	}
	db, err := sql.Open(driverName, "file:"+path+"?"+dsnPragmas)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	return newRepository(db)
}

// OpenInMemory opens a private in-memory database.
func OpenInMemory() (*Repository, error) {
	dsn := "file:" + uuid.NewString() + "?mode=memory&cache=shared&" + dsnPragmas
	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite memory: %w", err)
	}
	// The named memory database lives as long as one connection stays open.
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)
	return newRepository(db)
}

func newRepository(db *sql.DB) (*Repository, error) {
	repo := &Repository{db: db, hub: newHub(), clock: time.Now}
	if err := repo.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return repo, nil
}

// Close closes the requested operation.
func (r *Repository) Close() error {
	r.hub.closeAll()
	return r.db.Close()
}

// migrate handles migrate.
func (r *Repository) migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS boards (
			id TEXT PRIMARY KEY,
			title TEXT NOT NULL,
			owner TEXT NOT NULL DEFAULT '',
			color TEXT NOT NULL DEFAULT '',
			revision INTEGER NOT NULL DEFAULT 0,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS board_columns (
			id TEXT PRIMARY KEY,
			board_id TEXT NOT NULL,
			title TEXT NOT NULL,
			order_key REAL NOT NULL,
			revision INTEGER NOT NULL DEFAULT 0,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL,
			FOREIGN KEY(board_id) REFERENCES boards(id) ON DELETE CASCADE
		);`,
		`CREATE TABLE IF NOT EXISTS cards (
			id TEXT PRIMARY KEY,
			board_id TEXT NOT NULL,
			column_id TEXT NOT NULL,
			order_key REAL NOT NULL,
			title TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			revision INTEGER NOT NULL DEFAULT 0,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL,
			FOREIGN KEY(board_id) REFERENCES boards(id) ON DELETE CASCADE,
			FOREIGN KEY(column_id) REFERENCES board_columns(id) ON DELETE CASCADE
		);`,
		// change_events.id doubles as the revision stamped on the written row.
		`CREATE TABLE IF NOT EXISTS change_events (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			board_id TEXT NOT NULL,
			item_kind TEXT NOT NULL,
			item_id TEXT NOT NULL,
			operation TEXT NOT NULL,
			metadata_json TEXT NOT NULL DEFAULT '{}',
			created_at TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_board_columns_board_order ON board_columns(board_id, order_key, id);`,
		`CREATE INDEX IF NOT EXISTS idx_cards_column_order ON cards(column_id, order_key, id);`,
		`CREATE INDEX IF NOT EXISTS idx_cards_board ON cards(board_id);`,
		`CREATE INDEX IF NOT EXISTS idx_change_events_board_id ON change_events(board_id, id DESC);`,
	}
	for _, stmt := range stmts {
		if _, err := r.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate sqlite: %w", err)
		}
	}
	return nil
}

// CreateBoard creates board.
func (r *Repository) CreateBoard(ctx context.Context, b domain.Board) (domain.Board, error) {
	err := r.inTx(ctx, func(tx *sql.Tx) error {
		rev, err := insertChangeEvent(ctx, tx, r.now(), domain.ChangeEvent{
			BoardID: b.ID, ItemKind: boardItemKind, ItemID: b.ID, Operation: domain.ChangeOperationCreate,
			Metadata: map[string]string{"title": b.Title},
		})
		if err != nil {
			return err
		}
		b.Revision = rev
		_, err = tx.ExecContext(ctx, `
			INSERT INTO boards(id, title, owner, color, revision, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`, b.ID, b.Title, b.Owner, b.Color, b.Revision, ts(b.CreatedAt), ts(b.UpdatedAt))
		return err
	})
	if err != nil {
		return domain.Board{}, err
	}
	return b, nil
}

// UpdateBoard updates board.
func (r *Repository) UpdateBoard(ctx context.Context, b domain.Board) (domain.Board, error) {
	err := r.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := getBoardByID(ctx, tx, b.ID); err != nil {
			return err
		}
		rev, err := insertChangeEvent(ctx, tx, r.now(), domain.ChangeEvent{
			BoardID: b.ID, ItemKind: boardItemKind, ItemID: b.ID, Operation: domain.ChangeOperationUpdate,
			Metadata: map[string]string{"title": b.Title, "color": b.Color},
		})
		if err != nil {
			return err
		}
		b.Revision = rev
		res, err := tx.ExecContext(ctx, `
			UPDATE boards SET title = ?, owner = ?, color = ?, revision = ?, updated_at = ? WHERE id = ?
		`, b.Title, b.Owner, b.Color, b.Revision, ts(b.UpdatedAt), b.ID)
		if err != nil {
			return err
		}
		return translateNoRows(res)
	})
	if err != nil {
		return domain.Board{}, err
	}
	return b, nil
}

// GetBoard returns board.
func (r *Repository) GetBoard(ctx context.Context, id string) (domain.Board, error) {
	return getBoardByID(ctx, r.db, id)
}

// ListBoards lists boards by title.
func (r *Repository) ListBoards(ctx context.Context) ([]domain.Board, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, title, owner, color, revision, created_at, updated_at
		FROM boards
		ORDER BY title ASC, id ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.Board, 0)
	for rows.Next() {
		b, err := scanBoard(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// DeleteBoard deletes a board; columns and cards cascade.
func (r *Repository) DeleteBoard(ctx context.Context, id string) error {
	return r.inTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `DELETE FROM boards WHERE id = ?`, id)
		if err != nil {
			return err
		}
		if err := translateNoRows(res); err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, `DELETE FROM change_events WHERE board_id = ?`, id)
		return err
	})
}

// LoadBoard returns a board with its columns and cards in order.
func (r *Repository) LoadBoard(ctx context.Context, id string) (domain.BoardState, error) {
	b, err := r.GetBoard(ctx, id)
	if err != nil {
		return domain.BoardState{}, err
	}
	state := domain.BoardState{Board: b, Columns: []domain.Column{}, Cards: []domain.Card{}}

	colRows, err := r.db.QueryContext(ctx, `
		SELECT id, board_id, title, order_key, revision, created_at, updated_at
		FROM board_columns
		WHERE board_id = ?
		ORDER BY order_key ASC, id ASC
	`, id)
	if err != nil {
		return domain.BoardState{}, err
	}
	defer colRows.Close()
	for colRows.Next() {
		c, err := scanColumn(colRows)
		if err != nil {
			return domain.BoardState{}, err
		}
		state.Columns = append(state.Columns, c)
	}
	if err := colRows.Err(); err != nil {
		return domain.BoardState{}, err
	}

	cardRows, err := r.db.QueryContext(ctx, `
		SELECT id, board_id, column_id, order_key, title, description, revision, created_at, updated_at
		FROM cards
		WHERE board_id = ?
		ORDER BY column_id ASC, order_key ASC, id ASC
	`, id)
	if err != nil {
		return domain.BoardState{}, err
	}
	defer cardRows.Close()
	for cardRows.Next() {
		c, err := scanCard(cardRows)
		if err != nil {
			return domain.BoardState{}, err
		}
		state.Cards = append(state.Cards, c)
	}
	return state, cardRows.Err()
}

// CreateColumn creates column.
func (r *Repository) CreateColumn(ctx context.Context, c domain.Column) (domain.Column, error) {
	err := r.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := getBoardByID(ctx, tx, c.BoardID); err != nil {
			return err
		}
		rev, err := insertChangeEvent(ctx, tx, r.now(), domain.ChangeEvent{
			BoardID: c.BoardID, ItemKind: domain.ItemKindColumn, ItemID: c.ID, Operation: domain.ChangeOperationCreate,
			Metadata: map[string]string{"title": c.Title, "order_key": c.OrderKey.String()},
		})
		if err != nil {
			return err
		}
		c.Revision = rev
		_, err = tx.ExecContext(ctx, `
			INSERT INTO board_columns(id, board_id, title, order_key, revision, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`, c.ID, c.BoardID, c.Title, float64(c.OrderKey), c.Revision, ts(c.CreatedAt), ts(c.UpdatedAt))
		return err
	})
	if err != nil {
		return domain.Column{}, err
	}
	r.hub.publish(c.BoardID, []domain.ItemChange{domain.ColumnChange(c)})
	return c, nil
}

// UpdateColumn updates the column title. The stored key is kept; positions
// change only through PersistItemPosition and PersistBatchReorder.
func (r *Repository) UpdateColumn(ctx context.Context, c domain.Column) (domain.Column, error) {
	err := r.inTx(ctx, func(tx *sql.Tx) error {
		prev, err := getColumnByID(ctx, tx, c.ID)
		if err != nil {
			return err
		}
		c.BoardID = prev.BoardID
		c.OrderKey = prev.OrderKey
		c.CreatedAt = prev.CreatedAt
		rev, err := insertChangeEvent(ctx, tx, r.now(), domain.ChangeEvent{
			BoardID: c.BoardID, ItemKind: domain.ItemKindColumn, ItemID: c.ID, Operation: domain.ChangeOperationUpdate,
			Metadata: map[string]string{"title": c.Title},
		})
		if err != nil {
			return err
		}
		c.Revision = rev
		res, err := tx.ExecContext(ctx, `
			UPDATE board_columns SET title = ?, revision = ?, updated_at = ? WHERE id = ?
		`, c.Title, c.Revision, ts(c.UpdatedAt), c.ID)
		if err != nil {
			return err
		}
		return translateNoRows(res)
	})
	if err != nil {
		return domain.Column{}, err
	}
	r.hub.publish(c.BoardID, []domain.ItemChange{domain.ColumnChange(c)})
	return c, nil
}

// GetColumn returns column.
func (r *Repository) GetColumn(ctx context.Context, id string) (domain.Column, error) {
	return getColumnByID(ctx, r.db, id)
}

// DeleteColumn deletes a column; its cards cascade.
func (r *Repository) DeleteColumn(ctx context.Context, id string) error {
	var change domain.ItemChange
	err := r.inTx(ctx, func(tx *sql.Tx) error {
		col, err := getColumnByID(ctx, tx, id)
		if err != nil {
			return err
		}
		rev, err := insertChangeEvent(ctx, tx, r.now(), domain.ChangeEvent{
			BoardID: col.BoardID, ItemKind: domain.ItemKindColumn, ItemID: col.ID, Operation: domain.ChangeOperationDelete,
			Metadata: map[string]string{"title": col.Title},
		})
		if err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx, `DELETE FROM board_columns WHERE id = ?`, id)
		if err != nil {
			return err
		}
		change = domain.ItemChange{Kind: domain.ItemKindColumn, BoardID: col.BoardID, ItemID: col.ID, ContainerID: col.BoardID, Revision: rev, Deleted: true}
		return translateNoRows(res)
	})
	if err != nil {
		return err
	}
	r.hub.publish(change.BoardID, []domain.ItemChange{change})
	return nil
}

// CreateCard creates card.
func (r *Repository) CreateCard(ctx context.Context, c domain.Card) (domain.Card, error) {
	err := r.inTx(ctx, func(tx *sql.Tx) error {
		col, err := getColumnByID(ctx, tx, c.ColumnID)
		if err != nil {
			return err
		}
		if col.BoardID != c.BoardID {
			return domain.ErrInvalidColumnID
		}
		rev, err := insertChangeEvent(ctx, tx, r.now(), domain.ChangeEvent{
			BoardID: c.BoardID, ItemKind: domain.ItemKindCard, ItemID: c.ID, Operation: domain.ChangeOperationCreate,
			Metadata: map[string]string{"column_id": c.ColumnID, "order_key": c.OrderKey.String(), "title": c.Title},
		})
		if err != nil {
			return err
		}
		c.Revision = rev
		_, err = tx.ExecContext(ctx, `
			INSERT INTO cards(id, board_id, column_id, order_key, title, description, revision, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, c.ID, c.BoardID, c.ColumnID, float64(c.OrderKey), c.Title, c.Description, c.Revision, ts(c.CreatedAt), ts(c.UpdatedAt))
		return err
	})
	if err != nil {
		return domain.Card{}, err
	}
	r.hub.publish(c.BoardID, []domain.ItemChange{domain.CardChange(c)})
	return c, nil
}

// UpdateCard updates card title and description. Column and key come from the
// stored row so a stale copy never undoes a committed move.
func (r *Repository) UpdateCard(ctx context.Context, c domain.Card) (domain.Card, error) {
	err := r.inTx(ctx, func(tx *sql.Tx) error {
		prev, err := getCardByID(ctx, tx, c.ID)
		if err != nil {
			return err
		}
		c.BoardID = prev.BoardID
		c.ColumnID = prev.ColumnID
		c.OrderKey = prev.OrderKey
		c.CreatedAt = prev.CreatedAt
		rev, err := insertChangeEvent(ctx, tx, r.now(), domain.ChangeEvent{
			BoardID: c.BoardID, ItemKind: domain.ItemKindCard, ItemID: c.ID, Operation: domain.ChangeOperationUpdate,
			Metadata: map[string]string{"changed_fields": changedCardFields(prev, c)},
		})
		if err != nil {
			return err
		}
		c.Revision = rev
		res, err := tx.ExecContext(ctx, `
			UPDATE cards SET title = ?, description = ?, revision = ?, updated_at = ? WHERE id = ?
		`, c.Title, c.Description, c.Revision, ts(c.UpdatedAt), c.ID)
		if err != nil {
			return err
		}
		return translateNoRows(res)
	})
	if err != nil {
		return domain.Card{}, err
	}
	r.hub.publish(c.BoardID, []domain.ItemChange{domain.CardChange(c)})
	return c, nil
}

// GetCard returns card.
func (r *Repository) GetCard(ctx context.Context, id string) (domain.Card, error) {
	return getCardByID(ctx, r.db, id)
}

// DeleteCard deletes card.
func (r *Repository) DeleteCard(ctx context.Context, id string) error {
	var change domain.ItemChange
	err := r.inTx(ctx, func(tx *sql.Tx) error {
		card, err := getCardByID(ctx, tx, id)
		if err != nil {
			return err
		}
		rev, err := insertChangeEvent(ctx, tx, r.now(), domain.ChangeEvent{
			BoardID: card.BoardID, ItemKind: domain.ItemKindCard, ItemID: card.ID, Operation: domain.ChangeOperationDelete,
			Metadata: map[string]string{"column_id": card.ColumnID, "order_key": card.OrderKey.String(), "title": card.Title},
		})
		if err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx, `DELETE FROM cards WHERE id = ?`, id)
		if err != nil {
			return err
		}
		change = domain.ItemChange{Kind: domain.ItemKindCard, BoardID: card.BoardID, ItemID: card.ID, ContainerID: card.ColumnID, Revision: rev, Deleted: true}
		return translateNoRows(res)
	})
	if err != nil {
		return err
	}
	r.hub.publish(change.BoardID, []domain.ItemChange{change})
	return nil
}

// ListBoardChangeEvents lists recent board events, newest first.
func (r *Repository) ListBoardChangeEvents(ctx context.Context, boardID string, limit int) ([]domain.ChangeEvent, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, board_id, item_kind, item_id, operation, metadata_json, created_at
		FROM change_events
		WHERE board_id = ?
		ORDER BY id DESC
		LIMIT ?
	`, boardID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.ChangeEvent, 0)
	for rows.Next() {
		var (
			event       domain.ChangeEvent
			kindRaw     string
			opRaw       string
			metadataRaw string
			createdRaw  string
		)
		if err := rows.Scan(&event.ID, &event.BoardID, &kindRaw, &event.ItemID, &opRaw, &metadataRaw, &createdRaw); err != nil {
			return nil, err
		}
		event.ItemKind = domain.ItemKind(kindRaw)
		event.Operation = domain.ChangeOperation(opRaw)
		event.OccurredAt = parseTS(createdRaw)
		if strings.TrimSpace(metadataRaw) == "" {
			metadataRaw = "{}"
		}
		if err := json.Unmarshal([]byte(metadataRaw), &event.Metadata); err != nil {
			return nil, fmt.Errorf("decode change_events.metadata_json: %w", err)
		}
		if event.Metadata == nil {
			event.Metadata = map[string]string{}
		}
		out = append(out, event)
	}
	return out, rows.Err()
}

// inTx runs fn in a transaction, rolling back when it fails.
func (r *Repository) inTx(ctx context.Context, fn func(*sql.Tx) error) (err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()
	if err = fn(tx); err != nil {
		return err
	}
	err = tx.Commit()
	return err
}

func (r *Repository) now() time.Time {
	return r.clock().UTC()
}

// queryRower represents a query-only DB contract used by DB and Tx implementations.
type queryRower interface {
	QueryRowContext(context.Context, string, ...any) *sql.Row
}

// execerContext represents a write-only DB contract used by DB and Tx implementations.
type execerContext interface {
	ExecContext(context.Context, string, ...any) (sql.Result, error)
}

func getBoardByID(ctx context.Context, q queryRower, id string) (domain.Board, error) {
	row := q.QueryRowContext(ctx, `
		SELECT id, title, owner, color, revision, created_at, updated_at
		FROM boards
		WHERE id = ?
	`, id)
	return scanBoard(row)
}

func getColumnByID(ctx context.Context, q queryRower, id string) (domain.Column, error) {
	row := q.QueryRowContext(ctx, `
		SELECT id, board_id, title, order_key, revision, created_at, updated_at
		FROM board_columns
		WHERE id = ?
	`, id)
	return scanColumn(row)
}

func getCardByID(ctx context.Context, q queryRower, id string) (domain.Card, error) {
	row := q.QueryRowContext(ctx, `
		SELECT id, board_id, column_id, order_key, title, description, revision, created_at, updated_at
		FROM cards
		WHERE id = ?
	`, id)
	return scanCard(row)
}

// insertChangeEvent inserts a change-event ledger record and returns its id as the new revision.
func insertChangeEvent(ctx context.Context, execer execerContext, now time.Time, event domain.ChangeEvent) (int64, error) {
	metadataJSON, err := json.Marshal(event.Metadata)
	if err != nil {
		return 0, fmt.Errorf("encode change event metadata: %w", err)
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = now
	}
	res, err := execer.ExecContext(ctx, `
		INSERT INTO change_events(board_id, item_kind, item_id, operation, metadata_json, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`,
		event.BoardID,
		string(event.ItemKind),
		event.ItemID,
		string(event.Operation),
		string(metadataJSON),
		ts(event.OccurredAt),
	)
	if err != nil {
		return 0, fmt.Errorf("insert change event: %w", err)
	}
	rev, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("read change event id: %w", err)
	}
	return rev, nil
}

// changedCardFields lists edited fields as a comma-separated value.
func changedCardFields(prev, next domain.Card) string {
	var fields []string
	if prev.Title != next.Title {
		fields = append(fields, "title")
	}
	if prev.Description != next.Description {
		fields = append(fields, "description")
	}
	return strings.Join(fields, ",")
}

// scanner represents scanner data used by this package.
type scanner interface {
	Scan(dest ...any) error
}

func scanBoard(s scanner) (domain.Board, error) {
	var (
		b          domain.Board
		createdRaw string
		updatedRaw string
	)
	if err := s.Scan(&b.ID, &b.Title, &b.Owner, &b.Color, &b.Revision, &createdRaw, &updatedRaw); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Board{}, app.ErrNotFound
		}
		return domain.Board{}, err
	}
	b.CreatedAt = parseTS(createdRaw)
	b.UpdatedAt = parseTS(updatedRaw)
	return b, nil
}

func scanColumn(s scanner) (domain.Column, error) {
	var (
		c          domain.Column
		key        float64
		createdRaw string
		updatedRaw string
	)
	if err := s.Scan(&c.ID, &c.BoardID, &c.Title, &key, &c.Revision, &createdRaw, &updatedRaw); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Column{}, app.ErrNotFound
		}
		return domain.Column{}, err
	}
	c.OrderKey = domain.OrderKey(key)
	c.CreatedAt = parseTS(createdRaw)
	c.UpdatedAt = parseTS(updatedRaw)
	return c, nil
}

func scanCard(s scanner) (domain.Card, error) {
	var (
		c          domain.Card
		key        float64
		createdRaw string
		updatedRaw string
	)
	if err := s.Scan(&c.ID, &c.BoardID, &c.ColumnID, &key, &c.Title, &c.Description, &c.Revision, &createdRaw, &updatedRaw); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Card{}, app.ErrNotFound
		}
		return domain.Card{}, err
	}
	c.OrderKey = domain.OrderKey(key)
	c.CreatedAt = parseTS(createdRaw)
	c.UpdatedAt = parseTS(updatedRaw)
	return c, nil
}

// translateNoRows maps zero affected rows to ErrNotFound.
func translateNoRows(res sql.Result) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return app.ErrNotFound
	}
	return nil
}

// ts handles ts.
func ts(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// parseTS parses input into a normalized form.
func parseTS(v string) time.Time {
	ts, err := time.Parse(time.RFC3339Nano, v)
	if err != nil {
		return time.Time{}
	}
	return ts.UTC()
}
