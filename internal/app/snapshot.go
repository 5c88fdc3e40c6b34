package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/hylla/tavla/internal/domain"
)

// SnapshotVersion defines a package constant value.
const SnapshotVersion = "tavla.snapshot.v1"

// SnapshotFormat selects a snapshot encoding.
type SnapshotFormat string

// SnapshotFormat values.
const (
	SnapshotFormatJSON SnapshotFormat = "json"
	SnapshotFormatYAML SnapshotFormat = "yaml"
)

// ParseSnapshotFormat resolves a format name, accepting "yml" as YAML.
func ParseSnapshotFormat(raw string) (SnapshotFormat, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "json":
		return SnapshotFormatJSON, nil
	case "yaml", "yml":
		return SnapshotFormatYAML, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, raw)
	}
}

// Snapshot represents snapshot data used by this package.
type Snapshot struct {
	Version    string           `json:"version" yaml:"version"`
	ExportedAt time.Time        `json:"exported_at" yaml:"exported_at"`
	Boards     []SnapshotBoard  `json:"boards" yaml:"boards"`
	Columns    []SnapshotColumn `json:"columns" yaml:"columns"`
	Cards      []SnapshotCard   `json:"cards" yaml:"cards"`
}

// SnapshotBoard represents snapshot board data used by this package.
type SnapshotBoard struct {
	ID        string    `json:"id" yaml:"id"`
	Title     string    `json:"title" yaml:"title"`
	Owner     string    `json:"owner,omitempty" yaml:"owner,omitempty"`
	Color     string    `json:"color,omitempty" yaml:"color,omitempty"`
	CreatedAt time.Time `json:"created_at" yaml:"created_at"`
	UpdatedAt time.Time `json:"updated_at" yaml:"updated_at"`
}

// SnapshotColumn represents snapshot column data used by this package.
type SnapshotColumn struct {
	ID        string          `json:"id" yaml:"id"`
	BoardID   string          `json:"board_id" yaml:"board_id"`
	Title     string          `json:"title" yaml:"title"`
	OrderKey  domain.OrderKey `json:"order_key" yaml:"order_key"`
	CreatedAt time.Time       `json:"created_at" yaml:"created_at"`
	UpdatedAt time.Time       `json:"updated_at" yaml:"updated_at"`
}

// SnapshotCard represents snapshot card data used by this package.
type SnapshotCard struct {
	ID          string          `json:"id" yaml:"id"`
	BoardID     string          `json:"board_id" yaml:"board_id"`
	ColumnID    string          `json:"column_id" yaml:"column_id"`
	OrderKey    domain.OrderKey `json:"order_key" yaml:"order_key"`
	Title       string          `json:"title" yaml:"title"`
	Description string          `json:"description,omitempty" yaml:"description,omitempty"`
	CreatedAt   time.Time       `json:"created_at" yaml:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at" yaml:"updated_at"`
}

// ExportSnapshot collects every board into one snapshot.
func (s *Service) ExportSnapshot(ctx context.Context) (Snapshot, error) {
	boards, err := s.backend.ListBoards(ctx)
	if err != nil {
		return Snapshot{}, err
	}
	snap := Snapshot{
		Version:    SnapshotVersion,
		ExportedAt: s.clock().UTC(),
		Boards:     make([]SnapshotBoard, 0, len(boards)),
		Columns:    []SnapshotColumn{},
		Cards:      []SnapshotCard{},
	}
	for _, b := range boards {
		state, err := s.backend.LoadBoard(ctx, b.ID)
		if err != nil {
			return Snapshot{}, err
		}
		snap.Boards = append(snap.Boards, snapshotBoardFromDomain(state.Board))
		for _, c := range state.Columns {
			snap.Columns = append(snap.Columns, snapshotColumnFromDomain(c))
		}
		for _, c := range state.Cards {
			snap.Cards = append(snap.Cards, snapshotCardFromDomain(c))
		}
	}
	snap.sort()
	return snap, nil
}

// ImportSnapshot creates or updates every entity in the snapshot, preserving order keys.
func (s *Service) ImportSnapshot(ctx context.Context, snap Snapshot) error {
	if err := snap.Validate(); err != nil {
		return err
	}
	for _, sb := range snap.Boards {
		b := sb.toDomain()
		if _, err := s.backend.GetBoard(ctx, b.ID); errors.Is(err, ErrNotFound) {
			_, err = s.backend.CreateBoard(ctx, b)
			if err != nil {
				return err
			}
		} else if err != nil {
			return err
		} else if _, err := s.backend.UpdateBoard(ctx, b); err != nil {
			return err
		}
	}
	for _, sc := range snap.Columns {
		c := sc.toDomain()
		if _, err := s.backend.GetColumn(ctx, c.ID); errors.Is(err, ErrNotFound) {
			_, err = s.backend.CreateColumn(ctx, c)
			if err != nil {
				return err
			}
		} else if err != nil {
			return err
		} else if err := s.importExisting(ctx, domain.ItemKindColumn, c.ID, c.BoardID, c.OrderKey, func() (string, domain.OrderKey, error) {
			stored, err := s.backend.UpdateColumn(ctx, c)
			return stored.BoardID, stored.OrderKey, err
		}); err != nil {
			return err
		}
	}
	for _, sc := range snap.Cards {
		c := sc.toDomain()
		if _, err := s.backend.GetCard(ctx, c.ID); errors.Is(err, ErrNotFound) {
			_, err = s.backend.CreateCard(ctx, c)
			if err != nil {
				return err
			}
		} else if err != nil {
			return err
		} else if err := s.importExisting(ctx, domain.ItemKindCard, c.ID, c.ColumnID, c.OrderKey, func() (string, domain.OrderKey, error) {
			stored, err := s.backend.UpdateCard(ctx, c)
			return stored.ColumnID, stored.OrderKey, err
		}); err != nil {
			return err
		}
	}
	for _, sb := range snap.Boards {
		if _, ok := s.model.Board(sb.ID); ok {
			if _, err := s.OpenBoard(ctx, sb.ID); err != nil {
				return err
			}
		}
	}
	return nil
}

// importExisting updates an existing item's details, then moves it when the
// stored position differs from the snapshot. Detail updates never carry position.
func (s *Service) importExisting(ctx context.Context, kind domain.ItemKind, itemID, containerID string, key domain.OrderKey, update func() (string, domain.OrderKey, error)) error {
	storedContainer, storedKey, err := update()
	if err != nil {
		return err
	}
	if storedContainer == containerID && storedKey == key {
		return nil
	}
	_, err = s.backend.PersistItemPosition(ctx, domain.ItemPosition{Kind: kind, ItemID: itemID, ContainerID: containerID, OrderKey: key})
	return err
}

// Validate checks version, identifiers, and parent references.
func (s *Snapshot) Validate() error {
	if s.Version != SnapshotVersion {
		return fmt.Errorf("%w: unsupported version %q", ErrInvalidSnapshot, s.Version)
	}
	boards := map[string]struct{}{}
	for _, b := range s.Boards {
		if strings.TrimSpace(b.ID) == "" || strings.TrimSpace(b.Title) == "" {
			return fmt.Errorf("%w: board %q missing id or title", ErrInvalidSnapshot, b.ID)
		}
		if _, dup := boards[b.ID]; dup {
			return fmt.Errorf("%w: duplicate board %q", ErrInvalidSnapshot, b.ID)
		}
		boards[b.ID] = struct{}{}
	}
	columns := map[string]string{}
	for _, c := range s.Columns {
		if _, ok := boards[c.BoardID]; !ok {
			return fmt.Errorf("%w: column %q references unknown board %q", ErrInvalidSnapshot, c.ID, c.BoardID)
		}
		if _, dup := columns[c.ID]; dup {
			return fmt.Errorf("%w: duplicate column %q", ErrInvalidSnapshot, c.ID)
		}
		if !c.OrderKey.Valid() {
			return fmt.Errorf("%w: column %q order key", ErrInvalidSnapshot, c.ID)
		}
		columns[c.ID] = c.BoardID
	}
	cards := map[string]struct{}{}
	for _, c := range s.Cards {
		boardID, ok := columns[c.ColumnID]
		if !ok {
			return fmt.Errorf("%w: card %q references unknown column %q", ErrInvalidSnapshot, c.ID, c.ColumnID)
		}
		if boardID != c.BoardID {
			return fmt.Errorf("%w: card %q board %q disagrees with column board %q", ErrInvalidSnapshot, c.ID, c.BoardID, boardID)
		}
		if _, dup := cards[c.ID]; dup {
			return fmt.Errorf("%w: duplicate card %q", ErrInvalidSnapshot, c.ID)
		}
		if !c.OrderKey.Valid() {
			return fmt.Errorf("%w: card %q order key", ErrInvalidSnapshot, c.ID)
		}
		cards[c.ID] = struct{}{}
	}
	return nil
}

// EncodeSnapshot writes a snapshot in the requested format.
func EncodeSnapshot(w io.Writer, snap Snapshot, format SnapshotFormat) error {
	switch format {
	case SnapshotFormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(snap)
	case SnapshotFormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(snap); err != nil {
			return err
		}
		return enc.Close()
	default:
		return fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
}

// DecodeSnapshot reads a snapshot in the requested format.
func DecodeSnapshot(r io.Reader, format SnapshotFormat) (Snapshot, error) {
	var snap Snapshot
	switch format {
	case SnapshotFormatJSON:
		if err := json.NewDecoder(r).Decode(&snap); err != nil {
			return Snapshot{}, fmt.Errorf("decode snapshot json: %w", err)
		}
	case SnapshotFormatYAML:
		if err := yaml.NewDecoder(r).Decode(&snap); err != nil {
			return Snapshot{}, fmt.Errorf("decode snapshot yaml: %w", err)
		}
	default:
		return Snapshot{}, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
	return snap, nil
}

// sort orders entities deterministically: boards by id, then by order key within parents.
func (s *Snapshot) sort() {
	slices.SortFunc(s.Boards, func(a, b SnapshotBoard) int { return strings.Compare(a.ID, b.ID) })
	slices.SortFunc(s.Columns, func(a, b SnapshotColumn) int {
		if c := strings.Compare(a.BoardID, b.BoardID); c != 0 {
			return c
		}
		return domain.CompareOrder(a.OrderKey, a.ID, b.OrderKey, b.ID)
	})
	slices.SortFunc(s.Cards, func(a, b SnapshotCard) int {
		if c := strings.Compare(a.ColumnID, b.ColumnID); c != 0 {
			return c
		}
		return domain.CompareOrder(a.OrderKey, a.ID, b.OrderKey, b.ID)
	})
}

func snapshotBoardFromDomain(b domain.Board) SnapshotBoard {
	return SnapshotBoard{ID: b.ID, Title: b.Title, Owner: b.Owner, Color: b.Color, CreatedAt: b.CreatedAt, UpdatedAt: b.UpdatedAt}
}

func snapshotColumnFromDomain(c domain.Column) SnapshotColumn {
	return SnapshotColumn{ID: c.ID, BoardID: c.BoardID, Title: c.Title, OrderKey: c.OrderKey, CreatedAt: c.CreatedAt, UpdatedAt: c.UpdatedAt}
}

func snapshotCardFromDomain(c domain.Card) SnapshotCard {
	return SnapshotCard{
		ID:          c.ID,
		BoardID:     c.BoardID,
		ColumnID:    c.ColumnID,
		OrderKey:    c.OrderKey,
		Title:       c.Title,
		Description: c.Description,
		CreatedAt:   c.CreatedAt,
		UpdatedAt:   c.UpdatedAt,
	}
}

func (b SnapshotBoard) toDomain() domain.Board {
	return domain.Board{ID: b.ID, Title: b.Title, Owner: b.Owner, Color: b.Color, CreatedAt: b.CreatedAt, UpdatedAt: b.UpdatedAt}
}

func (c SnapshotColumn) toDomain() domain.Column {
	return domain.Column{ID: c.ID, BoardID: c.BoardID, Title: c.Title, OrderKey: c.OrderKey, CreatedAt: c.CreatedAt, UpdatedAt: c.UpdatedAt}
}

func (c SnapshotCard) toDomain() domain.Card {
	return domain.Card{
		ID:          c.ID,
		BoardID:     c.BoardID,
		ColumnID:    c.ColumnID,
		OrderKey:    c.OrderKey,
		Title:       c.Title,
		Description: c.Description,
		CreatedAt:   c.CreatedAt,
		UpdatedAt:   c.UpdatedAt,
	}
}
