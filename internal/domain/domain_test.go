package domain

import (
	"testing"
	"time"
)

func TestNewBoardTrimsAndValidates(t *testing.T) {
	now := time.Date(2026, 2, 21, 12, 0, 0, 0, time.UTC)
	b, err := NewBoard("b1", "  Roadmap  ", " ada ", " #FF8800 ", now)
	if err != nil {
		t.Fatalf("NewBoard() error = %v", err)
	}
	if b.Title != "Roadmap" || b.Owner != "ada" || b.Color != "#ff8800" {
		t.Fatalf("unexpected board %#v", b)
	}
	if _, err := NewBoard("", "ok", "", "", now); err != ErrInvalidID {
		t.Fatalf("expected ErrInvalidID, got %v", err)
	}
	if _, err := NewBoard("b1", "   ", "", "", now); err != ErrInvalidTitle {
		t.Fatalf("expected ErrInvalidTitle, got %v", err)
	}
}

func TestBoardRename(t *testing.T) {
	now := time.Now()
	b, err := NewBoard("b1", "old", "", "", now)
	if err != nil {
		t.Fatalf("NewBoard() error = %v", err)
	}
	if err := b.Rename("  new ", now.Add(time.Minute)); err != nil {
		t.Fatalf("Rename() error = %v", err)
	}
	if b.Title != "new" {
		t.Fatalf("unexpected title %q", b.Title)
	}
	if err := b.Rename(" ", now); err != ErrInvalidTitle {
		t.Fatalf("expected ErrInvalidTitle, got %v", err)
	}
}

func TestNewColumnValidation(t *testing.T) {
	now := time.Now()
	if _, err := NewColumn("c1", "", "todo", 1, now); err != ErrInvalidBoardID {
		t.Fatalf("expected ErrInvalidBoardID, got %v", err)
	}
	if _, err := NewColumn("c1", "b1", "", 1, now); err != ErrInvalidTitle {
		t.Fatalf("expected ErrInvalidTitle, got %v", err)
	}
	if _, err := NewColumn("c1", "b1", "todo", OrderKey(nan()), now); err != ErrInvalidOrderKey {
		t.Fatalf("expected ErrInvalidOrderKey, got %v", err)
	}
}

func TestColumnMutations(t *testing.T) {
	now := time.Now()
	c, err := NewColumn("c1", "b1", "todo", 1, now)
	if err != nil {
		t.Fatalf("NewColumn() error = %v", err)
	}
	if err := c.Rename("  done ", now.Add(time.Minute)); err != nil {
		t.Fatalf("Rename() error = %v", err)
	}
	if c.Title != "done" {
		t.Fatalf("unexpected column title %q", c.Title)
	}
	if err := c.SetOrderKey(3.5, now.Add(2*time.Minute)); err != nil {
		t.Fatalf("SetOrderKey() error = %v", err)
	}
	if c.OrderKey != 3.5 {
		t.Fatalf("unexpected order key %v", c.OrderKey)
	}
}

func TestNewCardValidation(t *testing.T) {
	now := time.Now()
	cases := []struct {
		name string
		in   CardInput
		want error
	}{
		{name: "missing id", in: CardInput{BoardID: "b1", ColumnID: "c1", Title: "x"}, want: ErrInvalidID},
		{name: "missing board", in: CardInput{ID: "k1", ColumnID: "c1", Title: "x"}, want: ErrInvalidBoardID},
		{name: "missing column", in: CardInput{ID: "k1", BoardID: "b1", Title: "x"}, want: ErrInvalidColumnID},
		{name: "missing title", in: CardInput{ID: "k1", BoardID: "b1", ColumnID: "c1", Title: "  "}, want: ErrInvalidTitle},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := NewCard(tc.in, now); err != tc.want {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
}

func TestCardMoveAndUpdate(t *testing.T) {
	now := time.Now()
	card, err := NewCard(CardInput{ID: "k1", BoardID: "b1", ColumnID: "c1", OrderKey: 1, Title: " Ship ", Description: " notes "}, now)
	if err != nil {
		t.Fatalf("NewCard() error = %v", err)
	}
	if card.Title != "Ship" || card.Description != "notes" {
		t.Fatalf("unexpected card %#v", card)
	}
	if err := card.Move("c2", 2.5, now.Add(time.Minute)); err != nil {
		t.Fatalf("Move() error = %v", err)
	}
	if card.ColumnID != "c2" || card.OrderKey != 2.5 {
		t.Fatalf("unexpected move state %#v", card)
	}
	if err := card.Move(" ", 1, now); err != ErrInvalidColumnID {
		t.Fatalf("expected ErrInvalidColumnID, got %v", err)
	}
	if err := card.UpdateDetails("renamed", "", now.Add(2*time.Minute)); err != nil {
		t.Fatalf("UpdateDetails() error = %v", err)
	}
	if card.Description != "" {
		t.Fatalf("expected description cleared, got %q", card.Description)
	}
}

func TestItemPositionValidate(t *testing.T) {
	if _, err := (ItemPosition{Kind: "row", ItemID: "a", ContainerID: "c", OrderKey: 1}).Validate(); err != ErrInvalidItemKind {
		t.Fatalf("expected ErrInvalidItemKind, got %v", err)
	}
	if _, err := (ItemPosition{Kind: ItemKindColumn, ItemID: "a", OrderKey: 1}).Validate(); err != ErrInvalidBoardID {
		t.Fatalf("expected ErrInvalidBoardID, got %v", err)
	}
	if _, err := (ItemPosition{Kind: ItemKindCard, ItemID: "a", OrderKey: 1}).Validate(); err != ErrInvalidColumnID {
		t.Fatalf("expected ErrInvalidColumnID, got %v", err)
	}
	pos, err := (ItemPosition{Kind: ItemKindCard, ItemID: " a ", ContainerID: " c ", OrderKey: 1}).Validate()
	if err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if pos.ItemID != "a" || pos.ContainerID != "c" {
		t.Fatalf("expected trimmed ids, got %#v", pos)
	}
}
