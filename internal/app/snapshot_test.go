package app

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
)

func TestExportSnapshotOrdersEntities(t *testing.T) {
	backend := newFakeBackend()
	backend.seed("b2", []string{"B1"}, map[string][]string{"B1": {"k3"}})
	backend.seed("b1", []string{"A1", "A2"}, map[string][]string{"A1": {"k1", "k2"}})
	svc := newTestService(backend)

	snap, err := svc.ExportSnapshot(context.Background())
	if err != nil {
		t.Fatalf("ExportSnapshot() error = %v", err)
	}
	if snap.Version != SnapshotVersion {
		t.Fatalf("unexpected version %q", snap.Version)
	}
	if len(snap.Boards) != 2 || snap.Boards[0].ID != "b1" {
		t.Fatalf("unexpected boards %#v", snap.Boards)
	}
	if len(snap.Columns) != 3 || snap.Columns[0].ID != "A1" || snap.Columns[1].ID != "A2" {
		t.Fatalf("unexpected columns %#v", snap.Columns)
	}
	if len(snap.Cards) != 3 || snap.Cards[0].ID != "k1" || snap.Cards[1].ID != "k2" {
		t.Fatalf("unexpected cards %#v", snap.Cards)
	}
}

func TestSnapshotEncodeDecodeFormats(t *testing.T) {
	backend := newFakeBackend()
	backend.seed("b1", []string{"A"}, map[string][]string{"A": {"x"}})
	svc := newTestService(backend)
	snap, err := svc.ExportSnapshot(context.Background())
	if err != nil {
		t.Fatalf("ExportSnapshot() error = %v", err)
	}

	for _, raw := range []string{"json", "yml"} {
		format, err := ParseSnapshotFormat(raw)
		if err != nil {
			t.Fatalf("ParseSnapshotFormat(%q) error = %v", raw, err)
		}
		var buf bytes.Buffer
		if err := EncodeSnapshot(&buf, snap, format); err != nil {
			t.Fatalf("EncodeSnapshot(%s) error = %v", format, err)
		}
		if format == SnapshotFormatYAML && !strings.Contains(buf.String(), "order_key:") {
			t.Fatalf("expected snake_case yaml keys, got %s", buf.String())
		}
		decoded, err := DecodeSnapshot(&buf, format)
		if err != nil {
			t.Fatalf("DecodeSnapshot(%s) error = %v", format, err)
		}
		if err := decoded.Validate(); err != nil {
			t.Fatalf("Validate(%s) error = %v", format, err)
		}
		if decoded.Cards[0].ColumnID != "A" || decoded.Cards[0].OrderKey != 1 {
			t.Fatalf("unexpected decoded card %#v", decoded.Cards[0])
		}
	}
	if _, err := ParseSnapshotFormat("toml"); !errors.Is(err, ErrUnsupportedFormat) {
		t.Fatalf("expected ErrUnsupportedFormat, got %v", err)
	}
}

func TestImportSnapshotCreatesAndUpdates(t *testing.T) {
	source := newFakeBackend()
	source.seed("b1", []string{"A", "B"}, map[string][]string{"A": {"x"}, "B": {"y"}})
	snap, err := newTestService(source).ExportSnapshot(context.Background())
	if err != nil {
		t.Fatalf("ExportSnapshot() error = %v", err)
	}

	target := newFakeBackend()
	target.seed("b1", []string{"A"}, map[string][]string{"A": {"x"}})
	target.cards["x"] = withKey(target.cards["x"], 9)
	svc := newTestService(target)
	if err := svc.ImportSnapshot(context.Background(), snap); err != nil {
		t.Fatalf("ImportSnapshot() error = %v", err)
	}
	if len(target.columns) != 2 || len(target.cards) != 2 {
		t.Fatalf("expected imported entities, got columns=%d cards=%d", len(target.columns), len(target.cards))
	}
	if target.cards["x"].OrderKey != 1 {
		t.Fatalf("expected existing card updated to snapshot key, got %v", target.cards["x"].OrderKey)
	}
	if target.positionCalls != 1 {
		t.Fatalf("expected one position write for the re-keyed card, got %d", target.positionCalls)
	}
}

func TestSnapshotValidateRejectsDanglingReferences(t *testing.T) {
	snap := Snapshot{
		Version: SnapshotVersion,
		Boards:  []SnapshotBoard{{ID: "b1", Title: "B"}},
		Columns: []SnapshotColumn{{ID: "c1", BoardID: "b1", Title: "C", OrderKey: 1}},
		Cards:   []SnapshotCard{{ID: "k1", BoardID: "b1", ColumnID: "missing", Title: "K", OrderKey: 1}},
	}
	if err := snap.Validate(); !errors.Is(err, ErrInvalidSnapshot) {
		t.Fatalf("expected ErrInvalidSnapshot, got %v", err)
	}
	snap.Cards[0].ColumnID = "c1"
	if err := snap.Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	snap.Version = "other"
	if err := snap.Validate(); !errors.Is(err, ErrInvalidSnapshot) {
		t.Fatalf("expected ErrInvalidSnapshot for version, got %v", err)
	}
}
