package domain

import "time"

// ChangeOperation describes a persisted activity operation for a board item.
type ChangeOperation string

// ChangeOperation values used by the change ledger.
const (
	ChangeOperationCreate  ChangeOperation = "create"
	ChangeOperationUpdate  ChangeOperation = "update"
	ChangeOperationMove    ChangeOperation = "move"
	ChangeOperationReorder ChangeOperation = "reorder"
	ChangeOperationDelete  ChangeOperation = "delete"
)

// ChangeEvent represents a single ledger entry. Its ID is the revision assigned to the write.
type ChangeEvent struct {
	ID         int64             `json:"id"`
	BoardID    string            `json:"board_id"`
	ItemKind   ItemKind          `json:"item_kind"`
	ItemID     string            `json:"item_id"`
	Operation  ChangeOperation   `json:"operation"`
	Metadata   map[string]string `json:"metadata,omitempty"`
	OccurredAt time.Time         `json:"occurred_at"`
}
