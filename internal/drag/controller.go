package drag

import (
	"github.com/hylla/tavla/internal/domain"
)

// State is the phase of a drag gesture.
type State int

// State values.
const (
	StateIdle State = iota
	StateDragging
	StateDropped
	StateCancelled
)

// String returns a readable state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateDragging:
		return "dragging"
	case StateDropped:
		return "dropped"
	case StateCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Target is a provisional or final (container, index) slot.
type Target struct {
	ContainerID string
	Index       int
}

// Instruction is the single move emitted when a gesture is dropped.
type Instruction struct {
	Kind   domain.ItemKind
	ItemID string
	Target Target
	Origin Target
}

// Unchanged reports whether the instruction resolves to the item's current slot.
func (i Instruction) Unchanged() bool {
	return i.Target == i.Origin
}

// Preview is the transient render hint for an active drag.
type Preview struct {
	Kind    domain.ItemKind
	ItemID  string
	Target  Target
	Pointer Point
}

// Sink receives dropped instructions.
type Sink func(Instruction)

// Controller tracks one drag gesture at a time. It reads a Layout snapshot and
// never mutates board state; the only output is the instruction passed to the sink.
type Controller struct {
	sink    Sink
	state   State
	last    State
	layout  Layout
	kind    domain.ItemKind
	itemID  string
	origin  Target
	preview Preview
}

// NewController constructs a new value for this package.
func NewController(sink Sink) *Controller {
	return &Controller{sink: sink}
}

// State returns the current phase.
func (c *Controller) State() State {
	return c.state
}

// LastOutcome returns how the previous gesture ended: StateDropped, StateCancelled, or StateIdle if none ended yet.
func (c *Controller) LastOutcome() State {
	return c.last
}

// Preview returns the current preview while dragging.
func (c *Controller) Preview() (Preview, bool) {
	if c.state != StateDragging {
		return Preview{}, false
	}
	return c.preview, true
}

// Begin starts dragging an item at pointer p.
func (c *Controller) Begin(kind domain.ItemKind, itemID string, p Point, layout Layout) error {
	if err := c.start(kind, itemID, layout); err != nil {
		return err
	}
	c.preview = Preview{Kind: kind, ItemID: itemID, Target: c.resolve(p), Pointer: p}
	return nil
}

// Pick starts a keyboard drag with the preview at the item's current slot.
func (c *Controller) Pick(kind domain.ItemKind, itemID string, layout Layout) error {
	if err := c.start(kind, itemID, layout); err != nil {
		return err
	}
	c.preview = Preview{Kind: kind, ItemID: itemID, Target: c.origin}
	return nil
}

// Relayout replaces the geometry used for hit testing during a drag.
// The dragged item must remain present.
func (c *Controller) Relayout(layout Layout) error {
	if c.state != StateDragging {
		c.layout = layout
		return nil
	}
	if _, ok := locate(layout, c.kind, c.itemID); !ok {
		c.reset(StateCancelled)
		return ErrUnknownItem
	}
	c.layout = layout
	return nil
}

// Move recomputes the preview for pointer p.
func (c *Controller) Move(p Point) (Preview, error) {
	if c.state != StateDragging {
		return Preview{}, ErrNotDragging
	}
	c.preview.Target = c.resolve(p)
	c.preview.Pointer = p
	return c.preview, nil
}

// Step shifts the keyboard preview by lanes (dx) and positions (dy).
// Column drags only honour dx.
func (c *Controller) Step(dx, dy int) (Preview, error) {
	if c.state != StateDragging {
		return Preview{}, ErrNotDragging
	}
	t := c.preview.Target
	switch c.kind {
	case domain.ItemKindColumn:
		t.Index = clamp(t.Index+dx, 0, len(c.layout.Lanes)-1)
	case domain.ItemKindCard:
		lane := c.layout.laneIndex(t.ContainerID)
		if lane < 0 {
			lane = 0
		}
		lane = clamp(lane+dx, 0, len(c.layout.Lanes)-1)
		t.ContainerID = c.layout.Lanes[lane].ID
		t.Index = clamp(t.Index+dy, 0, c.siblingCount(lane))
	}
	c.preview.Target = t
	return c.preview, nil
}

// Drop finishes the gesture at p and emits one instruction.
func (c *Controller) Drop(p Point) (Instruction, error) {
	if _, err := c.Move(p); err != nil {
		return Instruction{}, err
	}
	return c.Commit()
}

// Commit finishes the gesture at the current preview and emits one instruction.
func (c *Controller) Commit() (Instruction, error) {
	if c.state != StateDragging {
		return Instruction{}, ErrNotDragging
	}
	c.state = StateDropped
	inst := Instruction{
		Kind:   c.kind,
		ItemID: c.itemID,
		Target: c.preview.Target,
		Origin: c.origin,
	}
	c.reset(StateDropped)
	if c.sink != nil {
		c.sink(inst)
	}
	return inst, nil
}

// Cancel abandons the gesture without emitting an instruction.
func (c *Controller) Cancel() error {
	if c.state != StateDragging {
		return ErrNotDragging
	}
	c.state = StateCancelled
	c.reset(StateCancelled)
	return nil
}

func (c *Controller) start(kind domain.ItemKind, itemID string, layout Layout) error {
	if c.state == StateDragging {
		return ErrAlreadyDragging
	}
	if !kind.Valid() {
		return domain.ErrInvalidItemKind
	}
	origin, ok := locate(layout, kind, itemID)
	if !ok {
		return ErrUnknownItem
	}
	c.state = StateDragging
	c.layout = layout
	c.kind = kind
	c.itemID = itemID
	c.origin = origin
	return nil
}

// reset returns to idle and records how the gesture ended.
func (c *Controller) reset(outcome State) {
	c.last = outcome
	c.state = StateIdle
	c.kind = ""
	c.itemID = ""
	c.origin = Target{}
	c.preview = Preview{}
}

// resolve maps a pointer to a target by comparing against sibling midpoints.
func (c *Controller) resolve(p Point) Target {
	switch c.kind {
	case domain.ItemKindColumn:
		index := 0
		for _, lane := range c.layout.Lanes {
			if lane.ID == c.itemID {
				continue
			}
			if lane.Rect.Mid().X < p.X {
				index++
			}
		}
		return Target{ContainerID: c.layout.BoardID, Index: index}
	default:
		lane := c.layout.nearestLane(p)
		if lane < 0 {
			return c.origin
		}
		index := 0
		for _, card := range c.layout.Lanes[lane].Cards {
			if card.ID == c.itemID {
				continue
			}
			if card.Rect.Mid().Y < p.Y {
				index++
			}
		}
		return Target{ContainerID: c.layout.Lanes[lane].ID, Index: index}
	}
}

// siblingCount returns the number of cards in a lane excluding the dragged one.
func (c *Controller) siblingCount(lane int) int {
	n := 0
	for _, card := range c.layout.Lanes[lane].Cards {
		if card.ID != c.itemID {
			n++
		}
	}
	return n
}

// locate finds an item's current slot in the layout.
func locate(layout Layout, kind domain.ItemKind, itemID string) (Target, bool) {
	switch kind {
	case domain.ItemKindColumn:
		li := layout.laneIndex(itemID)
		if li < 0 {
			return Target{}, false
		}
		return Target{ContainerID: layout.BoardID, Index: li}, true
	case domain.ItemKindCard:
		li, ci := layout.findCard(itemID)
		if li < 0 {
			return Target{}, false
		}
		return Target{ContainerID: layout.Lanes[li].ID, Index: ci}, true
	}
	return Target{}, false
}

func clamp(v, lo, hi int) int {
	if hi < lo {
		return lo
	}
	return max(lo, min(v, hi))
}
