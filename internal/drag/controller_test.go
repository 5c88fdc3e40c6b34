package drag

import (
	"errors"
	"testing"

	"github.com/hylla/tavla/internal/domain"
)

// testLayout renders lanes 10 wide with 3-tall cards stacked from y=1.
func testLayout(lanes map[string][]string, order ...string) Layout {
	l := Layout{BoardID: "b1"}
	for i, id := range order {
		x := float64(i * 10)
		lane := Lane{ID: id, Rect: Rect{X: x, Y: 0, W: 10, H: 40}}
		for j, card := range lanes[id] {
			lane.Cards = append(lane.Cards, Box{ID: card, Rect: Rect{X: x, Y: float64(1 + j*3), W: 10, H: 3}})
		}
		l.Lanes = append(l.Lanes, lane)
	}
	return l
}

func TestControllerDropEmitsSingleInstruction(t *testing.T) {
	var got []Instruction
	c := NewController(func(inst Instruction) { got = append(got, inst) })
	layout := testLayout(map[string][]string{"A": {"x", "y"}, "B": {"z"}}, "A", "B")

	if err := c.Begin(domain.ItemKindCard, "x", Point{X: 2, Y: 2}, layout); err != nil {
		t.Fatalf("Begin() error = %v", err)
	}
	if c.State() != StateDragging {
		t.Fatalf("expected dragging, got %s", c.State())
	}
	p, err := c.Move(Point{X: 15, Y: 5})
	if err != nil {
		t.Fatalf("Move() error = %v", err)
	}
	if p.Target != (Target{ContainerID: "B", Index: 1}) {
		t.Fatalf("unexpected preview %#v", p.Target)
	}
	inst, err := c.Drop(Point{X: 15, Y: 0})
	if err != nil {
		t.Fatalf("Drop() error = %v", err)
	}
	if inst.Target != (Target{ContainerID: "B", Index: 0}) || inst.Origin != (Target{ContainerID: "A", Index: 0}) {
		t.Fatalf("unexpected instruction %#v", inst)
	}
	if len(got) != 1 {
		t.Fatalf("expected exactly one instruction, got %d", len(got))
	}
	if c.State() != StateIdle || c.LastOutcome() != StateDropped {
		t.Fatalf("expected idle after drop, got %s/%s", c.State(), c.LastOutcome())
	}
	if _, ok := c.Preview(); ok {
		t.Fatal("expected preview cleared after drop")
	}
}

func TestControllerPreviewExcludesDraggedCard(t *testing.T) {
	c := NewController(nil)
	layout := testLayout(map[string][]string{"A": {"x", "y", "z"}}, "A")
	if err := c.Begin(domain.ItemKindCard, "x", Point{X: 1, Y: 2}, layout); err != nil {
		t.Fatalf("Begin() error = %v", err)
	}
	// Below y's midpoint (5.5) but above z's (8.5): slot after y among [y, z].
	p, err := c.Move(Point{X: 1, Y: 7})
	if err != nil {
		t.Fatalf("Move() error = %v", err)
	}
	if p.Target.Index != 1 {
		t.Fatalf("expected index 1, got %d", p.Target.Index)
	}
	// Pointer over its own slot resolves to the origin.
	inst, err := c.Drop(Point{X: 1, Y: 2})
	if err != nil {
		t.Fatalf("Drop() error = %v", err)
	}
	if !inst.Unchanged() {
		t.Fatalf("expected unchanged instruction, got %#v", inst)
	}
}

func TestControllerPointerOutsideLanesPicksNearest(t *testing.T) {
	c := NewController(nil)
	layout := testLayout(map[string][]string{"A": {"x"}, "B": nil}, "A", "B")
	if err := c.Begin(domain.ItemKindCard, "x", Point{X: 1, Y: 1}, layout); err != nil {
		t.Fatalf("Begin() error = %v", err)
	}
	p, err := c.Move(Point{X: 55, Y: 100})
	if err != nil {
		t.Fatalf("Move() error = %v", err)
	}
	if p.Target != (Target{ContainerID: "B", Index: 0}) {
		t.Fatalf("unexpected target %#v", p.Target)
	}
}

func TestControllerCancelEmitsNothing(t *testing.T) {
	calls := 0
	c := NewController(func(Instruction) { calls++ })
	layout := testLayout(map[string][]string{"A": {"x"}}, "A")
	if err := c.Begin(domain.ItemKindCard, "x", Point{}, layout); err != nil {
		t.Fatalf("Begin() error = %v", err)
	}
	if err := c.Cancel(); err != nil {
		t.Fatalf("Cancel() error = %v", err)
	}
	if calls != 0 {
		t.Fatalf("expected no instruction, got %d", calls)
	}
	if c.LastOutcome() != StateCancelled {
		t.Fatalf("expected cancelled outcome, got %s", c.LastOutcome())
	}
	if _, err := c.Drop(Point{}); !errors.Is(err, ErrNotDragging) {
		t.Fatalf("expected ErrNotDragging, got %v", err)
	}
	if err := c.Cancel(); !errors.Is(err, ErrNotDragging) {
		t.Fatalf("expected ErrNotDragging, got %v", err)
	}
}

func TestControllerRejectsInvalidTransitions(t *testing.T) {
	c := NewController(nil)
	layout := testLayout(map[string][]string{"A": {"x"}}, "A")
	if err := c.Begin(domain.ItemKindCard, "missing", Point{}, layout); !errors.Is(err, ErrUnknownItem) {
		t.Fatalf("expected ErrUnknownItem, got %v", err)
	}
	if _, err := c.Move(Point{}); !errors.Is(err, ErrNotDragging) {
		t.Fatalf("expected ErrNotDragging, got %v", err)
	}
	if err := c.Begin(domain.ItemKindCard, "x", Point{}, layout); err != nil {
		t.Fatalf("Begin() error = %v", err)
	}
	if err := c.Begin(domain.ItemKindCard, "x", Point{}, layout); !errors.Is(err, ErrAlreadyDragging) {
		t.Fatalf("expected ErrAlreadyDragging, got %v", err)
	}
}

func TestControllerColumnDrag(t *testing.T) {
	c := NewController(nil)
	layout := testLayout(map[string][]string{"A": {"x"}, "B": nil, "C": nil}, "A", "B", "C")
	if err := c.Begin(domain.ItemKindColumn, "A", Point{X: 5, Y: 0}, layout); err != nil {
		t.Fatalf("Begin() error = %v", err)
	}
	inst, err := c.Drop(Point{X: 26, Y: 0})
	if err != nil {
		t.Fatalf("Drop() error = %v", err)
	}
	if inst.Target != (Target{ContainerID: "b1", Index: 2}) || inst.Kind != domain.ItemKindColumn {
		t.Fatalf("unexpected column instruction %#v", inst)
	}
}

func TestControllerKeyboardSteps(t *testing.T) {
	c := NewController(nil)
	layout := testLayout(map[string][]string{"A": {"x", "y"}, "B": {"z"}}, "A", "B")
	if err := c.Pick(domain.ItemKindCard, "y", layout); err != nil {
		t.Fatalf("Pick() error = %v", err)
	}
	p, _ := c.Preview()
	if p.Target != (Target{ContainerID: "A", Index: 1}) {
		t.Fatalf("unexpected origin preview %#v", p.Target)
	}
	if p, _ = c.Step(0, 5); p.Target.Index != 1 {
		t.Fatalf("expected index clamped to 1, got %d", p.Target.Index)
	}
	if p, _ = c.Step(1, 0); p.Target != (Target{ContainerID: "B", Index: 1}) {
		t.Fatalf("unexpected lane step %#v", p.Target)
	}
	if p, _ = c.Step(5, -9); p.Target != (Target{ContainerID: "B", Index: 0}) {
		t.Fatalf("unexpected clamped step %#v", p.Target)
	}
	inst, err := c.Commit()
	if err != nil {
		t.Fatalf("Commit() error = %v", err)
	}
	if inst.Target != (Target{ContainerID: "B", Index: 0}) {
		t.Fatalf("unexpected committed target %#v", inst.Target)
	}
}

func TestControllerRelayoutCancelsWhenItemVanishes(t *testing.T) {
	c := NewController(nil)
	layout := testLayout(map[string][]string{"A": {"x"}}, "A")
	if err := c.Begin(domain.ItemKindCard, "x", Point{}, layout); err != nil {
		t.Fatalf("Begin() error = %v", err)
	}
	if err := c.Relayout(testLayout(map[string][]string{"A": nil}, "A")); !errors.Is(err, ErrUnknownItem) {
		t.Fatalf("expected ErrUnknownItem, got %v", err)
	}
	if c.State() != StateIdle || c.LastOutcome() != StateCancelled {
		t.Fatalf("expected cancelled gesture, got %s/%s", c.State(), c.LastOutcome())
	}
}
