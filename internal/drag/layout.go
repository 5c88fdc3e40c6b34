package drag

import "math"

// Point is a pointer location in layout coordinates.
type Point struct {
	X float64
	Y float64
}

// Rect is an axis-aligned box.
type Rect struct {
	X float64
	Y float64
	W float64
	H float64
}

// Contains reports whether p lies inside the rect.
func (r Rect) Contains(p Point) bool {
	return p.X >= r.X && p.X < r.X+r.W && p.Y >= r.Y && p.Y < r.Y+r.H
}

// Mid returns the rect center.
func (r Rect) Mid() Point {
	return Point{X: r.X + r.W/2, Y: r.Y + r.H/2}
}

// distanceX returns the horizontal gap between p and the rect, zero when inside its span.
func (r Rect) distanceX(p Point) float64 {
	switch {
	case p.X < r.X:
		return r.X - p.X
	case p.X >= r.X+r.W:
		return p.X - (r.X + r.W)
	default:
		return 0
	}
}

// Box is one rendered item.
type Box struct {
	ID   string
	Rect Rect
}

// Lane is a rendered column with its cards in display order.
type Lane struct {
	ID    string
	Rect  Rect
	Cards []Box
}

// Layout is the rendered geometry of a board, lanes in display order.
type Layout struct {
	BoardID string
	Lanes   []Lane
}

// laneIndex returns the index of a lane by id.
func (l Layout) laneIndex(id string) int {
	for i, lane := range l.Lanes {
		if lane.ID == id {
			return i
		}
	}
	return -1
}

// findCard returns the lane and index of a card.
func (l Layout) findCard(id string) (int, int) {
	for li, lane := range l.Lanes {
		for ci, card := range lane.Cards {
			if card.ID == id {
				return li, ci
			}
		}
	}
	return -1, -1
}

// nearestLane returns the lane under p or the horizontally closest one.
func (l Layout) nearestLane(p Point) int {
	best, bestDist := -1, math.Inf(1)
	for i, lane := range l.Lanes {
		d := lane.Rect.distanceX(p)
		if d < bestDist {
			best, bestDist = i, d
		}
	}
	return best
}

// HitCard returns the card under p.
func (l Layout) HitCard(p Point) (string, bool) {
	for _, lane := range l.Lanes {
		for _, card := range lane.Cards {
			if card.Rect.Contains(p) {
				return card.ID, true
			}
		}
	}
	return "", false
}

// HitLane returns the lane under p.
func (l Layout) HitLane(p Point) (string, bool) {
	for _, lane := range l.Lanes {
		if lane.Rect.Contains(p) {
			return lane.ID, true
		}
	}
	return "", false
}
