package domain

import (
	"cmp"
	"math"
	"strconv"
)

// OrderKey positions an item among siblings sharing the same parent.
type OrderKey float64

// Default allocator constants.
const (
	DefaultInitialKey OrderKey = 1
	DefaultKeyStep    OrderKey = 1
)

// Valid reports whether the key is a finite number.
func (k OrderKey) Valid() bool {
	f := float64(k)
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

// String formats the key with the shortest exact representation.
func (k OrderKey) String() string {
	return strconv.FormatFloat(float64(k), 'g', -1, 64)
}

// CompareOrder orders siblings by key, falling back to id for equal keys.
func CompareOrder(aKey OrderKey, aID string, bKey OrderKey, bID string) int {
	if c := cmp.Compare(aKey, bKey); c != 0 {
		return c
	}
	return cmp.Compare(aID, bID)
}

// Allocator produces keys for insertions without touching sibling keys.
type Allocator struct {
	Initial OrderKey
	Step    OrderKey
}

// DefaultAllocator returns the allocator used when no configuration is given.
func DefaultAllocator() Allocator {
	return Allocator{Initial: DefaultInitialKey, Step: DefaultKeyStep}
}

// NewAllocator validates and constructs an allocator.
func NewAllocator(initial, step OrderKey) (Allocator, error) {
	if !initial.Valid() {
		return Allocator{}, ErrInvalidOrderKey
	}
	if !step.Valid() || step <= 0 {
		return Allocator{}, ErrInvalidStep
	}
	return Allocator{Initial: initial, Step: step}, nil
}

// Between returns a key strictly between prev and next. A nil bound is open.
func (a Allocator) Between(prev, next *OrderKey) (OrderKey, error) {
	a = a.normalized()
	switch {
	case prev == nil && next == nil:
		return a.Initial, nil
	case next == nil:
		if !prev.Valid() {
			return 0, ErrInvalidOrderKey
		}
		return checkedKey(*prev+a.Step, prev, nil)
	case prev == nil:
		if !next.Valid() {
			return 0, ErrInvalidOrderKey
		}
		return checkedKey(*next-a.Step, nil, next)
	}
	if !prev.Valid() || !next.Valid() {
		return 0, ErrInvalidOrderKey
	}
	if *prev >= *next {
		return 0, ErrKeyExhausted
	}
	mid := *prev + (*next-*prev)/2
	return checkedKey(mid, prev, next)
}

// Spread returns n evenly spaced keys starting at the initial key.
func (a Allocator) Spread(n int) []OrderKey {
	a = a.normalized()
	out := make([]OrderKey, n)
	for i := range out {
		out[i] = a.Initial + OrderKey(i)*a.Step
	}
	return out
}

// normalized fills zero-valued fields with defaults.
func (a Allocator) normalized() Allocator {
	if a.Step <= 0 || !a.Step.Valid() {
		a.Step = DefaultKeyStep
	}
	if !a.Initial.Valid() {
		a.Initial = DefaultInitialKey
	}
	return a
}

// checkedKey rejects candidates that collapsed onto a bound.
func checkedKey(k OrderKey, prev, next *OrderKey) (OrderKey, error) {
	if !k.Valid() {
		return 0, ErrKeyExhausted
	}
	if prev != nil && k <= *prev {
		return 0, ErrKeyExhausted
	}
	if next != nil && k >= *next {
		return 0, ErrKeyExhausted
	}
	return k, nil
}
