package domain

import (
	"errors"
	"math"
	"math/rand"
	"slices"
	"testing"
)

func nan() float64 { return math.NaN() }

func keyPtr(k OrderKey) *OrderKey { return &k }

func TestAllocatorBetweenBounds(t *testing.T) {
	a := DefaultAllocator()

	got, err := a.Between(nil, nil)
	if err != nil || got != DefaultInitialKey {
		t.Fatalf("Between(nil, nil) = %v, %v; want initial key", got, err)
	}
	got, err = a.Between(keyPtr(2), nil)
	if err != nil || got != 3 {
		t.Fatalf("Between(2, nil) = %v, %v; want 3", got, err)
	}
	got, err = a.Between(nil, keyPtr(2))
	if err != nil || got >= 2 {
		t.Fatalf("Between(nil, 2) = %v, %v; want < 2", got, err)
	}
	got, err = a.Between(keyPtr(1), keyPtr(2))
	if err != nil || got != 1.5 {
		t.Fatalf("Between(1, 2) = %v, %v; want 1.5", got, err)
	}
}

func TestAllocatorBetweenIsStrict(t *testing.T) {
	a := DefaultAllocator()
	r := rand.New(rand.NewSource(7))
	for i := 0; i < 2000; i++ {
		x := OrderKey(r.Float64()*1000 - 500)
		y := OrderKey(r.Float64()*1000 - 500)
		if x == y {
			continue
		}
		prev, next := min(x, y), max(x, y)
		got, err := a.Between(&prev, &next)
		if errors.Is(err, ErrKeyExhausted) {
			continue
		}
		if err != nil {
			t.Fatalf("Between(%v, %v) error = %v", prev, next, err)
		}
		if !(prev < got && got < next) {
			t.Fatalf("Between(%v, %v) = %v; not strictly between", prev, next, got)
		}
	}
}

func TestAllocatorExhaustion(t *testing.T) {
	a := DefaultAllocator()
	prev := OrderKey(1)
	next := OrderKey(math.Nextafter(1, 2))
	if _, err := a.Between(&prev, &next); !errors.Is(err, ErrKeyExhausted) {
		t.Fatalf("expected ErrKeyExhausted for adjacent floats, got %v", err)
	}
	if _, err := a.Between(keyPtr(2), keyPtr(2)); !errors.Is(err, ErrKeyExhausted) {
		t.Fatalf("expected ErrKeyExhausted for equal neighbours, got %v", err)
	}
	if _, err := a.Between(keyPtr(3), keyPtr(2)); !errors.Is(err, ErrKeyExhausted) {
		t.Fatalf("expected ErrKeyExhausted for inverted neighbours, got %v", err)
	}
	huge := OrderKey(math.MaxFloat64)
	if _, err := a.Between(&huge, nil); !errors.Is(err, ErrKeyExhausted) {
		t.Fatalf("expected ErrKeyExhausted past max float, got %v", err)
	}
}

func TestAllocatorRepeatedHalvingEventuallyExhausts(t *testing.T) {
	a := DefaultAllocator()
	prev, next := OrderKey(1), OrderKey(2)
	for i := 0; i < 200; i++ {
		k, err := a.Between(&prev, &next)
		if errors.Is(err, ErrKeyExhausted) {
			return
		}
		if err != nil {
			t.Fatalf("Between() error = %v", err)
		}
		next = k
	}
	t.Fatal("expected exhaustion after repeated halving")
}

func TestAllocatorSpread(t *testing.T) {
	a, err := NewAllocator(10, 5)
	if err != nil {
		t.Fatalf("NewAllocator() error = %v", err)
	}
	got := a.Spread(3)
	if !slices.Equal(got, []OrderKey{10, 15, 20}) {
		t.Fatalf("unexpected spread %v", got)
	}
	if _, err := NewAllocator(1, 0); err != ErrInvalidStep {
		t.Fatalf("expected ErrInvalidStep, got %v", err)
	}
}

func TestCompareOrderTieBreaksByID(t *testing.T) {
	if CompareOrder(1, "b", 1, "a") <= 0 {
		t.Fatal("expected id tie-break for equal keys")
	}
	if CompareOrder(1, "z", 2, "a") >= 0 {
		t.Fatal("expected key to dominate id")
	}
}
