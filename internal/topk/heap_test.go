package topk

import (
	"math/rand"
	"reflect"
	"testing"
)

func drainScores(entries []Entry) []float32 {
	out := make([]float32, len(entries))
	for i, e := range entries {
		out[i] = e.Score
	}
	return out
}

func TestOfferFewerThanCapacityKeepsAll(t *testing.T) {
	s := New(5)
	s.Offer(0.1, 1)
	s.Offer(0.9, 2)
	s.Offer(0.5, 3)

	got := s.Drain()
	if len(got) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(got))
	}
	if !reflect.DeepEqual(drainScores(got), []float32{0.9, 0.5, 0.1}) {
		t.Fatalf("expected descending order, got %v", got)
	}
}

func TestOfferEvictsMinimumWhenFull(t *testing.T) {
	s := New(3)
	for _, sc := range []float32{0.1, 0.2, 0.3} {
		s.Offer(sc, int32(sc*10))
	}
	// 0.05 is below the current minimum (0.1) and should be discarded.
	s.Offer(0.05, 99)
	// 0.25 beats the current minimum (0.1) and should replace it.
	s.Offer(0.25, 100)

	got := s.Drain()
	want := []float32{0.3, 0.25, 0.2}
	if !reflect.DeepEqual(drainScores(got), want) {
		t.Fatalf("got %v want %v", drainScores(got), want)
	}
}

func TestDrainLengthNeverExceedsCapacity(t *testing.T) {
	s := New(10)
	for i := 0; i < 1000; i++ {
		s.Offer(rand.Float32(), int32(i))
	}
	got := s.Drain()
	if len(got) != 10 {
		t.Fatalf("expected capacity-bounded length 10, got %d", len(got))
	}
	for i := 1; i < len(got); i++ {
		if got[i-1].Score < got[i].Score {
			t.Fatalf("result not descending at index %d: %v", i, got)
		}
	}
}

func TestIdempotentUnderReordering(t *testing.T) {
	pairs := []Entry{{0.4, 1}, {0.9, 2}, {0.1, 3}, {0.7, 4}, {0.2, 5}, {0.95, 6}}

	drainWithOrder := func(order []int) []Entry {
		s := New(3)
		for _, idx := range order {
			s.Offer(pairs[idx].Score, pairs[idx].ID)
		}
		return s.Drain()
	}

	a := drainWithOrder([]int{0, 1, 2, 3, 4, 5})
	b := drainWithOrder([]int{5, 3, 1, 4, 2, 0})

	if !reflect.DeepEqual(a, b) {
		t.Fatalf("offer order should not affect the final drain: %v vs %v", a, b)
	}
}

func TestNewClampsCapacityToAtLeastOne(t *testing.T) {
	s := New(0)
	s.Offer(1, 1)
	s.Offer(2, 2)
	got := s.Drain()
	if len(got) != 1 || got[0].Score != 2 {
		t.Fatalf("expected capacity clamped to 1 retaining best score, got %v", got)
	}
}
