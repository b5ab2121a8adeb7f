// Package topk implements the bounded top-K selector used during a linear
// scan of the vector file: a fixed-capacity binary min-heap that keeps the
// K highest-similarity (score, id) pairs seen so far.
package topk

import "container/heap"

// Entry is one retained (score, id) pair.
type Entry struct {
	Score float32
	ID    int32
}

// entryHeap is a min-heap on Score: the root is always the current worst
// of the retained entries, so Offer can reject or evict in O(log K).
type entryHeap []Entry

func (h entryHeap) Len() int { return len(h) }
func (h entryHeap) Less(i, j int) bool {
	if h[i].Score != h[j].Score {
		return h[i].Score < h[j].Score
	}
	// Deterministic tiebreak so Drain's order doesn't depend on offer
	// order when scores are equal.
	return h[i].ID > h[j].ID
}
func (h entryHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *entryHeap) Push(x any) { *h = append(*h, x.(Entry)) }

func (h *entryHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// Selector retains the K highest-scoring entries offered to it.
type Selector struct {
	k int
	h entryHeap
}

// New creates a Selector with fixed capacity k. k must be >= 1.
func New(k int) *Selector {
	if k < 1 {
		k = 1
	}
	return &Selector{k: k, h: make(entryHeap, 0, k)}
}

// Len reports how many entries are currently retained (<= capacity).
func (s *Selector) Len() int { return len(s.h) }

// Offer considers (score, id) for retention: if the selector has spare
// capacity the entry is always kept; once full, it replaces the current
// minimum only if score is strictly greater, and is discarded otherwise.
func (s *Selector) Offer(score float32, id int32) {
	if len(s.h) < s.k {
		heap.Push(&s.h, Entry{Score: score, ID: id})
		return
	}
	if score > s.h[0].Score {
		s.h[0] = Entry{Score: score, ID: id}
		heap.Fix(&s.h, 0)
	}
}

// Drain returns the retained entries sorted strictly descending by score,
// consuming the selector's internal heap. The selector is empty (but
// reusable) afterward.
func (s *Selector) Drain() []Entry {
	n := len(s.h)
	out := make([]Entry, n)
	for i := n - 1; i >= 0; i-- {
		out[i] = heap.Pop(&s.h).(Entry)
	}
	return out
}
