package pairing

import "github.com/roach88/coffeematch/internal/model"

// Ledger answers history questions for the pairing algorithm.
type Ledger interface {
	// PairCount returns how many rounds a and b were matched together.
	PairCount(a, b string) int
}

// History is an in-memory snapshot of the History Ledger.
// It is built once per round from the stored entries and never mutated
// by the pairing algorithm.
type History struct {
	counts map[model.PairKey]int
}

// NewHistory builds a snapshot from stored history entries.
func NewHistory(entries []model.HistoryEntry) *History {
	h := &History{counts: make(map[model.PairKey]int, len(entries))}
	for _, e := range entries {
		h.counts[model.NewPairKey(e.Pair.Lo, e.Pair.Hi)]++
	}
	return h
}

// PairCount returns how many rounds a and b were matched together.
func (h *History) PairCount(a, b string) int {
	if h == nil {
		return 0
	}
	return h.counts[model.NewPairKey(a, b)]
}

// HasBeenPaired reports whether a and b were ever matched.
func (h *History) HasBeenPaired(a, b string) bool {
	return h.PairCount(a, b) > 0
}

// PairCountFor returns the pair count of id against every past partner.
func (h *History) PairCountFor(id string) map[string]int {
	out := make(map[string]int)
	if h == nil {
		return out
	}
	for key, n := range h.counts {
		if other := key.Other(id); other != "" {
			out[other] = n
		}
	}
	return out
}

// Len returns the number of distinct pairs in the snapshot.
func (h *History) Len() int {
	if h == nil {
		return 0
	}
	return len(h.counts)
}
