package pairing

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/roach88/coffeematch/internal/model"
)

func entry(a, b, round string) model.HistoryEntry {
	return model.HistoryEntry{Pair: model.NewPairKey(a, b), RoundID: round}
}

func TestHistory_CountsAreOrderIndependent(t *testing.T) {
	h := NewHistory([]model.HistoryEntry{
		entry("a", "b", "r1"),
		entry("b", "a", "r2"),
		entry("a", "c", "r2"),
	})

	assert.Equal(t, 2, h.PairCount("a", "b"))
	assert.Equal(t, 2, h.PairCount("b", "a"))
	assert.Equal(t, 1, h.PairCount("c", "a"))
	assert.Equal(t, 0, h.PairCount("b", "c"))
	assert.True(t, h.HasBeenPaired("c", "a"))
	assert.False(t, h.HasBeenPaired("b", "c"))
	assert.Equal(t, 2, h.Len())
}

func TestHistory_PairCountFor(t *testing.T) {
	h := NewHistory([]model.HistoryEntry{
		entry("a", "b", "r1"),
		entry("a", "b", "r2"),
		entry("c", "a", "r3"),
		entry("b", "c", "r3"),
	})

	assert.Equal(t, map[string]int{"b": 2, "c": 1}, h.PairCountFor("a"))
	assert.Empty(t, h.PairCountFor("z"))
}

func TestHistory_NilIsEmpty(t *testing.T) {
	var h *History
	assert.Equal(t, 0, h.PairCount("a", "b"))
	assert.Empty(t, h.PairCountFor("a"))
}
