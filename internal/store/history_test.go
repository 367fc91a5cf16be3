package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/coffeematch/internal/model"
)

func TestRecordPairing_CanonicalOrder(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	subscribeAll(t, s, "a", "b")
	createTestRound(t, s, "r1", "2025-01")

	require.NoError(t, s.RecordPairing(ctx, "r1", "b", "a", testNow))

	entries, err := s.ListHistory(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, model.PairKey{Lo: "a", Hi: "b"}, entries[0].Pair)

	for _, pair := range [][2]string{{"a", "b"}, {"b", "a"}} {
		paired, err := s.HasBeenPaired(ctx, pair[0], pair[1])
		require.NoError(t, err)
		assert.True(t, paired)
	}
}

func TestRecordPairing_SameRoundIsNoOp(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	subscribeAll(t, s, "a", "b")
	createTestRound(t, s, "r1", "2025-01")

	require.NoError(t, s.RecordPairing(ctx, "r1", "a", "b", testNow))
	require.NoError(t, s.RecordPairing(ctx, "r1", "b", "a", testNow))

	entries, err := s.ListRoundHistory(ctx, "r1")
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestRecordPairing_RejectsSelfPair(t *testing.T) {
	s := createTestStore(t)
	err := s.RecordPairing(context.Background(), "r1", "a", "a", testNow)
	assert.Error(t, err)
}

func TestTripleProducesThreeHistoryEntries(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	subscribeAll(t, s, "a", "b", "c")
	createTestRound(t, s, "r1", "2025-01", []string{"a", "b", "c"})

	entries, err := s.ListRoundHistory(ctx, "r1")
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, model.PairKey{Lo: "a", Hi: "b"}, entries[0].Pair)
	assert.Equal(t, model.PairKey{Lo: "a", Hi: "c"}, entries[1].Pair)
	assert.Equal(t, model.PairKey{Lo: "b", Hi: "c"}, entries[2].Pair)
}

func TestPairCountFor(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	subscribeAll(t, s, "a", "b", "c")
	createTestRound(t, s, "r1", "2025-01", []string{"a", "b"})
	createTestRound(t, s, "r2", "2025-02", []string{"b", "a"})
	createTestRound(t, s, "r3", "2025-03", []string{"c", "a"})

	counts, err := s.PairCountFor(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"b": 2, "c": 1}, counts)

	counts, err = s.PairCountFor(ctx, "c")
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"a": 1}, counts)
}
