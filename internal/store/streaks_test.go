package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/coffeematch/internal/model"
)

func TestGetStreak_DefaultsToZero(t *testing.T) {
	s := createTestStore(t)

	streak, err := s.GetStreak(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, model.MeetingStreak{ParticipantID: "u1"}, streak)
}

func TestSaveStreak_Upserts(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	subscribeAll(t, s, "u1")

	require.NoError(t, s.SaveStreak(ctx, model.MeetingStreak{ParticipantID: "u1", ConsecutiveMisses: 1, LastUpdatedPeriod: "2025-01"}))
	require.NoError(t, s.SaveStreak(ctx, model.MeetingStreak{ParticipantID: "u1", ConsecutiveMisses: 2, LastUpdatedPeriod: "2025-02"}))

	streak, err := s.GetStreak(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 2, streak.ConsecutiveMisses)
	assert.Equal(t, "2025-02", streak.LastUpdatedPeriod)
}

func TestListSubscribedOverThreshold(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	subscribeAll(t, s, "a", "b", "c")
	_, err := s.SetSubscribed(ctx, "c", false)
	require.NoError(t, err)

	for id, misses := range map[string]int{"a": 3, "b": 1, "c": 5} {
		require.NoError(t, s.SaveStreak(ctx, model.MeetingStreak{ParticipantID: id, ConsecutiveMisses: misses}))
	}

	over, err := s.ListSubscribedOverThreshold(ctx, 3)
	require.NoError(t, err)
	require.Len(t, over, 1)
	assert.Equal(t, "a", over[0].ParticipantID)
}

func TestInsertRematchRequest_Once(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	subscribeAll(t, s, "a", "b")
	matches := createTestRound(t, s, "r1", "2025-01", []string{"a", "b"})

	req := model.RematchRequest{MatchID: matches[0].ID, ParticipantID: "a", RequestedAt: testNow}
	inserted, err := s.InsertRematchRequest(ctx, req)
	require.NoError(t, err)
	assert.True(t, inserted)

	inserted, err = s.InsertRematchRequest(ctx, req)
	require.NoError(t, err)
	assert.False(t, inserted)

	n, err := s.CountRematchRequests(ctx, matches[0].ID)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}
