package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/coffeematch/internal/model"
	"github.com/roach88/coffeematch/internal/notify"
)

func TestGetStatus(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	st, err := f.engine.GetStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, st.SubscriberCount)
	assert.Nil(t, st.LastRound)

	f.subscribe(t, "a", "b", "c", "d", "e")
	f.runRound(t, "2025-01")
	f.runRound(t, "2025-02")
	require.NoError(t, f.engine.Unsubscribe(ctx, "e"))

	st, err = f.engine.GetStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, st.SubscriberCount)
	require.NotNil(t, st.LastRound)
	assert.Equal(t, "2025-02", st.LastRound.PeriodKey)
	assert.Equal(t, model.RoundCompleted, st.LastRound.Status)
	assert.Equal(t, 5, st.LastRound.SubscriberCount)
	assert.Equal(t, 2, st.LastRound.Matches)
}

func TestGetParticipantStatus(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.subscribe(t, "a", "b")
	f.runRound(t, "2025-01")

	st, err := f.engine.GetParticipantStatus(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "a", st.Participant.ID)
	assert.Equal(t, DefaultInactivityThreshold, st.Threshold)
	require.NotNil(t, st.Current)
	assert.Equal(t, "2025-01", st.Current.PeriodKey)
	require.Len(t, st.Current.Partners, 1)
	assert.Equal(t, "b", st.Current.Partners[0].ID)
	assert.Nil(t, st.Current.FollowUp)

	_, err = f.engine.DispatchFollowUps(ctx, "2025-01")
	require.NoError(t, err)
	st, err = f.engine.GetParticipantStatus(ctx, "a")
	require.NoError(t, err)
	require.NotNil(t, st.Current.FollowUp)
	assert.Equal(t, model.FollowUpPending, st.Current.FollowUp.State)
}

func TestGetParticipantStatus_NoMatch(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.subscribe(t, "a")

	st, err := f.engine.GetParticipantStatus(ctx, "a")
	require.NoError(t, err)
	assert.Nil(t, st.Current)

	_, err = f.engine.GetParticipantStatus(ctx, "ghost")
	assert.True(t, IsNotFound(err))
}

func TestRequestRematch(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.subscribe(t, "a", "b", "c", "d")
	f.runRound(t, "2025-01")
	f.gw.Reset()

	var match model.Match
	for _, m := range f.matches(t, "2025-01") {
		if m.Has("a") {
			match = m
		}
	}
	outsider := ""
	for _, id := range []string{"b", "c", "d"} {
		if !match.Has(id) {
			outsider = id
			break
		}
	}

	require.NoError(t, f.engine.RequestRematch(ctx, match.ID, "a"))
	assert.Equal(t, []notify.Payload{notify.RematchAcknowledged{MatchID: match.ID}}, f.gw.To("a"))

	err := f.engine.RequestRematch(ctx, match.ID, "a")
	assert.True(t, IsInvalidTransition(err))
	assert.ErrorContains(t, err, "rematch already requested for match "+match.ID)

	err = f.engine.RequestRematch(ctx, match.ID, outsider)
	assert.True(t, IsNotFound(err))
	assert.ErrorContains(t, err, "participant is not in match "+match.ID)

	err = f.engine.RequestRematch(ctx, "no-such-match", "a")
	assert.True(t, IsNotFound(err))

	n, err := f.store.CountRematchRequests(ctx, match.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}
