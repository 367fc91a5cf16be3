package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/coffeematch/internal/model"
)

func TestUpsertSubscribed_CreatesParticipant(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	err := s.UpsertSubscribed(ctx, "u1", model.Profile{DisplayName: "Ada", Username: "ada"}, testNow)
	require.NoError(t, err)

	p, err := s.GetParticipant(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "Ada", p.DisplayName)
	assert.Equal(t, "ada", p.Username)
	assert.True(t, p.Subscribed)
	assert.True(t, p.Reachable)
	require.NotNil(t, p.SubscribedAt)
	assert.True(t, testNow.Equal(*p.SubscribedAt))
	assert.True(t, testNow.Equal(p.CreatedAt))
}

func TestUpsertSubscribed_RefreshesProfileKeepsSubscribedAt(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.UpsertSubscribed(ctx, "u1", model.Profile{DisplayName: "Ada", Username: "ada"}, testNow))
	later := testNow.Add(time.Hour)
	require.NoError(t, s.UpsertSubscribed(ctx, "u1", model.Profile{DisplayName: "Ada L."}, later))

	p, err := s.GetParticipant(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "Ada L.", p.DisplayName)
	assert.Equal(t, "ada", p.Username, "empty username keeps stored value")
	assert.True(t, testNow.Equal(*p.SubscribedAt), "already subscribed keeps original subscribed_at")
}

func TestUpsertSubscribed_ResubscribeRestoresReachable(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	subscribeAll(t, s, "u1")
	require.NoError(t, s.SetReachable(ctx, "u1", false))
	changed, err := s.SetSubscribed(ctx, "u1", false)
	require.NoError(t, err)
	require.True(t, changed)

	later := testNow.Add(24 * time.Hour)
	require.NoError(t, s.UpsertSubscribed(ctx, "u1", model.Profile{}, later))

	p, err := s.GetParticipant(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, p.Subscribed)
	assert.True(t, p.Reachable)
	assert.True(t, later.Equal(*p.SubscribedAt))
}

func TestSetSubscribed_NoChangeWhenAlreadyInState(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	subscribeAll(t, s, "u1")

	changed, err := s.SetSubscribed(ctx, "u1", true)
	require.NoError(t, err)
	assert.False(t, changed)

	changed, err = s.SetSubscribed(ctx, "missing", false)
	require.NoError(t, err)
	assert.False(t, changed)
}

func TestGetParticipant_NotFound(t *testing.T) {
	s := createTestStore(t)

	_, err := s.GetParticipant(context.Background(), "nobody")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListSubscribers_OrderedAndFiltered(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	subscribeAll(t, s, "c", "a", "b")
	_, err := s.SetSubscribed(ctx, "b", false)
	require.NoError(t, err)

	subs, err := s.ListSubscribers(ctx)
	require.NoError(t, err)
	require.Len(t, subs, 2)
	assert.Equal(t, "a", subs[0].ID)
	assert.Equal(t, "c", subs[1].ID)

	n, err := s.CountSubscribers(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}
