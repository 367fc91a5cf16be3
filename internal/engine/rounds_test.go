package engine

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/coffeematch/internal/lock"
	"github.com/roach88/coffeematch/internal/notify"
)

func TestRunRound_GroupCounts(t *testing.T) {
	for n := 2; n <= 9; n++ {
		t.Run(fmt.Sprintf("n=%d", n), func(t *testing.T) {
			f := newFixture(t)
			for i := 0; i < n; i++ {
				f.subscribe(t, fmt.Sprintf("p%d", i))
			}

			res := f.runRound(t, "2025-01")

			assert.Equal(t, n, res.SubscriberCount)
			assert.Equal(t, n/2, res.PairsCreated)
			assert.Equal(t, n, res.NotificationsSent)

			triples := 0
			for _, m := range f.matches(t, "2025-01") {
				if m.IsTriple() {
					triples++
				}
			}
			assert.Equal(t, n%2, triples)
		})
	}
}

func TestRunRound_SingleSubscriberCreatesNothing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.subscribe(t, "a")

	res := f.runRound(t, "2025-01")

	assert.Equal(t, 1, res.SubscriberCount)
	assert.Equal(t, 0, res.PairsCreated)
	assert.Equal(t, 0, res.NotificationsSent)
	assert.Empty(t, f.matches(t, "2025-01"))
	history, err := f.store.ListHistory(ctx)
	require.NoError(t, err)
	assert.Empty(t, history)
	assert.Empty(t, f.gw.Delivered())

	// The empty round is still recorded; a repeat is a no-op.
	again := f.runRound(t, "2025-01")
	assert.True(t, again.AlreadyCompleted)
}

func TestRunRound_NoSubscribers(t *testing.T) {
	f := newFixture(t)
	res := f.runRound(t, "2025-01")
	assert.Equal(t, 0, res.SubscriberCount)
	assert.Equal(t, 0, res.PairsCreated)
}

func TestRunRound_IdempotentRepeat(t *testing.T) {
	f := newFixture(t)
	f.subscribe(t, "a", "b")

	first := f.runRound(t, "2025-01")
	assert.Equal(t, 1, first.PairsCreated)
	assert.Equal(t, 2, first.NotificationsSent)
	assert.False(t, first.AlreadyCompleted)

	second := f.runRound(t, "2025-01")
	assert.Equal(t, 1, second.PairsCreated)
	assert.Equal(t, 0, second.NotificationsSent)
	assert.True(t, second.AlreadyCompleted)
	assert.Equal(t, first.RoundID, second.RoundID)

	assert.Len(t, f.gw.Delivered(), 2, "repeat never re-notifies")
	assert.Len(t, f.matches(t, "2025-01"), 1)
}

func TestRunRound_RepeatReportsLiveSubscriberCount(t *testing.T) {
	f := newFixture(t)
	f.subscribe(t, "a", "b")
	f.runRound(t, "2025-01")

	f.subscribe(t, "c", "d")
	res := f.runRound(t, "2025-01")

	assert.Equal(t, 4, res.SubscriberCount)
	assert.Equal(t, 1, res.PairsCreated)
}

func TestRunRound_TripleRecordsThreeHistoryEntries(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.subscribe(t, "a", "b", "c")

	res := f.runRound(t, "2025-01")
	require.Equal(t, 1, res.PairsCreated)

	matches := f.matches(t, "2025-01")
	require.Len(t, matches, 1)
	assert.True(t, matches[0].IsTriple())

	history, err := f.store.ListRoundHistory(ctx, res.RoundID)
	require.NoError(t, err)
	require.Len(t, history, 3)
	for _, pair := range [][2]string{{"a", "b"}, {"a", "c"}, {"b", "c"}} {
		paired, err := f.store.HasBeenPaired(ctx, pair[0], pair[1])
		require.NoError(t, err)
		assert.True(t, paired, "%v", pair)
	}

	// Every member of the triple hears about both partners.
	for _, id := range []string{"a", "b", "c"} {
		payloads := f.gw.To(id)
		require.Len(t, payloads, 1)
		assigned := payloads[0].(notify.MatchAssigned)
		assert.Len(t, assigned.Partners, 2)
		assert.Equal(t, "2025-01", assigned.PeriodKey)
	}
}

func TestRunRound_SecondRoundAvoidsRepeats(t *testing.T) {
	for seed := uint64(0); seed < 25; seed++ {
		t.Run(fmt.Sprintf("seed=%d", seed), func(t *testing.T) {
			f := newFixture(t, WithRand(rand.New(rand.NewPCG(seed, seed+1))))
			f.subscribe(t, "A", "B", "C", "D")

			f.runRound(t, "2025-01")
			first := f.matches(t, "2025-01")
			f.runRound(t, "2025-02")
			second := f.matches(t, "2025-02")

			require.Len(t, first, 2)
			require.Len(t, second, 2)
			seen := map[string]bool{}
			for _, m := range first {
				seen[m.Pairs()[0].Lo+"-"+m.Pairs()[0].Hi] = true
			}
			for _, m := range second {
				key := m.Pairs()[0].Lo + "-" + m.Pairs()[0].Hi
				assert.False(t, seen[key], "pair %s repeated", key)
			}
		})
	}
}

func TestRunRound_ExhaustedPairsStillMatch(t *testing.T) {
	f := newFixture(t)
	f.subscribe(t, "A", "B")

	for i, period := range []string{"2025-01", "2025-02", "2025-03"} {
		res := f.runRound(t, period)
		assert.Equal(t, 1, res.PairsCreated, "round %d", i)
	}
	counts, err := f.store.PairCountFor(context.Background(), "A")
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"B": 3}, counts)
}

func TestRunRound_DeliveryFailureMarksUnreachable(t *testing.T) {
	f := newFixture(t)
	f.subscribe(t, "a", "b", "c", "d")
	f.gw.FailFor("b", nil)

	res := f.runRound(t, "2025-01")

	assert.Equal(t, 2, res.PairsCreated)
	assert.Equal(t, 3, res.NotificationsSent)
	assert.Equal(t, 1, res.DeliveryFailures)
	assert.False(t, f.participant(t, "b").Reachable)
	assert.True(t, f.participant(t, "a").Reachable)
	assert.Len(t, f.matches(t, "2025-01"), 2, "matches survive failed delivery")

	// Next round reaches b again and restores the flag.
	f.gw.Heal("b")
	f.runRound(t, "2025-02")
	assert.True(t, f.participant(t, "b").Reachable)
}

func TestRunRound_TransientFailureKeepsReachable(t *testing.T) {
	f := newFixture(t)
	f.subscribe(t, "a", "b")
	f.gw.FailFor("b", errors.New("gateway timeout"))

	res := f.runRound(t, "2025-01")

	assert.Equal(t, 1, res.NotificationsSent)
	assert.Equal(t, 1, res.DeliveryFailures)
	assert.True(t, f.participant(t, "b").Reachable)
}

func TestRunRound_InvalidPeriod(t *testing.T) {
	f := newFixture(t)
	for _, period := range []string{"", "2025", "2025-13", "Jan 2025"} {
		_, err := f.engine.RunRound(context.Background(), period)
		assert.True(t, IsInvalidArgument(err), "period %q: %v", period, err)
	}
}

func TestRunRound_ConflictWhilePeriodLocked(t *testing.T) {
	locker := lock.NewLocal()
	f := newFixture(t, WithLocker(locker))
	ctx := context.Background()
	f.subscribe(t, "a", "b")

	lease, err := locker.Obtain(ctx, "round:2025-01", time.Minute)
	require.NoError(t, err)

	_, err = f.engine.RunRound(ctx, "2025-01")
	assert.True(t, IsConflict(err))
	_, err = f.store.GetRoundByPeriod(ctx, "2025-01")
	assert.Error(t, err, "no round created while locked")

	require.NoError(t, lease.Release(ctx))
	res := f.runRound(t, "2025-01")
	assert.Equal(t, 1, res.PairsCreated)
}

func TestRunRound_StorageFailure(t *testing.T) {
	f := newFixture(t)
	f.subscribe(t, "a", "b")
	require.NoError(t, f.store.Close())

	_, err := f.engine.RunRound(context.Background(), "2025-01")
	assert.True(t, IsStorageFailure(err), "%v", err)
	assert.Empty(t, f.gw.Delivered())
}

func TestRunRound_UnsubscribedAreNotMatched(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.subscribe(t, "a", "b", "c")
	require.NoError(t, f.engine.Unsubscribe(ctx, "c"))

	res := f.runRound(t, "2025-01")
	assert.Equal(t, 2, res.SubscriberCount)
	for _, m := range f.matches(t, "2025-01") {
		assert.False(t, m.Has("c"))
	}
}
