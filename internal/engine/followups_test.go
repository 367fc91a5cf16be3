package engine

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/coffeematch/internal/model"
	"github.com/roach88/coffeematch/internal/notify"
	"github.com/roach88/coffeematch/internal/store"
)

var jan7 = time.Date(2025, time.January, 7, 10, 0, 0, 0, time.UTC)

func TestDispatchFollowUps_OnePerMember(t *testing.T) {
	f := newFixture(t)
	f.subscribe(t, "a", "b", "c", "d", "e")
	f.runRound(t, "2025-01")
	f.gw.Reset()
	f.clock.Set(jan7)

	res, err := f.engine.DispatchFollowUps(context.Background(), "2025-01")
	require.NoError(t, err)

	assert.Equal(t, 5, res.Created)
	assert.Equal(t, 5, res.NotificationsSent)
	assert.Equal(t, 5, f.gw.Count(notify.KindFollowUpPrompt))

	fus := f.followUps(t, "2025-01")
	require.Len(t, fus, 5)
	for _, fu := range fus {
		assert.Equal(t, model.FollowUpPending, fu.State)
		assert.True(t, jan7.Equal(fu.DispatchedAt))
	}

	prompt := f.gw.To("a")[0].(notify.FollowUpPrompt)
	assert.Equal(t, f.followUpOf(t, "2025-01", "a").ID, prompt.FollowUpID)
	assert.NotEmpty(t, prompt.Partners)
}

func TestDispatchFollowUps_NoRound(t *testing.T) {
	f := newFixture(t)
	_, err := f.engine.DispatchFollowUps(context.Background(), "2025-01")
	assert.True(t, IsNotFound(err), "%v", err)
}

func TestDispatchFollowUps_RepeatSkipsAnswered(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.subscribe(t, "a", "b")
	f.runRound(t, "2025-01")
	_, err := f.engine.DispatchFollowUps(ctx, "2025-01")
	require.NoError(t, err)

	_, err = f.engine.RecordAnswer(ctx, f.followUpOf(t, "2025-01", "a").ID, model.AnswerYes)
	require.NoError(t, err)
	f.gw.Reset()

	res, err := f.engine.DispatchFollowUps(ctx, "2025-01")
	require.NoError(t, err)

	assert.Equal(t, 0, res.Created)
	assert.Equal(t, 1, res.Reprompted)
	assert.Equal(t, 1, res.Skipped)
	assert.Len(t, f.followUps(t, "2025-01"), 2)
	assert.Empty(t, f.gw.To("a"))
	assert.Len(t, f.gw.To("b"), 1)
}

func TestDispatchFollowUps_RepromptKeepsDispatchTime(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.subscribe(t, "a", "b")
	f.runRound(t, "2025-01")
	f.clock.Set(jan7)
	_, err := f.engine.DispatchFollowUps(ctx, "2025-01")
	require.NoError(t, err)

	f.clock.Advance(DefaultAnswerWindow - time.Hour)
	res, err := f.engine.DispatchFollowUps(ctx, "2025-01")
	require.NoError(t, err)
	assert.Equal(t, 2, res.Reprompted)
	assert.True(t, jan7.Equal(f.followUpOf(t, "2025-01", "a").DispatchedAt))

	f.clock.Advance(2 * time.Hour)
	check, err := f.engine.RunInactivityCheck(ctx, "2025-01")
	require.NoError(t, err)
	assert.Equal(t, 2, check.Expired, "window counts from the first prompt")
}

func TestRecordAnswer_TransitionsOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.subscribe(t, "a", "b")
	f.runRound(t, "2025-01")
	_, err := f.engine.DispatchFollowUps(ctx, "2025-01")
	require.NoError(t, err)
	id := f.followUpOf(t, "2025-01", "a").ID

	res, err := f.engine.RecordAnswer(ctx, id, model.AnswerYes)
	require.NoError(t, err)
	assert.Equal(t, model.FollowUpAnsweredYes, res.FollowUp.State)
	assert.Equal(t, "2025-01", res.PeriodKey)
	assert.True(t, res.Outcome.Applied)

	_, err = f.engine.RecordAnswer(ctx, id, model.AnswerNo)
	assert.True(t, IsInvalidTransition(err), "%v", err)

	fu := f.followUpOf(t, "2025-01", "a")
	assert.Equal(t, model.FollowUpAnsweredYes, fu.State, "state unchanged by stale answer")
	assert.Equal(t, 0, f.streak(t, "a").ConsecutiveMisses)
}

func TestRecordAnswer_Errors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.engine.RecordAnswer(ctx, "missing", model.AnswerYes)
	assert.True(t, IsNotFound(err))

	_, err = f.engine.RecordAnswer(ctx, "missing", model.Answer("maybe"))
	assert.True(t, IsInvalidArgument(err))
}

// setStreak seeds a streak as if earlier periods had been missed.
func setStreak(t *testing.T, s *store.Store, id string, misses int, period string) {
	t.Helper()
	require.NoError(t, s.SaveStreak(context.Background(), model.MeetingStreak{
		ParticipantID: id, ConsecutiveMisses: misses, LastUpdatedPeriod: period,
	}))
}

func TestRecordAnswer_NoAtThresholdUnsubscribes(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.subscribe(t, "a", "b")
	setStreak(t, f.store, "a", 2, "2024-12")
	f.runRound(t, "2025-01")
	_, err := f.engine.DispatchFollowUps(ctx, "2025-01")
	require.NoError(t, err)
	f.gw.Reset()

	res, err := f.engine.RecordAnswer(ctx, f.followUpOf(t, "2025-01", "a").ID, model.AnswerNo)
	require.NoError(t, err)

	assert.True(t, res.Outcome.Unsubscribed)
	assert.Equal(t, 0, res.Outcome.ConsecutiveMisses)
	assert.False(t, f.participant(t, "a").Subscribed)
	assert.Equal(t, 0, f.streak(t, "a").ConsecutiveMisses)

	payloads := f.gw.To("a")
	require.Len(t, payloads, 1)
	assert.Equal(t, notify.InactivityNotice{Misses: 3}, payloads[0])
}

func TestRecordAnswer_YesAtTwoResets(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.subscribe(t, "a", "b")
	setStreak(t, f.store, "a", 2, "2024-12")
	f.runRound(t, "2025-01")
	_, err := f.engine.DispatchFollowUps(ctx, "2025-01")
	require.NoError(t, err)

	res, err := f.engine.RecordAnswer(ctx, f.followUpOf(t, "2025-01", "a").ID, model.AnswerYes)
	require.NoError(t, err)

	assert.False(t, res.Outcome.Unsubscribed)
	assert.True(t, f.participant(t, "a").Subscribed)
	assert.Equal(t, 0, f.streak(t, "a").ConsecutiveMisses)
	assert.Equal(t, 0, f.gw.Count(notify.KindInactivityNotice))
}

func TestRecordAnswer_ConcurrentSameFollowUp(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.subscribe(t, "a", "b")
	f.runRound(t, "2025-01")
	_, err := f.engine.DispatchFollowUps(ctx, "2025-01")
	require.NoError(t, err)
	id := f.followUpOf(t, "2025-01", "a").ID

	var (
		wg             sync.WaitGroup
		applied, stale atomic.Int32
	)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.engine.RecordAnswer(ctx, id, model.AnswerNo)
			switch {
			case err == nil:
				applied.Add(1)
			case IsInvalidTransition(err):
				stale.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), applied.Load())
	assert.Equal(t, int32(9), stale.Load())
	assert.Equal(t, 1, f.streak(t, "a").ConsecutiveMisses)
}

func TestRecordAnswer_ConcurrentDifferentFollowUps(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.subscribe(t, "a", "b", "c", "d", "e", "f")
	f.runRound(t, "2025-01")
	_, err := f.engine.DispatchFollowUps(ctx, "2025-01")
	require.NoError(t, err)

	fus := f.followUps(t, "2025-01")
	var wg sync.WaitGroup
	errs := make([]error, len(fus))
	for i, fu := range fus {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = f.engine.RecordAnswer(ctx, fu.ID, model.AnswerYes)
		}()
	}
	wg.Wait()

	for _, err := range errs {
		assert.NoError(t, err)
	}
	for _, fu := range f.followUps(t, "2025-01") {
		assert.Equal(t, model.FollowUpAnsweredYes, fu.State)
	}
}
