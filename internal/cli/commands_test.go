package cli

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/coffeematch/internal/engine"
	"github.com/roach88/coffeematch/internal/model"
)

func TestSubscribeAndList(t *testing.T) {
	db := tempDB(t)

	out, err := execute(t, db, "subscribe", "u1", "--name", "Ada", "--username", "ada")
	require.NoError(t, err)
	assert.Contains(t, out, "Subscribed")

	_, err = execute(t, db, "subscribe", "u2")
	require.NoError(t, err)

	out, err = execute(t, db, "--format", "json", "subscribers")
	require.NoError(t, err)
	var subs []model.Participant
	decodeData(t, out, &subs)
	require.Len(t, subs, 2)
	assert.Equal(t, "u1", subs[0].ID)
	assert.Equal(t, "Ada", subs[0].DisplayName)
}

func TestSubscribers_EmptyIsArray(t *testing.T) {
	out, err := execute(t, tempDB(t), "--format", "json", "subscribers")
	require.NoError(t, err)

	var resp map[string]json.RawMessage
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.JSONEq(t, "[]", string(resp["data"]))
}

func TestUnsubscribe_Twice(t *testing.T) {
	db := tempDB(t)
	_, err := execute(t, db, "subscribe", "u1")
	require.NoError(t, err)

	_, err = execute(t, db, "unsubscribe", "u1")
	require.NoError(t, err)

	out, err := execute(t, db, "--format", "json", "unsubscribe", "u1")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.True(t, engine.IsInvalidTransition(err))

	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	require.NotNil(t, resp.Error)
	assert.Equal(t, string(engine.ErrCodeInvalidTransition), resp.Error.Code)
}

func TestStatus_UnknownParticipant(t *testing.T) {
	_, err := execute(t, tempDB(t), "status", "nobody")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestRoundLifecycle(t *testing.T) {
	db := tempDB(t)
	for _, id := range []string{"u1", "u2"} {
		_, err := execute(t, db, "subscribe", id)
		require.NoError(t, err)
	}

	out, err := execute(t, db, "--format", "json", "round", "2025-03")
	require.NoError(t, err)
	var round engine.RoundResult
	decodeData(t, out, &round)
	assert.Equal(t, "2025-03", round.PeriodKey)
	assert.Equal(t, 2, round.SubscriberCount)
	assert.Equal(t, 1, round.PairsCreated)
	assert.Equal(t, 2, round.NotificationsSent)

	out, err = execute(t, db, "round", "2025-03")
	require.NoError(t, err)
	assert.Contains(t, out, "already completed")

	out, err = execute(t, db, "--format", "json", "followups", "2025-03")
	require.NoError(t, err)
	var dispatch engine.DispatchResult
	decodeData(t, out, &dispatch)
	assert.Equal(t, 2, dispatch.Created)

	out, err = execute(t, db, "--format", "json", "status", "u1")
	require.NoError(t, err)
	var st engine.ParticipantStatus
	decodeData(t, out, &st)
	require.NotNil(t, st.Current)
	require.NotNil(t, st.Current.FollowUp)
	assert.Equal(t, model.FollowUpPending, st.Current.FollowUp.State)

	out, err = execute(t, db, "--format", "json", "answer", st.Current.FollowUp.ID, "no")
	require.NoError(t, err)
	var ans engine.AnswerResult
	decodeData(t, out, &ans)
	assert.Equal(t, "u1", ans.Outcome.ParticipantID)
	assert.Equal(t, 1, ans.Outcome.ConsecutiveMisses)

	_, err = execute(t, db, "answer", st.Current.FollowUp.ID, "yes")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	out, err = execute(t, db, "--format", "json", "status")
	require.NoError(t, err)
	var sys engine.Status
	decodeData(t, out, &sys)
	assert.Equal(t, 2, sys.SubscriberCount)
	require.NotNil(t, sys.LastRound)
	assert.Equal(t, "2025-03", sys.LastRound.PeriodKey)
	assert.Equal(t, 1, sys.LastRound.Matches)
}

func TestAnswer_BadValue(t *testing.T) {
	_, err := execute(t, tempDB(t), "answer", "f1", "maybe")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestRound_InvalidPeriod(t *testing.T) {
	_, err := execute(t, tempDB(t), "round", "March")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestEnqueue_RequiresRedis(t *testing.T) {
	_, err := execute(t, tempDB(t), "enqueue", "round", "2025-03")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "redis")
}

func TestEnqueue_UnknownJob(t *testing.T) {
	_, err := execute(t, tempDB(t), "enqueue", "lunch")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}
