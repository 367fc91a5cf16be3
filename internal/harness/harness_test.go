package harness

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScenarios_Pass(t *testing.T) {
	files, err := filepath.Glob("testdata/scenarios/*.yaml")
	require.NoError(t, err)
	require.NotEmpty(t, files)

	for _, file := range files {
		t.Run(filepath.Base(file), func(t *testing.T) {
			scenario, err := LoadScenario(file)
			require.NoError(t, err)

			result, err := Run(scenario)
			require.NoError(t, err)
			assert.True(t, result.Pass, "errors: %v", result.Errors)
			assert.Len(t, result.Trace, len(scenario.Steps))
		})
	}
}

func TestThreeStrikes_Golden(t *testing.T) {
	scenario, err := LoadScenario("testdata/scenarios/three-strikes.yaml")
	require.NoError(t, err)

	result, err := RunWithGolden(t, scenario)
	require.NoError(t, err)
	assert.True(t, result.Pass)
}

func TestRun_Deterministic(t *testing.T) {
	scenario, err := LoadScenario("testdata/scenarios/odd-group-delivery.yaml")
	require.NoError(t, err)

	first, err := Run(scenario)
	require.NoError(t, err)
	second, err := Run(scenario)
	require.NoError(t, err)

	a, err := Snapshot(scenario, first)
	require.NoError(t, err)
	b, err := Snapshot(scenario, second)
	require.NoError(t, err)
	assert.Equal(t, string(a), string(b))
}

func TestRun_FailedExpectationIsReported(t *testing.T) {
	scenario, err := ParseScenario([]byte(`
name: wrong-expectation
description: expects three pairs from two subscribers
steps:
  - subscribe: [u1, u2]
  - round: "2025-01"
    expect:
      result: {pairs: 3}
  - unsubscribe: u9
assertions:
  - {type: subscriber_count, count: 5}
`))
	require.NoError(t, err)

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 3)
	assert.Contains(t, result.Errors[0], "pairs: expected 3, got 1")
	assert.Contains(t, result.Errors[1], "unexpected error INVALID_TRANSITION")
	assert.Contains(t, result.Errors[2], "subscribers: expected 5, got 2")
}

func TestRun_TraceRecordsErrorsAndNotifications(t *testing.T) {
	scenario, err := ParseScenario([]byte(`
name: lonely
description: a single subscriber gets no match
unreachable: [u2]
steps:
  - subscribe: [u1]
  - round: "2025-01"
    expect:
      result: {subscribers: 1, pairs: 0, sent: 0}
  - subscribe: [u2, u3]
  - round: "2025-02"
    at: "2025-02-01T10:00:00Z"
  - follow_ups: "2025-01"
    expect:
      result: {created: 0, sent: 0}
`))
	require.NoError(t, err)

	result, err := Run(scenario)
	require.NoError(t, err)
	require.True(t, result.Pass, "errors: %v", result.Errors)

	round := result.Trace[3]
	assert.Equal(t, "round", round.Op)
	assert.Equal(t, 1, round.Result["pairs"])
	assert.Equal(t, map[string]int{"match_assigned": 2}, round.Sent)
	assert.Equal(t, map[string]int{"match_assigned": 1}, round.Failed)

	// The 2025-01 round completed with no matches, so dispatching its
	// follow-ups is a no-op rather than NOT_FOUND.
	assert.Empty(t, result.Trace[4].Error)
	assert.Nil(t, result.Trace[4].Sent)
}
