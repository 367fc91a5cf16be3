// Package schedule runs the periodic lifecycle jobs on an asynq queue.
//
// Three task types drive the engine: a monthly matching round, the
// follow-up dispatch a week later, and the inactivity check at the start of
// the next month. The Scheduler enqueues them from cron expressions; the
// Server consumes them and calls the engine. A task may carry an explicit
// period key; without one the period is derived from the clock.
package schedule

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
)

// Task types.
const (
	TypeRound      = "round:run"
	TypeFollowUp   = "followup:dispatch"
	TypeInactivity = "inactivity:check"
)

// Queue is the asynq queue all lifecycle tasks use.
const Queue = "coffeematch"

// Payload is the JSON body of every lifecycle task.
type Payload struct {
	PeriodKey string `json:"period_key,omitempty"`
}

// NewTask builds a lifecycle task. An empty periodKey leaves the period to
// the handler's clock.
func NewTask(taskType, periodKey string) (*asynq.Task, error) {
	switch taskType {
	case TypeRound, TypeFollowUp, TypeInactivity:
	default:
		return nil, fmt.Errorf("unknown task type %q", taskType)
	}
	var body []byte
	if periodKey != "" {
		var err error
		body, err = json.Marshal(Payload{PeriodKey: periodKey})
		if err != nil {
			return nil, err
		}
	}
	return asynq.NewTask(taskType, body), nil
}

func parsePayload(t *asynq.Task) (Payload, error) {
	var p Payload
	if len(t.Payload()) == 0 {
		return p, nil
	}
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return p, fmt.Errorf("decode %s payload: %w", t.Type(), err)
	}
	return p, nil
}

// retryDelays are the waits before the first, second and later retries.
var retryDelays = []time.Duration{time.Minute, 2 * time.Minute, 5 * time.Minute}

// RetryDelay is the asynq.RetryDelayFunc for lifecycle tasks.
func RetryDelay(n int, _ error, _ *asynq.Task) time.Duration {
	if n < 0 {
		n = 0
	}
	if n >= len(retryDelays) {
		return retryDelays[len(retryDelays)-1]
	}
	return retryDelays[n]
}
