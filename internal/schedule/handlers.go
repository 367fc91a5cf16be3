package schedule

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/roach88/coffeematch/internal/engine"
	"github.com/roach88/coffeematch/internal/model"
)

// Jobs is the part of the engine the handlers drive.
type Jobs interface {
	RunRound(ctx context.Context, periodKey string) (engine.RoundResult, error)
	DispatchFollowUps(ctx context.Context, periodKey string) (engine.DispatchResult, error)
	RunInactivityCheck(ctx context.Context, periodKey string) (engine.InactivityResult, error)
	Now() time.Time
}

// Handlers turns lifecycle tasks into engine calls.
type Handlers struct {
	jobs   Jobs
	loc    *time.Location
	logger *slog.Logger
}

// NewHandlers creates task handlers. Periods derived from the clock are
// computed in loc.
func NewHandlers(jobs Jobs, loc *time.Location, logger *slog.Logger) *Handlers {
	if loc == nil {
		loc = time.UTC
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Handlers{jobs: jobs, loc: loc, logger: logger}
}

// Mux registers the handlers on a fresh asynq.ServeMux.
func (h *Handlers) Mux() *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.HandleFunc(TypeRound, h.HandleRound)
	mux.HandleFunc(TypeFollowUp, h.HandleFollowUp)
	mux.HandleFunc(TypeInactivity, h.HandleInactivity)
	return mux
}

// HandleRound runs the matching round for the task's period, defaulting to
// the current month.
func (h *Handlers) HandleRound(ctx context.Context, t *asynq.Task) error {
	period, err := h.period(t, false)
	if err != nil {
		return err
	}
	res, err := h.jobs.RunRound(ctx, period)
	if err != nil {
		return h.fail(t, period, err)
	}
	h.logger.Info("round finished",
		"period", period,
		"subscribers", res.SubscriberCount,
		"pairs", res.PairsCreated,
		"sent", res.NotificationsSent,
		"failed", res.DeliveryFailures,
		"already_completed", res.AlreadyCompleted,
	)
	return nil
}

// HandleFollowUp dispatches follow-ups for the task's period, defaulting to
// the current month.
func (h *Handlers) HandleFollowUp(ctx context.Context, t *asynq.Task) error {
	period, err := h.period(t, false)
	if err != nil {
		return err
	}
	res, err := h.jobs.DispatchFollowUps(ctx, period)
	if err != nil {
		return h.fail(t, period, err)
	}
	h.logger.Info("follow-ups dispatched",
		"period", period,
		"created", res.Created,
		"reprompted", res.Reprompted,
		"skipped", res.Skipped,
		"failed", res.DeliveryFailures,
	)
	return nil
}

// HandleInactivity runs the inactivity check for the task's period,
// defaulting to the previous month: the check runs after that month's
// follow-ups had their answer window.
func (h *Handlers) HandleInactivity(ctx context.Context, t *asynq.Task) error {
	period, err := h.period(t, true)
	if err != nil {
		return err
	}
	res, err := h.jobs.RunInactivityCheck(ctx, period)
	if err != nil {
		return h.fail(t, period, err)
	}
	h.logger.Info("inactivity check finished",
		"period", period,
		"expired", res.Expired,
		"removed", len(res.Removed),
		"failed", res.DeliveryFailures,
	)
	return nil
}

func (h *Handlers) period(t *asynq.Task, previous bool) (string, error) {
	p, err := parsePayload(t)
	if err != nil {
		return "", fmt.Errorf("%w: %v", asynq.SkipRetry, err)
	}
	if p.PeriodKey != "" {
		return p.PeriodKey, nil
	}
	key := model.PeriodKey(h.jobs.Now().In(h.loc))
	if previous {
		return model.PreviousPeriod(key)
	}
	return key, nil
}

// fail decides whether a failed task is retried. Lock conflicts mean another
// worker is already running the job, so the task succeeds quietly. Bad
// input and missing rounds will not fix themselves and skip retries.
func (h *Handlers) fail(t *asynq.Task, period string, err error) error {
	switch {
	case engine.IsConflict(err):
		h.logger.Info("job already running elsewhere", "task", t.Type(), "period", period)
		return nil
	case engine.IsInvalidArgument(err), engine.IsNotFound(err):
		h.logger.Warn("job skipped", "task", t.Type(), "period", period, "error", err)
		return fmt.Errorf("%w: %v", asynq.SkipRetry, err)
	default:
		h.logger.Error("job failed", "task", t.Type(), "period", period, "error", err)
		return err
	}
}
