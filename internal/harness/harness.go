package harness

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"sort"
	"time"

	"github.com/roach88/coffeematch/internal/engine"
	"github.com/roach88/coffeematch/internal/model"
	"github.com/roach88/coffeematch/internal/store"
	"github.com/roach88/coffeematch/internal/testutil"
)

// Harness executes one scenario.
type Harness struct {
	store  *store.Store
	engine *engine.Engine
	clock  *testutil.FixedClock
	gw     *testutil.Recorder

	// sent accumulates delivered notifications by kind across steps.
	sent map[string]int
}

// Run executes a scenario in a fresh in-memory store and returns its
// result. The error is non-nil only when the harness itself cannot run;
// failed expectations are reported in the result.
func Run(scenario *Scenario) (*Result, error) {
	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	start := DefaultStart
	if scenario.Start != "" {
		start, _ = time.Parse(time.RFC3339, scenario.Start)
	}

	h := &Harness{
		store: st,
		clock: testutil.NewFixedClock(start),
		gw:    testutil.NewRecorder(),
		sent:  make(map[string]int),
	}
	for _, id := range scenario.Unreachable {
		h.gw.FailFor(id, nil)
	}

	opts := []engine.Option{
		engine.WithClock(h.clock),
		engine.WithIDGenerator(engine.NewSequenceGenerator("id")),
		engine.WithRand(rand.New(rand.NewPCG(scenario.Seed, scenario.Seed))),
		engine.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	}
	if scenario.Threshold > 0 {
		opts = append(opts, engine.WithInactivityThreshold(scenario.Threshold))
	}
	h.engine = engine.New(st, h.gw, opts...)

	ctx := context.Background()
	result := NewResult()

	for i, step := range scenario.Steps {
		ev, err := h.execute(ctx, step)
		if err != nil {
			return nil, fmt.Errorf("steps[%d]: %w", i, err)
		}
		ev.Seq = i + 1
		result.Trace = append(result.Trace, ev)
		for _, msg := range checkExpect(step.Expect, ev) {
			result.AddError(fmt.Sprintf("steps[%d] %s: %s", i, ev.Op, msg))
		}
	}

	for _, msg := range EvaluateAssertions(ctx, h, scenario.Assertions) {
		result.AddError(msg)
	}
	for _, msg := range CheckInvariants(ctx, st, h.engine.Threshold()) {
		result.AddError("invariant: " + msg)
	}
	return result, nil
}

// execute runs one step. Engine errors are recorded in the event; only
// harness failures are returned.
func (h *Harness) execute(ctx context.Context, step Step) (TraceEvent, error) {
	name, arg := step.op()
	ev := TraceEvent{Op: name, Arg: arg}

	if step.At != "" {
		at, _ := time.Parse(time.RFC3339, step.At)
		h.clock.Set(at)
	}

	h.gw.Reset()
	res, err := h.dispatch(ctx, step)
	switch {
	case err == nil:
		ev.Result = res
	case engine.CodeOf(err) != "":
		ev.Error = string(engine.CodeOf(err))
	default:
		return ev, err
	}

	ev.Sent = countKinds(h.gw.Delivered())
	ev.Failed = countKinds(h.gw.Failed())
	for k, n := range ev.Sent {
		h.sent[k] += n
	}
	return ev, nil
}

func (h *Harness) dispatch(ctx context.Context, step Step) (map[string]int, error) {
	switch {
	case len(step.Subscribe) > 0:
		for _, id := range step.Subscribe {
			if _, err := h.engine.Subscribe(ctx, id, model.Profile{DisplayName: id}); err != nil {
				return nil, err
			}
		}
		n, err := h.store.CountSubscribers(ctx)
		if err != nil {
			return nil, err
		}
		return map[string]int{"subscribers": n}, nil

	case step.Unsubscribe != "":
		return nil, h.engine.Unsubscribe(ctx, step.Unsubscribe)

	case step.Unreachable != "":
		h.gw.FailFor(step.Unreachable, nil)
		return nil, nil

	case step.Reachable != "":
		h.gw.Heal(step.Reachable)
		return nil, nil

	case step.Round != "":
		r, err := h.engine.RunRound(ctx, step.Round)
		if err != nil {
			return nil, err
		}
		return map[string]int{
			"subscribers":       r.SubscriberCount,
			"pairs":             r.PairsCreated,
			"sent":              r.NotificationsSent,
			"failed":            r.DeliveryFailures,
			"already_completed": boolInt(r.AlreadyCompleted),
		}, nil

	case step.FollowUps != "":
		r, err := h.engine.DispatchFollowUps(ctx, step.FollowUps)
		if err != nil {
			return nil, err
		}
		return map[string]int{
			"created":    r.Created,
			"reprompted": r.Reprompted,
			"skipped":    r.Skipped,
			"sent":       r.NotificationsSent,
			"failed":     r.DeliveryFailures,
		}, nil

	case step.Answer != nil:
		return h.answer(ctx, *step.Answer)

	case step.Inactivity != "":
		r, err := h.engine.RunInactivityCheck(ctx, step.Inactivity)
		if err != nil {
			return nil, err
		}
		return map[string]int{
			"expired": r.Expired,
			"removed": len(r.Removed),
			"sent":    r.NotificationsSent,
			"failed":  r.DeliveryFailures,
		}, nil

	case step.Rematch != nil:
		m, err := h.matchOf(ctx, step.Rematch.Period, step.Rematch.Participant)
		if err != nil {
			return nil, err
		}
		return nil, h.engine.RequestRematch(ctx, m.ID, step.Rematch.Participant)
	}
	return nil, nil
}

func (h *Harness) answer(ctx context.Context, a AnswerStep) (map[string]int, error) {
	answer, _ := model.ParseAnswer(a.Answer)

	var ids []string
	if a.Participant == "*" {
		round, err := h.roundOf(ctx, a.Period)
		if err != nil {
			return nil, err
		}
		fus, err := h.store.ListRoundFollowUps(ctx, round.ID)
		if err != nil {
			return nil, err
		}
		for _, f := range fus {
			if f.State == model.FollowUpPending {
				ids = append(ids, f.ID)
			}
		}
	} else {
		m, err := h.matchOf(ctx, a.Period, a.Participant)
		if err != nil {
			return nil, err
		}
		f, err := h.store.GetFollowUpFor(ctx, m.ID, a.Participant)
		if errors.Is(err, store.ErrNotFound) {
			return nil, &engine.Error{Code: engine.ErrCodeNotFound, Message: "no follow-up", Subject: a.Participant}
		}
		if err != nil {
			return nil, err
		}
		ids = append(ids, f.ID)
	}

	res := map[string]int{"answered": 0, "unsubscribed": 0}
	for _, id := range ids {
		r, err := h.engine.RecordAnswer(ctx, id, answer)
		if err != nil {
			return nil, err
		}
		res["answered"]++
		res["unsubscribed"] += boolInt(r.Outcome.Unsubscribed)
		if a.Participant != "*" {
			res["misses"] = r.Outcome.ConsecutiveMisses
		}
	}
	return res, nil
}

func (h *Harness) roundOf(ctx context.Context, period string) (model.MatchingRound, error) {
	round, err := h.store.GetRoundByPeriod(ctx, period)
	if errors.Is(err, store.ErrNotFound) {
		return round, &engine.Error{Code: engine.ErrCodeNotFound, Message: "no round", PeriodKey: period}
	}
	return round, err
}

func (h *Harness) matchOf(ctx context.Context, period, participant string) (model.Match, error) {
	round, err := h.roundOf(ctx, period)
	if err != nil {
		return model.Match{}, err
	}
	m, err := h.store.FindMatchFor(ctx, round.ID, participant)
	if errors.Is(err, store.ErrNotFound) {
		return m, &engine.Error{Code: engine.ErrCodeNotFound, Message: "no match", PeriodKey: period, Subject: participant}
	}
	return m, err
}

func checkExpect(exp *Expect, ev TraceEvent) []string {
	if exp == nil {
		if ev.Error != "" {
			return []string{"unexpected error " + ev.Error}
		}
		return nil
	}
	if exp.Error != ev.Error {
		return []string{fmt.Sprintf("error: expected %q, got %q", exp.Error, ev.Error)}
	}

	keys := make([]string, 0, len(exp.Result))
	for k := range exp.Result {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var errs []string
	for _, k := range keys {
		got, ok := ev.Result[k]
		if !ok {
			errs = append(errs, fmt.Sprintf("result %s: missing", k))
			continue
		}
		if got != exp.Result[k] {
			errs = append(errs, fmt.Sprintf("result %s: expected %d, got %d", k, exp.Result[k], got))
		}
	}
	return errs
}

func countKinds(ds []testutil.Delivery) map[string]int {
	if len(ds) == 0 {
		return nil
	}
	out := make(map[string]int)
	for _, d := range ds {
		out[string(d.Payload.Kind())]++
	}
	return out
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
