package engine

import (
	"context"
	"errors"
	"time"

	"github.com/roach88/coffeematch/internal/model"
	"github.com/roach88/coffeematch/internal/notify"
	"github.com/roach88/coffeematch/internal/store"
)

// DispatchResult summarises one DispatchFollowUps call.
type DispatchResult struct {
	PeriodKey         string `json:"period_key"`
	Created           int    `json:"created"`
	Reprompted        int    `json:"reprompted"`
	Skipped           int    `json:"skipped"`
	NotificationsSent int    `json:"notifications_sent"`
	DeliveryFailures  int    `json:"delivery_failures"`
}

// AnswerResult is the outcome of RecordAnswer.
type AnswerResult struct {
	FollowUp  model.FollowUp `json:"follow_up"`
	PeriodKey string         `json:"period_key"`
	Outcome   Outcome        `json:"outcome"`
}

// DispatchFollowUps asks every member of every match of the period's round
// whether the meeting happened.
//
// Each member gets one pending follow-up. On a repeat call, members whose
// follow-up is still pending are prompted again with the same follow-up;
// members who already answered are skipped.
func (e *Engine) DispatchFollowUps(ctx context.Context, periodKey string) (DispatchResult, error) {
	if err := validatePeriod(periodKey); err != nil {
		return DispatchResult{}, err
	}

	var res DispatchResult
	err := e.withPeriodLock(ctx, "followup", periodKey, func() error {
		var err error
		res, err = e.dispatchFollowUps(ctx, periodKey)
		return err
	})
	return res, err
}

func (e *Engine) dispatchFollowUps(ctx context.Context, periodKey string) (DispatchResult, error) {
	log := e.logger.With("period", periodKey)
	res := DispatchResult{PeriodKey: periodKey}
	var batch []delivery

	err := e.store.InTx(ctx, func(tx *store.Tx) error {
		round, err := tx.GetRoundByPeriod(ctx, periodKey)
		if errors.Is(err, store.ErrNotFound) {
			return &Error{Code: ErrCodeNotFound, Message: "no round for period", PeriodKey: periodKey}
		}
		if err != nil {
			return err
		}

		matches, err := tx.ListMatches(ctx, round.ID)
		if err != nil {
			return err
		}

		now := e.clock.Now()
		for _, m := range matches {
			people, err := participantsByID(ctx, tx, m.Members())
			if err != nil {
				return err
			}
			for _, member := range m.Members() {
				followUpID, send, err := e.openFollowUp(ctx, tx, m.ID, member, now, &res)
				if err != nil {
					return err
				}
				if !send {
					continue
				}
				batch = append(batch, delivery{
					participantID: member,
					reachable:     people[member].Reachable,
					payload: notify.FollowUpPrompt{
						FollowUpID: followUpID,
						MatchID:    m.ID,
						PeriodKey:  periodKey,
						Partners:   partnersOf(m, member, people),
					},
				})
			}
		}
		return nil
	})
	if err != nil {
		if CodeOf(err) == "" {
			log.Error("follow-up dispatch failed", "error", err)
		}
		return DispatchResult{}, storageFailure("dispatch follow-ups", err)
	}

	report := e.deliver(ctx, batch)
	res.NotificationsSent = report.Sent
	res.DeliveryFailures = report.Failed

	log.Info("follow-ups dispatched",
		"created", res.Created,
		"reprompted", res.Reprompted,
		"skipped", res.Skipped,
		"sent", report.Sent,
		"failed", report.Failed)
	return res, nil
}

// openFollowUp ensures member has a pending follow-up for matchID and
// reports whether it should be prompted.
func (e *Engine) openFollowUp(ctx context.Context, tx *store.Tx, matchID, member string, now time.Time, res *DispatchResult) (string, bool, error) {
	existing, err := tx.GetFollowUpFor(ctx, matchID, member)
	switch {
	case errors.Is(err, store.ErrNotFound):
		f := model.FollowUp{
			ID:            e.ids.Generate(),
			MatchID:       matchID,
			ParticipantID: member,
			DispatchedAt:  now,
		}
		if _, err := tx.InsertFollowUp(ctx, f); err != nil {
			return "", false, err
		}
		res.Created++
		return f.ID, true, nil
	case err != nil:
		return "", false, err
	case existing.State == model.FollowUpPending:
		// dispatched_at stays at the first prompt so the answer window
		// does not restart.
		res.Reprompted++
		return existing.ID, true, nil
	default:
		res.Skipped++
		return "", false, nil
	}
}

// RecordAnswer moves a pending follow-up to answered-yes or answered-no and
// applies the outcome to the participant's streak in the same transaction.
//
// Answering a follow-up that is no longer pending is INVALID_TRANSITION and
// changes nothing.
func (e *Engine) RecordAnswer(ctx context.Context, followUpID string, answer model.Answer) (AnswerResult, error) {
	if answer != model.AnswerYes && answer != model.AnswerNo {
		return AnswerResult{}, invalidArgument(followUpID, "answer must be yes or no, got %q", answer)
	}

	var res AnswerResult
	err := e.store.InTx(ctx, func(tx *store.Tx) error {
		f, err := tx.GetFollowUp(ctx, followUpID)
		if errors.Is(err, store.ErrNotFound) {
			return notFound(followUpID, "follow-up not found")
		}
		if err != nil {
			return err
		}

		now := e.clock.Now()
		ok, err := tx.TransitionFollowUp(ctx, followUpID, answer.State(), now, false)
		if err != nil {
			return err
		}
		if !ok {
			return &Error{
				Code:      ErrCodeInvalidTransition,
				Message:   "follow-up already answered (" + string(f.State) + ")",
				PeriodKey: f.PeriodKey,
				Subject:   followUpID,
			}
		}

		outcome, err := e.applyOutcome(ctx, tx, f.ParticipantID, f.PeriodKey, answer == model.AnswerYes)
		if err != nil {
			return err
		}

		f.State = answer.State()
		f.AnsweredAt = &now
		res = AnswerResult{FollowUp: f.FollowUp, PeriodKey: f.PeriodKey, Outcome: outcome}
		return nil
	})
	if err != nil {
		if IsInvalidTransition(err) {
			e.logger.Info("stale follow-up answer", "follow_up", followUpID)
		}
		return AnswerResult{}, storageFailure("record answer", err)
	}

	e.logger.Info("follow-up answered",
		"follow_up", followUpID,
		"participant", res.FollowUp.ParticipantID,
		"answer", answer,
		"misses", res.Outcome.ConsecutiveMisses)

	e.notifyRemoved(ctx, []Outcome{res.Outcome})
	return res, nil
}
