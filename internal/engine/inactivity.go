package engine

import (
	"context"
	"errors"

	"github.com/roach88/coffeematch/internal/model"
	"github.com/roach88/coffeematch/internal/notify"
	"github.com/roach88/coffeematch/internal/store"
)

// Outcome is the effect of one follow-up outcome on a participant's streak.
type Outcome struct {
	ParticipantID string `json:"participant_id"`
	PeriodKey     string `json:"period_key"`

	// Applied is false when the streak was already updated for PeriodKey.
	Applied bool `json:"applied"`

	// ConsecutiveMisses is the streak after the update.
	ConsecutiveMisses int `json:"consecutive_misses"`

	// Unsubscribed is set when this outcome crossed the threshold and the
	// participant was subscribed; an InactivityNotice is due.
	Unsubscribed bool `json:"unsubscribed"`

	// Misses is the streak that triggered the unsubscribe.
	Misses int `json:"misses,omitempty"`

	reachable bool
}

// InactivityResult summarises one RunInactivityCheck call.
type InactivityResult struct {
	PeriodKey         string   `json:"period_key"`
	Expired           int      `json:"expired"`
	Removed           []string `json:"removed"`
	NotificationsSent int      `json:"notifications_sent"`
	DeliveryFailures  int      `json:"delivery_failures"`
}

// ApplyFollowUpOutcome folds one meeting outcome into the participant's
// streak. An outcome for a period at or before the streak's last updated
// period is ignored, so duplicates and late answers never rewind it. met
// resets the streak; a miss increments it. Reaching the threshold unsubscribes the
// participant, resets the streak and sends an InactivityNotice.
func (e *Engine) ApplyFollowUpOutcome(ctx context.Context, participantID, periodKey string, met bool) (Outcome, error) {
	if err := validatePeriod(periodKey); err != nil {
		return Outcome{}, err
	}

	var out Outcome
	err := e.store.InTx(ctx, func(tx *store.Tx) error {
		var err error
		out, err = e.applyOutcome(ctx, tx, participantID, periodKey, met)
		return err
	})
	if err != nil {
		return Outcome{}, storageFailure("apply follow-up outcome", err)
	}
	e.notifyRemoved(ctx, []Outcome{out})
	return out, nil
}

// applyOutcome runs inside the caller's transaction.
func (e *Engine) applyOutcome(ctx context.Context, tx *store.Tx, participantID, periodKey string, met bool) (Outcome, error) {
	p, err := tx.GetParticipant(ctx, participantID)
	if errors.Is(err, store.ErrNotFound) {
		return Outcome{}, notFound(participantID, "participant not found")
	}
	if err != nil {
		return Outcome{}, err
	}

	streak, err := tx.GetStreak(ctx, participantID)
	if err != nil {
		return Outcome{}, err
	}
	out := Outcome{ParticipantID: participantID, PeriodKey: periodKey, reachable: p.Reachable}
	if streak.LastUpdatedPeriod != "" && periodKey <= streak.LastUpdatedPeriod {
		out.ConsecutiveMisses = streak.ConsecutiveMisses
		return out, nil
	}

	if met {
		streak.ConsecutiveMisses = 0
	} else {
		streak.ConsecutiveMisses++
	}
	streak.LastUpdatedPeriod = periodKey

	if streak.ConsecutiveMisses >= e.threshold {
		changed, err := tx.SetSubscribed(ctx, participantID, false)
		if err != nil {
			return Outcome{}, err
		}
		out.Unsubscribed = changed
		out.Misses = streak.ConsecutiveMisses
		streak.ConsecutiveMisses = 0
	}

	if err := tx.SaveStreak(ctx, streak); err != nil {
		return Outcome{}, err
	}
	out.Applied = true
	out.ConsecutiveMisses = streak.ConsecutiveMisses
	return out, nil
}

// RunInactivityCheck counts unanswered follow-ups as misses and removes
// participants over the threshold.
//
// A pending follow-up is overdue when its round's period sorts before
// periodKey or it was dispatched more than the answer window ago. Overdue
// follow-ups become answered-no (flagged expired) and their outcome is
// applied under their own round's period. Subscribers whose streak already
// sits at or above the threshold are removed as well.
func (e *Engine) RunInactivityCheck(ctx context.Context, periodKey string) (InactivityResult, error) {
	if err := validatePeriod(periodKey); err != nil {
		return InactivityResult{}, err
	}

	var res InactivityResult
	err := e.withPeriodLock(ctx, "inactivity", periodKey, func() error {
		var err error
		res, err = e.runInactivityCheck(ctx, periodKey)
		return err
	})
	return res, err
}

func (e *Engine) runInactivityCheck(ctx context.Context, periodKey string) (InactivityResult, error) {
	log := e.logger.With("period", periodKey)
	res := InactivityResult{PeriodKey: periodKey, Removed: []string{}}
	var removed []Outcome

	err := e.store.InTx(ctx, func(tx *store.Tx) error {
		now := e.clock.Now()
		overdue, err := tx.ListOverdueFollowUps(ctx, periodKey, now.Add(-e.answerWindow))
		if err != nil {
			return err
		}
		for _, f := range overdue {
			ok, err := tx.TransitionFollowUp(ctx, f.ID, model.FollowUpAnsweredNo, now, true)
			if err != nil {
				return err
			}
			if !ok {
				continue
			}
			res.Expired++
			out, err := e.applyOutcome(ctx, tx, f.ParticipantID, f.PeriodKey, false)
			if err != nil {
				return err
			}
			if out.Unsubscribed {
				removed = append(removed, out)
			}
		}

		over, err := tx.ListSubscribedOverThreshold(ctx, e.threshold)
		if err != nil {
			return err
		}
		for _, s := range over {
			p, err := tx.GetParticipant(ctx, s.ParticipantID)
			if err != nil {
				return err
			}
			if _, err := tx.SetSubscribed(ctx, s.ParticipantID, false); err != nil {
				return err
			}
			misses := s.ConsecutiveMisses
			s.ConsecutiveMisses = 0
			if err := tx.SaveStreak(ctx, s); err != nil {
				return err
			}
			removed = append(removed, Outcome{
				ParticipantID: s.ParticipantID,
				PeriodKey:     s.LastUpdatedPeriod,
				Applied:       true,
				Unsubscribed:  true,
				Misses:        misses,
				reachable:     p.Reachable,
			})
		}
		return nil
	})
	if err != nil {
		log.Error("inactivity check failed", "error", err)
		return InactivityResult{}, storageFailure("run inactivity check", err)
	}

	for _, out := range removed {
		res.Removed = append(res.Removed, out.ParticipantID)
	}
	report := e.notifyRemoved(ctx, removed)
	res.NotificationsSent = report.Sent
	res.DeliveryFailures = report.Failed

	log.Info("inactivity check completed",
		"expired", res.Expired,
		"removed", len(res.Removed),
		"sent", report.Sent,
		"failed", report.Failed)
	return res, nil
}

// notifyRemoved sends an InactivityNotice for every outcome that
// unsubscribed its participant.
func (e *Engine) notifyRemoved(ctx context.Context, outcomes []Outcome) deliveryReport {
	var batch []delivery
	for _, out := range outcomes {
		if !out.Unsubscribed {
			continue
		}
		e.logger.Info("participant removed for inactivity",
			"participant", out.ParticipantID,
			"misses", out.Misses)
		batch = append(batch, delivery{
			participantID: out.ParticipantID,
			reachable:     out.reachable,
			payload:       notify.InactivityNotice{Misses: out.Misses},
		})
	}
	if len(batch) == 0 {
		return deliveryReport{}
	}
	return e.deliver(ctx, batch)
}
