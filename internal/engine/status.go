package engine

import (
	"context"
	"errors"
	"time"

	"github.com/roach88/coffeematch/internal/model"
	"github.com/roach88/coffeematch/internal/store"
)

// Status is the system-wide summary returned by GetStatus.
type Status struct {
	SubscriberCount int           `json:"subscriber_count"`
	LastRound       *RoundSummary `json:"last_round,omitempty"`
}

// RoundSummary describes one stored round.
type RoundSummary struct {
	ID              string            `json:"id"`
	PeriodKey       string            `json:"period_key"`
	Status          model.RoundStatus `json:"status"`
	SubscriberCount int               `json:"subscriber_count"`
	Matches         int               `json:"matches"`
	CreatedAt       time.Time         `json:"created_at"`
}

// ParticipantStatus is one participant's view of the system.
type ParticipantStatus struct {
	Participant model.Participant   `json:"participant"`
	Streak      model.MeetingStreak `json:"streak"`
	Threshold   int                 `json:"threshold"`
	Current     *MatchView          `json:"current_match,omitempty"`
}

// MatchView is a participant's match in the latest round.
type MatchView struct {
	PeriodKey string              `json:"period_key"`
	Match     model.Match         `json:"match"`
	Partners  []model.Participant `json:"partners"`
	FollowUp  *model.FollowUp     `json:"follow_up,omitempty"`
}

// GetStatus returns the live subscriber count and the latest round.
func (e *Engine) GetStatus(ctx context.Context) (Status, error) {
	var st Status
	err := e.store.InTx(ctx, func(tx *store.Tx) error {
		var err error
		if st.SubscriberCount, err = tx.CountSubscribers(ctx); err != nil {
			return err
		}
		round, err := tx.LatestRound(ctx)
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		n, err := tx.CountMatches(ctx, round.ID)
		if err != nil {
			return err
		}
		st.LastRound = &RoundSummary{
			ID:              round.ID,
			PeriodKey:       round.PeriodKey,
			Status:          round.Status,
			SubscriberCount: round.SubscriberCount,
			Matches:         n,
			CreatedAt:       round.CreatedAt,
		}
		return nil
	})
	if err != nil {
		return Status{}, storageFailure("get status", err)
	}
	return st, nil
}

// GetParticipantStatus returns a participant with its streak and its match
// in the latest round, if it has one.
func (e *Engine) GetParticipantStatus(ctx context.Context, id string) (ParticipantStatus, error) {
	st := ParticipantStatus{Threshold: e.threshold}
	err := e.store.InTx(ctx, func(tx *store.Tx) error {
		p, err := tx.GetParticipant(ctx, id)
		if errors.Is(err, store.ErrNotFound) {
			return notFound(id, "participant not found")
		}
		if err != nil {
			return err
		}
		st.Participant = p

		if st.Streak, err = tx.GetStreak(ctx, id); err != nil {
			return err
		}

		round, err := tx.LatestRound(ctx)
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		m, err := tx.FindMatchFor(ctx, round.ID, id)
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}

		view := &MatchView{PeriodKey: round.PeriodKey, Match: m}
		for _, pid := range m.Partners(id) {
			partner, err := tx.GetParticipant(ctx, pid)
			if err != nil {
				return err
			}
			view.Partners = append(view.Partners, partner)
		}
		f, err := tx.GetFollowUpFor(ctx, m.ID, id)
		switch {
		case err == nil:
			view.FollowUp = &f.FollowUp
		case !errors.Is(err, store.ErrNotFound):
			return err
		}
		st.Current = view
		return nil
	})
	if err != nil {
		return ParticipantStatus{}, storageFailure("get participant status", err)
	}
	return st, nil
}
