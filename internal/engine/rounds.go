package engine

import (
	"context"
	"errors"

	"github.com/roach88/coffeematch/internal/model"
	"github.com/roach88/coffeematch/internal/notify"
	"github.com/roach88/coffeematch/internal/pairing"
	"github.com/roach88/coffeematch/internal/store"
)

// RoundResult summarises one RunRound call.
type RoundResult struct {
	PeriodKey         string `json:"period_key"`
	RoundID           string `json:"round_id"`
	SubscriberCount   int    `json:"subscriber_count"`
	PairsCreated      int    `json:"pairs_created"`
	NotificationsSent int    `json:"notifications_sent"`
	DeliveryFailures  int    `json:"delivery_failures"`
	AlreadyCompleted  bool   `json:"already_completed"`
}

// RunRound runs the matching round for periodKey.
//
// A round that already completed is not touched: the result reports its
// match count and zero notifications. Otherwise the subscribers are paired
// and the round, its matches and their history entries commit in one
// transaction; MatchAssigned notifications go out after commit.
// SubscriberCount is always the live count.
func (e *Engine) RunRound(ctx context.Context, periodKey string) (RoundResult, error) {
	if err := validatePeriod(periodKey); err != nil {
		return RoundResult{}, err
	}

	var res RoundResult
	err := e.withPeriodLock(ctx, "round", periodKey, func() error {
		var err error
		res, err = e.runRound(ctx, periodKey)
		return err
	})
	return res, err
}

func (e *Engine) runRound(ctx context.Context, periodKey string) (RoundResult, error) {
	log := e.logger.With("period", periodKey)
	res := RoundResult{PeriodKey: periodKey}
	var batch []delivery

	err := e.store.InTx(ctx, func(tx *store.Tx) error {
		subs, err := tx.ListSubscribers(ctx)
		if err != nil {
			return err
		}
		res.SubscriberCount = len(subs)

		round, err := tx.GetRoundByPeriod(ctx, periodKey)
		switch {
		case err == nil && round.Status == model.RoundCompleted:
			res.RoundID = round.ID
			res.AlreadyCompleted = true
			res.PairsCreated, err = tx.CountMatches(ctx, round.ID)
			return err
		case err == nil:
			// A pending round never commits on its own; reuse it if one exists.
		case errors.Is(err, store.ErrNotFound):
			round = model.MatchingRound{
				ID:        e.ids.Generate(),
				PeriodKey: periodKey,
				Status:    model.RoundPending,
				CreatedAt: e.clock.Now(),
			}
			if err := tx.InsertRound(ctx, round); err != nil {
				return err
			}
		default:
			return err
		}
		res.RoundID = round.ID

		entries, err := tx.ListHistory(ctx)
		if err != nil {
			return err
		}

		people := make(map[string]model.Participant, len(subs))
		ids := make([]string, len(subs))
		for i, p := range subs {
			ids[i] = p.ID
			people[p.ID] = p
		}

		now := e.clock.Now()
		for _, group := range e.pair(ids, pairing.NewHistory(entries)) {
			m := model.Match{
				ID:           e.ids.Generate(),
				RoundID:      round.ID,
				ParticipantA: group[0],
				ParticipantB: group[1],
				CreatedAt:    now,
			}
			if len(group) == 3 {
				m.ParticipantC = group[2]
			}
			if err := tx.InsertMatch(ctx, m); err != nil {
				return err
			}
			for _, pair := range m.Pairs() {
				if err := tx.RecordPairing(ctx, round.ID, pair.Lo, pair.Hi, now); err != nil {
					return err
				}
			}
			for _, member := range m.Members() {
				batch = append(batch, delivery{
					participantID: member,
					reachable:     people[member].Reachable,
					payload: notify.MatchAssigned{
						PeriodKey: periodKey,
						MatchID:   m.ID,
						Partners:  partnersOf(m, member, people),
					},
				})
			}
			res.PairsCreated++
		}

		return tx.CompleteRound(ctx, round.ID, len(subs))
	})

	if errors.Is(err, store.ErrConflict) {
		// Another writer created the round between our read and insert.
		log.Info("round created concurrently")
		return e.completedRound(ctx, periodKey)
	}
	if err != nil {
		log.Error("round failed", "error", err)
		return RoundResult{}, storageFailure("run round", err)
	}

	if res.AlreadyCompleted {
		log.Info("round already completed", "pairs", res.PairsCreated, "subscribers", res.SubscriberCount)
		return res, nil
	}

	report := e.deliver(ctx, batch)
	res.NotificationsSent = report.Sent
	res.DeliveryFailures = report.Failed

	log.Info("round completed",
		"round", res.RoundID,
		"subscribers", res.SubscriberCount,
		"pairs", res.PairsCreated,
		"sent", report.Sent,
		"failed", report.Failed)
	return res, nil
}

// completedRound reports on an existing round without changing anything.
func (e *Engine) completedRound(ctx context.Context, periodKey string) (RoundResult, error) {
	res := RoundResult{PeriodKey: periodKey, AlreadyCompleted: true}
	round, err := e.store.GetRoundByPeriod(ctx, periodKey)
	if err != nil {
		return RoundResult{}, storageFailure("run round", err)
	}
	res.RoundID = round.ID
	if res.PairsCreated, err = e.store.CountMatches(ctx, round.ID); err != nil {
		return RoundResult{}, storageFailure("run round", err)
	}
	if res.SubscriberCount, err = e.store.CountSubscribers(ctx); err != nil {
		return RoundResult{}, storageFailure("run round", err)
	}
	return res, nil
}
