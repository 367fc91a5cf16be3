package engine

import (
	"context"
	"errors"

	"github.com/roach88/coffeematch/internal/model"
	"github.com/roach88/coffeematch/internal/notify"
	"github.com/roach88/coffeematch/internal/store"
)

// RequestRematch records that participantID wants a different partner than
// the one in matchID and acknowledges it. The request is informational; the
// pairing of later rounds already avoids repeats.
//
// A participant outside the match gets NOT_FOUND; asking twice is
// INVALID_TRANSITION.
func (e *Engine) RequestRematch(ctx context.Context, matchID, participantID string) error {
	var reachable bool
	err := e.store.InTx(ctx, func(tx *store.Tx) error {
		m, err := tx.GetMatch(ctx, matchID)
		if errors.Is(err, store.ErrNotFound) {
			return notFound(matchID, "match not found")
		}
		if err != nil {
			return err
		}
		if !m.Has(participantID) {
			return notFound(participantID, "participant is not in match %s", matchID)
		}
		p, err := tx.GetParticipant(ctx, participantID)
		if err != nil {
			return err
		}
		reachable = p.Reachable

		inserted, err := tx.InsertRematchRequest(ctx, model.RematchRequest{
			MatchID:       matchID,
			ParticipantID: participantID,
			RequestedAt:   e.clock.Now(),
		})
		if err != nil {
			return err
		}
		if !inserted {
			return invalidTransition(participantID, "rematch already requested for match %s", matchID)
		}
		return nil
	})
	if err != nil {
		return storageFailure("request rematch", err)
	}

	e.logger.Info("rematch requested", "match", matchID, "participant", participantID)
	e.deliver(ctx, []delivery{{
		participantID: participantID,
		reachable:     reachable,
		payload:       notify.RematchAcknowledged{MatchID: matchID},
	}})
	return nil
}
