package engine

import (
	"context"
	"errors"
	"strings"

	"github.com/roach88/coffeematch/internal/model"
	"github.com/roach88/coffeematch/internal/store"
)

// Subscribe opts a participant in, creating it on first use. Subscribing
// an already-subscribed participant refreshes its profile and nothing else.
// Subscribing also marks the participant reachable again.
func (e *Engine) Subscribe(ctx context.Context, id string, profile model.Profile) (model.Participant, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return model.Participant{}, invalidArgument("", "participant id is required")
	}
	profile = model.NormalizeProfile(profile)

	if err := e.store.UpsertSubscribed(ctx, id, profile, e.clock.Now()); err != nil {
		return model.Participant{}, storageFailure("subscribe", err)
	}
	p, err := e.store.GetParticipant(ctx, id)
	if err != nil {
		return model.Participant{}, storageFailure("subscribe", err)
	}
	e.logger.Info("participant subscribed", "participant", id)
	return p, nil
}

// Unsubscribe opts a participant out. History and streak are kept.
// Unsubscribing a participant that is not subscribed is INVALID_TRANSITION.
func (e *Engine) Unsubscribe(ctx context.Context, id string) error {
	changed, err := e.store.SetSubscribed(ctx, id, false)
	if err != nil {
		return storageFailure("unsubscribe", err)
	}
	if !changed {
		e.logger.Info("unsubscribe of non-subscriber", "participant", id)
		return invalidTransition(id, "participant is not subscribed")
	}
	e.logger.Info("participant unsubscribed", "participant", id)
	return nil
}

// IsSubscribed reports whether id is currently subscribed. Unknown
// participants are not subscribed.
func (e *Engine) IsSubscribed(ctx context.Context, id string) (bool, error) {
	p, err := e.store.GetParticipant(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, storageFailure("is subscribed", err)
	}
	return p.Subscribed, nil
}

// ListSubscribers returns a snapshot of subscribed participants ordered by id.
func (e *Engine) ListSubscribers(ctx context.Context) ([]model.Participant, error) {
	subs, err := e.store.ListSubscribers(ctx)
	if err != nil {
		return nil, storageFailure("list subscribers", err)
	}
	return subs, nil
}

// MarkUnreachable records that the gateway cannot reach id.
func (e *Engine) MarkUnreachable(ctx context.Context, id string) error {
	if _, err := e.store.GetParticipant(ctx, id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return notFound(id, "participant not found")
		}
		return storageFailure("mark unreachable", err)
	}
	if err := e.store.SetReachable(ctx, id, false); err != nil {
		return storageFailure("mark unreachable", err)
	}
	return nil
}

// GetParticipant returns one participant.
func (e *Engine) GetParticipant(ctx context.Context, id string) (model.Participant, error) {
	p, err := e.store.GetParticipant(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return model.Participant{}, notFound(id, "participant not found")
	}
	if err != nil {
		return model.Participant{}, storageFailure("get participant", err)
	}
	return p, nil
}
