package engine

import (
	"context"
	"errors"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/roach88/coffeematch/internal/notify"
)

// delivery is one notification to send after a transaction commits.
type delivery struct {
	participantID string
	reachable     bool
	payload       notify.Payload
}

// deliveryReport aggregates the outcome of a batch.
type deliveryReport struct {
	Sent   int
	Failed int
}

// deliver sends every notification in batch, at most e.concurrency at a
// time. A notify.ErrUnreachable failure marks the recipient unreachable;
// other errors only count as failures. A success for a recipient marked
// unreachable marks it reachable again. Failures never stop the rest of the
// batch and are not retried.
func (e *Engine) deliver(ctx context.Context, batch []delivery) deliveryReport {
	var (
		g            errgroup.Group
		sent, failed atomic.Int64
	)
	g.SetLimit(e.concurrency)

	for _, d := range batch {
		g.Go(func() error {
			err := e.gateway.Notify(ctx, d.participantID, d.payload)
			if err != nil {
				failed.Add(1)
				e.logger.Warn("delivery failed",
					"participant", d.participantID,
					"kind", d.payload.Kind(),
					"code", ErrCodeDeliveryFailure,
					"error", err)
				if !errors.Is(err, notify.ErrUnreachable) {
					return nil
				}
				if err := e.store.SetReachable(ctx, d.participantID, false); err != nil {
					e.logger.Error("mark unreachable failed", "participant", d.participantID, "error", err)
				}
				return nil
			}
			sent.Add(1)
			if !d.reachable {
				if err := e.store.SetReachable(ctx, d.participantID, true); err != nil {
					e.logger.Error("mark reachable failed", "participant", d.participantID, "error", err)
				}
			}
			return nil
		})
	}
	_ = g.Wait()

	return deliveryReport{Sent: int(sent.Load()), Failed: int(failed.Load())}
}
