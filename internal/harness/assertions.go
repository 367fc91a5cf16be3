package harness

import (
	"context"
	"fmt"
)

// EvaluateAssertions checks every assertion against the harness state and
// returns one message per failure.
func EvaluateAssertions(ctx context.Context, h *Harness, assertions []Assertion) []string {
	var errs []string
	for i, a := range assertions {
		if err := evaluate(ctx, h, a); err != nil {
			errs = append(errs, fmt.Sprintf("assertions[%d] %s: %v", i, a.Type, err))
		}
	}
	return errs
}

func evaluate(ctx context.Context, h *Harness, a Assertion) error {
	switch a.Type {
	case AssertSubscribed:
		got, err := h.engine.IsSubscribed(ctx, a.Participant)
		if err != nil {
			return err
		}
		return compareBool(a.Participant+" subscribed", *a.Want, got)

	case AssertReachable:
		p, err := h.store.GetParticipant(ctx, a.Participant)
		if err != nil {
			return err
		}
		return compareBool(a.Participant+" reachable", *a.Want, p.Reachable)

	case AssertStreak:
		s, err := h.store.GetStreak(ctx, a.Participant)
		if err != nil {
			return err
		}
		return compareInt(a.Participant+" consecutive misses", a.Count, s.ConsecutiveMisses)

	case AssertSubscriberCount:
		n, err := h.store.CountSubscribers(ctx)
		if err != nil {
			return err
		}
		return compareInt("subscribers", a.Count, n)

	case AssertNotifications:
		return compareInt(a.Kind+" notifications", a.Count, h.sent[a.Kind])

	case AssertHistoryCount:
		entries, err := h.store.ListHistory(ctx)
		if err != nil {
			return err
		}
		return compareInt("history entries", a.Count, len(entries))

	case AssertPairedCount:
		counts, err := h.store.PairCountFor(ctx, a.Participant)
		if err != nil {
			return err
		}
		return compareInt(a.Participant+" distinct partners", a.Count, len(counts))
	}
	return fmt.Errorf("unknown assertion type %q", a.Type)
}

func compareInt(what string, want, got int) error {
	if want != got {
		return fmt.Errorf("%s: expected %d, got %d", what, want, got)
	}
	return nil
}

func compareBool(what string, want, got bool) error {
	if want != got {
		return fmt.Errorf("%s: expected %t, got %t", what, want, got)
	}
	return nil
}
