package harness

import (
	"context"
	"fmt"

	"github.com/roach88/coffeematch/internal/model"
	"github.com/roach88/coffeematch/internal/store"
)

// CheckInvariants inspects the stored lifecycle data and returns one
// message per violation.
func CheckInvariants(ctx context.Context, st *store.Store, threshold int) []string {
	var errs []string
	fail := func(format string, args ...any) {
		errs = append(errs, fmt.Sprintf(format, args...))
	}

	rounds, err := st.ListRounds(ctx)
	if err != nil {
		return []string{err.Error()}
	}
	for _, r := range rounds {
		matches, err := st.ListMatches(ctx, r.ID)
		if err != nil {
			return append(errs, err.Error())
		}

		seen := make(map[string]string)
		for _, m := range matches {
			members := m.Members()
			if len(members) < 2 || len(members) > 3 {
				fail("round %s: match %s has %d members", r.PeriodKey, m.ID, len(members))
			}
			for _, p := range members {
				if other, dup := seen[p]; dup {
					fail("round %s: %s is in matches %s and %s", r.PeriodKey, p, other, m.ID)
				}
				seen[p] = m.ID
			}
		}
		if r.Status == model.RoundCompleted && r.SubscriberCount >= 2 && len(seen) != r.SubscriberCount {
			fail("round %s: %d subscribers but %d matched", r.PeriodKey, r.SubscriberCount, len(seen))
		}

		fus, err := st.ListRoundFollowUps(ctx, r.ID)
		if err != nil {
			return append(errs, err.Error())
		}
		for _, f := range fus {
			if seen[f.ParticipantID] != f.MatchID {
				fail("round %s: follow-up %s for %s who is not in match %s", r.PeriodKey, f.ID, f.ParticipantID, f.MatchID)
			}
			if (f.State == model.FollowUpPending) != (f.AnsweredAt == nil) {
				fail("round %s: follow-up %s is %s with answered_at %v", r.PeriodKey, f.ID, f.State, f.AnsweredAt)
			}
		}
	}

	over, err := st.ListSubscribedOverThreshold(ctx, threshold)
	if err != nil {
		return append(errs, err.Error())
	}
	for _, s := range over {
		fail("%s is subscribed with %d consecutive misses", s.ParticipantID, s.ConsecutiveMisses)
	}
	return errs
}
