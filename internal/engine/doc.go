// Package engine implements the matching and engagement lifecycle.
//
// One Engine value composes the Participant Registry, the Round Manager,
// the Follow-up Tracker and the Inactivity Manager over a single store:
//
//	subscribe / unsubscribe ─► participants
//	RunRound(period)        ─► pairing ─► round + matches + history (one tx) ─► gateway
//	DispatchFollowUps       ─► follow_ups (pending) ─► gateway
//	RecordAnswer            ─► follow-up CAS + streak (one tx) ─► gateway
//	RunInactivityCheck      ─► expire overdue follow-ups + streaks ─► gateway
//
// TRANSACTIONS:
// Every state change of an operation commits in one store transaction.
// Gateway deliveries happen after commit and never roll anything back; a
// failed delivery only marks the recipient unreachable.
//
// CONCURRENCY:
// RunRound, DispatchFollowUps and RunInactivityCheck hold a per-period lock
// from the configured lock.Locker for their whole run. A second caller for
// the same period gets a CONFLICT error instead of waiting. The unique
// period_key column backs this up at the storage layer. RecordAnswer relies
// on the follow-up compare-and-set and needs no lock.
//
// Deliveries within one batch run concurrently, bounded by the delivery
// concurrency option. The engine never retries a delivery.
package engine
