// Package store provides SQLite-backed durable storage for coffeematch.
//
// Tables:
//   - participants: opt-in state per participant (never deleted)
//   - matching_rounds: one row per period key (UNIQUE)
//   - matches: pairs and triples within a round
//   - history: append-only ledger of matched pairs, canonical lo < hi
//   - follow_ups: one "did you meet?" question per participant per match
//   - meeting_streaks: consecutive-miss counter per participant
//   - rematch_requests: one request per participant per match
//
// # Transactions
//
// Every query method is available on both *Store and *Tx. Composite writes
// that must be all-or-nothing (creating a round with its matches and
// history, answering a follow-up and updating the streak) run inside
// Store.InTx. The pool holds a single connection, so code inside an InTx
// callback must only use the *Tx it was given.
//
// # Idempotency
//
//   - matching_rounds.period_key UNIQUE: a second insert for a period
//     returns ErrConflict
//   - follow_ups UNIQUE(match_id, participant_id): duplicate inserts are
//     ignored
//   - follow-up answers are compare-and-set on state = 'pending'
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
//
// Timestamps are stored as fixed-width UTC text so they sort correctly.
package store
