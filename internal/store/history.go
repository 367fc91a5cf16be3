package store

import (
	"context"
	"fmt"
	"time"

	"github.com/roach88/coffeematch/internal/model"
)

// RecordPairing appends a history entry for the unordered pair (a, b).
// The pair is stored in canonical order. Re-recording the same pair for the
// same round is a no-op.
func (o ops) RecordPairing(ctx context.Context, roundID, a, b string, now time.Time) error {
	if a == b {
		return fmt.Errorf("record pairing: participant %s paired with itself", a)
	}
	key := model.NewPairKey(a, b)
	_, err := o.q.ExecContext(ctx, `
		INSERT INTO history (participant_lo, participant_hi, round_id, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT DO NOTHING
	`, key.Lo, key.Hi, roundID, formatTime(now))
	if err != nil {
		return fmt.Errorf("record pairing: %w", err)
	}
	return nil
}

// HasBeenPaired reports whether a and b appear together in any round.
func (o ops) HasBeenPaired(ctx context.Context, a, b string) (bool, error) {
	key := model.NewPairKey(a, b)
	var n int
	err := o.q.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM history
		WHERE participant_lo = ? AND participant_hi = ?
	`, key.Lo, key.Hi).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("has been paired: %w", err)
	}
	return n > 0, nil
}

// PairCountFor returns, for every participant ever matched with id, the
// number of rounds they were matched together.
func (o ops) PairCountFor(ctx context.Context, id string) (map[string]int, error) {
	rows, err := o.q.QueryContext(ctx, `
		SELECT CASE WHEN participant_lo = ? THEN participant_hi ELSE participant_lo END AS partner,
		       COUNT(*)
		FROM history
		WHERE participant_lo = ? OR participant_hi = ?
		GROUP BY partner
		ORDER BY partner ASC
	`, id, id, id)
	if err != nil {
		return nil, fmt.Errorf("pair count for %s: %w", id, err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var (
			partner string
			n       int
		)
		if err := rows.Scan(&partner, &n); err != nil {
			return nil, fmt.Errorf("pair count for %s: %w", id, err)
		}
		counts[partner] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("pair count for %s: %w", id, err)
	}
	return counts, nil
}

// ListHistory returns every history entry in a deterministic order.
func (o ops) ListHistory(ctx context.Context) ([]model.HistoryEntry, error) {
	return o.listHistory(ctx, `
		SELECT participant_lo, participant_hi, round_id FROM history
		ORDER BY participant_lo ASC, participant_hi ASC, round_id ASC
	`)
}

// ListRoundHistory returns the history entries created by one round.
func (o ops) ListRoundHistory(ctx context.Context, roundID string) ([]model.HistoryEntry, error) {
	return o.listHistory(ctx, `
		SELECT participant_lo, participant_hi, round_id FROM history
		WHERE round_id = ?
		ORDER BY participant_lo ASC, participant_hi ASC
	`, roundID)
}

func (o ops) listHistory(ctx context.Context, query string, args ...any) ([]model.HistoryEntry, error) {
	rows, err := o.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list history: %w", err)
	}
	defer rows.Close()

	var out []model.HistoryEntry
	for rows.Next() {
		var e model.HistoryEntry
		if err := rows.Scan(&e.Pair.Lo, &e.Pair.Hi, &e.RoundID); err != nil {
			return nil, fmt.Errorf("list history: %w", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list history: %w", err)
	}
	return out, nil
}
