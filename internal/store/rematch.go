package store

import (
	"context"
	"fmt"

	"github.com/roach88/coffeematch/internal/model"
)

// InsertRematchRequest records a rematch request. Returns inserted=false
// when the participant already asked for a rematch of this match.
func (o ops) InsertRematchRequest(ctx context.Context, r model.RematchRequest) (inserted bool, err error) {
	res, err := o.q.ExecContext(ctx, `
		INSERT INTO rematch_requests (match_id, participant_id, requested_at)
		VALUES (?, ?, ?)
		ON CONFLICT(match_id, participant_id) DO NOTHING
	`, r.MatchID, r.ParticipantID, formatTime(r.RequestedAt))
	if err != nil {
		return false, fmt.Errorf("insert rematch request: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("insert rematch request: rows affected: %w", err)
	}
	return n > 0, nil
}

// CountRematchRequests returns the number of rematch requests for a match.
func (o ops) CountRematchRequests(ctx context.Context, matchID string) (int, error) {
	var n int
	err := o.q.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM rematch_requests WHERE match_id = ?
	`, matchID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count rematch requests: %w", err)
	}
	return n, nil
}
