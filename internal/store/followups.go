package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/roach88/coffeematch/internal/model"
)

const followUpColumns = `f.id, f.match_id, f.participant_id, f.state, f.expired, f.dispatched_at, f.answered_at`

// RoundFollowUp is a follow-up together with the period key of its round.
type RoundFollowUp struct {
	model.FollowUp
	PeriodKey string
}

// InsertFollowUp creates a pending follow-up. Returns inserted=false when
// one already exists for the (match, participant) pair.
func (o ops) InsertFollowUp(ctx context.Context, f model.FollowUp) (inserted bool, err error) {
	res, err := o.q.ExecContext(ctx, `
		INSERT INTO follow_ups (id, match_id, participant_id, state, expired, dispatched_at, answered_at)
		VALUES (?, ?, ?, ?, 0, ?, NULL)
		ON CONFLICT(match_id, participant_id) DO NOTHING
	`, f.ID, f.MatchID, f.ParticipantID, string(model.FollowUpPending), formatTime(f.DispatchedAt))
	if err != nil {
		return false, fmt.Errorf("insert follow-up: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("insert follow-up: rows affected: %w", err)
	}
	return n > 0, nil
}

// TransitionFollowUp moves a follow-up from pending to the given answered
// state. The update is a compare-and-set on state = 'pending'; it returns
// false when the follow-up was not pending (or does not exist).
func (o ops) TransitionFollowUp(ctx context.Context, id string, to model.FollowUpState, at time.Time, expired bool) (bool, error) {
	res, err := o.q.ExecContext(ctx, `
		UPDATE follow_ups SET state = ?, answered_at = ?, expired = ?
		WHERE id = ? AND state = ?
	`, string(to), formatTime(at), boolToInt(expired), id, string(model.FollowUpPending))
	if err != nil {
		return false, fmt.Errorf("transition follow-up: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("transition follow-up: rows affected: %w", err)
	}
	return n > 0, nil
}

// GetFollowUp returns a follow-up with its round's period key, or ErrNotFound.
func (o ops) GetFollowUp(ctx context.Context, id string) (RoundFollowUp, error) {
	row := o.q.QueryRowContext(ctx, `
		SELECT `+followUpColumns+`, r.period_key
		FROM follow_ups f
		JOIN matches m ON m.id = f.match_id
		JOIN matching_rounds r ON r.id = m.round_id
		WHERE f.id = ?
	`, id)
	f, err := scanRoundFollowUp(row)
	if errors.Is(err, sql.ErrNoRows) {
		return RoundFollowUp{}, fmt.Errorf("get follow-up %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return RoundFollowUp{}, fmt.Errorf("get follow-up %s: %w", id, err)
	}
	return f, nil
}

// GetFollowUpFor returns the follow-up of a participant for a match, or ErrNotFound.
func (o ops) GetFollowUpFor(ctx context.Context, matchID, participantID string) (RoundFollowUp, error) {
	row := o.q.QueryRowContext(ctx, `
		SELECT `+followUpColumns+`, r.period_key
		FROM follow_ups f
		JOIN matches m ON m.id = f.match_id
		JOIN matching_rounds r ON r.id = m.round_id
		WHERE f.match_id = ? AND f.participant_id = ?
	`, matchID, participantID)
	f, err := scanRoundFollowUp(row)
	if errors.Is(err, sql.ErrNoRows) {
		return RoundFollowUp{}, fmt.Errorf("get follow-up for %s: %w", participantID, ErrNotFound)
	}
	if err != nil {
		return RoundFollowUp{}, fmt.Errorf("get follow-up for %s: %w", participantID, err)
	}
	return f, nil
}

// ListRoundFollowUps returns every follow-up of a round.
func (o ops) ListRoundFollowUps(ctx context.Context, roundID string) ([]RoundFollowUp, error) {
	return o.listFollowUps(ctx, `
		SELECT `+followUpColumns+`, r.period_key
		FROM follow_ups f
		JOIN matches m ON m.id = f.match_id
		JOIN matching_rounds r ON r.id = m.round_id
		WHERE r.id = ?
		ORDER BY f.dispatched_at ASC, f.id ASC
	`, roundID)
}

// ListOverdueFollowUps returns pending follow-ups that belong to a round
// whose period key sorts before beforePeriod, or that were dispatched at or
// before dispatchedBefore.
func (o ops) ListOverdueFollowUps(ctx context.Context, beforePeriod string, dispatchedBefore time.Time) ([]RoundFollowUp, error) {
	return o.listFollowUps(ctx, `
		SELECT `+followUpColumns+`, r.period_key
		FROM follow_ups f
		JOIN matches m ON m.id = f.match_id
		JOIN matching_rounds r ON r.id = m.round_id
		WHERE f.state = ?
		  AND (r.period_key < ? OR f.dispatched_at <= ?)
		ORDER BY r.period_key ASC, f.dispatched_at ASC, f.id ASC
	`, string(model.FollowUpPending), beforePeriod, formatTime(dispatchedBefore))
}

func (o ops) listFollowUps(ctx context.Context, query string, args ...any) ([]RoundFollowUp, error) {
	rows, err := o.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list follow-ups: %w", err)
	}
	defer rows.Close()

	var out []RoundFollowUp
	for rows.Next() {
		f, err := scanRoundFollowUp(rows)
		if err != nil {
			return nil, fmt.Errorf("list follow-ups: %w", err)
		}
		out = append(out, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list follow-ups: %w", err)
	}
	return out, nil
}

func scanRoundFollowUp(r rowScanner) (RoundFollowUp, error) {
	var (
		f            RoundFollowUp
		state        string
		expired      int
		dispatchedAt string
		answeredAt   sql.NullString
	)
	if err := r.Scan(&f.ID, &f.MatchID, &f.ParticipantID, &state, &expired, &dispatchedAt, &answeredAt, &f.PeriodKey); err != nil {
		return RoundFollowUp{}, err
	}
	f.State = model.FollowUpState(state)
	f.Expired = expired == 1

	var err error
	if f.DispatchedAt, err = parseTime(dispatchedAt); err != nil {
		return RoundFollowUp{}, err
	}
	if f.AnsweredAt, err = parseNullTime(answeredAt); err != nil {
		return RoundFollowUp{}, err
	}
	return f, nil
}
