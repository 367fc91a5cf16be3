package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/coffeematch/internal/model"
)

// GetStreak returns the participant's meeting streak. A participant with no
// row yet has a zero streak; that is not an error.
func (o ops) GetStreak(ctx context.Context, participantID string) (model.MeetingStreak, error) {
	var (
		s    = model.MeetingStreak{ParticipantID: participantID}
		last sql.NullString
	)
	err := o.q.QueryRowContext(ctx, `
		SELECT consecutive_misses, last_updated_period
		FROM meeting_streaks WHERE participant_id = ?
	`, participantID).Scan(&s.ConsecutiveMisses, &last)
	if errors.Is(err, sql.ErrNoRows) {
		return s, nil
	}
	if err != nil {
		return model.MeetingStreak{}, fmt.Errorf("get streak %s: %w", participantID, err)
	}
	s.LastUpdatedPeriod = last.String
	return s, nil
}

// SaveStreak inserts or replaces the participant's meeting streak.
func (o ops) SaveStreak(ctx context.Context, s model.MeetingStreak) error {
	var last sql.NullString
	if s.LastUpdatedPeriod != "" {
		last = sql.NullString{String: s.LastUpdatedPeriod, Valid: true}
	}
	_, err := o.q.ExecContext(ctx, `
		INSERT INTO meeting_streaks (participant_id, consecutive_misses, last_updated_period)
		VALUES (?, ?, ?)
		ON CONFLICT(participant_id) DO UPDATE SET
			consecutive_misses  = excluded.consecutive_misses,
			last_updated_period = excluded.last_updated_period
	`, s.ParticipantID, s.ConsecutiveMisses, last)
	if err != nil {
		return fmt.Errorf("save streak %s: %w", s.ParticipantID, err)
	}
	return nil
}

// ListSubscribedOverThreshold returns streaks of subscribed participants
// with at least threshold consecutive misses.
func (o ops) ListSubscribedOverThreshold(ctx context.Context, threshold int) ([]model.MeetingStreak, error) {
	rows, err := o.q.QueryContext(ctx, `
		SELECT s.participant_id, s.consecutive_misses, s.last_updated_period
		FROM meeting_streaks s
		JOIN participants p ON p.id = s.participant_id
		WHERE s.consecutive_misses >= ? AND p.subscribed = 1
		ORDER BY s.participant_id ASC
	`, threshold)
	if err != nil {
		return nil, fmt.Errorf("list over threshold: %w", err)
	}
	defer rows.Close()

	var out []model.MeetingStreak
	for rows.Next() {
		var (
			s    model.MeetingStreak
			last sql.NullString
		)
		if err := rows.Scan(&s.ParticipantID, &s.ConsecutiveMisses, &last); err != nil {
			return nil, fmt.Errorf("list over threshold: %w", err)
		}
		s.LastUpdatedPeriod = last.String
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list over threshold: %w", err)
	}
	return out, nil
}
