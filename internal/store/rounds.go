package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/coffeematch/internal/model"
)

const matchColumns = `id, round_id, participant_a, participant_b, participant_c, created_at`

// InsertRound inserts a matching round. Returns ErrConflict when a round
// already exists for the period key.
func (o ops) InsertRound(ctx context.Context, r model.MatchingRound) error {
	_, err := o.q.ExecContext(ctx, `
		INSERT INTO matching_rounds (id, period_key, status, subscriber_count, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, r.ID, r.PeriodKey, string(r.Status), r.SubscriberCount, formatTime(r.CreatedAt))
	if isUniqueViolation(err) {
		return fmt.Errorf("insert round %s: %w", r.PeriodKey, ErrConflict)
	}
	if err != nil {
		return fmt.Errorf("insert round %s: %w", r.PeriodKey, err)
	}
	return nil
}

// CompleteRound marks a pending round completed and records the subscriber
// count it was built from.
func (o ops) CompleteRound(ctx context.Context, roundID string, subscriberCount int) error {
	res, err := o.q.ExecContext(ctx, `
		UPDATE matching_rounds SET status = ?, subscriber_count = ?
		WHERE id = ? AND status = ?
	`, string(model.RoundCompleted), subscriberCount, roundID, string(model.RoundPending))
	if err != nil {
		return fmt.Errorf("complete round: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("complete round: rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("complete round %s: %w", roundID, ErrNotFound)
	}
	return nil
}

// GetRoundByPeriod returns the round for a period key or ErrNotFound.
func (o ops) GetRoundByPeriod(ctx context.Context, periodKey string) (model.MatchingRound, error) {
	row := o.q.QueryRowContext(ctx, `
		SELECT id, period_key, status, subscriber_count, created_at
		FROM matching_rounds WHERE period_key = ?
	`, periodKey)
	r, err := scanRound(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.MatchingRound{}, fmt.Errorf("get round %s: %w", periodKey, ErrNotFound)
	}
	if err != nil {
		return model.MatchingRound{}, fmt.Errorf("get round %s: %w", periodKey, err)
	}
	return r, nil
}

// LatestRound returns the round with the greatest period key or ErrNotFound.
func (o ops) LatestRound(ctx context.Context) (model.MatchingRound, error) {
	row := o.q.QueryRowContext(ctx, `
		SELECT id, period_key, status, subscriber_count, created_at
		FROM matching_rounds
		ORDER BY period_key DESC
		LIMIT 1
	`)
	r, err := scanRound(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.MatchingRound{}, fmt.Errorf("latest round: %w", ErrNotFound)
	}
	if err != nil {
		return model.MatchingRound{}, fmt.Errorf("latest round: %w", err)
	}
	return r, nil
}

// ListRounds returns every round ordered by period key.
func (o ops) ListRounds(ctx context.Context) ([]model.MatchingRound, error) {
	rows, err := o.q.QueryContext(ctx, `
		SELECT id, period_key, status, subscriber_count, created_at
		FROM matching_rounds
		ORDER BY period_key ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("list rounds: %w", err)
	}
	defer rows.Close()

	var out []model.MatchingRound
	for rows.Next() {
		r, err := scanRound(rows)
		if err != nil {
			return nil, fmt.Errorf("list rounds: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// InsertMatch inserts a match. All members must exist as participants.
func (o ops) InsertMatch(ctx context.Context, m model.Match) error {
	var third sql.NullString
	if m.ParticipantC != "" {
		third = sql.NullString{String: m.ParticipantC, Valid: true}
	}
	_, err := o.q.ExecContext(ctx, `
		INSERT INTO matches (`+matchColumns+`)
		VALUES (?, ?, ?, ?, ?, ?)
	`, m.ID, m.RoundID, m.ParticipantA, m.ParticipantB, third, formatTime(m.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert match: %w", err)
	}
	return nil
}

// GetMatch returns the match with the given ID or ErrNotFound.
func (o ops) GetMatch(ctx context.Context, id string) (model.Match, error) {
	row := o.q.QueryRowContext(ctx, `
		SELECT `+matchColumns+` FROM matches WHERE id = ?
	`, id)
	m, err := scanMatch(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Match{}, fmt.Errorf("get match %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return model.Match{}, fmt.Errorf("get match %s: %w", id, err)
	}
	return m, nil
}

// ListMatches returns the matches of a round in creation order.
func (o ops) ListMatches(ctx context.Context, roundID string) ([]model.Match, error) {
	rows, err := o.q.QueryContext(ctx, `
		SELECT `+matchColumns+` FROM matches
		WHERE round_id = ?
		ORDER BY created_at ASC, id ASC
	`, roundID)
	if err != nil {
		return nil, fmt.Errorf("list matches: %w", err)
	}
	defer rows.Close()

	var out []model.Match
	for rows.Next() {
		m, err := scanMatch(rows)
		if err != nil {
			return nil, fmt.Errorf("list matches: %w", err)
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list matches: %w", err)
	}
	return out, nil
}

// CountMatches returns the number of matches in a round.
func (o ops) CountMatches(ctx context.Context, roundID string) (int, error) {
	var n int
	err := o.q.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM matches WHERE round_id = ?
	`, roundID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count matches: %w", err)
	}
	return n, nil
}

// FindMatchFor returns the participant's match in a round or ErrNotFound.
func (o ops) FindMatchFor(ctx context.Context, roundID, participantID string) (model.Match, error) {
	row := o.q.QueryRowContext(ctx, `
		SELECT `+matchColumns+` FROM matches
		WHERE round_id = ?
		  AND (participant_a = ? OR participant_b = ? OR participant_c = ?)
		LIMIT 1
	`, roundID, participantID, participantID, participantID)
	m, err := scanMatch(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Match{}, fmt.Errorf("find match for %s: %w", participantID, ErrNotFound)
	}
	if err != nil {
		return model.Match{}, fmt.Errorf("find match for %s: %w", participantID, err)
	}
	return m, nil
}

func scanRound(r rowScanner) (model.MatchingRound, error) {
	var (
		round     model.MatchingRound
		status    string
		createdAt string
	)
	if err := r.Scan(&round.ID, &round.PeriodKey, &status, &round.SubscriberCount, &createdAt); err != nil {
		return model.MatchingRound{}, err
	}
	round.Status = model.RoundStatus(status)
	var err error
	if round.CreatedAt, err = parseTime(createdAt); err != nil {
		return model.MatchingRound{}, err
	}
	return round, nil
}

func scanMatch(r rowScanner) (model.Match, error) {
	var (
		m         model.Match
		third     sql.NullString
		createdAt string
	)
	if err := r.Scan(&m.ID, &m.RoundID, &m.ParticipantA, &m.ParticipantB, &third, &createdAt); err != nil {
		return model.Match{}, err
	}
	m.ParticipantC = third.String
	var err error
	if m.CreatedAt, err = parseTime(createdAt); err != nil {
		return model.Match{}, err
	}
	return m, nil
}
