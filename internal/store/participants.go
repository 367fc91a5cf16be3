package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/roach88/coffeematch/internal/model"
)

const participantColumns = `id, display_name, username, subscribed, reachable, subscribed_at, created_at`

// UpsertSubscribed creates the participant or refreshes its profile, and
// marks it subscribed and reachable. Empty profile fields keep the stored
// value. subscribed_at is only stamped on a transition into subscribed.
func (o ops) UpsertSubscribed(ctx context.Context, id string, p model.Profile, now time.Time) error {
	ts := formatTime(now)
	_, err := o.q.ExecContext(ctx, `
		INSERT INTO participants
		(id, display_name, username, subscribed, reachable, subscribed_at, created_at)
		VALUES (?, ?, ?, 1, 1, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			display_name  = COALESCE(NULLIF(excluded.display_name, ''), participants.display_name),
			username      = COALESCE(NULLIF(excluded.username, ''), participants.username),
			subscribed_at = CASE WHEN participants.subscribed = 1
			                     THEN participants.subscribed_at
			                     ELSE excluded.subscribed_at END,
			subscribed    = 1,
			reachable     = 1
	`, id, p.DisplayName, p.Username, ts, ts)
	if err != nil {
		return fmt.Errorf("upsert participant: %w", err)
	}
	return nil
}

// SetSubscribed flips the subscription flag. Returns changed=false when the
// participant was already in the requested state or does not exist.
func (o ops) SetSubscribed(ctx context.Context, id string, subscribed bool) (changed bool, err error) {
	res, err := o.q.ExecContext(ctx, `
		UPDATE participants SET subscribed = ?
		WHERE id = ? AND subscribed = ?
	`, boolToInt(subscribed), id, boolToInt(!subscribed))
	if err != nil {
		return false, fmt.Errorf("set subscribed: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("set subscribed: rows affected: %w", err)
	}
	return n > 0, nil
}

// SetReachable records whether the messaging gateway can reach the participant.
func (o ops) SetReachable(ctx context.Context, id string, reachable bool) error {
	_, err := o.q.ExecContext(ctx, `
		UPDATE participants SET reachable = ? WHERE id = ?
	`, boolToInt(reachable), id)
	if err != nil {
		return fmt.Errorf("set reachable: %w", err)
	}
	return nil
}

// GetParticipant returns the participant with the given ID or ErrNotFound.
func (o ops) GetParticipant(ctx context.Context, id string) (model.Participant, error) {
	row := o.q.QueryRowContext(ctx, `
		SELECT `+participantColumns+` FROM participants WHERE id = ?
	`, id)
	p, err := scanParticipant(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Participant{}, fmt.Errorf("get participant %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return model.Participant{}, fmt.Errorf("get participant %s: %w", id, err)
	}
	return p, nil
}

// ListSubscribers returns every subscribed participant ordered by ID.
// The order is deterministic; callers shuffle when they need randomness.
func (o ops) ListSubscribers(ctx context.Context) ([]model.Participant, error) {
	rows, err := o.q.QueryContext(ctx, `
		SELECT `+participantColumns+` FROM participants
		WHERE subscribed = 1
		ORDER BY id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("list subscribers: %w", err)
	}
	defer rows.Close()

	var out []model.Participant
	for rows.Next() {
		p, err := scanParticipant(rows)
		if err != nil {
			return nil, fmt.Errorf("list subscribers: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list subscribers: %w", err)
	}
	return out, nil
}

// CountSubscribers returns the live number of subscribed participants.
func (o ops) CountSubscribers(ctx context.Context) (int, error) {
	var n int
	err := o.q.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM participants WHERE subscribed = 1
	`).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count subscribers: %w", err)
	}
	return n, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanParticipant(r rowScanner) (model.Participant, error) {
	var (
		p            model.Participant
		subscribed   int
		reachable    int
		subscribedAt sql.NullString
		createdAt    string
	)
	if err := r.Scan(&p.ID, &p.DisplayName, &p.Username, &subscribed, &reachable, &subscribedAt, &createdAt); err != nil {
		return model.Participant{}, err
	}
	p.Subscribed = subscribed == 1
	p.Reachable = reachable == 1

	var err error
	if p.SubscribedAt, err = parseNullTime(subscribedAt); err != nil {
		return model.Participant{}, err
	}
	if p.CreatedAt, err = parseTime(createdAt); err != nil {
		return model.Participant{}, err
	}
	return p, nil
}
