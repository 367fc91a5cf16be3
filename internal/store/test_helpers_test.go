package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/roach88/coffeematch/internal/model"
)

var testNow = time.Date(2025, time.January, 1, 10, 0, 0, 0, time.UTC)

// createTestStore creates a new temp-dir store for testing.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// subscribeAll creates subscribed participants with the given IDs.
func subscribeAll(t *testing.T, s *Store, ids ...string) {
	t.Helper()
	for _, id := range ids {
		if err := s.UpsertSubscribed(context.Background(), id, model.Profile{DisplayName: id}, testNow); err != nil {
			t.Fatalf("UpsertSubscribed(%s) failed: %v", id, err)
		}
	}
}

// createTestRound inserts a completed round with one match per group.
func createTestRound(t *testing.T, s *Store, id, period string, groups ...[]string) []model.Match {
	t.Helper()
	ctx := context.Background()
	var matches []model.Match
	err := s.InTx(ctx, func(tx *Tx) error {
		round := model.MatchingRound{ID: id, PeriodKey: period, Status: model.RoundPending, CreatedAt: testNow}
		if err := tx.InsertRound(ctx, round); err != nil {
			return err
		}
		for i, g := range groups {
			m := model.Match{
				ID:           id + "-m" + string(rune('0'+i)),
				RoundID:      id,
				ParticipantA: g[0],
				ParticipantB: g[1],
				CreatedAt:    testNow,
			}
			if len(g) == 3 {
				m.ParticipantC = g[2]
			}
			if err := tx.InsertMatch(ctx, m); err != nil {
				return err
			}
			for _, pair := range m.Pairs() {
				if err := tx.RecordPairing(ctx, id, pair.Lo, pair.Hi, testNow); err != nil {
					return err
				}
			}
			matches = append(matches, m)
		}
		return tx.CompleteRound(ctx, id, 0)
	})
	if err != nil {
		t.Fatalf("createTestRound(%s) failed: %v", period, err)
	}
	return matches
}
