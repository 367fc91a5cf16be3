package model

import "time"

// Participant is a person who has opted in to matching at least once.
// Participants are never deleted; unsubscribing only clears Subscribed.
type Participant struct {
	ID           string     `json:"id"`
	DisplayName  string     `json:"display_name"`
	Username     string     `json:"username,omitempty"`
	Subscribed   bool       `json:"subscribed"`
	Reachable    bool       `json:"reachable"`
	SubscribedAt *time.Time `json:"subscribed_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
}

// Profile carries the display information supplied on subscribe.
type Profile struct {
	DisplayName string `json:"display_name"`
	Username    string `json:"username,omitempty"`
}

// RoundStatus is the lifecycle state of a MatchingRound.
type RoundStatus string

const (
	RoundPending   RoundStatus = "pending"
	RoundCompleted RoundStatus = "completed"
)

// MatchingRound is one matching cycle. PeriodKey is unique across rounds.
type MatchingRound struct {
	ID              string      `json:"id"`
	PeriodKey       string      `json:"period_key"`
	Status          RoundStatus `json:"status"`
	SubscriberCount int         `json:"subscriber_count"`
	CreatedAt       time.Time   `json:"created_at"`
}

// Match groups two or three participants within a round.
// ParticipantC is empty for a pair.
type Match struct {
	ID           string    `json:"id"`
	RoundID      string    `json:"round_id"`
	ParticipantA string    `json:"participant_a"`
	ParticipantB string    `json:"participant_b"`
	ParticipantC string    `json:"participant_c,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// Members returns the participant IDs of the match in stored order.
func (m Match) Members() []string {
	if m.ParticipantC == "" {
		return []string{m.ParticipantA, m.ParticipantB}
	}
	return []string{m.ParticipantA, m.ParticipantB, m.ParticipantC}
}

// IsTriple reports whether the match has three members.
func (m Match) IsTriple() bool {
	return m.ParticipantC != ""
}

// Has reports whether id is a member of the match.
func (m Match) Has(id string) bool {
	for _, member := range m.Members() {
		if member == id {
			return true
		}
	}
	return false
}

// Partners returns the members of the match other than id.
func (m Match) Partners(id string) []string {
	var out []string
	for _, member := range m.Members() {
		if member != id {
			out = append(out, member)
		}
	}
	return out
}

// Pairs returns one PairKey per unordered sub-pair of the match:
// one for a pair, three for a triple.
func (m Match) Pairs() []PairKey {
	members := m.Members()
	var out []PairKey
	for i := 0; i < len(members); i++ {
		for j := i + 1; j < len(members); j++ {
			out = append(out, NewPairKey(members[i], members[j]))
		}
	}
	return out
}

// HistoryEntry records that a pair was matched in a round.
type HistoryEntry struct {
	Pair    PairKey `json:"pair"`
	RoundID string  `json:"round_id"`
}

// FollowUpState is the state of a follow-up question.
type FollowUpState string

const (
	FollowUpPending     FollowUpState = "pending"
	FollowUpAnsweredYes FollowUpState = "answered_yes"
	FollowUpAnsweredNo  FollowUpState = "answered_no"
)

// FollowUp asks one member of a match whether the meeting happened.
// Expired is set when the answer was recorded as "no" because nobody
// answered before the cutoff.
type FollowUp struct {
	ID            string        `json:"id"`
	MatchID       string        `json:"match_id"`
	ParticipantID string        `json:"participant_id"`
	State         FollowUpState `json:"state"`
	Expired       bool          `json:"expired,omitempty"`
	DispatchedAt  time.Time     `json:"dispatched_at"`
	AnsweredAt    *time.Time    `json:"answered_at,omitempty"`
}

// Answer is a participant's reply to a follow-up.
type Answer string

const (
	AnswerYes Answer = "yes"
	AnswerNo  Answer = "no"
)

// ParseAnswer accepts "yes"/"no" (case-insensitive, also "y"/"n").
func ParseAnswer(s string) (Answer, bool) {
	switch normalizeToken(s) {
	case "yes", "y":
		return AnswerYes, true
	case "no", "n":
		return AnswerNo, true
	}
	return "", false
}

// State returns the follow-up state an answer transitions to.
func (a Answer) State() FollowUpState {
	if a == AnswerYes {
		return FollowUpAnsweredYes
	}
	return FollowUpAnsweredNo
}

// MeetingStreak counts consecutive missed meetings for a participant.
// LastUpdatedPeriod guards against applying two outcomes for one period.
type MeetingStreak struct {
	ParticipantID     string `json:"participant_id"`
	ConsecutiveMisses int    `json:"consecutive_misses"`
	LastUpdatedPeriod string `json:"last_updated_period,omitempty"`
}

// RematchRequest records a participant asking for a different match.
type RematchRequest struct {
	MatchID       string    `json:"match_id"`
	ParticipantID string    `json:"participant_id"`
	RequestedAt   time.Time `json:"requested_at"`
}
