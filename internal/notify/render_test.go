package notify

import (
	"testing"

	"github.com/sebdah/goldie/v2"
)

func TestRender_Golden(t *testing.T) {
	ada := Partner{ID: "u1", DisplayName: "Ada", Username: "ada"}
	bob := Partner{ID: "u2", DisplayName: "Bob"}

	tests := []struct {
		name    string
		payload Payload
	}{
		{"match_assigned_pair", MatchAssigned{PeriodKey: "2025-03", MatchID: "m1", Partners: []Partner{ada}}},
		{"match_assigned_triple", MatchAssigned{PeriodKey: "2025-03", MatchID: "m1", Partners: []Partner{ada, bob}}},
		{"follow_up_prompt", FollowUpPrompt{FollowUpID: "f1", MatchID: "m1", PeriodKey: "2025-03", Partners: []Partner{bob}}},
		{"inactivity_notice", InactivityNotice{Misses: 3}},
		{"rematch_acknowledged", RematchAcknowledged{MatchID: "m1"}},
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g.Assert(t, tt.name, []byte(Render(tt.payload)))
		})
	}
}

func TestMentions(t *testing.T) {
	tests := []struct {
		partners []Partner
		want     string
	}{
		{nil, "someone"},
		{[]Partner{{DisplayName: "A"}}, "A"},
		{[]Partner{{DisplayName: "A"}, {DisplayName: "B"}}, "A and B"},
		{[]Partner{{DisplayName: "A"}, {DisplayName: "B"}, {Username: "c"}}, "A, B and Someone (@c)"},
	}
	for _, tt := range tests {
		if got := mentions(tt.partners); got != tt.want {
			t.Errorf("mentions(%v) = %q, want %q", tt.partners, got, tt.want)
		}
	}
}
