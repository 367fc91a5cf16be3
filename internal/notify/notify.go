// Package notify defines the Messaging Gateway port used by the engine and
// the notification payloads sent through it.
package notify

import (
	"context"
	"errors"

	"github.com/roach88/coffeematch/internal/model"
)

// ErrUnreachable is returned by a Gateway when the recipient cannot be
// reached (blocked the bot, deleted account, unknown address).
var ErrUnreachable = errors.New("recipient unreachable")

// Gateway delivers a notification to a participant by identifier.
// A nil error means the notification was delivered.
type Gateway interface {
	Notify(ctx context.Context, participantID string, p Payload) error
}

// Kind names a payload variant.
type Kind string

const (
	KindMatchAssigned       Kind = "match_assigned"
	KindFollowUpPrompt      Kind = "follow_up_prompt"
	KindInactivityNotice    Kind = "inactivity_notice"
	KindRematchAcknowledged Kind = "rematch_acknowledged"
)

// Payload is one of MatchAssigned, FollowUpPrompt, InactivityNotice or
// RematchAcknowledged.
type Payload interface {
	Kind() Kind
	payload()
}

// Partner describes another member of the recipient's match.
type Partner struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	Username    string `json:"username,omitempty"`
}

// PartnerOf builds a Partner from a participant row.
func PartnerOf(p model.Participant) Partner {
	return Partner{ID: p.ID, DisplayName: p.DisplayName, Username: p.Username}
}

// Mention formats the partner the same way participants are shown elsewhere.
func (p Partner) Mention() string {
	return model.Participant{DisplayName: p.DisplayName, Username: p.Username}.Mention()
}

// MatchAssigned tells a participant who they were matched with.
type MatchAssigned struct {
	PeriodKey string    `json:"period_key"`
	MatchID   string    `json:"match_id"`
	Partners  []Partner `json:"partners"`
}

// FollowUpPrompt asks a participant whether the meeting happened.
type FollowUpPrompt struct {
	FollowUpID string    `json:"follow_up_id"`
	MatchID    string    `json:"match_id"`
	PeriodKey  string    `json:"period_key"`
	Partners   []Partner `json:"partners"`
}

// InactivityNotice tells a participant they were unsubscribed after
// missing too many meetings in a row.
type InactivityNotice struct {
	Misses int `json:"misses"`
}

// RematchAcknowledged confirms a rematch request was recorded.
type RematchAcknowledged struct {
	MatchID string `json:"match_id"`
}

func (MatchAssigned) Kind() Kind       { return KindMatchAssigned }
func (FollowUpPrompt) Kind() Kind      { return KindFollowUpPrompt }
func (InactivityNotice) Kind() Kind    { return KindInactivityNotice }
func (RematchAcknowledged) Kind() Kind { return KindRematchAcknowledged }

func (MatchAssigned) payload()       {}
func (FollowUpPrompt) payload()      {}
func (InactivityNotice) payload()    {}
func (RematchAcknowledged) payload() {}
