package notify

import (
	"fmt"
	"strings"
)

// Render returns the plain-text message for a payload.
func Render(p Payload) string {
	switch v := p.(type) {
	case MatchAssigned:
		return renderMatchAssigned(v)
	case FollowUpPrompt:
		return renderFollowUpPrompt(v)
	case InactivityNotice:
		return fmt.Sprintf("You missed %d meetings in a row, so we unsubscribed you from Random Coffee.\n"+
			"Subscribe again whenever you want to be matched.", v.Misses)
	case RematchAcknowledged:
		return fmt.Sprintf("Got it. Your rematch request for match %s is noted; "+
			"we will take it into account next round.", v.MatchID)
	}
	return ""
}

func renderMatchAssigned(m MatchAssigned) string {
	var b strings.Builder
	if len(m.Partners) > 1 {
		fmt.Fprintf(&b, "Random Coffee %s: you are in a group of three with %s.\n", m.PeriodKey, mentions(m.Partners))
	} else {
		fmt.Fprintf(&b, "Random Coffee %s: your partner is %s.\n", m.PeriodKey, mentions(m.Partners))
	}
	b.WriteString("Reach out and pick a time to meet this month.")
	return b.String()
}

func renderFollowUpPrompt(f FollowUpPrompt) string {
	return fmt.Sprintf("Did you meet with %s for Random Coffee %s?\n"+
		"Reply yes or no to follow-up %s.", mentions(f.Partners), f.PeriodKey, f.FollowUpID)
}

// mentions joins partner mentions as "A", "A and B" or "A, B and C".
func mentions(partners []Partner) string {
	names := make([]string, len(partners))
	for i, p := range partners {
		names[i] = p.Mention()
	}
	switch len(names) {
	case 0:
		return "someone"
	case 1:
		return names[0]
	}
	return strings.Join(names[:len(names)-1], ", ") + " and " + names[len(names)-1]
}
