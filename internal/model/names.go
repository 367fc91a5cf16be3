package model

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// NormalizeProfile returns p with NFC-normalised, trimmed fields and internal
// whitespace collapsed. A leading "@" is stripped from the username.
func NormalizeProfile(p Profile) Profile {
	return Profile{
		DisplayName: normalizeText(p.DisplayName),
		Username:    strings.TrimPrefix(normalizeText(p.Username), "@"),
	}
}

func normalizeText(s string) string {
	return strings.Join(strings.Fields(norm.NFC.String(s)), " ")
}

func normalizeToken(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// Mention formats a participant for display: the display name, followed by
// the @username when one is known. Falls back to "Someone" with no name.
func (p Participant) Mention() string {
	name := p.DisplayName
	if name == "" {
		name = "Someone"
	}
	if p.Username != "" {
		return name + " (@" + p.Username + ")"
	}
	return name
}

// Name returns the display name or "Someone".
func (p Participant) Name() string {
	if p.DisplayName == "" {
		return "Someone"
	}
	return p.DisplayName
}
