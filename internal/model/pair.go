package model

// PairKey is an unordered pair of participant IDs in canonical order.
type PairKey struct {
	Lo string `json:"lo"`
	Hi string `json:"hi"`
}

// NewPairKey returns the canonical key for a and b regardless of order.
func NewPairKey(a, b string) PairKey {
	if b < a {
		a, b = b, a
	}
	return PairKey{Lo: a, Hi: b}
}

// Other returns the member of the pair that is not id.
// Returns "" when id is not a member.
func (k PairKey) Other(id string) string {
	switch id {
	case k.Lo:
		return k.Hi
	case k.Hi:
		return k.Lo
	}
	return ""
}
