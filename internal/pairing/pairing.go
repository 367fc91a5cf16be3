package pairing

import (
	"math/rand/v2"
	"slices"
)

// Pair partitions ids into groups of two, with exactly one group of three
// when len(ids) is odd. Fewer than two ids yield no groups. ids is not
// modified. A nil rng uses the global source.
func Pair(ids []string, ledger Ledger, rng *rand.Rand) [][]string {
	if len(ids) < 2 {
		return nil
	}
	order := slices.Clone(ids)
	shuffle := rand.Shuffle
	if rng != nil {
		shuffle = rng.Shuffle
	}
	shuffle(len(order), func(i, j int) {
		order[i], order[j] = order[j], order[i]
	})
	return group(order, ledger)
}

// group runs the greedy pass over an already shuffled order.
func group(order []string, ledger Ledger) [][]string {
	if len(order) < 2 {
		return nil
	}
	placed := make([]bool, len(order))
	groups := make([][]string, 0, len(order)/2)

	for i, p := range order {
		if placed[i] {
			continue
		}
		placed[i] = true

		partner := pickPartner(p, order, placed, i+1, ledger)
		if partner < 0 {
			// p is the only one left.
			last := len(groups) - 1
			groups[last] = append(groups[last], p)
			break
		}
		placed[partner] = true
		groups = append(groups, []string{p, order[partner]})
	}
	return groups
}

// pickPartner returns the index of p's partner among the unplaced entries
// of order from start on, or -1 when none is left.
func pickPartner(p string, order []string, placed []bool, start int, ledger Ledger) int {
	best, bestCount := -1, 0
	for j := start; j < len(order); j++ {
		if placed[j] {
			continue
		}
		n := ledger.PairCount(p, order[j])
		if n == 0 {
			return j
		}
		if best < 0 || n < bestCount {
			best, bestCount = j, n
		}
	}
	return best
}
