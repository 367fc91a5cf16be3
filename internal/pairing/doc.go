// Package pairing partitions a set of subscribers into matches.
//
// The algorithm is a randomized greedy heuristic, not a global optimum
// search:
//
//  1. Shuffle the subscribers with a uniformly random permutation.
//  2. Take the first unplaced participant P and scan the remaining unplaced
//     participants in shuffled order for one never matched with P. If every
//     candidate has been matched with P before, take the candidate with the
//     lowest pair count; ties go to the first candidate scanned.
//  3. When one participant is left over, it joins the most recently formed
//     pair, producing the round's single triple.
//
// Greedy selection can repeat a pair even when a non-repeating partition
// exists for the whole set; see TestGroup_GreedyCanMissNonRepeatingPartition.
// The worst case is O(N²) ledger lookups.
package pairing
