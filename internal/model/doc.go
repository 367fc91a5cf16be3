// Package model provides the data model shared by every coffeematch package.
//
// This package contains type definitions and small pure helpers only. All
// other internal packages import model; model imports nothing internal.
//
// Key design constraints:
//   - Participant identifiers are opaque strings assigned externally
//   - A pair of participants is always stored as a canonical PairKey (Lo < Hi)
//   - Period keys are calendar months formatted "YYYY-MM"
//   - All JSON tags use snake_case
package model
