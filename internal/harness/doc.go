// Package harness runs lifecycle scenarios against a real engine.
//
// A scenario is a YAML file listing steps (subscribe, run a round,
// dispatch follow-ups, answer, run the inactivity check, ...) with optional
// per-step expectations, followed by assertions on the final state. Each
// run uses a fresh in-memory store, a fixed clock, sequential IDs, a seeded
// random source and a recording gateway, so the same scenario always
// produces the same trace.
//
// After the steps, a set of invariants is checked on the stored data
// regardless of what the scenario asserts: no pair appears twice in one
// round, match sizes are two or three, subscribed participants are below
// the inactivity threshold, and follow-ups belong to match members.
//
// Traces can be compared against golden files with RunWithGolden.
package harness
