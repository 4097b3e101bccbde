// Package roulette generates round-robin pairing schedules.
//
// # Overview
//
// Given an ordered roster of N participants, Generate produces a schedule of
// exactly N weeks. Each week partitions the roster into pairs using a circle
// rotation; when N is odd, one pair per week is promoted to a triple so the
// leftover participant always has a match.
//
// # Rotation
//
// Participant indices are arranged on a conceptual circle. For week i, even
// rosters pair index (i+k) mod N with (i-k) mod N for k in 0..N/2-1; the one
// self-pair per week (k=0) is redirected to the diametrically opposite seat.
// Odd rosters rotate over a reduced ring of N-1 seats with the last roster
// slot acting as a fixed anchor; the seat left over by the rotation joins a
// uniformly chosen pair as its third member.
//
// Running N rotations (one per participant) keeps the week count equal to
// the roster size. Coverage of distinct pairings across the run is
// best-effort: the rotation repeats some pairings and, depending on roster
// size, never produces others. Callers that need a provably complete
// round-robin need a different algorithm.
//
// # Randomness
//
// Even rosters are fully deterministic. Odd rosters draw exactly one random
// number per week to pick the pair that becomes a triple; inject a seeded
// Source via WithRand or WithSeed for reproducible output.
//
// The package performs no I/O and keeps no state between calls; concurrent
// Generate calls on distinct rosters are safe as long as a shared Source is.
package roulette
