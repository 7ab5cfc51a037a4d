// Package assert provides the core's invariant-checking primitive.
//
// Preconditions on public operations and internal structural invariants
// (see SPEC_FULL.md §7, §9) are both expressed with That. Under the
// release build tag the checks compile away to nothing, matching the
// "gate them behind a build flag for release builds" guidance.
package assert
