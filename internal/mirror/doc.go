// Package mirror translates the host engine's event stream into knowledge
// base state.
//
// # Resilience Boundary
//
// Ingest is the one entry point and it never fails outward: handler
// errors and panics are caught, logged with the event kind, and counted,
// then the next event proceeds. The host engine's event loop must never
// break because of a knowledge-base-side bug. State mutated before a
// caught failure stays mutated; there is no rollback of partial event
// handling.
//
// # Translation
//
// Each handled event kind becomes a small set of property writes on a
// lazily created instance (card, token, player, or game). Tap, untap and
// destroy events additionally execute the matching catalog verb, so the
// execution log tracks the engine's own action history. Events carrying an absolute
// value (life totals, counter totals) are compared against the mirrored
// value before the write; mismatches are recorded as divergences and the
// reported value wins.
//
// # Player Resolution
//
// Events name players inconsistently. Resolution tries the exact instance
// id, then an exact case-insensitive name match, then the closest
// levenshtein candidate above a confidence floor, and only then creates a
// new player instance.
package mirror
