// Package verb implements the declarative action engine layered on top of
// the knowledge base.
//
// A Definition describes an action abstractly: named prerequisites checked
// against the acting instance, ordered target specs matched against candidate
// instances, costs that must be payable before anything runs, effects applied
// in declared order, and named variable expressions resolved once at bind
// time.
//
// # Lifecycle
//
// A Definition is unbound. Bind resolves variables against a concrete source
// and target list and produces an Instance with a fresh id. Apply pays costs
// and runs effects, recording every property write in an ordered undo log;
// if any cost is not payable the instance fizzles and nothing is mutated.
// Undo replays the log in reverse and returns the instance to its bound,
// unexecuted state, so it can be applied again.
//
// # Targeting
//
// Target specs are matched positionally with a single shared cursor. Each
// spec consumes candidates from the front of the remaining list while they
// satisfy its class and filter, up to its max; a candidate that does not
// satisfy the current spec stops that spec's run and is offered to the next
// spec instead. The cursor never moves backward, so candidate order matters.
//
// # Built-ins
//
// SetProperty, AdjustProperty, MoveZone, and EmitEvent cover the effect
// vocabulary the YAML catalogs reference; PropertyThreshold and TapSource
// cover the costs. A Catalog registers definitions by name and retains
// applied instances so executions can be undone later.
package verb
