// Package kb implements the knowledge base: the registry of entity
// definitions and instances mirrored from the host game engine.
//
// # Registry
//
// KnowledgeBase holds definitions by class and instances by id and by
// class, with the invariant that every indexed instance appears in both
// indexes and references a registered definition. Creation is atomic with
// respect to initial overrides; GetOrCreate serializes find-or-create per
// id so concurrent ingestion cannot double-create an external object.
//
// # Query
//
// Query filters one class's instances through a condition chain, left to
// right, short-circuiting when nothing survives. Returned slices are
// copies; the instances are live.
//
// # Logs
//
// The knowledge base keeps the verb execution log and the divergence log,
// mirrors both to an optional journal, and announces every mutation on an
// EventBus consumed by the SSE hub. Journaling is best effort by contract:
// the in-memory state is authoritative and a journal failure never fails
// the mutation that triggered it.
package kb
