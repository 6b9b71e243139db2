// Package domain defines the typed value model of the grimoire knowledge
// store: value domains, property cells, entity definitions, and entity
// instances.
//
// # Domains
//
// Domain is a stateless validator for one value type, parameterized by
// constraints. The variants are fixed: Boolean, Integer, Real, Enum, Text,
// List, Map, and Reference. Every variant's Contains is a pure predicate;
// Reference is the single exception in spirit, consulting a Resolver so an
// id can be checked against live registrations.
//
// # Properties
//
// Property is a named, optionally domain-constrained value holder. All
// writes validate first. Map-backed properties support incremental
// mutation (Put, PutAll, RemoveKey, ClearMap) that validates the
// prospective whole map before touching the live one.
//
// # Definitions and Instances
//
// Definition is an immutable prototype for one class of entity; Instance
// is a mutable record minted from it. UpdateProperties on an instance is
// all-or-nothing: the batch validates completely before any value lands.
// Equality and Fingerprint are defined over the canonical form (class, id,
// sorted property values), independent of object identity.
//
// # Conditions
//
// Condition is a single-property predicate (equality, coercing ordering,
// substring, membership) shared by the query surface and verb targeting.
//
// # Design Principles
//
// - No database or external dependencies
// - Validation never panics; construction-time invariants return errors
// - Domains are immutable and shared by reference across cell copies
package domain
