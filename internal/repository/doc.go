// Package repository defines the persistence boundary of grimoire.
//
// The in-memory knowledge base is authoritative at all times; the journal
// records what happened for the HTTP surface and for post-session
// analysis. A journal failure is logged by the caller and never blocks a
// mutation. The actual implementation is in the sqlite subpackage.
//
// # Journal Interface
//
// The Journal interface covers the write path (definitions, instance
// snapshots, archived instances, verb executions, ingested events,
// divergences) and the read-back queries the HTTP handlers serve.
//
// # SQLite Implementation
//
// The sqlite implementation uses WAL mode with a busy timeout. Every
// table pairs a JSON payload column with indexed scalar columns for
// filtering; read-backs rebuild records from the JSON. Timestamps are
// stored as RFC 3339 UTC text.
//
// # Schema Migration
//
// The sqlite journal migrates its schema on open, creating tables and
// indexes as needed while preserving existing data.
package repository
