// Package handler implements HTTP request handlers for the grimoire API.
//
// This package provides the HTTP layer for the grimoire REST API, handling
// requests for definition and instance lookups, property queries, verb
// execution, and journal read-backs.
//
// # Handlers
//
// KBHandler serves the knowledge base: definitions, instances, queries,
// snapshot import/export, and feed triggers.
//
// VerbHandler binds and executes catalog verbs against live instances,
// including preview and undo.
//
// JournalHandler reads the persisted history: executions, raw feed events,
// divergences, and archived instances.
//
// Middleware provides request logging, panic recovery, and CORS support.
//
// # API Design
//
// All handlers follow REST conventions:
// - GET for retrieval
// - POST for actions and imports
// - DELETE for removal
//
// Errors are returned as JSON with appropriate HTTP status codes.
// Request bodies are validated before processing.
//
// # Response Format
//
// Success responses return JSON data with appropriate status codes (200, 202).
// Error responses return JSON with {error, details} structure.
//
// # Server-Sent Events
//
// The /events endpoint provides real-time change notifications via SSE,
// allowing clients to watch instances mutate as feed events and verb
// executions land.
//
// # Feed Integration
//
// Handlers can trigger feed synchronization via the adapter registry, pulling
// any pending events from configured sources on demand.
package handler
