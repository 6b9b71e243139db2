// Package adapter implements host engine event feeds for grimoire.
//
// Feeds are pluggable sources of engine events. Each feed drains in
// emission order and registers with the central feed registry, which owns
// polling and delivery.
//
// # Feed Types
//
// FeedTypePolling is drained on a schedule while the session runs (a log
// the engine appends to live). FeedTypeOneShot is drained once on demand
// (a recorded session replayed at boot or over HTTP).
//
// # Core Feeds
//
// FileFeed tails a JSONL event log by byte offset, tolerating partial
// trailing lines and log truncation, and skipping lines that fail to
// decode. BatchFeed serves a fixed in-memory batch exactly once.
//
// # Feed Registry
//
// Registry manages feed lifecycle: it starts enabled feeds, runs a
// polling loop per polling feed, forwards every drained event to a
// DeliverFunc attributed to its source feed, and exposes manual sync
// triggers for the HTTP surface. Shutdown cancels the loops and waits
// for them before stopping the feeds.
package adapter
