// Package store provides SQLite-backed durable storage for FQL subscriptions
// and sample events.
//
// The store holds:
//   - Subscriptions: one FQL filter per (destination, action)
//   - Events: sample traffic for previewing what a filter selects
//
// # Normalization on save
//
// SaveSubscription parses the submitted text and stores the generator's
// canonical form next to it, together with the AST as JSON and a
// content-addressed fingerprint. Two submissions that differ only in
// whitespace or redundant parentheses share canonical text and fingerprint.
//
// # Deterministic reads
//
//   - All ordering uses seq INTEGER, never timestamps
//   - All list queries use ORDER BY seq ASC, id COLLATE BINARY ASC
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON
//
// IDs are UUIDv7, so they sort by creation time.
package store
