// Package store provides SQLite-backed durable storage for reminder records.
//
// The store is a plain record store: it never talks to the alerting or
// calendar services. Callers persist what the engine's Outcome tells them to.
//
// # Invariants
//
//   - notification_id is UNIQUE and never updated after insert
//   - calendar_link_id is NULL when a reminder has no calendar event, and a
//     partial UNIQUE index keeps two reminders from sharing one event
//   - List results are ordered by fire_at ASC, id ASC
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package store
