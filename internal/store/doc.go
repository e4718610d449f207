// Package store provides SQLite-backed durable storage for completed
// journals.
//
// A journal is stored as one row in journals plus one row per entry in
// entries. Journals are written once: Save is idempotent on the journal id
// and never rewrites a stored journal.
//
// # Critical Patterns
//
// Entry order
//   - entries are keyed UNIQUE(journal_id, seq)
//   - all entry queries MUST include ORDER BY seq ASC
//
// Either/or outcome
//   - CHECK((output IS NULL) <> (error IS NULL)) rejects rows carrying both
//     an output and an error, or neither
//
// Content digest
//   - journals.digest holds journal.Digest at save time
//   - Load recomputes it and reports ErrCorrupt on mismatch
//
// Payloads (input, output, error, config) are stored as RFC 8785 canonical
// JSON text.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Entries are deleted with their journal
package store
