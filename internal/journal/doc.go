// Package journal defines the record of a processing run.
//
// A Journal holds the run identity, run-level metadata, the configuration
// every processor in the run was bound to, and the ordered entries produced
// for each input. Each Entry is a tagged outcome: a success carrying the
// produced output or a failure carrying a structured Error. There is no way
// to build an entry holding both or neither.
//
// Journals are immutable. The only mutator is Builder, which belongs to the
// runner for the duration of a run; Finish freezes it and hands out the
// read-only Journal.
//
// Transform derives a lazy, single-pass sequence of results from a journal's
// entries. It is how a journal is flattened for display and how the input
// stream of a follow-on run is built.
//
// Ordering: entries are kept in insertion order, which the runner guarantees
// to be input-stream order. Entry metadata carries a 1-based Seq that equals
// the entry's position.
package journal
