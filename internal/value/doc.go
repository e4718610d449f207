// Package value provides the structured payload type carried by journal
// errors and by the generic documents the CLI feeds through pipelines.
//
// A Value is a sealed, acyclic tree of primitives (null, string, int, float,
// bool), ordered arrays and string-keyed objects. Anything a Value holds can
// always be serialized, so error details recorded in a journal never fail to
// persist.
//
// Key constraints:
//   - Object keys are iterated in RFC 8785 order (UTF-16 code units)
//   - MarshalCanonical is the only encoding used for digests
//   - NaN and infinities are rejected at construction time
//
// This package imports nothing internal.
package value
