// Package cueproc provides the "cue" pipeline: each document is unified
// with a CUE schema and the unified value becomes the entry's output.
//
// Configuration:
//
//	schema:   CUE source (required)
//	path:     selector of the schema within the source, e.g. "#Doc" (optional)
//	concrete: require every field of the result to be concrete (default true)
//
// The schema is compiled once per run. Documents that do not unify become
// failure entries whose details list each CUE error with its position.
//
// The package also provides the "check" pipeline, a fan-out of the echo
// projection and the CUE schema over the same document. Its configuration
// is the union of both, and an entry fails only when both processors fail.
package cueproc
