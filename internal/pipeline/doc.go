// Package pipeline names runnable pipelines and describes how they are
// configured, fed and summarized.
//
// A Spec pairs a name and description with a default configuration and a
// runner.Factory over Documents. A Registry holds the specs a program can
// run. Run files (YAML) select a pipeline, override its configuration and
// point at a JSON Lines input file.
//
// Every registered pipeline shares one shape: configuration is a
// value.Object, inputs are Documents and outputs are value.Value. That
// keeps journals of different pipelines storable and displayable by the
// same code.
package pipeline
