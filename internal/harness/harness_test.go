package harness

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/pipejournal/internal/cueproc"
	"github.com/roach88/pipejournal/internal/journal"
	"github.com/roach88/pipejournal/internal/pipeline"
	"github.com/roach88/pipejournal/internal/store"
)

func testRegistry() *pipeline.Registry {
	reg := pipeline.NewRegistry()
	reg.MustRegister(pipeline.EchoSpec())
	reg.MustRegister(cueproc.PipelineSpec())
	return reg
}

func mustParse(t *testing.T, yaml string) *Scenario {
	t.Helper()
	s, err := ParseScenario([]byte(yaml))
	require.NoError(t, err)
	return s
}

func TestRun_ScenarioFiles(t *testing.T) {
	paths, err := filepath.Glob(filepath.Join("testdata", "scenarios", "*.yaml"))
	require.NoError(t, err)
	require.NotEmpty(t, paths)

	for _, path := range paths {
		t.Run(filepath.Base(path), func(t *testing.T) {
			s, err := LoadScenario(path)
			require.NoError(t, err)

			result, err := Run(context.Background(), testRegistry(), s)
			require.NoError(t, err)
			assert.True(t, result.Pass, "errors: %v", result.Errors)
			assert.Empty(t, result.Errors)
		})
	}
}

func TestRun_DeterministicIDs(t *testing.T) {
	s := mustParse(t, "name: det\npipeline: echo\ninputs: [{id: a}, {id: b}]\n")

	result, err := Run(context.Background(), testRegistry(), s)
	require.NoError(t, err)

	j := result.Journal
	assert.Equal(t, journal.ID("det-0001"), j.ID())
	assert.Equal(t, "echo", j.Metadata().Pipeline)
	assert.Equal(t, journal.ID("det-0002"), j.Entry(0).Metadata().AttemptID)
	assert.Equal(t, journal.ID("det-0003"), j.Entry(1).Metadata().AttemptID)
}

func TestRun_ConcurrencyKeepsDigest(t *testing.T) {
	const yaml = `
name: conc
pipeline: echo
config: { fields: [n] }
inputs: [{id: a, n: 1}, {id: b}, {id: c, n: 3}, {id: d, n: 4}, {id: e}]
`
	sequential := mustParse(t, yaml)
	concurrent := mustParse(t, yaml)
	concurrent.Concurrency = 4

	r1, err := Run(context.Background(), testRegistry(), sequential)
	require.NoError(t, err)
	r2, err := Run(context.Background(), testRegistry(), concurrent)
	require.NoError(t, err)

	assert.Equal(t, r1.Digest, r2.Digest)
}

func TestRun_ReportsExpectationMismatches(t *testing.T) {
	s := mustParse(t, `
name: mismatch
pipeline: echo
config: { fields: [text] }
inputs:
  - { id: a, text: one }
  - { id: b }
  - { id: c, text: three }
expect:
  a: { status: error }
  b: { status: error, error_contains: "nothing like this" }
  c: { status: success, output: { text: four } }
`)

	result, err := Run(context.Background(), testRegistry(), s)
	require.NoError(t, err)

	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 3)
	assert.Equal(t, "input a: expected status error, got success", result.Errors[0])
	assert.Contains(t, result.Errors[1], `input b: error "document b is missing 1 field(s)" does not contain`)
	assert.Equal(t, `input c: output {"text":"three"} does not contain {"text":"four"}`, result.Errors[2])
}

func TestRun_ReportsErrorTypeMismatch(t *testing.T) {
	s := mustParse(t, `
name: errtype
pipeline: echo
config: { fields: [text] }
inputs: [{ id: a }]
expect:
  a: { status: error, error_type: panic }
`)
	result, err := Run(context.Background(), testRegistry(), s)
	require.NoError(t, err)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, `input a: expected error type "panic", got "missing_field"`, result.Errors[0])
}

func TestRun_FailedAssertions(t *testing.T) {
	s := mustParse(t, `
name: assertions
pipeline: echo
inputs: [{id: a}, {id: b}]
assertions:
  - { type: entry_count, count: 5 }
  - { type: entry_order, ids: [b, a] }
  - { type: entry_order, ids: [a, zz] }
  - { type: stored, expect: { failures: 1 } }
`)
	result, err := Run(context.Background(), testRegistry(), s)
	require.NoError(t, err)

	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 4)
	assert.Contains(t, result.Errors[0], "Expected: 5 entries")
	assert.Contains(t, result.Errors[0], "Actual: 2 entries")
	assert.Contains(t, result.Errors[1], "b (pos 2) should be before a (pos 1)")
	assert.Contains(t, result.Errors[2], "missing id: zz")
	assert.Contains(t, result.Errors[3], `summary containing {"failures":1}`)
}

func TestRun_Errors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{"unknown pipeline", "name: x\npipeline: nope\ninputs: [{id: a}]\n", "unknown pipeline"},
		{"invalid config", "name: x\npipeline: echo\nconfig: { fields: text }\ninputs: [{id: a}]\n", "fields must be a list"},
		{"missing required config", "name: x\npipeline: cue\ninputs: [{id: a}]\n", "schema: CUE source"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Run(context.Background(), testRegistry(), mustParse(t, tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestEvaluateAssertions_UsesGivenStore(t *testing.T) {
	s := mustParse(t, "name: st\npipeline: echo\ninputs: [{id: a}]\n")
	result, err := Run(context.Background(), testRegistry(), s)
	require.NoError(t, err)

	st, err := store.Open(filepath.Join(t.TempDir(), "h.db"))
	require.NoError(t, err)
	defer st.Close()

	errs := EvaluateAssertions(result, []Assertion{{Type: AssertStored}}, &AssertionContext{Store: st, Ctx: context.Background()})
	assert.Empty(t, errs)

	summaries, err := st.ListJournals(context.Background(), store.Filter{})
	require.NoError(t, err)
	require.Len(t, summaries, 1)
	assert.Equal(t, result.Journal.ID(), summaries[0].ID)
	assert.Equal(t, result.Digest, summaries[0].Digest)
}

func TestEvaluateAssertions_UnknownType(t *testing.T) {
	s := mustParse(t, "name: u\npipeline: echo\ninputs: [{id: a}]\n")
	result, err := Run(context.Background(), testRegistry(), s)
	require.NoError(t, err)

	errs := EvaluateAssertions(result, []Assertion{{Type: "final_state"}}, nil)
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0], `unknown assertion type "final_state"`)
}
