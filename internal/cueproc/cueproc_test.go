package cueproc

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/pipejournal/internal/journal"
	"github.com/roach88/pipejournal/internal/pipeline"
	"github.com/roach88/pipejournal/internal/runner"
	"github.com/roach88/pipejournal/internal/testutil"
	"github.com/roach88/pipejournal/internal/value"
)

const personSchema = `
#Person: {
	name: string
	age:  int & >=0
	tier: *"free" | "pro"
}
`

func config(overrides value.Object) value.Object {
	cfg, err := PipelineSpec().Config(overrides)
	if err != nil {
		panic(err)
	}
	return cfg
}

func personConfig() value.Object {
	return config(value.Object{
		"schema": value.String(personSchema),
		"path":   value.String("#Person"),
	})
}

func run(t *testing.T, cfg value.Object, docs ...pipeline.Document) *pipeline.Journal {
	t.Helper()
	j, err := runner.Run(context.Background(), cfg, Factory, runner.FromSlice(docs),
		runner.WithClock(testutil.NewDeterministicClock()),
		runner.WithIDGenerator(testutil.NewSequentialGenerator("cue")),
	)
	require.NoError(t, err)
	return j
}

func person(id, name string, age int64) pipeline.Document {
	return pipeline.NewDocument(journal.ID(id), value.Object{
		"name": value.String(name),
		"age":  value.Int(age),
	})
}

func TestFactory_UnifiesAndFillsDefaults(t *testing.T) {
	j := run(t, personConfig(), person("p1", "ada", 36))

	require.Equal(t, 1, j.Len())
	out, ok := j.Entry(0).Output()
	require.True(t, ok, "unexpected failure: %v", j.Entry(0).Err())
	assert.Equal(t, value.Object{
		"name": value.String("ada"),
		"age":  value.Int(36),
		"tier": value.String("free"),
	}, out)
}

func TestFactory_ConstraintViolationIsFailureEntry(t *testing.T) {
	j := run(t, personConfig(),
		person("p1", "ada", 36),
		person("p2", "bob", -1),
		person("p3", "cy", 20),
	)

	succeeded, failed := j.Counts()
	assert.Equal(t, 2, succeeded)
	assert.Equal(t, 1, failed)

	jerr := j.Entry(1).Err()
	require.NotNil(t, jerr)
	assert.Equal(t, ValidationErrorType, jerr.Type)
	assert.True(t, strings.HasPrefix(jerr.Message, "document does not match schema: "), jerr.Message)
	assert.Contains(t, jerr.Message, "age")

	details, ok := jerr.Details.(value.Array)
	require.True(t, ok)
	require.NotEmpty(t, details)
	first, ok := details[0].(value.Object)
	require.True(t, ok)
	assert.Contains(t, string(first["message"].(value.String)), "age")
}

func TestFactory_ClosedDefinitionRejectsExtraFields(t *testing.T) {
	doc := person("p1", "ada", 36)
	doc.Fields["extra"] = value.Bool(true)

	j := run(t, personConfig(), doc)

	jerr := j.Entry(0).Err()
	require.NotNil(t, jerr)
	assert.Contains(t, jerr.Message, "extra")
}

func TestFactory_ConcreteRequiresAllFields(t *testing.T) {
	doc := pipeline.NewDocument("p1", value.Object{"name": value.String("ada")})

	j := run(t, personConfig(), doc)
	require.NotNil(t, j.Entry(0).Err(), "age is not concrete")

	lenient := config(value.Object{
		"schema":   value.String(personSchema),
		"path":     value.String("#Person"),
		"concrete": value.Bool(false),
	})
	j = run(t, lenient, doc)
	out, ok := j.Entry(0).Output()
	require.True(t, ok, "unexpected failure: %v", j.Entry(0).Err())
	assert.Equal(t, value.Object{"name": value.String("ada")}, out)
}

func TestFactory_SchemaCompileErrorFailsEveryEntry(t *testing.T) {
	cfg := value.Object{"schema": value.String("name: {"), "concrete": value.Bool(true)}

	j := run(t, cfg, person("p1", "ada", 1), person("p2", "bob", 2))

	_, failed := j.Counts()
	assert.Equal(t, 2, failed)
	jerr := j.Entry(0).Err()
	require.NotNil(t, jerr)
	assert.Equal(t, SchemaErrorType, jerr.Type)

	details, ok := jerr.Details.(value.Array)
	require.True(t, ok)
	require.NotEmpty(t, details)
	pos, ok := details[0].(value.Object)["position"].(value.String)
	require.True(t, ok)
	assert.True(t, strings.HasPrefix(string(pos), schemaFilename+":"), string(pos))
}

func TestFactory_ConcurrentRunsAreSafe(t *testing.T) {
	docs := make([]pipeline.Document, 50)
	for i := range docs {
		docs[i] = person(fmt.Sprintf("p%02d", i), "n", int64(i))
	}

	j, err := runner.Run(context.Background(), personConfig(), Factory, runner.FromSlice(docs),
		runner.WithConcurrency(8))
	require.NoError(t, err)

	succeeded, failed := j.Counts()
	assert.Equal(t, 50, succeeded)
	assert.Equal(t, 0, failed)
	for i, e := range j.All() {
		assert.Equal(t, docs[i].ID, e.Input().ID)
	}
}

func TestPipelineSpec_Config(t *testing.T) {
	s := PipelineSpec()
	assert.Equal(t, "cue", s.Name)

	_, err := s.Config(nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "schema: CUE source")

	_, err = s.Config(value.Object{"schema": value.String("a: int"), "path": value.String("b")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `schema path "b" not found`)

	_, err = s.Config(value.Object{"schema": value.Int(3)})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "schema must be a string")
}

func TestParseConfig_Defaults(t *testing.T) {
	c, err := ParseConfig(value.Object{"schema": value.String("a: int")})
	require.NoError(t, err)
	assert.Equal(t, Config{Schema: "a: int", Concrete: true}, c)
}

func TestPipelineSpec_Summary(t *testing.T) {
	j := run(t, personConfig(),
		person("p1", "ada", 36),
		person("p2", "bob", -1),
	)

	table, agg, err := pipeline.Summarize(PipelineSpec(), j)
	require.NoError(t, err)
	assert.Equal(t, []string{"ID", "Status", "Error", "Duration"}, table.Header)
	assert.Equal(t, "", table.Rows[0][2])
	assert.Equal(t, ValidationErrorType, table.Rows[1][2])
	assert.Equal(t, map[string]float64{"valid": 1, "invalid": 1}, agg.Metrics)
}
