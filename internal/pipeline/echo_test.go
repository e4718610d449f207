package pipeline

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/pipejournal/internal/runner"
	"github.com/roach88/pipejournal/internal/value"
)

func TestEcho_IdentityByDefault(t *testing.T) {
	s := EchoSpec()
	cfg, err := s.Config(nil)
	require.NoError(t, err)

	doc := NewDocument("a", value.Object{"text": value.String("hi")})
	out, err := s.Factory(cfg).Process(context.Background(), doc)
	require.NoError(t, err)
	assert.Equal(t, value.Object{"text": value.String("hi")}, out)
}

func TestEcho_ProjectsFields(t *testing.T) {
	s := EchoSpec()
	cfg, err := s.Config(value.Object{"fields": value.Array{value.String("b")}})
	require.NoError(t, err)

	doc := NewDocument("a", value.Object{"a": value.Int(1), "b": value.Int(2)})
	out, err := s.Factory(cfg).Process(context.Background(), doc)
	require.NoError(t, err)
	assert.Equal(t, value.Object{"b": value.Int(2)}, out)
}

func TestEcho_MissingFieldIsProcessingError(t *testing.T) {
	s := EchoSpec()
	cfg, err := s.Config(value.Object{"fields": value.Array{value.String("x"), value.String("y")}})
	require.NoError(t, err)

	j, err := runner.Run(context.Background(), cfg, s.Factory,
		runner.FromSlice([]Document{NewDocument("a", value.Object{"y": value.Int(1)})}),
		deterministicRun()...)
	require.NoError(t, err)

	require.Equal(t, 1, j.Len())
	jerr := j.Entry(0).Err()
	require.NotNil(t, jerr)
	assert.Equal(t, MissingFieldErrorType, jerr.Type)
	assert.Equal(t, "document a is missing 1 field(s)", jerr.Message)
	assert.Equal(t, value.Object{"missing": value.Array{value.String("x")}}, jerr.Details)
}

func TestEcho_InvalidConfig(t *testing.T) {
	s := EchoSpec()

	_, err := s.Config(value.Object{"fields": value.String("text")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "fields must be a list")

	_, err = s.Config(value.Object{"fields": value.Array{value.Int(1)}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "fields[0] must be a string")
}
