package cli

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"

	"github.com/roach88/pipejournal/internal/testutil"
)

const peopleJSONL = `{"id":"alpha","name":"ada","age":36}
{"id":"beta","age":7}

{"id":"gamma","name":"cy","age":12}
`

const echoRunFile = `pipeline: echo
config:
  fields: [name]
inputs: people.jsonl
labels:
  owner: tests
`

// writeFile writes content under dir and returns its path.
func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

// writeEchoRun writes the people inputs and an echo run file projecting
// "name", returning the run file path.
func writeEchoRun(t *testing.T, dir string) string {
	t.Helper()
	writeFile(t, dir, "people.jsonl", peopleJSONL)
	return writeFile(t, dir, "people.yaml", echoRunFile)
}

// executeCommand runs cmd with args and returns everything it printed.
func executeCommand(cmd *cobra.Command, args ...string) (string, error) {
	buf := &bytes.Buffer{}
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

// deterministicRunOptions returns run options whose journal is always
// "run-0001" with sequential attempt ids.
func deterministicRunOptions(dbPath, format string) *RunOptions {
	return &RunOptions{
		RootOptions: &RootOptions{Format: format},
		Database:    dbPath,
		IDGenerator: testutil.NewSequentialGenerator("run"),
		Clock:       testutil.NewDeterministicClock(),
	}
}

// seedJournal runs the echo projection over the people inputs into a fresh
// database and returns its path. The saved journal is "run-0001" with
// entries alpha, beta (failed) and gamma.
func seedJournal(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "journals.db")
	runFile := writeEchoRun(t, dir)

	cmd := &cobra.Command{}
	cmd.SetOut(io.Discard)
	require.NoError(t, runPipeline(deterministicRunOptions(dbPath, "text"), runFile, cmd))
	return dbPath
}
