package cli

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "pipejournal", cmd.Use)
	assert.Contains(t, cmd.Long, "durable journal")
}

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand()
	commands := []string{"run", "chain", "show", "list", "summary", "delete", "test", "pipelines"}

	for _, cmdName := range commands {
		t.Run(cmdName, func(t *testing.T) {
			subCmd, _, err := cmd.Find([]string{cmdName})
			require.NoError(t, err, "Command %s should exist", cmdName)
			require.NotNil(t, subCmd)
			assert.Equal(t, cmdName, subCmd.Name())
		})
	}
}

func TestGlobalFlags(t *testing.T) {
	cmd := NewRootCommand()

	verboseFlag := cmd.PersistentFlags().Lookup("verbose")
	require.NotNil(t, verboseFlag)
	assert.Equal(t, "v", verboseFlag.Shorthand)
	assert.Equal(t, "false", verboseFlag.DefValue)

	formatFlag := cmd.PersistentFlags().Lookup("format")
	require.NotNil(t, formatFlag)
	assert.Equal(t, "text", formatFlag.DefValue)
}

func TestDatabaseFlags(t *testing.T) {
	for _, name := range []string{"run", "chain", "show", "list", "summary", "delete"} {
		t.Run(name, func(t *testing.T) {
			cmd := NewRootCommand()
			subCmd, _, err := cmd.Find([]string{name})
			require.NoError(t, err)

			dbFlag := subCmd.Flags().Lookup("db")
			require.NotNil(t, dbFlag)
			// --db is required, so default is empty
			assert.Equal(t, "", dbFlag.DefValue)
		})
	}
}

func TestRunCommandFlags(t *testing.T) {
	cmd := NewRootCommand()
	runCmd, _, err := cmd.Find([]string{"run"})
	require.NoError(t, err)

	for _, name := range []string{"set", "ids", "concurrency"} {
		assert.NotNil(t, runCmd.Flags().Lookup(name), "run should have --%s", name)
	}
	assert.Equal(t, "0", runCmd.Flags().Lookup("concurrency").DefValue)
}

func TestInvalidFormat(t *testing.T) {
	cmd := NewRootCommand()
	_, err := executeCommand(cmd, "--format", "xml", "pipelines")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `invalid format "xml"`)
}

func TestDefaultRegistry(t *testing.T) {
	reg := DefaultRegistry()
	assert.Equal(t, []string{"check", "cue", "echo"}, reg.Names())
}

func TestNewLogger_Levels(t *testing.T) {
	ctx := t.Context()
	assert.False(t, newLogger(nil, false).Enabled(ctx, slog.LevelDebug))
	assert.True(t, newLogger(nil, true).Enabled(ctx, slog.LevelDebug))
}
