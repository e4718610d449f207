package cli

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/pipejournal/internal/journal"
	"github.com/roach88/pipejournal/internal/store"
	"github.com/roach88/pipejournal/internal/value"
)

func TestShow(t *testing.T) {
	dbPath := seedJournal(t)

	out, err := executeCommand(NewShowCommand(&RootOptions{Format: "text"}), "--db", dbPath, "run-0001")
	require.NoError(t, err)
	assert.Contains(t, out, "Journal run-0001")
	assert.Contains(t, out, "Pipeline: echo")
	assert.Contains(t, out, "Entries:  3 (2 succeeded, 1 failed)")
	assert.Contains(t, out, `✓ alp {"name":"ada"}`)
	assert.Contains(t, out, "✗ bet document beta is missing 1 field(s)")
	assert.Contains(t, out, `✓ gam {"name":"cy"}`)

	// entries print in seq order
	assert.Less(t, strings.Index(out, "alp"), strings.Index(out, "bet"))
	assert.Less(t, strings.Index(out, "bet"), strings.Index(out, "gam"))
}

func TestShow_Prefix(t *testing.T) {
	dbPath := seedJournal(t)

	out, err := executeCommand(NewShowCommand(&RootOptions{Format: "text"}), "--db", dbPath, "run")
	require.NoError(t, err)
	assert.Contains(t, out, "Journal run-0001")
}

func TestShow_FailuresOnly(t *testing.T) {
	dbPath := seedJournal(t)

	out, err := executeCommand(NewShowCommand(&RootOptions{Format: "text"}), "--db", dbPath, "--failures", "run-0001")
	require.NoError(t, err)
	assert.Contains(t, out, "✗ bet")
	assert.NotContains(t, out, "✓")
}

func TestShow_JSON(t *testing.T) {
	dbPath := seedJournal(t)

	out, err := executeCommand(NewShowCommand(&RootOptions{Format: "json"}), "--db", dbPath, "--failures", "run-0001")
	require.NoError(t, err)

	var resp struct {
		Status    string     `json:"status"`
		Data      ShowResult `json:"data"`
		JournalID string     `json:"journal_id"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "run-0001", resp.JournalID)
	assert.Equal(t, 3, resp.Data.Journal.Entries)
	require.Len(t, resp.Data.Entries, 1)
	assert.Equal(t, int64(2), resp.Data.Entries[0].Seq)
	assert.Contains(t, resp.Data.Entries[0].ErrorMessage(), "missing 1 field(s)")
}

func TestShow_NotFound(t *testing.T) {
	dbPath := seedJournal(t)

	_, err := executeCommand(NewShowCommand(&RootOptions{Format: "text"}), "--db", dbPath, "nope")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "journal not found: nope")
}

func TestList(t *testing.T) {
	dbPath := seedJournal(t)

	out, err := executeCommand(NewListCommand(&RootOptions{Format: "text"}), "--db", dbPath)
	require.NoError(t, err)
	assert.Contains(t, out, "ID")
	assert.Contains(t, out, "PIPELINE")
	assert.Contains(t, out, "run-0001")
	assert.Contains(t, out, "echo")

	out, err = executeCommand(NewListCommand(&RootOptions{Format: "text"}), "--db", dbPath, "--pipeline", "cue")
	require.NoError(t, err)
	assert.Contains(t, out, "No journals found.")
}

func TestList_Empty(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "empty.db")

	out, err := executeCommand(NewListCommand(&RootOptions{Format: "text"}), "--db", dbPath)
	require.NoError(t, err)
	assert.Contains(t, out, "No journals found.")
}

func TestSummary(t *testing.T) {
	dbPath := seedJournal(t)

	out, err := executeCommand(NewSummaryCommand(&RootOptions{Format: "text"}), "--db", dbPath, "run")
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.GreaterOrEqual(t, len(lines), 4)
	assert.Equal(t, []string{"ID", "Status", "Seq", "Duration"}, strings.Fields(lines[0]))
	assert.Equal(t, []string{"alp", "success", "1"}, strings.Fields(lines[1])[:3])
	assert.Equal(t, []string{"bet", "error", "2"}, strings.Fields(lines[2])[:3])
	assert.Contains(t, out, "Total: 3 entries, 2 succeeded, 1 failed")
	assert.Contains(t, out, "  complete: 2")
}

func TestSummary_JSON(t *testing.T) {
	dbPath := seedJournal(t)

	out, err := executeCommand(NewSummaryCommand(&RootOptions{Format: "json"}), "--db", dbPath, "run-0001")
	require.NoError(t, err)

	var resp struct {
		Data SummaryResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "run-0001", resp.Data.JournalID)
	assert.Equal(t, "echo", resp.Data.Pipeline)
	assert.Equal(t, []string{"ID", "Status", "Seq", "Duration"}, resp.Data.Columns)
	assert.Len(t, resp.Data.Rows, 3)
	assert.Equal(t, 2, resp.Data.Succeeded)
	assert.Equal(t, map[string]float64{"complete": 2}, resp.Data.Metrics)
}

func TestDelete(t *testing.T) {
	dbPath := seedJournal(t)

	out, err := executeCommand(NewDeleteCommand(&RootOptions{Format: "text"}), "--db", dbPath, "run-0001")
	require.NoError(t, err)
	assert.Contains(t, out, "Deleted journal run-0001")

	_, err = executeCommand(NewShowCommand(&RootOptions{Format: "text"}), "--db", dbPath, "run-0001")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "journal not found")

	_, err = executeCommand(NewDeleteCommand(&RootOptions{Format: "text"}), "--db", dbPath, "run-0001")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestChain(t *testing.T) {
	dbPath := seedJournal(t)

	out, err := executeCommand(NewChainCommand(&RootOptions{Format: "json"}), "--db", dbPath, "--ids", "ulid", "run-0001")
	require.NoError(t, err)

	var resp struct {
		Status string     `json:"status"`
		Data   RunSummary `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	// one entry per success of the source journal
	assert.Equal(t, "echo", resp.Data.Pipeline)
	assert.Equal(t, 2, resp.Data.Entries)
	assert.Equal(t, 2, resp.Data.Succeeded)
	assert.Len(t, string(resp.Data.JournalID), 26)

	out, err = executeCommand(NewShowCommand(&RootOptions{Format: "text"}), "--db", dbPath, string(resp.Data.JournalID))
	require.NoError(t, err)
	assert.Contains(t, out, `{"name":"ada"}`)
	assert.Contains(t, out, `{"name":"cy"}`)
}

func TestChain_OtherPipeline(t *testing.T) {
	dbPath := seedJournal(t)

	// the chained documents only carry "name", so a projection on "age"
	// fails every entry
	out, err := executeCommand(NewChainCommand(&RootOptions{Format: "text"}),
		"--db", dbPath, "--pipeline", "echo", "--set", `fields=["age"]`, "run-0001")
	require.NoError(t, err)
	assert.Contains(t, out, "2 entries, 0 succeeded, 2 failed")
}

func TestChain_Failures(t *testing.T) {
	dbPath := seedJournal(t)

	out, err := executeCommand(NewChainCommand(&RootOptions{Format: "json"}),
		"--db", dbPath, "--ids", "ulid", "--failures", "--set", "fields=[]", "run-0001")
	require.NoError(t, err)

	var resp struct {
		Data RunSummary `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	// only beta failed in the source journal; without a projection it passes
	assert.Equal(t, 1, resp.Data.Entries)
	assert.Equal(t, 1, resp.Data.Succeeded)

	st, err := store.Open(dbPath)
	require.NoError(t, err)
	defer st.Close()

	j, err := loadJournal(context.Background(), st, string(resp.Data.JournalID))
	require.NoError(t, err)
	require.Equal(t, 1, j.Len())
	assert.Equal(t, journal.ID("beta"), j.Entry(0).Input().ID)
	out0, ok := j.Entry(0).Output()
	require.True(t, ok)
	assert.Equal(t, value.Object{"age": value.Int(7)}, out0)
	assert.Equal(t, "run-0001", j.Metadata().Labels["retried_from"])
}

func TestChain_MetricsFile(t *testing.T) {
	dbPath := seedJournal(t)
	metricsPath := filepath.Join(t.TempDir(), "chain.prom")

	_, err := executeCommand(NewChainCommand(&RootOptions{Format: "text"}),
		"--db", dbPath, "--metrics-file", metricsPath, "run-0001")
	require.NoError(t, err)

	data, err := os.ReadFile(metricsPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), `pipejournal_runner_entries_total{pipeline="echo",status="success"} 2`)
}

func TestChain_UnknownJournal(t *testing.T) {
	dbPath := seedJournal(t)

	_, err := executeCommand(NewChainCommand(&RootOptions{Format: "text"}), "--db", dbPath, "zzz")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "journal not found: zzz")
}

func TestPipelines(t *testing.T) {
	out, err := executeCommand(NewPipelinesCommand(&RootOptions{Format: "text"}))
	require.NoError(t, err)
	assert.Contains(t, out, "echo")
	assert.Contains(t, out, "cue")
}

func TestPipelines_JSON(t *testing.T) {
	out, err := executeCommand(NewPipelinesCommand(&RootOptions{Format: "json"}))
	require.NoError(t, err)

	var resp struct {
		Data []PipelineInfo `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	require.Len(t, resp.Data, 3)
	assert.Equal(t, "check", resp.Data[0].Name)
	assert.Contains(t, resp.Data[0].Required, "schema")
	assert.Equal(t, "cue", resp.Data[1].Name)
	assert.Contains(t, resp.Data[1].Required, "schema")
	assert.Equal(t, "echo", resp.Data[2].Name)
}
