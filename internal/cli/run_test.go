package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/topo/internal/testutil"
)

const flakyScenario = `
name: flaky
description: "one system fails on its second tick"
systems:
  - name: a
    fail_on: [2]
  - name: b
    after: [a]
steps:
  - tick: default
    count: 3
assertions:
  - type: error
    system: a
    contains: "tick 2"
  - type: runs
    system: b
    count: 3
`

func executeRun(t *testing.T, format string, ids []string, args ...string) (string, error) {
	t.Helper()
	buf := &bytes.Buffer{}
	cmd := newRunCommand(&RunOptions{
		RootOptions: &RootOptions{Format: format},
		IDGenerator: testutil.NewFixedIDs(ids...),
	})
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

// recordRun runs body as a scenario into the journal at dir/topo.db.
func recordRun(t *testing.T, dir, body string, ids ...string) string {
	t.Helper()
	dbPath := filepath.Join(dir, "topo.db")
	scenario := writeScenario(t, dir, "scenario.yaml", body)
	_, err := executeRun(t, "text", ids, "--db", dbPath, scenario)
	require.NoError(t, err)
	return dbPath
}

func TestRunMissingDatabaseFlag(t *testing.T) {
	scenario := writeScenario(t, t.TempDir(), "s.yaml", flakyScenario)

	_, err := executeRun(t, "text", nil, scenario)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "required flag")
	assert.Contains(t, err.Error(), "db")
}

func TestRunNonExistentScenario(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "topo.db")

	_, err := executeRun(t, "text", nil, "--db", dbPath, filepath.Join(dir, "missing.yaml"))

	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "scenario file not found")

	_, statErr := os.Stat(dbPath)
	assert.True(t, os.IsNotExist(statErr), "no journal is created for a missing scenario")
}

func TestRunInvalidScenario(t *testing.T) {
	dir := t.TempDir()
	scenario := writeScenario(t, dir, "bad.yaml", "name: bad\n")

	_, err := executeRun(t, "text", nil, "--db", filepath.Join(dir, "topo.db"), scenario)

	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "failed to load scenario")
}

func TestRunRecordsJournalJSON(t *testing.T) {
	dir := t.TempDir()
	scenario := writeScenario(t, dir, "flaky.yaml", flakyScenario)

	out, err := executeRun(t, "json", []string{"run-1"}, "--db", filepath.Join(dir, "topo.db"), scenario)
	require.NoError(t, err)

	var resp struct {
		Status string     `json:"status"`
		Data   RunSummary `json:"data"`
		RunID  string     `json:"run_id"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "run-1", resp.RunID)
	assert.Equal(t, RunSummary{
		RunID:    "run-1",
		Scenario: "flaky",
		Pass:     true,
		Ticks:    3,
		Failures: 1,
	}, resp.Data)
}

func TestRunFailingScenarioText(t *testing.T) {
	dir := t.TempDir()
	scenario := writeScenario(t, dir, "failing.yaml", failingScenario)

	out, err := executeRun(t, "text", []string{"run-1"}, "--db", filepath.Join(dir, "topo.db"), scenario)

	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "Run run-1: failing")
	assert.Contains(t, out, "Ticks: 1, failures: 0")
	assert.Contains(t, out, "Assertion failed: runs")
}

func TestRunAppendsRuns(t *testing.T) {
	dir := t.TempDir()
	recordRun(t, dir, flakyScenario, "run-1")
	dbPath := recordRun(t, dir, flakyScenario, "run-2")

	out, err := executeTrace(t, "text", "--db", dbPath, "--list")

	require.NoError(t, err)
	assert.Contains(t, out, "#1 run-1 flaky (3 ticks, 1 failures)")
	assert.Contains(t, out, "#2 run-2 flaky (3 ticks, 1 failures)")
}
