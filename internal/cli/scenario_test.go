package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runScenarioCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	buf := &bytes.Buffer{}
	cmd := NewRootCommand()
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(append([]string{"scenario"}, args...))
	err := cmd.Execute()
	return buf.String(), err
}

// writeScenarioDir writes one scenario that uses the test catalog.
func writeScenarioDir(t *testing.T, expectedCost string) string {
	t.Helper()
	catalogDir, err := filepath.Abs("testdata/catalog")
	require.NoError(t, err)

	dir := t.TempDir()
	content := `
name: eth_roast
description: "Roast one origin"
catalog: ` + catalogDir + `
setup:
  - action: receive
    args: { material: green-eth, qty: "10", unit_cost: "7" }
flow:
  - invoke: execute
    args: { recipe: eth-light, inputs: { green-eth: "10" }, output: "8.5" }
    expect:
      case: OK
      result: { total_cost: "` + expectedCost + `" }
assertions:
  - type: conservation
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "eth_roast.yaml"), []byte(content), 0644))
	return dir
}

func TestScenarioCommand_MissingArgs(t *testing.T) {
	_, err := runScenarioCommand(t)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "requires at least 1 arg")
}

func TestScenarioCommand_NonExistentPath(t *testing.T) {
	_, err := runScenarioCommand(t, "/nonexistent/scenarios")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "scenario path not found")
}

func TestScenarioCommand_EmptyDir(t *testing.T) {
	out, err := runScenarioCommand(t, t.TempDir())
	require.NoError(t, err)
	assert.Contains(t, out, "No scenarios found")
}

func TestScenarioCommand_HarnessScenarios(t *testing.T) {
	out, err := runScenarioCommand(t, "../harness/testdata/scenarios")
	require.NoError(t, err, out)
	assert.Contains(t, out, "✓ house_blend")
	assert.Contains(t, out, "✓ reversal")
	assert.Contains(t, out, "3 passed, 0 failed, 3 total")
}

func TestScenarioCommand_Filter(t *testing.T) {
	out, err := runScenarioCommand(t, "../harness/testdata/scenarios", "--filter", "rev*")
	require.NoError(t, err, out)
	assert.Contains(t, out, "1 passed, 0 failed, 1 total")
}

func TestScenarioCommand_FailureJSON(t *testing.T) {
	dir := writeScenarioDir(t, "1.00")

	out, err := runScenarioCommand(t, dir, "--format", "json")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.True(t, IsReported(err))

	var resp struct {
		Status string     `json:"status"`
		Data   TestResult `json:"data"`
		Error  *CLIError  `json:"error"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp), out)
	assert.Equal(t, "error", resp.Status)
	assert.Equal(t, 1, resp.Data.Failed)
	require.Len(t, resp.Data.Scenarios, 1)
	assert.Contains(t, resp.Data.Scenarios[0].Errors[0], "expected result")
	assert.Equal(t, "SCENARIO_FAILED", resp.Error.Code)
}

func TestScenarioCommand_UpdateGolden(t *testing.T) {
	dir := writeScenarioDir(t, "70.00")

	out, err := runScenarioCommand(t, dir, "--update")
	require.NoError(t, err, out)
	assert.Contains(t, out, "golden updated")

	goldenPath := filepath.Join(dir, "golden", "eth_roast.golden")
	golden, err := os.ReadFile(goldenPath)
	require.NoError(t, err)
	assert.Contains(t, string(golden), `"scenario_name": "eth_roast"`)

	out, err = runScenarioCommand(t, dir)
	require.NoError(t, err, out)
	assert.Contains(t, out, "✓ eth_roast")

	require.NoError(t, os.WriteFile(goldenPath, []byte("{}\n"), 0644))
	out, err = runScenarioCommand(t, dir)
	require.Error(t, err)
	assert.Contains(t, out, "trace does not match golden file")
}
