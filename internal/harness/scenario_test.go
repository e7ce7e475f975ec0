package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeScenario writes content to a YAML file next to an empty catalog dir.
func writeScenario(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "catalog"), 0755))
	path := filepath.Join(dir, "scenario.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadScenario_ValidFile(t *testing.T) {
	path := writeScenario(t, `
name: test_scenario
description: "Test scenario for validation"
catalog: catalog
start: 2024-05-01T06:30:00Z
setup:
  - action: receive
    args: { material: green-eth, qty: "10", unit_cost: "7" }
flow:
  - invoke: plan
    args: { recipe: eth-light, target: "8.5" }
assertions:
  - type: trace_contains
    action: plan
`)

	scenario, err := LoadScenario(path)
	require.NoError(t, err)

	assert.Equal(t, "test_scenario", scenario.Name)
	assert.Equal(t, filepath.Join(filepath.Dir(path), "catalog"), scenario.Catalog)
	assert.Equal(t, 2024, scenario.Start.Year())
	require.Len(t, scenario.Setup, 1)
	assert.Equal(t, "10", scenario.Setup[0].Args["qty"])
	require.Len(t, scenario.Flow, 1)
	assert.Equal(t, ActionPlan, scenario.Flow[0].Invoke)
	assert.Nil(t, scenario.Flow[0].Expect)
}

func TestLoadScenario_Testdata(t *testing.T) {
	paths, err := filepath.Glob("testdata/scenarios/*.yaml")
	require.NoError(t, err)
	require.NotEmpty(t, paths)

	for _, path := range paths {
		t.Run(filepath.Base(path), func(t *testing.T) {
			_, err := LoadScenario(path)
			assert.NoError(t, err)
		})
	}
}

func TestLoadScenario_MissingFile(t *testing.T) {
	_, err := LoadScenario(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read scenario file")
}

func TestLoadScenario_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{
			name:    "unknown field",
			content: "name: x\ndescription: y\nflows: []\n",
			wantErr: "failed to parse YAML",
		},
		{
			name:    "missing name",
			content: "description: y\nflow: [{invoke: stock, args: {material: m}}]\nassertions: [{type: conservation}]\n",
			wantErr: "name is required",
		},
		{
			name:    "missing catalog dir",
			content: "name: x\ndescription: y\ncatalog: nowhere\nflow: [{invoke: stock, args: {material: m}}]\nassertions: [{type: conservation}]\n",
			wantErr: "catalog directory not found",
		},
		{
			name:    "empty flow",
			content: "name: x\ndescription: y\nflow: []\nassertions: [{type: conservation}]\n",
			wantErr: "flow list is required",
		},
		{
			name:    "unknown action",
			content: "name: x\ndescription: y\nflow: [{invoke: roast, args: {}}]\nassertions: [{type: conservation}]\n",
			wantErr: `unknown action "roast"`,
		},
		{
			name:    "setup without args",
			content: "name: x\ndescription: y\nsetup: [{action: receive}]\nflow: [{invoke: stock, args: {material: m}}]\nassertions: [{type: conservation}]\n",
			wantErr: "setup[0]: args is required",
		},
		{
			name:    "expect without case",
			content: "name: x\ndescription: y\nflow: [{invoke: stock, args: {material: m}, expect: {result: {lots: 1}}}]\nassertions: [{type: conservation}]\n",
			wantErr: "case is required",
		},
		{
			name:    "stock assertion without material",
			content: "name: x\ndescription: y\nflow: [{invoke: stock, args: {material: m}}]\nassertions: [{type: stock, expect: {quantity: 1}}]\n",
			wantErr: "material is required",
		},
		{
			name:    "unknown assertion",
			content: "name: x\ndescription: y\nflow: [{invoke: stock, args: {material: m}}]\nassertions: [{type: eventually}]\n",
			wantErr: `unknown assertion type "eventually"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadScenario(writeScenario(t, tt.content))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
