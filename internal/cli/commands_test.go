package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/roastery/internal/engine"
	"github.com/roach88/roastery/internal/testutil"
)

// cliEnv runs commands against one database file. Every invocation gets its
// own id prefix (c1-, c2-, ...) and all share one stepping clock.
type cliEnv struct {
	db    string
	clock *testutil.StepClock
	n     int
}

func newCLIEnv(t *testing.T) *cliEnv {
	t.Helper()
	return &cliEnv{
		db:    filepath.Join(t.TempDir(), "roastery.db"),
		clock: testutil.NewStepClock(testutil.Epoch, time.Minute),
	}
}

func (e *cliEnv) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	e.n++
	opts := &RootOptions{EngineOptions: []engine.Option{
		engine.WithIDGenerator(engine.NewFixedGenerator(fmt.Sprintf("c%d", e.n))),
		engine.WithClock(e.clock),
	}}
	cmd := newRootCommand(opts)
	out := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(append([]string{
		"--db", e.db,
		"--catalog", "testdata/catalog",
		"--env-file", filepath.Join(t.TempDir(), "missing.env"),
	}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func (e *cliEnv) mustRun(t *testing.T, args ...string) string {
	t.Helper()
	out, err := e.run(t, args...)
	require.NoError(t, err, out)
	return out
}

func (e *cliEnv) stock(t *testing.T) {
	t.Helper()
	e.mustRun(t, "receive", "green-eth", "--qty", "10", "--unit-cost", "40")
	e.mustRun(t, "receive", "green-bra", "--qty", "10", "--unit-cost", "50")
}

func TestPlan_JSON(t *testing.T) {
	env := newCLIEnv(t)
	env.stock(t)

	out := env.mustRun(t, "--format", "json", "plan", "house", "--target", "8.5")

	var resp struct {
		Status string `json:"status"`
		Data   struct {
			Feasible bool `json:"feasible"`
			Lines    []struct {
				MaterialID     string `json:"material_id"`
				LossRateSource string `json:"loss_rate_source"`
				RequiredInput  string `json:"required_input"`
			} `json:"lines"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp), out)
	assert.Equal(t, "ok", resp.Status)
	assert.True(t, resp.Data.Feasible)
	require.Len(t, resp.Data.Lines, 2)
	assert.Equal(t, "green-eth", resp.Data.Lines[0].MaterialID)
	assert.Equal(t, "6", resp.Data.Lines[0].RequiredInput)
	assert.Equal(t, "recipe", resp.Data.Lines[1].LossRateSource)
}

func TestPlan_TextShortage(t *testing.T) {
	env := newCLIEnv(t)

	out := env.mustRun(t, "plan", "house", "--target", "8.5", "--loss", "green-bra=0.12")
	assert.Contains(t, out, "Plan house (BLEND) -> roasted-house, target 8.50")
	assert.Contains(t, out, "override")
	assert.Contains(t, out, "✗ Short by")
}

func TestExecute_EndToEnd(t *testing.T) {
	env := newCLIEnv(t)
	env.stock(t)

	out := env.mustRun(t, "execute", "house",
		"--input", "green-eth=6", "--input", "green-bra=4",
		"--output", "8.6", "--target", "8.5", "--notes", "morning roast")
	assert.Contains(t, out, "✓ Batch RB-20240301-001 recorded")
	assert.Contains(t, out, "Cost:          440.00 (44.00 per unit)")
	assert.Contains(t, out, "Realized loss: 0.140")
	assert.Contains(t, out, "Notes:    morning roast")

	out, err := env.run(t, "execute", "house", "--input", "green-eth=6,green-bra=4", "--output", "8.6")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.True(t, IsReported(err))
	assert.Contains(t, out, "Error [INSUFFICIENT_STOCK]")
	assert.Contains(t, out, "green-eth")

	out = env.mustRun(t, "stock", "roasted-house")
	assert.Contains(t, out, "Stock: 8.60  Value: 378.40")

	out = env.mustRun(t, "batch", "RB-20240301-001")
	assert.Contains(t, out, "green-bra")
	assert.Contains(t, out, "planned 9.78 for 8.50")
}

func TestBatches_Paging(t *testing.T) {
	env := newCLIEnv(t)
	env.mustRun(t, "receive", "green-eth", "--qty", "100", "--unit-cost", "7")
	for i := 0; i < 3; i++ {
		env.mustRun(t, "execute", "eth-light", "--input", "green-eth=10", "--output", "8.5")
	}

	out := env.mustRun(t, "--format", "json", "batches", "--limit", "2")
	var page struct {
		Data struct {
			Batches []struct {
				ID string `json:"id"`
			} `json:"batches"`
			NextCursor string `json:"next_cursor"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &page), out)
	require.Len(t, page.Data.Batches, 2)
	assert.Equal(t, "RB-20240301-003", page.Data.Batches[0].ID)
	require.NotEmpty(t, page.Data.NextCursor)

	out = env.mustRun(t, "batches", "--cursor", page.Data.NextCursor)
	assert.Contains(t, out, "RB-20240301-001")
	assert.NotContains(t, out, "RB-20240301-003")
	assert.NotContains(t, out, "More batches")

	out = env.mustRun(t, "batches", "--kind", "blend")
	assert.Contains(t, out, "No batches found.")

	_, err := env.run(t, "batches", "--kind", "espresso")
	assert.Equal(t, ExitCommandError, GetExitCode(err))

	out, err = env.run(t, "batches", "--cursor", "bm9wZQ")
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "INVALID_CURSOR")
}

func TestRecordAndReverse(t *testing.T) {
	env := newCLIEnv(t)
	env.mustRun(t, "receive", "roasted-eth", "--qty", "3", "--unit-cost", "20", "--at", "2024-02-01")
	env.mustRun(t, "receive", "roasted-eth", "--qty", "3", "--unit-cost", "30")

	out := env.mustRun(t, "record", "sale", "roasted-eth", "--qty", "4", "--note", "cafe order")
	assert.Contains(t, out, "SALE roasted-eth -4 (entry c3-0001)")
	assert.Contains(t, out, "Cost 90.00")

	out = env.mustRun(t, "reverse", "c3-0001", "--note", "cancelled")
	assert.Contains(t, out, "✓ Reversed c3-0001 with c4-0001")

	out, err := env.run(t, "reverse", "c3-0001")
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "NOT_REVERSIBLE")

	out = env.mustRun(t, "record", "adjustment", "roasted-eth", "--qty=-0.5", "--note", "stocktake")
	assert.Contains(t, out, "ADJUSTMENT roasted-eth -0.5")

	out = env.mustRun(t, "stock", "roasted-eth", "--all")
	assert.Contains(t, out, "Stock: 5.50")
	assert.Contains(t, out, "2024-02-01 00:00")
}

func TestCommandErrors(t *testing.T) {
	env := newCLIEnv(t)

	tests := []struct {
		name     string
		args     []string
		wantCode int
		wantOut  string
	}{
		{"bad decimal", []string{"plan", "house", "--target", "ten"}, ExitCommandError, ""},
		{"bad kind", []string{"record", "gift", "green-eth", "--qty", "1"}, ExitCommandError, ""},
		{"bad time", []string{"receive", "green-eth", "--qty", "1", "--unit-cost", "1", "--at", "yesterday"}, ExitCommandError, ""},
		{"unknown recipe", []string{"plan", "espresso", "--target", "1"}, ExitFailure, "Error [RECIPE_NOT_FOUND]"},
		{"unknown material", []string{"stock", "green-nope"}, ExitFailure, "Error [MATERIAL_NOT_FOUND]"},
		{"unknown batch", []string{"batch", "RB-20240301-999"}, ExitFailure, "Error [BATCH_NOT_FOUND]"},
		{"output above input", []string{"execute", "eth-light", "--input", "green-eth=1", "--output", "2"}, ExitFailure, "Error [INVALID_QUANTITY]"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := env.run(t, tt.args...)
			require.Error(t, err)
			assert.Equal(t, tt.wantCode, GetExitCode(err), err.Error())
			assert.Contains(t, out, tt.wantOut)
		})
	}
}

func TestMissingCatalog(t *testing.T) {
	cmd := NewRootCommand()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"--catalog", filepath.Join(t.TempDir(), "none"), "catalog"})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "failed to load catalog")
}

func TestCatalogCommand(t *testing.T) {
	env := newCLIEnv(t)

	out := env.mustRun(t, "catalog")
	assert.Contains(t, out, "green-eth")
	assert.Contains(t, out, "house")
	assert.Contains(t, out, "✓ 4 materials, 2 recipes")
}
