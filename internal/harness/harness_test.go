package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/roastery/internal/testutil"
)

func loadTestScenario(t *testing.T, name string) *Scenario {
	t.Helper()
	scenario, err := LoadScenario("testdata/scenarios/" + name + ".yaml")
	require.NoError(t, err)
	return scenario
}

func TestRun_Scenarios(t *testing.T) {
	for _, name := range []string{"house_blend", "reversal", "daily_batches"} {
		t.Run(name, func(t *testing.T) {
			result, err := Run(loadTestScenario(t, name))
			require.NoError(t, err)
			assert.True(t, result.Pass, "errors: %v", result.Errors)
			assert.Empty(t, result.Errors)
		})
	}
}

func TestRun_Deterministic(t *testing.T) {
	first, err := Run(loadTestScenario(t, "reversal"))
	require.NoError(t, err)
	second, err := Run(loadTestScenario(t, "reversal"))
	require.NoError(t, err)

	a, err := MarshalTrace("reversal", first.Trace)
	require.NoError(t, err)
	b, err := MarshalTrace("reversal", second.Trace)
	require.NoError(t, err)
	assert.Equal(t, string(a), string(b))
}

func TestRun_NoCatalog(t *testing.T) {
	_, err := Run(&Scenario{Name: "x"})
	assert.ErrorContains(t, err, "no catalog")
}

func TestRunWithCatalog_UnexpectedCase(t *testing.T) {
	scenario := &Scenario{
		Name: "oversell",
		Flow: []FlowStep{
			{Invoke: ActionRecord, Args: map[string]any{"kind": "sale", "material": "roasted-yirg", "qty": "1"}},
		},
		Assertions: []Assertion{{Type: AssertConservation}},
	}

	result, err := RunWithCatalog(scenario, testutil.Catalog(t))
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "expected case OK, got INSUFFICIENT_STOCK")

	require.Len(t, result.Trace, 2)
	assert.Equal(t, "INSUFFICIENT_STOCK", result.Trace[1].Case)
	assert.Equal(t, map[string]any{"shortfall": map[string]any{"roasted-yirg": "1.00"}}, result.Trace[1].Result)
}

func TestRunWithCatalog_ResultMismatch(t *testing.T) {
	scenario := &Scenario{
		Name: "wrong_cost",
		Setup: []ActionStep{
			{Action: ActionReceive, Args: map[string]any{"material": "green-yirg", "qty": "5", "unit_cost": "100"}},
		},
		Flow: []FlowStep{{
			Invoke: ActionExecute,
			Args: map[string]any{
				"recipe": "yirg",
				"inputs": map[string]any{"green-yirg": "5"},
				"output": "4.25",
			},
			Expect: &ExpectClause{Case: CaseOK, Result: map[string]any{"unit_cost": "99"}},
		}},
		Assertions: []Assertion{{Type: AssertConservation}},
	}

	result, err := RunWithCatalog(scenario, testutil.Catalog(t))
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "expected result")
}

func TestRunWithCatalog_SetupFailureAborts(t *testing.T) {
	scenario := &Scenario{
		Name: "bad_setup",
		Setup: []ActionStep{
			{Action: ActionReceive, Args: map[string]any{"material": "green-nope", "qty": "5", "unit_cost": "1"}},
		},
		Flow:       []FlowStep{{Invoke: ActionStock, Args: map[string]any{"material": "green-yirg"}}},
		Assertions: []Assertion{{Type: AssertConservation}},
	}

	_, err := RunWithCatalog(scenario, testutil.Catalog(t))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "setup step 0 (receive)")
}

func TestRunWithCatalog_MalformedArgsAbort(t *testing.T) {
	scenario := &Scenario{
		Name:       "bad_args",
		Flow:       []FlowStep{{Invoke: ActionPlan, Args: map[string]any{"recipe": "yirg"}}},
		Assertions: []Assertion{{Type: AssertConservation}},
	}

	_, err := RunWithCatalog(scenario, testutil.Catalog(t))
	require.Error(t, err)
	assert.Contains(t, err.Error(), `missing arg "target"`)
}

func TestRunWithCatalog_NumericArgs(t *testing.T) {
	scenario := &Scenario{
		Name: "numbers",
		Setup: []ActionStep{
			{Action: ActionReceive, Args: map[string]any{"material": "green-bra", "qty": 10, "unit_cost": 4.5}},
		},
		Flow: []FlowStep{{
			Invoke: ActionStock,
			Args:   map[string]any{"material": "green-bra"},
			Expect: &ExpectClause{Case: CaseOK, Result: map[string]any{"quantity": 10, "value": 45.0}},
		}},
		Assertions: []Assertion{{Type: AssertConservation}},
	}

	result, err := RunWithCatalog(scenario, testutil.Catalog(t))
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
}
