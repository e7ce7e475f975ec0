package harness

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/roach88/roastery/internal/catalog"
	"github.com/roach88/roastery/internal/domain"
	"github.com/roach88/roastery/internal/engine"
	"github.com/roach88/roastery/internal/store"
	"github.com/roach88/roastery/internal/testutil"
)

// DefaultIDPrefix prefixes the deterministic ids of scenarios without an id_prefix.
const DefaultIDPrefix = "id"

// Harness runs one scenario against a real engine backed by a fresh
// in-memory store, with a deterministic clock and id sequence.
type Harness struct {
	store  *store.Store
	engine *engine.Engine
	clock  *testutil.StepClock
	logger *slog.Logger
	seq    int64
}

// Run loads the scenario's catalog and executes the scenario.
func Run(scenario *Scenario) (*Result, error) {
	if scenario.Catalog == "" {
		return nil, errors.New("scenario has no catalog")
	}
	cat, err := catalog.LoadDir(scenario.Catalog)
	if err != nil {
		return nil, fmt.Errorf("failed to load catalog: %w", err)
	}
	return RunWithCatalog(scenario, cat)
}

// RunWithCatalog executes a scenario against the given catalog.
//
// Execution flow:
// 1. Create fresh in-memory database
// 2. Execute setup steps, which must succeed
// 3. Execute flow steps and check expect clauses
// 4. Evaluate assertions
//
// The returned error reports a broken scenario or infrastructure failure;
// unmet expectations are recorded in Result.Errors instead.
func RunWithCatalog(scenario *Scenario, cat *catalog.Catalog) (*Result, error) {
	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	prefix := scenario.IDPrefix
	if prefix == "" {
		prefix = DefaultIDPrefix
	}
	clock := testutil.NewStepClock(scenario.Start, time.Minute)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	h := &Harness{
		store: st,
		engine: engine.New(st, cat, engine.Config{},
			engine.WithIDGenerator(engine.NewFixedGenerator(prefix)),
			engine.WithClock(clock),
			engine.WithLogger(logger),
		),
		clock:  clock,
		logger: logger,
	}

	ctx := context.Background()
	result := NewResult()

	if err := h.executeSetup(ctx, scenario.Setup, result); err != nil {
		return nil, fmt.Errorf("failed to execute setup: %w", err)
	}

	if err := h.executeFlow(ctx, scenario.Flow, result); err != nil {
		return nil, fmt.Errorf("failed to execute flow: %w", err)
	}

	actx := &AssertionContext{
		Store:  st,
		Engine: h.engine,
		Ctx:    ctx,
	}
	for _, errMsg := range EvaluateAssertions(result, scenario.Assertions, actx) {
		result.AddError(errMsg)
	}

	return result, nil
}

// nextSeq numbers trace events.
func (h *Harness) nextSeq() int64 {
	h.seq++
	return h.seq
}

// executeSetup runs all setup steps. A failing setup step aborts the run.
func (h *Harness) executeSetup(ctx context.Context, setup []ActionStep, result *Result) error {
	for i, step := range setup {
		result.AddInvocationTrace(step.Action, step.Args, h.nextSeq())

		out, err := h.invoke(ctx, step.Action, args(step.Args))
		if err != nil {
			return fmt.Errorf("setup step %d (%s): %w", i, step.Action, err)
		}
		result.AddCompletionTrace(CaseOK, out, h.nextSeq())

		h.logger.Info("setup step completed", "step", i, "action", step.Action)
	}
	return nil
}

// executeFlow runs all flow steps and checks their expect clauses.
//
// A domain error is an outcome: its code becomes the completion case.
// Any other error means the scenario itself is broken and aborts the run.
func (h *Harness) executeFlow(ctx context.Context, flow []FlowStep, result *Result) error {
	for i, step := range flow {
		result.AddInvocationTrace(step.Invoke, step.Args, h.nextSeq())

		out, err := h.invoke(ctx, step.Invoke, args(step.Args))
		outputCase := CaseOK
		if err != nil {
			code := domain.CodeOf(err)
			if code == "" {
				return fmt.Errorf("flow step %d (%s): %w", i, step.Invoke, err)
			}
			outputCase = string(code)
			out = errorResult(err)
		}
		result.AddCompletionTrace(outputCase, out, h.nextSeq())

		expected := &ExpectClause{Case: CaseOK}
		if step.Expect != nil {
			expected = step.Expect
		}
		if outputCase != expected.Case {
			msg := fmt.Sprintf("flow[%d] %s: expected case %s, got %s", i, step.Invoke, expected.Case, outputCase)
			if err != nil {
				msg += fmt.Sprintf(" (%v)", err)
			}
			result.AddError(msg)
			continue
		}
		if !matchArgs(out, expected.Result) {
			result.AddError(fmt.Sprintf("flow[%d] %s: expected result %v, got %v", i, step.Invoke, expected.Result, out))
		}

		h.logger.Info("flow step completed", "step", i, "action", step.Invoke, "case", outputCase)
	}

	return nil
}
