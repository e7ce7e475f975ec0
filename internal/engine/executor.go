package engine

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"

	"github.com/roach88/roastery/internal/domain"
	"github.com/roach88/roastery/internal/planner"
	"github.com/roach88/roastery/internal/store"
)

// ExecuteRequest describes one roast as it actually happened.
type ExecuteRequest struct {
	RecipeID string

	// Inputs maps component material id to the weight actually put in.
	// Components left out count as zero.
	Inputs map[string]decimal.Decimal

	// OutputWeight is the weight that came out of the roaster.
	OutputWeight decimal.Decimal

	// TargetOutputWeight is the weight the roast was planned for. When unset
	// the output weight is used, so planned inputs are what would have been
	// needed for the actual output.
	TargetOutputWeight decimal.NullDecimal

	// LossRateOverrides are the loss rates the operator planned with.
	LossRateOverrides map[string]decimal.Decimal

	Notes string
}

// Execute consumes the inputs from their lots oldest first, credits the
// output as a new lot at the pooled unit cost of what was consumed and records
// the production batch. It commits all of that or nothing.
//
// Stock is re-checked under the material locks; a plan computed earlier is
// not trusted. Errors: RECIPE_NOT_FOUND, INVALID_RECIPE, INVALID_TARGET,
// INVALID_QUANTITY, INSUFFICIENT_STOCK (listing every short component) and
// STORAGE_UNAVAILABLE.
func (e *Engine) Execute(ctx context.Context, req ExecuteRequest) (*domain.ProductionBatch, error) {
	recipe, err := e.catalog.GetRecipe(req.RecipeID)
	if err != nil {
		return nil, err
	}

	actual, totalInput, err := validateInputs(recipe, req)
	if err != nil {
		return nil, err
	}

	target := req.OutputWeight
	if req.TargetOutputWeight.Valid {
		target = req.TargetOutputWeight.Decimal
	}
	opts := e.plannerOptions(req.LossRateOverrides)
	planned, err := planner.PlannedInputs(recipe, target, opts)
	if err != nil {
		return nil, err
	}

	ctx, cancel := e.withTimeout(ctx)
	defer cancel()

	release, err := e.locks.Acquire(ctx, append(recipe.MaterialIDs(), recipe.OutputMaterialID)...)
	if err != nil {
		return nil, classify("acquire material locks", err)
	}
	defer release()

	now := e.clock.Now().UTC()
	batch := &domain.ProductionBatch{
		RecipeID:           recipe.ID,
		RecipeKind:         recipe.Kind(),
		OutputMaterialID:   recipe.OutputMaterialID,
		TargetOutputWeight: target,
		PlannedInputTotal:  decimal.Zero,
		ActualInputTotal:   totalInput,
		ActualOutputWeight: req.OutputWeight,
		TotalCost:          decimal.Zero,
		ProducedAt:         now,
		Notes:              req.Notes,
	}

	err = e.store.WithTx(ctx, func(tx *store.Tx) error {
		if err := checkStock(ctx, tx, recipe, actual); err != nil {
			return err
		}

		day := store.DayKey(now)
		n, err := tx.NextBatchNumber(ctx, day)
		if err != nil {
			return err
		}
		batch.ID = BatchID(e.cfg.BatchPrefix, day, n)

		for _, c := range recipe.Components {
			rate, _, err := planner.ResolveLossRate(recipe.ID, c, opts)
			if err != nil {
				return err
			}
			comp := domain.BatchComponent{
				MaterialID: c.MaterialID,
				Ratio:      c.Ratio,
				LossRate:   rate,
				Planned:    planned[c.MaterialID],
				Actual:     actual[c.MaterialID],
				Cost:       decimal.Zero,
			}
			if comp.Actual.IsPositive() {
				entry, _, err := tx.AppendDebit(ctx, domain.LedgerEntry{
					ID:         e.ids.Generate(),
					MaterialID: c.MaterialID,
					Delta:      comp.Actual.Neg(),
					Kind:       domain.KindProductionInput,
					BatchID:    batch.ID,
					CreatedAt:  now,
					Note:       req.Notes,
				})
				if err != nil {
					return err
				}
				comp.Cost = entry.Cost
			}
			batch.Components = append(batch.Components, comp)
			batch.PlannedInputTotal = batch.PlannedInputTotal.Add(comp.Planned)
			batch.TotalCost = batch.TotalCost.Add(comp.Cost)
		}

		batch.UnitCost = batch.TotalCost.Div(totalInput)
		batch.RealizedLossRate = domain.LossFraction(totalInput, req.OutputWeight)

		_, lot, err := tx.AppendCredit(ctx, domain.LedgerEntry{
			ID:         e.ids.Generate(),
			MaterialID: recipe.OutputMaterialID,
			Delta:      req.OutputWeight,
			Kind:       domain.KindProductionOutput,
			BatchID:    batch.ID,
			UnitCost:   batch.UnitCost,
			CreatedAt:  now,
			Note:       req.Notes,
		}, domain.Lot{ID: e.ids.Generate(), AcquiredAt: now})
		if err != nil {
			return err
		}
		batch.OutputLotID = lot.ID

		batch.Seq, err = tx.InsertBatch(ctx, batch)
		return err
	})
	if err != nil {
		err = classify("execute batch", err)
		e.logger.Warn("execution rejected",
			slog.String("recipe", recipe.ID),
			slog.String("code", string(domain.CodeOf(err))),
			slog.String("error", err.Error()),
		)
		return nil, err
	}

	e.logger.Info("batch executed",
		slog.String("batch", batch.ID),
		slog.String("recipe", recipe.ID),
		slog.String("input", totalInput.String()),
		slog.String("output", req.OutputWeight.String()),
		slog.String("realized_loss_rate", batch.RealizedLossRate.StringFixed(domain.RatePlaces)),
		slog.String("unit_cost", batch.UnitCost.StringFixed(domain.CostPlaces)),
	)
	return batch, nil
}

// validateInputs checks the request's quantities against the recipe and
// returns the actual input per component (zero for omitted ones) and their sum.
func validateInputs(recipe domain.Recipe, req ExecuteRequest) (map[string]decimal.Decimal, decimal.Decimal, error) {
	for id, qty := range req.Inputs {
		if _, ok := recipe.Component(id); !ok {
			return nil, decimal.Zero, domain.NewInvalidQuantity(id, fmt.Sprintf("material is not a component of recipe %q", recipe.ID))
		}
		if qty.IsNegative() {
			return nil, decimal.Zero, domain.NewInvalidQuantity(id, fmt.Sprintf("input %s is negative", qty))
		}
	}

	actual := make(map[string]decimal.Decimal, len(recipe.Components))
	total := decimal.Zero
	for _, c := range recipe.Components {
		qty := req.Inputs[c.MaterialID]
		actual[c.MaterialID] = qty
		total = total.Add(qty)
	}

	if !total.IsPositive() {
		return nil, decimal.Zero, domain.NewInvalidQuantity("", "total input must be positive")
	}
	if !req.OutputWeight.IsPositive() {
		return nil, decimal.Zero, domain.NewInvalidQuantity(recipe.OutputMaterialID, fmt.Sprintf("output weight must be positive, got %s", req.OutputWeight))
	}
	if req.OutputWeight.GreaterThan(total) {
		return nil, decimal.Zero, domain.NewInvalidQuantity(recipe.OutputMaterialID, fmt.Sprintf("output %s exceeds total input %s", req.OutputWeight, total))
	}
	if req.TargetOutputWeight.Valid && !req.TargetOutputWeight.Decimal.IsPositive() {
		return nil, decimal.Zero, domain.NewInvalidTarget(fmt.Sprintf("target output weight must be positive, got %s", req.TargetOutputWeight.Decimal))
	}
	return actual, total, nil
}

// checkStock re-reads every input's lot stock inside the transaction and
// reports all shortfalls at once.
func checkStock(ctx context.Context, tx *store.Tx, recipe domain.Recipe, actual map[string]decimal.Decimal) error {
	var shortages []domain.Shortage
	for _, c := range recipe.Components {
		want := actual[c.MaterialID]
		if !want.IsPositive() {
			continue
		}
		have, err := tx.Available(ctx, c.MaterialID)
		if err != nil {
			return err
		}
		if have.LessThan(want) {
			shortages = append(shortages, domain.Shortage{
				MaterialID: c.MaterialID,
				Requested:  want,
				Available:  have,
				Shortfall:  want.Sub(have),
			})
		}
	}
	if len(shortages) > 0 {
		return domain.NewInsufficientStock(recipe.ID, shortages)
	}
	return nil
}
