// Package planner implements goal-driven quantity planning: given a recipe and a
// desired output weight it works backwards to the input weight each component
// needs, and reports shortfalls against a stock snapshot.
//
// Compute is a pure function. It performs no I/O and keeps no state, so it can
// be called on every keystroke of a planning screen and from any number of
// goroutines.
package planner

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/roach88/roastery/internal/domain"
)

// Options supplies everything Compute needs besides the recipe and target.
type Options struct {
	// Materials maps material id to catalog entry, used for default loss rates.
	Materials map[string]domain.Material

	// Stock maps material id to current derived stock. Missing ids count as zero.
	Stock map[string]decimal.Decimal

	// Overrides replaces the loss rate of individual components.
	Overrides map[string]decimal.Decimal

	// DefaultLossRate applies when neither the recipe nor the material has one.
	DefaultLossRate decimal.NullDecimal

	// RatioTolerance bounds |Σ ratio − 1|. Zero means domain.DefaultRatioTolerance.
	RatioTolerance decimal.Decimal
}

// Compute returns the plan for producing target of the recipe's output.
//
// Errors are INVALID_RECIPE for malformed recipes, unresolvable or out-of-range
// loss rates and overrides for materials outside the recipe, and INVALID_TARGET
// for a non-positive target. A stock shortage is never an error; it is reported
// per line as Shortfall.
func Compute(recipe domain.Recipe, target decimal.Decimal, opts Options) (*domain.Plan, error) {
	if err := ValidateTarget(target); err != nil {
		return nil, err
	}

	tolerance := opts.RatioTolerance
	if tolerance.IsZero() {
		tolerance = domain.DefaultRatioTolerance
	}
	if err := domain.ValidateRecipe(recipe, tolerance); err != nil {
		return nil, err
	}
	for materialID := range opts.Overrides {
		if _, ok := recipe.Component(materialID); !ok {
			return nil, domain.NewInvalidRecipe(recipe.ID, fmt.Sprintf("loss rate override for %q which is not in the recipe", materialID))
		}
	}

	plan := &domain.Plan{
		RecipeID:           recipe.ID,
		OutputMaterialID:   recipe.OutputMaterialID,
		Kind:               recipe.Kind(),
		TargetOutputWeight: target,
		Lines:              make([]domain.PlanLine, 0, len(recipe.Components)),
		TotalRequiredInput: decimal.Zero,
		TotalShortfall:     decimal.Zero,
	}

	for _, c := range recipe.Components {
		rate, source, err := ResolveLossRate(recipe.ID, c, opts)
		if err != nil {
			return nil, err
		}

		componentTarget := target.Mul(c.Ratio)
		required := domain.RequiredInput(componentTarget, rate)
		stock := opts.Stock[c.MaterialID]
		short := domain.Shortfall(required, stock)

		plan.Lines = append(plan.Lines, domain.PlanLine{
			MaterialID:     c.MaterialID,
			Ratio:          c.Ratio,
			LossRate:       rate,
			LossRateSource: source,
			TargetWeight:   componentTarget,
			RequiredInput:  required,
			CurrentStock:   stock,
			Shortfall:      short,
		})
		plan.TotalRequiredInput = plan.TotalRequiredInput.Add(required)
		plan.TotalShortfall = plan.TotalShortfall.Add(short)
	}

	plan.EffectiveLossRate = domain.LossFraction(plan.TotalRequiredInput, target)
	plan.Feasible = plan.TotalShortfall.IsZero()
	return plan, nil
}

// ValidateTarget returns INVALID_TARGET unless target is positive.
func ValidateTarget(target decimal.Decimal) error {
	if !target.IsPositive() {
		return domain.NewInvalidTarget(fmt.Sprintf("target output weight must be positive, got %s", target))
	}
	return nil
}

// PlannedInputs returns the required input per material without a stock
// snapshot. The executor uses it to record planned against actual weights.
func PlannedInputs(recipe domain.Recipe, target decimal.Decimal, opts Options) (map[string]decimal.Decimal, error) {
	opts.Stock = nil
	plan, err := Compute(recipe, target, opts)
	if err != nil {
		return nil, err
	}
	out := make(map[string]decimal.Decimal, len(plan.Lines))
	for _, l := range plan.Lines {
		out[l.MaterialID] = l.RequiredInput
	}
	return out, nil
}

// ResolveLossRate picks a component's loss rate: caller override, then the
// recipe's own rate, then the material default, then the configured default.
// A component with none of these is INVALID_RECIPE; it never falls back to zero.
func ResolveLossRate(recipeID string, c domain.Component, opts Options) (decimal.Decimal, domain.LossRateSource, error) {
	var (
		rate   decimal.Decimal
		source domain.LossRateSource
	)

	if o, ok := opts.Overrides[c.MaterialID]; ok {
		rate, source = o, domain.LossFromOverride
	} else if c.LossRate.Valid {
		rate, source = c.LossRate.Decimal, domain.LossFromRecipe
	} else if m, ok := opts.Materials[c.MaterialID]; ok && m.LossRate.Valid {
		rate, source = m.LossRate.Decimal, domain.LossFromMaterial
	} else if opts.DefaultLossRate.Valid {
		rate, source = opts.DefaultLossRate.Decimal, domain.LossFromDefault
	} else {
		return decimal.Zero, "", domain.NewInvalidRecipe(recipeID, fmt.Sprintf("no loss rate for material %q and no default configured", c.MaterialID))
	}

	if err := domain.ValidateLossRate(rate); err != nil {
		return decimal.Zero, "", domain.NewInvalidRecipe(recipeID, fmt.Sprintf("material %q (%s): %v", c.MaterialID, source, err))
	}
	return rate, source, nil
}
