package domain

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
)

// DefaultRatioTolerance is how far component ratios may sum away from 1.0.
var DefaultRatioTolerance = decimal.RequireFromString("0.001")

// RecipeKind distinguishes single-origin recipes from blends.
type RecipeKind string

const (
	RecipeSingle RecipeKind = "SINGLE"
	RecipeBlend  RecipeKind = "BLEND"
)

// Valid reports whether k is a known recipe kind.
func (k RecipeKind) Valid() bool {
	return k == RecipeSingle || k == RecipeBlend
}

// Component is one material of a recipe. LossRate, when set, overrides the
// material's catalog default.
type Component struct {
	MaterialID string              `json:"material_id"`
	Ratio      decimal.Decimal     `json:"ratio"`
	LossRate   decimal.NullDecimal `json:"loss_rate"`
}

// Recipe is a named formula producing OutputMaterialID from one or more components.
type Recipe struct {
	ID               string      `json:"id"`
	Name             string      `json:"name"`
	OutputMaterialID string      `json:"output_material_id"`
	Components       []Component `json:"components"`
}

// Kind returns RecipeSingle for one component, RecipeBlend otherwise.
func (r Recipe) Kind() RecipeKind {
	if len(r.Components) == 1 {
		return RecipeSingle
	}
	return RecipeBlend
}

// Component returns the component for materialID.
func (r Recipe) Component(materialID string) (Component, bool) {
	for _, c := range r.Components {
		if c.MaterialID == materialID {
			return c, true
		}
	}
	return Component{}, false
}

// MaterialIDs returns the component material ids in recipe order.
func (r Recipe) MaterialIDs() []string {
	ids := make([]string, len(r.Components))
	for i, c := range r.Components {
		ids[i] = c.MaterialID
	}
	return ids
}

// RatioSum returns the sum of component ratios.
func (r Recipe) RatioSum() decimal.Decimal {
	sum := decimal.Zero
	for _, c := range r.Components {
		sum = sum.Add(c.Ratio)
	}
	return sum
}

// ValidateRecipe checks the structural invariants of a recipe: at least one
// component, no duplicate materials, positive ratios summing to 1 within
// tolerance, and any component loss rate in [0, 1).
func ValidateRecipe(r Recipe, tolerance decimal.Decimal) error {
	if len(r.Components) == 0 {
		return NewInvalidRecipe(r.ID, "recipe has no components")
	}
	if r.OutputMaterialID == "" {
		return NewInvalidRecipe(r.ID, "recipe has no output material")
	}

	seen := make(map[string]bool, len(r.Components))
	for i, c := range r.Components {
		if c.MaterialID == "" {
			return NewInvalidRecipe(r.ID, fmt.Sprintf("component %d has no material", i))
		}
		if seen[c.MaterialID] {
			return NewInvalidRecipe(r.ID, fmt.Sprintf("material %q appears more than once", c.MaterialID))
		}
		seen[c.MaterialID] = true

		if !c.Ratio.IsPositive() {
			return NewInvalidRecipe(r.ID, fmt.Sprintf("material %q has non-positive ratio %s", c.MaterialID, c.Ratio))
		}
		if c.LossRate.Valid {
			if err := ValidateLossRate(c.LossRate.Decimal); err != nil {
				return NewInvalidRecipe(r.ID, fmt.Sprintf("material %q: %v", c.MaterialID, err))
			}
		}
	}

	sum := r.RatioSum()
	if sum.Sub(One).Abs().GreaterThan(tolerance) {
		return NewInvalidRecipe(r.ID, fmt.Sprintf("ratios sum to %s, want 1", sum))
	}
	return nil
}

// ValidateLossRate checks that rate is a fraction in [0, 1).
func ValidateLossRate(rate decimal.Decimal) error {
	if rate.IsNegative() || rate.GreaterThanOrEqual(One) {
		return fmt.Errorf("loss rate %s outside [0, 1)", rate)
	}
	return nil
}

// SortedIDs returns the unique ids sorted ascending.
func SortedIDs(ids ...string) []string {
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	out := make([]string, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
