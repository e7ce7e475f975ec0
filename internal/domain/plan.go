package domain

import "github.com/shopspring/decimal"

// LossRateSource records where a plan line's loss rate came from.
type LossRateSource string

const (
	LossFromOverride LossRateSource = "override"
	LossFromRecipe   LossRateSource = "recipe"
	LossFromMaterial LossRateSource = "material"
	LossFromDefault  LossRateSource = "default"
)

// PlanLine is the backward calculation for one recipe component.
type PlanLine struct {
	MaterialID     string          `json:"material_id"`
	Ratio          decimal.Decimal `json:"ratio"`
	LossRate       decimal.Decimal `json:"loss_rate"`
	LossRateSource LossRateSource  `json:"loss_rate_source"`
	TargetWeight   decimal.Decimal `json:"target_weight"`
	RequiredInput  decimal.Decimal `json:"required_input"`
	CurrentStock   decimal.Decimal `json:"current_stock"`
	Shortfall      decimal.Decimal `json:"shortfall"`
}

// Plan is the advisory result of goal-driven planning. It is never proof that
// stock will still be sufficient at execution time.
type Plan struct {
	RecipeID           string          `json:"recipe_id"`
	OutputMaterialID   string          `json:"output_material_id"`
	Kind               RecipeKind      `json:"kind"`
	TargetOutputWeight decimal.Decimal `json:"target_output_weight"`
	Lines              []PlanLine      `json:"lines"`
	TotalRequiredInput decimal.Decimal `json:"total_required_input"`
	EffectiveLossRate  decimal.Decimal `json:"effective_loss_rate"`
	TotalShortfall     decimal.Decimal `json:"total_shortfall"`
	Feasible           bool            `json:"feasible"`
}

// Line returns the plan line for materialID.
func (p *Plan) Line(materialID string) (PlanLine, bool) {
	for _, l := range p.Lines {
		if l.MaterialID == materialID {
			return l, true
		}
	}
	return PlanLine{}, false
}

// Shortages lists the lines that cannot be covered by current stock.
func (p *Plan) Shortages() []Shortage {
	var out []Shortage
	for _, l := range p.Lines {
		if l.Shortfall.IsPositive() {
			out = append(out, Shortage{
				MaterialID: l.MaterialID,
				Requested:  l.RequiredInput,
				Available:  l.CurrentStock,
				Shortfall:  l.Shortfall,
			})
		}
	}
	return out
}
