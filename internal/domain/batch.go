package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// BatchComponent captures planned against actual input for one material of a batch.
type BatchComponent struct {
	MaterialID string          `json:"material_id"`
	Ratio      decimal.Decimal `json:"ratio"`
	LossRate   decimal.Decimal `json:"loss_rate"`
	Planned    decimal.Decimal `json:"planned"`
	Actual     decimal.Decimal `json:"actual"`
	Cost       decimal.Decimal `json:"cost"`
}

// ProductionBatch is the immutable record of one successful execution.
//
// RealizedLossRate and UnitCost are pooled across components: a blend carries a
// single loss figure and a single cost basis.
type ProductionBatch struct {
	ID                 string           `json:"id"`
	RecipeID           string           `json:"recipe_id"`
	RecipeKind         RecipeKind       `json:"recipe_kind"`
	OutputMaterialID   string           `json:"output_material_id"`
	TargetOutputWeight decimal.Decimal  `json:"target_output_weight"`
	Components         []BatchComponent `json:"components"`
	PlannedInputTotal  decimal.Decimal  `json:"planned_input_total"`
	ActualInputTotal   decimal.Decimal  `json:"actual_input_total"`
	ActualOutputWeight decimal.Decimal  `json:"actual_output_weight"`
	RealizedLossRate   decimal.Decimal  `json:"realized_loss_rate"`
	TotalCost          decimal.Decimal  `json:"total_cost"`
	UnitCost           decimal.Decimal  `json:"unit_cost"`
	OutputLotID        string           `json:"output_lot_id"`
	ProducedAt         time.Time        `json:"produced_at"`
	Notes              string           `json:"notes,omitempty"`
	Seq                int64            `json:"seq"`
}

// Component returns the batch component for materialID.
func (b *ProductionBatch) Component(materialID string) (BatchComponent, bool) {
	for _, c := range b.Components {
		if c.MaterialID == materialID {
			return c, true
		}
	}
	return BatchComponent{}, false
}

// BatchFilter narrows a batch listing. Zero values mean "no constraint".
// From is inclusive, To is exclusive.
type BatchFilter struct {
	From       time.Time
	To         time.Time
	MaterialID string // matches inputs and output
	RecipeKind RecipeKind
	Limit      int
	Cursor     string
}

// BatchPage is one page of batches, newest first. NextCursor is empty on the last page.
type BatchPage struct {
	Batches    []ProductionBatch `json:"batches"`
	NextCursor string            `json:"next_cursor,omitempty"`
}
