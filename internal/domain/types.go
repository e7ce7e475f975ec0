package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Category classifies a tracked material.
type Category string

const (
	CategoryRaw      Category = "RAW"
	CategoryFinished Category = "FINISHED"
	CategoryBlended  Category = "BLENDED"
)

// Valid reports whether c is a known category.
func (c Category) Valid() bool {
	switch c {
	case CategoryRaw, CategoryFinished, CategoryBlended:
		return true
	default:
		return false
	}
}

// Material is a tracked substance: a green bean, a roasted single origin or a blend.
// Stock is not a field here; it is always derived from the ledger.
type Material struct {
	ID       string              `json:"id"`
	Name     string              `json:"name"`
	Category Category            `json:"category"`
	LossRate decimal.NullDecimal `json:"loss_rate"` // planning default, optional
}

// EntryKind is the reason a ledger entry changed stock.
type EntryKind string

const (
	KindPurchase         EntryKind = "PURCHASE"
	KindProductionOutput EntryKind = "PRODUCTION_OUTPUT"
	KindProductionInput  EntryKind = "PRODUCTION_INPUT"
	KindSale             EntryKind = "SALE"
	KindLoss             EntryKind = "LOSS"
	KindAdjustment       EntryKind = "ADJUSTMENT"
)

// Valid reports whether k is a known entry kind.
func (k EntryKind) Valid() bool {
	switch k {
	case KindPurchase, KindProductionOutput, KindProductionInput, KindSale, KindLoss, KindAdjustment:
		return true
	default:
		return false
	}
}

// Production reports whether entries of this kind are written only by batch execution.
func (k EntryKind) Production() bool {
	return k == KindProductionInput || k == KindProductionOutput
}

// Lot is a cost-tagged quantity of a material. Lots are consumed oldest first,
// ordered by (AcquiredAt, Seq).
//
// Invariant: 0 <= Remaining <= Original.
type Lot struct {
	ID            string          `json:"id"`
	MaterialID    string          `json:"material_id"`
	AcquiredAt    time.Time       `json:"acquired_at"`
	Original      decimal.Decimal `json:"original"`
	Remaining     decimal.Decimal `json:"remaining"`
	UnitCost      decimal.Decimal `json:"unit_cost"`
	SourceEntryID string          `json:"source_entry_id"`
	Seq           int64           `json:"seq"`
}

// Exhausted reports whether nothing remains in the lot.
func (l Lot) Exhausted() bool {
	return !l.Remaining.IsPositive()
}

// Value is the cost of what remains in the lot.
func (l Lot) Value() decimal.Decimal {
	return l.Remaining.Mul(l.UnitCost)
}

// LedgerEntry is an immutable, signed stock change for one material.
//
// For positive entries UnitCost is the cost of the lot the entry created.
// For negative entries Cost is the FIFO cost of the lots it drew from.
type LedgerEntry struct {
	ID         string          `json:"id"`
	MaterialID string          `json:"material_id"`
	Delta      decimal.Decimal `json:"delta"`
	Kind       EntryKind       `json:"kind"`
	BatchID    string          `json:"batch_id,omitempty"`
	ReversesID string          `json:"reverses_id,omitempty"`
	UnitCost   decimal.Decimal `json:"unit_cost"`
	Cost       decimal.Decimal `json:"cost"`
	CreatedAt  time.Time       `json:"created_at"`
	Note       string          `json:"note,omitempty"`
	Seq        int64           `json:"seq"`
}

// LotDraw records how much a negative entry took from one lot.
type LotDraw struct {
	EntryID  string          `json:"entry_id"`
	LotID    string          `json:"lot_id"`
	Quantity decimal.Decimal `json:"quantity"`
	UnitCost decimal.Decimal `json:"unit_cost"`
}

// Cost returns Quantity × UnitCost.
func (d LotDraw) Cost() decimal.Decimal {
	return d.Quantity.Mul(d.UnitCost)
}

// Shortage describes one material that cannot cover a requested quantity.
type Shortage struct {
	MaterialID string          `json:"material_id"`
	Requested  decimal.Decimal `json:"requested"`
	Available  decimal.Decimal `json:"available"`
	Shortfall  decimal.Decimal `json:"shortfall"`
}
