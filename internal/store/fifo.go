package store

import (
	"github.com/shopspring/decimal"

	"github.com/roach88/roastery/internal/domain"
)

// DrawFIFO plans taking qty from lots, oldest first. lots must already be in
// FIFO order. The last lot touched is split when it holds more than needed.
//
// It returns the draws (without EntryID) and their total cost. If the lots
// cannot cover qty it returns an INSUFFICIENT_STOCK error and no draws.
func DrawFIFO(materialID string, lots []domain.Lot, qty decimal.Decimal) ([]domain.LotDraw, decimal.Decimal, error) {
	available := decimal.Zero
	for _, l := range lots {
		available = available.Add(l.Remaining)
	}
	if available.LessThan(qty) {
		return nil, decimal.Zero, domain.NewInsufficientStock("", []domain.Shortage{{
			MaterialID: materialID,
			Requested:  qty,
			Available:  available,
			Shortfall:  qty.Sub(available),
		}})
	}

	var (
		draws []domain.LotDraw
		cost  = decimal.Zero
		left  = qty
	)
	for _, l := range lots {
		if !left.IsPositive() {
			break
		}
		if l.Exhausted() {
			continue
		}
		take := decimal.Min(left, l.Remaining)
		draws = append(draws, domain.LotDraw{
			LotID:    l.ID,
			Quantity: take,
			UnitCost: l.UnitCost,
		})
		cost = cost.Add(take.Mul(l.UnitCost))
		left = left.Sub(take)
	}
	return draws, cost, nil
}
