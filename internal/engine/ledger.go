package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/roach88/roastery/internal/domain"
	"github.com/roach88/roastery/internal/store"
)

// RecordRequest is a stock movement outside production: a purchase, a sale,
// a write-off or a count correction.
type RecordRequest struct {
	Kind       domain.EntryKind
	MaterialID string

	// Quantity is signed for ADJUSTMENT and positive for every other kind.
	Quantity decimal.Decimal

	// UnitCost prices the lot created by a positive entry.
	UnitCost decimal.Decimal

	// AcquiredAt backdates a purchase's lot. Zero means now.
	AcquiredAt time.Time

	Note string
}

// RecordResult is what Record wrote.
type RecordResult struct {
	Entry domain.LedgerEntry `json:"entry"`
	Lot   *domain.Lot        `json:"lot,omitempty"`
	Draws []domain.LotDraw   `json:"draws,omitempty"`
}

// Record appends a non-production ledger entry. Positive movements create a
// lot; negative movements draw from lots oldest first.
func (e *Engine) Record(ctx context.Context, req RecordRequest) (*RecordResult, error) {
	if _, err := e.catalog.GetMaterial(req.MaterialID); err != nil {
		return nil, err
	}

	delta, err := signedDelta(req)
	if err != nil {
		return nil, err
	}

	ctx, cancel := e.withTimeout(ctx)
	defer cancel()

	release, err := e.locks.Acquire(ctx, req.MaterialID)
	if err != nil {
		return nil, classify("acquire material locks", err)
	}
	defer release()

	now := e.clock.Now().UTC()
	entry := domain.LedgerEntry{
		ID:         e.ids.Generate(),
		MaterialID: req.MaterialID,
		Delta:      delta,
		Kind:       req.Kind,
		CreatedAt:  now,
		Note:       req.Note,
	}

	res := &RecordResult{}
	err = e.store.WithTx(ctx, func(tx *store.Tx) error {
		if delta.IsPositive() {
			entry.UnitCost = req.UnitCost
			acquired := req.AcquiredAt
			if acquired.IsZero() {
				acquired = now
			}
			written, lot, err := tx.AppendCredit(ctx, entry, domain.Lot{ID: e.ids.Generate(), AcquiredAt: acquired})
			if err != nil {
				return err
			}
			res.Entry, res.Lot = written, &lot
			return nil
		}

		written, draws, err := tx.AppendDebit(ctx, entry)
		if err != nil {
			return err
		}
		res.Entry, res.Draws = written, draws
		return nil
	})
	if err != nil {
		return nil, classify("record entry", err)
	}

	e.logger.Info("ledger entry recorded",
		slog.String("entry", res.Entry.ID),
		slog.String("kind", string(res.Entry.Kind)),
		slog.String("material", res.Entry.MaterialID),
		slog.String("delta", res.Entry.Delta.String()),
	)
	return res, nil
}

func signedDelta(req RecordRequest) (decimal.Decimal, error) {
	switch req.Kind {
	case domain.KindPurchase:
		if !req.Quantity.IsPositive() {
			return decimal.Zero, domain.NewInvalidQuantity(req.MaterialID, "purchase quantity must be positive")
		}
		if req.UnitCost.IsNegative() {
			return decimal.Zero, domain.NewInvalidQuantity(req.MaterialID, "unit cost must not be negative")
		}
		return req.Quantity, nil
	case domain.KindSale, domain.KindLoss:
		if !req.Quantity.IsPositive() {
			return decimal.Zero, domain.NewInvalidQuantity(req.MaterialID, fmt.Sprintf("%s quantity must be positive", req.Kind))
		}
		return req.Quantity.Neg(), nil
	case domain.KindAdjustment:
		if req.Quantity.IsZero() {
			return decimal.Zero, domain.NewInvalidQuantity(req.MaterialID, "adjustment must not be zero")
		}
		if req.UnitCost.IsNegative() {
			return decimal.Zero, domain.NewInvalidQuantity(req.MaterialID, "unit cost must not be negative")
		}
		return req.Quantity, nil
	case domain.KindProductionInput, domain.KindProductionOutput:
		return decimal.Zero, domain.NewInvalidQuantity(req.MaterialID, "production entries are written only by Execute")
	default:
		return decimal.Zero, domain.NewInvalidQuantity(req.MaterialID, fmt.Sprintf("unknown entry kind %q", req.Kind))
	}
}

// Reverse appends the compensating entry for entryID. History is never
// edited: a mistaken entry is corrected by its reversal plus a new entry.
func (e *Engine) Reverse(ctx context.Context, entryID, note string) (domain.LedgerEntry, error) {
	orig, err := e.store.Entry(ctx, entryID)
	if err != nil {
		return domain.LedgerEntry{}, classify("read entry", err)
	}

	ctx, cancel := e.withTimeout(ctx)
	defer cancel()

	release, err := e.locks.Acquire(ctx, orig.MaterialID)
	if err != nil {
		return domain.LedgerEntry{}, classify("acquire material locks", err)
	}
	defer release()

	var rev domain.LedgerEntry
	err = e.store.WithTx(ctx, func(tx *store.Tx) error {
		// Re-read under the lock; the entry may have been reversed meanwhile.
		current, err := tx.Entry(ctx, entryID)
		if err != nil {
			return err
		}
		rev, err = tx.AppendReversal(ctx, current, domain.LedgerEntry{
			ID:        e.ids.Generate(),
			CreatedAt: e.clock.Now().UTC(),
			Note:      note,
		})
		return err
	})
	if err != nil {
		return domain.LedgerEntry{}, classify("reverse entry", err)
	}

	e.logger.Info("ledger entry reversed",
		slog.String("entry", entryID),
		slog.String("reversal", rev.ID),
		slog.String("material", rev.MaterialID),
		slog.String("delta", rev.Delta.String()),
	)
	return rev, nil
}
