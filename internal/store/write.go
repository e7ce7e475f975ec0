package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/roach88/roastery/internal/domain"
)

// Tx is a write transaction over the ledger. Every mutation of entries, lots
// and batches goes through a Tx so a production run commits or aborts as one unit.
//
// While a Tx is open it holds the store's only connection: callers must not
// use Store methods until Commit or Rollback.
type Tx struct {
	tx *sql.Tx
}

// Begin starts an IMMEDIATE transaction.
func (s *Store) Begin(ctx context.Context) (*Tx, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	return &Tx{tx: tx}, nil
}

// WithTx runs fn in a transaction, committing if it returns nil and rolling back otherwise.
func (s *Store) WithTx(ctx context.Context, fn func(*Tx) error) error {
	tx, err := s.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback() // No-op if committed

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

// Commit commits the transaction.
func (t *Tx) Commit() error {
	if err := t.tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// Rollback aborts the transaction. Safe to call after Commit.
func (t *Tx) Rollback() error {
	err := t.tx.Rollback()
	if errors.Is(err, sql.ErrTxDone) {
		return nil
	}
	return err
}

// Available returns the sum of the material's unexhausted lots as seen by this transaction.
func (t *Tx) Available(ctx context.Context, materialID string) (decimal.Decimal, error) {
	return available(ctx, t.tx, materialID)
}

// OpenLots returns the material's unexhausted lots in FIFO order.
func (t *Tx) OpenLots(ctx context.Context, materialID string) ([]domain.Lot, error) {
	return openLots(ctx, t.tx, materialID)
}

// Entry retrieves a ledger entry within the transaction.
func (t *Tx) Entry(ctx context.Context, id string) (domain.LedgerEntry, error) {
	return entry(ctx, t.tx, id)
}

// AppendCredit writes a positive entry and the lot it creates. The lot's
// original and remaining quantities are the entry delta; its unit cost is
// the entry's UnitCost.
func (t *Tx) AppendCredit(ctx context.Context, e domain.LedgerEntry, lot domain.Lot) (domain.LedgerEntry, domain.Lot, error) {
	if !e.Delta.IsPositive() {
		return e, lot, fmt.Errorf("append credit: delta %s is not positive", e.Delta)
	}
	if e.UnitCost.IsNegative() {
		return e, lot, fmt.Errorf("append credit: unit cost %s is negative", e.UnitCost)
	}

	e.Cost = e.Delta.Mul(e.UnitCost)
	seq, err := insertEntry(ctx, t.tx, e)
	if err != nil {
		return e, lot, fmt.Errorf("append credit: %w", err)
	}
	e.Seq = seq
	e.Note = normalizeText(e.Note)

	lot.MaterialID = e.MaterialID
	lot.Original = e.Delta
	lot.Remaining = e.Delta
	lot.UnitCost = e.UnitCost
	lot.SourceEntryID = e.ID
	if lot.AcquiredAt.IsZero() {
		lot.AcquiredAt = e.CreatedAt
	}

	res, err := t.tx.ExecContext(ctx, `
		INSERT INTO lots
		(id, material_id, acquired_at, original, remaining, unit_cost, source_entry_id, exhausted)
		VALUES (?, ?, ?, ?, ?, ?, ?, 0)
	`,
		lot.ID,
		lot.MaterialID,
		marshalTime(lot.AcquiredAt),
		lot.Original,
		lot.Remaining,
		lot.UnitCost,
		lot.SourceEntryID,
	)
	if err != nil {
		return e, lot, fmt.Errorf("append credit: insert lot: %w", err)
	}
	if lot.Seq, err = res.LastInsertId(); err != nil {
		return e, lot, fmt.Errorf("append credit: lot seq: %w", err)
	}
	lot.AcquiredAt = unmarshalTime(marshalTime(lot.AcquiredAt))

	return e, lot, nil
}

// AppendDebit writes a negative entry and draws its quantity from the
// material's lots in FIFO order. The entry's Cost is set to the cost of the
// lots drawn. Returns INSUFFICIENT_STOCK without writing if the lots cannot
// cover the quantity.
func (t *Tx) AppendDebit(ctx context.Context, e domain.LedgerEntry) (domain.LedgerEntry, []domain.LotDraw, error) {
	if !e.Delta.IsNegative() {
		return e, nil, fmt.Errorf("append debit: delta %s is not negative", e.Delta)
	}
	qty := e.Delta.Neg()

	lots, err := openLots(ctx, t.tx, e.MaterialID)
	if err != nil {
		return e, nil, fmt.Errorf("append debit: %w", err)
	}
	planned, cost, err := DrawFIFO(e.MaterialID, lots, qty)
	if err != nil {
		return e, nil, err
	}

	e.Cost = cost
	if qty.IsPositive() {
		e.UnitCost = cost.Div(qty)
	}
	seq, err := insertEntry(ctx, t.tx, e)
	if err != nil {
		return e, nil, fmt.Errorf("append debit: %w", err)
	}
	e.Seq = seq
	e.Note = normalizeText(e.Note)

	remaining := make(map[string]decimal.Decimal, len(lots))
	for _, l := range lots {
		remaining[l.ID] = l.Remaining
	}
	for i := range planned {
		planned[i].EntryID = e.ID
		left := remaining[planned[i].LotID].Sub(planned[i].Quantity)
		if err := updateLotRemaining(ctx, t.tx, planned[i].LotID, left); err != nil {
			return e, nil, fmt.Errorf("append debit: %w", err)
		}
		if err := insertDraw(ctx, t.tx, planned[i]); err != nil {
			return e, nil, fmt.Errorf("append debit: %w", err)
		}
	}

	return e, planned, nil
}

// AppendReversal writes rev as the compensating entry for orig.
//
// Reversing a negative entry returns exactly what it drew to the same lots.
// Reversing a positive entry empties the lot it created, which must still be
// untouched. Production entries, reversals and already reversed entries
// are NOT_REVERSIBLE.
func (t *Tx) AppendReversal(ctx context.Context, orig, rev domain.LedgerEntry) (domain.LedgerEntry, error) {
	switch {
	case orig.Kind.Production():
		return rev, domain.NewNotReversible(orig.ID, "production entries belong to an immutable batch")
	case orig.ReversesID != "":
		return rev, domain.NewNotReversible(orig.ID, "entry is itself a reversal")
	}
	existing, err := reversalOf(ctx, t.tx, orig.ID)
	if err != nil {
		return rev, fmt.Errorf("append reversal: %w", err)
	}
	if existing != "" {
		return rev, domain.NewNotReversible(orig.ID, fmt.Sprintf("already reversed by %s", existing))
	}

	rev.MaterialID = orig.MaterialID
	rev.Kind = orig.Kind
	rev.ReversesID = orig.ID
	rev.Delta = orig.Delta.Neg()
	rev.UnitCost = orig.UnitCost
	rev.Cost = orig.Cost

	if orig.Delta.IsNegative() {
		return t.restoreDraws(ctx, orig, rev)
	}
	return t.drainLot(ctx, orig, rev)
}

// restoreDraws puts a negative entry's draws back into their lots.
func (t *Tx) restoreDraws(ctx context.Context, orig, rev domain.LedgerEntry) (domain.LedgerEntry, error) {
	ds, err := draws(ctx, t.tx, orig.ID)
	if err != nil {
		return rev, fmt.Errorf("append reversal: %w", err)
	}

	seq, err := insertEntry(ctx, t.tx, rev)
	if err != nil {
		return rev, fmt.Errorf("append reversal: %w", err)
	}
	rev.Seq = seq
	rev.Note = normalizeText(rev.Note)

	for _, dr := range ds {
		lot, err := lotByID(ctx, t.tx, dr.LotID)
		if err != nil {
			return rev, fmt.Errorf("append reversal: %w", err)
		}
		restored := lot.Remaining.Add(dr.Quantity)
		if restored.GreaterThan(lot.Original) {
			return rev, fmt.Errorf("append reversal: lot %s would exceed its original quantity", lot.ID)
		}
		if err := updateLotRemaining(ctx, t.tx, lot.ID, restored); err != nil {
			return rev, fmt.Errorf("append reversal: %w", err)
		}
	}
	return rev, nil
}

// drainLot empties the untouched lot created by a positive entry.
func (t *Tx) drainLot(ctx context.Context, orig, rev domain.LedgerEntry) (domain.LedgerEntry, error) {
	lot, err := lotBySource(ctx, t.tx, orig.ID)
	if err != nil {
		return rev, fmt.Errorf("append reversal: %w", err)
	}
	if !lot.Remaining.Equal(lot.Original) {
		return rev, domain.NewNotReversible(orig.ID, fmt.Sprintf("lot %s has already been drawn from", lot.ID))
	}

	seq, err := insertEntry(ctx, t.tx, rev)
	if err != nil {
		return rev, fmt.Errorf("append reversal: %w", err)
	}
	rev.Seq = seq
	rev.Note = normalizeText(rev.Note)

	if err := updateLotRemaining(ctx, t.tx, lot.ID, decimal.Zero); err != nil {
		return rev, fmt.Errorf("append reversal: %w", err)
	}
	err = insertDraw(ctx, t.tx, domain.LotDraw{
		EntryID:  rev.ID,
		LotID:    lot.ID,
		Quantity: lot.Original,
		UnitCost: lot.UnitCost,
	})
	if err != nil {
		return rev, fmt.Errorf("append reversal: %w", err)
	}
	return rev, nil
}

// NextBatchNumber returns the next sequential batch number for a DayKey.
func (t *Tx) NextBatchNumber(ctx context.Context, day string) (int, error) {
	var n int
	if err := t.tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM production_batches WHERE day = ?`, day).Scan(&n); err != nil {
		return 0, fmt.Errorf("next batch number: %w", err)
	}
	return n + 1, nil
}

// InsertBatch writes a production batch and its components. b.Notes is
// normalized in place so the caller holds what was stored.
func (t *Tx) InsertBatch(ctx context.Context, b *domain.ProductionBatch) (int64, error) {
	b.Notes = normalizeText(b.Notes)
	res, err := t.tx.ExecContext(ctx, `
		INSERT INTO production_batches
		(id, recipe_id, recipe_kind, output_material_id, target_output_weight,
		 planned_input_total, actual_input_total, actual_output_weight,
		 realized_loss_rate, total_cost, unit_cost, output_lot_id, produced_at, day, notes)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		b.ID,
		b.RecipeID,
		string(b.RecipeKind),
		b.OutputMaterialID,
		b.TargetOutputWeight,
		b.PlannedInputTotal,
		b.ActualInputTotal,
		b.ActualOutputWeight,
		b.RealizedLossRate,
		b.TotalCost,
		b.UnitCost,
		b.OutputLotID,
		marshalTime(b.ProducedAt),
		DayKey(b.ProducedAt),
		b.Notes,
	)
	if err != nil {
		return 0, fmt.Errorf("insert batch: %w", err)
	}
	seq, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("insert batch: seq: %w", err)
	}

	for i, c := range b.Components {
		_, err := t.tx.ExecContext(ctx, `
			INSERT INTO batch_components
			(batch_id, position, material_id, ratio, loss_rate, planned, actual, cost)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		`, b.ID, i, c.MaterialID, c.Ratio, c.LossRate, c.Planned, c.Actual, c.Cost)
		if err != nil {
			return 0, fmt.Errorf("insert batch component %s: %w", c.MaterialID, err)
		}
	}
	return seq, nil
}

func insertEntry(ctx context.Context, q querier, e domain.LedgerEntry) (int64, error) {
	if !e.Kind.Valid() {
		return 0, fmt.Errorf("insert entry: unknown kind %q", e.Kind)
	}
	res, err := q.ExecContext(ctx, `
		INSERT INTO ledger_entries
		(id, material_id, delta, kind, batch_id, reverses_id, unit_cost, cost, created_at, note)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		e.ID,
		e.MaterialID,
		e.Delta,
		string(e.Kind),
		nullString(e.BatchID),
		nullString(e.ReversesID),
		e.UnitCost,
		e.Cost,
		marshalTime(e.CreatedAt),
		normalizeText(e.Note),
	)
	if err != nil {
		return 0, fmt.Errorf("insert entry: %w", err)
	}
	return res.LastInsertId()
}

func insertDraw(ctx context.Context, q querier, dr domain.LotDraw) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO lot_draws (entry_id, lot_id, quantity, unit_cost)
		VALUES (?, ?, ?, ?)
	`, dr.EntryID, dr.LotID, dr.Quantity, dr.UnitCost)
	if err != nil {
		return fmt.Errorf("insert draw: %w", err)
	}
	return nil
}

func updateLotRemaining(ctx context.Context, q querier, lotID string, remaining decimal.Decimal) error {
	if remaining.IsNegative() {
		return fmt.Errorf("update lot %s: remaining would be %s", lotID, remaining)
	}
	exhausted := 0
	if remaining.IsZero() {
		exhausted = 1
	}
	_, err := q.ExecContext(ctx, `
		UPDATE lots SET remaining = ?, exhausted = ? WHERE id = ?
	`, remaining, exhausted, lotID)
	if err != nil {
		return fmt.Errorf("update lot %s: %w", lotID, err)
	}
	return nil
}
