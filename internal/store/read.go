package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/roach88/roastery/internal/domain"
)

const entryColumns = `seq, id, material_id, delta, kind, batch_id, reverses_id, unit_cost, cost, created_at, note`

const lotColumns = `seq, id, material_id, acquired_at, original, remaining, unit_cost, source_entry_id`

// Stock returns the current stock of a material as the sum of all its entry
// deltas. This is the ledger's source of truth; nothing stores a running total.
func (s *Store) Stock(ctx context.Context, materialID string) (decimal.Decimal, error) {
	return stock(ctx, s.db, materialID)
}

// StockMany returns Stock for each id. Materials without entries map to zero.
func (s *Store) StockMany(ctx context.Context, materialIDs []string) (map[string]decimal.Decimal, error) {
	out := make(map[string]decimal.Decimal, len(materialIDs))
	for _, id := range materialIDs {
		qty, err := stock(ctx, s.db, id)
		if err != nil {
			return nil, err
		}
		out[id] = qty
	}
	return out, nil
}

// Lots returns the material's lots in FIFO order. Exhausted lots are included
// only when includeExhausted is set.
func (s *Store) Lots(ctx context.Context, materialID string, includeExhausted bool) ([]domain.Lot, error) {
	query := `SELECT ` + lotColumns + ` FROM lots WHERE material_id = ?`
	if !includeExhausted {
		query += ` AND exhausted = 0`
	}
	query += ` ORDER BY acquired_at ASC, seq ASC`
	return queryLots(ctx, s.db, query, materialID)
}

// Lot retrieves a single lot by ID.
// Returns sql.ErrNoRows if not found.
func (s *Store) Lot(ctx context.Context, id string) (domain.Lot, error) {
	return scanLot(s.db.QueryRowContext(ctx, `SELECT `+lotColumns+` FROM lots WHERE id = ?`, id))
}

// Entries returns every ledger entry of a material in append order.
func (s *Store) Entries(ctx context.Context, materialID string) ([]domain.LedgerEntry, error) {
	return queryEntries(ctx, s.db, `
		SELECT `+entryColumns+`
		FROM ledger_entries
		WHERE material_id = ?
		ORDER BY seq ASC
	`, materialID)
}

// EntriesForBatch returns the entries written by one production batch.
func (s *Store) EntriesForBatch(ctx context.Context, batchID string) ([]domain.LedgerEntry, error) {
	return queryEntries(ctx, s.db, `
		SELECT `+entryColumns+`
		FROM ledger_entries
		WHERE batch_id = ?
		ORDER BY seq ASC
	`, batchID)
}

// Entry retrieves a single ledger entry, or ENTRY_NOT_FOUND.
func (s *Store) Entry(ctx context.Context, id string) (domain.LedgerEntry, error) {
	return entry(ctx, s.db, id)
}

// Draws returns the lot draws of a negative entry.
func (s *Store) Draws(ctx context.Context, entryID string) ([]domain.LotDraw, error) {
	return draws(ctx, s.db, entryID)
}

// CountEntries returns the number of ledger entries.
func (s *Store) CountEntries(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM ledger_entries`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count entries: %w", err)
	}
	return n, nil
}

// Discrepancy is a material whose entry deltas and lot balances disagree.
type Discrepancy struct {
	MaterialID string          `json:"material_id"`
	Ledger     decimal.Decimal `json:"ledger"`
	Lots       decimal.Decimal `json:"lots"`
}

// VerifyConservation folds every material's entries and lots and returns the
// materials where Σ delta ≠ Σ remaining. An empty result means the ledger is consistent.
func (s *Store) VerifyConservation(ctx context.Context) ([]Discrepancy, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT material_id FROM ledger_entries
		UNION
		SELECT material_id FROM lots
		ORDER BY 1
	`)
	if err != nil {
		return nil, fmt.Errorf("query materials: %w", err)
	}
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan material: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("iterate materials: %w", err)
	}
	rows.Close()

	var out []Discrepancy
	for _, id := range ids {
		ledger, err := stock(ctx, s.db, id)
		if err != nil {
			return nil, err
		}
		lots, err := available(ctx, s.db, id)
		if err != nil {
			return nil, err
		}
		if !ledger.Equal(lots) {
			out = append(out, Discrepancy{MaterialID: id, Ledger: ledger, Lots: lots})
		}
	}
	return out, nil
}

// stock folds a material's entry deltas.
func stock(ctx context.Context, q querier, materialID string) (decimal.Decimal, error) {
	return sumColumn(ctx, q, `SELECT delta FROM ledger_entries WHERE material_id = ? ORDER BY seq ASC`, materialID)
}

// available sums a material's unexhausted lots.
func available(ctx context.Context, q querier, materialID string) (decimal.Decimal, error) {
	return sumColumn(ctx, q, `SELECT remaining FROM lots WHERE material_id = ? AND exhausted = 0`, materialID)
}

// sumColumn adds up a single decimal TEXT column. Summing happens in Go because
// SQLite would coerce the TEXT values to floating point.
func sumColumn(ctx context.Context, q querier, query string, args ...any) (decimal.Decimal, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return decimal.Zero, fmt.Errorf("query sum: %w", err)
	}
	defer rows.Close()

	total := decimal.Zero
	for rows.Next() {
		var v decimal.Decimal
		if err := rows.Scan(&v); err != nil {
			return decimal.Zero, fmt.Errorf("scan sum: %w", err)
		}
		total = total.Add(v)
	}
	if err := rows.Err(); err != nil {
		return decimal.Zero, fmt.Errorf("iterate sum: %w", err)
	}
	return total, nil
}

// openLots returns a material's unexhausted lots in FIFO order.
func openLots(ctx context.Context, q querier, materialID string) ([]domain.Lot, error) {
	return queryLots(ctx, q, `
		SELECT `+lotColumns+`
		FROM lots
		WHERE material_id = ? AND exhausted = 0
		ORDER BY acquired_at ASC, seq ASC
	`, materialID)
}

func queryLots(ctx context.Context, q querier, query string, args ...any) ([]domain.Lot, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query lots: %w", err)
	}
	defer rows.Close()

	lots := []domain.Lot{}
	for rows.Next() {
		lot, err := scanLot(rows)
		if err != nil {
			return nil, err
		}
		lots = append(lots, lot)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate lots: %w", err)
	}
	return lots, nil
}

func scanLot(row scanner) (domain.Lot, error) {
	var (
		lot        domain.Lot
		acquiredAt int64
	)
	err := row.Scan(
		&lot.Seq, &lot.ID, &lot.MaterialID, &acquiredAt,
		&lot.Original, &lot.Remaining, &lot.UnitCost, &lot.SourceEntryID,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Lot{}, err
		}
		return domain.Lot{}, fmt.Errorf("scan lot: %w", err)
	}
	lot.AcquiredAt = unmarshalTime(acquiredAt)
	return lot, nil
}

// lotBySource returns the lot created by a positive entry.
func lotBySource(ctx context.Context, q querier, entryID string) (domain.Lot, error) {
	return scanLot(q.QueryRowContext(ctx, `SELECT `+lotColumns+` FROM lots WHERE source_entry_id = ?`, entryID))
}

func lotByID(ctx context.Context, q querier, id string) (domain.Lot, error) {
	return scanLot(q.QueryRowContext(ctx, `SELECT `+lotColumns+` FROM lots WHERE id = ?`, id))
}

func entry(ctx context.Context, q querier, id string) (domain.LedgerEntry, error) {
	e, err := scanEntry(q.QueryRowContext(ctx, `SELECT `+entryColumns+` FROM ledger_entries WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.LedgerEntry{}, domain.NewEntryNotFound(id)
	}
	return e, err
}

// reversalOf returns the id of the entry reversing id, or "" if none.
func reversalOf(ctx context.Context, q querier, id string) (string, error) {
	var rev string
	err := q.QueryRowContext(ctx, `SELECT id FROM ledger_entries WHERE reverses_id = ?`, id).Scan(&rev)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("query reversal: %w", err)
	}
	return rev, nil
}

func queryEntries(ctx context.Context, q querier, query string, args ...any) ([]domain.LedgerEntry, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query entries: %w", err)
	}
	defer rows.Close()

	entries := []domain.LedgerEntry{}
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate entries: %w", err)
	}
	return entries, nil
}

func scanEntry(row scanner) (domain.LedgerEntry, error) {
	var (
		e          domain.LedgerEntry
		kind       string
		batchID    sql.NullString
		reversesID sql.NullString
		createdAt  int64
	)
	err := row.Scan(
		&e.Seq, &e.ID, &e.MaterialID, &e.Delta, &kind, &batchID, &reversesID,
		&e.UnitCost, &e.Cost, &createdAt, &e.Note,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.LedgerEntry{}, err
		}
		return domain.LedgerEntry{}, fmt.Errorf("scan entry: %w", err)
	}
	e.Kind = domain.EntryKind(kind)
	e.BatchID = batchID.String
	e.ReversesID = reversesID.String
	e.CreatedAt = unmarshalTime(createdAt)
	return e, nil
}

func draws(ctx context.Context, q querier, entryID string) ([]domain.LotDraw, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT d.entry_id, d.lot_id, d.quantity, d.unit_cost
		FROM lot_draws d
		JOIN lots l ON l.id = d.lot_id
		WHERE d.entry_id = ?
		ORDER BY l.acquired_at ASC, l.seq ASC
	`, entryID)
	if err != nil {
		return nil, fmt.Errorf("query draws: %w", err)
	}
	defer rows.Close()

	out := []domain.LotDraw{}
	for rows.Next() {
		var dr domain.LotDraw
		if err := rows.Scan(&dr.EntryID, &dr.LotID, &dr.Quantity, &dr.UnitCost); err != nil {
			return nil, fmt.Errorf("scan draw: %w", err)
		}
		out = append(out, dr)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate draws: %w", err)
	}
	return out, nil
}
