package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/roach88/roastery/internal/domain"
)

// Page size bounds for ListBatches.
const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

const batchColumns = `seq, id, recipe_id, recipe_kind, output_material_id, target_output_weight,
	planned_input_total, actual_input_total, actual_output_weight, realized_loss_rate,
	total_cost, unit_cost, output_lot_id, produced_at, notes`

// GetBatch retrieves a production batch with its components, or BATCH_NOT_FOUND.
func (s *Store) GetBatch(ctx context.Context, id string) (domain.ProductionBatch, error) {
	b, err := scanBatch(s.db.QueryRowContext(ctx, `SELECT `+batchColumns+` FROM production_batches WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ProductionBatch{}, domain.NewBatchNotFound(id)
	}
	if err != nil {
		return domain.ProductionBatch{}, err
	}
	if b.Components, err = components(ctx, s.db, id); err != nil {
		return domain.ProductionBatch{}, err
	}
	return b, nil
}

// ListBatches returns batches newest first. Pages are keyed on the insertion
// sequence, so a cursor stays valid while new batches are written.
func (s *Store) ListBatches(ctx context.Context, f domain.BatchFilter) (domain.BatchPage, error) {
	limit := f.Limit
	switch {
	case limit <= 0:
		limit = DefaultPageSize
	case limit > MaxPageSize:
		limit = MaxPageSize
	}

	var (
		where []string
		args  []any
	)
	if f.Cursor != "" {
		seq, err := decodeCursor(f.Cursor)
		if err != nil {
			return domain.BatchPage{}, domain.NewInvalidCursor(f.Cursor, err)
		}
		where = append(where, "b.seq < ?")
		args = append(args, seq)
	}
	if !f.From.IsZero() {
		where = append(where, "b.produced_at >= ?")
		args = append(args, marshalTime(f.From))
	}
	if !f.To.IsZero() {
		where = append(where, "b.produced_at < ?")
		args = append(args, marshalTime(f.To))
	}
	if f.RecipeKind != "" {
		where = append(where, "b.recipe_kind = ?")
		args = append(args, string(f.RecipeKind))
	}
	if f.MaterialID != "" {
		where = append(where, `(b.output_material_id = ? OR EXISTS (
			SELECT 1 FROM batch_components c WHERE c.batch_id = b.id AND c.material_id = ?))`)
		args = append(args, f.MaterialID, f.MaterialID)
	}

	query := `SELECT ` + prefixColumns("b.", batchColumns) + ` FROM production_batches b`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	// One extra row tells us whether another page exists.
	query += ` ORDER BY b.seq DESC LIMIT ?`
	args = append(args, limit+1)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return domain.BatchPage{}, fmt.Errorf("query batches: %w", err)
	}
	batches := []domain.ProductionBatch{}
	for rows.Next() {
		b, err := scanBatch(rows)
		if err != nil {
			rows.Close()
			return domain.BatchPage{}, err
		}
		batches = append(batches, b)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return domain.BatchPage{}, fmt.Errorf("iterate batches: %w", err)
	}
	rows.Close()

	page := domain.BatchPage{Batches: batches}
	if len(batches) > limit {
		page.Batches = batches[:limit]
		page.NextCursor = encodeCursor(page.Batches[limit-1].Seq)
	}

	for i := range page.Batches {
		cs, err := components(ctx, s.db, page.Batches[i].ID)
		if err != nil {
			return domain.BatchPage{}, err
		}
		page.Batches[i].Components = cs
	}
	return page, nil
}

// CountBatches returns the number of production batches.
func (s *Store) CountBatches(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM production_batches`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count batches: %w", err)
	}
	return n, nil
}

func prefixColumns(prefix, cols string) string {
	parts := strings.Split(cols, ",")
	for i, p := range parts {
		parts[i] = prefix + strings.TrimSpace(p)
	}
	return strings.Join(parts, ", ")
}

func scanBatch(row scanner) (domain.ProductionBatch, error) {
	var (
		b          domain.ProductionBatch
		kind       string
		producedAt int64
	)
	err := row.Scan(
		&b.Seq, &b.ID, &b.RecipeID, &kind, &b.OutputMaterialID, &b.TargetOutputWeight,
		&b.PlannedInputTotal, &b.ActualInputTotal, &b.ActualOutputWeight, &b.RealizedLossRate,
		&b.TotalCost, &b.UnitCost, &b.OutputLotID, &producedAt, &b.Notes,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.ProductionBatch{}, err
		}
		return domain.ProductionBatch{}, fmt.Errorf("scan batch: %w", err)
	}
	b.RecipeKind = domain.RecipeKind(kind)
	b.ProducedAt = unmarshalTime(producedAt)
	return b, nil
}

func components(ctx context.Context, q querier, batchID string) ([]domain.BatchComponent, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT material_id, ratio, loss_rate, planned, actual, cost
		FROM batch_components
		WHERE batch_id = ?
		ORDER BY position ASC
	`, batchID)
	if err != nil {
		return nil, fmt.Errorf("query components: %w", err)
	}
	defer rows.Close()

	out := []domain.BatchComponent{}
	for rows.Next() {
		var c domain.BatchComponent
		if err := rows.Scan(&c.MaterialID, &c.Ratio, &c.LossRate, &c.Planned, &c.Actual, &c.Cost); err != nil {
			return nil, fmt.Errorf("scan component: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate components: %w", err)
	}
	return out, nil
}
