package store

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/roach88/roastery/internal/domain"
)

// createTestStore creates a new file-backed store in a temp dir.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

var baseTime = time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// receive writes a purchase of qty at unitCost acquired at baseTime+offset.
func receive(t *testing.T, s *Store, id, materialID, qty, unitCost string, offset time.Duration) (domain.LedgerEntry, domain.Lot) {
	t.Helper()
	var (
		e   domain.LedgerEntry
		lot domain.Lot
	)
	err := s.WithTx(context.Background(), func(tx *Tx) error {
		var err error
		e, lot, err = tx.AppendCredit(context.Background(), domain.LedgerEntry{
			ID:         "e-" + id,
			MaterialID: materialID,
			Delta:      d(qty),
			Kind:       domain.KindPurchase,
			UnitCost:   d(unitCost),
			CreatedAt:  baseTime.Add(offset),
		}, domain.Lot{ID: "lot-" + id})
		return err
	})
	require.NoError(t, err)
	return e, lot
}

// consume writes a negative entry of qty with the given kind.
func consume(t *testing.T, s *Store, id, materialID, qty string, kind domain.EntryKind) (domain.LedgerEntry, []domain.LotDraw, error) {
	t.Helper()
	var (
		e  domain.LedgerEntry
		ds []domain.LotDraw
	)
	err := s.WithTx(context.Background(), func(tx *Tx) error {
		var err error
		e, ds, err = tx.AppendDebit(context.Background(), domain.LedgerEntry{
			ID:         "e-" + id,
			MaterialID: materialID,
			Delta:      d(qty).Neg(),
			Kind:       kind,
			CreatedAt:  baseTime.Add(time.Hour),
		})
		return err
	})
	return e, ds, err
}

// insertTestBatch writes a minimal single-origin batch produced at at.
func insertTestBatch(t *testing.T, s *Store, n int, at time.Time, kind domain.RecipeKind, inputs ...string) domain.ProductionBatch {
	t.Helper()
	b := domain.ProductionBatch{
		ID:                 fmt.Sprintf("RB-%s-%03d", at.Format("20060102"), n),
		RecipeID:           "house",
		RecipeKind:         kind,
		OutputMaterialID:   "roasted-house",
		TargetOutputWeight: d("10"),
		PlannedInputTotal:  d("11.76"),
		ActualInputTotal:   d("11.76"),
		ActualOutputWeight: d("10"),
		RealizedLossRate:   d("0.15"),
		TotalCost:          d("1176"),
		UnitCost:           d("117.6"),
		OutputLotID:        "lot-out",
		ProducedAt:         at,
	}
	for _, m := range inputs {
		b.Components = append(b.Components, domain.BatchComponent{
			MaterialID: m,
			Ratio:      domain.One.Div(decimal.NewFromInt(int64(len(inputs)))),
			LossRate:   d("0.15"),
			Planned:    d("5"),
			Actual:     d("5"),
			Cost:       d("500"),
		})
	}
	err := s.WithTx(context.Background(), func(tx *Tx) error {
		seq, err := tx.InsertBatch(context.Background(), &b)
		b.Seq = seq
		return err
	})
	require.NoError(t, err)
	return b
}
