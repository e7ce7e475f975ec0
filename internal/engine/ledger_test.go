package engine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/roastery/internal/domain"
)

func TestRecord_Purchase(t *testing.T) {
	env := newTestEnv(t, Config{})

	acquired := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
	res, err := env.engine.Record(context.Background(), RecordRequest{
		Kind:       domain.KindPurchase,
		MaterialID: "green-eth",
		Quantity:   d("60"),
		UnitCost:   d("7.25"),
		AcquiredAt: acquired,
		Note:       "lot 114 from importer",
	})
	require.NoError(t, err)

	assert.Equal(t, domain.KindPurchase, res.Entry.Kind)
	assertDecimal(t, "60", res.Entry.Delta)
	assertDecimal(t, "435", res.Entry.Cost)
	require.NotNil(t, res.Lot)
	assert.True(t, acquired.Equal(res.Lot.AcquiredAt), "backdated lot")
	assertDecimal(t, "60", res.Lot.Remaining)
	assert.Equal(t, res.Entry.ID, res.Lot.SourceEntryID)
	assert.Empty(t, res.Draws)

	assertDecimal(t, "60", env.stock(t, "green-eth"))
}

func TestRecord_SaleDrawsOldestLots(t *testing.T) {
	env := newTestEnv(t, Config{})
	env.receive(t, "roasted-yirg", "3", "20")
	env.receive(t, "roasted-yirg", "3", "30")

	res, err := env.engine.Record(context.Background(), RecordRequest{
		Kind:       domain.KindSale,
		MaterialID: "roasted-yirg",
		Quantity:   d("4"),
	})
	require.NoError(t, err)

	assertDecimal(t, "-4", res.Entry.Delta)
	assertDecimal(t, "90", res.Entry.Cost)
	assertDecimal(t, "22.5", res.Entry.UnitCost)
	assert.Nil(t, res.Lot)
	require.Len(t, res.Draws, 2)
	assertDecimal(t, "3", res.Draws[0].Quantity)
	assertDecimal(t, "1", res.Draws[1].Quantity)
	assertDecimal(t, "2", env.stock(t, "roasted-yirg"))
}

func TestRecord_Adjustments(t *testing.T) {
	env := newTestEnv(t, Config{})
	env.receive(t, "green-bra", "10", "40")

	up, err := env.engine.Record(context.Background(), RecordRequest{
		Kind: domain.KindAdjustment, MaterialID: "green-bra", Quantity: d("0.5"), UnitCost: d("40"),
	})
	require.NoError(t, err)
	require.NotNil(t, up.Lot, "a positive count correction creates a lot")

	down, err := env.engine.Record(context.Background(), RecordRequest{
		Kind: domain.KindAdjustment, MaterialID: "green-bra", Quantity: d("-1.5"),
	})
	require.NoError(t, err)
	assert.Nil(t, down.Lot)
	assert.NotEmpty(t, down.Draws)

	assertDecimal(t, "9", env.stock(t, "green-bra"))
}

func TestRecord_Rejections(t *testing.T) {
	env := newTestEnv(t, Config{})
	env.receive(t, "green-bra", "1", "40")

	tests := []struct {
		name string
		req  RecordRequest
		want domain.Code
	}{
		{"unknown material", RecordRequest{Kind: domain.KindPurchase, MaterialID: "green-nope", Quantity: d("1")}, domain.CodeMaterialNotFound},
		{"zero purchase", RecordRequest{Kind: domain.KindPurchase, MaterialID: "green-bra", Quantity: d("0")}, domain.CodeInvalidQuantity},
		{"negative cost", RecordRequest{Kind: domain.KindPurchase, MaterialID: "green-bra", Quantity: d("1"), UnitCost: d("-1")}, domain.CodeInvalidQuantity},
		{"negative sale", RecordRequest{Kind: domain.KindSale, MaterialID: "green-bra", Quantity: d("-1")}, domain.CodeInvalidQuantity},
		{"zero adjustment", RecordRequest{Kind: domain.KindAdjustment, MaterialID: "green-bra", Quantity: d("0")}, domain.CodeInvalidQuantity},
		{"production kind", RecordRequest{Kind: domain.KindProductionInput, MaterialID: "green-bra", Quantity: d("1")}, domain.CodeInvalidQuantity},
		{"unknown kind", RecordRequest{Kind: "GIFT", MaterialID: "green-bra", Quantity: d("1")}, domain.CodeInvalidQuantity},
		{"oversold", RecordRequest{Kind: domain.KindLoss, MaterialID: "green-bra", Quantity: d("2")}, domain.CodeInsufficientStock},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.engine.Record(context.Background(), tt.req)
			require.Error(t, err)
			assert.Equal(t, tt.want, domain.CodeOf(err), err.Error())
		})
	}

	assertDecimal(t, "1", env.stock(t, "green-bra"), "rejections write nothing")
}

func TestReverse_Sale(t *testing.T) {
	env := newTestEnv(t, Config{})
	ctx := context.Background()
	env.receive(t, "roasted-yirg", "3", "20")
	env.receive(t, "roasted-yirg", "3", "30")

	sale, err := env.engine.Record(ctx, RecordRequest{Kind: domain.KindSale, MaterialID: "roasted-yirg", Quantity: d("4")})
	require.NoError(t, err)

	rev, err := env.engine.Reverse(ctx, sale.Entry.ID, "customer cancelled")
	require.NoError(t, err)
	assert.Equal(t, sale.Entry.ID, rev.ReversesID)
	assert.Equal(t, domain.KindSale, rev.Kind)
	assertDecimal(t, "4", rev.Delta)
	assert.Equal(t, "customer cancelled", rev.Note)

	lots, err := env.engine.Lots(ctx, "roasted-yirg", false)
	require.NoError(t, err)
	require.Len(t, lots, 2)
	assertDecimal(t, "3", lots[0].Remaining)
	assertDecimal(t, "3", lots[1].Remaining)

	_, err = env.engine.Reverse(ctx, sale.Entry.ID, "")
	assert.ErrorIs(t, err, domain.ErrNotReversible, "second reversal")

	_, err = env.engine.Reverse(ctx, rev.ID, "")
	assert.ErrorIs(t, err, domain.ErrNotReversible, "reversal of a reversal")

	discrepancies, err := env.engine.VerifyConservation(ctx)
	require.NoError(t, err)
	assert.Empty(t, discrepancies)
}

func TestReverse_Purchase(t *testing.T) {
	env := newTestEnv(t, Config{})
	ctx := context.Background()

	mistaken := env.receive(t, "green-eth", "60", "7")
	rev, err := env.engine.Reverse(ctx, mistaken.Entry.ID, "keyed twice")
	require.NoError(t, err)
	assertDecimal(t, "-60", rev.Delta)
	assert.True(t, env.stock(t, "green-eth").IsZero())

	used := env.receive(t, "green-eth", "10", "7")
	_, err = env.engine.Record(ctx, RecordRequest{Kind: domain.KindLoss, MaterialID: "green-eth", Quantity: d("1")})
	require.NoError(t, err)

	_, err = env.engine.Reverse(ctx, used.Entry.ID, "")
	assert.ErrorIs(t, err, domain.ErrNotReversible, "lot already drawn from")
}

func TestReverse_ProductionEntry(t *testing.T) {
	env := newTestEnv(t, Config{})
	ctx := context.Background()
	env.receive(t, "green-yirg", "10", "100")

	batch, err := env.engine.Execute(ctx, ExecuteRequest{
		RecipeID: "yirg", Inputs: inputs("green-yirg", "5"), OutputWeight: d("4.25"),
	})
	require.NoError(t, err)

	entries, err := env.store.EntriesForBatch(ctx, batch.ID)
	require.NoError(t, err)
	for _, e := range entries {
		_, err := env.engine.Reverse(ctx, e.ID, "")
		assert.ErrorIs(t, err, domain.ErrNotReversible, e.Kind)
	}
}

func TestReverse_UnknownEntry(t *testing.T) {
	env := newTestEnv(t, Config{})

	_, err := env.engine.Reverse(context.Background(), "nope", "")
	assert.ErrorIs(t, err, domain.ErrEntryNotFound)
}
