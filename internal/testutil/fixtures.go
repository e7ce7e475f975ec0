package testutil

import (
	"testing"

	"github.com/shopspring/decimal"

	"github.com/roach88/roastery/internal/catalog"
)

// RoasteryCUE is a small catalog used across package tests: one single-origin
// recipe, the two-bean house blend and the four-bean blend from the planning
// examples.
const RoasteryCUE = `
material: "green-yirg": {name: "Yirgacheffe", loss_rate: 0.15}
material: "green-eth":  {name: "Ethiopia Guji", loss_rate: 0.15}
material: "green-bra":  {name: "Brazil Cerrado", loss_rate: 0.12}
material: "green-a":    {name: "Blend bean A"}
material: "green-b":    {name: "Blend bean B"}
material: "green-c":    {name: "Blend bean C"}
material: "green-d":    {name: "Blend bean D"}

material: "roasted-yirg":  {name: "Yirgacheffe roasted", category: "FINISHED"}
material: "roasted-house": {name: "House blend", category: "BLENDED"}
material: "roasted-four":  {name: "Four bean blend", category: "BLENDED"}

recipe: "yirg": {
	output: "roasted-yirg"
	components: [{material: "green-yirg", ratio: 1}]
}

recipe: "house": {
	output: "roasted-house"
	components: [
		{material: "green-eth", ratio: 0.6},
		{material: "green-bra", ratio: 0.4},
	]
}

recipe: "four": {
	output: "roasted-four"
	components: [
		{material: "green-a", ratio: 0.4, loss_rate: 0.13},
		{material: "green-b", ratio: 0.4, loss_rate: 0.13},
		{material: "green-c", ratio: 0.1, loss_rate: 0.13},
		{material: "green-d", ratio: 0.1, loss_rate: 0.13},
	]
}
`

// Catalog loads RoasteryCUE, failing the test on error.
func Catalog(t testing.TB) *catalog.Catalog {
	t.Helper()
	cat, err := catalog.LoadString("roastery.cue", RoasteryCUE)
	if err != nil {
		t.Fatalf("load fixture catalog: %v", err)
	}
	return cat
}

// D parses a decimal literal, panicking on malformed input.
func D(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}
