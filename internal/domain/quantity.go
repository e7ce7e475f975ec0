package domain

import "github.com/shopspring/decimal"

// Display precision.
const (
	WeightPlaces = 2
	RatePlaces   = 3
	CostPlaces   = 2
)

// One is the decimal 1.
var One = decimal.NewFromInt(1)

// RequiredInput inverts the mass balance: the input weight needed to end up
// with output after losing lossRate of it.
func RequiredInput(output, lossRate decimal.Decimal) decimal.Decimal {
	return output.Div(One.Sub(lossRate))
}

// LossFraction is 1 − output/input, the share of input mass that was lost.
// It returns zero when input is not positive.
func LossFraction(input, output decimal.Decimal) decimal.Decimal {
	if !input.IsPositive() {
		return decimal.Zero
	}
	return One.Sub(output.Div(input))
}

// Shortfall is max(0, required − available).
func Shortfall(required, available decimal.Decimal) decimal.Decimal {
	if d := required.Sub(available); d.IsPositive() {
		return d
	}
	return decimal.Zero
}

// Sum adds all values.
func Sum(values ...decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, v := range values {
		total = total.Add(v)
	}
	return total
}
