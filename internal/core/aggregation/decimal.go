package aggregation

import "github.com/shopspring/decimal"

// TimestampPlaces is the number of decimal places output timestamps are rounded to.
const TimestampPlaces = 2

// RoundTimestamp returns the output document key for tick: tick*period rounded
// half away from zero to places decimals.
// The multiplication runs in exact decimal arithmetic, so 0.04*3 keys as 0.12
// and not 0.12000000000000001.
func (g Grid) RoundTimestamp(tick int64, places int32) float64 {
	d := decimal.NewFromInt(tick).Mul(decimal.NewFromFloat(g.Period)).Round(places)
	return d.InexactFloat64()
}

// Key returns the rounded output timestamp for tick using TimestampPlaces.
func (g Grid) Key(tick int64) float64 {
	return g.RoundTimestamp(tick, TimestampPlaces)
}

// RoundFloat rounds v to places decimals using exact decimal arithmetic.
func RoundFloat(v float64, places int32) float64 {
	return decimal.NewFromFloat(v).Round(places).InexactFloat64()
}
