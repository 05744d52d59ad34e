package game

import (
	"math"
	"strconv"

	"github.com/shopspring/decimal"
)

var moneyUnits = []struct {
	scale  float64
	places int32
	suffix string
}{
	{1e12, 2, "T"},
	{1e9, 2, "B"},
	{1e6, 2, "M"},
	{1e3, 1, "K"},
}

// FormatMoney renders whole currency units with a magnitude suffix:
// 999, 1.5K, 2.25M, 3.00B, 1.20T.
func FormatMoney(amount float64) string {
	v := math.Floor(amount)
	for _, u := range moneyUnits {
		if v >= u.scale {
			return decimal.NewFromFloat(v).Div(decimal.NewFromFloat(u.scale)).StringFixed(u.places) + u.suffix
		}
	}
	return strconv.FormatFloat(v, 'f', 0, 64)
}
