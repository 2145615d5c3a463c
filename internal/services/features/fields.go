package features

import (
	"fmt"

	"github.com/shopspring/decimal"

	"FeatPipe/internal/services/indicators"
)

// fieldSet only accepts finite values so a field is either set or absent.
type fieldSet map[string]float64

func (f fieldSet) put(name string, v float64) {
	if indicators.Finite(v) {
		f[name] = v
	}
}

// putRounded rounds half away from zero to a fixed number of places.
func (f fieldSet) putRounded(name string, v float64, places int32) {
	if !indicators.Finite(v) {
		return
	}
	r, _ := decimal.NewFromFloat(v).Round(places).Float64()
	f[name] = r
}

func rsiField(window int, suffix string) string {
	return fmt.Sprintf("rsi_%d_%s", window, suffix)
}
