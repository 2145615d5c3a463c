package features

import (
    "math"

    "FeatPipe/internal/domain/models"
)

// ComputeLogReturns computes log returns r_t = ln(C_t / C_{t-1}).
// It returns a slice of length len(candles)-1, or nil if insufficient data.
func ComputeLogReturns(candles []models.Candle) []float64 {
    if len(candles) < 2 {
        return nil
    }
    out := make([]float64, 0, len(candles)-1)
    for i := 1; i < len(candles); i++ {
        prev := candles[i-1].Close
        cur := candles[i].Close
        if prev <= 0 || cur <= 0 {
            out = append(out, 0)
            continue
        }
        out = append(out, math.Log(cur/prev))
    }
    return out
}

// RealizedVolatility computes annualized realized volatility over the trailing
// window using the provided number of bars per year. Returns NaN when the
// window does not fit.
func RealizedVolatility(logReturns []float64, window int, barsPerYear float64) float64 {
    if window <= 1 || len(logReturns) < window {
        return math.NaN()
    }
    sum := 0.0
    sum2 := 0.0
    for i := len(logReturns) - window; i < len(logReturns); i++ {
        r := logReturns[i]
        sum += r
        sum2 += r * r
    }
    n := float64(window)
    mean := sum / n
    variance := (sum2 - n*mean*mean) / (n - 1)
    if variance < 0 {
        variance = 0
    }
    // annualize
    return math.Sqrt(variance * barsPerYear)
}

// BarsPerYear returns the number of bars per year for a continuously traded market.
func BarsPerYear(bar models.BarInterval) float64 {
    d := bar.Duration()
    if d <= 0 {
        return 365 * 24
    }
    return float64(365*24*60) / d.Minutes()
}
