package analytics

import (
	"fmt"
	"math"
)

// stablePercentBand is the percent change magnitude below which usage is
// classified as stable.
const stablePercentBand = 5.0

type TrendDirection int

const (
	// TrendInsufficientData means the window is not yet full.
	TrendInsufficientData TrendDirection = iota
	TrendStable
	TrendIncreasing
	TrendDecreasing
	// TrendIndeterminate means the first half of the window averaged
	// exactly zero power so a percent change is undefined.
	TrendIndeterminate
)

func (d TrendDirection) String() string {
	switch d {
	case TrendStable:
		return "stable"
	case TrendIncreasing:
		return "increasing"
	case TrendDecreasing:
		return "decreasing"
	case TrendIndeterminate:
		return "indeterminate"
	default:
		return "insufficient data"
	}
}

// Trend is the classified direction of recent power usage. PercentChange is
// the magnitude of the change and is only meaningful for increasing and
// decreasing trends.
type Trend struct {
	Direction     TrendDirection
	PercentChange float64
}

func (t Trend) String() string {
	switch t.Direction {
	case TrendIncreasing, TrendDecreasing:
		return fmt.Sprintf("%s (%.1f%%)", t.Direction, t.PercentChange)
	default:
		return t.Direction.String()
	}
}

// TrendPredictor fits a short horizon linear model over the history window.
type TrendPredictor struct{}

func NewTrendPredictor() *TrendPredictor {
	return &TrendPredictor{}
}

// PredictNext returns the least squares prediction of the next power value,
// fitting power against position over the whole window. Predictions are
// clamped at zero. With fewer than 2 entries the last observed value (or 0)
// is returned.
func (p *TrendPredictor) PredictNext(h *History) float64 {
	n := h.Len()
	if n < 2 {
		if n == 1 {
			return h.powerAt(0)
		}
		return 0
	}

	var sumX, sumY, sumXY, sumX2 float64
	for i := 0; i < n; i++ {
		x := float64(i)
		y := h.powerAt(i)
		sumX += x
		sumY += y
		sumXY += x * y
		sumX2 += x * x
	}

	fn := float64(n)
	slope := (fn*sumXY - sumX*sumY) / (fn*sumX2 - sumX*sumX)
	intercept := (sumY - slope*sumX) / fn

	prediction := intercept + slope*fn
	if prediction < 0 {
		return 0
	}
	return prediction
}

// Classify compares the mean power of the first half of the window against
// the second half. It requires a full window.
func (p *TrendPredictor) Classify(h *History) Trend {
	if !h.Full() {
		return Trend{Direction: TrendInsufficientData}
	}

	half := h.Capacity() / 2
	firstAvg := 0.0
	for i := 0; i < half; i++ {
		firstAvg += h.powerAt(i)
	}
	firstAvg /= float64(half)

	lastAvg := 0.0
	for i := half; i < h.Capacity(); i++ {
		lastAvg += h.powerAt(i)
	}
	lastAvg /= float64(h.Capacity() - half)

	if firstAvg == 0 {
		// Percent change against a zero baseline is undefined.
		return Trend{Direction: TrendIndeterminate}
	}

	percentChange := (lastAvg - firstAvg) / firstAvg * 100
	switch {
	case math.Abs(percentChange) < stablePercentBand:
		return Trend{Direction: TrendStable}
	case percentChange > 0:
		return Trend{Direction: TrendIncreasing, PercentChange: percentChange}
	default:
		return Trend{Direction: TrendDecreasing, PercentChange: -percentChange}
	}
}
