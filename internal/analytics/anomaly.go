package analytics

import "math"

const (
	// DefaultAnomalyThreshold is the stddev multiplier above which a
	// reading is flagged. 0.2 is deliberately sensitive, roughly one in
	// three readings of a noisy load will trip it.
	DefaultAnomalyThreshold = 0.2

	// minAnomalyHistory is the hard floor on window size below which no
	// reading is ever flagged.
	minAnomalyHistory = 3
)

// AnomalyDetector flags readings whose power deviates statistically from
// the recent history. It keeps no state of its own.
type AnomalyDetector struct {
	threshold float64
}

func NewAnomalyDetector(threshold float64) *AnomalyDetector {
	if threshold <= 0 {
		threshold = DefaultAnomalyThreshold
	}
	return &AnomalyDetector{threshold: threshold}
}

// Detect reports whether powerWatts is anomalous against the history
// window. The window must not yet contain the reading being tested.
func (d *AnomalyDetector) Detect(h *History, powerWatts float64) bool {
	if h.Len() < minAnomalyHistory {
		return false
	}
	deviation := math.Abs(powerWatts - h.meanPower())
	return deviation > d.threshold*h.stddevPower()
}
