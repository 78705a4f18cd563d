/*
powernode - CT based power monitoring firmware
Copyright (C) 2024, The Meterwatch Project

This program is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

This program is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with this program. If not, see <http://www.gnu.org/licenses/>.
*/

// Package analytics holds the on-device analysis of recent readings: the
// rolling history window, anomaly detection and trend prediction.
package analytics

import (
	"math"

	"github.com/meterwatch/powernode/reading"
)

const DefaultWindowSize = 10

// History is a fixed capacity window of the most recent readings, oldest
// first. Adding to a full window evicts the oldest entry.
type History struct {
	capacity int
	readings []reading.Reading
}

func NewHistory(capacity int) *History {
	if capacity <= 0 {
		capacity = DefaultWindowSize
	}
	return &History{
		capacity: capacity,
		readings: make([]reading.Reading, 0, capacity),
	}
}

func (h *History) Add(r reading.Reading) {
	if len(h.readings) >= h.capacity {
		h.readings = h.readings[1:]
	}
	h.readings = append(h.readings, r)
}

func (h *History) Len() int {
	return len(h.readings)
}

func (h *History) Capacity() int {
	return h.capacity
}

func (h *History) Full() bool {
	return len(h.readings) == h.capacity
}

// powerAt returns the power of the i-th oldest reading.
func (h *History) powerAt(i int) float64 {
	return h.readings[i].Power
}

func (h *History) meanPower() float64 {
	if len(h.readings) == 0 {
		return 0
	}
	sum := 0.0
	for _, r := range h.readings {
		sum += r.Power
	}
	return sum / float64(len(h.readings))
}

// stddevPower is the sample standard deviation (n-1 divisor) of power over
// the window. Fewer than 2 entries gives 0.
func (h *History) stddevPower() float64 {
	n := len(h.readings)
	if n < 2 {
		return 0
	}
	mean := h.meanPower()
	sumSqDiff := 0.0
	for _, r := range h.readings {
		diff := r.Power - mean
		sumSqDiff += diff * diff
	}
	return math.Sqrt(sumSqDiff / float64(n-1))
}
