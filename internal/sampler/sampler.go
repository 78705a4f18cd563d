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

package sampler

import (
	"fmt"
	"math"
	"time"
)

const (
	adcBits   = 12
	adcCounts = 1 << adcBits
	vref      = 3.3

	// Readings below this are treated as noise from the CT front end
	// and forced to exactly zero.
	noiseFloorAmps = 0.05
)

var sleepFn = time.Sleep

// Source supplies raw ADC counts from the current transformer, one per call.
type Source interface {
	ReadRaw() (int, error)
}

// Sampler converts bursts of raw CT samples into a calibrated RMS current.
type Sampler struct {
	source      Source
	samples     int
	sampleDelay time.Duration

	burdenOhms  float64
	turnsRatio  float64
	calibration float64
}

// New returns a Sampler reading from source. samples is the number of raw
// ADC conversions taken per measurement cycle.
func New(source Source, samples int, sampleDelay time.Duration, burdenOhms, turnsRatio, calibration float64) *Sampler {
	return &Sampler{
		source:      source,
		samples:     samples,
		sampleDelay: sampleDelay,
		burdenOhms:  burdenOhms,
		turnsRatio:  turnsRatio,
		calibration: calibration,
	}
}

// ReadCurrent takes one burst of samples and returns the RMS current in amps.
// The result is never negative.
func (s *Sampler) ReadCurrent() (float64, error) {
	meanSquared, err := s.readMeanSquared()
	if err != nil {
		return 0, err
	}
	return s.currentFromMeanSquared(meanSquared), nil
}

// readMeanSquared takes s.samples raw readings and accumulates the mean
// square of the AC coupled sensor voltage.
func (s *Sampler) readMeanSquared() (float64, error) {
	sumSquared := 0.0
	for i := 0; i < s.samples; i++ {
		raw, err := s.source.ReadRaw()
		if err != nil {
			return 0, fmt.Errorf("reading sample %d of %d: %v", i+1, s.samples, err)
		}

		voltage := float64(raw) / adcCounts * vref
		// The CT output is biased to the ADC midpoint, remove the DC offset.
		offset := voltage - vref/2
		sumSquared += offset * offset

		sleepFn(s.sampleDelay)
	}
	return sumSquared / float64(s.samples), nil
}

func (s *Sampler) currentFromMeanSquared(meanSquared float64) float64 {
	rmsVoltage := math.Sqrt(meanSquared)
	current := rmsVoltage / s.burdenOhms * s.turnsRatio * s.calibration
	if current < noiseFloorAmps {
		return 0
	}
	return current
}
