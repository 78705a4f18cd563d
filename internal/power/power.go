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

// Package power derives instantaneous power from the measured current and
// integrates cumulative energy over wall clock time.
package power

import "time"

const DefaultMainsVoltage = 230.0

var nowFn = time.Now

// Accumulator holds the configured mains voltage and the running energy
// total. The load is assumed resistive so power is simply current times
// voltage, there is no power factor term.
type Accumulator struct {
	voltage   float64
	energyKwh float64
	lastCalc  time.Time
}

func NewAccumulator(voltage float64) *Accumulator {
	if voltage <= 0 {
		voltage = DefaultMainsVoltage
	}
	return &Accumulator{
		voltage:  voltage,
		lastCalc: nowFn(),
	}
}

// SetVoltage updates the mains voltage used for power calculations.
// Non-positive values are ignored.
func (a *Accumulator) SetVoltage(v float64) {
	if v > 0 {
		a.voltage = v
	}
}

func (a *Accumulator) Voltage() float64 {
	return a.voltage
}

func (a *Accumulator) EnergyKwh() float64 {
	return a.energyKwh
}

// Update computes instantaneous power for the given RMS current and folds
// the elapsed time into the energy total. A zero or negative clock delta is
// skipped so a clock step backwards can not corrupt the total.
func (a *Accumulator) Update(currentAmps float64) (powerWatts float64) {
	powerWatts = currentAmps * a.voltage

	now := nowFn()
	delta := now.Sub(a.lastCalc)
	if delta > 0 {
		hours := float64(delta.Milliseconds()) / 3600000.0
		a.energyKwh += powerWatts * hours / 1000.0
	}
	a.lastCalc = now
	return powerWatts
}
