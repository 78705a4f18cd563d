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

package reading

import (
	"fmt"
	"time"
)

// Reading is one complete measurement produced per sampling cycle.
// A Reading is never modified after it is produced.
type Reading struct {
	Timestamp time.Time `json:"timestamp"`
	Current   float64   `json:"current"` // RMS current in amps
	Voltage   float64   `json:"voltage"` // configured mains voltage in volts
	Power     float64   `json:"power"`   // instantaneous power in watts
	Energy    float64   `json:"energy"`  // cumulative energy in kWh
	Anomaly   bool      `json:"anomaly"`
}

func (r Reading) String() string {
	s := fmt.Sprintf("%.3fA %.1fV %.1fW %.4fkWh", r.Current, r.Voltage, r.Power, r.Energy)
	if r.Anomaly {
		s += " (anomaly)"
	}
	return s
}
