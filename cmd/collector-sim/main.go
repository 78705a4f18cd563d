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

// collector-sim is a stand in for the remote collector, for bench testing
// a node. It accepts power readings and can simulate an unreliable
// backend with --fail-rate.
package main

import (
	"encoding/json"
	"math/rand"
	"net/http"
	"time"

	arg "github.com/alexflint/go-arg"
	"github.com/sirupsen/logrus"
)

var version = "No version provided"

var log = logrus.New()

type argSpec struct {
	Addr     string  `arg:"-a,--addr" default:":8000" help:"listen address"`
	FailRate float64 `arg:"--fail-rate" help:"fraction of requests to reject, 0 to 1"`
}

func (argSpec) Version() string {
	return version
}

type powerReading struct {
	Timestamp    int64   `json:"timestamp"`
	CurrentAmps  float64 `json:"current_amps"`
	VoltageVolts float64 `json:"voltage_volts"`
	PowerWatts   float64 `json:"power_watts"`
	EnergyKwh    float64 `json:"energy_kwh"`
	DeviceID     string  `json:"device_id"`
}

func main() {
	var args argSpec
	arg.MustParse(&args)

	http.HandleFunc("/api/power-data", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "POST only", http.StatusMethodNotAllowed)
			return
		}
		if args.FailRate > 0 && rand.Float64() < args.FailRate {
			log.Warn("Simulating backend failure")
			http.Error(w, "simulated failure", http.StatusServiceUnavailable)
			return
		}

		var reading powerReading
		if err := json.NewDecoder(r.Body).Decode(&reading); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		log.Infof("%s %s: %.3fA %.1fV %.1fW %.4fkWh",
			time.Unix(reading.Timestamp, 0).Format(time.RFC3339),
			reading.DeviceID, reading.CurrentAmps, reading.VoltageVolts,
			reading.PowerWatts, reading.EnergyKwh)
		w.WriteHeader(http.StatusOK)
	})

	log.Infof("Collector simulator listening on %s (fail rate %.0f%%)", args.Addr, args.FailRate*100)
	log.Fatal(http.ListenAndServe(args.Addr, nil))
}
