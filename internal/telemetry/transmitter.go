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

// Package telemetry delivers readings to the remote collector, buffering
// and retrying across network failures.
package telemetry

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/meterwatch/powernode/reading"
)

const (
	DefaultSendAttempts = 3
	DefaultBaseDelay    = 500 * time.Millisecond
	DefaultSendTimeout  = 10 * time.Second
)

var log = logrus.New()

var sleepFn = time.Sleep

// payload is the exact wire format the collector accepts.
type payload struct {
	Timestamp    int64   `json:"timestamp"`
	CurrentAmps  float64 `json:"current_amps"`
	VoltageVolts float64 `json:"voltage_volts"`
	PowerWatts   float64 `json:"power_watts"`
	EnergyKwh    float64 `json:"energy_kwh"`
	DeviceID     string  `json:"device_id"`
}

// Transmitter posts readings to the collector URL. Each send makes up to
// attempts tries, delaying baseDelay times the attempt number between them.
// Only a 200 response counts as delivered.
type Transmitter struct {
	url      string
	deviceID string
	client   *http.Client

	attempts  int
	baseDelay time.Duration
}

func NewTransmitter(url, deviceID string, attempts int, baseDelay time.Duration) *Transmitter {
	if attempts <= 0 {
		attempts = DefaultSendAttempts
	}
	if baseDelay <= 0 {
		baseDelay = DefaultBaseDelay
	}
	return &Transmitter{
		url:       url,
		deviceID:  deviceID,
		client:    &http.Client{Timeout: DefaultSendTimeout},
		attempts:  attempts,
		baseDelay: baseDelay,
	}
}

// Send delivers one reading, retrying transient failures. It blocks until
// the reading is delivered or all attempts are exhausted.
func (t *Transmitter) Send(r reading.Reading) error {
	body, err := json.Marshal(payload{
		Timestamp:    r.Timestamp.Unix(),
		CurrentAmps:  r.Current,
		VoltageVolts: r.Voltage,
		PowerWatts:   r.Power,
		EnergyKwh:    r.Energy,
		DeviceID:     t.deviceID,
	})
	if err != nil {
		return err
	}

	var lastErr error
	for attempt := 1; attempt <= t.attempts; attempt++ {
		lastErr = t.post(body)
		if lastErr == nil {
			return nil
		}
		log.Debugf("Send attempt %d/%d failed: %v", attempt, t.attempts, lastErr)
		if attempt < t.attempts {
			sleepFn(t.baseDelay * time.Duration(attempt))
		}
	}
	return lastErr
}

func (t *Transmitter) post(body []byte) error {
	resp, err := t.client.Post(t.url, "application/json", bytes.NewReader(body))
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("collector returned %s", resp.Status)
	}
	return nil
}
