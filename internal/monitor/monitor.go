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

// Package monitor drives the fixed cadence loop tying sampling, analytics
// and delivery together.
package monitor

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/meterwatch/powernode/internal/analytics"
	"github.com/meterwatch/powernode/internal/metrics"
	"github.com/meterwatch/powernode/internal/power"
	"github.com/meterwatch/powernode/internal/sampler"
	"github.com/meterwatch/powernode/internal/telemetry"
	"github.com/meterwatch/powernode/reading"
)

var log = logrus.New()

var nowFn = time.Now

// Event is an external input to the orchestrator. Events are applied
// between cycles on the loop goroutine so the loop's state needs no
// locking.
type Event interface {
	isEvent()
}

// LinkEvent reports a connectivity change from the network collaborator.
type LinkEvent struct {
	State LinkState
}

// MaintenanceEvent suspends or resumes the whole loop, used while
// provisioning or firmware updates run.
type MaintenanceEvent struct {
	On bool
}

// VoltageEvent overrides the configured mains voltage.
type VoltageEvent struct {
	Volts float64
}

func (LinkEvent) isEvent()        {}
func (MaintenanceEvent) isEvent() {}
func (VoltageEvent) isEvent()     {}

type Config struct {
	Interval         time.Duration
	LogInterval      time.Duration
	WindowSize       int
	AnomalyThreshold float64
	BufferCapacity   int
}

// Status is a snapshot of the loop's latest results for display and
// logging collaborators.
type Status struct {
	Reading        reading.Reading
	HaveReading    bool
	Trend          analytics.Trend
	PredictedPower float64
	Outcome        telemetry.Outcome
	Buffered       int
	Link           LinkState
	Maintenance    bool
}

// Orchestrator owns the history window, the delivery buffer and the
// accumulated energy. All of them are touched only by the Run goroutine;
// the Status snapshot is the one piece of shared state and has its own
// lock.
type Orchestrator struct {
	sampler   *sampler.Sampler
	acc       *power.Accumulator
	history   *analytics.History
	detector  *analytics.AnomalyDetector
	predictor *analytics.TrendPredictor
	deliverer *telemetry.Deliverer

	interval    time.Duration
	logInterval time.Duration
	lastLogTime time.Time

	link        link
	maintenance bool
	events      chan Event

	mu     sync.Mutex
	status Status
}

func New(s *sampler.Sampler, acc *power.Accumulator, sender telemetry.Sender, cfg Config) *Orchestrator {
	if cfg.Interval <= 0 {
		cfg.Interval = 5 * time.Second
	}
	if cfg.LogInterval <= 0 {
		cfg.LogInterval = time.Minute
	}
	return &Orchestrator{
		sampler:     s,
		acc:         acc,
		history:     analytics.NewHistory(cfg.WindowSize),
		detector:    analytics.NewAnomalyDetector(cfg.AnomalyThreshold),
		predictor:   analytics.NewTrendPredictor(),
		deliverer:   telemetry.NewDeliverer(sender, cfg.BufferCapacity),
		interval:    cfg.Interval,
		logInterval: cfg.LogInterval,
		events:      make(chan Event, 10),
	}
}

// Send queues an external event for the loop. It never blocks; if the loop
// has stalled the event is dropped rather than wedging the caller.
func (o *Orchestrator) Send(e Event) {
	select {
	case o.events <- e:
	default:
		log.Warnf("Event queue full, dropping %T", e)
	}
}

// Status returns the latest loop snapshot.
func (o *Orchestrator) Status() Status {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.status
}

// Run drives the loop until stop is closed. Sampling and transmission run
// on this single goroutine; a send that is retrying delays the next sample
// by design.
func (o *Orchestrator) Run(stop <-chan struct{}) {
	ticker := time.NewTicker(o.interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case e := <-o.events:
			o.handleEvent(e)
		case <-ticker.C:
			o.drainEvents()
			o.cycle()
		}
	}
}

// drainEvents applies any queued events before a cycle so a maintenance or
// link change that raced the tick takes effect first.
func (o *Orchestrator) drainEvents() {
	for {
		select {
		case e := <-o.events:
			o.handleEvent(e)
		default:
			return
		}
	}
}

func (o *Orchestrator) handleEvent(e Event) {
	switch e := e.(type) {
	case LinkEvent:
		o.link.apply(e.State)
	case MaintenanceEvent:
		if e.On != o.maintenance {
			log.Infof("Maintenance mode: %v", e.On)
		}
		o.maintenance = e.On
	case VoltageEvent:
		o.acc.SetVoltage(e.Volts)
		log.Infof("Mains voltage set to %.1fV", o.acc.Voltage())
	}
	o.mu.Lock()
	o.status.Link = o.link.state
	o.status.Maintenance = o.maintenance
	o.mu.Unlock()
}

// cycle runs one acquisition, analysis and delivery pass.
func (o *Orchestrator) cycle() {
	if o.maintenance {
		log.Debug("Maintenance mode, skipping cycle")
		return
	}

	current, err := o.sampler.ReadCurrent()
	if err != nil {
		log.Errorf("Skipping cycle, sensor read failed: %v", err)
		return
	}

	powerWatts := o.acc.Update(current)
	r := reading.Reading{
		Timestamp: nowFn(),
		Current:   current,
		Voltage:   o.acc.Voltage(),
		Power:     powerWatts,
		Energy:    o.acc.EnergyKwh(),
	}

	// The detector compares the new reading against the window as it
	// stood before this cycle.
	r.Anomaly = o.detector.Detect(o.history, r.Power)
	o.history.Add(r)

	trend := o.predictor.Classify(o.history)
	predicted := o.predictor.PredictNext(o.history)

	metrics.ReadingsTotal.Inc()
	metrics.PowerWatts.Set(r.Power)
	metrics.EnergyKwh.Set(r.Energy)
	if r.Anomaly {
		metrics.AnomaliesTotal.Inc()
		log.Warnf("Anomaly: %s", r)
	}

	var outcome telemetry.Outcome
	if o.link.connected() {
		outcome = o.deliverer.Deliver(r)
	} else {
		outcome = o.deliverer.DeliverOffline(r)
	}

	if time.Since(o.lastLogTime) > o.logInterval {
		log.Infof("%s trend: %s predicted: %.1fW %s (%d buffered)",
			r, trend, predicted, outcome, o.deliverer.BufferedCount())
		o.lastLogTime = time.Now()
	} else {
		log.Debugf("%s %s", r, outcome)
	}

	o.mu.Lock()
	o.status = Status{
		Reading:        r,
		HaveReading:    true,
		Trend:          trend,
		PredictedPower: predicted,
		Outcome:        outcome,
		Buffered:       o.deliverer.BufferedCount(),
		Link:           o.link.state,
		Maintenance:    o.maintenance,
	}
	o.mu.Unlock()
}
