package monitor

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meterwatch/powernode/internal/power"
	"github.com/meterwatch/powernode/internal/sampler"
	"github.com/meterwatch/powernode/reading"
)

// waveSource produces a steady square wave around the ADC midpoint.
type waveSource struct {
	amplitude int
	i         int
}

func (s *waveSource) ReadRaw() (int, error) {
	s.i++
	if s.i%2 == 0 {
		return 2048 + s.amplitude, nil
	}
	return 2048 - s.amplitude, nil
}

type errorSource struct{}

func (errorSource) ReadRaw() (int, error) {
	return 0, errors.New("sensor gone")
}

type recordingSender struct {
	err  error
	sent []reading.Reading
}

func (s *recordingSender) Send(r reading.Reading) error {
	if s.err != nil {
		return s.err
	}
	s.sent = append(s.sent, r)
	return nil
}

func newTestOrchestrator(src sampler.Source, sender *recordingSender) *Orchestrator {
	s := sampler.New(src, 10, 0, 33, 2000, 1.0)
	return New(s, power.NewAccumulator(230), sender, Config{
		Interval:       time.Second,
		WindowSize:     10,
		BufferCapacity: 5,
	})
}

func TestCycleProducesAndDeliversReading(t *testing.T) {
	sender := &recordingSender{}
	o := newTestOrchestrator(&waveSource{amplitude: 248}, sender)
	o.handleEvent(LinkEvent{State: Connected})

	o.cycle()

	status := o.Status()
	require.True(t, status.HaveReading)
	assert.InDelta(t, 12.109, status.Reading.Current, 0.01)
	assert.Equal(t, 230.0, status.Reading.Voltage)
	assert.InDelta(t, 12.109*230, status.Reading.Power, 3)
	assert.False(t, status.Reading.Anomaly)
	require.Len(t, sender.sent, 1)
}

func TestOfflineReadingsAreBuffered(t *testing.T) {
	sender := &recordingSender{}
	o := newTestOrchestrator(&waveSource{amplitude: 248}, sender)

	o.cycle()
	o.cycle()

	assert.Empty(t, sender.sent)
	status := o.Status()
	assert.Equal(t, 2, status.Buffered)

	// Link comes up, backlog plus the new reading all go out in order.
	o.handleEvent(LinkEvent{State: Connected})
	o.cycle()
	assert.Len(t, sender.sent, 3)
	assert.Equal(t, 0, o.Status().Buffered)
}

func TestSensorErrorSkipsCycle(t *testing.T) {
	sender := &recordingSender{}
	o := newTestOrchestrator(errorSource{}, sender)
	o.handleEvent(LinkEvent{State: Connected})

	o.cycle()

	assert.False(t, o.Status().HaveReading)
	assert.Empty(t, sender.sent)
}

func TestMaintenanceModeSuspendsCycles(t *testing.T) {
	sender := &recordingSender{}
	o := newTestOrchestrator(&waveSource{amplitude: 248}, sender)
	o.handleEvent(LinkEvent{State: Connected})
	o.handleEvent(MaintenanceEvent{On: true})

	o.cycle()
	assert.False(t, o.Status().HaveReading)
	assert.Empty(t, sender.sent)

	o.handleEvent(MaintenanceEvent{On: false})
	o.cycle()
	assert.True(t, o.Status().HaveReading)
	assert.Len(t, sender.sent, 1)
}

func TestVoltageOverride(t *testing.T) {
	sender := &recordingSender{}
	o := newTestOrchestrator(&waveSource{amplitude: 248}, sender)
	o.handleEvent(LinkEvent{State: Connected})
	o.handleEvent(VoltageEvent{Volts: 240})

	o.cycle()
	assert.Equal(t, 240.0, o.Status().Reading.Voltage)
}

func TestLinkStateMachine(t *testing.T) {
	var l link
	assert.Equal(t, Disconnected, l.state)
	assert.False(t, l.connected())

	l.apply(Connecting)
	assert.Equal(t, Connecting, l.state)
	assert.False(t, l.connected())

	l.apply(Connected)
	assert.True(t, l.connected())

	l.apply(Disconnected)
	assert.False(t, l.connected())

	// Collaborators that only report up/down skip the connecting state.
	l.apply(Connected)
	assert.True(t, l.connected())
}

func TestTrendReportedAfterFullWindow(t *testing.T) {
	sender := &recordingSender{}
	o := newTestOrchestrator(&waveSource{amplitude: 248}, sender)
	o.handleEvent(LinkEvent{State: Connected})

	for i := 0; i < 9; i++ {
		o.cycle()
	}
	assert.Equal(t, "insufficient data", o.Status().Trend.String())

	o.cycle()
	// A constant load over a full window classifies as stable.
	assert.Equal(t, "stable", o.Status().Trend.String())
	assert.InDelta(t, 12.109*230, o.Status().PredictedPower, 3)
}
