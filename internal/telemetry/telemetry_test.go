package telemetry

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meterwatch/powernode/reading"
)

var noSleepFn = func(d time.Duration) {}

func testReading(power float64) reading.Reading {
	return reading.Reading{
		Timestamp: time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC),
		Current:   power / 230,
		Voltage:   230,
		Power:     power,
		Energy:    1.234,
	}
}

func TestPayloadFieldSet(t *testing.T) {
	sleepFn = noSleepFn
	var got map[string]interface{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		require.NoError(t, json.Unmarshal(body, &got))
	}))
	defer server.Close()

	tx := NewTransmitter(server.URL, "powernode-test", 3, time.Millisecond)
	require.NoError(t, tx.Send(testReading(1393.9)))

	// The collector's schema is fixed, no extra fields allowed.
	assert.Len(t, got, 6)
	assert.EqualValues(t, 1717243200, got["timestamp"])
	assert.InDelta(t, 6.06, got["current_amps"].(float64), 0.01)
	assert.Equal(t, 230.0, got["voltage_volts"])
	assert.InDelta(t, 1393.9, got["power_watts"].(float64), 0.01)
	assert.Equal(t, 1.234, got["energy_kwh"])
	assert.Equal(t, "powernode-test", got["device_id"])
}

func TestSendRetriesThenSucceeds(t *testing.T) {
	var delays []time.Duration
	sleepFn = func(d time.Duration) { delays = append(delays, d) }
	defer func() { sleepFn = noSleepFn }()

	requests := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		if requests < 3 {
			http.Error(w, "unavailable", http.StatusServiceUnavailable)
		}
	}))
	defer server.Close()

	tx := NewTransmitter(server.URL, "powernode-test", 3, 100*time.Millisecond)
	require.NoError(t, tx.Send(testReading(100)))
	assert.Equal(t, 3, requests)
	// Backoff grows with the attempt number.
	assert.Equal(t, []time.Duration{100 * time.Millisecond, 200 * time.Millisecond}, delays)
}

func TestSendExhaustsAttempts(t *testing.T) {
	sleepFn = noSleepFn
	requests := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		http.Error(w, "nope", http.StatusInternalServerError)
	}))
	defer server.Close()

	tx := NewTransmitter(server.URL, "powernode-test", 3, time.Millisecond)
	err := tx.Send(testReading(100))
	require.Error(t, err)
	assert.Equal(t, 3, requests)
}

func TestSendConnectionErrorIsRetryable(t *testing.T) {
	sleepFn = noSleepFn
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close() // nothing listening any more

	tx := NewTransmitter(server.URL, "powernode-test", 2, time.Millisecond)
	assert.Error(t, tx.Send(testReading(100)))
}

func TestBufferCapacityAndEviction(t *testing.T) {
	b := NewBuffer(100)
	for i := 0; i < 100; i++ {
		b.Add(testReading(float64(i)))
	}
	assert.Equal(t, 100, b.Len())
	assert.Equal(t, 0, b.Evictions())

	// The 101st insert evicts the oldest.
	b.Add(testReading(100))
	assert.Equal(t, 100, b.Len())
	assert.Equal(t, 1, b.Evictions())
	assert.Equal(t, 1.0, b.readings[0].Power)
	assert.Equal(t, 100.0, b.readings[99].Power)
}

func TestDrainStopsAtFirstFailure(t *testing.T) {
	b := NewBuffer(10)
	for i := 0; i < 5; i++ {
		b.Add(testReading(float64(i)))
	}

	var sent []float64
	sendErr := errors.New("collector down")
	delivered := b.Drain(func(r reading.Reading) error {
		if r.Power >= 2 {
			return sendErr
		}
		sent = append(sent, r.Power)
		return nil
	})

	assert.Equal(t, 2, delivered)
	assert.Equal(t, []float64{0, 1}, sent)
	// The failed reading stays at the head, order preserved.
	assert.Equal(t, 3, b.Len())
	assert.Equal(t, 2.0, b.readings[0].Power)
}

// flakySender fails a fixed number of sends before recovering.
type flakySender struct {
	failures  int
	delivered []float64
}

func (f *flakySender) Send(r reading.Reading) error {
	if f.failures > 0 {
		f.failures--
		return errors.New("simulated transmission failure")
	}
	f.delivered = append(f.delivered, r.Power)
	return nil
}

func TestDelivererRetriesBufferedFIFOOnce(t *testing.T) {
	// Two consecutive failed cycles followed by a working one: the
	// buffered readings must go out in FIFO order, exactly once each.
	// The second cycle burns two sends, one on the drain and one on the
	// new reading.
	sender := &flakySender{failures: 3}
	d := NewDeliverer(sender, 10)

	assert.Equal(t, Buffered, d.Deliver(testReading(1)))
	assert.Equal(t, Buffered, d.Deliver(testReading(2)))
	assert.Equal(t, 2, d.BufferedCount())

	assert.Equal(t, Delivered, d.Deliver(testReading(3)))
	assert.Equal(t, 0, d.BufferedCount())
	assert.Equal(t, []float64{1, 2, 3}, sender.delivered)

	// Nothing left to resend on the next cycle.
	assert.Equal(t, Delivered, d.Deliver(testReading(4)))
	assert.Equal(t, []float64{1, 2, 3, 4}, sender.delivered)
}

func TestDeliverOfflineBuffersWithoutSending(t *testing.T) {
	sender := &flakySender{}
	d := NewDeliverer(sender, 10)

	assert.Equal(t, BufferedOffline, d.DeliverOffline(testReading(1)))
	assert.Equal(t, BufferedOffline, d.DeliverOffline(testReading(2)))
	assert.Empty(t, sender.delivered)
	assert.Equal(t, 2, d.BufferedCount())

	// Once back online the backlog drains before the new reading.
	assert.Equal(t, Delivered, d.Deliver(testReading(3)))
	assert.Equal(t, []float64{1, 2, 3}, sender.delivered)
}
