package telemetry

import (
	"github.com/meterwatch/powernode/internal/metrics"
	"github.com/meterwatch/powernode/reading"
)

// Outcome is the terminal state of one reading's trip through delivery.
type Outcome int

const (
	// Delivered means the collector acknowledged the reading.
	Delivered Outcome = iota
	// Buffered means all attempts failed and the reading is retained for
	// a later cycle.
	Buffered
	// BufferedOffline means no send was attempted because the link was
	// down.
	BufferedOffline
)

func (o Outcome) String() string {
	switch o {
	case Delivered:
		return "delivered"
	case Buffered:
		return "buffered"
	default:
		return "buffered offline"
	}
}

// Sender delivers a single reading, blocking through its internal retries.
type Sender interface {
	Send(reading.Reading) error
}

// Deliverer ties the transmitter and the retry buffer together. It is the
// single owner of the buffer and must only be used from one goroutine.
type Deliverer struct {
	sender Sender
	buffer *Buffer
}

func NewDeliverer(sender Sender, bufferCapacity int) *Deliverer {
	return &Deliverer{
		sender: sender,
		buffer: NewBuffer(bufferCapacity),
	}
}

// Deliver first drains previously buffered readings in FIFO order, then
// sends r itself. A reading that cannot be delivered after the sender's
// retries is appended to the buffer, evicting the oldest entry if full.
func (d *Deliverer) Deliver(r reading.Reading) Outcome {
	if !d.buffer.Empty() {
		if n := d.buffer.Drain(d.sender.Send); n > 0 {
			log.Infof("Delivered %d buffered readings, %d remaining", n, d.buffer.Len())
		}
	}

	outcome := Delivered
	if err := d.sender.Send(r); err != nil {
		log.Warnf("Failed to send reading, buffering for later: %v", err)
		d.bufferReading(r)
		outcome = Buffered
	}
	d.report(outcome)
	return outcome
}

// DeliverOffline buffers r without attempting a send. Used while the link
// state machine is not in the connected state.
func (d *Deliverer) DeliverOffline(r reading.Reading) Outcome {
	d.bufferReading(r)
	d.report(BufferedOffline)
	return BufferedOffline
}

func (d *Deliverer) bufferReading(r reading.Reading) {
	before := d.buffer.Evictions()
	d.buffer.Add(r)
	if lost := d.buffer.Evictions() - before; lost > 0 {
		metrics.BufferEvictionsTotal.Add(float64(lost))
	}
}

func (d *Deliverer) report(o Outcome) {
	metrics.SendsTotal.WithLabelValues(o.String()).Inc()
	metrics.BufferDepth.Set(float64(d.buffer.Len()))
}

// BufferedCount returns how many readings are waiting for redelivery.
func (d *Deliverer) BufferedCount() int {
	return d.buffer.Len()
}
