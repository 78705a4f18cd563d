package telemetry

import "github.com/meterwatch/powernode/reading"

const DefaultBufferCapacity = 100

// Buffer is a bounded FIFO of undelivered readings. Adding to a full buffer
// evicts the oldest entry so the newest data is always admitted.
type Buffer struct {
	capacity  int
	readings  []reading.Reading
	evictions int
}

func NewBuffer(capacity int) *Buffer {
	if capacity <= 0 {
		capacity = DefaultBufferCapacity
	}
	return &Buffer{
		capacity: capacity,
		readings: make([]reading.Reading, 0, capacity),
	}
}

func (b *Buffer) Add(r reading.Reading) {
	if len(b.readings) >= b.capacity {
		log.Warnf("Delivery buffer full (%d readings), discarding oldest", b.capacity)
		b.readings = b.readings[1:]
		b.evictions++
	}
	b.readings = append(b.readings, r)
}

func (b *Buffer) Len() int {
	return len(b.readings)
}

func (b *Buffer) Empty() bool {
	return len(b.readings) == 0
}

// Evictions returns how many readings have been lost to overflow.
func (b *Buffer) Evictions() int {
	return b.evictions
}

// Drain resends buffered readings in FIFO order using send, removing each
// delivered reading. It stops at the first failure so ordering is preserved
// and an unreachable collector is not hammered once per entry. It returns
// the number delivered.
func (b *Buffer) Drain(send func(reading.Reading) error) int {
	delivered := 0
	for !b.Empty() {
		if err := send(b.readings[0]); err != nil {
			log.Debugf("Drain stopped with %d readings still buffered: %v", b.Len(), err)
			break
		}
		b.readings = b.readings[1:]
		delivered++
	}
	return delivered
}
