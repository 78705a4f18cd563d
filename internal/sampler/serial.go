package sampler

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/tarm/serial"
)

// SerialSource reads raw ADC counts from a UART attached sensor front end.
// The front end streams one decimal count per line.
type SerialSource struct {
	port   io.ReadCloser
	reader *bufio.Reader
}

// NewSerialSource opens the serial device at the given baud rate.
func NewSerialSource(device string, baud int) (*SerialSource, error) {
	port, err := serial.OpenPort(&serial.Config{
		Name:        device,
		Baud:        baud,
		ReadTimeout: time.Second * 5,
	})
	if err != nil {
		return nil, err
	}
	return newSerialSource(port), nil
}

func newSerialSource(port io.ReadCloser) *SerialSource {
	return &SerialSource{
		port:   port,
		reader: bufio.NewReader(port),
	}
}

func (s *SerialSource) ReadRaw() (int, error) {
	line, err := s.reader.ReadString('\n')
	if err != nil {
		return 0, fmt.Errorf("reading from serial sensor: %v", err)
	}
	raw, err := strconv.Atoi(strings.TrimSpace(line))
	if err != nil {
		return 0, fmt.Errorf("bad sample %q from serial sensor: %v", strings.TrimSpace(line), err)
	}
	if raw < 0 || raw >= adcCounts {
		return 0, fmt.Errorf("sample %d from serial sensor out of range", raw)
	}
	return raw, nil
}

func (s *SerialSource) Close() error {
	return s.port.Close()
}
