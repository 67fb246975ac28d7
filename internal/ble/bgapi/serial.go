//go:build !tinygo

package bgapi

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/tarm/serial"
)

// serialReadTimeout bounds each blocking read so Close is noticed.
const serialReadTimeout = 100 * time.Millisecond

// port adapts a serial port whose timed-out reads surface as io.EOF.
type port struct {
	*serial.Port
}

func (p port) Read(b []byte) (int, error) {
	n, err := p.Port.Read(b)
	if n == 0 && errors.Is(err, io.EOF) {
		return 0, nil
	}
	return n, err
}

// OpenSerial opens the module's UART, 8N1 at baud.
func OpenSerial(name string, baud int) (io.ReadWriteCloser, error) {
	p, err := serial.OpenPort(&serial.Config{
		Name:        name,
		Baud:        baud,
		ReadTimeout: serialReadTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("bgapi: open %s: %w", name, err)
	}
	return port{p}, nil
}

// Dial opens name and starts a transport on it.
func Dial(name string, baud int, opts Options) (*Transport, error) {
	rw, err := OpenSerial(name, baud)
	if err != nil {
		return nil, err
	}
	return New(rw, opts), nil
}
