// Package serialport opens the microcontroller's serial endpoint and frames
// the newline-delimited text it emits.
package serialport

import (
	"io"
	"time"

	"go.bug.st/serial"
)

// Port defines the subset of a serial port the loggers need. go.bug.st/serial
// ports satisfy it; TestableSerialPort stands in for hardware in tests.
type Port interface {
	io.ReadWriteCloser
	// SetReadTimeout bounds how long Read blocks. A read that times out
	// returns zero bytes and a nil error.
	SetReadTimeout(timeout time.Duration) error
	// SetDTR drives the Data Terminal Ready control line.
	SetDTR(dtr bool) error
	// ResetInputBuffer discards any bytes received but not yet read.
	ResetInputBuffer() error
}

// Opener opens a serial port at the given path. It mirrors serial.Open so
// tests can substitute a fake.
type Opener func(path string, mode *serial.Mode) (Port, error)

// DefaultOpener opens a real serial port via go.bug.st/serial.
func DefaultOpener(path string, mode *serial.Mode) (Port, error) {
	return serial.Open(path, mode)
}
