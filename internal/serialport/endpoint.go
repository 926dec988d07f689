package serialport

import (
	"errors"
	"fmt"
	"time"

	"go.bug.st/serial"
	"go.uber.org/zap"

	"github.com/banshee-data/teensylog/internal/monitoring"
	"github.com/banshee-data/teensylog/internal/timeutil"
)

const (
	// DefaultPath is where a Teensy usually enumerates on Linux and WSL.
	DefaultPath = "/dev/ttyACM0"
	// DefaultReadTimeout bounds each blocking read.
	DefaultReadTimeout = time.Second
	// DefaultResetPause is how long DTR is held low during the reset handshake.
	DefaultResetPause = time.Second
)

// Endpoint describes how to reach the microcontroller.
type Endpoint struct {
	Path        string
	Options     PortOptions
	ReadTimeout time.Duration
	// Reset toggles DTR low, pauses, clears buffered input and raises DTR
	// again before steady-state reading begins.
	Reset      bool
	ResetPause time.Duration

	Log *zap.SugaredLogger
}

// Open opens the endpoint with opener, applies the read timeout and performs
// the reset handshake when configured. Every failure is returned as an
// *OpenError and leaves no port open.
func (e Endpoint) Open(opener Opener, clock timeutil.Clock) (Port, error) {
	log := monitoring.Or(e.Log)
	if opener == nil {
		opener = DefaultOpener
	}
	if clock == nil {
		clock = timeutil.RealClock{}
	}

	mode, err := e.Options.SerialMode()
	if err != nil {
		return nil, &OpenError{Path: e.Path, Err: err}
	}

	log.Infow("opening serial port", "path", e.Path, "baud_rate", mode.BaudRate)
	port, err := opener(e.Path, mode)
	if err != nil {
		return nil, &OpenError{Path: e.Path, Err: err}
	}

	timeout := e.ReadTimeout
	if timeout <= 0 {
		timeout = DefaultReadTimeout
	}
	if err := port.SetReadTimeout(timeout); err != nil {
		port.Close()
		return nil, &OpenError{Path: e.Path, Err: fmt.Errorf("failed to set read timeout: %w", err)}
	}

	if e.Reset {
		pause := e.ResetPause
		if pause <= 0 {
			pause = DefaultResetPause
		}
		if err := ResetDevice(port, clock, pause); err != nil {
			port.Close()
			return nil, &OpenError{Path: e.Path, Err: err}
		}
		log.Debugw("device reset via DTR", "path", e.Path, "pause", pause)
	}

	log.Infow("serial port opened", "path", e.Path)
	return port, nil
}

// ResetDevice performs the DTR reset handshake: drive DTR low, wait pause,
// discard anything the device sent meanwhile, then drive DTR high.
func ResetDevice(port Port, clock timeutil.Clock, pause time.Duration) error {
	if err := port.SetDTR(false); err != nil {
		return fmt.Errorf("failed to lower DTR: %w", err)
	}
	clock.Sleep(pause)
	if err := port.ResetInputBuffer(); err != nil {
		return fmt.Errorf("failed to clear input buffer: %w", err)
	}
	if err := port.SetDTR(true); err != nil {
		return fmt.Errorf("failed to raise DTR: %w", err)
	}
	return nil
}

// OpenError reports that the serial endpoint could not be opened or prepared.
type OpenError struct {
	Path string
	Err  error
}

func (e *OpenError) Error() string {
	return fmt.Sprintf("could not open serial port %s: %v", e.Path, e.Err)
}

func (e *OpenError) Unwrap() error { return e.Err }

// Hint returns a remediation message suited to the underlying failure.
func (e *OpenError) Hint() string {
	var portErr *serial.PortError
	if errors.As(e.Err, &portErr) {
		switch portErr.Code() {
		case serial.PortNotFound:
			return "Please ensure the Teensy is connected and the correct port is specified."
		case serial.PermissionDenied:
			return "Please ensure you have read/write permissions on the port (e.g., add your user to the 'dialout' group)."
		case serial.PortBusy:
			return "The port is in use by another program; close it (e.g., the Arduino serial monitor) and retry."
		}
	}
	return "Please ensure the Teensy is connected, the correct port is specified,\n" +
		"and you have read/write permissions (e.g., add user to 'dialout' group)."
}
