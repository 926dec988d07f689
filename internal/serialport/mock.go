package serialport

import (
	"bytes"
	"errors"
	"io"
	"sync"
	"time"

	"go.bug.st/serial"
)

// ErrPortClosed is returned by TestableSerialPort after Close.
var ErrPortClosed = errors.New("serial port closed")

// TestableSerialPort implements Port with configurable behaviour for testing.
// An empty read buffer behaves like an elapsed read timeout (0, nil) unless
// EOFWhenDrained is set.
type TestableSerialPort struct {
	mu sync.Mutex

	// ReadBuffer holds data to be returned by Read calls
	ReadBuffer *bytes.Buffer

	// WriteBuffer captures data written to the port
	WriteBuffer *bytes.Buffer

	// EOFWhenDrained makes Read return io.EOF once ReadBuffer is empty
	EOFWhenDrained bool

	// OnTimeout is invoked (without the lock held) each time Read finds the
	// buffer empty and reports a timeout. Tests use it to advance a clock.
	OnTimeout func()

	// ReadError is returned by the next Read call if set
	ReadError error

	// DTRError, ResetError and TimeoutError fail the matching control call
	DTRError     error
	ResetError   error
	TimeoutError error

	// CloseError is returned by Close if set
	CloseError error

	// Closed indicates whether Close was called
	Closed bool

	// CloseCalls records the number of Close calls
	CloseCalls int

	// ReadCalls records the number of Read calls
	ReadCalls int

	// ReadTimeout is the current read timeout
	ReadTimeout time.Duration

	// DTRHistory records every SetDTR call in order
	DTRHistory []bool

	// InputResets records the number of ResetInputBuffer calls
	InputResets int
}

// NewTestableSerialPort creates a new TestableSerialPort for testing.
func NewTestableSerialPort() *TestableSerialPort {
	return &TestableSerialPort{
		ReadBuffer:  bytes.NewBuffer(nil),
		WriteBuffer: bytes.NewBuffer(nil),
	}
}

// Read reads from the read buffer, simulating timeouts and errors.
func (t *TestableSerialPort) Read(p []byte) (int, error) {
	t.mu.Lock()

	t.ReadCalls++

	if t.Closed {
		t.mu.Unlock()
		return 0, ErrPortClosed
	}

	if t.ReadError != nil {
		err := t.ReadError
		t.ReadError = nil
		t.mu.Unlock()
		return 0, err
	}

	if t.ReadBuffer.Len() == 0 {
		if t.EOFWhenDrained {
			t.mu.Unlock()
			return 0, io.EOF
		}
		hook := t.OnTimeout
		t.mu.Unlock()
		if hook != nil {
			hook()
		}
		return 0, nil
	}

	defer t.mu.Unlock()
	return t.ReadBuffer.Read(p)
}

// Write writes to the write buffer.
func (t *TestableSerialPort) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.Closed {
		return 0, ErrPortClosed
	}
	return t.WriteBuffer.Write(p)
}

// Close marks the port as closed.
func (t *TestableSerialPort) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.Closed = true
	t.CloseCalls++
	return t.CloseError
}

// SetReadTimeout records the timeout.
func (t *TestableSerialPort) SetReadTimeout(timeout time.Duration) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.TimeoutError != nil {
		return t.TimeoutError
	}
	t.ReadTimeout = timeout
	return nil
}

// SetDTR records the requested DTR level.
func (t *TestableSerialPort) SetDTR(dtr bool) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.DTRError != nil {
		return t.DTRError
	}
	t.DTRHistory = append(t.DTRHistory, dtr)
	return nil
}

// ResetInputBuffer discards unread data, as a real port drops bytes still
// sitting in the driver's receive buffer.
func (t *TestableSerialPort) ResetInputBuffer() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.ResetError != nil {
		return t.ResetError
	}
	t.InputResets++
	t.ReadBuffer.Reset()
	return nil
}

// AddReadData adds data to be returned by subsequent Read calls.
func (t *TestableSerialPort) AddReadData(data []byte) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.ReadBuffer.Write(data)
}

// MockOpener records Open calls and returns a preconfigured port or error.
type MockOpener struct {
	mu sync.Mutex

	// Port is the port to return from Open
	Port Port

	// Error is returned by Open if set
	Error error

	// OpenCalls records all Open calls
	OpenCalls []MockOpenCall
}

// MockOpenCall records details of an Open call.
type MockOpenCall struct {
	Path string
	Mode *serial.Mode
}

// NewMockOpener creates a MockOpener returning port.
func NewMockOpener(port Port) *MockOpener {
	return &MockOpener{Port: port}
}

// Open satisfies Opener.
func (f *MockOpener) Open(path string, mode *serial.Mode) (Port, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.OpenCalls = append(f.OpenCalls, MockOpenCall{Path: path, Mode: mode})

	if f.Error != nil {
		return nil, f.Error
	}
	return f.Port, nil
}

// LastCall returns the most recent Open call, or nil if none.
func (f *MockOpener) LastCall() *MockOpenCall {
	f.mu.Lock()
	defer f.mu.Unlock()

	if len(f.OpenCalls) == 0 {
		return nil
	}
	return &f.OpenCalls[len(f.OpenCalls)-1]
}
