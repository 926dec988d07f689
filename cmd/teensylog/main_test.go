package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/teensylog/internal/db"
	"github.com/banshee-data/teensylog/internal/fsutil"
	"github.com/banshee-data/teensylog/internal/mqttpub"
	"github.com/banshee-data/teensylog/internal/serialport"
	"github.com/banshee-data/teensylog/internal/timeutil"
	"github.com/banshee-data/teensylog/internal/version"
)

var start = time.Date(2025, 3, 14, 14, 9, 21, 535897000, time.UTC)

type harness struct {
	app    *app
	port   *serialport.TestableSerialPort
	opener *serialport.MockOpener
	fs     *fsutil.MemoryFileSystem
	clock  *timeutil.MockClock
	out    *bytes.Buffer
}

func newHarness() *harness {
	h := &harness{
		port:  serialport.NewTestableSerialPort(),
		fs:    fsutil.NewMemoryFileSystem(),
		clock: timeutil.NewMockClock(start),
		out:   &bytes.Buffer{},
	}
	h.opener = serialport.NewMockOpener(h.port)
	h.app = &app{
		opener:    h.opener.Open,
		fs:        h.fs,
		clock:     h.clock,
		sessionID: "test-session",
		dialMQTT: func(string, string, string, time.Duration) (*mqttpub.Publisher, error) {
			return nil, errors.New("mqtt disabled in tests")
		},
	}
	return h
}

func (h *harness) execute(ctx context.Context, args ...string) error {
	root := newRootCmd(h.app)
	root.SetArgs(args)
	root.SetOut(h.out)
	root.SetErr(h.out)
	return root.ExecuteContext(ctx)
}

func (h *harness) lines(t *testing.T, path string) []string {
	t.Helper()
	data, err := h.fs.ReadFile(path)
	require.NoError(t, err)
	return strings.Split(strings.TrimSuffix(string(data), "\n"), "\n")
}

func TestMillisCommand(t *testing.T) {
	h := newHarness()
	h.port.EOFWhenDrained = true
	// Bytes sent before the reset are discarded by the handshake.
	h.port.AddReadData([]byte("stale\n"))

	// Data arrives once the DTR handshake has cleared the input buffer.
	h.opener.Port = &delayedPort{TestableSerialPort: h.port, data: []byte("1000\n1001\nbad\n")}

	require.NoError(t, h.execute(context.Background(), "millis", "--output", "/data/millis.csv"))

	assert.Equal(t, []string{
		"Timestamp_UTC,Millis",
		"2025-03-14T14:09:22.535897+00:00,1000",
		"2025-03-14T14:09:22.535897+00:00,1001",
	}, h.lines(t, "/data/millis.csv"))

	out := h.out.String()
	for _, msg := range []string{
		"Opening serial port: /dev/ttyACM0 at 115200 baud...",
		"Serial port opened successfully.",
		"Saving data to '/data/millis.csv'...",
		"Press Ctrl+C to stop.",
		"Serial port closed.",
		"Data saved to /data/millis.csv.",
	} {
		assert.Contains(t, out, msg)
	}
	assert.NotContains(t, out, "Stopping data collection.")

	assert.Equal(t, []bool{false, true}, h.port.DTRHistory)
	assert.Equal(t, []time.Duration{time.Second}, h.clock.Sleeps())
	assert.Equal(t, time.Second, h.port.ReadTimeout)
	assert.True(t, h.port.Closed)
}

// delayedPort queues data after the input buffer is reset, the way a board
// starts printing once it comes out of reset.
type delayedPort struct {
	*serialport.TestableSerialPort
	data []byte
}

func (p *delayedPort) ResetInputBuffer() error {
	if err := p.TestableSerialPort.ResetInputBuffer(); err != nil {
		return err
	}
	p.AddReadData(p.data)
	return nil
}

func TestMillisCommand_TruncatesPreviousRun(t *testing.T) {
	h := newHarness()
	h.port.EOFWhenDrained = true
	h.port.AddReadData([]byte("7\n"))
	h.fs.WriteFile("teensy_millis_data.csv", []byte("Timestamp_UTC,Millis\nold,1\n"), 0o644)

	require.NoError(t, h.execute(context.Background(), "millis", "--no-reset"))

	assert.Equal(t, []string{"Timestamp_UTC,Millis", "2025-03-14T14:09:21.535897+00:00,7"}, h.lines(t, "teensy_millis_data.csv"))
	assert.Empty(t, h.port.DTRHistory)
	assert.Empty(t, h.clock.Sleeps())
}

func TestFlagsOverrideConfigFile(t *testing.T) {
	h := newHarness()
	h.port.EOFWhenDrained = true
	h.fs.WriteFile("/etc/teensylog.yaml", []byte(`
port: /dev/ttyACM9
baud_rate: 57600
read_timeout: 250ms
reset_on_open: false
output_path: /from/config.csv
`), 0o644)

	err := h.execute(context.Background(), "millis", "--config", "/etc/teensylog.yaml", "--port", "/dev/ttyUSB0")
	require.NoError(t, err)

	call := h.opener.LastCall()
	require.NotNil(t, call)
	assert.Equal(t, "/dev/ttyUSB0", call.Path, "flag wins")
	assert.Equal(t, 57600, call.Mode.BaudRate, "config value kept")
	assert.Equal(t, 250*time.Millisecond, h.port.ReadTimeout)
	assert.Empty(t, h.port.DTRHistory)
	assert.True(t, h.fs.Exists("/from/config.csv"))
}

func TestMillisCommand_OpenFailure(t *testing.T) {
	h := newHarness()
	h.opener.Error = errors.New("no such file or directory")

	err := h.execute(context.Background(), "millis")
	var openErr *serialport.OpenError
	require.ErrorAs(t, err, &openErr)
	assert.Equal(t, "/dev/ttyACM0", openErr.Path)

	assert.NotContains(t, h.out.String(), "Serial port closed.")
	assert.False(t, h.fs.Exists("teensy_millis_data.csv"), "no output file without a port")

	var stderr bytes.Buffer
	assert.Equal(t, 1, exitCode(err, &stderr))
	assert.Contains(t, stderr.String(), "ERROR: could not open serial port /dev/ttyACM0")
	assert.Contains(t, stderr.String(), "dialout")
}

func TestMillisCommand_SQLiteMirror(t *testing.T) {
	h := newHarness()
	h.port.EOFWhenDrained = true
	h.port.AddReadData([]byte("1\n2\n3\n"))
	dbPath := filepath.Join(t.TempDir(), "mirror.db")

	require.NoError(t, h.execute(context.Background(), "millis", "--no-reset", "--sqlite", dbPath))

	database, err := db.Open(dbPath, nil)
	require.NoError(t, err)
	defer database.Close()
	n, err := database.CountSamples("test-session")
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestMillisCommand_MQTTFailureClosesPort(t *testing.T) {
	h := newHarness()

	err := h.execute(context.Background(), "millis", "--no-reset", "--mqtt-broker", "tcp://127.0.0.1:1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mqtt disabled")

	assert.True(t, h.port.Closed)
	assert.Contains(t, h.out.String(), "Serial port closed.")
	assert.Contains(t, h.out.String(), "Data saved to teensy_millis_data.csv.")
}

func TestMillisCommand_PanicStillClosesSession(t *testing.T) {
	h := newHarness()
	h.port.AddReadData([]byte("1000\n"))
	h.port.OnTimeout = func() { panic("driver fault") }

	assert.PanicsWithValue(t, "driver fault", func() {
		_ = h.execute(context.Background(), "millis", "--no-reset", "--output", "/data/millis.csv")
	})

	assert.True(t, h.port.Closed)
	assert.Contains(t, h.out.String(), "Serial port closed.")
	assert.Contains(t, h.out.String(), "Data saved to /data/millis.csv.")
	assert.Equal(t, []string{
		"Timestamp_UTC,Millis",
		"2025-03-14T14:09:21.535897+00:00,1000",
	}, h.lines(t, "/data/millis.csv"))
}

func TestWeightCommand(t *testing.T) {
	h := newHarness()
	h.fs.WriteFile("/data/weight.csv", []byte("Timestamp_UTC,ReadingIndex,CurrentWeight,AvgWeight\nearlier,1,1.00,1.00\n"), 0o644)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ticks := 0
	h.port.OnTimeout = func() {
		ticks++
		switch ticks {
		case 1:
			h.port.AddReadData([]byte("Reading: 10\tWeight: 5.125\tAvgWeight: 5.000\n"))
		case 7:
			cancel()
		}
		h.clock.Advance(time.Second)
	}

	err := h.execute(ctx, "weight", "--no-reset", "--output", "/data/weight.csv", "--flush-interval", "2s")
	require.NoError(t, err)
	assert.Equal(t, 0, exitCode(err, &bytes.Buffer{}))

	assert.Equal(t, []string{
		"Timestamp_UTC,ReadingIndex,CurrentWeight,AvgWeight",
		"earlier,1,1.00,1.00",
		"2025-03-14T14:09:23.535897+00:00,10,5.12,5.00",
	}, h.lines(t, "/data/weight.csv"))

	out := h.out.String()
	assert.Contains(t, out, "Stopping data collection.")
	assert.Contains(t, out, "Data saved to /data/weight.csv.")
}

func TestWeightCommand_InvalidFlushInterval(t *testing.T) {
	h := newHarness()

	err := h.execute(context.Background(), "weight", "--flush-interval", "-1s")
	require.Error(t, err)
	assert.Empty(t, h.opener.OpenCalls)
}

func TestVersionCommand(t *testing.T) {
	h := newHarness()
	require.NoError(t, h.execute(context.Background(), "version"))
	assert.Equal(t, version.String()+"\n", h.out.String())
}

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"success", nil, 0},
		{"interrupted", context.Canceled, 0},
		{"wrapped interrupt", fmt.Errorf("run: %w", context.Canceled), 0},
		{"open failure", &serialport.OpenError{Path: "/dev/ttyACM0", Err: errors.New("busy")}, 1},
		{"unexpected", errors.New("disk full"), 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var w bytes.Buffer
			assert.Equal(t, tt.want, exitCode(tt.err, &w))
			if tt.want == 0 {
				assert.Empty(t, w.String())
			} else {
				assert.NotEmpty(t, w.String())
			}
		})
	}
}
