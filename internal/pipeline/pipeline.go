// Package pipeline runs the two logging loops: every valid millis line
// becomes a CSV row, and weight lines are sampled into periodic snapshots.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"

	"go.uber.org/zap"

	"github.com/banshee-data/teensylog/internal/reading"
	"github.com/banshee-data/teensylog/internal/serialport"
)

// ErrInputClosed reports that the input stream has ended. Runners treat it,
// like io.EOF, as a normal end of stream.
var ErrInputClosed = errors.New("input stream closed")

// Source yields newline-delimited lines. A nil line with a nil error means
// the read timed out without a complete line.
type Source interface {
	ReadLine() ([]byte, error)
}

// RowWriter is the primary CSV output. A failed write stops the run.
// *csvlog.Writer satisfies it.
type RowWriter interface {
	Write(record []string) error
}

// Counters tallies what a run did.
type Counters struct {
	Lines          int // complete lines read
	Accepted       int // lines that parsed
	Rejected       int // lines dropped as undecodable, malformed or too long
	Timeouts       int // reads that returned no complete line
	Persisted      int // rows written to the CSV file
	SkippedFlushes int // flush boundaries with nothing buffered
	MirrorFailures int
}

type lineHandler func(line []byte) error

// loop reads until ctx is cancelled or the input ends, calling handle for
// each complete line and after (if set) once per read, line or timeout.
func loop(ctx context.Context, src Source, c *Counters, log *zap.SugaredLogger, handle lineHandler, after func() error) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		line, err := src.ReadLine()
		switch {
		case errors.Is(err, io.EOF), errors.Is(err, ErrInputClosed):
			log.Debugw("input closed")
			return nil
		case errors.Is(err, serialport.ErrLineTooLong):
			c.Rejected++
			log.Warnw("rejected line", "reason", err)
		case err != nil:
			return fmt.Errorf("failed to read from serial port: %w", err)
		case line == nil:
			c.Timeouts++
		default:
			c.Lines++
			if err := handle(line); err != nil {
				return err
			}
		}

		if after != nil {
			if err := after(); err != nil {
				return err
			}
		}
	}
}

// reject logs a line that failed to parse.
func reject(c *Counters, log *zap.SugaredLogger, err error) {
	c.Rejected++
	var lerr *reading.LineError
	if errors.As(err, &lerr) {
		log.Warnw("rejected line", "line", lerr.Line, "field", lerr.Field, "reason", lerr.Err)
		return
	}
	log.Warnw("rejected line", "reason", err)
}
