package serialport

import (
	"bytes"
	"errors"
	"fmt"
	"io"
)

// MaxLineLength caps how many bytes are buffered while waiting for a newline.
const MaxLineLength = 4096

// ErrLineTooLong is returned when MaxLineLength bytes arrive without a
// newline. The buffered bytes are dropped and reading may continue.
var ErrLineTooLong = fmt.Errorf("line exceeds %d bytes without a newline", MaxLineLength)

// LineReader frames newline-delimited lines from a reader whose Read returns
// (0, nil) when its timeout elapses, as go.bug.st/serial ports do.
type LineReader struct {
	r       io.Reader
	pending []byte
	buf     []byte
	eof     bool
}

// NewLineReader returns a LineReader over r.
func NewLineReader(r io.Reader) *LineReader {
	return &LineReader{r: r, buf: make([]byte, 256)}
}

// ReadLine returns the next complete line without its terminator. It returns
// (nil, nil) when a read timed out before a full line arrived; the partial
// line stays buffered for the next call. At end of stream any unterminated
// remainder is returned first, then io.EOF.
func (l *LineReader) ReadLine() ([]byte, error) {
	for {
		if i := bytes.IndexByte(l.pending, '\n'); i >= 0 {
			line := bytes.TrimSuffix(l.pending[:i], []byte("\r"))
			out := make([]byte, len(line))
			copy(out, line)
			l.pending = l.pending[i+1:]
			return out, nil
		}

		if len(l.pending) >= MaxLineLength {
			l.pending = l.pending[:0]
			return nil, ErrLineTooLong
		}

		if l.eof {
			if len(l.pending) > 0 {
				out := bytes.TrimSuffix(l.pending, []byte("\r"))
				l.pending = nil
				return out, nil
			}
			return nil, io.EOF
		}

		n, err := l.r.Read(l.buf)
		if n > 0 {
			l.pending = append(l.pending, l.buf[:n]...)
		}
		switch {
		case errors.Is(err, io.EOF):
			l.eof = true
		case err != nil:
			return nil, err
		case n == 0:
			return nil, nil
		}
	}
}
