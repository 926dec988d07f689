// Package csvlog persists rows to a CSV file that carries exactly one header
// line for its whole lifetime.
package csvlog

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"path/filepath"
	"slices"
	"strings"

	"go.uber.org/zap"

	"github.com/banshee-data/teensylog/internal/fsutil"
	"github.com/banshee-data/teensylog/internal/monitoring"
)

// Mode selects what happens to an existing file.
type Mode int

const (
	// ModeTruncate starts a fresh file on every run.
	ModeTruncate Mode = iota
	// ModeAppend keeps earlier rows and writes the header only for a new or
	// empty file.
	ModeAppend
)

// Options tunes Open.
type Options struct {
	// CheckHeader compares the first line of an existing file with the
	// header and logs a warning on mismatch. The file is appended to either
	// way.
	CheckHeader bool

	Log *zap.SugaredLogger
}

// Writer appends CSV rows and forces each one to durable storage before
// returning.
type Writer struct {
	path   string
	file   fsutil.File
	csv    *csv.Writer
	width  int
	rows   int
	closed bool
}

// Open prepares path for writing according to mode.
func Open(fsys fsutil.FileSystem, path string, header []string, mode Mode, opts Options) (*Writer, error) {
	log := monitoring.Or(opts.Log)

	if dir := filepath.Dir(path); dir != "." && !fsys.Exists(dir) {
		if err := fsys.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	var (
		file        fsutil.File
		writeHeader bool
		err         error
	)
	switch mode {
	case ModeTruncate:
		file, err = fsys.Create(path)
		writeHeader = true
	case ModeAppend:
		writeHeader, err = needsHeader(fsys, path)
		if err != nil {
			return nil, err
		}
		if !writeHeader && opts.CheckHeader {
			if existing, err := firstRecord(fsys, path); err != nil {
				log.Warnw("could not read existing header", "path", path, "error", err)
			} else if !slices.Equal(existing, header) {
				log.Warnw("existing file has a different header; appending anyway",
					"path", path,
					"existing", strings.Join(existing, ","),
					"expected", strings.Join(header, ","))
			}
		}
		file, err = fsys.OpenAppend(path)
	default:
		return nil, fmt.Errorf("unknown csv mode %d", mode)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}

	w := &Writer{path: path, file: file, csv: csv.NewWriter(file), width: len(header)}
	if writeHeader {
		if err := w.writeRecord(header); err != nil {
			file.Close()
			return nil, fmt.Errorf("failed to write header to %s: %w", path, err)
		}
		log.Debugw("wrote csv header", "path", path)
	}
	return w, nil
}

func needsHeader(fsys fsutil.FileSystem, path string) (bool, error) {
	info, err := fsys.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return true, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to stat %s: %w", path, err)
	}
	if info.IsDir() {
		return false, fmt.Errorf("%s is a directory", path)
	}
	return info.Size() == 0, nil
}

func firstRecord(fsys fsutil.FileSystem, path string) ([]string, error) {
	f, err := fsys.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	line, err := bufio.NewReader(io.LimitReader(f, 64*1024)).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}
	return csv.NewReader(strings.NewReader(line)).Read()
}

// Path returns the file being written.
func (w *Writer) Path() string { return w.path }

// Rows returns how many data rows were written through this Writer.
func (w *Writer) Rows() int { return w.rows }

// Write appends one data row and syncs it to disk.
func (w *Writer) Write(record []string) error {
	if w.closed {
		return fs.ErrClosed
	}
	if len(record) != w.width {
		return fmt.Errorf("record has %d fields, header has %d", len(record), w.width)
	}
	if err := w.writeRecord(record); err != nil {
		return err
	}
	w.rows++
	return nil
}

func (w *Writer) writeRecord(record []string) error {
	if err := w.csv.Write(record); err != nil {
		return err
	}
	w.csv.Flush()
	if err := w.csv.Error(); err != nil {
		return err
	}
	return w.file.Sync()
}

// Close releases the file. It is safe to call more than once.
func (w *Writer) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true
	w.csv.Flush()
	flushErr := w.csv.Error()
	if err := w.file.Close(); err != nil {
		return err
	}
	return flushErr
}
