// Package sampler decouples how often sensor lines arrive from how often a
// reading is committed to storage.
package sampler

import (
	"time"

	"github.com/banshee-data/teensylog/internal/reading"
)

// DefaultFlushInterval is the period between committed snapshots.
const DefaultFlushInterval = 5 * time.Second

// Config holds the sampling policy parameters.
type Config struct {
	FlushInterval time.Duration
}

// Sampler keeps only the most recent reading and releases it once per flush
// interval. It is driven entirely by the times passed to it and is not safe
// for concurrent use.
type Sampler struct {
	interval  time.Duration
	latest    *reading.SensorReading
	lastFlush time.Time
}

// New returns a Sampler whose first interval starts at start.
func New(cfg Config, start time.Time) *Sampler {
	interval := cfg.FlushInterval
	if interval <= 0 {
		interval = DefaultFlushInterval
	}
	return &Sampler{interval: interval, lastFlush: start}
}

// Interval returns the effective flush interval.
func (s *Sampler) Interval() time.Duration {
	return s.interval
}

// Observe replaces the buffered reading unconditionally.
func (s *Sampler) Observe(r reading.SensorReading) {
	s.latest = &r
}

// Latest returns the buffered reading, if any.
func (s *Sampler) Latest() (reading.SensorReading, bool) {
	if s.latest == nil {
		return reading.SensorReading{}, false
	}
	return *s.latest, true
}

// Due reports whether a flush boundary has been reached at now.
func (s *Sampler) Due(now time.Time) bool {
	return now.Sub(s.lastFlush) >= s.interval
}

// Outcome describes what a Tick did.
type Outcome int

const (
	// NotDue means the flush interval has not elapsed yet.
	NotDue Outcome = iota
	// Flushed means a snapshot was emitted.
	Flushed
	// Empty means a boundary passed with nothing buffered.
	Empty
)

func (o Outcome) String() string {
	switch o {
	case Flushed:
		return "flushed"
	case Empty:
		return "empty"
	default:
		return "not_due"
	}
}

// Tick evaluates the flush boundary at now. When due, the interval restarts at
// now whether or not anything is emitted, so a long quiet period never turns
// into a burst of catch-up flushes. A buffered reading is emitted once and
// the buffer is cleared.
func (s *Sampler) Tick(now time.Time) (reading.Snapshot, Outcome) {
	if !s.Due(now) {
		return reading.Snapshot{}, NotDue
	}
	s.lastFlush = now
	if s.latest == nil {
		return reading.Snapshot{}, Empty
	}
	snap := reading.Snapshot{CapturedAt: now, Reading: *s.latest}
	s.latest = nil
	return snap, Flushed
}
