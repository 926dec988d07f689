package pipeline

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/banshee-data/teensylog/internal/monitoring"
	"github.com/banshee-data/teensylog/internal/reading"
	"github.com/banshee-data/teensylog/internal/stats"
	"github.com/banshee-data/teensylog/internal/timeutil"
)

// Millis persists every valid millis line as it arrives.
type Millis struct {
	Source  Source
	Output  RowWriter
	Mirrors []Mirror
	Clock   timeutil.Clock
	Log     *zap.SugaredLogger

	// Drift, if set, receives every persisted sample.
	Drift *stats.DriftEstimator
}

// Run reads until ctx is cancelled or the input ends. It returns an error
// only when reading fails or a row cannot be written to the CSV file.
func (p *Millis) Run(ctx context.Context) (Counters, error) {
	var c Counters
	log := monitoring.Or(p.Log)
	clock := p.Clock
	if clock == nil {
		clock = timeutil.RealClock{}
	}

	handle := func(line []byte) error {
		millis, err := reading.ParseMillis(line)
		if err != nil {
			reject(&c, log, err)
			return nil
		}
		c.Accepted++

		sample := reading.RawSample{CapturedAt: clock.Now().UTC(), Millis: millis}
		if err := p.Output.Write(sample.Record()); err != nil {
			return fmt.Errorf("failed to write sample: %w", err)
		}
		c.Persisted++
		mirrorAll(p.Mirrors, &c, log, func(m Mirror) error { return m.MirrorSample(sample) })
		if p.Drift != nil {
			p.Drift.Add(sample.CapturedAt, sample.Millis)
		}

		log.Debugw("logged", "timestamp", reading.FormatTimestamp(sample.CapturedAt), "millis", millis)
		return nil
	}

	err := loop(ctx, p.Source, &c, log, handle, nil)
	return c, err
}
