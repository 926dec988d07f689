package pipeline

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/banshee-data/teensylog/internal/monitoring"
	"github.com/banshee-data/teensylog/internal/reading"
	"github.com/banshee-data/teensylog/internal/sampler"
	"github.com/banshee-data/teensylog/internal/stats"
	"github.com/banshee-data/teensylog/internal/timeutil"
)

// Weight buffers the latest weight reading and persists it once per flush
// interval.
type Weight struct {
	Source  Source
	Output  RowWriter
	Sampler *sampler.Sampler
	Mirrors []Mirror
	Clock   timeutil.Clock
	Log     *zap.SugaredLogger

	// Summary, if set, receives every persisted snapshot.
	Summary *stats.WeightSummary
}

// Run reads until ctx is cancelled or the input ends. The flush boundary is
// checked after every read, so snapshots keep their cadence through quiet
// periods. A reading still buffered when the run ends is not written.
func (p *Weight) Run(ctx context.Context) (Counters, error) {
	var c Counters
	log := monitoring.Or(p.Log)
	clock := p.Clock
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	smp := p.Sampler
	if smp == nil {
		smp = sampler.New(sampler.Config{}, clock.Now())
	}

	handle := func(line []byte) error {
		r, err := reading.ParseWeight(line)
		if err != nil {
			reject(&c, log, err)
			return nil
		}
		c.Accepted++
		smp.Observe(r)
		return nil
	}

	tick := func() error {
		snap, outcome := smp.Tick(clock.Now().UTC())
		switch outcome {
		case sampler.Empty:
			c.SkippedFlushes++
			log.Infow("no data yet", "interval", smp.Interval())
		case sampler.Flushed:
			if err := p.Output.Write(snap.Record()); err != nil {
				return fmt.Errorf("failed to write snapshot: %w", err)
			}
			c.Persisted++
			mirrorAll(p.Mirrors, &c, log, func(m Mirror) error { return m.MirrorSnapshot(snap) })
			if p.Summary != nil {
				p.Summary.Add(snap)
			}
			log.Debugw("logged",
				"timestamp", reading.FormatTimestamp(snap.CapturedAt),
				"reading_index", snap.Reading.ReadingIndex,
				"current_weight", reading.FormatWeight(snap.Reading.CurrentWeight),
				"avg_weight", reading.FormatWeight(snap.Reading.AvgWeight),
			)
		}
		return nil
	}

	err := loop(ctx, p.Source, &c, log, handle, tick)
	return c, err
}
