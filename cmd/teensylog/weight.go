package main

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/banshee-data/teensylog/internal/config"
	"github.com/banshee-data/teensylog/internal/csvlog"
	"github.com/banshee-data/teensylog/internal/monitoring"
	"github.com/banshee-data/teensylog/internal/pipeline"
	"github.com/banshee-data/teensylog/internal/reading"
	"github.com/banshee-data/teensylog/internal/sampler"
	"github.com/banshee-data/teensylog/internal/serialport"
	"github.com/banshee-data/teensylog/internal/stats"
)

func newWeightCmd(a *app) *cobra.Command {
	var (
		outputPath    string
		flushInterval time.Duration
	)

	cmd := &cobra.Command{
		Use:   "weight",
		Short: "Record one load-cell reading per flush interval",
		Long: `Parse "Reading: <n> Weight: <w> AvgWeight: <a>" lines and append the most
recent one to the output file once per flush interval. Intervals without a
new reading are skipped.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.loadConfig(cmd)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("output") {
				cfg.OutputPath = config.String(outputPath)
			}
			if cmd.Flags().Changed("flush-interval") {
				cfg.FlushInterval = config.String(flushInterval.String())
			}
			return a.runWeight(cmd, cfg)
		},
	}
	cmd.Flags().StringVarP(&outputPath, "output", "o", config.DefaultWeightOutput, "CSV file to append to")
	cmd.Flags().DurationVarP(&flushInterval, "flush-interval", "i", sampler.DefaultFlushInterval, "Period between persisted readings")
	return cmd
}

func (a *app) runWeight(cmd *cobra.Command, cfg *config.LoggerConfig) (err error) {
	if err := cfg.Validate(); err != nil {
		return err
	}

	s, err := a.openSession(cfg, outputSpec{
		name:     "weight",
		header:   reading.WeightHeader,
		mode:     csvlog.ModeAppend,
		fallback: config.DefaultWeightOutput,
	})
	if err != nil {
		return err
	}
	defer func() { err = a.finish(cmd, s, err) }()
	a.printf("Press Ctrl+C to stop.\n")

	log := monitoring.L().With("session_id", a.sessionID)
	summary := &stats.WeightSummary{}
	p := &pipeline.Weight{
		Source:  serialport.NewLineReader(s.port),
		Output:  s.out,
		Sampler: sampler.New(sampler.Config{FlushInterval: cfg.GetFlushInterval()}, a.clock.Now()),
		Mirrors: s.mirrors,
		Clock:   a.clock,
		Log:     log,
		Summary: summary,
	}
	c, err := p.Run(cmd.Context())

	fields := countersFields(c)
	if r := summary.Report(); r.Count > 0 {
		fields = append(fields, "weight_mean", r.Mean, "weight_stddev", r.StdDev, "weight_min", r.Min, "weight_max", r.Max)
	}
	log.Infow("session summary", fields...)

	return err
}
