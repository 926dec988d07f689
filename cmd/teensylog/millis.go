package main

import (
	"github.com/spf13/cobra"

	"github.com/banshee-data/teensylog/internal/config"
	"github.com/banshee-data/teensylog/internal/csvlog"
	"github.com/banshee-data/teensylog/internal/monitoring"
	"github.com/banshee-data/teensylog/internal/pipeline"
	"github.com/banshee-data/teensylog/internal/reading"
	"github.com/banshee-data/teensylog/internal/serialport"
	"github.com/banshee-data/teensylog/internal/stats"
)

func newMillisCmd(a *app) *cobra.Command {
	var outputPath string

	cmd := &cobra.Command{
		Use:   "millis",
		Short: "Record every millis() value printed by the board",
		Long: `Record every integer line printed by the board together with the host UTC
time it arrived. The output file is recreated on every run.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.loadConfig(cmd)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("output") {
				cfg.OutputPath = config.String(outputPath)
			}
			return a.runMillis(cmd, cfg)
		},
	}
	cmd.Flags().StringVarP(&outputPath, "output", "o", config.DefaultMillisOutput, "CSV file to write")
	return cmd
}

func (a *app) runMillis(cmd *cobra.Command, cfg *config.LoggerConfig) (err error) {
	if err := cfg.Validate(); err != nil {
		return err
	}

	s, err := a.openSession(cfg, outputSpec{
		name:     "millis",
		header:   reading.MillisHeader,
		mode:     csvlog.ModeTruncate,
		fallback: config.DefaultMillisOutput,
	})
	if err != nil {
		return err
	}
	defer func() { err = a.finish(cmd, s, err) }()
	a.printf("Press Ctrl+C to stop.\n")

	log := monitoring.L().With("session_id", a.sessionID)
	drift := &stats.DriftEstimator{}
	p := &pipeline.Millis{
		Source:  serialport.NewLineReader(s.port),
		Output:  s.out,
		Mirrors: s.mirrors,
		Clock:   a.clock,
		Log:     log,
		Drift:   drift,
	}
	c, err := p.Run(cmd.Context())

	fields := countersFields(c)
	if r, ok := drift.Estimate(); ok {
		fields = append(fields, "clock_slope", r.Slope, "clock_drift_ppm", r.PPM)
	}
	log.Infow("session summary", fields...)

	return err
}
