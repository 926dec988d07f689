package main

import (
	"github.com/spf13/cobra"

	"github.com/banshee-data/teensylog/internal/pipeline"
)

func countersFields(c pipeline.Counters) []interface{} {
	return []interface{}{
		"lines", c.Lines,
		"accepted", c.Accepted,
		"rejected", c.Rejected,
		"timeouts", c.Timeouts,
		"persisted", c.Persisted,
		"skipped_flushes", c.SkippedFlushes,
		"mirror_failures", c.MirrorFailures,
	}
}

// finish closes the session after a run. A run error wins over a close
// error.
func (a *app) finish(cmd *cobra.Command, s *session, runErr error) error {
	if ctx := cmd.Context(); ctx != nil && ctx.Err() != nil {
		a.printf("\nStopping data collection.\n")
	}
	closeErr := s.close(a)
	if runErr != nil {
		return runErr
	}
	return closeErr
}
