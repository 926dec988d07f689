// Command teensylog records data streamed by a Teensy over USB serial into
// CSV files.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/banshee-data/teensylog/internal/fsutil"
	"github.com/banshee-data/teensylog/internal/monitoring"
	"github.com/banshee-data/teensylog/internal/mqttpub"
	"github.com/banshee-data/teensylog/internal/serialport"
	"github.com/banshee-data/teensylog/internal/timeutil"
)

// app carries the process-wide dependencies so tests can swap in fakes.
type app struct {
	opener    serialport.Opener
	fs        fsutil.FileSystem
	clock     timeutil.Clock
	out       io.Writer
	sessionID string
	dialMQTT  func(broker, clientID, topic string, timeout time.Duration) (*mqttpub.Publisher, error)

	flags globalFlags
}

func newApp() *app {
	return &app{
		opener:    serialport.DefaultOpener,
		fs:        fsutil.OSFileSystem{},
		clock:     timeutil.RealClock{},
		out:       os.Stdout,
		sessionID: uuid.NewString(),
		dialMQTT:  mqttpub.Dial,
	}
}

func (a *app) printf(format string, v ...interface{}) {
	fmt.Fprintf(a.out, format, v...)
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   "teensylog",
		Short: "Log Teensy serial output to CSV",
		Long: `teensylog reads newline-delimited values from a Teensy on a USB serial
port and appends them to CSV files with host UTC timestamps.

  millis  records every millis() value the board prints
  weight  records one load-cell reading every flush interval`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			a.out = cmd.OutOrStdout()
			return monitoring.Init(a.flags.debug)
		},
	}

	a.flags.register(root)

	root.AddCommand(newMillisCmd(a))
	root.AddCommand(newWeightCmd(a))
	root.AddCommand(newVersionCmd())
	return root
}

// exitCode reports err on w and maps it to a process exit status.
func exitCode(err error, w io.Writer) int {
	if err == nil || errors.Is(err, context.Canceled) {
		return 0
	}

	var openErr *serialport.OpenError
	if errors.As(err, &openErr) {
		fmt.Fprintf(w, "ERROR: %v\n", openErr)
		fmt.Fprintln(w, openErr.Hint())
		return 1
	}

	fmt.Fprintf(w, "An unexpected error occurred: %v\n", err)
	return 1
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd(newApp()).ExecuteContext(ctx)
	stop()

	monitoring.Sync()
	os.Exit(exitCode(err, os.Stderr))
}
