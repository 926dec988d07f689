// Package monitoring holds the process-wide diagnostic logger.
package monitoring

import (
	"fmt"

	"go.uber.org/zap"
)

var logger = mustDefault()

func mustDefault() *zap.SugaredLogger {
	l, err := zap.NewProduction()
	if err != nil {
		return zap.NewNop().Sugar()
	}
	return l.Sugar()
}

// Init replaces the package logger with a development (debug) or production
// zap logger.
func Init(debug bool) error {
	var (
		l   *zap.Logger
		err error
	)
	if debug {
		l, err = zap.NewDevelopment()
	} else {
		l, err = zap.NewProduction()
	}
	if err != nil {
		return fmt.Errorf("can't initialize zap logger: %w", err)
	}
	logger = l.Sugar()
	return nil
}

// L returns the package logger.
func L() *zap.SugaredLogger {
	return logger
}

// SetLogger replaces the package logger. Passing nil will set a no-op logger.
func SetLogger(l *zap.SugaredLogger) {
	if l == nil {
		logger = zap.NewNop().Sugar()
		return
	}
	logger = l
}

// Or returns l when it is non-nil and the package logger otherwise.
func Or(l *zap.SugaredLogger) *zap.SugaredLogger {
	if l != nil {
		return l
	}
	return logger
}

// Sync flushes any buffered log entries.
func Sync() {
	_ = logger.Sync()
}
