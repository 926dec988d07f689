package main

import (
	"errors"

	"github.com/banshee-data/teensylog/internal/config"
	"github.com/banshee-data/teensylog/internal/csvlog"
	"github.com/banshee-data/teensylog/internal/db"
	"github.com/banshee-data/teensylog/internal/monitoring"
	"github.com/banshee-data/teensylog/internal/mqttpub"
	"github.com/banshee-data/teensylog/internal/pipeline"
	"github.com/banshee-data/teensylog/internal/serialport"
)

// session owns everything a logging run opens.
type session struct {
	port    serialport.Port
	out     *csvlog.Writer
	mirrors []pipeline.Mirror
	closers []func() error
}

type outputSpec struct {
	name     string // pipeline name, used for the default MQTT topic
	header   []string
	mode     csvlog.Mode
	fallback string
}

// openSession opens the port, the CSV file and any configured mirrors. On
// error everything already opened is closed again.
func (a *app) openSession(cfg *config.LoggerConfig, o outputSpec) (s *session, err error) {
	log := monitoring.L().With("session_id", a.sessionID)
	s = &session{}
	defer func() {
		if err != nil {
			s.close(a)
			s = nil
		}
	}()

	ep := cfg.Endpoint()
	ep.Log = log
	opts, err := ep.Options.Normalise()
	if err != nil {
		return s, err
	}
	a.printf("Opening serial port: %s at %d baud...\n", ep.Path, opts.BaudRate)
	if s.port, err = ep.Open(a.opener, a.clock); err != nil {
		return s, err
	}
	a.printf("Serial port opened successfully.\n")

	path := cfg.GetOutputPath(o.fallback)
	s.out, err = csvlog.Open(a.fs, path, o.header, o.mode, csvlog.Options{CheckHeader: cfg.GetCheckHeader(), Log: log})
	if err != nil {
		return s, err
	}
	a.printf("Saving data to '%s'...\n", path)

	if p := cfg.GetSQLitePath(); p != "" {
		var database *db.DB
		if database, err = db.Open(p, log); err != nil {
			return s, err
		}
		s.closers = append(s.closers, database.Close)
		s.mirrors = append(s.mirrors, pipeline.SQLiteMirror{DB: database, SessionID: a.sessionID})
		log.Infow("sqlite mirror enabled", "path", p)
	}

	if broker := cfg.GetMQTTBroker(); broker != "" {
		topic := cfg.GetMQTTTopic(o.name)
		var pub *mqttpub.Publisher
		if pub, err = a.dialMQTT(broker, cfg.GetMQTTClientID(a.sessionID), topic, mqttpub.DefaultTimeout); err != nil {
			return s, err
		}
		s.closers = append(s.closers, pub.Close)
		s.mirrors = append(s.mirrors, pipeline.MQTTMirror{Publisher: pub})
		log.Infow("mqtt mirror enabled", "broker", broker, "topic", topic)
	}

	return s, nil
}

// close releases the session in reverse order of opening and reports the
// same messages whatever ended the run.
func (s *session) close(a *app) error {
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		errs = append(errs, s.closers[i]())
	}
	if s.port != nil {
		errs = append(errs, s.port.Close())
		a.printf("Serial port closed.\n")
	}
	if s.out != nil {
		errs = append(errs, s.out.Close())
		a.printf("Data saved to %s.\n", s.out.Path())
	}
	return errors.Join(errs...)
}
