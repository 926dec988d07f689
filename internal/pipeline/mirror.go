package pipeline

import (
	"go.uber.org/zap"

	"github.com/banshee-data/teensylog/internal/db"
	"github.com/banshee-data/teensylog/internal/mqttpub"
	"github.com/banshee-data/teensylog/internal/reading"
)

// Mirror receives a copy of every persisted row. Mirror failures are logged
// and never stop a run.
type Mirror interface {
	Name() string
	MirrorSample(reading.RawSample) error
	MirrorSnapshot(reading.Snapshot) error
}

// SQLiteMirror stores rows in SQLite under a session id.
type SQLiteMirror struct {
	DB        *db.DB
	SessionID string
}

func (m SQLiteMirror) Name() string { return "sqlite" }

func (m SQLiteMirror) MirrorSample(s reading.RawSample) error {
	return m.DB.RecordSample(m.SessionID, s)
}

func (m SQLiteMirror) MirrorSnapshot(s reading.Snapshot) error {
	return m.DB.RecordSnapshot(m.SessionID, s)
}

// MQTTMirror publishes rows to a broker.
type MQTTMirror struct {
	Publisher *mqttpub.Publisher
}

func (m MQTTMirror) Name() string { return "mqtt" }

func (m MQTTMirror) MirrorSample(s reading.RawSample) error {
	return m.Publisher.PublishSample(s)
}

func (m MQTTMirror) MirrorSnapshot(s reading.Snapshot) error {
	return m.Publisher.PublishSnapshot(s)
}

func mirrorAll(mirrors []Mirror, c *Counters, log *zap.SugaredLogger, send func(Mirror) error) {
	for _, m := range mirrors {
		if err := send(m); err != nil {
			c.MirrorFailures++
			log.Warnw("mirror write failed", "mirror", m.Name(), "error", err)
		}
	}
}
