// Package db mirrors persisted samples and snapshots into SQLite.
package db

import (
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"strings"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/banshee-data/teensylog/internal/monitoring"
	"github.com/banshee-data/teensylog/internal/reading"
)

//go:embed migrations/*.sql
var embeddedMigrations embed.FS

// MigrationsFS returns the migrations shipped with the binary.
func MigrationsFS() fs.FS {
	sub, err := fs.Sub(embeddedMigrations, "migrations")
	if err != nil {
		// embed guarantees the directory exists
		panic(err)
	}
	return sub
}

// Essential PRAGMAs, applied to every pooled connection through the DSN.
var pragmas = []string{
	"journal_mode(WAL)",
	"busy_timeout(5000)",
	"synchronous(NORMAL)",
	"temp_store(MEMORY)",
}

func dsn(path string) string {
	return "file:" + path + "?_pragma=" + strings.Join(pragmas, "&_pragma=")
}

// DB is the SQLite mirror of the CSV rows. It embeds the *sql.DB handle and
// logs migration progress through log.
type DB struct {
	*sql.DB
	log *zap.SugaredLogger
}

// Open opens (or creates) the SQLite database at path and migrates the schema
// to the latest version.
func Open(path string, log *zap.SugaredLogger) (*DB, error) {
	sqlDB, err := sql.Open("sqlite", dsn(path))
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database %s: %w", path, err)
	}
	if err := sqlDB.Ping(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to open sqlite database %s: %w", path, err)
	}

	db := &DB{DB: sqlDB, log: monitoring.Or(log)}
	if err := db.MigrateUp(MigrationsFS()); err != nil {
		sqlDB.Close()
		return nil, err
	}
	return db, nil
}

// RecordSample stores one millis sample.
func (db *DB) RecordSample(sessionID string, s reading.RawSample) error {
	_, err := db.Exec(
		`INSERT INTO millis_samples (session_id, captured_at, millis) VALUES (?, ?, ?)`,
		sessionID, reading.FormatTimestamp(s.CapturedAt), s.Millis,
	)
	if err != nil {
		return fmt.Errorf("failed to record sample: %w", err)
	}
	return nil
}

// RecordSnapshot stores one weight snapshot.
func (db *DB) RecordSnapshot(sessionID string, s reading.Snapshot) error {
	_, err := db.Exec(
		`INSERT INTO weight_snapshots (session_id, captured_at, reading_index, current_weight, avg_weight)
		 VALUES (?, ?, ?, ?, ?)`,
		sessionID,
		reading.FormatTimestamp(s.CapturedAt),
		s.Reading.ReadingIndex,
		s.Reading.CurrentWeight,
		s.Reading.AvgWeight,
	)
	if err != nil {
		return fmt.Errorf("failed to record snapshot: %w", err)
	}
	return nil
}

// CountSamples returns the number of samples stored for sessionID.
func (db *DB) CountSamples(sessionID string) (int, error) {
	return db.count(`SELECT COUNT(*) FROM millis_samples WHERE session_id = ?`, sessionID)
}

// CountSnapshots returns the number of snapshots stored for sessionID.
func (db *DB) CountSnapshots(sessionID string) (int, error) {
	return db.count(`SELECT COUNT(*) FROM weight_snapshots WHERE session_id = ?`, sessionID)
}

func (db *DB) count(query, sessionID string) (int, error) {
	var n int
	if err := db.QueryRow(query, sessionID).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count rows: %w", err)
	}
	return n, nil
}
