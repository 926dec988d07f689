// Package reading defines the records decoded from the microcontroller's
// serial output and how they are rendered as log rows.
package reading

import (
	"strconv"
	"time"
)

// TimestampLayout renders UTC instants as ISO-8601 with microseconds and an
// explicit +00:00 offset.
const TimestampLayout = "2006-01-02T15:04:05.000000-07:00"

var (
	// MillisHeader is the column layout of the raw counter log.
	MillisHeader = []string{"Timestamp_UTC", "Millis"}
	// WeightHeader is the column layout of the sampled weight log.
	WeightHeader = []string{"Timestamp_UTC", "ReadingIndex", "CurrentWeight", "AvgWeight"}
)

// RawSample is one millisecond counter value stamped with the host time it
// was captured at.
type RawSample struct {
	CapturedAt time.Time
	Millis     int64
}

// Record renders the sample in MillisHeader order.
func (s RawSample) Record() []string {
	return []string{
		FormatTimestamp(s.CapturedAt),
		strconv.FormatInt(s.Millis, 10),
	}
}

// SensorReading is one parsed weight line.
type SensorReading struct {
	ReadingIndex  int64
	CurrentWeight float64
	AvgWeight     float64
}

// Snapshot is the reading selected for persistence at a flush boundary.
type Snapshot struct {
	CapturedAt time.Time
	Reading    SensorReading
}

// Record renders the snapshot in WeightHeader order with weights rounded to
// two decimals.
func (s Snapshot) Record() []string {
	return []string{
		FormatTimestamp(s.CapturedAt),
		strconv.FormatInt(s.Reading.ReadingIndex, 10),
		FormatWeight(s.Reading.CurrentWeight),
		FormatWeight(s.Reading.AvgWeight),
	}
}

// FormatTimestamp renders t in UTC using TimestampLayout.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

// FormatWeight renders w with two decimals.
func FormatWeight(w float64) string {
	return strconv.FormatFloat(w, 'f', 2, 64)
}
