package stats

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/banshee-data/teensylog/internal/reading"
)

func snap(w float64) reading.Snapshot {
	return reading.Snapshot{Reading: reading.SensorReading{CurrentWeight: w}}
}

func TestWeightSummary(t *testing.T) {
	var s WeightSummary
	assert.Equal(t, WeightReport{}, s.Report())

	s.Add(snap(5))
	assert.Equal(t, WeightReport{Count: 1, Mean: 5, Min: 5, Max: 5}, s.Report())

	for _, w := range []float64{2, 4, 4, 4, 5, 7, 9} {
		s.Add(snap(w))
	}
	r := s.Report()
	assert.Equal(t, 8, r.Count)
	assert.InDelta(t, 5.0, r.Mean, 1e-9)
	// Sample (n-1) standard deviation of {5,2,4,4,4,5,7,9}.
	assert.InDelta(t, 2.138, r.StdDev, 1e-3)
	assert.Equal(t, 2.0, r.Min)
	assert.Equal(t, 9.0, r.Max)
}

func TestDriftEstimator_NeedsTwoSamples(t *testing.T) {
	var d DriftEstimator
	_, ok := d.Estimate()
	assert.False(t, ok)

	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	d.Add(start, 1000)
	r, ok := d.Estimate()
	assert.False(t, ok)
	assert.Equal(t, 1, r.Samples)

	// Same host timestamp: no spread to fit.
	d.Add(start, 1001)
	_, ok = d.Estimate()
	assert.False(t, ok)
}

func TestDriftEstimator_FastDeviceClock(t *testing.T) {
	var d DriftEstimator
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	// Device gains 100 µs every second: 100 ppm fast.
	for i := 0; i < 10; i++ {
		host := start.Add(time.Duration(i) * time.Second)
		d.Add(host, 5000+int64(i)*1000+int64(i)/10)
	}
	for i := 10; i <= 100; i += 10 {
		host := start.Add(time.Duration(i) * time.Second)
		d.Add(host, 5000+int64(i)*1000+int64(i)/10)
	}

	r, ok := d.Estimate()
	assert.True(t, ok)
	assert.InDelta(t, 1.0001, r.Slope, 2e-5)
	assert.InDelta(t, 100, r.PPM, 20)
	assert.InDelta(t, 5000, r.Intercept, 1)
	assert.Greater(t, r.RSquared, 0.999)
}

func TestDriftEstimator_ExactClock(t *testing.T) {
	var d DriftEstimator
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		d.Add(start.Add(time.Duration(i)*250*time.Millisecond), int64(i)*250)
	}

	r, ok := d.Estimate()
	assert.True(t, ok)
	assert.InDelta(t, 1.0, r.Slope, 1e-9)
	assert.InDelta(t, 0, r.PPM, 1e-3)
	assert.Equal(t, 5, r.Samples)
}

func TestWeightSummary_ConstantSpace(t *testing.T) {
	var s WeightSummary
	for i := 0; i < 100000; i++ {
		s.Add(snap(float64(i%2) * 2))
	}
	allocs := testing.AllocsPerRun(1000, func() { s.Add(snap(1)) })
	assert.Zero(t, allocs)

	r := s.Report()
	// AllocsPerRun adds one warm-up call.
	assert.Equal(t, 100000+1001, r.Count)
	assert.InDelta(t, 1.0, r.Mean, 1e-9)
	assert.Equal(t, 0.0, r.Min)
	assert.Equal(t, 2.0, r.Max)
}

func TestDriftEstimator_DaySessionStaysBounded(t *testing.T) {
	var d DriftEstimator
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	// One sample every 100 ms for a day; the device gains 1 ms every 10 s.
	const n = 864000
	for i := 0; i < n; i++ {
		host := start.Add(time.Duration(i) * 100 * time.Millisecond)
		d.Add(host, 5000+int64(i)*100+int64(i)/100)
	}

	assert.LessOrEqual(t, len(d.hostMs), maxDriftPoints)
	assert.LessOrEqual(t, cap(d.hostMs), maxDriftPoints)
	assert.LessOrEqual(t, cap(d.millis), maxDriftPoints)
	// Kept points still reach the end of the session.
	assert.Greater(t, d.hostMs[len(d.hostMs)-1], 0.99*float64(n-1)*100)

	r, ok := d.Estimate()
	assert.True(t, ok)
	assert.Equal(t, n, r.Samples)
	assert.InDelta(t, 1.0001, r.Slope, 1e-6)
	assert.InDelta(t, 100, r.PPM, 1)
	assert.Greater(t, r.RSquared, 0.999)

	host := start.Add(n * 100 * time.Millisecond)
	allocs := testing.AllocsPerRun(1000, func() {
		host = host.Add(100 * time.Millisecond)
		d.Add(host, 5000+host.Sub(start).Milliseconds())
	})
	assert.Zero(t, allocs)
}
