// Package stats summarises a logging session for the shutdown report.
package stats

import (
	"math"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/banshee-data/teensylog/internal/reading"
)

// maxDriftPoints bounds the points kept for the drift fit. It must be even.
const maxDriftPoints = 2048

// WeightReport summarises the persisted current weights of a session.
type WeightReport struct {
	Count  int
	Mean   float64
	StdDev float64
	Min    float64
	Max    float64
}

// WeightSummary accumulates persisted snapshots in constant space using
// Welford's running mean and variance.
type WeightSummary struct {
	n    int
	mean float64
	m2   float64
	min  float64
	max  float64
}

// Add records a persisted snapshot.
func (w *WeightSummary) Add(s reading.Snapshot) {
	v := s.Reading.CurrentWeight
	w.n++
	if w.n == 1 {
		w.min, w.max = v, v
	} else {
		w.min = min(w.min, v)
		w.max = max(w.max, v)
	}
	delta := v - w.mean
	w.mean += delta / float64(w.n)
	w.m2 += delta * (v - w.mean)
}

// Report returns the summary so far. StdDev is the sample standard
// deviation and is zero with fewer than two snapshots.
func (w *WeightSummary) Report() WeightReport {
	r := WeightReport{Count: w.n}
	if w.n == 0 {
		return r
	}
	r.Mean, r.Min, r.Max = w.mean, w.min, w.max
	if w.n > 1 {
		r.StdDev = math.Sqrt(w.m2 / float64(w.n-1))
	}
	return r
}

// DriftReport describes how the device clock runs against the host clock.
// Slope is device milliseconds per host millisecond; PPM is (Slope-1)*1e6.
type DriftReport struct {
	Samples   int
	Slope     float64
	Intercept float64
	PPM       float64
	RSquared  float64
}

// DriftEstimator fits device millis against host elapsed time.
//
// At most maxDriftPoints points are kept. When the buffer fills, every
// other point is dropped and the sampling stride doubles, so the kept
// points stay evenly spread over the whole session.
type DriftEstimator struct {
	start  time.Time
	n      int
	stride int
	hostMs []float64
	millis []float64
}

// Add records one accepted sample.
func (d *DriftEstimator) Add(host time.Time, millis int64) {
	if d.n == 0 {
		d.start = host
		d.stride = 1
		d.hostMs = make([]float64, 0, maxDriftPoints)
		d.millis = make([]float64, 0, maxDriftPoints)
	}
	idx := d.n
	d.n++
	if idx%d.stride != 0 {
		return
	}
	// A full buffer holds indices 0..(max-1)*stride; idx is max*stride,
	// which the doubled stride still selects.
	if len(d.hostMs) == maxDriftPoints {
		d.thin()
	}
	d.hostMs = append(d.hostMs, float64(host.Sub(d.start))/float64(time.Millisecond))
	d.millis = append(d.millis, float64(millis))
}

func (d *DriftEstimator) thin() {
	half := len(d.hostMs) / 2
	for i := 0; i < half; i++ {
		d.hostMs[i] = d.hostMs[2*i]
		d.millis[i] = d.millis[2*i]
	}
	d.hostMs = d.hostMs[:half]
	d.millis = d.millis[:half]
	d.stride *= 2
}

// Estimate fits the samples so far. ok is false with fewer than two samples
// or when every sample shares a host timestamp.
func (d *DriftEstimator) Estimate() (r DriftReport, ok bool) {
	r.Samples = d.n
	if len(d.hostMs) < 2 || stat.Variance(d.hostMs, nil) == 0 {
		return r, false
	}

	r.Intercept, r.Slope = stat.LinearRegression(d.hostMs, d.millis, nil, false)
	r.PPM = (r.Slope - 1) * 1e6
	r.RSquared = stat.RSquared(d.hostMs, d.millis, nil, r.Intercept, r.Slope)
	return r, true
}
