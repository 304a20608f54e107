package speakerid

import (
	"sync/atomic"
	"time"
)

// MetricsCollector defines an interface for collecting operational metrics.
// Implement this interface to integrate with monitoring systems like Prometheus.
type MetricsCollector interface {
	// RecordEnroll is called after each clip submission.
	// complete reports whether the submission finished an enrollment,
	// err is nil if successful.
	RecordEnroll(duration time.Duration, complete bool, err error)

	// RecordIdentify is called after each identification.
	// matched reports whether the best similarity cleared the threshold.
	RecordIdentify(duration time.Duration, matched bool, err error)

	// RecordDelete is called after each user deletion.
	RecordDelete(duration time.Duration, err error)
}

// NoopMetricsCollector is a no-op implementation of MetricsCollector.
// Use this when metrics collection is not needed.
type NoopMetricsCollector struct{}

func (NoopMetricsCollector) RecordEnroll(time.Duration, bool, error)   {}
func (NoopMetricsCollector) RecordIdentify(time.Duration, bool, error) {}
func (NoopMetricsCollector) RecordDelete(time.Duration, error)         {}

// BasicMetricsCollector provides simple in-memory metrics collection.
// Useful for debugging and basic monitoring without external dependencies.
type BasicMetricsCollector struct {
	EnrollCount        atomic.Int64
	EnrollErrors       atomic.Int64
	EnrollCompleted    atomic.Int64
	EnrollTotalNanos   atomic.Int64
	IdentifyCount      atomic.Int64
	IdentifyErrors     atomic.Int64
	IdentifyMatches    atomic.Int64
	IdentifyTotalNanos atomic.Int64
	DeleteCount        atomic.Int64
	DeleteErrors       atomic.Int64
}

// RecordEnroll implements MetricsCollector.
func (b *BasicMetricsCollector) RecordEnroll(duration time.Duration, complete bool, err error) {
	b.EnrollCount.Add(1)
	b.EnrollTotalNanos.Add(duration.Nanoseconds())
	if complete {
		b.EnrollCompleted.Add(1)
	}
	if err != nil {
		b.EnrollErrors.Add(1)
	}
}

// RecordIdentify implements MetricsCollector.
func (b *BasicMetricsCollector) RecordIdentify(duration time.Duration, matched bool, err error) {
	b.IdentifyCount.Add(1)
	b.IdentifyTotalNanos.Add(duration.Nanoseconds())
	if matched {
		b.IdentifyMatches.Add(1)
	}
	if err != nil {
		b.IdentifyErrors.Add(1)
	}
}

// RecordDelete implements MetricsCollector.
func (b *BasicMetricsCollector) RecordDelete(duration time.Duration, err error) {
	b.DeleteCount.Add(1)
	if err != nil {
		b.DeleteErrors.Add(1)
	}
}

// MetricsStats is a point-in-time snapshot of the collected counters.
type MetricsStats struct {
	Enrolls           int64
	EnrollErrors      int64
	EnrollsCompleted  int64
	AvgEnrollTime     time.Duration
	Identifies        int64
	IdentifyErrors    int64
	IdentifiesMatched int64
	AvgIdentifyTime   time.Duration
	Deletes           int64
	DeleteErrors      int64
}

// Stats returns a snapshot of the current counters.
func (b *BasicMetricsCollector) Stats() MetricsStats {
	stats := MetricsStats{
		Enrolls:           b.EnrollCount.Load(),
		EnrollErrors:      b.EnrollErrors.Load(),
		EnrollsCompleted:  b.EnrollCompleted.Load(),
		Identifies:        b.IdentifyCount.Load(),
		IdentifyErrors:    b.IdentifyErrors.Load(),
		IdentifiesMatched: b.IdentifyMatches.Load(),
		Deletes:           b.DeleteCount.Load(),
		DeleteErrors:      b.DeleteErrors.Load(),
	}
	if stats.Enrolls > 0 {
		stats.AvgEnrollTime = time.Duration(b.EnrollTotalNanos.Load() / stats.Enrolls)
	}
	if stats.Identifies > 0 {
		stats.AvgIdentifyTime = time.Duration(b.IdentifyTotalNanos.Load() / stats.Identifies)
	}
	return stats
}
