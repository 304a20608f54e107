package speakerid

import (
	"time"

	"github.com/hupe1980/speakerid/classify"
	"github.com/hupe1980/speakerid/codec"
	"github.com/hupe1980/speakerid/store"
)

// DefaultRequiredClips is the number of enrollment clips required per
// user when not configured otherwise.
const DefaultRequiredClips = 4

type options struct {
	requiredClips int
	threshold     float32
	dimension     int
	logger        *Logger
	metrics       MetricsCollector
	codec         codec.Codec
	compression   store.Compression
	parallelScan  bool
	now           func() time.Time
}

// Option configures engine construction.
type Option func(*options)

// WithRequiredClips sets how many distinct clip slots an enrollment
// must fill before the voiceprint commits. Default: 4.
func WithRequiredClips(n int) Option {
	return func(o *options) {
		o.requiredClips = n
	}
}

// WithThreshold sets the minimum cosine similarity for a match, in
// [-1, 1]. Default: 0.75.
func WithThreshold(threshold float32) Option {
	return func(o *options) {
		o.threshold = threshold
	}
}

// WithDimension overrides the embedding dimension. By default the
// engine takes the dimension from the extractor; this is mainly useful
// in tests with low-dimensional hand-built vectors.
func WithDimension(dim int) Option {
	return func(o *options) {
		o.dimension = dim
	}
}

// WithLogger configures the logger. If nil is passed, logging is
// disabled.
func WithLogger(logger *Logger) Option {
	return func(o *options) {
		if logger == nil {
			logger = NoopLogger()
		}
		o.logger = logger
	}
}

// WithMetrics configures a metrics collector for monitoring operations.
// Pass nil to disable metrics collection.
func WithMetrics(collector MetricsCollector) Option {
	return func(o *options) {
		if collector == nil {
			collector = NoopMetricsCollector{}
		}
		o.metrics = collector
	}
}

// WithCodec configures the codec used for voiceprint snapshots.
//
// If nil is passed, codec.Default is used.
func WithCodec(c codec.Codec) Option {
	return func(o *options) {
		if c == nil {
			c = codec.Default
		}
		o.codec = c
	}
}

// WithCompression configures snapshot payload compression.
// Default: none.
func WithCompression(c store.Compression) Option {
	return func(o *options) {
		o.compression = c
	}
}

// WithParallelScan enables fan-out similarity scoring for larger
// enrolled populations. Results are identical to the serial scan.
func WithParallelScan(enabled bool) Option {
	return func(o *options) {
		o.parallelScan = enabled
	}
}

// WithClock overrides the enrollment timestamp source. Used in tests.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

func defaultOptions() options {
	return options{
		requiredClips: DefaultRequiredClips,
		threshold:     classify.DefaultThreshold,
		logger:        NoopLogger(),
		metrics:       NoopMetricsCollector{},
		codec:         codec.Default,
		compression:   store.CompressionNone,
		now:           time.Now,
	}
}
