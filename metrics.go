package stampcut

import (
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/hupe1980/stampcut/resultlog"
)

// MetricsCollector defines an interface for collecting operational metrics.
// Implement this interface to integrate with monitoring systems.
// PrometheusCollector is the bundled Prometheus implementation.
type MetricsCollector interface {
	// RecordFootprint is called after each survey image is indexed.
	// err is nil if the footprint is valid.
	RecordFootprint(duration time.Duration, err error)

	// RecordStamp is called after each target is stitched.
	RecordStamp(status resultlog.Status, images int, duration time.Duration)

	// RecordWindowRead is called after each pixel window read.
	RecordWindowRead(bytes int, duration time.Duration, err error)

	// RecordPhase is called when a pipeline phase ends.
	RecordPhase(phase string, items int, duration time.Duration)
}

// NoopMetricsCollector is a no-op implementation of MetricsCollector.
// Use this when metrics collection is not needed.
type NoopMetricsCollector struct{}

func (NoopMetricsCollector) RecordFootprint(time.Duration, error)             {}
func (NoopMetricsCollector) RecordStamp(resultlog.Status, int, time.Duration) {}
func (NoopMetricsCollector) RecordWindowRead(int, time.Duration, error)       {}
func (NoopMetricsCollector) RecordPhase(string, int, time.Duration)           {}

// BasicMetricsCollector provides simple in-memory metrics collection.
// Useful for debugging and basic monitoring without external dependencies.
type BasicMetricsCollector struct {
	FootprintCount   atomic.Int64
	FootprintErrors  atomic.Int64
	StampCount       atomic.Int64
	StampTotalNanos  atomic.Int64
	StampImages      atomic.Int64
	StatusCounts     [4]atomic.Int64
	WindowReads      atomic.Int64
	WindowReadErrors atomic.Int64
	WindowBytes      atomic.Int64
	PhaseCount       atomic.Int64
}

// RecordFootprint implements MetricsCollector.
func (b *BasicMetricsCollector) RecordFootprint(_ time.Duration, err error) {
	b.FootprintCount.Add(1)
	if err != nil {
		b.FootprintErrors.Add(1)
	}
}

// RecordStamp implements MetricsCollector.
func (b *BasicMetricsCollector) RecordStamp(status resultlog.Status, images int, duration time.Duration) {
	b.StampCount.Add(1)
	b.StampTotalNanos.Add(duration.Nanoseconds())
	b.StampImages.Add(int64(images))
	if int(status) >= 0 && int(status) < len(b.StatusCounts) {
		b.StatusCounts[status].Add(1)
	}
}

// RecordWindowRead implements MetricsCollector.
func (b *BasicMetricsCollector) RecordWindowRead(bytes int, _ time.Duration, err error) {
	b.WindowReads.Add(1)
	b.WindowBytes.Add(int64(bytes))
	if err != nil {
		b.WindowReadErrors.Add(1)
	}
}

// RecordPhase implements MetricsCollector.
func (b *BasicMetricsCollector) RecordPhase(string, int, time.Duration) {
	b.PhaseCount.Add(1)
}

// GetStats returns a snapshot of current metrics.
func (b *BasicMetricsCollector) GetStats() BasicMetricsStats {
	s := BasicMetricsStats{
		FootprintCount:   b.FootprintCount.Load(),
		FootprintErrors:  b.FootprintErrors.Load(),
		StampCount:       b.StampCount.Load(),
		StampAvgNanos:    b.getAvgStampNanos(),
		StampImages:      b.StampImages.Load(),
		WindowReads:      b.WindowReads.Load(),
		WindowReadErrors: b.WindowReadErrors.Load(),
		WindowBytes:      b.WindowBytes.Load(),
		PhaseCount:       b.PhaseCount.Load(),
	}
	for i := range b.StatusCounts {
		s.StatusCounts[i] = b.StatusCounts[i].Load()
	}
	return s
}

func (b *BasicMetricsCollector) getAvgStampNanos() int64 {
	count := b.StampCount.Load()
	if count == 0 {
		return 0
	}
	return b.StampTotalNanos.Load() / count
}

// BasicMetricsStats is a snapshot of BasicMetricsCollector state.
type BasicMetricsStats struct {
	FootprintCount   int64
	FootprintErrors  int64
	StampCount       int64
	StampAvgNanos    int64
	StampImages      int64
	StatusCounts     [4]int64
	WindowReads      int64
	WindowReadErrors int64
	WindowBytes      int64
	PhaseCount       int64
}

// PrometheusCollector exports metrics through its own Prometheus registry.
type PrometheusCollector struct {
	registry    *prometheus.Registry
	footprints  *prometheus.CounterVec
	stamps      *prometheus.CounterVec
	stampTime   prometheus.Histogram
	windowBytes prometheus.Counter
	windowReads *prometheus.CounterVec
	phaseTime   *prometheus.GaugeVec
}

// NewPrometheusCollector creates a collector with a fresh registry.
func NewPrometheusCollector() *PrometheusCollector {
	p := &PrometheusCollector{
		registry: prometheus.NewRegistry(),
		footprints: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "stampcut",
			Name:      "footprints_total",
			Help:      "Survey images indexed, by result.",
		}, []string{"result"}),
		stamps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "stampcut",
			Name:      "stamps_total",
			Help:      "Targets processed, by status.",
		}, []string{"status"}),
		stampTime: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "stampcut",
			Name:      "stamp_duration_seconds",
			Help:      "Time to build one stamp.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 8),
		}),
		windowBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "stampcut",
			Name:      "window_read_bytes_total",
			Help:      "Decoded pixel bytes read from survey images.",
		}),
		windowReads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "stampcut",
			Name:      "window_reads_total",
			Help:      "Pixel window reads, by result.",
		}, []string{"result"}),
		phaseTime: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "stampcut",
			Name:      "phase_duration_seconds",
			Help:      "Duration of the last run of each phase.",
		}, []string{"phase"}),
	}
	p.registry.MustRegister(p.footprints, p.stamps, p.stampTime, p.windowBytes, p.windowReads, p.phaseTime)
	return p
}

// Registry returns the collector's registry.
func (p *PrometheusCollector) Registry() *prometheus.Registry { return p.registry }

// WriteTextfile writes the current values in the node-exporter textfile
// format.
func (p *PrometheusCollector) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, p.registry)
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// RecordFootprint implements MetricsCollector.
func (p *PrometheusCollector) RecordFootprint(_ time.Duration, err error) {
	p.footprints.WithLabelValues(result(err)).Inc()
}

// RecordStamp implements MetricsCollector.
func (p *PrometheusCollector) RecordStamp(status resultlog.Status, _ int, duration time.Duration) {
	p.stamps.WithLabelValues(status.String()).Inc()
	p.stampTime.Observe(duration.Seconds())
}

// RecordWindowRead implements MetricsCollector.
func (p *PrometheusCollector) RecordWindowRead(bytes int, _ time.Duration, err error) {
	p.windowReads.WithLabelValues(result(err)).Inc()
	p.windowBytes.Add(float64(bytes))
}

// RecordPhase implements MetricsCollector.
func (p *PrometheusCollector) RecordPhase(phase string, _ int, duration time.Duration) {
	p.phaseTime.WithLabelValues(phase).Set(duration.Seconds())
}
