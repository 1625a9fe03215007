package stampcut

import (
	"log/slog"

	"github.com/hupe1980/stampcut/blobstore"
	"github.com/hupe1980/stampcut/catalog"
	"github.com/hupe1980/stampcut/resultlog"
)

type options struct {
	logger           *Logger
	metricsCollector MetricsCollector
	surveyStore      blobstore.BlobStore
	outputStore      blobstore.BlobStore
	catalog          *catalog.Table
	sink             resultlog.Sink
	runID            string
}

// Option configures a Pipeline.
type Option func(*options)

// WithSurveyStore reads tiles from store instead of opening the configured
// survey location.
func WithSurveyStore(store blobstore.BlobStore) Option {
	return func(o *options) {
		o.surveyStore = store
	}
}

// WithOutputStore writes stamps and logs to store instead of opening the
// configured output location.
func WithOutputStore(store blobstore.BlobStore) Option {
	return func(o *options) {
		o.outputStore = store
	}
}

// WithCatalog uses an already parsed catalog instead of reading the
// configured file.
func WithCatalog(t *catalog.Table) Option {
	return func(o *options) {
		o.catalog = t
	}
}

// WithSink forwards every log entry to sink as it is recorded.
//
// Example with DynamoDB:
//
//	client := dynamodb.NewFromConfig(awsCfg)
//	p, _ := stampcut.New(cfg, stampcut.WithSink(resultlog.NewDynamoSink(client, "stampcut-results")))
func WithSink(sink resultlog.Sink) Option {
	return func(o *options) {
		o.sink = sink
	}
}

// WithRunID fixes the run ID. By default a random UUID is used.
func WithRunID(id string) Option {
	return func(o *options) {
		o.runID = id
	}
}

// WithMetricsCollector configures a metrics collector for pipeline
// operations.
//
// Example with basic in-memory metrics:
//
//	metrics := &stampcut.BasicMetricsCollector{}
//	p, _ := stampcut.New(cfg, stampcut.WithMetricsCollector(metrics))
//	// ... run ...
//	stats := metrics.GetStats()
//	fmt.Printf("Stamps: %d, Avg latency: %dns\n", stats.StampCount, stats.StampAvgNanos)
func WithMetricsCollector(mc MetricsCollector) Option {
	return func(o *options) {
		o.metricsCollector = mc
	}
}

// WithLogger configures structured logging for operations.
// Pass nil to disable logging.
//
// Example with JSON logging:
//
//	logger := stampcut.NewJSONLogger(slog.LevelInfo)
//	p, _ := stampcut.New(cfg, stampcut.WithLogger(logger))
func WithLogger(logger *Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithLogLevel creates a text logger with the specified level and sets it.
// Convenience wrapper for WithLogger(NewTextLogger(level)).
func WithLogLevel(level slog.Level) Option {
	return func(o *options) {
		o.logger = NewTextLogger(level)
	}
}

func applyOptions(optFns []Option) options {
	o := options{
		metricsCollector: NoopMetricsCollector{},
		logger:           NoopLogger(),
	}
	for _, fn := range optFns {
		if fn != nil {
			fn(&o)
		}
	}
	if o.logger == nil {
		o.logger = NoopLogger()
	}
	if o.metricsCollector == nil {
		o.metricsCollector = NoopMetricsCollector{}
	}
	return o
}
