package hnswkit

import (
	"log/slog"

	"github.com/hupe1980/hnswkit/internal/fs"
	"github.com/hupe1980/hnswkit/internal/persistence"
)

// Compression selects the codec for the graph file of a saved image.
type Compression = persistence.Compression

const (
	CompressionNone = persistence.CompressionNone
	CompressionLZ4  = persistence.CompressionLZ4
	CompressionZstd = persistence.CompressionZstd
)

type options struct {
	logger          *Logger
	metrics         MetricsCollector
	seed            *int64
	batchWorkers    int
	compression     Compression
	ioLimit         int64
	verifyChecksums bool
	stagingDir      string
	fs              fs.FileSystem
}

// Option configures New, Load and Fetch.
type Option func(*options)

// WithLogger configures structured logging. Pass nil to disable logging.
//
//	logger := hnswkit.NewJSONLogger(slog.LevelInfo)
//	ix, _ := hnswkit.New(cfg, hnswkit.WithLogger(logger))
func WithLogger(logger *Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithLogLevel is shorthand for WithLogger(NewTextLogger(level)).
func WithLogLevel(level slog.Level) Option {
	return func(o *options) {
		o.logger = NewTextLogger(level)
	}
}

// WithMetrics configures a metrics collector. Pass nil to disable metrics.
//
//	metrics := &hnswkit.BasicMetricsCollector{}
//	ix, _ := hnswkit.New(cfg, hnswkit.WithMetrics(metrics))
//	// ... use ix ...
//	fmt.Println(metrics.GetStats().InsertCount)
func WithMetrics(mc MetricsCollector) Option {
	return func(o *options) {
		o.metrics = mc
	}
}

// WithRandomSeed makes level assignment deterministic.
func WithRandomSeed(seed int64) Option {
	return func(o *options) {
		o.seed = &seed
	}
}

// WithBatchWorkers bounds the goroutines used by InsertBatch.
// Zero or less uses GOMAXPROCS.
func WithBatchWorkers(n int) Option {
	return func(o *options) {
		o.batchWorkers = n
	}
}

// WithCompression sets the codec Save uses for the graph file. Default is LZ4.
func WithCompression(c Compression) Option {
	return func(o *options) {
		o.compression = c
	}
}

// WithIOLimit throttles Save to bytesPerSec. Zero disables throttling.
func WithIOLimit(bytesPerSec int64) Option {
	return func(o *options) {
		o.ioLimit = bytesPerSec
	}
}

// WithVerifyChecksums controls whether Load checks the CRC32 of the vector
// data. It is on by default; disabling it keeps loads from touching every page.
func WithVerifyChecksums(verify bool) Option {
	return func(o *options) {
		o.verifyChecksums = verify
	}
}

// WithStagingDir sets where Publish writes the image before uploading it.
// Default is os.TempDir().
func WithStagingDir(dir string) Option {
	return func(o *options) {
		o.stagingDir = dir
	}
}

func withFileSystem(fsys fs.FileSystem) Option {
	return func(o *options) {
		o.fs = fsys
	}
}

func applyOptions(optFns []Option) options {
	o := options{
		metrics:         NoopMetricsCollector{},
		logger:          NoopLogger(),
		compression:     CompressionLZ4,
		verifyChecksums: true,
		fs:              fs.Default,
	}
	for _, fn := range optFns {
		if fn != nil {
			fn(&o)
		}
	}
	if o.logger == nil {
		o.logger = NoopLogger()
	}
	if o.metrics == nil {
		o.metrics = NoopMetricsCollector{}
	}
	return o
}
