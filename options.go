package vectable

import (
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"

	"github.com/hupe1980/vectable/distance"
	"github.com/hupe1980/vectable/fragment"
)

const (
	// DefaultMaxCommitRetries bounds manifest publish retries after a version conflict.
	DefaultMaxCommitRetries = 10
	// DefaultRetryBaseDelay is the first retry backoff.
	DefaultRetryBaseDelay = 10 * time.Millisecond
	// DefaultRetryMaxDelay caps the retry backoff.
	DefaultRetryMaxDelay = time.Second
)

type options struct {
	metricsCollector  MetricsCollector
	logger            *Logger
	maxCommitRetries  int
	retryBaseDelay    time.Duration
	retryMaxDelay     time.Duration
	compression       fragment.Compression
	cacheSize         int
	cacheBytes        int64
	readBytesPerSec   float64
	readBurstBytes    int
	searchConcurrency int

	// Remote store settings used by Connect.
	awsConfig     *aws.Config
	region        string
	endpoint      string
	commitTable   string
	minioSecure   bool
	skipReachable bool
}

// Option configures a Connection.
type Option func(*options)

// WithMetricsCollector configures a metrics collector for monitoring operations.
// Pass nil to disable metrics collection.
//
// Example with BasicMetricsCollector:
//
//	metrics := &vectable.BasicMetricsCollector{}
//	conn, _ := vectable.Connect(ctx, "memory://demo", vectable.WithMetricsCollector(metrics))
//	// ... use conn ...
//	stats := metrics.GetStats()
//	fmt.Printf("Adds: %d, conflicts: %d\n", stats.AddCount, stats.CommitConflicts)
func WithMetricsCollector(mc MetricsCollector) Option {
	return func(o *options) {
		if mc == nil {
			mc = NoopMetricsCollector{}
		}
		o.metricsCollector = mc
	}
}

// WithLogger configures structured logging for operations.
// Pass nil to disable logging.
func WithLogger(logger *Logger) Option {
	return func(o *options) {
		if logger == nil {
			logger = NoopLogger()
		}
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

// WithMaxCommitRetries sets how often Add and Delete retry a publish that lost
// the version race before failing with ErrWriteContention. 0 disables retries.
func WithMaxCommitRetries(n int) Option {
	return func(o *options) {
		if n >= 0 {
			o.maxCommitRetries = n
		}
	}
}

// WithRetryBackoff sets the jittered exponential backoff between publish retries.
func WithRetryBackoff(base, maxDelay time.Duration) Option {
	return func(o *options) {
		o.retryBaseDelay = base
		o.retryMaxDelay = maxDelay
	}
}

// WithCompression sets the fragment column compression. Default: zstd.
func WithCompression(c fragment.Compression) Option {
	return func(o *options) {
		o.compression = c
	}
}

// WithFragmentCache keeps up to n decoded fragments in memory per Connection.
// Fragments are immutable, so cached entries never go stale. 0 disables the cache.
func WithFragmentCache(n int) Option {
	return func(o *options) {
		o.cacheSize = n
	}
}

// WithFragmentCacheBytes bounds the fragment cache by decoded size. It can be
// combined with WithFragmentCache; 0 means no byte bound.
func WithFragmentCacheBytes(n int64) Option {
	return func(o *options) {
		o.cacheBytes = n
	}
}

// WithReadRateLimit throttles fragment reads to bytesPerSecond.
func WithReadRateLimit(bytesPerSecond float64, burst int) Option {
	return func(o *options) {
		o.readBytesPerSec = bytesPerSecond
		o.readBurstBytes = burst
	}
}

// WithSearchConcurrency bounds the number of fragments scanned in parallel.
func WithSearchConcurrency(n int) Option {
	return func(o *options) {
		o.searchConcurrency = n
	}
}

// WithAWSConfig uses cfg instead of the default AWS configuration chain for s3:// URIs.
func WithAWSConfig(cfg aws.Config) Option {
	return func(o *options) {
		o.awsConfig = &cfg
	}
}

// WithRegion overrides the AWS region for s3:// URIs.
func WithRegion(region string) Option {
	return func(o *options) {
		o.region = region
	}
}

// WithS3Endpoint points s3:// URIs at an S3-compatible endpoint.
func WithS3Endpoint(endpoint string) Option {
	return func(o *options) {
		o.endpoint = endpoint
	}
}

// WithDynamoDBCommitTable publishes manifests through a DynamoDB conditional
// write instead of S3 conditional PUTs. Use it for S3-compatible stores that
// ignore If-None-Match.
func WithDynamoDBCommitTable(table string) Option {
	return func(o *options) {
		o.commitTable = table
	}
}

// WithMinIOSecure enables TLS for minio:// URIs.
func WithMinIOSecure(secure bool) Option {
	return func(o *options) {
		o.minioSecure = secure
	}
}

// WithoutReachabilityCheck skips the storage ping in Connect.
func WithoutReachabilityCheck() Option {
	return func(o *options) {
		o.skipReachable = true
	}
}

func applyOptions(optFns []Option) options {
	o := options{
		metricsCollector: NoopMetricsCollector{},
		logger:           NoopLogger(),
		maxCommitRetries: DefaultMaxCommitRetries,
		retryBaseDelay:   DefaultRetryBaseDelay,
		retryMaxDelay:    DefaultRetryMaxDelay,
		compression:      fragment.CompressionZSTD,
	}
	for _, fn := range optFns {
		if fn != nil {
			fn(&o)
		}
	}
	return o
}

type createOptions struct {
	metric distance.Metric
}

// CreateOption configures Connection.Create.
type CreateOption func(*createOptions)

// WithDefaultMetric sets the distance metric searches use unless overridden. Default: L2.
func WithDefaultMetric(m distance.Metric) CreateOption {
	return func(o *createOptions) {
		o.metric = m
	}
}

type searchOptions struct {
	metric      *distance.Metric
	columns     []string
	maxDistance *float32
}

// SearchOption configures Table.Search.
type SearchOption func(*searchOptions)

// WithMetric overrides the table's default distance metric for one search.
func WithMetric(m distance.Metric) SearchOption {
	return func(o *searchOptions) {
		o.metric = &m
	}
}

// WithColumns projects the listed columns into Result.Values. Naming the
// vector column fills Result.Vector. Default: every scalar column.
func WithColumns(names ...string) SearchOption {
	return func(o *searchOptions) {
		o.columns = append([]string(nil), names...)
	}
}

// WithMaxDistance drops results farther than d.
func WithMaxDistance(d float32) SearchOption {
	return func(o *searchOptions) {
		o.maxDistance = &d
	}
}
