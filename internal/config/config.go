// Package config loads process configuration for the vectable binaries.
//
// Values are layered: defaults, then an optional YAML file named by
// VECTABLE_CONFIG, then environment variables.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/hupe1980/vectable"
	"github.com/hupe1980/vectable/distance"
	"github.com/hupe1980/vectable/fragment"
)

// DefaultDimension is the vector width of ingested image embeddings.
const DefaultDimension = 1024

type Config struct {
	URI                string    `yaml:"uri"`
	Dimension          int       `yaml:"dimension"`
	DefaultK           int       `yaml:"default_k"`
	Metric             string    `yaml:"metric"`
	Compression        string    `yaml:"compression"`
	MaxCommitRetries   int       `yaml:"max_commit_retries"`
	FragmentCacheSize  int       `yaml:"fragment_cache_size"`
	FragmentCacheBytes int64     `yaml:"fragment_cache_bytes"`
	Log                LogConfig `yaml:"log"`
	AWS                AWSConfig `yaml:"aws"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type AWSConfig struct {
	Region        string `yaml:"region"`
	S3Endpoint    string `yaml:"s3_endpoint"`
	DynamoDBTable string `yaml:"dynamodb_table"`
}

func Default() *Config {
	return &Config{
		Dimension:        DefaultDimension,
		DefaultK:         2,
		Metric:           "l2",
		Compression:      "zstd",
		MaxCommitRetries: vectable.DefaultMaxCommitRetries,
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load builds the configuration from defaults, VECTABLE_CONFIG and the environment.
func Load() (*Config, error) {
	cfg, err := Layered(os.Getenv("VECTABLE_CONFIG"))
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Layered applies the YAML file at path (if any) and then the environment on
// top of the defaults. The result is not validated, so callers can apply
// further overrides first.
func Layered(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		if err := loadYAMLFile(path, cfg); err != nil {
			return nil, fmt.Errorf("config file: %w", err)
		}
	}
	if err := applyEnvironment(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFile reads path on top of the defaults without consulting the environment.
func LoadFile(path string) (*Config, error) {
	cfg := Default()
	if err := loadYAMLFile(path, cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadYAMLFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

func applyEnvironment(cfg *Config) error {
	// Legacy bucket variable; the storage root is s3://<bucket>/lancedb/.
	if v := os.Getenv("LANCEDB_BUCKET"); v != "" {
		cfg.URI = "s3://" + strings.Trim(v, "/") + "/lancedb/"
	}
	if v := os.Getenv("VECTABLE_URI"); v != "" {
		cfg.URI = v
	}
	if v := os.Getenv("VECTABLE_DIMENSION"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("VECTABLE_DIMENSION: %w", err)
		}
		cfg.Dimension = n
	}
	if v := os.Getenv("VECTABLE_DEFAULT_K"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("VECTABLE_DEFAULT_K: %w", err)
		}
		cfg.DefaultK = n
	}
	if v := os.Getenv("VECTABLE_MAX_COMMIT_RETRIES"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("VECTABLE_MAX_COMMIT_RETRIES: %w", err)
		}
		cfg.MaxCommitRetries = n
	}
	if v := os.Getenv("VECTABLE_FRAGMENT_CACHE_SIZE"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("VECTABLE_FRAGMENT_CACHE_SIZE: %w", err)
		}
		cfg.FragmentCacheSize = n
	}
	if v := os.Getenv("VECTABLE_FRAGMENT_CACHE_BYTES"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("VECTABLE_FRAGMENT_CACHE_BYTES: %w", err)
		}
		cfg.FragmentCacheBytes = n
	}
	if v := os.Getenv("VECTABLE_METRIC"); v != "" {
		cfg.Metric = v
	}
	if v := os.Getenv("VECTABLE_COMPRESSION"); v != "" {
		cfg.Compression = v
	}
	if v := os.Getenv("VECTABLE_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("VECTABLE_LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}
	if v := os.Getenv("AWS_REGION"); v != "" {
		cfg.AWS.Region = v
	}
	if v := os.Getenv("VECTABLE_S3_ENDPOINT"); v != "" {
		cfg.AWS.S3Endpoint = v
	}
	if v := os.Getenv("VECTABLE_DYNAMODB_TABLE"); v != "" {
		cfg.AWS.DynamoDBTable = v
	}
	return nil
}

// Validate checks that every field holds a usable value.
func (c *Config) Validate() error {
	var errs []error
	if c.URI == "" {
		errs = append(errs, errors.New("uri is required (set VECTABLE_URI or LANCEDB_BUCKET)"))
	}
	if c.Dimension <= 0 {
		errs = append(errs, fmt.Errorf("dimension must be positive, got %d", c.Dimension))
	}
	if c.DefaultK <= 0 {
		errs = append(errs, fmt.Errorf("default_k must be positive, got %d", c.DefaultK))
	}
	if c.FragmentCacheBytes < 0 {
		errs = append(errs, fmt.Errorf("fragment_cache_bytes must not be negative, got %d", c.FragmentCacheBytes))
	}
	if c.MaxCommitRetries < 0 {
		errs = append(errs, fmt.Errorf("max_commit_retries must not be negative, got %d", c.MaxCommitRetries))
	}
	if _, err := distance.Parse(c.Metric); err != nil {
		errs = append(errs, err)
	}
	if _, err := fragment.ParseCompression(c.Compression); err != nil {
		errs = append(errs, err)
	}
	if _, err := parseLevel(c.Log.Level); err != nil {
		errs = append(errs, err)
	}
	switch strings.ToLower(c.Log.Format) {
	case "json", "text":
	default:
		errs = append(errs, fmt.Errorf("log format must be json or text, got %q", c.Log.Format))
	}
	return errors.Join(errs...)
}

// DistanceMetric returns the parsed default metric.
func (c *Config) DistanceMetric() distance.Metric {
	m, _ := distance.Parse(c.Metric)
	return m
}

func parseLevel(s string) (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("log level: %w", err)
	}
	return l, nil
}

// Logger builds the configured logger.
func (c *Config) Logger() *vectable.Logger {
	level, err := parseLevel(c.Log.Level)
	if err != nil {
		level = slog.LevelInfo
	}
	if strings.EqualFold(c.Log.Format, "text") {
		return vectable.NewTextLogger(level)
	}
	return vectable.NewJSONLogger(level)
}

// Options translates the configuration into connection options.
func (c *Config) Options(logger *vectable.Logger) []vectable.Option {
	compression, _ := fragment.ParseCompression(c.Compression)
	opts := []vectable.Option{
		vectable.WithLogger(logger),
		vectable.WithMaxCommitRetries(c.MaxCommitRetries),
		vectable.WithCompression(compression),
		vectable.WithFragmentCache(c.FragmentCacheSize),
		vectable.WithFragmentCacheBytes(c.FragmentCacheBytes),
	}
	if c.AWS.Region != "" {
		opts = append(opts, vectable.WithRegion(c.AWS.Region))
	}
	if c.AWS.S3Endpoint != "" {
		opts = append(opts, vectable.WithS3Endpoint(c.AWS.S3Endpoint))
	}
	if c.AWS.DynamoDBTable != "" {
		opts = append(opts, vectable.WithDynamoDBCommitTable(c.AWS.DynamoDBTable))
	}
	return opts
}
