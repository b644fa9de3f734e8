package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/vectable/distance"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"VECTABLE_CONFIG", "LANCEDB_BUCKET", "VECTABLE_URI", "VECTABLE_DIMENSION",
		"VECTABLE_DEFAULT_K", "VECTABLE_MAX_COMMIT_RETRIES", "VECTABLE_FRAGMENT_CACHE_SIZE", "VECTABLE_FRAGMENT_CACHE_BYTES",
		"VECTABLE_METRIC", "VECTABLE_COMPRESSION", "VECTABLE_LOG_LEVEL", "VECTABLE_LOG_FORMAT",
		"AWS_REGION", "VECTABLE_S3_ENDPOINT", "VECTABLE_DYNAMODB_TABLE",
	} {
		t.Setenv(k, "")
	}
}

func TestDefaultRequiresURI(t *testing.T) {
	clearEnv(t)
	_, err := Load()
	assert.ErrorContains(t, err, "uri is required")
}

func TestLancedbBucket(t *testing.T) {
	clearEnv(t)
	t.Setenv("LANCEDB_BUCKET", "my-bucket")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "s3://my-bucket/lancedb/", cfg.URI)
	assert.Equal(t, DefaultDimension, cfg.Dimension)
	assert.Equal(t, 2, cfg.DefaultK)
	assert.Equal(t, 10, cfg.MaxCommitRetries)
	assert.Equal(t, distance.MetricL2, cfg.DistanceMetric())
}

func TestEnvironmentOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("LANCEDB_BUCKET", "ignored")
	t.Setenv("VECTABLE_URI", "memory://env")
	t.Setenv("VECTABLE_DIMENSION", "8")
	t.Setenv("VECTABLE_DEFAULT_K", "5")
	t.Setenv("VECTABLE_MAX_COMMIT_RETRIES", "3")
	t.Setenv("VECTABLE_METRIC", "cosine")
	t.Setenv("VECTABLE_COMPRESSION", "lz4")
	t.Setenv("VECTABLE_LOG_LEVEL", "debug")
	t.Setenv("VECTABLE_LOG_FORMAT", "text")
	t.Setenv("AWS_REGION", "eu-west-1")
	t.Setenv("VECTABLE_DYNAMODB_TABLE", "commits")
	t.Setenv("VECTABLE_FRAGMENT_CACHE_BYTES", "1048576")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "memory://env", cfg.URI)
	assert.Equal(t, 8, cfg.Dimension)
	assert.Equal(t, 5, cfg.DefaultK)
	assert.Equal(t, 3, cfg.MaxCommitRetries)
	assert.Equal(t, distance.MetricCosine, cfg.DistanceMetric())
	assert.Equal(t, "lz4", cfg.Compression)
	assert.Equal(t, "eu-west-1", cfg.AWS.Region)
	assert.Equal(t, "commits", cfg.AWS.DynamoDBTable)
	assert.Equal(t, int64(1<<20), cfg.FragmentCacheBytes)
	assert.NotNil(t, cfg.Logger())
	assert.Len(t, cfg.Options(cfg.Logger()), 7)
}

func TestInvalidEnvironment(t *testing.T) {
	clearEnv(t)
	t.Setenv("VECTABLE_URI", "memory://env")
	t.Setenv("VECTABLE_DIMENSION", "wide")

	_, err := Load()
	assert.ErrorContains(t, err, "VECTABLE_DIMENSION")
}

func TestYAMLFile(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "vectable.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
uri: file:///var/lib/vectable
dimension: 16
metric: dot
log:
  level: warn
aws:
  region: us-east-2
`), 0o600))

	cfg, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "file:///var/lib/vectable", cfg.URI)
	assert.Equal(t, 16, cfg.Dimension)
	assert.Equal(t, distance.MetricDot, cfg.DistanceMetric())
	assert.Equal(t, "warn", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, "us-east-2", cfg.AWS.Region)

	// Environment wins over the file.
	t.Setenv("VECTABLE_CONFIG", path)
	t.Setenv("VECTABLE_DIMENSION", "32")
	cfg, err = Load()
	require.NoError(t, err)
	assert.Equal(t, 32, cfg.Dimension)
	assert.Equal(t, "us-east-2", cfg.AWS.Region)
}

func TestValidate(t *testing.T) {
	cfg := Default()
	cfg.URI = "memory://x"
	require.NoError(t, cfg.Validate())

	cfg.Dimension = 0
	cfg.DefaultK = -1
	cfg.MaxCommitRetries = -1
	cfg.Metric = "manhattan"
	cfg.Compression = "brotli"
	cfg.Log.Level = "loud"
	cfg.Log.Format = "xml"

	err := cfg.Validate()
	require.Error(t, err)
	for _, want := range []string{"dimension", "default_k", "max_commit_retries", "manhattan", "brotli", "log level", "log format"} {
		assert.ErrorContains(t, err, want)
	}
}

func TestLoadFileMissing(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestLayeredSkipsValidation(t *testing.T) {
	clearEnv(t)
	cfg, err := Layered("")
	require.NoError(t, err)
	assert.Empty(t, cfg.URI)

	cfg.URI = "memory://"
	assert.NoError(t, cfg.Validate())
}
