package config

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func writeJSON(t *testing.T, data map[string]any) string {
	t.Helper()
	b, err := json.Marshal(data)
	require.NoError(t, err)
	return writeFile(t, "cfg.json", string(b))
}

func TestLoadDefaults(t *testing.T) {
	var c Config
	c.LoadDefaults()

	assert.Empty(t, c.ServerSecret)
	assert.Equal(t, ":50051", c.GRPCAddr)
	assert.Equal(t, 24*time.Hour, c.EnvelopeMaxAge)
	assert.Zero(t, c.DocumentMaxAge)
	assert.Equal(t, 24, c.ResetCodeValidity)
	assert.Equal(t, 15*time.Minute, c.AdminTokenValidity)
	assert.False(t, c.WriteFastPathSecret)
	assert.Equal(t, BackendPostgres, c.DocumentBackend)
}

func TestValidate(t *testing.T) {
	var c Config
	c.LoadDefaults()

	err := c.Validate()
	assert.ErrorIs(t, err, ErrMissingServerSecret)

	c.ServerSecret = "s"
	assert.NoError(t, c.Validate())

	c.DocumentBackend = "cassandra"
	c.ResetCodeValidity = 0
	err = c.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cassandra")
	assert.Contains(t, err.Error(), "reset code validity")
}

func TestLoad_Precedence(t *testing.T) {
	jsonPath := writeJSON(t, map[string]any{
		"server_secret":             "from-json",
		"database_dsn":              "json-dsn",
		"document_max_age":          "720h",
		"reset_code_validity_hours": 48,
		"write_fastpath_secret":     true,
		"redis_db":                  2,
	})
	envPath := writeFile(t, ".env", "CREDKEEPER_DATABASE_DSN=env-file-dsn\nCREDKEEPER_LOG_LEVEL=debug\n")

	t.Setenv("CREDKEEPER_LOG_LEVEL", "warn")
	t.Setenv("CREDKEEPER_SWEEP_INTERVAL", "10m")

	cfg, err := Load([]string{"-config", jsonPath, "-env", envPath, "-s", "from-flag", "-t", "5"})
	require.NoError(t, err)

	assert.Equal(t, "from-flag", cfg.ServerSecret)
	assert.Equal(t, "env-file-dsn", cfg.DatabaseDSN)
	assert.Equal(t, "warn", cfg.LogLevel, "process env wins over the .env file")
	assert.Equal(t, 720*time.Hour, cfg.DocumentMaxAge)
	assert.Equal(t, 48, cfg.ResetCodeValidity)
	assert.True(t, cfg.WriteFastPathSecret)
	assert.Equal(t, 2, cfg.RedisDB)
	assert.Equal(t, 10*time.Minute, cfg.SweepInterval)
	assert.Equal(t, 5*time.Minute, cfg.AdminTokenValidity)
	assert.Equal(t, 24*time.Hour, cfg.EnvelopeMaxAge)
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load([]string{"-c", filepath.Join(t.TempDir(), "missing.json")})
	assert.Error(t, err)

	_, err = Load([]string{"-c", writeFile(t, "bad.json", "{")})
	assert.Error(t, err)

	_, err = Load([]string{"-env", filepath.Join(t.TempDir(), "missing.env")})
	assert.Error(t, err)

	t.Setenv("CREDKEEPER_REDIS_DB", "two")
	_, err = Load(nil)
	assert.Error(t, err)
}

func TestParseFlags(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want func(t *testing.T, c *Config)
	}{
		{
			name: "all values",
			args: []string{"-a", "127.0.0.1:1", "-m", ":2", "-d", "db", "-s", "secret", "-k", "6", "-t", "30",
				"-backend", "redis", "-redis", "r:6379", "-amqp", "amqp://x", "-u", "key", "-p", "pw",
				"-b", "bucket", "-g", "eu-west-1", "-e", "http://minio"},
			want: func(t *testing.T, c *Config) {
				assert.Equal(t, "127.0.0.1:1", c.GRPCAddr)
				assert.Equal(t, ":2", c.MetricsAddr)
				assert.Equal(t, "db", c.DatabaseDSN)
				assert.Equal(t, "secret", c.ServerSecret)
				assert.Equal(t, 6, c.ResetCodeValidity)
				assert.Equal(t, 30*time.Minute, c.AdminTokenValidity)
				assert.Equal(t, BackendRedis, c.DocumentBackend)
				assert.Equal(t, "r:6379", c.RedisAddr)
				assert.Equal(t, "amqp://x", c.AMQPURL)
				s3 := c.S3()
				assert.Equal(t, "key", s3.AccessKey)
				assert.Equal(t, "pw", s3.SecretKey)
				assert.Equal(t, "eu-west-1", s3.Region)
				assert.Equal(t, "http://minio", s3.BaseEndpoint)
				assert.Equal(t, "bucket", c.S3Bucket)
			},
		},
		{
			name: "bool flag before positional",
			args: []string{"codes", "-fastpath", "list", "-s", "x"},
			want: func(t *testing.T, c *Config) {
				assert.True(t, c.WriteFastPathSecret)
				assert.Equal(t, "x", c.ServerSecret)
			},
		},
		{
			name: "unknown flags ignored",
			args: []string{"-email", "a@b.c", "-l", "error"},
			want: func(t *testing.T, c *Config) {
				assert.Equal(t, "error", c.LogLevel)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var c Config
			c.LoadDefaults()
			require.NoError(t, parseFlags(&c, tt.args))
			tt.want(t, &c)
		})
	}
}

func TestParseFlags_BadValue(t *testing.T) {
	var c Config
	c.LoadDefaults()
	err := parseFlags(&c, []string{"-k", "many"})
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrMissingServerSecret))
}

func TestFlagNames(t *testing.T) {
	names := FlagNames()
	assert.Contains(t, names, "-config")
	assert.Contains(t, names, "-s")
	assert.False(t, TakesValue("-fastpath"))
	assert.True(t, TakesValue("-d"))
}
