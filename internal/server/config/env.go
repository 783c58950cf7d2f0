package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/dmitrijs2005/credkeeper/internal/flagx"
	"github.com/joho/godotenv"
)

const envPrefix = "CREDKEEPER_"

// parseEnv applies CREDKEEPER_* variables. A .env file named by -env is
// read first; variables already set in the process environment win over it.
func parseEnv(cfg *Config, args []string) error {
	file := map[string]string{}
	if path := flagx.EnvFilePath(args); path != "" {
		m, err := godotenv.Read(path)
		if err != nil {
			return fmt.Errorf("read env file: %w", err)
		}
		file = m
	}

	lookup := func(name string) (string, bool) {
		key := envPrefix + name
		if v, ok := os.LookupEnv(key); ok {
			return v, true
		}
		v, ok := file[key]
		return v, ok
	}

	e := envReader{lookup: lookup}
	e.str("SERVER_SECRET", &cfg.ServerSecret)
	e.str("DATABASE_DSN", &cfg.DatabaseDSN)
	e.str("GRPC_ADDR", &cfg.GRPCAddr)
	e.str("METRICS_ADDR", &cfg.MetricsAddr)
	e.duration("ENVELOPE_MAX_AGE", &cfg.EnvelopeMaxAge)
	e.duration("DOCUMENT_MAX_AGE", &cfg.DocumentMaxAge)
	e.integer("RESET_CODE_VALIDITY_HOURS", &cfg.ResetCodeValidity)
	e.duration("SWEEP_INTERVAL", &cfg.SweepInterval)
	e.duration("ADMIN_TOKEN_VALIDITY", &cfg.AdminTokenValidity)
	e.boolean("WRITE_FASTPATH_SECRET", &cfg.WriteFastPathSecret)
	e.str("LOG_LEVEL", &cfg.LogLevel)
	e.str("LOG_FORMAT", &cfg.LogFormat)
	e.str("DOCUMENT_BACKEND", &cfg.DocumentBackend)
	e.str("REDIS_ADDR", &cfg.RedisAddr)
	e.str("REDIS_PASSWORD", &cfg.RedisPassword)
	e.integer("REDIS_DB", &cfg.RedisDB)
	e.str("S3_ACCESS_KEY", &cfg.S3AccessKey)
	e.str("S3_SECRET_KEY", &cfg.S3SecretKey)
	e.str("S3_BUCKET", &cfg.S3Bucket)
	e.str("S3_REGION", &cfg.S3Region)
	e.str("S3_ENDPOINT", &cfg.S3BaseEndpoint)
	e.str("AMQP_URL", &cfg.AMQPURL)
	e.str("AMQP_QUEUE", &cfg.AMQPQueue)
	return e.err
}

// envReader keeps the first parse error and skips the rest.
type envReader struct {
	lookup func(string) (string, bool)
	err    error
}

func (e *envReader) str(name string, dst *string) {
	if v, ok := e.lookup(name); ok && e.err == nil {
		*dst = v
	}
}

func (e *envReader) duration(name string, dst *time.Duration) {
	v, ok := e.lookup(name)
	if !ok || e.err != nil {
		return
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		e.err = fmt.Errorf("%s%s: %w", envPrefix, name, err)
		return
	}
	*dst = d
}

func (e *envReader) integer(name string, dst *int) {
	v, ok := e.lookup(name)
	if !ok || e.err != nil {
		return
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		e.err = fmt.Errorf("%s%s: %w", envPrefix, name, err)
		return
	}
	*dst = n
}

func (e *envReader) boolean(name string, dst *bool) {
	v, ok := e.lookup(name)
	if !ok || e.err != nil {
		return
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		e.err = fmt.Errorf("%s%s: %w", envPrefix, name, err)
		return
	}
	*dst = b
}
