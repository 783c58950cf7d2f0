package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/dmitrijs2005/credkeeper/internal/flagx"
	"github.com/dmitrijs2005/credkeeper/internal/timex"
)

// JSONConfig is the on-disk shape of the -c/-config file. Durations accept
// "24h" style strings or integer nanoseconds. Absent fields keep their
// current value.
type JSONConfig struct {
	ServerSecret        string          `json:"server_secret"`
	DatabaseDSN         string          `json:"database_dsn"`
	GRPCAddr            string          `json:"grpc_addr"`
	MetricsAddr         string          `json:"metrics_addr"`
	EnvelopeMaxAge      *timex.Duration `json:"envelope_max_age"`
	DocumentMaxAge      *timex.Duration `json:"document_max_age"`
	ResetCodeValidity   int             `json:"reset_code_validity_hours"`
	SweepInterval       *timex.Duration `json:"sweep_interval"`
	AdminTokenValidity  *timex.Duration `json:"admin_token_validity"`
	WriteFastPathSecret *bool           `json:"write_fastpath_secret"`
	LogLevel            string          `json:"log_level"`
	LogFormat           string          `json:"log_format"`
	DocumentBackend     string          `json:"document_backend"`
	RedisAddr           string          `json:"redis_addr"`
	RedisPassword       string          `json:"redis_password"`
	RedisDB             *int            `json:"redis_db"`
	S3AccessKey         string          `json:"s3_access_key"`
	S3SecretKey         string          `json:"s3_secret_key"`
	S3Bucket            string          `json:"s3_bucket"`
	S3Region            string          `json:"s3_region"`
	S3BaseEndpoint      string          `json:"s3_base_endpoint"`
	AMQPURL             string          `json:"amqp_url"`
	AMQPQueue           string          `json:"amqp_queue"`
}

func parseJSON(cfg *Config, args []string) error {
	path := flagx.JSONConfigPath(args)
	if path == "" {
		return nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}

	var c JSONConfig
	if err := json.Unmarshal(raw, &c); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}

	setString(&cfg.ServerSecret, c.ServerSecret)
	setString(&cfg.DatabaseDSN, c.DatabaseDSN)
	setString(&cfg.GRPCAddr, c.GRPCAddr)
	setString(&cfg.MetricsAddr, c.MetricsAddr)
	if c.EnvelopeMaxAge != nil {
		cfg.EnvelopeMaxAge = c.EnvelopeMaxAge.Duration
	}
	if c.DocumentMaxAge != nil {
		cfg.DocumentMaxAge = c.DocumentMaxAge.Duration
	}
	if c.ResetCodeValidity != 0 {
		cfg.ResetCodeValidity = c.ResetCodeValidity
	}
	if c.SweepInterval != nil {
		cfg.SweepInterval = c.SweepInterval.Duration
	}
	if c.AdminTokenValidity != nil {
		cfg.AdminTokenValidity = c.AdminTokenValidity.Duration
	}
	if c.WriteFastPathSecret != nil {
		cfg.WriteFastPathSecret = *c.WriteFastPathSecret
	}
	setString(&cfg.LogLevel, c.LogLevel)
	setString(&cfg.LogFormat, c.LogFormat)
	setString(&cfg.DocumentBackend, c.DocumentBackend)
	setString(&cfg.RedisAddr, c.RedisAddr)
	setString(&cfg.RedisPassword, c.RedisPassword)
	if c.RedisDB != nil {
		cfg.RedisDB = *c.RedisDB
	}
	setString(&cfg.S3AccessKey, c.S3AccessKey)
	setString(&cfg.S3SecretKey, c.S3SecretKey)
	setString(&cfg.S3Bucket, c.S3Bucket)
	setString(&cfg.S3Region, c.S3Region)
	setString(&cfg.S3BaseEndpoint, c.S3BaseEndpoint)
	setString(&cfg.AMQPURL, c.AMQPURL)
	setString(&cfg.AMQPQueue, c.AMQPQueue)
	return nil
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}
