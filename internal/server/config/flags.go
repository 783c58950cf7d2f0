package config

import (
	"flag"
	"io"
	"time"

	"github.com/dmitrijs2005/credkeeper/internal/flagx"
)

var knownFlags = []string{
	"-a", "-m", "-d", "-s", "-k", "-t", "-l", "-fastpath",
	"-backend", "-redis", "-amqp", "-u", "-p", "-b", "-g", "-e",
}

// parseFlags applies command-line flags.
//
//	-a string    gRPC health bind address
//	-m string    Prometheus metrics bind address
//	-d string    PostgreSQL DSN
//	-s string    server secret
//	-k int       reset code validity, hours
//	-t int       admin token validity, minutes
//	-l string    log level
//	-fastpath    keep the clear-text fast-path column written
//	-backend     document backend: postgres, redis, s3 or memory
//	-redis       Redis address
//	-amqp        AMQP URL for audit events
//	-u / -p      S3 access key / secret key
//	-b / -g / -e S3 bucket / region / base endpoint
//
// Only the flags above are picked out of args, so subcommands can carry
// their own.
func parseFlags(cfg *Config, args []string) error {
	args = flagx.FilterArgs(args, knownFlags)

	fs := flag.NewFlagSet("credkeeper", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	fs.StringVar(&cfg.GRPCAddr, "a", cfg.GRPCAddr, "gRPC health bind address")
	fs.StringVar(&cfg.MetricsAddr, "m", cfg.MetricsAddr, "metrics bind address")
	fs.StringVar(&cfg.DatabaseDSN, "d", cfg.DatabaseDSN, "database DSN")
	fs.StringVar(&cfg.ServerSecret, "s", cfg.ServerSecret, "server secret")
	fs.IntVar(&cfg.ResetCodeValidity, "k", cfg.ResetCodeValidity, "reset code validity (in hours)")
	tokenMinutes := fs.Int("t", int(cfg.AdminTokenValidity.Minutes()), "admin token validity (in minutes)")
	fs.StringVar(&cfg.LogLevel, "l", cfg.LogLevel, "log level")
	fs.BoolVar(&cfg.WriteFastPathSecret, "fastpath", cfg.WriteFastPathSecret, "write the fast-path password column")
	fs.StringVar(&cfg.DocumentBackend, "backend", cfg.DocumentBackend, "document backend")
	fs.StringVar(&cfg.RedisAddr, "redis", cfg.RedisAddr, "redis address")
	fs.StringVar(&cfg.AMQPURL, "amqp", cfg.AMQPURL, "AMQP URL")
	fs.StringVar(&cfg.S3AccessKey, "u", cfg.S3AccessKey, "S3 access key")
	fs.StringVar(&cfg.S3SecretKey, "p", cfg.S3SecretKey, "S3 secret key")
	fs.StringVar(&cfg.S3Bucket, "b", cfg.S3Bucket, "S3 bucket")
	fs.StringVar(&cfg.S3Region, "g", cfg.S3Region, "S3 region")
	fs.StringVar(&cfg.S3BaseEndpoint, "e", cfg.S3BaseEndpoint, "S3 base endpoint")

	// A bare bool flag may be followed by a positional FilterArgs kept as
	// its value; parsing resumes after it.
	for {
		if err := fs.Parse(args); err != nil {
			return err
		}
		if fs.NArg() == 0 {
			break
		}
		args = fs.Args()[1:]
	}

	cfg.AdminTokenValidity = time.Duration(*tokenMinutes) * time.Minute
	return nil
}

// FlagNames lists every flag Load reads, including -c/-config and -env.
func FlagNames() []string {
	return append([]string{"-c", "-config", "-env"}, knownFlags...)
}

// TakesValue reports whether the named global flag expects a value.
func TakesValue(name string) bool {
	return name != "-fastpath"
}
