// Package server wires configuration, storage and services together and
// runs the maintenance daemon.
package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/dmitrijs2005/credkeeper/internal/clockx"
	"github.com/dmitrijs2005/credkeeper/internal/cryptox"
	"github.com/dmitrijs2005/credkeeper/internal/logging"
	"github.com/dmitrijs2005/credkeeper/internal/metrics"
	"github.com/dmitrijs2005/credkeeper/internal/server/auth"
	"github.com/dmitrijs2005/credkeeper/internal/server/config"
	"github.com/dmitrijs2005/credkeeper/internal/server/events"
	"github.com/dmitrijs2005/credkeeper/internal/server/repositories/documents"
	"github.com/dmitrijs2005/credkeeper/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/credkeeper/internal/server/repositories/users"
	"github.com/dmitrijs2005/credkeeper/internal/server/securestore"
	"github.com/dmitrijs2005/credkeeper/internal/server/services"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	red "github.com/redis/go-redis/v9"

	gs "github.com/dmitrijs2005/credkeeper/internal/server/grpc"
)

// MemoryDSN selects in-process repositories instead of Postgres.
const MemoryDSN = "memory://"

type App struct {
	config   *config.Config
	logger   logging.Logger
	clock    clockx.Clock
	db       *sql.DB
	manager  repomanager.RepositoryManager
	runner   repomanager.Runner
	registry *prometheus.Registry
	metrics  *metrics.Metrics
	events   events.Publisher
	deps     services.Deps
	session  *auth.AdminSession

	mu      sync.Mutex
	redis   *red.Client
	memDocs *repomanager.MemoryRepositoryManager
	closers []func() error
}

// NewApp validates c, connects to the configured stores and builds the
// services. Close releases what it opened.
func NewApp(ctx context.Context, c *config.Config, logger logging.Logger) (*App, error) {
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	if logger == nil {
		logger = logging.Nop()
	}

	app := &App{config: c, logger: logger, clock: clockx.System{}}

	if err := app.initStorage(ctx); err != nil {
		return nil, err
	}

	app.registry = prometheus.NewRegistry()
	app.registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m, err := metrics.New(app.registry)
	if err != nil {
		_ = app.Close()
		return nil, fmt.Errorf("metrics init error: %w", err)
	}
	app.metrics = m

	app.events = events.Nop{}
	if c.AMQPURL != "" {
		p, err := events.DialAMQP(c.AMQPURL, c.AMQPQueue)
		if err != nil {
			_ = app.Close()
			return nil, err
		}
		app.events = p
		app.closers = append(app.closers, p.Close)
	}

	hasher, err := cryptox.NewHasher(c.ServerSecret)
	if err != nil {
		_ = app.Close()
		return nil, err
	}

	app.deps = services.Deps{
		Hasher:              hasher,
		Clock:               app.clock,
		Events:              app.events,
		Metrics:             app.metrics,
		Logger:              logger,
		WriteFastPathSecret: c.WriteFastPathSecret,
	}
	app.session = auth.NewAdminSession([]byte(c.ServerSecret), app.clock)
	return app, nil
}

func (app *App) initStorage(ctx context.Context) error {
	if strings.HasPrefix(app.config.DatabaseDSN, MemoryDSN) {
		m := repomanager.NewMemoryRepositoryManager(app.clock)
		app.manager = m
		app.runner = repomanager.NewMemoryRunner(m)
		return nil
	}

	db, err := repomanager.OpenPostgres(ctx, app.config.DatabaseDSN)
	if err != nil {
		return fmt.Errorf("db init error: %w", err)
	}
	app.db = db
	app.closers = append(app.closers, db.Close)

	m := repomanager.NewPostgresRepositoryManager()
	if err := m.RunMigrations(ctx, db); err != nil {
		_ = app.Close()
		return fmt.Errorf("migrations: %w", err)
	}
	app.manager = m
	app.runner = repomanager.NewPostgresRunner(db, m)
	return nil
}

func (app *App) Config() *config.Config { return app.config }

func (app *App) Logger() logging.Logger { return app.logger }

func (app *App) Users() users.Repository { return app.runner.Unit().Users }

func (app *App) Registry() *services.ResetCodeRegistry {
	return services.NewResetCodeRegistry(app.runner, app.deps)
}

func (app *App) Recovery() *services.RecoveryFlow {
	return services.NewRecoveryFlow(app.Users(), app.deps)
}

func (app *App) FirstAccess(userID string) *services.FirstAccessFlow {
	return services.NewFirstAccessFlow(app.Users(), userID, app.deps)
}

func (app *App) Authenticator() *services.Authenticator {
	return services.NewAuthenticator(app.Users(), app.deps)
}

func (app *App) AdminSession() *auth.AdminSession { return app.session }

// Collection returns the named document collection on the configured
// backend.
func (app *App) Collection(ctx context.Context, name string) (documents.Collection, error) {
	app.mu.Lock()
	defer app.mu.Unlock()

	switch app.config.DocumentBackend {
	case config.BackendRedis:
		if app.redis == nil {
			app.redis = red.NewClient(&red.Options{
				Addr:     app.config.RedisAddr,
				Password: app.config.RedisPassword,
				DB:       app.config.RedisDB,
			})
			app.closers = append(app.closers, app.redis.Close)
		}
		return documents.NewRedisCollection(app.redis, "", name), nil
	case config.BackendS3:
		client, err := documents.NewS3Client(ctx, app.config.S3())
		if err != nil {
			return nil, err
		}
		return documents.NewS3Collection(client, app.config.S3Bucket, "documents", name), nil
	case config.BackendMemory:
		if app.memDocs == nil {
			app.memDocs = repomanager.NewMemoryRepositoryManager(app.clock)
		}
		return app.memDocs.Documents(nil, name), nil
	default:
		return app.manager.Documents(app.db, name), nil
	}
}

// OpenStore returns an encrypted store over the named collection. Session
// stores apply the envelope freshness window; others use DocumentMaxAge.
func OpenStore[T any](ctx context.Context, app *App, name string, session bool) (*securestore.Store[T], error) {
	coll, err := app.Collection(ctx, name)
	if err != nil {
		return nil, err
	}

	maxAge := app.config.DocumentMaxAge
	if session {
		maxAge = app.config.EnvelopeMaxAge
	}
	cipher, err := cryptox.NewEnvelopeCipher(app.config.ServerSecret, cryptox.WithClock(app.clock), cryptox.WithMaxAge(maxAge))
	if err != nil {
		return nil, err
	}

	return securestore.New[T](coll, cipher, securestore.Config{
		Name:    name,
		Logger:  app.logger,
		Metrics: app.metrics,
	}), nil
}

// Close releases connections in reverse order of acquisition.
func (app *App) Close() error {
	app.mu.Lock()
	defer app.mu.Unlock()

	var errs []error
	for i := len(app.closers) - 1; i >= 0; i-- {
		if err := app.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	app.closers = nil
	return errors.Join(errs...)
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

// Serve runs the maintenance daemon until ctx is done or a signal arrives:
// the gRPC health endpoint, the Prometheus endpoint and the periodic sweep
// of expired reset codes.
func (app *App) Serve(ctx context.Context) error {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")
	app.initSignalHandler(cancelFunc)

	health := gs.NewHealthServer(app.config.GRPCAddr, app.logger)

	var (
		wg       sync.WaitGroup
		errMu    sync.Mutex
		firstErr error
	)
	run := func(name string, fn func(context.Context) error) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := fn(ctx); err != nil {
				app.logger.Error(ctx, "component failed", "component", name, "error", err)
				errMu.Lock()
				if firstErr == nil {
					firstErr = fmt.Errorf("%s: %w", name, err)
				}
				errMu.Unlock()
				cancelFunc()
			}
		}()
	}

	run("grpc", health.Run)
	run("metrics", app.serveMetrics)
	run("sweeper", func(ctx context.Context) error {
		app.sweepLoop(ctx, health)
		return nil
	})

	wg.Wait()
	return firstErr
}

func (app *App) serveMetrics(ctx context.Context) error {
	lis, err := net.Listen("tcp", app.config.MetricsAddr)
	if err != nil {
		return err
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(app.registry, promhttp.HandlerOpts{}))
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	app.logger.Info(ctx, "Starting metrics server", "address", lis.Addr().String())
	if err := srv.Serve(lis); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (app *App) sweepLoop(ctx context.Context, health *gs.HealthServer) {
	interval := app.config.SweepInterval
	if interval <= 0 {
		interval = time.Hour
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	registry := app.Registry()
	for {
		health.SetServing(app.ping(ctx) == nil)
		if _, err := registry.SweepExpired(ctx); err != nil && ctx.Err() == nil {
			app.logger.Error(ctx, "sweep failed", "error", err)
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (app *App) ping(ctx context.Context) error {
	if app.db == nil {
		return nil
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return app.db.PingContext(pingCtx)
}
