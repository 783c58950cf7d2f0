// Package repomanager provides a concrete RepositoryManager for PostgreSQL,
// wiring together repository constructors and database migrations (via goose),
// plus an in-memory variant for tests and the CLI demo mode.
package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/credkeeper/internal/dbx"
	"github.com/dmitrijs2005/credkeeper/internal/server/migrations"
	"github.com/dmitrijs2005/credkeeper/internal/server/repositories/documents"
	"github.com/dmitrijs2005/credkeeper/internal/server/repositories/resetcodes"
	"github.com/dmitrijs2005/credkeeper/internal/server/repositories/users"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

// PostgresRepositoryManager vends PostgreSQL-backed repository implementations
// and exposes a schema migration hook.
type PostgresRepositoryManager struct{}

// Users returns a users.Repository bound to the provided DBTX.
func (m *PostgresRepositoryManager) Users(db dbx.DBTX) users.Repository {
	return users.NewPostgresRepository(db)
}

// ResetCodes returns a resetcodes.Repository bound to the provided DBTX.
func (m *PostgresRepositoryManager) ResetCodes(db dbx.DBTX) resetcodes.Repository {
	return resetcodes.NewPostgresRepository(db)
}

// Documents returns the named collection of the secure_documents table.
func (m *PostgresRepositoryManager) Documents(db dbx.DBTX, collection string) documents.Collection {
	return documents.NewPostgresCollection(db, collection)
}

// gooseUpContext is a seam for testing goose.UpContext.
var gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
	return goose.UpContext(ctx, db, dir, opts...)
}

// RunMigrations sets up goose with the embedded migrations and runs them
// against the provided database connection.
func (m *PostgresRepositoryManager) RunMigrations(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.Migrations)
	if err := goose.SetDialect("pgx"); err != nil {
		return err
	}
	return gooseUpContext(ctx, db, ".")
}

// NewPostgresRepositoryManager constructs a PostgreSQL-backed RepositoryManager.
func NewPostgresRepositoryManager() *PostgresRepositoryManager {
	return &PostgresRepositoryManager{}
}

// OpenPostgres opens a pgx-backed *sql.DB and checks connectivity.
func OpenPostgres(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// PostgresRunner runs Units against a connection pool.
type PostgresRunner struct {
	db *sql.DB
	m  RepositoryManager
}

func NewPostgresRunner(db *sql.DB, m RepositoryManager) *PostgresRunner {
	return &PostgresRunner{db: db, m: m}
}

func (r *PostgresRunner) unit(db dbx.DBTX) Unit {
	return Unit{Users: r.m.Users(db), ResetCodes: r.m.ResetCodes(db)}
}

// Unit returns repositories bound to the pool.
func (r *PostgresRunner) Unit() Unit { return r.unit(r.db) }

// InTx commits when fn returns nil and rolls back otherwise.
func (r *PostgresRunner) InTx(ctx context.Context, fn func(ctx context.Context, u Unit) error) error {
	return dbx.WithTx(ctx, r.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		return fn(ctx, r.unit(tx))
	})
}
