package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/credkeeper/internal/dbx"
	"github.com/dmitrijs2005/credkeeper/internal/server/repositories/documents"
	"github.com/dmitrijs2005/credkeeper/internal/server/repositories/resetcodes"
	"github.com/dmitrijs2005/credkeeper/internal/server/repositories/users"
)

type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Users(db dbx.DBTX) users.Repository
	ResetCodes(db dbx.DBTX) resetcodes.Repository
	Documents(db dbx.DBTX, collection string) documents.Collection
}

// Unit groups the repositories a service works with, all bound to the same
// handle (the pool, or one transaction).
type Unit struct {
	Users      users.Repository
	ResetCodes resetcodes.Repository
}

// Runner hands out Units and runs functions inside a transaction.
type Runner interface {
	Unit() Unit
	InTx(ctx context.Context, fn func(ctx context.Context, u Unit) error) error
}
