package repomanager

import (
	"context"
	"database/sql"
	"sync"

	"github.com/dmitrijs2005/credkeeper/internal/clockx"
	"github.com/dmitrijs2005/credkeeper/internal/dbx"
	"github.com/dmitrijs2005/credkeeper/internal/server/repositories/documents"
	"github.com/dmitrijs2005/credkeeper/internal/server/repositories/resetcodes"
	"github.com/dmitrijs2005/credkeeper/internal/server/repositories/users"
)

// MemoryRepositoryManager keeps one in-memory instance of every repository.
// The db handles passed to its factories are ignored.
type MemoryRepositoryManager struct {
	users      *users.MemoryRepository
	resetCodes *resetcodes.MemoryRepository

	mu   sync.Mutex
	docs map[string]*documents.MemoryCollection
}

func NewMemoryRepositoryManager(clock clockx.Clock) *MemoryRepositoryManager {
	return &MemoryRepositoryManager{
		users:      users.NewMemoryRepository(clock),
		resetCodes: resetcodes.NewMemoryRepository(),
		docs:       make(map[string]*documents.MemoryCollection),
	}
}

func (m *MemoryRepositoryManager) RunMigrations(context.Context, *sql.DB) error { return nil }

func (m *MemoryRepositoryManager) Users(dbx.DBTX) users.Repository { return m.users }

func (m *MemoryRepositoryManager) ResetCodes(dbx.DBTX) resetcodes.Repository { return m.resetCodes }

func (m *MemoryRepositoryManager) Documents(_ dbx.DBTX, collection string) documents.Collection {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.docs[collection]
	if !ok {
		c = documents.NewMemoryCollection()
		m.docs[collection] = c
	}
	return c
}

// MemoryRunner has no rollback: InTx simply runs fn. The reset-code
// compare-and-swap still guarantees a single redemption.
type MemoryRunner struct {
	m *MemoryRepositoryManager
}

func NewMemoryRunner(m *MemoryRepositoryManager) *MemoryRunner {
	return &MemoryRunner{m: m}
}

func (r *MemoryRunner) Unit() Unit {
	return Unit{Users: r.m.Users(nil), ResetCodes: r.m.ResetCodes(nil)}
}

func (r *MemoryRunner) InTx(ctx context.Context, fn func(ctx context.Context, u Unit) error) error {
	return fn(ctx, r.Unit())
}
