package resetcodes

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/dmitrijs2005/credkeeper/internal/common"
	"github.com/dmitrijs2005/credkeeper/internal/server/models"
)

// MemoryRepository is a process-local Repository. MarkUsed holds the write
// lock across the check and the update, giving the same single-winner
// guarantee as the conditional UPDATE in Postgres.
type MemoryRepository struct {
	mu    sync.Mutex
	codes map[string]*models.ResetCode
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{codes: make(map[string]*models.ResetCode)}
}

func cloneCode(c *models.ResetCode) *models.ResetCode {
	cp := *c
	return &cp
}

func (r *MemoryRepository) Create(ctx context.Context, code *models.ResetCode) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.codes[code.ID]; ok {
		return common.ErrConflict
	}
	r.codes[code.ID] = cloneCode(code)
	return nil
}

func (r *MemoryRepository) FindByCode(ctx context.Context, code string) (*models.ResetCode, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var found *models.ResetCode
	for _, c := range r.codes {
		if c.Code == code && (found == nil || c.IssuedAt.After(found.IssuedAt)) {
			found = c
		}
	}
	if found == nil {
		return nil, common.ErrorNotFound
	}
	return cloneCode(found), nil
}

func (r *MemoryRepository) MarkUsed(ctx context.Context, id, usedBy string, usedAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.codes[id]
	if !ok {
		return common.ErrorNotFound
	}
	if c.Used {
		return common.ErrConflict
	}
	c.Used = true
	c.UsedAt = &usedAt
	c.UsedBy = &usedBy
	return nil
}

func (r *MemoryRepository) ListUnused(ctx context.Context) ([]*models.ResetCode, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var result []*models.ResetCode
	for _, c := range r.codes {
		if !c.Used {
			result = append(result, cloneCode(c))
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].IssuedAt.After(result[j].IssuedAt) })
	return result, nil
}

func (r *MemoryRepository) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.codes[id]; !ok {
		return common.ErrorNotFound
	}
	delete(r.codes, id)
	return nil
}

func (r *MemoryRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var n int64
	for id, c := range r.codes {
		if c.ExpiresAt.Before(now) {
			delete(r.codes, id)
			n++
		}
	}
	return n, nil
}
