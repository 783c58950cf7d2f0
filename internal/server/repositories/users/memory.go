package users

import (
	"context"
	"sort"
	"sync"

	"github.com/dmitrijs2005/credkeeper/internal/clockx"
	"github.com/dmitrijs2005/credkeeper/internal/common"
	"github.com/dmitrijs2005/credkeeper/internal/server/models"
	"github.com/google/uuid"
)

// MemoryRepository keeps users in process memory. Records are copied on the
// way in and out so callers never share state with the store.
type MemoryRepository struct {
	mu    sync.RWMutex
	clock clockx.Clock
	byID  map[string]*models.User
}

func NewMemoryRepository(clock clockx.Clock) *MemoryRepository {
	if clock == nil {
		clock = clockx.System{}
	}
	return &MemoryRepository{clock: clock, byID: make(map[string]*models.User)}
}

func clone(u *models.User) *models.User {
	c := *u
	if u.Challenge != nil {
		ch := *u.Challenge
		c.Challenge = &ch
	}
	if u.LegacyPlaintext != nil {
		v := *u.LegacyPlaintext
		c.LegacyPlaintext = &v
	}
	if u.FastPathSecret != nil {
		v := *u.FastPathSecret
		c.FastPathSecret = &v
	}
	return &c
}

func (r *MemoryRepository) Create(ctx context.Context, user *models.User) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, u := range r.byID {
		if u.Username == user.Username {
			return nil, common.ErrConflict
		}
	}

	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	now := r.clock.Now()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	user.UpdatedAt = now

	r.byID[user.ID] = clone(user)
	return user, nil
}

func (r *MemoryRepository) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, u := range r.byID {
		if u.Username == username {
			return clone(u), nil
		}
	}
	return nil, common.ErrorNotFound
}

func (r *MemoryRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.byID[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return clone(u), nil
}

func (r *MemoryRepository) List(ctx context.Context) ([]*models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]*models.User, 0, len(r.byID))
	for _, u := range r.byID {
		result = append(result, clone(u))
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Username < result[j].Username })
	return result, nil
}

func (r *MemoryRepository) Update(ctx context.Context, id string, patch models.UserPatch) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.byID[id]
	if !ok {
		return common.ErrorNotFound
	}
	if patch.Empty() {
		return nil
	}
	patch.Apply(u, r.clock.Now())
	return nil
}
