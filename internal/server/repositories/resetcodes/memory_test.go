package resetcodes

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dmitrijs2005/credkeeper/internal/common"
	"github.com/dmitrijs2005/credkeeper/internal/server/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryRepository_MarkUsedSingleWinner(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()
	require.NoError(t, repo.Create(ctx, &models.ResetCode{ID: "id-1", Code: "AAA-AAA-AAA", IssuedAt: issued, ExpiresAt: expires}))

	var wins, conflicts int32
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := repo.MarkUsed(ctx, "id-1", "x@example.com", issued)
			if err == nil {
				atomic.AddInt32(&wins, 1)
			} else if errors.Is(err, common.ErrConflict) {
				atomic.AddInt32(&conflicts, 1)
			}
		}()
	}
	wg.Wait()

	assert.EqualValues(t, 1, wins)
	assert.EqualValues(t, 15, conflicts)
	assert.ErrorIs(t, repo.MarkUsed(ctx, "nope", "x", issued), common.ErrorNotFound)
}

func TestMemoryRepository_ListFindSweep(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()

	old := &models.ResetCode{ID: "old", Code: "SAME-CODE", IssuedAt: issued, ExpiresAt: issued.Add(time.Hour)}
	fresh := &models.ResetCode{ID: "new", Code: "SAME-CODE", IssuedAt: issued.Add(time.Minute), ExpiresAt: expires}
	used := &models.ResetCode{ID: "used", Code: "USED", IssuedAt: issued, ExpiresAt: expires, Used: true}
	for _, c := range []*models.ResetCode{old, fresh, used} {
		require.NoError(t, repo.Create(ctx, c))
	}
	assert.ErrorIs(t, repo.Create(ctx, old), common.ErrConflict)

	found, err := repo.FindByCode(ctx, "SAME-CODE")
	require.NoError(t, err)
	assert.Equal(t, "new", found.ID)

	list, err := repo.ListUnused(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "new", list[0].ID)

	n, err := repo.DeleteExpired(ctx, issued.Add(2*time.Hour))
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	require.NoError(t, repo.Delete(ctx, "used"))
	assert.ErrorIs(t, repo.Delete(ctx, "used"), common.ErrorNotFound)
	_, err = repo.FindByCode(ctx, "USED")
	assert.ErrorIs(t, err, common.ErrorNotFound)
}
