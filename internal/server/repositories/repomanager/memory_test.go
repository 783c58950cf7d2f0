package repomanager

import (
	"context"
	"testing"

	"github.com/dmitrijs2005/credkeeper/internal/server/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryRepositoryManager_SharesInstances(t *testing.T) {
	m := NewMemoryRepositoryManager(nil)

	assert.Same(t, m.Users(nil), m.Users(nil))
	assert.Same(t, m.Documents(nil, "a"), m.Documents(nil, "a"))
	assert.NotSame(t, m.Documents(nil, "a"), m.Documents(nil, "b"))
	assert.NoError(t, m.RunMigrations(context.Background(), nil))
}

func TestMemoryRunner_InTx(t *testing.T) {
	m := NewMemoryRepositoryManager(nil)
	r := NewMemoryRunner(m)

	err := r.InTx(context.Background(), func(ctx context.Context, u Unit) error {
		_, err := u.Users.Create(ctx, &models.User{Username: "maria"})
		return err
	})
	require.NoError(t, err)

	_, err = r.Unit().Users.GetByUsername(context.Background(), "maria")
	assert.NoError(t, err)
}
