package services

import (
	"context"
	"testing"

	"github.com/dmitrijs2005/credkeeper/internal/server/events"
	"github.com/dmitrijs2005/credkeeper/internal/server/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newPlainUser(username string) *models.User {
	return &models.User{
		Username:         username,
		Email:            username + "@example.com",
		Name:             username,
		Level:            "usuario",
		Active:           true,
		ForceFirstAccess: true,
	}
}

func TestFirstAccessFlow_Complete(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	u, err := f.users.Create(ctx, newPlainUser("novo"))
	require.NoError(t, err)

	flow := NewFirstAccessFlow(f.users, u.ID, f.deps)
	require.NoError(t, flow.SetPassword("Abcdef1"))
	assert.Equal(t, ConfirmPasswordStep, flow.State())

	assert.ErrorIs(t, flow.ConfirmPassword("Abcdef2"), ErrPasswordMismatch)
	assert.Equal(t, ConfirmPasswordStep, flow.State())

	require.NoError(t, flow.ConfirmPassword("Abcdef1"))
	assert.Equal(t, SetSecretChallengeStep, flow.State())

	require.NoError(t, flow.SetSecretChallenge(ctx, " Cidade onde nasceu? ", " Recife "))
	assert.Equal(t, FirstAccessDone, flow.State())

	got, err := f.users.GetByID(ctx, u.ID)
	require.NoError(t, err)
	assert.False(t, got.ForceFirstAccess)
	require.True(t, got.Challenge.Configured())
	assert.Equal(t, "Cidade onde nasceu?", got.Challenge.Question)

	stored, ok := got.Credential.Secret()
	require.True(t, ok)
	assert.True(t, f.deps.Hasher.Verify("Abcdef1", stored))
	assert.True(t, f.deps.Hasher.VerifyVersioned("recife", got.Challenge.AnswerHash, got.Challenge.AnswerSalt, 2))
	assert.Equal(t, []string{events.FirstAccessCompleted}, f.pub.types())

	recovery := NewRecoveryFlow(f.users, f.deps)
	require.NoError(t, recovery.SubmitUsername(ctx, "novo"))
	assert.NoError(t, recovery.SubmitAnswer(ctx, "RECIFE"))
}

func TestFirstAccessFlow_Validation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	u, err := f.users.Create(ctx, newPlainUser("novo"))
	require.NoError(t, err)

	broken := &failingUsers{Repository: f.users}
	flow := NewFirstAccessFlow(broken, u.ID, f.deps)

	assert.ErrorIs(t, flow.ConfirmPassword("x"), ErrFlowState)
	assert.ErrorIs(t, flow.SetSecretChallenge(ctx, "q", "a"), ErrFlowState)

	var pe *PolicyError
	assert.ErrorAs(t, flow.SetPassword("abcdef1"), &pe)
	assert.Equal(t, "uppercase", pe.Code)
	assert.Equal(t, SetPasswordStep, flow.State())

	require.NoError(t, flow.SetPassword("Abcdef1"))
	require.NoError(t, flow.ConfirmPassword("Abcdef1"))

	var ve *ValidationError
	require.ErrorAs(t, flow.SetSecretChallenge(ctx, "Short?", "resposta"), &ve)
	assert.Equal(t, "question", ve.Field)
	require.ErrorAs(t, flow.SetSecretChallenge(ctx, "Pergunta longa o bastante?", " ab "), &ve)
	assert.Equal(t, "answer", ve.Field)
	assert.Zero(t, broken.updates)
	assert.Equal(t, SetSecretChallengeStep, flow.State())
}

func TestFirstAccessFlow_UnknownUser(t *testing.T) {
	f := newFixture(t)

	flow := NewFirstAccessFlow(f.users, "missing", f.deps)
	require.NoError(t, flow.SetPassword("Abcdef1"))
	require.NoError(t, flow.ConfirmPassword("Abcdef1"))
	assert.ErrorIs(t, flow.SetSecretChallenge(context.Background(), "Pergunta longa o bastante?", "resposta"), ErrUserNotFound)
	assert.Equal(t, SetSecretChallengeStep, flow.State())
}
