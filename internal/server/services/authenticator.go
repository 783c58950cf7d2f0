package services

import (
	"context"
	"errors"

	"github.com/dmitrijs2005/credkeeper/internal/common"
	"github.com/dmitrijs2005/credkeeper/internal/cryptox"
	"github.com/dmitrijs2005/credkeeper/internal/server/models"
	"github.com/dmitrijs2005/credkeeper/internal/server/repositories/users"
)

// AuthResult is a successful login.
type AuthResult struct {
	User                *models.User
	FirstAccessRequired bool
	Rehashed            bool
}

// Authenticator checks username/password pairs against stored credentials.
type Authenticator struct {
	users users.Repository
	deps  Deps
}

func NewAuthenticator(repo users.Repository, deps Deps) *Authenticator {
	return &Authenticator{users: repo, deps: deps.withDefaults("auth")}
}

// Authenticate returns common.ErrorUnauthorized for unknown users, wrong
// passwords and inactive accounts alike. A legacy credential that verifies
// is rewritten as a modern one; a failure to do so does not fail the login.
func (a *Authenticator) Authenticate(ctx context.Context, username, password string) (*AuthResult, error) {
	user, err := a.users.GetByUsername(ctx, models.NormalizeUsername(username))
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrorUnauthorized
		}
		return nil, storeError("find user", err)
	}

	stored, ok := user.Credential.Secret()
	if !ok || !a.deps.Hasher.Verify(password, stored) {
		a.deps.Logger.Warn(ctx, "login rejected", "user_id", user.ID)
		return nil, common.ErrorUnauthorized
	}
	if !user.Active {
		a.deps.Logger.Warn(ctx, "login to inactive account", "user_id", user.ID)
		return nil, common.ErrorUnauthorized
	}

	result := &AuthResult{User: user, FirstAccessRequired: user.ForceFirstAccess}

	if stored.Version() == cryptox.VersionLegacy {
		patch := credentialPatch(a.deps, password)
		if err := a.users.Update(ctx, user.ID, patch); err != nil {
			a.deps.Logger.Error(ctx, "legacy credential rehash failed", "user_id", user.ID, "error", err)
		} else {
			patch.Apply(user, a.deps.Clock.Now())
			result.Rehashed = true
			a.deps.Logger.Info(ctx, "legacy credential rehashed", "user_id", user.ID)
		}
	}
	return result, nil
}
