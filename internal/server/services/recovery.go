package services

import (
	"context"
	"errors"
	"strings"

	"github.com/dmitrijs2005/credkeeper/internal/common"
	"github.com/dmitrijs2005/credkeeper/internal/cryptox"
	"github.com/dmitrijs2005/credkeeper/internal/server/events"
	"github.com/dmitrijs2005/credkeeper/internal/server/models"
	"github.com/dmitrijs2005/credkeeper/internal/server/repositories/users"
)

// RecoveryState is the step a RecoveryFlow is waiting for.
type RecoveryState int

const (
	AwaitingUsername RecoveryState = iota
	AwaitingSecretAnswer
	AwaitingNewPassword
	RecoveryDone
)

func (s RecoveryState) String() string {
	switch s {
	case AwaitingUsername:
		return "awaiting_username"
	case AwaitingSecretAnswer:
		return "awaiting_secret_answer"
	case AwaitingNewPassword:
		return "awaiting_new_password"
	case RecoveryDone:
		return "done"
	default:
		return "unknown"
	}
}

// RecoveryFlow walks one user through username -> secret answer -> new
// password. It is not safe for concurrent use. A failed step leaves the
// state unchanged so the caller can retry it.
type RecoveryFlow struct {
	users users.Repository
	deps  Deps

	state RecoveryState
	user  *models.User
}

func NewRecoveryFlow(repo users.Repository, deps Deps) *RecoveryFlow {
	return &RecoveryFlow{users: repo, deps: deps.withDefaults("recovery")}
}

func (f *RecoveryFlow) State() RecoveryState { return f.state }

func (f *RecoveryFlow) step(step, outcome string) {
	f.deps.Metrics.RecoveryStep(step, outcome)
}

func (f *RecoveryFlow) SubmitUsername(ctx context.Context, username string) error {
	if f.state != AwaitingUsername {
		return ErrFlowState
	}

	name := models.NormalizeUsername(username)
	if name == "" {
		return &ValidationError{Field: "username", Code: "required", Message: "username is required"}
	}

	user, err := f.users.GetByUsername(ctx, name)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			f.step("username", "not_found")
			return ErrUserNotFound
		}
		return storeError("find user", err)
	}
	if !user.Challenge.Configured() {
		f.step("username", "no_challenge")
		return ErrNoChallengeConfigured
	}

	f.user = user
	f.state = AwaitingSecretAnswer
	f.step("username", "ok")
	return nil
}

// MaskedQuestion is empty until a username has been accepted.
func (f *RecoveryFlow) MaskedQuestion() string {
	if f.user == nil || f.user.Challenge == nil {
		return ""
	}
	return MaskQuestion(f.user.Challenge.Question)
}

func (f *RecoveryFlow) SubmitAnswer(ctx context.Context, answer string) error {
	if f.state != AwaitingSecretAnswer {
		return ErrFlowState
	}

	c := f.user.Challenge
	stored := cryptox.ModernSecret{Hash: c.AnswerHash, Salt: c.AnswerSalt}
	if strings.TrimSpace(answer) == "" || !f.deps.Hasher.Verify(models.NormalizeAnswer(answer), stored) {
		f.step("answer", "incorrect")
		f.deps.Logger.Warn(ctx, "incorrect secret answer", "user_id", f.user.ID)
		return ErrIncorrectAnswer
	}

	f.state = AwaitingNewPassword
	f.step("answer", "ok")
	return nil
}

func (f *RecoveryFlow) SubmitNewPassword(ctx context.Context, password string) error {
	if f.state != AwaitingNewPassword {
		return ErrFlowState
	}
	if err := f.deps.Policy.Validate(password); err != nil {
		f.step("password", "policy")
		return err
	}

	if err := f.users.Update(ctx, f.user.ID, credentialPatch(f.deps, password)); err != nil {
		f.step("password", "store_error")
		return storeError("update credential", err)
	}

	f.state = RecoveryDone
	f.step("password", "ok")
	f.deps.publish(ctx, events.PasswordReset, map[string]string{"user_id": f.user.ID, "via": "secret_question"})
	f.deps.Logger.Info(ctx, "password recovered", "user_id", f.user.ID)
	return nil
}
