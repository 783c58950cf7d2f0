package services

import (
	"context"
	"errors"
	"strings"
	"unicode/utf8"

	"github.com/dmitrijs2005/credkeeper/internal/common"
	"github.com/dmitrijs2005/credkeeper/internal/server/events"
	"github.com/dmitrijs2005/credkeeper/internal/server/models"
	"github.com/dmitrijs2005/credkeeper/internal/server/repositories/users"
)

const (
	minQuestionLength = 10
	minAnswerLength   = 3
)

type FirstAccessState int

const (
	SetPasswordStep FirstAccessState = iota
	ConfirmPasswordStep
	SetSecretChallengeStep
	FirstAccessDone
)

// FirstAccessFlow makes a new user choose a password and a secret
// question before first use. Nothing is written until the last step.
type FirstAccessFlow struct {
	users  users.Repository
	deps   Deps
	userID string

	state    FirstAccessState
	password string
}

func NewFirstAccessFlow(repo users.Repository, userID string, deps Deps) *FirstAccessFlow {
	return &FirstAccessFlow{users: repo, userID: userID, deps: deps.withDefaults("first_access")}
}

func (f *FirstAccessFlow) State() FirstAccessState { return f.state }

func (f *FirstAccessFlow) SetPassword(password string) error {
	if f.state != SetPasswordStep {
		return ErrFlowState
	}
	if err := f.deps.Policy.Validate(password); err != nil {
		return err
	}
	f.password = password
	f.state = ConfirmPasswordStep
	return nil
}

func (f *FirstAccessFlow) ConfirmPassword(confirmation string) error {
	if f.state != ConfirmPasswordStep {
		return ErrFlowState
	}
	if confirmation != f.password {
		return ErrPasswordMismatch
	}
	if err := f.deps.Policy.Validate(confirmation); err != nil {
		return err
	}
	f.state = SetSecretChallengeStep
	return nil
}

// SetSecretChallenge stores password, challenge and the cleared
// first-access flag as a single update.
func (f *FirstAccessFlow) SetSecretChallenge(ctx context.Context, question, answer string) error {
	if f.state != SetSecretChallengeStep {
		return ErrFlowState
	}

	q := strings.TrimSpace(question)
	if utf8.RuneCountInString(q) < minQuestionLength {
		return &ValidationError{Field: "question", Code: "min_length", Message: "question must be at least 10 characters long"}
	}
	a := models.NormalizeAnswer(answer)
	if utf8.RuneCountInString(a) < minAnswerLength {
		return &ValidationError{Field: "answer", Code: "min_length", Message: "answer must be at least 3 characters long"}
	}

	hashed := f.deps.Hasher.Hash(a)
	done := false

	patch := credentialPatch(f.deps, f.password)
	patch.Challenge = &models.SecretChallenge{Question: q, AnswerHash: hashed.Hash, AnswerSalt: hashed.Salt}
	patch.ForceFirstAccess = &done

	if err := f.users.Update(ctx, f.userID, patch); err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return ErrUserNotFound
		}
		return storeError("complete first access", err)
	}

	f.password = ""
	f.state = FirstAccessDone
	f.deps.Metrics.FirstAccessCompleted()
	f.deps.publish(ctx, events.FirstAccessCompleted, map[string]string{"user_id": f.userID})
	f.deps.Logger.Info(ctx, "first access completed", "user_id", f.userID)
	return nil
}
