package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/credkeeper/internal/clockx"
	"github.com/dmitrijs2005/credkeeper/internal/cryptox"
	"github.com/dmitrijs2005/credkeeper/internal/server/events"
	"github.com/dmitrijs2005/credkeeper/internal/server/models"
	"github.com/dmitrijs2005/credkeeper/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/credkeeper/internal/server/repositories/users"
	"github.com/stretchr/testify/require"
)

const testSecret = "server-secret"

var testNow = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, e events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, e)
	return nil
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}

type fixture struct {
	deps   Deps
	clock  *clockx.Manual
	pub    *recordingPublisher
	mgr    *repomanager.MemoryRepositoryManager
	runner *repomanager.MemoryRunner
	users  users.Repository
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	clock := clockx.NewManual(testNow)
	h, err := cryptox.NewHasher(testSecret)
	require.NoError(t, err)

	mgr := repomanager.NewMemoryRepositoryManager(clock)
	pub := &recordingPublisher{}
	return &fixture{
		deps:   Deps{Hasher: h, Clock: clock, Events: pub},
		clock:  clock,
		pub:    pub,
		mgr:    mgr,
		runner: repomanager.NewMemoryRunner(mgr),
		users:  mgr.Users(nil),
	}
}

// seedMaria stores the user from the recovery walkthrough: question
// "Nome do primeiro animal?", answer "rex", legacy clear-text password.
func (f *fixture) seedMaria(t *testing.T) *models.User {
	t.Helper()

	answer := f.deps.Hasher.Hash("rex")
	legacy := "senha-antiga"
	u, err := f.users.Create(context.Background(), &models.User{
		Username:        "maria",
		Email:           "maria@example.com",
		Name:            "Maria",
		Level:           "usuario",
		Active:          true,
		LegacyPlaintext: &legacy,
		Credential:      models.ModernCredential(f.deps.Hasher.Hash("Velha123"), testNow),
		Challenge: &models.SecretChallenge{
			Question:   "Nome do primeiro animal?",
			AnswerHash: answer.Hash,
			AnswerSalt: answer.Salt,
		},
	})
	require.NoError(t, err)
	return u
}

// failingUsers wraps a repository and fails selected calls.
type failingUsers struct {
	users.Repository
	getErr    error
	updateErr error
	listErr   error
	updates   int
}

func (f *failingUsers) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	return f.Repository.GetByUsername(ctx, username)
}

func (f *failingUsers) Update(ctx context.Context, id string, patch models.UserPatch) error {
	f.updates++
	if f.updateErr != nil {
		return f.updateErr
	}
	return f.Repository.Update(ctx, id, patch)
}

func (f *failingUsers) List(ctx context.Context) ([]*models.User, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.Repository.List(ctx)
}

var errDBDown = errors.New("db down")

func strPtr(s string) *string { return &s }
