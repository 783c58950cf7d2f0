package securestore

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/dmitrijs2005/credkeeper/internal/clockx"
	"github.com/dmitrijs2005/credkeeper/internal/common"
	"github.com/dmitrijs2005/credkeeper/internal/cryptox"
	"github.com/dmitrijs2005/credkeeper/internal/metrics"
	"github.com/dmitrijs2005/credkeeper/internal/server/models"
	"github.com/dmitrijs2005/credkeeper/internal/server/repositories/documents"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type note struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

var start = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func newCipher(t *testing.T, secret string, clock clockx.Clock, maxAge time.Duration) *cryptox.EnvelopeCipher {
	t.Helper()
	c, err := cryptox.NewEnvelopeCipher(secret, cryptox.WithClock(clock), cryptox.WithMaxAge(maxAge))
	require.NoError(t, err)
	return c
}

func TestStore_CRUD(t *testing.T) {
	ctx := context.Background()
	clock := clockx.NewManual(start)
	coll := documents.NewMemoryCollection()
	s := New[note](coll, newCipher(t, "secret", clock, 0), Config{Name: "notes", IDPrefix: "note_"})

	id, err := s.Create(ctx, note{Title: "a", Body: "first"})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(id, "note_"))
	assert.Len(t, id, len("note_")+16)

	raw, err := coll.List(ctx)
	require.NoError(t, err)
	require.Len(t, raw, 1)
	assert.Equal(t, id, raw[0].Envelope.Salt)
	assert.NotContains(t, raw[0].Envelope.Content, "first")

	clock.Advance(time.Second)
	require.NoError(t, s.Update(ctx, id, note{Title: "a", Body: "second"}))

	list, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, id, list[0].ID)
	assert.Equal(t, "second", list[0].Payload.Body)
	assert.Equal(t, start.Add(time.Second), list[0].CreatedAt)

	got, err := s.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "second", got.Payload.Body)

	require.NoError(t, s.Remove(ctx, id))
	assert.ErrorIs(t, s.Remove(ctx, id), common.ErrorNotFound)
	_, err = s.Get(ctx, id)
	assert.ErrorIs(t, err, common.ErrorNotFound)

	list, err = s.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestStore_ListDropsForeignRecord(t *testing.T) {
	ctx := context.Background()
	clock := clockx.NewManual(start)
	coll := documents.NewMemoryCollection()

	reg := prometheus.NewRegistry()
	m, err := metrics.New(reg)
	require.NoError(t, err)

	ours := New[note](coll, newCipher(t, "secret", clock, 0), Config{Name: "notes", Metrics: m})
	assert.True(t, strings.HasPrefix(mustCreate(t, ours, note{Title: "named"}), "notes"))
	theirs := New[note](coll, newCipher(t, "other-secret", clock, 0), Config{Name: "notes"})

	for _, title := range []string{"a", "b", "c"} {
		_, err := ours.Create(ctx, note{Title: title})
		require.NoError(t, err)
	}
	foreign, err := theirs.Create(ctx, note{Title: "x"})
	require.NoError(t, err)

	list, err := ours.List(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 4)
	for _, r := range list {
		assert.NotEqual(t, foreign, r.ID)
	}
	n, err := testutil.GatherAndCount(reg, "credkeeper_envelope_rejections_total")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestStore_ListDropsStaleRecords(t *testing.T) {
	ctx := context.Background()
	clock := clockx.NewManual(start)
	coll := documents.NewMemoryCollection()
	s := New[note](coll, newCipher(t, "secret", clock, time.Hour), Config{Name: "notes"})

	_, err := s.Create(ctx, note{Title: "old"})
	require.NoError(t, err)
	clock.Advance(2 * time.Hour)
	_, err = s.Create(ctx, note{Title: "new"})
	require.NoError(t, err)

	list, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "new", list[0].Payload.Title)
}

func mustCreate(t *testing.T, s *Store[note], n note) string {
	t.Helper()
	id, err := s.Create(context.Background(), n)
	require.NoError(t, err)
	return id
}

type failingCollection struct{ documents.Collection }

func (failingCollection) List(context.Context) ([]models.SecureDocument, error) {
	return nil, errors.New("connection refused")
}

func TestStore_ErrorsAndSubscribeSupport(t *testing.T) {
	ctx := context.Background()
	clock := clockx.NewManual(start)

	s := New[note](failingCollection{documents.NewMemoryCollection()}, newCipher(t, "secret", clock, 0), Config{})
	_, err := s.List(ctx)
	assert.Error(t, err)

	assert.ErrorIs(t, s.Subscribe(ctx, func([]Record[note]) {}), ErrNotSubscribable)
}

func TestStore_Subscribe(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	clock := clockx.NewManual(start)
	coll := documents.NewMemoryCollection()
	s := New[note](coll, newCipher(t, "secret", clock, 0), Config{Name: "notes"})

	_, err := s.Create(ctx, note{Title: "a"})
	require.NoError(t, err)

	got := make(chan int, 16)
	done := make(chan error, 1)
	go func() {
		done <- s.Subscribe(ctx, func(records []Record[note]) { got <- len(records) })
	}()

	select {
	case n := <-got:
		assert.Equal(t, 1, n)
	case <-time.After(2 * time.Second):
		t.Fatal("no initial delivery")
	}

	_, err = s.Create(ctx, note{Title: "b"})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		select {
		case n := <-got:
			return n == 2
		default:
			return false
		}
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("subscribe did not stop")
	}
}
