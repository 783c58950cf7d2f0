// Package securestore keeps typed records in a document collection with
// every record sealed by a cryptox.EnvelopeCipher.
package securestore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/credkeeper/internal/common"
	"github.com/dmitrijs2005/credkeeper/internal/cryptox"
	"github.com/dmitrijs2005/credkeeper/internal/logging"
	"github.com/dmitrijs2005/credkeeper/internal/metrics"
	"github.com/dmitrijs2005/credkeeper/internal/server/models"
	"github.com/dmitrijs2005/credkeeper/internal/server/repositories/documents"
)

// ErrNotSubscribable is returned by Subscribe when the collection cannot
// signal changes.
var ErrNotSubscribable = errors.New("collection does not support change notifications")

// Record is a decrypted entry.
type Record[T any] struct {
	ID        string
	Payload   T
	CreatedAt time.Time
}

type Config struct {
	// Name labels log lines and metrics.
	Name string
	// IDPrefix is prepended to generated ids; Name when empty.
	IDPrefix string
	Logger   logging.Logger
	Metrics  *metrics.Metrics
}

// Store encrypts records of type T on the way into a collection and drops
// the ones it cannot open on the way out.
type Store[T any] struct {
	coll   documents.Collection
	cipher *cryptox.EnvelopeCipher
	name   string
	prefix string
	log    logging.Logger
	mtr    *metrics.Metrics
}

func New[T any](coll documents.Collection, cipher *cryptox.EnvelopeCipher, cfg Config) *Store[T] {
	log := cfg.Logger
	if log == nil {
		log = logging.Nop()
	}
	prefix := cfg.IDPrefix
	if prefix == "" {
		prefix = cfg.Name
	}
	return &Store[T]{
		coll:   coll,
		cipher: cipher,
		name:   cfg.Name,
		prefix: prefix,
		log:    log.With("module", "securestore", "collection", cfg.Name),
		mtr:    cfg.Metrics,
	}
}

// Create stores payload under a fresh id, which also serves as the
// record's key-derivation salt.
func (s *Store[T]) Create(ctx context.Context, payload T) (string, error) {
	id, err := s.cipher.SecureID(s.prefix)
	if err != nil {
		return "", err
	}
	if err := s.put(ctx, id, payload); err != nil {
		return "", err
	}
	return id, nil
}

// Update re-encrypts payload under id.
func (s *Store[T]) Update(ctx context.Context, id string, payload T) error {
	return s.put(ctx, id, payload)
}

func (s *Store[T]) put(ctx context.Context, id string, payload T) error {
	env, err := s.cipher.Encrypt(payload, id)
	if err != nil {
		return fmt.Errorf("seal record: %w", err)
	}
	if err := s.coll.Put(ctx, models.SecureDocument{ID: id, Envelope: *env}); err != nil {
		return fmt.Errorf("store record: %w", err)
	}
	return nil
}

// Remove deletes id; an unknown id yields common.ErrorNotFound.
func (s *Store[T]) Remove(ctx context.Context, id string) error {
	return s.coll.Delete(ctx, id)
}

// List returns every record that decrypts. Records that do not are logged
// and skipped.
func (s *Store[T]) List(ctx context.Context) ([]Record[T], error) {
	docs, err := s.coll.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}

	result := make([]Record[T], 0, len(docs))
	for _, d := range docs {
		var payload T
		if err := s.cipher.Decrypt(&d.Envelope, &payload); err != nil {
			s.drop(ctx, d.ID, err)
			continue
		}
		result = append(result, Record[T]{
			ID:        d.ID,
			Payload:   payload,
			CreatedAt: time.UnixMilli(d.Envelope.CreatedAtEpochMillis).UTC(),
		})
	}
	return result, nil
}

// Get returns the record stored under id. A record that cannot be opened
// is reported as common.ErrorNotFound.
func (s *Store[T]) Get(ctx context.Context, id string) (*Record[T], error) {
	records, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	for i := range records {
		if records[i].ID == id {
			return &records[i], nil
		}
	}
	return nil, common.ErrorNotFound
}

func (s *Store[T]) drop(ctx context.Context, id string, err error) {
	reason := "integrity"
	if errors.Is(err, cryptox.ErrExpired) {
		reason = "expired"
	}
	s.mtr.EnvelopeRejected(s.name, reason)
	s.log.Warn(ctx, "record dropped", "id", id, "reason", reason)
}

// Subscribe calls fn with the full decrypted list now and after every
// change, until ctx is done. It blocks; a cancelled ctx returns nil.
func (s *Store[T]) Subscribe(ctx context.Context, fn func([]Record[T])) error {
	n, ok := s.coll.(documents.Notifier)
	if !ok {
		return ErrNotSubscribable
	}

	changes, err := n.Changes(ctx)
	if err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}

	deliver := func() error {
		records, err := s.List(ctx)
		if err != nil {
			return err
		}
		fn(records)
		return nil
	}

	if err := deliver(); err != nil {
		return err
	}
	for {
		select {
		case <-ctx.Done():
			return nil
		case _, ok := <-changes:
			if !ok {
				return nil
			}
			if err := deliver(); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				return err
			}
		}
	}
}
