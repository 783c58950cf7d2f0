// Package documents provides the persisted collections behind the secure
// document store. A collection only ever sees envelopes, never plaintext.
package documents

import (
	"context"

	"github.com/dmitrijs2005/credkeeper/internal/server/models"
)

// Collection is a keyed set of encrypted documents. Put inserts or
// replaces; Delete returns common.ErrorNotFound for an unknown id.
type Collection interface {
	Put(ctx context.Context, doc models.SecureDocument) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context) ([]models.SecureDocument, error)
}

// Notifier is implemented by collections that can signal changes. The
// returned channel receives a value after every write and is closed once
// ctx is done. Signals may be coalesced.
type Notifier interface {
	Changes(ctx context.Context) (<-chan struct{}, error)
}
