package documents

import (
	"context"
	"sort"
	"sync"

	"github.com/dmitrijs2005/credkeeper/internal/common"
	"github.com/dmitrijs2005/credkeeper/internal/server/models"
)

// MemoryCollection is a process-local Collection and Notifier.
type MemoryCollection struct {
	mu   sync.Mutex
	docs map[string]models.SecureDocument
	subs map[chan struct{}]struct{}
}

func NewMemoryCollection() *MemoryCollection {
	return &MemoryCollection{
		docs: make(map[string]models.SecureDocument),
		subs: make(map[chan struct{}]struct{}),
	}
}

func (c *MemoryCollection) Put(ctx context.Context, doc models.SecureDocument) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.docs[doc.ID] = doc
	c.notifyLocked()
	return nil
}

func (c *MemoryCollection) Delete(ctx context.Context, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.docs[id]; !ok {
		return common.ErrorNotFound
	}
	delete(c.docs, id)
	c.notifyLocked()
	return nil
}

func (c *MemoryCollection) List(ctx context.Context) ([]models.SecureDocument, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	result := make([]models.SecureDocument, 0, len(c.docs))
	for _, d := range c.docs {
		result = append(result, d)
	}
	sortDocuments(result)
	return result, nil
}

func (c *MemoryCollection) Changes(ctx context.Context) (<-chan struct{}, error) {
	ch := make(chan struct{}, 1)

	c.mu.Lock()
	c.subs[ch] = struct{}{}
	c.mu.Unlock()

	go func() {
		<-ctx.Done()
		c.mu.Lock()
		delete(c.subs, ch)
		c.mu.Unlock()
		close(ch)
	}()
	return ch, nil
}

// notifyLocked never blocks: a pending signal already covers this write.
func (c *MemoryCollection) notifyLocked() {
	for ch := range c.subs {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

// sortDocuments orders by creation time, then id.
func sortDocuments(docs []models.SecureDocument) {
	sort.Slice(docs, func(i, j int) bool {
		a, b := docs[i], docs[j]
		if a.Envelope.CreatedAtEpochMillis != b.Envelope.CreatedAtEpochMillis {
			return a.Envelope.CreatedAtEpochMillis < b.Envelope.CreatedAtEpochMillis
		}
		return a.ID < b.ID
	})
}
