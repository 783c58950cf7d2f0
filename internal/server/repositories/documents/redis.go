package documents

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/credkeeper/internal/common"
	"github.com/dmitrijs2005/credkeeper/internal/server/models"
	red "github.com/redis/go-redis/v9"
)

const defaultRedisPrefix = "credkeeper:docs"

// RedisCollection keeps a collection in one Redis hash (id -> envelope
// JSON) and announces writes on a pub/sub channel next to it.
type RedisCollection struct {
	client  *red.Client
	key     string
	channel string
}

func NewRedisCollection(client *red.Client, keyPrefix, name string) *RedisCollection {
	prefix := strings.TrimSpace(keyPrefix)
	if prefix == "" {
		prefix = defaultRedisPrefix
	}
	key := fmt.Sprintf("%s:%s", prefix, name)
	return &RedisCollection{client: client, key: key, channel: key + ":changes"}
}

func (c *RedisCollection) Put(ctx context.Context, doc models.SecureDocument) error {
	raw, err := json.Marshal(doc.Envelope)
	if err != nil {
		return fmt.Errorf("encode envelope: %w", err)
	}

	pipe := c.client.TxPipeline()
	pipe.HSet(ctx, c.key, doc.ID, raw)
	pipe.Publish(ctx, c.channel, doc.ID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis put document: %w", err)
	}
	return nil
}

func (c *RedisCollection) Delete(ctx context.Context, id string) error {
	n, err := c.client.HDel(ctx, c.key, id).Result()
	if err != nil {
		return fmt.Errorf("redis delete document: %w", err)
	}
	if n == 0 {
		return common.ErrorNotFound
	}
	if err := c.client.Publish(ctx, c.channel, id).Err(); err != nil {
		return fmt.Errorf("redis publish change: %w", err)
	}
	return nil
}

// List returns every entry. A value that is not valid envelope JSON is
// returned with an empty envelope so the caller's integrity check drops it.
func (c *RedisCollection) List(ctx context.Context) ([]models.SecureDocument, error) {
	values, err := c.client.HGetAll(ctx, c.key).Result()
	if err != nil {
		return nil, fmt.Errorf("redis list documents: %w", err)
	}

	result := make([]models.SecureDocument, 0, len(values))
	for id, raw := range values {
		d := models.SecureDocument{ID: id}
		_ = json.Unmarshal([]byte(raw), &d.Envelope)
		result = append(result, d)
	}
	sortDocuments(result)
	return result, nil
}

func (c *RedisCollection) Changes(ctx context.Context) (<-chan struct{}, error) {
	sub := c.client.Subscribe(ctx, c.channel)
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, fmt.Errorf("redis subscribe: %w", err)
	}

	out := make(chan struct{}, 1)
	go func() {
		defer close(out)
		defer sub.Close()

		msgs := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case _, ok := <-msgs:
				if !ok {
					return
				}
				select {
				case out <- struct{}{}:
				default:
				}
			}
		}
	}()
	return out, nil
}
