// Package redis implements the offline delivery queue on Redis lists.
package redis

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"github.com/vedran77/dmchat/internal/repository"
)

// OfflineQueue keeps one list per user and kind under user:{id}:{kind}.
// Producers LPUSH, so consumers drain the list FIFO with RPOP.
type OfflineQueue struct {
	client goredis.UniversalClient
}

func NewOfflineQueue(client goredis.UniversalClient) *OfflineQueue {
	return &OfflineQueue{client: client}
}

// NewClient accepts either a redis:// URL or a bare host:port address.
func NewClient(addr string) (*goredis.Client, error) {
	if strings.Contains(addr, "://") {
		opts, err := goredis.ParseURL(addr)
		if err != nil {
			return nil, fmt.Errorf("parsing redis url: %w", err)
		}
		return goredis.NewClient(opts), nil
	}
	return goredis.NewClient(&goredis.Options{Addr: addr}), nil
}

func (q *OfflineQueue) Push(ctx context.Context, userID uuid.UUID, kind repository.OfflineKind, payload string) error {
	if err := q.client.LPush(ctx, Key(userID, kind), payload).Err(); err != nil {
		return fmt.Errorf("pushing %s for %s: %w", kind, userID, err)
	}
	return nil
}

// Pending returns the queued payloads oldest first without consuming them.
func (q *OfflineQueue) Pending(ctx context.Context, userID uuid.UUID, kind repository.OfflineKind) ([]string, error) {
	items, err := q.client.LRange(ctx, Key(userID, kind), 0, -1).Result()
	if err != nil {
		return nil, err
	}
	for i, j := 0, len(items)-1; i < j; i, j = i+1, j-1 {
		items[i], items[j] = items[j], items[i]
	}
	return items, nil
}

func Key(userID uuid.UUID, kind repository.OfflineKind) string {
	return fmt.Sprintf("user:%s:%s", userID, kind)
}
