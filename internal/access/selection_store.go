package access

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/adminwatch/internal/cache"
)

const (
	keySelection = "adminwatch:selection:%s"
	selectionTTL = 30 * 24 * time.Hour
)

// SelectionStore remembers the last resolved country selection per admin.
type SelectionStore interface {
	Get(ctx context.Context, adminID snowflake.ID) (string, error)
	Set(ctx context.Context, adminID snowflake.ID, selection string) error
}

type redisSelectionStore struct {
	client *redis.Client
}

type memorySelectionStore struct {
	cache cache.Cache[string, string]
}

// NewSelectionStore uses redis when configured and a process-local cache otherwise.
func NewSelectionStore(client *redis.Client) SelectionStore {
	if client == nil {
		return &memorySelectionStore{cache: cache.NewTTLCache[string, string](time.Hour)}
	}
	return &redisSelectionStore{client: client}
}

func (s *redisSelectionStore) Get(ctx context.Context, adminID snowflake.ID) (string, error) {
	value, err := s.client.Get(ctx, selectionKey(adminID)).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return value, nil
}

func (s *redisSelectionStore) Set(ctx context.Context, adminID snowflake.ID, selection string) error {
	if selection == "" {
		return s.client.Del(ctx, selectionKey(adminID)).Err()
	}
	return s.client.Set(ctx, selectionKey(adminID), selection, selectionTTL).Err()
}

func (s *memorySelectionStore) Get(_ context.Context, adminID snowflake.ID) (string, error) {
	value, _ := s.cache.Get(selectionKey(adminID))
	return value, nil
}

func (s *memorySelectionStore) Set(_ context.Context, adminID snowflake.ID, selection string) error {
	if selection == "" {
		s.cache.Delete(selectionKey(adminID))
		return nil
	}
	s.cache.Set(selectionKey(adminID), selection, selectionTTL)
	return nil
}

func selectionKey(adminID snowflake.ID) string {
	return fmt.Sprintf(keySelection, adminID.String())
}
