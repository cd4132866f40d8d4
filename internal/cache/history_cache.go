package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"research-chatbot/internal/model"
)

const (
	historyKeyPrefix = "chat:history:"
	dirtyKeyPrefix   = "chat:history:dirty:"
)

// HistoryCache keeps the recent turn window of each session in redis so chat
// requests do not hit MySQL on every message. A dirty marker is set whenever a
// turn is appended but not yet flushed to the database; readers treat a dirty
// session as a cache miss.
type HistoryCache struct {
	rdb      *redis.Client
	ttl      time.Duration
	dirtyTTL time.Duration
}

func NewHistoryCache(rdb *redis.Client, ttl, dirtyTTL time.Duration) *HistoryCache {
	return &HistoryCache{rdb: rdb, ttl: ttl, dirtyTTL: dirtyTTL}
}

// Get returns the cached window, or nil, nil on a miss. A dirty marker also
// counts as a miss so callers re-read the authoritative store.
func (c *HistoryCache) Get(ctx context.Context, sessionID string) ([]model.Turn, error) {
	dirty, err := c.rdb.Exists(ctx, dirtyKeyPrefix+sessionID).Result()
	if err != nil {
		return nil, fmt.Errorf("check dirty marker failed: %w", err)
	}
	if dirty > 0 {
		return nil, nil
	}

	raw, err := c.rdb.Get(ctx, historyKeyPrefix+sessionID).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("get history cache failed: %w", err)
	}

	var turns []model.Turn
	if err := json.Unmarshal(raw, &turns); err != nil {
		return nil, fmt.Errorf("decode cached history failed: %w", err)
	}
	return turns, nil
}

// Set stores the window and clears the dirty marker in one pipeline.
func (c *HistoryCache) Set(ctx context.Context, sessionID string, turns []model.Turn) error {
	raw, err := json.Marshal(turns)
	if err != nil {
		return fmt.Errorf("encode history failed: %w", err)
	}

	pipe := c.rdb.TxPipeline()
	pipe.Set(ctx, historyKeyPrefix+sessionID, raw, c.ttl)
	pipe.Del(ctx, dirtyKeyPrefix+sessionID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("set history cache failed: %w", err)
	}
	return nil
}

// MarkDirty invalidates the cached window after an append whose database
// write is still in flight.
func (c *HistoryCache) MarkDirty(ctx context.Context, sessionID string) error {
	pipe := c.rdb.TxPipeline()
	pipe.Set(ctx, dirtyKeyPrefix+sessionID, "1", c.dirtyTTL)
	pipe.Del(ctx, historyKeyPrefix+sessionID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("mark history dirty failed: %w", err)
	}
	return nil
}

// ClearDirty removes the dirty marker once the persist worker has flushed the
// turn to MySQL.
func (c *HistoryCache) ClearDirty(ctx context.Context, sessionID string) error {
	if err := c.rdb.Del(ctx, dirtyKeyPrefix+sessionID).Err(); err != nil {
		return fmt.Errorf("clear dirty marker failed: %w", err)
	}
	return nil
}

func (c *HistoryCache) Invalidate(ctx context.Context, sessionID string) error {
	if err := c.rdb.Del(ctx, historyKeyPrefix+sessionID).Err(); err != nil {
		return fmt.Errorf("invalidate history cache failed: %w", err)
	}
	return nil
}
