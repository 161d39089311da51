package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/benvon/soonish/internal/planner"
)

const (
	// DefaultBoardKey is the Redis key holding the board snapshot
	DefaultBoardKey = "soonish:board"
	// DefaultBoardTTL bounds how long a snapshot survives without a refresh
	DefaultBoardTTL = 26 * time.Hour
)

// ErrCacheMiss is returned when no usable snapshot is cached
var ErrCacheMiss = errors.New("board cache miss")

// kvStore is the subset of the Redis client the cache uses
type kvStore interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// BoardCache stores the latest board snapshot. A snapshot is only served
// while it is fresh: buckets, remaining texts and ranking move with the date
// and with every deadline that passes.
type BoardCache struct {
	client kvStore
	key    string
	ttl    time.Duration
}

// NewBoardCache creates a board cache over a Redis client
func NewBoardCache(client redis.Cmdable) *BoardCache {
	return &BoardCache{client: client, key: DefaultBoardKey, ttl: DefaultBoardTTL}
}

// Get returns the cached board if it is still fresh at now
func (c *BoardCache) Get(ctx context.Context, now time.Time) (*planner.Board, error) {
	raw, err := c.client.Get(ctx, c.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read board cache: %w", err)
	}

	var board planner.Board
	if err := json.Unmarshal(raw, &board); err != nil {
		return nil, fmt.Errorf("failed to decode cached board: %w", err)
	}
	if !board.Fresh(now) {
		return nil, ErrCacheMiss
	}
	return &board, nil
}

// Set stores board as the current snapshot
func (c *BoardCache) Set(ctx context.Context, board *planner.Board) error {
	raw, err := json.Marshal(board)
	if err != nil {
		return fmt.Errorf("failed to encode board: %w", err)
	}
	if err := c.client.Set(ctx, c.key, raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to write board cache: %w", err)
	}
	return nil
}

// Invalidate drops the cached snapshot
func (c *BoardCache) Invalidate(ctx context.Context) error {
	if err := c.client.Del(ctx, c.key).Err(); err != nil {
		return fmt.Errorf("failed to invalidate board cache: %w", err)
	}
	return nil
}
