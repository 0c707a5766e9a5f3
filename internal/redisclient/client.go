package redisclient

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

//go:embed scripts/append_history.lua
var appendHistoryScript string

// DefaultHistoryLimit caps the number of messages kept per session
const DefaultHistoryLimit = 100

type Client struct {
	rdb          *redis.Client
	appendScript *redis.Script
	sessionTTL   time.Duration
	historyLimit int
}

// NewClient creates a new Redis client with Lua scripts loaded
func NewClient(addr, password string, db int, sessionTTL time.Duration) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return &Client{
		rdb:          rdb,
		appendScript: redis.NewScript(appendHistoryScript),
		sessionTTL:   sessionTTL,
		historyLimit: DefaultHistoryLimit,
	}, nil
}

// GetClient returns the underlying Redis client
func (c *Client) GetClient() *redis.Client {
	return c.rdb
}

// Close closes the Redis connection
func (c *Client) Close() error {
	return c.rdb.Close()
}

func historyKey(sessionID string) string {
	return fmt.Sprintf("session:%s:history", sessionID)
}

// AppendHistory atomically appends messages to a session, trims it and refreshes its TTL
func (c *Client) AppendHistory(ctx context.Context, sessionID string, messages ...any) error {
	if len(messages) == 0 {
		return nil
	}

	args := make([]interface{}, 0, len(messages)+2)
	args = append(args, c.historyLimit, c.sessionTTL.Milliseconds())
	for _, msg := range messages {
		encoded, err := json.Marshal(msg)
		if err != nil {
			return fmt.Errorf("failed to encode history message: %w", err)
		}
		args = append(args, string(encoded))
	}

	if err := c.appendScript.Run(ctx, c.rdb, []string{historyKey(sessionID)}, args...).Err(); err != nil {
		return fmt.Errorf("append history script failed: %w", err)
	}
	return nil
}

// LoadHistory decodes every stored message of a session into out, which must point to a slice
func (c *Client) LoadHistory(ctx context.Context, sessionID string, out any) error {
	raw, err := c.rdb.LRange(ctx, historyKey(sessionID), 0, -1).Result()
	if err != nil {
		return fmt.Errorf("failed to load history: %w", err)
	}

	buf := make([]json.RawMessage, 0, len(raw))
	for _, item := range raw {
		buf = append(buf, json.RawMessage(item))
	}
	encoded, err := json.Marshal(buf)
	if err != nil {
		return err
	}
	return json.Unmarshal(encoded, out)
}

// ClearHistory deletes a session
func (c *Client) ClearHistory(ctx context.Context, sessionID string) error {
	return c.rdb.Del(ctx, historyKey(sessionID)).Err()
}

// SetIdempotentResult stores the result of an idempotent request with TTL
func (c *Client) SetIdempotentResult(ctx context.Context, key string, value any, ttl time.Duration) error {
	encoded, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to encode idempotent result: %w", err)
	}
	return c.rdb.Set(ctx, fmt.Sprintf("idempotency:%s", key), encoded, ttl).Err()
}

// GetIdempotentResult loads a stored result into out, reporting whether the key existed
func (c *Client) GetIdempotentResult(ctx context.Context, key string, out any) (bool, error) {
	raw, err := c.rdb.Get(ctx, fmt.Sprintf("idempotency:%s", key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return false, fmt.Errorf("failed to decode idempotent result: %w", err)
	}
	return true, nil
}

// AcquireLock acquires a distributed lock
func (c *Client) AcquireLock(ctx context.Context, lockKey string, ttl time.Duration) (bool, error) {
	return c.rdb.SetNX(ctx, fmt.Sprintf("lock:%s", lockKey), "1", ttl).Result()
}

// ReleaseLock releases a distributed lock
func (c *Client) ReleaseLock(ctx context.Context, lockKey string) error {
	return c.rdb.Del(ctx, fmt.Sprintf("lock:%s", lockKey)).Err()
}
