// Package session keeps a Redis liveness cache in front of the
// chat_sessions collection so per-connection heartbeats do not turn
// into Mongo writes. Redis holds the hot "is this session alive"
// answer; Mongo stays the durable record and is written through on a
// coarser cadence.
package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/legacykeep/chat-store/internal/store"
)

// liveness keys expire on their own; a crashed transport never leaves
// a session looking alive.
const keyPrefix = "chat:session:"

// Cache pairs the Redis client with the durable sessions store.
type Cache struct {
	rdb      *redis.Client
	sessions *store.SessionsStore
	// ttl is the session time-to-live applied to both the Redis key and
	// the Mongo expiresAt on write-through.
	ttl time.Duration
	// writeThroughEvery bounds how stale the Mongo lastActivity may be.
	writeThroughEvery time.Duration
}

// New returns a Cache. ttl is the session expiry horizon;
// writeThroughEvery controls how often a heartbeat also touches Mongo.
func New(rdb *redis.Client, sessions *store.SessionsStore, ttl, writeThroughEvery time.Duration) *Cache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	if writeThroughEvery <= 0 || writeThroughEvery > ttl {
		writeThroughEvery = ttl / 3
	}
	return &Cache{rdb: rdb, sessions: sessions, ttl: ttl, writeThroughEvery: writeThroughEvery}
}

func key(sessionID string) string {
	return keyPrefix + sessionID
}

// Establish registers a new connection: durable upsert first, then the
// liveness key. Redis failing after the upsert leaves only a cold
// cache, never a ghost session.
func (c *Cache) Establish(ctx context.Context, sessionID string, userID int64) error {
	now := time.Now().UTC()
	err := c.sessions.Upsert(ctx, &store.ChatSession{
		SessionID:        sessionID,
		UserID:           userID,
		ConnectionStatus: "CONNECTED",
		LastActivity:     now,
		ExpiresAt:        now.Add(c.ttl),
	})
	if err != nil {
		return fmt.Errorf("establish session %s: %w", sessionID, err)
	}
	return c.rdb.Set(ctx, key(sessionID), now.Unix(), c.ttl).Err()
}

// Heartbeat refreshes the liveness key and, when the last durable
// touch is older than writeThroughEvery, also bumps Mongo. The NX-miss
// path (key expired but Mongo record still alive) falls back to a
// durable touch too.
func (c *Cache) Heartbeat(ctx context.Context, sessionID string) error {
	now := time.Now().UTC()

	// Refresh the key only if it exists; a dead session must not be
	// resurrected from the cache side.
	ok, err := c.rdb.Expire(ctx, key(sessionID), c.ttl).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return err
	}

	age := c.writeThroughEvery
	if ok {
		// Cheap staleness probe: the key value is the unix time of the
		// last durable touch.
		if v, err := c.rdb.Get(ctx, key(sessionID)).Int64(); err == nil {
			age = now.Sub(time.Unix(v, 0))
		}
	}
	if !ok || age >= c.writeThroughEvery {
		if err := c.sessions.Touch(ctx, sessionID, c.ttl); err != nil {
			return err
		}
		return c.rdb.Set(ctx, key(sessionID), now.Unix(), c.ttl).Err()
	}
	return nil
}

// Alive answers the hot-path liveness question from Redis alone.
func (c *Cache) Alive(ctx context.Context, sessionID string) (bool, error) {
	n, err := c.rdb.Exists(ctx, key(sessionID)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Logout removes both the liveness key and the durable record.
func (c *Cache) Logout(ctx context.Context, sessionID string) error {
	if err := c.rdb.Del(ctx, key(sessionID)).Err(); err != nil {
		return err
	}
	err := c.sessions.Remove(ctx, sessionID)
	if errors.Is(err, store.ErrNotFound) {
		// Already expired; logout is idempotent.
		return nil
	}
	return err
}
