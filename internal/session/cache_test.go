package session

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/legacykeep/chat-store/internal/db"
	"github.com/legacykeep/chat-store/internal/store"
)

// Integration test; requires both MONGODB_URI and REDIS_ADDR.

func testCache(t *testing.T) (*Cache, *store.SessionsStore) {
	t.Helper()

	uri := os.Getenv("MONGODB_URI")
	if uri == "" {
		t.Skip("MONGODB_URI not set; skipping integration test")
	}
	redisAddr := os.Getenv("REDIS_ADDR")
	if redisAddr == "" {
		t.Skip("REDIS_ADDR not set; skipping integration test")
	}

	ctx := context.Background()
	client, err := mongo.Connect(options.Client().ApplyURI(uri))
	if err != nil {
		t.Fatalf("failed to connect to DB: %v", err)
	}
	database := client.Database("chat_session_test")
	if err := database.Drop(ctx); err != nil {
		t.Fatalf("failed to reset test database: %v", err)
	}

	rdb := redis.NewClient(&redis.Options{Addr: redisAddr})
	if err := rdb.Ping(ctx).Err(); err != nil {
		t.Fatalf("failed to ping redis: %v", err)
	}

	t.Cleanup(func() {
		_ = database.Drop(context.Background())
		_ = client.Disconnect(context.Background())
		_ = rdb.Close()
	})

	sessions := store.NewSessionsStore(database.Collection(db.CollChatSessions))
	return New(rdb, sessions, time.Minute, 0), sessions
}

func TestCache_EstablishAliveLogout(t *testing.T) {
	c, sessions := testCache(t)
	ctx := context.Background()

	if err := c.Establish(ctx, "conn-1", 100); err != nil {
		t.Fatalf("Establish failed: %v", err)
	}

	alive, err := c.Alive(ctx, "conn-1")
	if err != nil {
		t.Fatalf("Alive failed: %v", err)
	}
	if !alive {
		t.Fatal("freshly established session not alive")
	}
	if _, err := sessions.Get(ctx, "conn-1"); err != nil {
		t.Fatalf("durable record missing: %v", err)
	}

	if err := c.Logout(ctx, "conn-1"); err != nil {
		t.Fatalf("Logout failed: %v", err)
	}
	alive, err = c.Alive(ctx, "conn-1")
	if err != nil {
		t.Fatalf("Alive failed: %v", err)
	}
	if alive {
		t.Fatal("session alive after logout")
	}
	if _, err := sessions.Get(ctx, "conn-1"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("durable record survived logout: %v", err)
	}

	// Logout of an already-gone session is idempotent.
	if err := c.Logout(ctx, "conn-1"); err != nil {
		t.Fatalf("repeat Logout failed: %v", err)
	}
}

func TestCache_HeartbeatWriteThrough(t *testing.T) {
	c, sessions := testCache(t)
	ctx := context.Background()

	if err := c.Establish(ctx, "conn-2", 100); err != nil {
		t.Fatalf("Establish failed: %v", err)
	}
	before, err := sessions.Get(ctx, "conn-2")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}

	// The key value carries the last durable touch; backdating it past
	// the write-through window forces the next heartbeat to hit Mongo.
	stale := time.Now().UTC().Add(-c.writeThroughEvery - time.Second)
	if err := c.rdb.Set(ctx, key("conn-2"), stale.Unix(), c.ttl).Err(); err != nil {
		t.Fatalf("backdating key: %v", err)
	}
	if err := c.Heartbeat(ctx, "conn-2"); err != nil {
		t.Fatalf("Heartbeat failed: %v", err)
	}

	after, err := sessions.Get(ctx, "conn-2")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if !after.LastActivity.After(before.LastActivity) {
		t.Fatal("stale heartbeat did not write through to Mongo")
	}

	// A cache miss with a live durable record repopulates the key.
	if err := c.rdb.Del(ctx, key("conn-2")).Err(); err != nil {
		t.Fatalf("deleting key: %v", err)
	}
	if err := c.Heartbeat(ctx, "conn-2"); err != nil {
		t.Fatalf("Heartbeat after miss failed: %v", err)
	}
	alive, err := c.Alive(ctx, "conn-2")
	if err != nil {
		t.Fatalf("Alive failed: %v", err)
	}
	if !alive {
		t.Fatal("heartbeat did not repopulate the liveness key")
	}

	// With neither key nor record, the heartbeat reports the session gone.
	if err := c.Heartbeat(ctx, "never-established"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
