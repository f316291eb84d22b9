package store

import (
	"context"
	"os"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/legacykeep/chat-store/internal/db"
)

// These tests are integration tests and require a running MongoDB instance.
// Set MONGODB_URI in the environment before running them. Each test gets
// a freshly provisioned chat_store_test database and drops it on cleanup.

func testDatabase(t *testing.T) *mongo.Database {
	t.Helper()

	uri := os.Getenv("MONGODB_URI")
	if uri == "" {
		t.Skip("MONGODB_URI not set; skipping integration test")
	}

	ctx := context.Background()
	client, err := mongo.Connect(options.Client().ApplyURI(uri))
	if err != nil {
		t.Fatalf("failed to connect to DB: %v", err)
	}

	database := client.Database("chat_store_test")
	if err := database.Drop(ctx); err != nil {
		t.Fatalf("failed to reset test database: %v", err)
	}

	// The stores hint every query, so the catalog must be in place
	// before the first find.
	for _, coll := range []string{db.CollMessages, db.CollMediaFiles, db.CollChatSessions} {
		specs := db.CatalogFor(coll)
		models := make([]mongo.IndexModel, 0, len(specs))
		for _, s := range specs {
			models = append(models, s.Model())
		}
		if _, err := database.Collection(coll).Indexes().CreateMany(ctx, models); err != nil {
			t.Fatalf("failed to provision %s indexes: %v", coll, err)
		}
	}

	t.Cleanup(func() {
		_ = database.Drop(context.Background())
		_ = client.Disconnect(context.Background())
	})
	return database
}

func testMessagesStore(t *testing.T) *MessagesStore {
	t.Helper()
	return NewMessagesStore(testDatabase(t).Collection(db.CollMessages))
}

// testMessage builds a minimal valid message for room, createdAt pushed
// back by age so ordering tests get distinct timestamps.
func testMessage(room int64, age time.Duration) *Message {
	return &Message{
		ChatRoomID:   room,
		SenderUserID: 100,
		MessageType:  "TEXT",
		Status:       "SENT",
		Content:      "hello there",
		CreatedAt:    time.Now().UTC().Add(-age),
	}
}
