// Package db manages the MongoDB connection, collection handles and
// index provisioning for the message store.
package db

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"
)

// Client wraps mongo.Client and exposes the store's collections.
type Client struct {
	// client is the underlying MongoDB connection (thread-safe, shared
	// by every store).
	client *mongo.Client

	// db is the database holding messages, media_files and
	// chat_sessions.
	db *mongo.Database
}

// New connects to MongoDB, verifies the connection and returns a
// Client. dbName falls back to "chat_messages" when empty.
func New(ctx context.Context, mongoURI, dbName string) (*Client, error) {
	if dbName == "" {
		dbName = "chat_messages"
	}

	// SetConnectTimeout: fail fast if MongoDB is unreachable.
	opts := options.Client().
		ApplyURI(mongoURI).
		SetConnectTimeout(10 * time.Second)

	client, err := mongo.Connect(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	// Ping with its own timeout; Connect alone does not prove the
	// server is reachable.
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	return &Client{
		client: client,
		db:     client.Database(dbName),
	}, nil
}

// MessagesCollection returns the messages collection.
func (c *Client) MessagesCollection() *mongo.Collection {
	return c.db.Collection(CollMessages)
}

// MediaFilesCollection returns the media_files collection.
func (c *Client) MediaFilesCollection() *mongo.Collection {
	return c.db.Collection(CollMediaFiles)
}

// ChatSessionsCollection returns the chat_sessions collection.
func (c *Client) ChatSessionsCollection() *mongo.Collection {
	return c.db.Collection(CollChatSessions)
}

// Close disconnects from MongoDB.
func (c *Client) Close(ctx context.Context) error {
	return c.client.Disconnect(ctx)
}

// EnsureIndexes provisions the full index catalog. The caller treats
// any error as fatal: the service must not serve traffic against a
// collection with an incomplete index set.
func (c *Client) EnsureIndexes(ctx context.Context) error {
	for _, coll := range []string{CollMessages, CollMediaFiles, CollChatSessions} {
		specs := CatalogFor(coll)
		models := make([]mongo.IndexModel, 0, len(specs))
		for _, s := range specs {
			models = append(models, s.Model())
		}
		if _, err := c.db.Collection(coll).Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("failed to create %s indexes: %w", coll, err)
		}
	}
	return nil
}
