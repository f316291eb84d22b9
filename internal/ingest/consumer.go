// Package ingest consumes the chat delivery pipeline's message feed
// and writes it into the store. The feed is at-least-once; the unique
// messageUuid index turns redeliveries into no-ops instead of
// duplicate messages.
package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/legacykeep/chat-store/internal/store"
)

// Consumer reads message events from Kafka and inserts them.
type Consumer struct {
	reader   *kafka.Reader
	messages *store.MessagesStore
	log      *zap.Logger
}

// Config carries the Kafka connection settings.
type Config struct {
	Brokers []string
	Topic   string
	GroupID string
}

// New returns a Consumer for the given feed.
func New(cfg Config, messages *store.MessagesStore, log *zap.Logger) *Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers: cfg.Brokers,
		Topic:   cfg.Topic,
		GroupID: cfg.GroupID,
	})
	return &Consumer{reader: reader, messages: messages, log: log}
}

// Run consumes until ctx is cancelled. Transient read errors back off
// and retry; a malformed event is logged and skipped (the offset is
// already committed by ReadMessage, re-reading it would loop forever).
func (c *Consumer) Run(ctx context.Context) {
	for {
		m, err := c.reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			c.log.Error("kafka read failed", zap.Error(err))
			select {
			case <-time.After(time.Second):
			case <-ctx.Done():
				return
			}
			continue
		}

		var msg store.Message
		if err := json.Unmarshal(m.Value, &msg); err != nil {
			c.log.Warn("malformed message event",
				zap.String("topic", m.Topic),
				zap.Int64("offset", m.Offset),
				zap.Error(err))
			continue
		}

		err = c.messages.Insert(ctx, &msg)
		switch {
		case err == nil:
			c.log.Debug("message ingested",
				zap.String("messageUuid", msg.MessageUUID),
				zap.Int64("chatRoomId", msg.ChatRoomID))
		case errors.Is(err, store.ErrDuplicateKey):
			// Redelivery; the first delivery already landed.
			c.log.Debug("duplicate delivery skipped",
				zap.String("messageUuid", msg.MessageUUID))
		default:
			c.log.Error("message insert failed",
				zap.String("messageUuid", msg.MessageUUID),
				zap.Error(err))
		}
	}
}

// Close releases the underlying reader.
func (c *Consumer) Close() error {
	return c.reader.Close()
}
