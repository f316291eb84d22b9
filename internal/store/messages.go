package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/legacykeep/chat-store/internal/normalize"
)

// MessagesStore provides all operations over the messages collection.
// Every mutation is a single atomic field-level update; there are no
// read-modify-write round trips from callers.
type MessagesStore struct {
	coll *mongo.Collection
}

// NewMessagesStore returns a MessagesStore using the given collection.
func NewMessagesStore(coll *mongo.Collection) *MessagesStore {
	return &MessagesStore{coll: coll}
}

// notExpiredClause matches documents whose selfDestructAt is unset or
// still in the future. Mutations use it so a message past its expiry
// instant behaves as already gone even before the TTL sweep ran.
func notExpiredClause(now time.Time) bson.A {
	return bson.A{
		bson.M{"selfDestructAt": bson.M{"$exists": false}},
		bson.M{"selfDestructAt": bson.M{"$gt": now}},
	}
}

// Insert stores a new message. The messageUuid is assigned here when
// the ingestion pipeline did not supply one; a second insert with the
// same messageUuid fails with ErrDuplicateKey, which makes redelivery
// from the ingestion feed safe.
func (s *MessagesStore) Insert(ctx context.Context, msg *Message) error {
	now := time.Now().UTC()
	if msg.MessageUUID == "" {
		msg.MessageUUID = uuid.NewString()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = now
	}
	msg.UpdatedAt = now

	result, err := s.coll.InsertOne(ctx, msg)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("message %s: %w", msg.MessageUUID, ErrDuplicateKey)
		}
		return err
	}
	msg.ID = result.InsertedID.(bson.ObjectID)
	return nil
}

// GetByUUID looks a message up by identity. A message past its
// self-destruct instant or view limit fails with ErrExpiredResource
// even when the physical TTL deletion has not caught up yet.
// Soft-deleted messages are returned as-is; the caller sees IsDeleted.
func (s *MessagesStore) GetByUUID(ctx context.Context, messageUUID string) (*Message, error) {
	var msg Message
	err := s.coll.FindOne(ctx, bson.M{"messageUuid": messageUUID}).Decode(&msg)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if msg.Expired(time.Now().UTC()) || msg.ViewsExhausted() {
		return nil, ErrExpiredResource
	}
	return &msg, nil
}

// RegisterView records one view with an atomic increment. The filter
// guards the view limit so concurrent viewers cannot push viewCount
// past maxViews. The view that reaches the limit still succeeds; it is
// the last allowed one and flips the message to deleted.
func (s *MessagesStore) RegisterView(ctx context.Context, messageUUID string) (*Message, error) {
	now := time.Now().UTC()

	filter := bson.M{
		"messageUuid": messageUUID,
		"isDeleted":   bson.M{"$ne": true},
		"$and": bson.A{
			bson.M{"$or": notExpiredClause(now)},
			bson.M{"$or": bson.A{
				bson.M{"maxViews": bson.M{"$exists": false}},
				bson.M{"$expr": bson.M{"$lt": bson.A{"$viewCount", "$maxViews"}}},
			}},
		},
	}
	update := bson.M{
		"$inc": bson.M{"viewCount": 1},
		"$set": bson.M{"updatedAt": now},
	}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var msg Message
	err := s.coll.FindOneAndUpdate(ctx, filter, update, opts).Decode(&msg)
	if err != nil {
		if !errors.Is(err, mongo.ErrNoDocuments) {
			return nil, err
		}
		// The guard did not match: either the message is gone or it is
		// expired/exhausted. Distinguish so the caller gets the right
		// domain error.
		count, cErr := s.coll.CountDocuments(ctx, bson.M{"messageUuid": messageUUID})
		if cErr != nil {
			return nil, cErr
		}
		if count == 0 {
			return nil, ErrNotFound
		}
		return nil, ErrExpiredResource
	}

	// View-limit exhaustion is an expiry trigger in its own right,
	// independent of selfDestructAt. Reaching the limit marks the
	// message deleted; it does not clear the TTL.
	if msg.ViewsExhausted() {
		_, err = s.coll.UpdateOne(ctx,
			bson.M{"messageUuid": messageUUID},
			bson.M{"$set": bson.M{"isDeleted": true, "deletedAt": now, "updatedAt": now}},
		)
		if err != nil {
			return nil, err
		}
	}
	return &msg, nil
}

// immutableFields can never be changed through UpdateFields. viewCount,
// readBy and reactions have their own atomic operations.
var immutableFields = map[string]bool{
	"_id":         true,
	"messageUuid": true,
	"createdAt":   true,
	"viewCount":   true,
	"readBy":      true,
	"reactions":   true,
}

// UpdateFields applies a partial update as one atomic $set. It fails
// with ErrNotFound when the message does not exist or has already been
// hard-expired. Touching content records editedAt.
func (s *MessagesStore) UpdateFields(ctx context.Context, messageUUID string, fields map[string]any) error {
	now := time.Now().UTC()

	set := bson.M{"updatedAt": now}
	for k, v := range fields {
		if immutableFields[k] {
			return fmt.Errorf("field %s is not updatable: %w", k, ErrUnsupportedPattern)
		}
		set[k] = v
	}
	if _, ok := fields["content"]; ok {
		set["editedAt"] = now
	}

	filter := bson.M{
		"messageUuid": messageUUID,
		"$or":         notExpiredClause(now),
	}
	result, err := s.coll.UpdateOne(ctx, filter, bson.M{"$set": set})
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// MarkRead appends userID to the read set. $addToSet is atomic and
// idempotent, so concurrent read receipts from different users never
// lose each other and repeats do not duplicate.
func (s *MessagesStore) MarkRead(ctx context.Context, messageUUID string, userID int64) error {
	result, err := s.coll.UpdateOne(ctx,
		bson.M{"messageUuid": messageUUID},
		bson.M{
			"$addToSet": bson.M{"readBy": userID},
			"$set":      bson.M{"updatedAt": time.Now().UTC()},
		},
	)
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// AddReaction appends one reaction record atomically.
func (s *MessagesStore) AddReaction(ctx context.Context, messageUUID string, emoji string, userID int64) error {
	now := time.Now().UTC()
	result, err := s.coll.UpdateOne(ctx,
		bson.M{"messageUuid": messageUUID},
		bson.M{
			"$push": bson.M{"reactions": Reaction{Emoji: emoji, UserID: userID, ReactedAt: now}},
			"$set":  bson.M{"updatedAt": now},
		},
	)
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// RemoveReaction removes every reaction by userID with the given emoji.
func (s *MessagesStore) RemoveReaction(ctx context.Context, messageUUID string, emoji string, userID int64) error {
	result, err := s.coll.UpdateOne(ctx,
		bson.M{"messageUuid": messageUUID},
		bson.M{
			"$pull": bson.M{"reactions": bson.M{"emoji": emoji, "userId": userID}},
			"$set":  bson.M{"updatedAt": time.Now().UTC()},
		},
	)
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// SoftDelete marks a message logically removed. The document stays in
// the collection for audit/history but drops out of every active-
// message query path.
func (s *MessagesStore) SoftDelete(ctx context.Context, messageUUID string, byUserID int64) error {
	now := time.Now().UTC()
	result, err := s.coll.UpdateOne(ctx,
		bson.M{"messageUuid": messageUUID},
		bson.M{"$set": bson.M{
			"isDeleted":       true,
			"deletedAt":       now,
			"deletedByUserId": byUserID,
			"updatedAt":       now,
		}},
	)
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// MessagesQuery is one page request against an enumerated access
// pattern. Filters maps indexed field names to equality values; for
// mediaUrl the value true means "attachment present".
type MessagesQuery struct {
	Filters        map[string]any
	IncludeDeleted bool
	// Before is the pagination cursor: only messages created strictly
	// before it are returned. Zero means "from the newest".
	Before time.Time
	Limit  int64
}

const defaultPageSize = 50

// Query returns one page of messages for a supported access pattern,
// newest first. The resolved index is passed to the engine as a hint,
// so the scan is bounded by the matching subset, never the collection.
// An unindexed filter combination fails with ErrUnsupportedPattern.
func (s *MessagesStore) Query(ctx context.Context, q MessagesQuery) ([]*Message, error) {
	plan, err := planMessages(q.Filters, q.IncludeDeleted)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	filter := bson.M{}
	for k, v := range q.Filters {
		if k == "mediaUrl" {
			if want, ok := v.(bool); ok {
				if want {
					filter[k] = bson.M{"$exists": true, "$ne": nil}
				} else {
					filter[k] = bson.M{"$exists": false}
				}
				continue
			}
		}
		filter[k] = v
	}
	if !q.IncludeDeleted {
		filter["isDeleted"] = bson.M{"$ne": true}
	}
	if !q.Before.IsZero() {
		filter["createdAt"] = bson.M{"$lt": q.Before}
	}

	limit := q.Limit
	if limit <= 0 {
		limit = defaultPageSize
	}
	opts := options.Find().
		SetSort(plan.Sort).
		SetLimit(limit).
		SetHint(plan.Hint)

	cursor, err := s.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", plan.Pattern.Name, err)
	}
	defer cursor.Close(ctx)

	var raw []*Message
	if err := cursor.All(ctx, &raw); err != nil {
		return nil, err
	}

	// TTL deletion is eventually consistent; a just-expired message can
	// still be in the collection. Drop it here so expiry is exact from
	// the reader's point of view. Exhausted messages are flipped to
	// deleted on their last view, but the sweep may not have caught a
	// concurrent straggler, so check both.
	messages := raw[:0]
	for _, m := range raw {
		if m.Expired(now) {
			continue
		}
		if !q.IncludeDeleted && m.ViewsExhausted() {
			continue
		}
		messages = append(messages, m)
	}
	return messages, nil
}

// Search runs a ranked full-text query over content and contextWrapper
// (both feed the same text index). A non-nil roomID scopes the search
// to one conversation. Soft-deleted and expired messages never match.
func (s *MessagesStore) Search(ctx context.Context, keywords string, roomID *int64, limit int64) ([]*Message, error) {
	now := time.Now().UTC()

	filter := bson.M{
		"$text":     bson.M{"$search": normalize.Keywords(keywords)},
		"isDeleted": bson.M{"$ne": true},
	}
	if roomID != nil {
		filter["chatRoomId"] = *roomID
	}

	if limit <= 0 {
		limit = defaultPageSize
	}
	opts := options.Find().
		SetProjection(bson.M{"score": bson.M{"$meta": "textScore"}}).
		SetSort(bson.M{"score": bson.M{"$meta": "textScore"}}).
		SetLimit(limit)

	cursor, err := s.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("text search: %w", err)
	}
	defer cursor.Close(ctx)

	var raw []*Message
	if err := cursor.All(ctx, &raw); err != nil {
		return nil, err
	}
	results := raw[:0]
	for _, m := range raw {
		if m.Expired(now) || m.ViewsExhausted() {
			continue
		}
		results = append(results, m)
	}
	return results, nil
}

// ResolveReference follows a weak reference (replyToMessageId,
// forwardedFromMessageId) to its target. A reference that no longer
// resolves is a normal outcome, not an error: the result is (nil, nil).
func (s *MessagesStore) ResolveReference(ctx context.Context, ref *string) (*Message, error) {
	if ref == nil || *ref == "" {
		return nil, nil
	}
	var msg Message
	err := s.coll.FindOne(ctx, bson.M{"messageUuid": *ref}).Decode(&msg)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, err
	}
	if msg.Expired(time.Now().UTC()) {
		return nil, nil
	}
	return &msg, nil
}
