package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// MediaStore provides operations over the media_files collection.
type MediaStore struct {
	coll *mongo.Collection
}

// NewMediaStore returns a MediaStore using the given collection.
func NewMediaStore(coll *mongo.Collection) *MediaStore {
	return &MediaStore{coll: coll}
}

// Link attaches a media file to its owning message. The owning
// messageUuid is a weak reference like any other: the store does not
// verify the message still exists.
func (s *MediaStore) Link(ctx context.Context, media *MediaFile) error {
	now := time.Now().UTC()
	if media.CreatedAt.IsZero() {
		media.CreatedAt = now
	}
	media.UpdatedAt = now

	result, err := s.coll.InsertOne(ctx, media)
	if err != nil {
		return fmt.Errorf("link media for %s: %w", media.MessageID, err)
	}
	media.ID = result.InsertedID.(bson.ObjectID)
	return nil
}

// find runs one hinted query over media_files, newest first.
func (s *MediaStore) find(ctx context.Context, filter bson.M, hint string, limit int64) ([]*MediaFile, error) {
	if limit <= 0 {
		limit = defaultPageSize
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: -1}}).
		SetLimit(limit).
		SetHint(hint)

	cursor, err := s.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var files []*MediaFile
	if err := cursor.All(ctx, &files); err != nil {
		return nil, err
	}
	return files, nil
}

// ForMessage returns the attachments of one message.
func (s *MediaStore) ForMessage(ctx context.Context, messageUUID string, limit int64) ([]*MediaFile, error) {
	return s.find(ctx, bson.M{"messageId": messageUUID}, "idx_media_message_created_at", limit)
}

// ForUser returns the files uploaded by one user.
func (s *MediaStore) ForUser(ctx context.Context, userID int64, limit int64) ([]*MediaFile, error) {
	return s.find(ctx, bson.M{"userId": userID}, "idx_media_user_created_at", limit)
}

// ByType returns files of one type (image, video, audio, document).
func (s *MediaStore) ByType(ctx context.Context, fileType string, limit int64) ([]*MediaFile, error) {
	return s.find(ctx, bson.M{"fileType": fileType}, "idx_media_type_created_at", limit)
}

// Unprocessed returns the transcoding backlog, oldest work first would
// be the transcoder's call; the store returns newest first like every
// other path and the collaborator pages through.
func (s *MediaStore) Unprocessed(ctx context.Context, limit int64) ([]*MediaFile, error) {
	return s.find(ctx, bson.M{"isProcessed": false}, "idx_media_processed_created_at", limit)
}

// MarkProcessed is called by the transcoding collaborator once a file
// has been processed.
func (s *MediaStore) MarkProcessed(ctx context.Context, id bson.ObjectID) error {
	result, err := s.coll.UpdateOne(ctx,
		bson.M{"_id": id},
		bson.M{"$set": bson.M{"isProcessed": true, "updatedAt": time.Now().UTC()}},
	)
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// Get returns one media file by id.
func (s *MediaStore) Get(ctx context.Context, id bson.ObjectID) (*MediaFile, error) {
	var media MediaFile
	err := s.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&media)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &media, nil
}
