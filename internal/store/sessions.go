package store

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// SessionsStore provides operations over the chat_sessions collection.
// Sessions are created at connection establishment, heartbeaten by the
// transport layer and destroyed automatically at expiresAt.
type SessionsStore struct {
	coll *mongo.Collection
}

// NewSessionsStore returns a SessionsStore using the given collection.
func NewSessionsStore(coll *mongo.Collection) *SessionsStore {
	return &SessionsStore{coll: coll}
}

// Upsert creates or refreshes a session record. sessionId is the
// unique key (idx_session_id); a concurrent upsert of the same id
// lands on the same document rather than failing.
func (s *SessionsStore) Upsert(ctx context.Context, session *ChatSession) error {
	now := time.Now().UTC()
	if session.LastActivity.IsZero() {
		session.LastActivity = now
	}
	if session.ConnectionStatus == "" {
		session.ConnectionStatus = "CONNECTED"
	}

	update := bson.M{
		"$set": bson.M{
			"userId":           session.UserID,
			"connectionStatus": session.ConnectionStatus,
			"lastActivity":     session.LastActivity,
			"expiresAt":        session.ExpiresAt,
		},
		"$setOnInsert": bson.M{"createdAt": now},
	}
	opts := options.UpdateOne().SetUpsert(true)
	_, err := s.coll.UpdateOne(ctx, bson.M{"sessionId": session.SessionID}, update, opts)
	if mongo.IsDuplicateKeyError(err) {
		// Two racing upserts of a brand-new id can both miss the
		// document and one insert loses; it retries onto the winner.
		_, err = s.coll.UpdateOne(ctx, bson.M{"sessionId": session.SessionID}, update)
	}
	return err
}

// Touch bumps lastActivity and pushes expiresAt out by ttl. Called on
// every heartbeat. Fails with ErrNotFound when the session is gone
// (expired or logged out); the transport then re-establishes.
func (s *SessionsStore) Touch(ctx context.Context, sessionID string, ttl time.Duration) error {
	now := time.Now().UTC()
	result, err := s.coll.UpdateOne(ctx,
		bson.M{"sessionId": sessionID},
		bson.M{"$set": bson.M{
			"lastActivity": now,
			"expiresAt":    now.Add(ttl),
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

// Disconnect marks a session closed without waiting for the TTL; an
// explicit logout removes the record outright.
func (s *SessionsStore) Disconnect(ctx context.Context, sessionID string) error {
	result, err := s.coll.UpdateOne(ctx,
		bson.M{"sessionId": sessionID},
		bson.M{"$set": bson.M{"connectionStatus": "DISCONNECTED", "lastActivity": time.Now().UTC()}},
	)
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// Remove deletes a session record (explicit logout path).
func (s *SessionsStore) Remove(ctx context.Context, sessionID string) error {
	result, err := s.coll.DeleteOne(ctx, bson.M{"sessionId": sessionID})
	if err != nil {
		return err
	}
	if result.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// Get returns one session by its unique id.
func (s *SessionsStore) Get(ctx context.Context, sessionID string) (*ChatSession, error) {
	var session ChatSession
	err := s.coll.FindOne(ctx, bson.M{"sessionId": sessionID}).Decode(&session)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if !session.ExpiresAt.After(time.Now().UTC()) {
		// TTL removal is eventually consistent; treat a past-expiry
		// record as already gone.
		return nil, ErrNotFound
	}
	return &session, nil
}

// ForUser returns a user's sessions, most recently active first.
func (s *SessionsStore) ForUser(ctx context.Context, userID int64, limit int64) ([]*ChatSession, error) {
	return s.find(ctx, bson.M{"userId": userID}, "idx_session_user_activity", limit)
}

// ByStatus returns sessions in one connection status, most recently
// active first (admin/ops view).
func (s *SessionsStore) ByStatus(ctx context.Context, status string, limit int64) ([]*ChatSession, error) {
	return s.find(ctx, bson.M{"connectionStatus": status}, "idx_session_status_activity", limit)
}

func (s *SessionsStore) find(ctx context.Context, filter bson.M, hint string, limit int64) ([]*ChatSession, error) {
	if limit <= 0 {
		limit = defaultPageSize
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "lastActivity", Value: -1}}).
		SetLimit(limit).
		SetHint(hint)

	cursor, err := s.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var sessions []*ChatSession
	if err := cursor.All(ctx, &sessions); err != nil {
		return nil, err
	}
	return sessions, nil
}

// SweepExpiredSessions removes sessions past expiresAt, backing up the
// engine TTL index the same way the message sweep does.
func (s *SessionsStore) SweepExpiredSessions(ctx context.Context) (int64, error) {
	result, err := s.coll.DeleteMany(ctx, bson.M{
		"expiresAt": bson.M{"$lte": time.Now().UTC()},
	})
	if err != nil {
		return 0, err
	}
	return result.DeletedCount, nil
}
