package store

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"golang.org/x/crypto/bcrypt"
)

// ErrInvalidPassword reports a failed unlock attempt on a protected
// message. Deliberately indistinguishable in timing from a slow check;
// bcrypt does that for us.
var ErrInvalidPassword = errors.New("invalid password")

// Protect password-protects a message. The plaintext never touches the
// document; only the bcrypt hash is stored, next to the protection
// level (PASSWORD, SCREENSHOT, SELF_DESTRUCT, MULTI_LAYER).
func (s *MessagesStore) Protect(ctx context.Context, messageUUID, level, password string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	return s.UpdateFields(ctx, messageUUID, map[string]any{
		"isProtected":     true,
		"protectionLevel": level,
		"passwordHash":    string(hash),
	})
}

// Unlock verifies the password of a protected message and returns it.
// An unprotected message unlocks with any password.
func (s *MessagesStore) Unlock(ctx context.Context, messageUUID, password string) (*Message, error) {
	msg, err := s.GetByUUID(ctx, messageUUID)
	if err != nil {
		return nil, err
	}
	if !msg.IsProtected || msg.PasswordHash == "" {
		return msg, nil
	}
	if err := bcrypt.CompareHashAndPassword([]byte(msg.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidPassword
	}
	return msg, nil
}

// ExhaustedFilter is the predicate for messages at or past their view
// limit, shaped to stay within the bounds of idx_view_limits. The
// expiry sweeper and admin tooling share it.
func ExhaustedFilter() bson.M {
	return bson.M{
		"maxViews":  bson.M{"$gt": 0},
		"isDeleted": bson.M{"$ne": true},
		"$expr":     bson.M{"$gte": bson.A{"$viewCount", "$maxViews"}},
	}
}

// SweepExhausted flips every view-exhausted message to deleted. Called
// by the background sweeper; the read path already handles stragglers,
// this keeps the collection tidy between reads.
func (s *MessagesStore) SweepExhausted(ctx context.Context) (int64, error) {
	now := time.Now().UTC()
	result, err := s.coll.UpdateMany(ctx, ExhaustedFilter(), bson.M{
		"$set": bson.M{"isDeleted": true, "deletedAt": now, "updatedAt": now},
	})
	if err != nil {
		return 0, err
	}
	return result.ModifiedCount, nil
}

// SweepExpired physically removes messages past selfDestructAt. This
// backs up the engine's own TTL index on storage engines without
// native TTL support; on MongoDB both run and the second one finds
// nothing to do.
func (s *MessagesStore) SweepExpired(ctx context.Context) (int64, error) {
	result, err := s.coll.DeleteMany(ctx, bson.M{
		"selfDestructAt": bson.M{"$lte": time.Now().UTC()},
	})
	if err != nil {
		return 0, err
	}
	return result.DeletedCount, nil
}
