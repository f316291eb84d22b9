package db

import (
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// Collection names. One logical collection per entity.
const (
	CollMessages     = "messages"
	CollMediaFiles   = "media_files"
	CollChatSessions = "chat_sessions"
)

// IndexSpec is one entry of the index catalog: a named index over one
// collection, declared as data so the catalog stays auditable and the
// planner table in internal/store can be cross-checked against it.
//
// Index names are stable identifiers used by migration tooling. Never
// rename one silently.
type IndexSpec struct {
	Collection string
	Name       string
	Keys       bson.D
	Unique     bool
	// ExpireSeconds, when non-nil, makes this a TTL index: the engine
	// removes a document once the indexed timestamp is this many seconds
	// in the past. Zero means "at the timestamp itself".
	ExpireSeconds *int32
	// Partial, when non-nil, is the partialFilterExpression: only
	// documents matching it are indexed.
	Partial bson.D
}

var zeroSeconds int32 = 0

// Catalog is the full secondary-index layout for the message store.
// Every access pattern the system serves has exactly one entry here
// that makes it sub-linear in collection size.
var Catalog = []IndexSpec{
	// --- messages: identity and primary timelines ---
	{Collection: CollMessages, Name: "idx_message_uuid",
		Keys: bson.D{{Key: "messageUuid", Value: 1}}, Unique: true},
	{Collection: CollMessages, Name: "idx_chat_room_created_at",
		Keys: bson.D{{Key: "chatRoomId", Value: 1}, {Key: "createdAt", Value: -1}}},
	{Collection: CollMessages, Name: "idx_sender_created_at",
		Keys: bson.D{{Key: "senderUserId", Value: 1}, {Key: "createdAt", Value: -1}}},
	{Collection: CollMessages, Name: "idx_created_at_desc",
		Keys: bson.D{{Key: "createdAt", Value: -1}}},
	{Collection: CollMessages, Name: "idx_updated_at_desc",
		Keys: bson.D{{Key: "updatedAt", Value: -1}}},

	// --- messages: type/status/flag filters on the global timeline ---
	{Collection: CollMessages, Name: "idx_message_type_created_at",
		Keys: bson.D{{Key: "messageType", Value: 1}, {Key: "createdAt", Value: -1}}},
	{Collection: CollMessages, Name: "idx_status_created_at",
		Keys: bson.D{{Key: "status", Value: 1}, {Key: "createdAt", Value: -1}}},
	{Collection: CollMessages, Name: "idx_starred_created_at",
		Keys: bson.D{{Key: "isStarred", Value: 1}, {Key: "createdAt", Value: -1}}},
	{Collection: CollMessages, Name: "idx_protected_created_at",
		Keys: bson.D{{Key: "isProtected", Value: 1}, {Key: "createdAt", Value: -1}}},
	{Collection: CollMessages, Name: "idx_encrypted_created_at",
		Keys: bson.D{{Key: "isEncrypted", Value: 1}, {Key: "createdAt", Value: -1}}},
	{Collection: CollMessages, Name: "idx_tone_color_created_at",
		Keys: bson.D{{Key: "toneColor", Value: 1}, {Key: "createdAt", Value: -1}}},
	{Collection: CollMessages, Name: "idx_media_created_at",
		Keys: bson.D{{Key: "mediaUrl", Value: 1}, {Key: "createdAt", Value: -1}}},

	// --- messages: room-scoped composites ---
	// The dominant workload is "render a conversation", so every filter
	// a client can apply inside a room keeps the room prefix. Without
	// these the planner falls back to the weaker global-flag index and
	// filters the rest in memory.
	{Collection: CollMessages, Name: "idx_room_type_created_at",
		Keys: bson.D{{Key: "chatRoomId", Value: 1}, {Key: "messageType", Value: 1}, {Key: "createdAt", Value: -1}}},
	{Collection: CollMessages, Name: "idx_room_status_created_at",
		Keys: bson.D{{Key: "chatRoomId", Value: 1}, {Key: "status", Value: 1}, {Key: "createdAt", Value: -1}}},
	{Collection: CollMessages, Name: "idx_room_sender_created_at",
		Keys: bson.D{{Key: "chatRoomId", Value: 1}, {Key: "senderUserId", Value: 1}, {Key: "createdAt", Value: -1}}},
	{Collection: CollMessages, Name: "idx_room_starred_created_at",
		Keys: bson.D{{Key: "chatRoomId", Value: 1}, {Key: "isStarred", Value: 1}, {Key: "createdAt", Value: -1}}},
	{Collection: CollMessages, Name: "idx_room_protected_created_at",
		Keys: bson.D{{Key: "chatRoomId", Value: 1}, {Key: "isProtected", Value: 1}, {Key: "createdAt", Value: -1}}},
	{Collection: CollMessages, Name: "idx_room_tone_created_at",
		Keys: bson.D{{Key: "chatRoomId", Value: 1}, {Key: "toneColor", Value: 1}, {Key: "createdAt", Value: -1}}},
	{Collection: CollMessages, Name: "idx_room_media_created_at",
		Keys: bson.D{{Key: "chatRoomId", Value: 1}, {Key: "mediaUrl", Value: 1}, {Key: "createdAt", Value: -1}}},

	// --- messages: cross-reference lookups ---
	{Collection: CollMessages, Name: "idx_story_created_at",
		Keys: bson.D{{Key: "storyId", Value: 1}, {Key: "createdAt", Value: -1}}},
	{Collection: CollMessages, Name: "idx_memory_created_at",
		Keys: bson.D{{Key: "memoryId", Value: 1}, {Key: "createdAt", Value: -1}}},
	{Collection: CollMessages, Name: "idx_event_created_at",
		Keys: bson.D{{Key: "eventId", Value: 1}, {Key: "createdAt", Value: -1}}},
	{Collection: CollMessages, Name: "idx_reply_to_created_at",
		Keys: bson.D{{Key: "replyToMessageId", Value: 1}, {Key: "createdAt", Value: -1}}},
	{Collection: CollMessages, Name: "idx_forwarded_from_created_at",
		Keys: bson.D{{Key: "forwardedFromMessageId", Value: 1}, {Key: "createdAt", Value: -1}}},

	// --- messages: engagement (multikey: one entry per element) ---
	{Collection: CollMessages, Name: "idx_read_by_created_at",
		Keys: bson.D{{Key: "readBy", Value: 1}, {Key: "createdAt", Value: -1}}},
	{Collection: CollMessages, Name: "idx_reactions_created_at",
		Keys: bson.D{{Key: "reactions", Value: 1}, {Key: "createdAt", Value: -1}}},

	// --- messages: AI-derived filters ---
	{Collection: CollMessages, Name: "idx_voice_emotion_created_at",
		Keys: bson.D{{Key: "voiceEmotion", Value: 1}, {Key: "createdAt", Value: -1}}},
	{Collection: CollMessages, Name: "idx_memory_triggers_created_at",
		Keys: bson.D{{Key: "memoryTriggers", Value: 1}, {Key: "createdAt", Value: -1}}},
	{Collection: CollMessages, Name: "idx_predictive_text_created_at",
		Keys: bson.D{{Key: "predictiveText", Value: 1}, {Key: "createdAt", Value: -1}}},
	{Collection: CollMessages, Name: "idx_ai_tone_suggestion_created_at",
		Keys: bson.D{{Key: "aiToneSuggestion", Value: 1}, {Key: "createdAt", Value: -1}}},

	// --- messages: geo / contact ---
	// The location pair is exact/range match only, not a geospatial
	// index.
	{Collection: CollMessages, Name: "idx_location_created_at",
		Keys: bson.D{{Key: "locationLatitude", Value: 1}, {Key: "locationLongitude", Value: 1}, {Key: "createdAt", Value: -1}}},
	{Collection: CollMessages, Name: "idx_contact_name_created_at",
		Keys: bson.D{{Key: "contactName", Value: 1}, {Key: "createdAt", Value: -1}}},
	{Collection: CollMessages, Name: "idx_contact_phone_created_at",
		Keys: bson.D{{Key: "contactPhone", Value: 1}, {Key: "createdAt", Value: -1}}},

	// --- messages: protection / self-destruct ---
	{Collection: CollMessages, Name: "idx_protection_level_created_at",
		Keys: bson.D{{Key: "protectionLevel", Value: 1}, {Key: "createdAt", Value: -1}}},
	{Collection: CollMessages, Name: "idx_view_limits",
		Keys: bson.D{{Key: "maxViews", Value: 1}, {Key: "viewCount", Value: 1}}},
	{Collection: CollMessages, Name: "idx_screenshot_protection_created_at",
		Keys: bson.D{{Key: "screenshotProtection", Value: 1}, {Key: "createdAt", Value: -1}}},
	// TTL on selfDestructAt: the engine removes the document once the
	// instant passes. The same index serves the admin lookup pattern; an
	// engine rejects a second index over the identical key set, so the
	// TTL form is the only one declared.
	{Collection: CollMessages, Name: "idx_ttl_self_destruct",
		Keys: bson.D{{Key: "selfDestructAt", Value: 1}}, ExpireSeconds: &zeroSeconds},

	// --- messages: text search over content + contextWrapper ---
	{Collection: CollMessages, Name: "idx_text_search",
		Keys: bson.D{{Key: "content", Value: "text"}, {Key: "contextWrapper", Value: "text"}}},

	// --- messages: partial indexes ---
	// These predicates are highly selective and queried constantly in
	// room views; the partial form indexes only matching documents.
	// partialFilterExpression accepts only equality, range, $exists:true,
	// $type, $and and $in, so isDeleted uses plain equality (the field is
	// always written) and mediaUrl relies on $exists (the field is absent
	// when there is no attachment).
	{Collection: CollMessages, Name: "idx_room_active_messages",
		Keys:    bson.D{{Key: "chatRoomId", Value: 1}, {Key: "createdAt", Value: -1}},
		Partial: bson.D{{Key: "isDeleted", Value: false}}},
	{Collection: CollMessages, Name: "idx_room_starred_messages",
		Keys:    bson.D{{Key: "chatRoomId", Value: 1}, {Key: "isStarred", Value: 1}, {Key: "createdAt", Value: -1}},
		Partial: bson.D{{Key: "isStarred", Value: true}}},
	{Collection: CollMessages, Name: "idx_room_protected_messages",
		Keys:    bson.D{{Key: "chatRoomId", Value: 1}, {Key: "isProtected", Value: 1}, {Key: "createdAt", Value: -1}},
		Partial: bson.D{{Key: "isProtected", Value: true}}},
	{Collection: CollMessages, Name: "idx_room_media_messages",
		Keys:    bson.D{{Key: "chatRoomId", Value: 1}, {Key: "mediaUrl", Value: 1}, {Key: "createdAt", Value: -1}},
		Partial: bson.D{{Key: "mediaUrl", Value: bson.D{{Key: "$exists", Value: true}}}}},

	// --- media_files ---
	{Collection: CollMediaFiles, Name: "idx_media_message_created_at",
		Keys: bson.D{{Key: "messageId", Value: 1}, {Key: "createdAt", Value: -1}}},
	{Collection: CollMediaFiles, Name: "idx_media_user_created_at",
		Keys: bson.D{{Key: "userId", Value: 1}, {Key: "createdAt", Value: -1}}},
	{Collection: CollMediaFiles, Name: "idx_media_type_created_at",
		Keys: bson.D{{Key: "fileType", Value: 1}, {Key: "createdAt", Value: -1}}},
	{Collection: CollMediaFiles, Name: "idx_media_processed_created_at",
		Keys: bson.D{{Key: "isProcessed", Value: 1}, {Key: "createdAt", Value: -1}}},

	// --- chat_sessions ---
	{Collection: CollChatSessions, Name: "idx_session_user_activity",
		Keys: bson.D{{Key: "userId", Value: 1}, {Key: "lastActivity", Value: -1}}},
	{Collection: CollChatSessions, Name: "idx_session_id",
		Keys: bson.D{{Key: "sessionId", Value: 1}}, Unique: true},
	{Collection: CollChatSessions, Name: "idx_session_status_activity",
		Keys: bson.D{{Key: "connectionStatus", Value: 1}, {Key: "lastActivity", Value: -1}}},
	{Collection: CollChatSessions, Name: "idx_ttl_sessions",
		Keys: bson.D{{Key: "expiresAt", Value: 1}}, ExpireSeconds: &zeroSeconds},
}

// Model converts the spec into the driver's index model.
func (s IndexSpec) Model() mongo.IndexModel {
	opts := options.Index().SetName(s.Name)
	if s.Unique {
		opts = opts.SetUnique(true)
	}
	if s.ExpireSeconds != nil {
		opts = opts.SetExpireAfterSeconds(*s.ExpireSeconds)
	}
	if s.Partial != nil {
		opts = opts.SetPartialFilterExpression(s.Partial)
	}
	return mongo.IndexModel{Keys: s.Keys, Options: opts}
}

// CatalogFor returns the catalog entries for one collection.
func CatalogFor(collection string) []IndexSpec {
	var out []IndexSpec
	for _, s := range Catalog {
		if s.Collection == collection {
			out = append(out, s)
		}
	}
	return out
}
