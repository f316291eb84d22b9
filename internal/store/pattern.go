package store

import (
	"sort"
	"strings"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// AccessPattern is one supported filter combination over the messages
// collection and the index that makes it sub-linear. The table below is
// the planner side of the index catalog in internal/db; a catalog test
// cross-checks that every Index named here is actually provisioned.
type AccessPattern struct {
	// Name identifies the pattern in logs and errors.
	Name string

	// Fields are the equality fields the query must supply, in the
	// index key order (the trailing createdAt sort key is implied).
	Fields []string

	// Index is the backing index name, passed to the engine as a hint
	// so the planner contract is enforced rather than hoped for.
	Index string
}

// messagePatterns enumerates every access pattern queryMessages serves.
// A filter combination outside this table has no backing index and is
// rejected with ErrUnsupportedPattern.
var messagePatterns = []AccessPattern{
	// Unfiltered global timeline.
	{Name: "global-timeline", Fields: nil, Index: "idx_created_at_desc"},

	// Room timeline: primary pagination path.
	{Name: "room-timeline", Fields: []string{"chatRoomId"}, Index: "idx_chat_room_created_at"},

	// Global single-field timelines.
	{Name: "by-sender", Fields: []string{"senderUserId"}, Index: "idx_sender_created_at"},
	{Name: "by-type", Fields: []string{"messageType"}, Index: "idx_message_type_created_at"},
	{Name: "by-status", Fields: []string{"status"}, Index: "idx_status_created_at"},
	{Name: "starred", Fields: []string{"isStarred"}, Index: "idx_starred_created_at"},
	{Name: "protected", Fields: []string{"isProtected"}, Index: "idx_protected_created_at"},
	{Name: "encrypted", Fields: []string{"isEncrypted"}, Index: "idx_encrypted_created_at"},
	{Name: "by-tone", Fields: []string{"toneColor"}, Index: "idx_tone_color_created_at"},
	{Name: "with-media", Fields: []string{"mediaUrl"}, Index: "idx_media_created_at"},

	// Room-scoped composites. The room is the selectivity anchor: every
	// secondary filter a client can apply while viewing a room stays
	// indexed with the room prefix.
	{Name: "room-by-type", Fields: []string{"chatRoomId", "messageType"}, Index: "idx_room_type_created_at"},
	{Name: "room-by-status", Fields: []string{"chatRoomId", "status"}, Index: "idx_room_status_created_at"},
	{Name: "room-by-sender", Fields: []string{"chatRoomId", "senderUserId"}, Index: "idx_room_sender_created_at"},
	{Name: "room-starred", Fields: []string{"chatRoomId", "isStarred"}, Index: "idx_room_starred_created_at"},
	{Name: "room-protected", Fields: []string{"chatRoomId", "isProtected"}, Index: "idx_room_protected_created_at"},
	{Name: "room-by-tone", Fields: []string{"chatRoomId", "toneColor"}, Index: "idx_room_tone_created_at"},
	{Name: "room-with-media", Fields: []string{"chatRoomId", "mediaUrl"}, Index: "idx_room_media_created_at"},

	// Cross-reference lookups ("show thread" / "show related").
	{Name: "by-story", Fields: []string{"storyId"}, Index: "idx_story_created_at"},
	{Name: "by-memory", Fields: []string{"memoryId"}, Index: "idx_memory_created_at"},
	{Name: "by-event", Fields: []string{"eventId"}, Index: "idx_event_created_at"},
	{Name: "replies-to", Fields: []string{"replyToMessageId"}, Index: "idx_reply_to_created_at"},
	{Name: "forwards-of", Fields: []string{"forwardedFromMessageId"}, Index: "idx_forwarded_from_created_at"},

	// Engagement (multikey).
	{Name: "read-by", Fields: []string{"readBy"}, Index: "idx_read_by_created_at"},
	{Name: "reactions", Fields: []string{"reactions"}, Index: "idx_reactions_created_at"},

	// AI-derived filters.
	{Name: "by-voice-emotion", Fields: []string{"voiceEmotion"}, Index: "idx_voice_emotion_created_at"},
	{Name: "by-memory-trigger", Fields: []string{"memoryTriggers"}, Index: "idx_memory_triggers_created_at"},
	{Name: "by-predictive-text", Fields: []string{"predictiveText"}, Index: "idx_predictive_text_created_at"},
	{Name: "by-ai-tone", Fields: []string{"aiToneSuggestion"}, Index: "idx_ai_tone_suggestion_created_at"},

	// Geo / contact. The location pair is exact/range match, not a true
	// geospatial index.
	{Name: "by-location", Fields: []string{"locationLatitude", "locationLongitude"}, Index: "idx_location_created_at"},
	{Name: "by-contact-name", Fields: []string{"contactName"}, Index: "idx_contact_name_created_at"},
	{Name: "by-contact-phone", Fields: []string{"contactPhone"}, Index: "idx_contact_phone_created_at"},

	// Protection / self-destruct administration.
	{Name: "by-protection-level", Fields: []string{"protectionLevel"}, Index: "idx_protection_level_created_at"},
	{Name: "screenshot-protected", Fields: []string{"screenshotProtection"}, Index: "idx_screenshot_protection_created_at"},
	{Name: "view-limited", Fields: []string{"maxViews"}, Index: "idx_view_limits"},
	{Name: "self-destructing", Fields: []string{"selfDestructAt"}, Index: "idx_ttl_self_destruct"},
}

// patternsByKey indexes messagePatterns by their canonical field-set
// key, built once at init.
var patternsByKey = func() map[string]*AccessPattern {
	m := make(map[string]*AccessPattern, len(messagePatterns))
	for i := range messagePatterns {
		m[fieldSetKey(messagePatterns[i].Fields)] = &messagePatterns[i]
	}
	return m
}()

// fieldSetKey canonicalizes a set of filter fields. Order carries no
// meaning for lookup; the pattern itself records index key order.
func fieldSetKey(fields []string) string {
	s := make([]string, len(fields))
	copy(s, fields)
	sort.Strings(s)
	return strings.Join(s, "+")
}

// Plan is the planner's answer for one query: which pattern matched and
// which index the engine is told to use.
type Plan struct {
	Pattern *AccessPattern
	// Hint is the index name handed to the engine. It may differ from
	// Pattern.Index when a qualifying partial index is preferred.
	Hint string
	Sort bson.D
}

// planMessages resolves a filter combination to its backing index.
// Returns ErrUnsupportedPattern when no pattern covers the combination;
// the store never silently falls back to a collection scan.
func planMessages(filters map[string]any, includeDeleted bool) (*Plan, error) {
	fields := make([]string, 0, len(filters))
	for f := range filters {
		fields = append(fields, f)
	}
	p, ok := patternsByKey[fieldSetKey(fields)]
	if !ok {
		return nil, ErrUnsupportedPattern
	}

	plan := &Plan{
		Pattern: p,
		Hint:    p.Index,
		Sort:    bson.D{{Key: "createdAt", Value: -1}},
	}

	// Prefer a qualifying partial index over its non-partial equivalent
	// when the query filter is a superset of the partial predicate.
	switch p.Name {
	case "room-timeline":
		if !includeDeleted {
			plan.Hint = "idx_room_active_messages"
		}
	case "room-starred":
		if v, ok := filters["isStarred"].(bool); ok && v {
			plan.Hint = "idx_room_starred_messages"
		}
	case "room-protected":
		if v, ok := filters["isProtected"].(bool); ok && v {
			plan.Hint = "idx_room_protected_messages"
		}
	case "room-with-media":
		if v, ok := filters["mediaUrl"].(bool); ok && v {
			plan.Hint = "idx_room_media_messages"
		}
	}
	return plan, nil
}

// MessagePatterns returns the full access-pattern table, for the
// catalog cross-check and for surfacing supported patterns to callers.
func MessagePatterns() []AccessPattern {
	out := make([]AccessPattern, len(messagePatterns))
	copy(out, messagePatterns)
	return out
}
