// Package store provides the document models and collection stores for
// the chat message plane: messages, media files and live chat sessions.
package store

import (
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// Message maps to the "messages" collection. Field names follow the
// index catalog exactly; renaming a field here breaks the migration
// identifiers in db.Catalog.
type Message struct {
	ID bson.ObjectID `bson:"_id,omitempty" json:"-"`

	// MessageUUID is the global identity, assigned once at creation and
	// enforced unique by idx_message_uuid.
	MessageUUID string `bson:"messageUuid" json:"messageUuid"`

	// Routing
	ChatRoomID   int64 `bson:"chatRoomId" json:"chatRoomId"`
	SenderUserID int64 `bson:"senderUserId" json:"senderUserId"`

	// Classification
	MessageType string `bson:"messageType" json:"messageType"`
	Status      string `bson:"status" json:"status"`
	ToneColor   string `bson:"toneColor,omitempty" json:"toneColor,omitempty"`

	// Content flags
	IsStarred            bool `bson:"isStarred" json:"isStarred"`
	IsProtected          bool `bson:"isProtected" json:"isProtected"`
	IsEncrypted          bool `bson:"isEncrypted" json:"isEncrypted"`
	IsDeleted            bool `bson:"isDeleted" json:"isDeleted"`
	ScreenshotProtection bool `bson:"screenshotProtection" json:"screenshotProtection"`

	// Payload
	Content        string  `bson:"content" json:"content"`
	ContextWrapper string  `bson:"contextWrapper,omitempty" json:"contextWrapper,omitempty"`
	MediaURL       *string `bson:"mediaUrl,omitempty" json:"mediaUrl,omitempty"`

	// Weak references: relation plus lookup only, the target may be gone.
	StoryID                *int64  `bson:"storyId,omitempty" json:"storyId,omitempty"`
	MemoryID               *int64  `bson:"memoryId,omitempty" json:"memoryId,omitempty"`
	EventID                *int64  `bson:"eventId,omitempty" json:"eventId,omitempty"`
	ReplyToMessageID       *string `bson:"replyToMessageId,omitempty" json:"replyToMessageId,omitempty"`
	ForwardedFromMessageID *string `bson:"forwardedFromMessageId,omitempty" json:"forwardedFromMessageId,omitempty"`

	// Engagement. ReadBy is a set of user ids appended with $addToSet,
	// Reactions a list of reaction records appended with $push. Both are
	// multikey-indexed (one index entry per element).
	ReadBy    []int64    `bson:"readBy,omitempty" json:"readBy,omitempty"`
	Reactions []Reaction `bson:"reactions,omitempty" json:"reactions,omitempty"`

	// AI-derived fields, written by the enrichment pipeline and treated
	// as read-only by everything else in this service.
	VoiceEmotion     string   `bson:"voiceEmotion,omitempty" json:"voiceEmotion,omitempty"`
	MemoryTriggers   []string `bson:"memoryTriggers,omitempty" json:"memoryTriggers,omitempty"`
	PredictiveText   string   `bson:"predictiveText,omitempty" json:"predictiveText,omitempty"`
	AIToneSuggestion string   `bson:"aiToneSuggestion,omitempty" json:"aiToneSuggestion,omitempty"`

	// Geo / contact
	LocationLatitude  *float64 `bson:"locationLatitude,omitempty" json:"locationLatitude,omitempty"`
	LocationLongitude *float64 `bson:"locationLongitude,omitempty" json:"locationLongitude,omitempty"`
	ContactName       string   `bson:"contactName,omitempty" json:"contactName,omitempty"`
	ContactPhone      string   `bson:"contactPhone,omitempty" json:"contactPhone,omitempty"`

	// Protection
	ProtectionLevel string     `bson:"protectionLevel,omitempty" json:"protectionLevel,omitempty"`
	PasswordHash    string     `bson:"passwordHash,omitempty" json:"-"`
	MaxViews        *int32     `bson:"maxViews,omitempty" json:"maxViews,omitempty"`
	ViewCount       int32      `bson:"viewCount" json:"viewCount"`
	SelfDestructAt  *time.Time `bson:"selfDestructAt,omitempty" json:"selfDestructAt,omitempty"`

	// Bookkeeping
	EditedAt        *time.Time `bson:"editedAt,omitempty" json:"editedAt,omitempty"`
	DeletedAt       *time.Time `bson:"deletedAt,omitempty" json:"deletedAt,omitempty"`
	DeletedByUserID *int64     `bson:"deletedByUserId,omitempty" json:"deletedByUserId,omitempty"`
	CreatedAt       time.Time  `bson:"createdAt" json:"createdAt"`
	UpdatedAt       time.Time  `bson:"updatedAt" json:"updatedAt"`
}

// Reaction is one reaction record inside Message.Reactions.
type Reaction struct {
	Emoji     string    `bson:"emoji" json:"emoji"`
	UserID    int64     `bson:"userId" json:"userId"`
	ReactedAt time.Time `bson:"reactedAt" json:"reactedAt"`
}

// MediaFile maps to the "media_files" collection. Each file is owned by
// exactly one message (MessageID is the owning messageUuid) and one
// uploading user.
type MediaFile struct {
	ID          bson.ObjectID `bson:"_id,omitempty" json:"-"`
	MessageID   string        `bson:"messageId" json:"messageId"`
	UserID      int64         `bson:"userId" json:"userId"`
	FileType    string        `bson:"fileType" json:"fileType"`
	FileURL     string        `bson:"fileUrl" json:"fileUrl"`
	SizeBytes   int64         `bson:"sizeBytes,omitempty" json:"sizeBytes,omitempty"`
	IsProcessed bool          `bson:"isProcessed" json:"isProcessed"`
	CreatedAt   time.Time     `bson:"createdAt" json:"createdAt"`
	UpdatedAt   time.Time     `bson:"updatedAt" json:"updatedAt"`
}

// ChatSession maps to the "chat_sessions" collection. The transport
// layer heartbeats LastActivity; the engine's TTL index (plus the
// portable sweeper) removes the record once ExpiresAt passes.
type ChatSession struct {
	ID               bson.ObjectID `bson:"_id,omitempty" json:"-"`
	SessionID        string        `bson:"sessionId" json:"sessionId"`
	UserID           int64         `bson:"userId" json:"userId"`
	ConnectionStatus string        `bson:"connectionStatus" json:"connectionStatus"`
	LastActivity     time.Time     `bson:"lastActivity" json:"lastActivity"`
	ExpiresAt        time.Time     `bson:"expiresAt" json:"expiresAt"`
	CreatedAt        time.Time     `bson:"createdAt" json:"createdAt"`
}

// Expired reports whether the message is past its self-destruct
// instant. Physical TTL removal is eventually consistent, so read paths
// must check this themselves to make expiry exact.
func (m *Message) Expired(now time.Time) bool {
	return m.SelfDestructAt != nil && !m.SelfDestructAt.After(now)
}

// ViewsExhausted reports whether the view limit has been reached.
// A nil or non-positive MaxViews means unlimited views.
func (m *Message) ViewsExhausted() bool {
	return m.MaxViews != nil && *m.MaxViews > 0 && m.ViewCount >= *m.MaxViews
}

// HasMedia reports whether the message carries an attachment reference.
func (m *Message) HasMedia() bool {
	return m.MediaURL != nil && *m.MediaURL != ""
}

// ReadByUser reports whether userID is present in the read set.
func (m *Message) ReadByUser(userID int64) bool {
	for _, id := range m.ReadBy {
		if id == userID {
			return true
		}
	}
	return false
}
