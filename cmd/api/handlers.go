package main

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.uber.org/zap"

	"github.com/legacykeep/chat-store/internal/normalize"
	"github.com/legacykeep/chat-store/internal/store"
)

// writeError maps the domain error taxonomy onto HTTP statuses.
// Anything outside the taxonomy is an engine-level failure: logged and
// answered 500 so the caller retries with backoff.
func (s *Server) writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, store.ErrDuplicateKey):
		c.JSON(http.StatusConflict, gin.H{"error": "duplicate key"})
	case errors.Is(err, store.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	case errors.Is(err, store.ErrUnsupportedPattern):
		c.JSON(http.StatusBadRequest, gin.H{"error": "unsupported access pattern", "detail": err.Error()})
	case errors.Is(err, store.ErrExpiredResource):
		c.JSON(http.StatusGone, gin.H{"error": "resource expired"})
	case errors.Is(err, store.ErrInvalidPassword):
		c.JSON(http.StatusForbidden, gin.H{"error": "invalid password"})
	default:
		s.log.Error("request failed", zap.String("path", c.Request.URL.Path), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handleInsertMessage(c *gin.Context) {
	var msg store.Message
	if err := c.ShouldBindJSON(&msg); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if msg.ChatRoomID == 0 || msg.SenderUserID == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "chatRoomId and senderUserId are required"})
		return
	}
	if msg.ContactPhone != "" {
		msg.ContactPhone = normalize.Phone(msg.ContactPhone)
	}
	if err := s.messages.Insert(c.Request.Context(), &msg); err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, msg)
}

func (s *Server) handleGetMessage(c *gin.Context) {
	msg, err := s.messages.GetByUUID(c.Request.Context(), c.Param("uuid"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, msg)
}

func (s *Server) handleUpdateMessage(c *gin.Context) {
	var fields map[string]any
	if err := c.ShouldBindJSON(&fields); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if len(fields) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "empty update"})
		return
	}
	if err := s.messages.UpdateFields(c.Request.Context(), c.Param("uuid"), fields); err != nil {
		s.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) handleDeleteMessage(c *gin.Context) {
	var req struct {
		UserID int64 `json:"userId" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := s.messages.SoftDelete(c.Request.Context(), c.Param("uuid"), req.UserID); err != nil {
		s.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) handleRegisterView(c *gin.Context) {
	msg, err := s.messages.RegisterView(c.Request.Context(), c.Param("uuid"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, msg)
}

func (s *Server) handleMarkRead(c *gin.Context) {
	var req struct {
		UserID int64 `json:"userId" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := s.messages.MarkRead(c.Request.Context(), c.Param("uuid"), req.UserID); err != nil {
		s.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type reactionRequest struct {
	Emoji  string `json:"emoji" binding:"required"`
	UserID int64  `json:"userId" binding:"required"`
}

func (s *Server) handleAddReaction(c *gin.Context) {
	var req reactionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := s.messages.AddReaction(c.Request.Context(), c.Param("uuid"), req.Emoji, req.UserID); err != nil {
		s.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) handleRemoveReaction(c *gin.Context) {
	var req reactionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := s.messages.RemoveReaction(c.Request.Context(), c.Param("uuid"), req.Emoji, req.UserID); err != nil {
		s.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) handleUnlockMessage(c *gin.Context) {
	var req struct {
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	msg, err := s.messages.Unlock(c.Request.Context(), c.Param("uuid"), req.Password)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, msg)
}

// filterParams maps query parameters onto indexed message fields and
// the parser for each. The planner decides whether the resulting
// combination is supported; this table only handles typing.
var filterParams = map[string]func(string) (any, error){
	"chatRoomId":             parseInt64,
	"senderUserId":           parseInt64,
	"messageType":            parseString,
	"status":                 parseString,
	"isStarred":              parseBool,
	"isProtected":            parseBool,
	"isEncrypted":            parseBool,
	"toneColor":              parseString,
	"mediaUrl":               parseBool, // true means "attachment present"
	"storyId":                parseInt64,
	"memoryId":               parseInt64,
	"eventId":                parseInt64,
	"replyToMessageId":       parseString,
	"forwardedFromMessageId": parseString,
	"readBy":                 parseInt64,
	"voiceEmotion":           parseString,
	"memoryTriggers":         parseString,
	"predictiveText":         parseString,
	"aiToneSuggestion":       parseString,
	"locationLatitude":       parseFloat64,
	"locationLongitude":      parseFloat64,
	"contactName":            parseString,
	"contactPhone":           parsePhone,
	"protectionLevel":        parseString,
	"screenshotProtection":   parseBool,
	"maxViews":               parseInt64,
}

func parseString(v string) (any, error) { return v, nil }
func parseInt64(v string) (any, error)  { return strconv.ParseInt(v, 10, 64) }
func parseBool(v string) (any, error)   { return strconv.ParseBool(v) }
func parseFloat64(v string) (any, error) {
	return strconv.ParseFloat(v, 64)
}
func parsePhone(v string) (any, error) { return normalize.Phone(v), nil }

func (s *Server) handleQueryMessages(c *gin.Context) {
	q := store.MessagesQuery{Filters: map[string]any{}}

	for param, parse := range filterParams {
		raw, ok := c.GetQuery(param)
		if !ok {
			continue
		}
		v, err := parse(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "bad value for " + param})
			return
		}
		q.Filters[param] = v
	}
	if v, ok := c.GetQuery("includeDeleted"); ok {
		q.IncludeDeleted, _ = strconv.ParseBool(v)
	}
	if v, ok := c.GetQuery("before"); ok {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "before must be RFC3339"})
			return
		}
		q.Before = t
	}
	if v, ok := c.GetQuery("limit"); ok {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil || n < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "bad limit"})
			return
		}
		q.Limit = n
	}

	messages, err := s.messages.Query(c.Request.Context(), q)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": messages, "count": len(messages)})
}

func (s *Server) handleSearchMessages(c *gin.Context) {
	keywords := c.Query("q")
	if keywords == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "q is required"})
		return
	}
	var roomID *int64
	if v, ok := c.GetQuery("chatRoomId"); ok {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "bad chatRoomId"})
			return
		}
		roomID = &n
	}
	var limit int64
	if v, ok := c.GetQuery("limit"); ok {
		limit, _ = strconv.ParseInt(v, 10, 64)
	}

	results, err := s.messages.Search(c.Request.Context(), keywords, roomID, limit)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": results, "count": len(results)})
}

func (s *Server) handleLinkMedia(c *gin.Context) {
	var media store.MediaFile
	if err := c.ShouldBindJSON(&media); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	media.MessageID = c.Param("uuid")
	if media.UserID == 0 || media.FileType == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "userId and fileType are required"})
		return
	}
	if err := s.media.Link(c.Request.Context(), &media); err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, media)
}

func (s *Server) handleQueryMedia(c *gin.Context) {
	ctx := c.Request.Context()
	var limit int64
	if v, ok := c.GetQuery("limit"); ok {
		limit, _ = strconv.ParseInt(v, 10, 64)
	}

	// One indexed filter at a time; the media catalog has no
	// composites.
	var (
		files []*store.MediaFile
		err   error
	)
	switch {
	case c.Query("messageId") != "":
		files, err = s.media.ForMessage(ctx, c.Query("messageId"), limit)
	case c.Query("userId") != "":
		var uid int64
		if uid, err = strconv.ParseInt(c.Query("userId"), 10, 64); err == nil {
			files, err = s.media.ForUser(ctx, uid, limit)
		}
	case c.Query("fileType") != "":
		files, err = s.media.ByType(ctx, c.Query("fileType"), limit)
	case c.Query("unprocessed") == "true":
		files, err = s.media.Unprocessed(ctx, limit)
	default:
		s.writeError(c, store.ErrUnsupportedPattern)
		return
	}
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"media": files, "count": len(files)})
}

func (s *Server) handleMarkProcessed(c *gin.Context) {
	id, err := bson.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "bad media id"})
		return
	}
	if err := s.media.MarkProcessed(c.Request.Context(), id); err != nil {
		s.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) handleUpsertSession(c *gin.Context) {
	var req struct {
		UserID           int64  `json:"userId" binding:"required"`
		ConnectionStatus string `json:"connectionStatus"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := s.cache.Establish(c.Request.Context(), c.Param("id"), req.UserID); err != nil {
		s.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) handleHeartbeat(c *gin.Context) {
	if err := s.cache.Heartbeat(c.Request.Context(), c.Param("id")); err != nil {
		s.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) handleLogout(c *gin.Context) {
	if err := s.cache.Logout(c.Request.Context(), c.Param("id")); err != nil {
		s.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) handleQuerySessions(c *gin.Context) {
	ctx := c.Request.Context()
	var limit int64
	if v, ok := c.GetQuery("limit"); ok {
		limit, _ = strconv.ParseInt(v, 10, 64)
	}

	var (
		sessions []*store.ChatSession
		err      error
	)
	switch {
	case c.Query("userId") != "":
		var uid int64
		if uid, err = strconv.ParseInt(c.Query("userId"), 10, 64); err == nil {
			sessions, err = s.sessions.ForUser(ctx, uid, limit)
		}
	case c.Query("connectionStatus") != "":
		sessions, err = s.sessions.ByStatus(ctx, c.Query("connectionStatus"), limit)
	default:
		s.writeError(c, store.ErrUnsupportedPattern)
		return
	}
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"sessions": sessions, "count": len(sessions)})
}
