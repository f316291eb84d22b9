package main

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/legacykeep/chat-store/internal/auth"
	"github.com/legacykeep/chat-store/internal/logger"
	"github.com/legacykeep/chat-store/internal/middleware"
	"github.com/legacykeep/chat-store/internal/session"
	"github.com/legacykeep/chat-store/internal/store"
)

// Scopes a collaborator token may carry. Ingestion writes, enrichment
// updates derived fields, readers query, the transport heartbeats, the
// transcoder flips media flags.
const (
	ScopeWrite    = "messages:write"
	ScopeRead     = "messages:read"
	ScopeEnrich   = "messages:enrich"
	ScopeSessions = "sessions:write"
	ScopeMedia    = "media:write"
)

// Server holds the stores and guards behind the HTTP surface.
type Server struct {
	messages *store.MessagesStore
	media    *store.MediaStore
	sessions *store.SessionsStore
	cache    *session.Cache
	auth     *auth.JWTManager
	limiter  *middleware.LimiterStore
	log      *zap.Logger
}

// newServer returns a ready-to-use Server wired with stores and guards.
func newServer(
	messages *store.MessagesStore,
	media *store.MediaStore,
	sessions *store.SessionsStore,
	cache *session.Cache,
	authMgr *auth.JWTManager,
	limiter *middleware.LimiterStore,
	log *zap.Logger,
) *Server {
	return &Server{
		messages: messages,
		media:    media,
		sessions: sessions,
		cache:    cache,
		auth:     authMgr,
		limiter:  limiter,
		log:      log,
	}
}

// routes assembles the gin engine: logging and recovery first, then
// auth, then rate limiting keyed by the authenticated service.
func (s *Server) routes() *gin.Engine {
	r := gin.New()
	r.Use(logger.GinLogger(s.log), logger.GinRecovery(s.log))

	r.GET("/healthz", s.handleHealth)

	// Authenticate first so the limiter can key by service, then
	// enforce per-route scopes.
	v1 := r.Group("/v1")
	v1.Use(middleware.RequireService(s.auth, ""), middleware.RateLimit(s.limiter))

	msgs := v1.Group("/messages")
	{
		msgs.POST("", middleware.RequireScope(ScopeWrite), s.handleInsertMessage)
		msgs.GET("", middleware.RequireScope(ScopeRead), s.handleQueryMessages)
		msgs.GET("/search", middleware.RequireScope(ScopeRead), s.handleSearchMessages)
		msgs.GET("/:uuid", middleware.RequireScope(ScopeRead), s.handleGetMessage)
		msgs.PATCH("/:uuid", middleware.RequireScope(ScopeEnrich), s.handleUpdateMessage)
		msgs.DELETE("/:uuid", middleware.RequireScope(ScopeWrite), s.handleDeleteMessage)
		msgs.POST("/:uuid/view", middleware.RequireScope(ScopeRead), s.handleRegisterView)
		msgs.POST("/:uuid/read", middleware.RequireScope(ScopeWrite), s.handleMarkRead)
		msgs.POST("/:uuid/reactions", middleware.RequireScope(ScopeWrite), s.handleAddReaction)
		msgs.DELETE("/:uuid/reactions", middleware.RequireScope(ScopeWrite), s.handleRemoveReaction)
		msgs.POST("/:uuid/unlock", middleware.RequireScope(ScopeRead), s.handleUnlockMessage)
		msgs.POST("/:uuid/media", middleware.RequireScope(ScopeMedia), s.handleLinkMedia)
	}

	media := v1.Group("/media", middleware.RequireScope(ScopeMedia))
	{
		media.GET("", s.handleQueryMedia)
		media.POST("/:id/processed", s.handleMarkProcessed)
	}

	sessions := v1.Group("/sessions", middleware.RequireScope(ScopeSessions))
	{
		sessions.PUT("/:id", s.handleUpsertSession)
		sessions.POST("/:id/heartbeat", s.handleHeartbeat)
		sessions.DELETE("/:id", s.handleLogout)
		sessions.GET("", s.handleQuerySessions)
	}

	return r
}
