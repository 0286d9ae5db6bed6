// Package api provides the HTTP handlers for the chat service.
package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"ragchat/config"
	"ragchat/memory"
	"ragchat/policy"
	"ragchat/rag"
	"ragchat/session"
	"ragchat/store"
)

// Handler handles HTTP requests.
type Handler struct {
	store    store.Store
	sessions *session.Manager
	memory   *memory.Cache
	orch     *rag.Orchestrator

	retriever     *rag.Handle
	loadRetriever func() (rag.Retriever, error)

	policy *policy.Engine
	config *config.Config
}

// NewHandler creates a new handler. loadRetriever builds a fresh retriever
// for the reload-documents admin action.
func NewHandler(
	s store.Store,
	sessions *session.Manager,
	mem *memory.Cache,
	orch *rag.Orchestrator,
	retriever *rag.Handle,
	loadRetriever func() (rag.Retriever, error),
	policyEngine *policy.Engine,
	cfg *config.Config,
) *Handler {
	return &Handler{
		store:         s,
		sessions:      sessions,
		memory:        mem,
		orch:          orch,
		retriever:     retriever,
		loadRetriever: loadRetriever,
		policy:        policyEngine,
		config:        cfg,
	}
}

// RegisterRoutes registers routes with the echo server.
func (h *Handler) RegisterRoutes(e *echo.Echo) {
	e.GET("/health", h.Health)

	v1 := e.Group("/api/v1", h.requireAPIKey)

	// Auth
	v1.POST("/auth/login", h.Login)
	v1.POST("/auth/logout", h.Logout, h.requireSession)

	// Chat (session-scoped)
	chat := v1.Group("/chat", h.requireSession)
	chat.POST("/message", h.PostMessage)
	chat.GET("/history", h.GetHistory)
	chat.POST("/clear", h.ClearContext)

	// Admin (org-scoped)
	admin := v1.Group("/admin")
	admin.GET("/sessions", h.ListActiveSessions)
	admin.GET("/users", h.ListUsers)
	admin.GET("/users/:user_id/sessions", h.ListUserSessions)
	admin.POST("/sessions/:session_id/terminate", h.TerminateSession)
	admin.POST("/users/:user_id/terminate-sessions", h.TerminateUserSessions)
	admin.GET("/stats", h.GetStats)
	admin.GET("/messages/recent", h.ListRecentMessages)
	admin.POST("/reload-documents", h.ReloadDocuments)
	admin.POST("/cleanup-sessions", h.CleanupSessions)
}

// Health returns health status.
func (h *Handler) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status":  "healthy",
		"service": "ragchat",
		"version": "0.1.0",
	})
}
