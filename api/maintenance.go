package api

import (
	"log"
	"net/http"

	"github.com/labstack/echo/v4"
)

// ReloadDocuments rebuilds the retriever and swaps it in atomically.
// In-flight turns finish on the retriever they loaded; all memory entries
// are evicted so later turns re-seed against the new documents.
// POST /api/v1/admin/reload-documents
func (h *Handler) ReloadDocuments(c echo.Context) error {
	ctx := c.Request().Context()

	allowed, err := h.adminActionAllowed(ctx, c, "reload_documents")
	if err != nil {
		log.Printf("ERROR: failed to evaluate policy: %v", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "policy evaluation failed"})
	}
	if !allowed {
		return blockedByPolicy(c, "reload_documents")
	}

	retriever, err := h.loadRetriever()
	if err != nil {
		log.Printf("ERROR: failed to reload documents: %v", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to reload documents"})
	}
	h.retriever.Swap(retriever)

	cleared := 0
	for _, id := range h.memory.ActiveSessions() {
		h.memory.Clear(id)
		cleared++
	}

	log.Printf("Reloaded documents; cleared %d memory entries", cleared)
	return c.JSON(http.StatusOK, map[string]interface{}{
		"message":          "documents reloaded",
		"cleared_sessions": cleared,
		"success":          true,
	})
}

// CleanupSessions deactivates every session past its expiry.
// POST /api/v1/admin/cleanup-sessions
func (h *Handler) CleanupSessions(c echo.Context) error {
	ctx := c.Request().Context()

	cleaned, err := h.sessions.CleanupExpiredSessions(ctx)
	if err != nil {
		log.Printf("ERROR: failed to clean up sessions: %v", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to clean up sessions"})
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"cleaned": cleaned,
		"success": true,
	})
}
