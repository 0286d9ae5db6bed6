package api

import (
	"context"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
)

// adminActionAllowed evaluates the admin policy for a destructive action.
func (h *Handler) adminActionAllowed(ctx context.Context, c echo.Context, action string) (bool, error) {
	decision, err := h.policy.Evaluate(ctx, map[string]interface{}{
		"action":          action,
		"organization_id": orgFromContext(c).ID,
	})
	if err != nil {
		return false, err
	}
	return decision != "block", nil
}

// blockedByPolicy is the shared 403 response for blocked admin actions.
func blockedByPolicy(c echo.Context, action string) error {
	log.Printf("WARN: admin action %s blocked by policy for org %s", action, orgFromContext(c).ID)
	return c.JSON(http.StatusForbidden, map[string]string{"error": "action blocked by policy"})
}

// ListActiveSessions returns the organization's active sessions with user
// info.
// GET /api/v1/admin/sessions
func (h *Handler) ListActiveSessions(c echo.Context) error {
	ctx := c.Request().Context()
	org := orgFromContext(c)

	sessions, err := h.store.ListActiveSessions(ctx, org.ID)
	if err != nil {
		log.Printf("ERROR: failed to list sessions: %v", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to list sessions"})
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"sessions": sessions,
		"count":    len(sessions),
	})
}

// ListUsers returns the organization's users with active-session counts.
// GET /api/v1/admin/users
func (h *Handler) ListUsers(c echo.Context) error {
	ctx := c.Request().Context()
	org := orgFromContext(c)

	users, err := h.store.ListUsers(ctx, org.ID)
	if err != nil {
		log.Printf("ERROR: failed to list users: %v", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to list users"})
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"users": users,
		"count": len(users),
	})
}

// ListUserSessions returns all sessions of one user, active or not.
// GET /api/v1/admin/users/:user_id/sessions
func (h *Handler) ListUserSessions(c echo.Context) error {
	ctx := c.Request().Context()
	org := orgFromContext(c)
	userID := c.Param("user_id")

	sessions, err := h.store.ListUserSessions(ctx, userID, org.ID)
	if err != nil {
		log.Printf("ERROR: failed to list user sessions: %v", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to list sessions"})
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"user_id":  userID,
		"sessions": sessions,
		"count":    len(sessions),
	})
}

// TerminateSession deactivates one session and evicts its memory entry.
// Sessions outside the caller's organization read as not found.
// POST /api/v1/admin/sessions/:session_id/terminate
func (h *Handler) TerminateSession(c echo.Context) error {
	ctx := c.Request().Context()
	org := orgFromContext(c)
	sessionID := c.Param("session_id")

	allowed, err := h.adminActionAllowed(ctx, c, "terminate_session")
	if err != nil {
		log.Printf("ERROR: failed to evaluate policy: %v", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "policy evaluation failed"})
	}
	if !allowed {
		return blockedByPolicy(c, "terminate_session")
	}

	sess, err := h.store.GetSession(ctx, sessionID, org.ID)
	if err != nil {
		log.Printf("ERROR: failed to get session: %v", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to get session"})
	}
	if sess == nil {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "session not found"})
	}

	if err := h.store.DeactivateSession(ctx, sess.ID); err != nil {
		log.Printf("ERROR: failed to terminate session: %v", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to terminate session"})
	}
	h.memory.Clear(sess.ID)

	log.Printf("Terminated session %s for org %s", sess.ID, org.Name)
	return c.JSON(http.StatusOK, map[string]interface{}{
		"message":    "session terminated",
		"session_id": sess.ID,
		"success":    true,
	})
}

// TerminateUserSessions deactivates all of a user's active sessions and
// evicts each memory entry.
// POST /api/v1/admin/users/:user_id/terminate-sessions
func (h *Handler) TerminateUserSessions(c echo.Context) error {
	ctx := c.Request().Context()
	org := orgFromContext(c)
	userID := c.Param("user_id")

	allowed, err := h.adminActionAllowed(ctx, c, "terminate_user_sessions")
	if err != nil {
		log.Printf("ERROR: failed to evaluate policy: %v", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "policy evaluation failed"})
	}
	if !allowed {
		return blockedByPolicy(c, "terminate_user_sessions")
	}

	ids, err := h.store.DeactivateUserSessions(ctx, userID, org.ID)
	if err != nil {
		log.Printf("ERROR: failed to terminate user sessions: %v", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to terminate sessions"})
	}
	for _, id := range ids {
		h.memory.Clear(id)
	}

	log.Printf("Terminated %d sessions for user %s", len(ids), userID)
	return c.JSON(http.StatusOK, map[string]interface{}{
		"user_id":    userID,
		"terminated": len(ids),
		"success":    true,
	})
}

// GetStats returns the organization's usage statistics.
// GET /api/v1/admin/stats
func (h *Handler) GetStats(c echo.Context) error {
	ctx := c.Request().Context()
	org := orgFromContext(c)

	stats, err := h.store.GetOrgStats(ctx, org.ID, time.Now().UTC())
	if err != nil {
		log.Printf("ERROR: failed to get stats: %v", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to get stats"})
	}

	return c.JSON(http.StatusOK, stats)
}

// ListRecentMessages returns the organization's most recent messages with
// content truncated for display.
// GET /api/v1/admin/messages/recent
func (h *Handler) ListRecentMessages(c echo.Context) error {
	ctx := c.Request().Context()
	org := orgFromContext(c)

	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	if limit <= 0 {
		limit = 50
	}
	if limit > 200 {
		limit = 200
	}

	messages, err := h.store.ListRecentMessages(ctx, org.ID, limit)
	if err != nil {
		log.Printf("ERROR: failed to list recent messages: %v", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to list messages"})
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"messages": messages,
		"count":    len(messages),
	})
}
