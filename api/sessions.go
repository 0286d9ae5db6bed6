package api

import (
	"log"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"ragchat/domain"
)

// Login gets or creates the user and opens a fresh session for them.
// POST /api/v1/auth/login
func (h *Handler) Login(c echo.Context) error {
	ctx := c.Request().Context()
	org := orgFromContext(c)

	var req domain.LoginRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}

	username := strings.TrimSpace(req.Username)
	if username == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "username is required"})
	}

	user, err := h.sessions.GetOrCreateUser(ctx, username, org, req.Email)
	if err != nil {
		log.Printf("ERROR: failed to get or create user: %v", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "login failed"})
	}

	sess, err := h.sessions.CreateSession(ctx, user)
	if err != nil {
		log.Printf("ERROR: failed to create session: %v", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "login failed"})
	}

	return c.JSON(http.StatusOK, domain.LoginResponse{
		SessionToken: sess.SessionToken,
		UserID:       user.ID,
		Username:     user.Username,
		Organization: org.Name,
		ExpiresAt:    sess.ExpiresAt,
		Success:      true,
	})
}

// Logout deactivates the session and evicts its memory entry.
// POST /api/v1/auth/logout
func (h *Handler) Logout(c echo.Context) error {
	ctx := c.Request().Context()
	sess := sessionFromContext(c)

	if err := h.store.DeactivateSession(ctx, sess.ID); err != nil {
		log.Printf("ERROR: failed to deactivate session: %v", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "logout failed"})
	}
	h.memory.Clear(sess.ID)

	return c.JSON(http.StatusOK, map[string]interface{}{
		"message": "logged out",
		"success": true,
	})
}
