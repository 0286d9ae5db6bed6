package api

import (
	"log"
	"net/http"

	"github.com/labstack/echo/v4"

	"ragchat/domain"
)

// Context keys set by the auth middleware.
const (
	ctxOrgKey     = "org"
	ctxSessionKey = "session"
)

// requireAPIKey resolves the X-API-Key header to an active organization and
// injects it into the request context.
func (h *Handler) requireAPIKey(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		apiKey := c.Request().Header.Get("X-API-Key")

		org, err := h.sessions.AuthenticateOrganization(c.Request().Context(), apiKey)
		if err != nil {
			log.Printf("ERROR: failed to authenticate organization: %v", err)
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": "authentication failed"})
		}
		if org == nil {
			return c.JSON(http.StatusUnauthorized, map[string]string{"error": "invalid or missing API key"})
		}

		c.Set(ctxOrgKey, org)
		return next(c)
	}
}

// requireSession resolves the X-Session-Token header to an active,
// unexpired session belonging to the authenticated organization.
func (h *Handler) requireSession(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		token := c.Request().Header.Get("X-Session-Token")
		if token == "" {
			return c.JSON(http.StatusUnauthorized, map[string]string{"error": "missing session token"})
		}

		sess, err := h.sessions.GetActiveSession(c.Request().Context(), token)
		if err != nil {
			log.Printf("ERROR: failed to resolve session: %v", err)
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": "session lookup failed"})
		}
		if sess == nil || sess.OrganizationID != orgFromContext(c).ID {
			return c.JSON(http.StatusUnauthorized, map[string]string{"error": "invalid or expired session"})
		}

		c.Set(ctxSessionKey, sess)
		return next(c)
	}
}

func orgFromContext(c echo.Context) *domain.Organization {
	return c.Get(ctxOrgKey).(*domain.Organization)
}

func sessionFromContext(c echo.Context) *domain.Session {
	return c.Get(ctxSessionKey).(*domain.Session)
}
