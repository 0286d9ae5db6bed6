package api

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/labstack/echo/v4"

	"ragchat/domain"
	"ragchat/tests/helpers"
)

func TestLogin(t *testing.T) {
	e := echo.New()
	h := newTestHandler(t)
	org := helpers.SeedOrganization(t, h.store, "org-key")

	c, rec := newJSONContext(e, http.MethodPost, "/api/v1/auth/login", `{"username":"alice","email":"alice@acme.test"}`)
	c.Set(ctxOrgKey, org)

	if err := h.Login(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp domain.LoginResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !resp.Success || resp.SessionToken == "" || resp.Username != "alice" {
		t.Fatalf("unexpected response: %+v", resp)
	}
	if !resp.ExpiresAt.After(time.Now()) {
		t.Fatalf("expected future expiry, got %v", resp.ExpiresAt)
	}

	// Second login invalidates the first session.
	c2, rec2 := newJSONContext(e, http.MethodPost, "/api/v1/auth/login", `{"username":"alice"}`)
	c2.Set(ctxOrgKey, org)
	if err := h.Login(c2); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	var resp2 domain.LoginResponse
	if err := json.Unmarshal(rec2.Body.Bytes(), &resp2); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp2.SessionToken == resp.SessionToken {
		t.Fatalf("expected a fresh token on repeat login")
	}

	old, err := h.sessions.GetActiveSession(context.Background(), resp.SessionToken)
	if err != nil {
		t.Fatalf("GetActiveSession failed: %v", err)
	}
	if old != nil {
		t.Fatalf("expected first session invalidated, got %+v", old)
	}
}

func TestLoginMissingUsername(t *testing.T) {
	e := echo.New()
	h := newTestHandler(t)
	org := helpers.SeedOrganization(t, h.store, "org-key")

	c, rec := newJSONContext(e, http.MethodPost, "/api/v1/auth/login", `{"username":"   "}`)
	c.Set(ctxOrgKey, org)

	if err := h.Login(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestLogout(t *testing.T) {
	e := echo.New()
	h := newTestHandler(t)
	org := helpers.SeedOrganization(t, h.store, "org-key")
	user := helpers.SeedUser(t, h.store, org, "alice")
	sess := helpers.SeedSession(t, h.store, user, time.Hour)

	// Prime a memory entry so logout has something to evict.
	h.memory.GetOrCreate(sess.ID, nil).Append("q", "a")

	c, rec := newJSONContext(e, http.MethodPost, "/api/v1/auth/logout", "")
	c.Set(ctxOrgKey, org)
	c.Set(ctxSessionKey, sess)

	if err := h.Logout(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	got, err := h.sessions.GetActiveSession(context.Background(), sess.SessionToken)
	if err != nil {
		t.Fatalf("GetActiveSession failed: %v", err)
	}
	if got != nil {
		t.Fatalf("expected session deactivated, got %+v", got)
	}
	if len(h.memory.ActiveSessions()) != 0 {
		t.Fatalf("expected memory entry evicted")
	}
}
