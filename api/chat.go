package api

import (
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"ragchat/domain"
)

// PostMessage runs one chat turn: persist the user message, answer it
// grounded in retrieved chunks and the session's memory window, persist the
// assistant message.
// POST /api/v1/chat/message
func (h *Handler) PostMessage(c echo.Context) error {
	ctx := c.Request().Context()
	sess := sessionFromContext(c)

	var req domain.ChatRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}

	// Rejected before anything is persisted and before the retrieval or
	// completion backend is touched.
	if strings.TrimSpace(req.Message) == "" {
		return c.JSON(http.StatusBadRequest, map[string]interface{}{
			"error":   "Please provide a valid question.",
			"success": false,
		})
	}

	includeHistory := true
	if req.IncludeHistory != nil {
		includeHistory = *req.IncludeHistory
	}

	// Seed a cold memory entry from stored history. Seeding failure is not
	// fatal; the turn proceeds with an empty window.
	var seed []domain.HistoryEntry
	if includeHistory {
		var err error
		seed, err = h.sessions.GetConversationHistory(ctx, sess, h.config.MaxContextTurns)
		if err != nil {
			log.Printf("WARN: failed to load history for session %s: %v", sess.ID, err)
		}
	}

	// The entry lock is held from before the user message is persisted until
	// the turn is appended, so concurrent turns on one session serialize.
	ent := h.memory.GetOrCreate(sess.ID, seed)
	ent.Lock()
	defer ent.Unlock()

	if _, err := h.sessions.SaveMessage(ctx, sess, domain.RoleUser, req.Message, nil); err != nil {
		log.Printf("ERROR: failed to save user message: %v", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to save message"})
	}

	result := h.orch.Answer(ctx, req.Message, ent, includeHistory)
	if !result.Success {
		// The user message row stays; only the assistant half is missing.
		return c.JSON(http.StatusInternalServerError, map[string]interface{}{
			"error":   result.Response,
			"details": result.Err,
			"success": false,
		})
	}

	assistantMsg, err := h.sessions.SaveMessage(ctx, sess, domain.RoleAssistant, result.Response, result.Sources)
	if err != nil {
		log.Printf("ERROR: failed to save assistant message: %v", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to save message"})
	}

	return c.JSON(http.StatusOK, domain.ChatResponse{
		Response:  result.Response,
		Sources:   result.Sources,
		MessageID: assistantMsg.ID,
		SessionID: sess.ID,
		Timestamp: assistantMsg.Timestamp,
		Success:   true,
	})
}

// GetHistory returns the session's recent conversation history in
// chronological order. limit counts turn-pairs, not messages.
// GET /api/v1/chat/history
func (h *Handler) GetHistory(c echo.Context) error {
	ctx := c.Request().Context()
	sess := sessionFromContext(c)

	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	if limit <= 0 {
		limit = 50
	}
	if limit > 100 {
		limit = 100
	}

	history, err := h.sessions.GetConversationHistory(ctx, sess, limit)
	if err != nil {
		log.Printf("ERROR: failed to get history: %v", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to get history"})
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"session_id": sess.ID,
		"history":    history,
		"count":      len(history),
	})
}

// ClearContext evicts the session's memory entry. Stored messages persist;
// the next turn starts from a window rebuilt from the store.
// POST /api/v1/chat/clear
func (h *Handler) ClearContext(c echo.Context) error {
	sess := sessionFromContext(c)
	h.memory.Clear(sess.ID)

	return c.JSON(http.StatusOK, map[string]interface{}{
		"message": "conversation context cleared",
		"success": true,
	})
}
