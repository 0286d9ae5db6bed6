// Package session manages organization authentication, session lifecycle
// and the persisted conversation history.
package session

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"ragchat/domain"
	"ragchat/store"
)

// Manager issues and validates sessions and persists chat turns.
type Manager struct {
	store store.Store
	ttl   time.Duration
}

// NewManager creates a session manager. ttl is the fixed session lifetime
// applied at creation; it does not slide on activity.
func NewManager(s store.Store, ttl time.Duration) *Manager {
	return &Manager{store: s, ttl: ttl}
}

// AuthenticateOrganization resolves an API key to its active organization.
// Returns (nil, nil) for an unknown or revoked key.
func (m *Manager) AuthenticateOrganization(ctx context.Context, apiKey string) (*domain.Organization, error) {
	if apiKey == "" {
		return nil, nil
	}
	return m.store.GetOrganizationByAPIKey(ctx, apiKey)
}

// GetOrCreateUser returns the active user identified by (username, org),
// creating it on first login. Repeat calls bump last_active.
func (m *Manager) GetOrCreateUser(ctx context.Context, username string, org *domain.Organization, email string) (*domain.User, error) {
	user, err := m.store.GetActiveUser(ctx, username, org.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}

	if user == nil {
		now := time.Now().UTC()
		user = &domain.User{
			ID:             uuid.NewString(),
			Username:       username,
			Email:          email,
			OrganizationID: org.ID,
			CreatedAt:      now,
			LastActive:     now,
			IsActive:       true,
		}
		if err := m.store.CreateUser(ctx, user); err != nil {
			return nil, fmt.Errorf("failed to create user: %w", err)
		}
		log.Printf("Created new user %s for org %s", username, org.Name)
		return user, nil
	}

	user.LastActive = time.Now().UTC()
	if err := m.store.TouchUser(ctx, user.ID, user.LastActive); err != nil {
		return nil, fmt.Errorf("failed to update user activity: %w", err)
	}
	return user, nil
}

// CreateSession opens a new session for the user. Any prior active sessions
// of that user are deactivated in the same transaction, so a user has at
// most one active session.
func (m *Manager) CreateSession(ctx context.Context, user *domain.User) (*domain.Session, error) {
	now := time.Now().UTC()
	session := &domain.Session{
		ID:             uuid.NewString(),
		UserID:         user.ID,
		OrganizationID: user.OrganizationID,
		SessionToken:   uuid.NewString(),
		CreatedAt:      now,
		LastActivity:   now,
		ExpiresAt:      now.Add(m.ttl),
		IsActive:       true,
	}
	if err := m.store.CreateSession(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	log.Printf("Created new session for user %s", user.Username)
	return session, nil
}

// GetActiveSession resolves a token to its session if the session is active
// and not expired. Returns (nil, nil) otherwise. Resolving a session bumps
// last_activity; expires_at stays fixed.
func (m *Manager) GetActiveSession(ctx context.Context, token string) (*domain.Session, error) {
	now := time.Now().UTC()
	session, err := m.store.GetActiveSession(ctx, token, now)
	if err != nil {
		return nil, fmt.Errorf("failed to look up session: %w", err)
	}
	if session == nil {
		return nil, nil
	}

	session.LastActivity = now
	if err := m.store.TouchSession(ctx, session.ID, now); err != nil {
		// last_activity is observability only; the session itself is valid.
		log.Printf("WARN: failed to update session activity: %v", err)
	}
	return session, nil
}

// SaveMessage appends one message to the session's history. Callers are
// expected to have validated the session in the same turn.
func (m *Manager) SaveMessage(ctx context.Context, session *domain.Session, role domain.Role, content string, sources []string) (*domain.Message, error) {
	message := &domain.Message{
		ID:        uuid.NewString(),
		SessionID: session.ID,
		Role:      role,
		Content:   content,
		Sources:   sources,
		Timestamp: time.Now().UTC(),
	}
	if err := m.store.CreateMessage(ctx, message); err != nil {
		return nil, fmt.Errorf("failed to save message: %w", err)
	}
	return message, nil
}

// GetConversationHistory returns the most recent limit turn-pairs (up to
// 2*limit messages) in chronological order, oldest first. limit counts
// pairs, not messages.
func (m *Manager) GetConversationHistory(ctx context.Context, session *domain.Session, limit int) ([]domain.HistoryEntry, error) {
	messages, err := m.store.GetRecentMessages(ctx, session.ID, limit*2)
	if err != nil {
		return nil, fmt.Errorf("failed to get conversation history: %w", err)
	}

	// Rows come newest-first; reverse into chronological order.
	history := make([]domain.HistoryEntry, 0, len(messages))
	for i := len(messages) - 1; i >= 0; i-- {
		msg := messages[i]
		entry := domain.HistoryEntry{
			Role:      msg.Role,
			Content:   msg.Content,
			Timestamp: msg.Timestamp,
		}
		if msg.Role == domain.RoleAssistant {
			entry.Sources = msg.Sources
		}
		history = append(history, entry)
	}
	return history, nil
}

// CleanupExpiredSessions deactivates every session past its expiry. The
// sweep is idempotent; rerunning it is a no-op.
func (m *Manager) CleanupExpiredSessions(ctx context.Context) (int64, error) {
	n, err := m.store.CleanupExpiredSessions(ctx, time.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to clean up sessions: %w", err)
	}
	if n > 0 {
		log.Printf("Cleaned up %d expired sessions", n)
	}
	return n, nil
}
