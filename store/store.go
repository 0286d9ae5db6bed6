// Package store defines the storage interface and implementations.
package store

import (
	"context"
	"time"

	"ragchat/domain"
)

// Store defines the interface for data persistence. Getters return
// (nil, nil) when the row is absent so callers can tell "not found" apart
// from a storage failure.
type Store interface {
	// Organization operations
	CreateOrganization(ctx context.Context, org *domain.Organization) error
	GetOrganizationByAPIKey(ctx context.Context, apiKey string) (*domain.Organization, error)

	// User operations
	GetActiveUser(ctx context.Context, username, orgID string) (*domain.User, error)
	CreateUser(ctx context.Context, user *domain.User) error
	TouchUser(ctx context.Context, userID string, at time.Time) error

	// Session operations. CreateSession deactivates the user's prior active
	// sessions and inserts the new one in a single transaction.
	CreateSession(ctx context.Context, session *domain.Session) error
	GetActiveSession(ctx context.Context, token string, now time.Time) (*domain.Session, error)
	GetSession(ctx context.Context, sessionID, orgID string) (*domain.Session, error)
	TouchSession(ctx context.Context, sessionID string, at time.Time) error
	DeactivateSession(ctx context.Context, sessionID string) error
	DeactivateUserSessions(ctx context.Context, userID, orgID string) ([]string, error)
	CleanupExpiredSessions(ctx context.Context, now time.Time) (int64, error)

	// Message operations
	CreateMessage(ctx context.Context, message *domain.Message) error
	GetRecentMessages(ctx context.Context, sessionID string, limit int) ([]domain.Message, error)

	// Admin projections
	ListActiveSessions(ctx context.Context, orgID string) ([]domain.SessionInfo, error)
	ListUsers(ctx context.Context, orgID string) ([]domain.UserInfo, error)
	ListUserSessions(ctx context.Context, userID, orgID string) ([]domain.SessionInfo, error)
	GetOrgStats(ctx context.Context, orgID string, now time.Time) (*domain.OrgStats, error)
	ListRecentMessages(ctx context.Context, orgID string, limit int) ([]domain.RecentMessage, error)

	// Lifecycle
	Close() error
}
