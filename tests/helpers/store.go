// Package helpers provides shared test fixtures.
package helpers

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"ragchat/domain"
	"ragchat/store"
)

// NewTestSQLiteStore creates an in-memory store closed at test cleanup.
func NewTestSQLiteStore(t *testing.T) *store.SQLiteStore {
	t.Helper()

	s, err := store.NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatalf("failed to create sqlite store: %v", err)
	}

	t.Cleanup(func() {
		_ = s.Close()
	})

	return s
}

// SeedOrganization inserts an active organization with the given API key.
func SeedOrganization(t *testing.T, s store.Store, apiKey string) *domain.Organization {
	t.Helper()

	org := &domain.Organization{
		ID:        uuid.NewString(),
		Name:      "Acme Corp",
		APIKey:    apiKey,
		CreatedAt: time.Now().UTC(),
		IsActive:  true,
	}
	if err := s.CreateOrganization(context.Background(), org); err != nil {
		t.Fatalf("failed to seed organization: %v", err)
	}
	return org
}

// SeedUser inserts an active user into the organization.
func SeedUser(t *testing.T, s store.Store, org *domain.Organization, username string) *domain.User {
	t.Helper()

	now := time.Now().UTC()
	user := &domain.User{
		ID:             uuid.NewString(),
		Username:       username,
		OrganizationID: org.ID,
		CreatedAt:      now,
		LastActive:     now,
		IsActive:       true,
	}
	if err := s.CreateUser(context.Background(), user); err != nil {
		t.Fatalf("failed to seed user: %v", err)
	}
	return user
}

// SeedSession inserts an active session for the user expiring after ttl.
func SeedSession(t *testing.T, s store.Store, user *domain.User, ttl time.Duration) *domain.Session {
	t.Helper()

	now := time.Now().UTC()
	session := &domain.Session{
		ID:             uuid.NewString(),
		UserID:         user.ID,
		OrganizationID: user.OrganizationID,
		SessionToken:   uuid.NewString(),
		CreatedAt:      now,
		LastActivity:   now,
		ExpiresAt:      now.Add(ttl),
		IsActive:       true,
	}
	if err := s.CreateSession(context.Background(), session); err != nil {
		t.Fatalf("failed to seed session: %v", err)
	}
	return session
}
