package domain

import "time"

// LoginRequest is the body of POST /api/v1/auth/login.
type LoginRequest struct {
	Username string `json:"username"`
	Email    string `json:"email,omitempty"`
}

// LoginResponse is returned on successful login.
type LoginResponse struct {
	SessionToken string    `json:"session_token"`
	UserID       string    `json:"user_id"`
	Username     string    `json:"username"`
	Organization string    `json:"organization"`
	ExpiresAt    time.Time `json:"expires_at"`
	Success      bool      `json:"success"`
}

// ChatRequest is the body of POST /api/v1/chat/message.
type ChatRequest struct {
	Message        string `json:"message"`
	IncludeHistory *bool  `json:"include_history,omitempty"`
}

// ChatResponse is returned for a completed chat turn.
type ChatResponse struct {
	Response  string    `json:"response"`
	Sources   []string  `json:"sources"`
	MessageID string    `json:"message_id"`
	SessionID string    `json:"session_id"`
	Timestamp time.Time `json:"timestamp"`
	Success   bool      `json:"success"`
}

// SessionInfo is the admin projection of a session joined with its user.
type SessionInfo struct {
	SessionID    string    `json:"session_id"`
	SessionToken string    `json:"session_token"`
	UserID       string    `json:"user_id"`
	Username     string    `json:"username"`
	CreatedAt    time.Time `json:"created_at"`
	LastActivity time.Time `json:"last_activity"`
	ExpiresAt    time.Time `json:"expires_at"`
	IsActive     bool      `json:"is_active"`
}

// UserInfo is the admin projection of a user with an active-session count.
type UserInfo struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	LastActive   time.Time `json:"last_active"`
	IsActive     bool      `json:"is_active"`
	SessionCount int       `json:"session_count"`
}

// OrgStats is the admin statistics projection for one organization.
type OrgStats struct {
	TotalUsers         int    `json:"total_users"`
	ActiveSessions     int    `json:"active_sessions"`
	MessagesToday      int    `json:"messages_today"`
	AvgSessionDuration string `json:"avg_session_duration"`
}

// RecentMessage is one row of the admin recent-messages listing. Content is
// truncated for display.
type RecentMessage struct {
	ID        string    `json:"id"`
	Username  string    `json:"user"`
	SessionID string    `json:"session_id"`
	Role      Role      `json:"type"`
	Content   string    `json:"content"`
	Sources   []string  `json:"sources"`
	Timestamp time.Time `json:"timestamp"`
}
