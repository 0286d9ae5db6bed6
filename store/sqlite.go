package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"ragchat/domain"
)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite store.
func NewSQLiteStore(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// For in-memory SQLite, multiple connections create separate databases.
	// Keep a single connection to avoid schema/data disappearing across goroutines.
	if dsn == ":memory:" || strings.Contains(dsn, "mode=memory") {
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
	}

	// Enable foreign keys
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// migrate runs database migrations.
func (s *SQLiteStore) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS organizations (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			domain TEXT UNIQUE,
			api_key TEXT NOT NULL UNIQUE,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			is_active INTEGER NOT NULL DEFAULT 1
		)`,
		`CREATE TABLE IF NOT EXISTS users (
			id TEXT PRIMARY KEY,
			username TEXT NOT NULL,
			email TEXT,
			organization_id TEXT NOT NULL,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			last_active DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			is_active INTEGER NOT NULL DEFAULT 1,
			FOREIGN KEY (organization_id) REFERENCES organizations(id)
		)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_users_username_org
			ON users(username, organization_id) WHERE is_active = 1`,
		`CREATE INDEX IF NOT EXISTS idx_users_org ON users(organization_id)`,
		`CREATE TABLE IF NOT EXISTS sessions (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			organization_id TEXT NOT NULL,
			session_token TEXT NOT NULL UNIQUE,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			last_activity DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			expires_at DATETIME NOT NULL,
			is_active INTEGER NOT NULL DEFAULT 1,
			FOREIGN KEY (user_id) REFERENCES users(id),
			FOREIGN KEY (organization_id) REFERENCES organizations(id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_sessions_org ON sessions(organization_id)`,
		`CREATE INDEX IF NOT EXISTS idx_sessions_user ON sessions(user_id, is_active)`,
		`CREATE TABLE IF NOT EXISTS messages (
			id TEXT PRIMARY KEY,
			session_id TEXT NOT NULL,
			role TEXT NOT NULL,
			content TEXT NOT NULL,
			sources TEXT,
			timestamp DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			FOREIGN KEY (session_id) REFERENCES sessions(id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_messages_session ON messages(session_id, timestamp)`,
	}

	for _, m := range migrations {
		if _, err := s.db.Exec(m); err != nil {
			return fmt.Errorf("migration failed: %w\n%s", err, m)
		}
	}
	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// CreateOrganization creates a new organization.
func (s *SQLiteStore) CreateOrganization(ctx context.Context, org *domain.Organization) error {
	var orgDomain sql.NullString
	if org.Domain != "" {
		orgDomain = sql.NullString{String: org.Domain, Valid: true}
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO organizations (id, name, domain, api_key, created_at, is_active) VALUES (?, ?, ?, ?, ?, ?)`,
		org.ID, org.Name, orgDomain, org.APIKey, org.CreatedAt, org.IsActive)
	return err
}

// GetOrganizationByAPIKey retrieves an active organization by API key.
func (s *SQLiteStore) GetOrganizationByAPIKey(ctx context.Context, apiKey string) (*domain.Organization, error) {
	var org domain.Organization
	var orgDomain sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, domain, api_key, created_at, is_active FROM organizations WHERE api_key = ? AND is_active = 1`,
		apiKey).Scan(&org.ID, &org.Name, &orgDomain, &org.APIKey, &org.CreatedAt, &org.IsActive)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if orgDomain.Valid {
		org.Domain = orgDomain.String
	}
	return &org, nil
}

// GetActiveUser retrieves the active user identified by (username, org).
func (s *SQLiteStore) GetActiveUser(ctx context.Context, username, orgID string) (*domain.User, error) {
	var user domain.User
	var email sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT id, username, email, organization_id, created_at, last_active, is_active
		 FROM users WHERE username = ? AND organization_id = ? AND is_active = 1`,
		username, orgID).Scan(&user.ID, &user.Username, &email, &user.OrganizationID,
		&user.CreatedAt, &user.LastActive, &user.IsActive)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if email.Valid {
		user.Email = email.String
	}
	return &user, nil
}

// CreateUser creates a new user.
func (s *SQLiteStore) CreateUser(ctx context.Context, user *domain.User) error {
	var email sql.NullString
	if user.Email != "" {
		email = sql.NullString{String: user.Email, Valid: true}
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users (id, username, email, organization_id, created_at, last_active, is_active) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		user.ID, user.Username, email, user.OrganizationID, user.CreatedAt, user.LastActive, user.IsActive)
	return err
}

// TouchUser updates a user's last_active timestamp.
func (s *SQLiteStore) TouchUser(ctx context.Context, userID string, at time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE users SET last_active = ? WHERE id = ?`, at, userID)
	return err
}

// CreateSession deactivates the user's prior active sessions and inserts the
// new session in one transaction so a partial write is never observable.
func (s *SQLiteStore) CreateSession(ctx context.Context, session *domain.Session) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`UPDATE sessions SET is_active = 0 WHERE user_id = ? AND is_active = 1`,
		session.UserID); err != nil {
		return fmt.Errorf("failed to deactivate prior sessions: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO sessions (id, user_id, organization_id, session_token, created_at, last_activity, expires_at, is_active)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		session.ID, session.UserID, session.OrganizationID, session.SessionToken,
		session.CreatedAt, session.LastActivity, session.ExpiresAt, session.IsActive); err != nil {
		return fmt.Errorf("failed to insert session: %w", err)
	}

	return tx.Commit()
}

// GetActiveSession retrieves a session by token if it is active and not yet
// expired at the given instant.
func (s *SQLiteStore) GetActiveSession(ctx context.Context, token string, now time.Time) (*domain.Session, error) {
	var session domain.Session
	err := s.db.QueryRowContext(ctx,
		`SELECT id, user_id, organization_id, session_token, created_at, last_activity, expires_at, is_active
		 FROM sessions WHERE session_token = ? AND is_active = 1 AND expires_at > ?`,
		token, now).Scan(&session.ID, &session.UserID, &session.OrganizationID, &session.SessionToken,
		&session.CreatedAt, &session.LastActivity, &session.ExpiresAt, &session.IsActive)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &session, nil
}

// GetSession retrieves a session by id scoped to an organization.
func (s *SQLiteStore) GetSession(ctx context.Context, sessionID, orgID string) (*domain.Session, error) {
	var session domain.Session
	err := s.db.QueryRowContext(ctx,
		`SELECT id, user_id, organization_id, session_token, created_at, last_activity, expires_at, is_active
		 FROM sessions WHERE id = ? AND organization_id = ?`,
		sessionID, orgID).Scan(&session.ID, &session.UserID, &session.OrganizationID, &session.SessionToken,
		&session.CreatedAt, &session.LastActivity, &session.ExpiresAt, &session.IsActive)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &session, nil
}

// TouchSession updates a session's last_activity timestamp.
func (s *SQLiteStore) TouchSession(ctx context.Context, sessionID string, at time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE sessions SET last_activity = ? WHERE id = ?`, at, sessionID)
	return err
}

// DeactivateSession flips a session inactive.
func (s *SQLiteStore) DeactivateSession(ctx context.Context, sessionID string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE sessions SET is_active = 0 WHERE id = ?`, sessionID)
	return err
}

// DeactivateUserSessions deactivates every active session of a user within
// an organization and returns the affected session ids.
func (s *SQLiteStore) DeactivateUserSessions(ctx context.Context, userID, orgID string) ([]string, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx,
		`SELECT id FROM sessions WHERE user_id = ? AND organization_id = ? AND is_active = 1`,
		userID, orgID)
	if err != nil {
		return nil, err
	}
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, err
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE sessions SET is_active = 0 WHERE user_id = ? AND organization_id = ? AND is_active = 1`,
		userID, orgID); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return ids, nil
}

// CleanupExpiredSessions flips active sessions past their expiry inactive.
// Safe to run repeatedly; an already-swept session is a no-op.
func (s *SQLiteStore) CleanupExpiredSessions(ctx context.Context, now time.Time) (int64, error) {
	result, err := s.db.ExecContext(ctx,
		`UPDATE sessions SET is_active = 0 WHERE is_active = 1 AND expires_at <= ?`, now)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// CreateMessage appends a message to a session.
func (s *SQLiteStore) CreateMessage(ctx context.Context, message *domain.Message) error {
	var sources sql.NullString
	if len(message.Sources) > 0 {
		data, err := json.Marshal(message.Sources)
		if err != nil {
			return fmt.Errorf("failed to marshal sources: %w", err)
		}
		sources = sql.NullString{String: string(data), Valid: true}
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO messages (id, session_id, role, content, sources, timestamp) VALUES (?, ?, ?, ?, ?, ?)`,
		message.ID, message.SessionID, message.Role, message.Content, sources, message.Timestamp)
	return err
}

// GetRecentMessages retrieves up to limit messages for a session, newest
// first.
func (s *SQLiteStore) GetRecentMessages(ctx context.Context, sessionID string, limit int) ([]domain.Message, error) {
	query := `SELECT id, session_id, role, content, sources, timestamp FROM messages
		WHERE session_id = ? ORDER BY timestamp DESC, id DESC`
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}

	rows, err := s.db.QueryContext(ctx, query, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []domain.Message
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		messages = append(messages, *msg)
	}
	return messages, rows.Err()
}

func scanMessage(rows *sql.Rows) (*domain.Message, error) {
	var msg domain.Message
	var sources sql.NullString
	if err := rows.Scan(&msg.ID, &msg.SessionID, &msg.Role, &msg.Content, &sources, &msg.Timestamp); err != nil {
		return nil, err
	}
	if sources.Valid && sources.String != "" {
		if err := json.Unmarshal([]byte(sources.String), &msg.Sources); err != nil {
			return nil, fmt.Errorf("failed to unmarshal sources: %w", err)
		}
	}
	return &msg, nil
}

// ListActiveSessions lists active sessions for an organization with user
// info attached.
func (s *SQLiteStore) ListActiveSessions(ctx context.Context, orgID string) ([]domain.SessionInfo, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT s.id, s.session_token, u.id, u.username, s.created_at, s.last_activity, s.expires_at, s.is_active
		 FROM sessions s JOIN users u ON u.id = s.user_id
		 WHERE s.organization_id = ? AND s.is_active = 1
		 ORDER BY s.created_at DESC`, orgID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanSessionInfos(rows)
}

// ListUserSessions lists all sessions for one user within an organization,
// newest first.
func (s *SQLiteStore) ListUserSessions(ctx context.Context, userID, orgID string) ([]domain.SessionInfo, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT s.id, s.session_token, u.id, u.username, s.created_at, s.last_activity, s.expires_at, s.is_active
		 FROM sessions s JOIN users u ON u.id = s.user_id
		 WHERE s.user_id = ? AND s.organization_id = ?
		 ORDER BY s.created_at DESC`, userID, orgID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanSessionInfos(rows)
}

func scanSessionInfos(rows *sql.Rows) ([]domain.SessionInfo, error) {
	var infos []domain.SessionInfo
	for rows.Next() {
		var info domain.SessionInfo
		if err := rows.Scan(&info.SessionID, &info.SessionToken, &info.UserID, &info.Username,
			&info.CreatedAt, &info.LastActivity, &info.ExpiresAt, &info.IsActive); err != nil {
			return nil, err
		}
		infos = append(infos, info)
	}
	return infos, rows.Err()
}

// ListUsers lists an organization's users with their active-session counts.
func (s *SQLiteStore) ListUsers(ctx context.Context, orgID string) ([]domain.UserInfo, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT u.id, u.username, u.email, u.created_at, u.last_active, u.is_active,
		        COUNT(s.id) AS session_count
		 FROM users u
		 LEFT JOIN sessions s ON s.user_id = u.id AND s.is_active = 1
		 WHERE u.organization_id = ?
		 GROUP BY u.id
		 ORDER BY u.created_at`, orgID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []domain.UserInfo
	for rows.Next() {
		var user domain.UserInfo
		var email sql.NullString
		if err := rows.Scan(&user.ID, &user.Username, &email, &user.CreatedAt,
			&user.LastActive, &user.IsActive, &user.SessionCount); err != nil {
			return nil, err
		}
		if email.Valid {
			user.Email = email.String
		}
		users = append(users, user)
	}
	return users, rows.Err()
}

// GetOrgStats computes the organization statistics projection: user count,
// active non-expired sessions, messages today, and the average duration of
// sessions started in the last 7 days.
func (s *SQLiteStore) GetOrgStats(ctx context.Context, orgID string, now time.Time) (*domain.OrgStats, error) {
	stats := &domain.OrgStats{AvgSessionDuration: "N/A"}

	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM users WHERE organization_id = ?`, orgID).Scan(&stats.TotalUsers)
	if err != nil {
		return nil, err
	}

	err = s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM sessions WHERE organization_id = ? AND is_active = 1 AND expires_at > ?`,
		orgID, now).Scan(&stats.ActiveSessions)
	if err != nil {
		return nil, err
	}

	err = s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM messages m JOIN sessions s ON s.id = m.session_id
		 WHERE s.organization_id = ? AND date(m.timestamp) = date(?)`,
		orgID, now).Scan(&stats.MessagesToday)
	if err != nil {
		return nil, err
	}

	var avgMinutes sql.NullFloat64
	err = s.db.QueryRowContext(ctx,
		`SELECT AVG((julianday(last_activity) - julianday(created_at)) * 24 * 60)
		 FROM sessions WHERE organization_id = ? AND created_at > ?`,
		orgID, now.AddDate(0, 0, -7)).Scan(&avgMinutes)
	if err != nil {
		return nil, err
	}
	if avgMinutes.Valid && avgMinutes.Float64 >= 1 {
		stats.AvgSessionDuration = fmt.Sprintf("%dm", int(avgMinutes.Float64))
	}

	return stats, nil
}

// ListRecentMessages lists recent messages across all of an organization's
// sessions, newest first. Content is truncated to 200 characters for the
// admin dashboard.
func (s *SQLiteStore) ListRecentMessages(ctx context.Context, orgID string, limit int) ([]domain.RecentMessage, error) {
	query := `SELECT m.id, u.username, m.session_id, m.role, m.content, m.sources, m.timestamp
		 FROM messages m
		 JOIN sessions s ON s.id = m.session_id
		 JOIN users u ON u.id = s.user_id
		 WHERE s.organization_id = ?
		 ORDER BY m.timestamp DESC, m.id DESC`
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}

	rows, err := s.db.QueryContext(ctx, query, orgID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []domain.RecentMessage
	for rows.Next() {
		var msg domain.RecentMessage
		var sources sql.NullString
		if err := rows.Scan(&msg.ID, &msg.Username, &msg.SessionID, &msg.Role, &msg.Content, &sources, &msg.Timestamp); err != nil {
			return nil, err
		}
		if len(msg.Content) > 200 {
			msg.Content = msg.Content[:200] + "..."
		}
		msg.Sources = []string{}
		if msg.Role == domain.RoleAssistant && sources.Valid && sources.String != "" {
			if err := json.Unmarshal([]byte(sources.String), &msg.Sources); err != nil {
				return nil, fmt.Errorf("failed to unmarshal sources: %w", err)
			}
		}
		messages = append(messages, msg)
	}
	return messages, rows.Err()
}
