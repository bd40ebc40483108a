package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/timepulse/timepulse-api/internal/database"
	"github.com/timepulse/timepulse-api/internal/models"
)

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrSessionExpired  = errors.New("session expired")
)

const (
	defaultSessionListLimit = 50
	maxSessionListLimit     = 500
)

// SessionService persists refresh tokens as login sessions.
type SessionService struct {
	db *database.DB
}

func NewSessionService(db *database.DB) *SessionService {
	return &SessionService{db: db}
}

type SessionMeta struct {
	IPAddress *string
	UserAgent *string
}

func (s *SessionService) Store(ctx context.Context, userID uuid.UUID, tokenHash string, meta SessionMeta, expiresAt time.Time) error {
	_, err := s.db.Pool.Exec(ctx, `
		INSERT INTO login_sessions (user_id, token_hash, ip_address, user_agent, expires_at)
		VALUES ($1, $2, $3, $4, $5)
	`, userID, tokenHash, meta.IPAddress, meta.UserAgent, expiresAt)
	if err != nil {
		return fmt.Errorf("failed to store session: %w", err)
	}
	return nil
}

func (s *SessionService) Validate(ctx context.Context, tokenHash string) (uuid.UUID, error) {
	var userID uuid.UUID
	var expiresAt time.Time
	err := s.db.Pool.QueryRow(ctx, `
		SELECT user_id, expires_at FROM login_sessions WHERE token_hash = $1
	`, tokenHash).Scan(&userID, &expiresAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return uuid.Nil, ErrSessionNotFound
	}
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to load session: %w", err)
	}
	if time.Now().After(expiresAt) {
		return uuid.Nil, ErrSessionExpired
	}
	return userID, nil
}

func (s *SessionService) Revoke(ctx context.Context, tokenHash string) error {
	_, err := s.db.Pool.Exec(ctx, `DELETE FROM login_sessions WHERE token_hash = $1`, tokenHash)
	return err
}

func (s *SessionService) RevokeAll(ctx context.Context, userID uuid.UUID) error {
	_, err := s.db.Pool.Exec(ctx, `DELETE FROM login_sessions WHERE user_id = $1`, userID)
	return err
}

func (s *SessionService) CleanupExpired(ctx context.Context) (int64, error) {
	tag, err := s.db.Pool.Exec(ctx, `DELETE FROM login_sessions WHERE expires_at < NOW()`)
	if err != nil {
		return 0, fmt.Errorf("failed to cleanup sessions: %w", err)
	}
	return tag.RowsAffected(), nil
}

// List returns the most recent sessions, optionally for a single user.
func (s *SessionService) List(ctx context.Context, limit int, userID *uuid.UUID) ([]models.LoginSession, error) {
	if limit <= 0 {
		limit = defaultSessionListLimit
	}
	if limit > maxSessionListLimit {
		limit = maxSessionListLimit
	}

	rows, err := s.db.Pool.Query(ctx, `
		SELECT ls.id, ls.user_id, u.email, ls.ip_address, ls.user_agent, ls.expires_at, ls.created_at
		FROM login_sessions ls
		JOIN users u ON u.id = ls.user_id
		WHERE ($1::uuid IS NULL OR ls.user_id = $1)
		ORDER BY ls.created_at DESC
		LIMIT $2
	`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer rows.Close()

	sessions := []models.LoginSession{}
	for rows.Next() {
		var ls models.LoginSession
		if err := rows.Scan(&ls.ID, &ls.UserID, &ls.UserEmail, &ls.IPAddress, &ls.UserAgent, &ls.ExpiresAt, &ls.CreatedAt); err != nil {
			return nil, err
		}
		sessions = append(sessions, ls)
	}
	return sessions, rows.Err()
}
