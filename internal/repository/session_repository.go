package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"support-service/internal/models"

	"github.com/redis/go-redis/v9"
)

// SessionRepository reads the session records the auth service maintains in
// Redis. This service never writes sessions, it only checks them when
// attaching identity to a request.
type SessionRepository interface {
	GetSession(ctx context.Context, sessionID string) (*models.UserSession, error)
	IsSessionActive(ctx context.Context, sessionID string) (bool, error)
}

type sessionRepository struct {
	client *redis.Client
}

// NewSessionRepository creates a new session repository
func NewSessionRepository(client *redis.Client) SessionRepository {
	return &sessionRepository{client: client}
}

func (r *sessionRepository) GetSession(ctx context.Context, sessionID string) (*models.UserSession, error) {
	if sessionID == "" {
		return nil, fmt.Errorf("session ID cannot be empty")
	}

	sessionKey := r.getSessionKey(sessionID)
	sessionData, err := r.client.Get(ctx, sessionKey).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, fmt.Errorf("session not found: %s", sessionID)
		}
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	var session models.UserSession
	if err := json.Unmarshal([]byte(sessionData), &session); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session: %w", err)
	}

	return &session, nil
}

func (r *sessionRepository) IsSessionActive(ctx context.Context, sessionID string) (bool, error) {
	session, err := r.GetSession(ctx, sessionID)
	if err != nil {
		return false, err
	}

	return session.IsActive, nil
}

func (r *sessionRepository) getSessionKey(sessionID string) string {
	return fmt.Sprintf("session:%s", sessionID)
}
