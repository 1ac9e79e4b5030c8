package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"basegraph.app/codesight/internal/model"
	"basegraph.app/codesight/internal/store"
)

// AuthService validates sessions issued elsewhere. It never creates them.
type AuthService interface {
	ValidateSession(ctx context.Context, sessionID int64) (*model.Session, error)
}

type authService struct {
	sessions store.SessionStore
	now      func() time.Time
}

func NewAuthService(sessions store.SessionStore) AuthService {
	return &authService{sessions: sessions, now: time.Now}
}

func (s *authService) ValidateSession(ctx context.Context, sessionID int64) (*model.Session, error) {
	session, err := s.sessions.GetByID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("loading session: %w", err)
	}

	if session.Expired(s.now()) {
		return nil, ErrSessionExpired
	}

	return session, nil
}
