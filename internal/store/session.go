package store

import (
	"context"

	"basegraph.app/codesight/core/db"
	"basegraph.app/codesight/internal/model"
)

type sessionStore struct {
	q db.Querier
}

func newSessionStore(q db.Querier) SessionStore {
	return &sessionStore{q: q}
}

func (s *sessionStore) GetByID(ctx context.Context, id int64) (*model.Session, error) {
	var sess model.Session
	err := s.q.QueryRow(ctx,
		`SELECT id, user_id, expires_at, created_at FROM sessions WHERE id = $1`, id,
	).Scan(&sess.ID, &sess.UserID, &sess.ExpiresAt, &sess.CreatedAt)
	if err != nil {
		return nil, mapError(err)
	}
	return &sess, nil
}
