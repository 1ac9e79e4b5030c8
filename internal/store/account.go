package store

import (
	"context"

	"basegraph.app/codesight/core/db"
	"basegraph.app/codesight/internal/model"
)

type accountStore struct {
	q db.Querier
}

func newAccountStore(q db.Querier) AccountStore {
	return &accountStore{q: q}
}

func (s *accountStore) GetByUserAndProvider(ctx context.Context, userID int64, provider string) (*model.Account, error) {
	var acc model.Account
	err := s.q.QueryRow(ctx,
		`SELECT id, user_id, provider, access_token FROM accounts WHERE user_id = $1 AND provider = $2`,
		userID, provider,
	).Scan(&acc.ID, &acc.UserID, &acc.Provider, &acc.AccessToken)
	if err != nil {
		return nil, mapError(err)
	}
	return &acc, nil
}
