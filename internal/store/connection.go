package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"basegraph.app/codesight/core/db"
	"basegraph.app/codesight/internal/model"
)

const connectionColumns = `id, provider_repo_id, owner, name, full_name, url, user_id, webhook_id, created_at`

type connectionStore struct {
	q db.Querier
}

func newConnectionStore(q db.Querier) ConnectionStore {
	return &connectionStore{q: q}
}

func (s *connectionStore) GetByID(ctx context.Context, userID, id int64) (*model.RepositoryConnection, error) {
	row := s.q.QueryRow(ctx,
		`SELECT `+connectionColumns+` FROM repository_connections WHERE id = $1 AND user_id = $2`,
		id, userID)
	return scanConnection(row)
}

func (s *connectionStore) GetByProviderRepoID(ctx context.Context, providerRepoID int64) (*model.RepositoryConnection, error) {
	row := s.q.QueryRow(ctx,
		`SELECT `+connectionColumns+` FROM repository_connections WHERE provider_repo_id = $1`,
		providerRepoID)
	return scanConnection(row)
}

func (s *connectionStore) ListByUser(ctx context.Context, userID int64) ([]model.RepositoryConnection, error) {
	rows, err := s.q.Query(ctx,
		`SELECT `+connectionColumns+` FROM repository_connections WHERE user_id = $1 ORDER BY created_at DESC, id DESC`,
		userID)
	if err != nil {
		return nil, fmt.Errorf("listing connections: %w", err)
	}
	defer rows.Close()

	var conns []model.RepositoryConnection
	for rows.Next() {
		conn, err := scanConnection(rows)
		if err != nil {
			return nil, err
		}
		conns = append(conns, *conn)
	}
	return conns, rows.Err()
}

func (s *connectionStore) ListProviderRepoIDs(ctx context.Context, userID int64) ([]int64, error) {
	rows, err := s.q.Query(ctx,
		`SELECT provider_repo_id FROM repository_connections WHERE user_id = $1`,
		userID)
	if err != nil {
		return nil, fmt.Errorf("listing connected repo ids: %w", err)
	}
	return pgx.CollectRows(rows, pgx.RowTo[int64])
}

func (s *connectionStore) Create(ctx context.Context, conn *model.RepositoryConnection) error {
	err := s.q.QueryRow(ctx,
		`INSERT INTO repository_connections (id, provider_repo_id, owner, name, full_name, url, user_id, webhook_id)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 RETURNING created_at`,
		conn.ID, conn.ProviderRepoID, conn.Owner, conn.Name, conn.FullName, conn.URL, conn.UserID, conn.WebhookID,
	).Scan(&conn.CreatedAt)
	return mapError(err)
}

func (s *connectionStore) SetWebhookID(ctx context.Context, userID, id, webhookID int64) error {
	tag, err := s.q.Exec(ctx,
		`UPDATE repository_connections SET webhook_id = $3 WHERE id = $1 AND user_id = $2`,
		id, userID, webhookID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *connectionStore) Delete(ctx context.Context, userID, id int64) error {
	tag, err := s.q.Exec(ctx,
		`DELETE FROM repository_connections WHERE id = $1 AND user_id = $2`,
		id, userID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *connectionStore) DeleteByIDs(ctx context.Context, userID int64, ids []int64) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	tag, err := s.q.Exec(ctx,
		`DELETE FROM repository_connections WHERE user_id = $1 AND id = ANY($2)`,
		userID, ids)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func scanConnection(row pgx.Row) (*model.RepositoryConnection, error) {
	var c model.RepositoryConnection
	err := row.Scan(&c.ID, &c.ProviderRepoID, &c.Owner, &c.Name, &c.FullName, &c.URL, &c.UserID, &c.WebhookID, &c.CreatedAt)
	if err != nil {
		return nil, mapError(err)
	}
	return &c, nil
}
