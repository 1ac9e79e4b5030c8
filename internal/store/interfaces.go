package store

import (
	"context"
	"errors"

	"basegraph.app/codesight/internal/model"
)

// ErrNotFound is returned when a requested entity does not exist.
var ErrNotFound = errors.New("not found")

// ErrAlreadyExists is returned when an insert hits a unique constraint.
var ErrAlreadyExists = errors.New("already exists")

// ConnectionStore persists repository connections. Every read and delete except the
// provider id lookup is scoped to the owning user.
type ConnectionStore interface {
	GetByID(ctx context.Context, userID, id int64) (*model.RepositoryConnection, error)
	GetByProviderRepoID(ctx context.Context, providerRepoID int64) (*model.RepositoryConnection, error)
	ListByUser(ctx context.Context, userID int64) ([]model.RepositoryConnection, error)
	ListProviderRepoIDs(ctx context.Context, userID int64) ([]int64, error)
	Create(ctx context.Context, conn *model.RepositoryConnection) error
	SetWebhookID(ctx context.Context, userID, id, webhookID int64) error
	Delete(ctx context.Context, userID, id int64) error
	DeleteByIDs(ctx context.Context, userID int64, ids []int64) (int64, error)
}

// SessionStore reads sessions written by the external auth system.
type SessionStore interface {
	GetByID(ctx context.Context, id int64) (*model.Session, error)
}

// AccountStore reads provider accounts written by the external auth system.
type AccountStore interface {
	GetByUserAndProvider(ctx context.Context, userID int64, provider string) (*model.Account, error)
}
