package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"basegraph.app/codesight/internal/store"
)

// TokenResolver yields the provider bearer token for a user, or ErrAuthentication.
type TokenResolver interface {
	ResolveToken(ctx context.Context, userID int64) (string, error)
}

type accountTokenResolver struct {
	accounts store.AccountStore
	provider string
}

// NewAccountTokenResolver reads tokens that the external auth system stores per provider account.
func NewAccountTokenResolver(accounts store.AccountStore, provider string) TokenResolver {
	return &accountTokenResolver{accounts: accounts, provider: provider}
}

func (r *accountTokenResolver) ResolveToken(ctx context.Context, userID int64) (string, error) {
	acc, err := r.accounts.GetByUserAndProvider(ctx, userID, r.provider)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return "", fmt.Errorf("%w: no %s account linked", ErrAuthentication, r.provider)
		}
		return "", fmt.Errorf("loading %s account: %w", r.provider, err)
	}
	if acc.AccessToken == nil || strings.TrimSpace(*acc.AccessToken) == "" {
		return "", fmt.Errorf("%w: %s account has no access token", ErrAuthentication, r.provider)
	}
	return *acc.AccessToken, nil
}
