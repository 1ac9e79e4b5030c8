package service

import (
	"context"
	"fmt"

	"basegraph.app/codesight/internal/provider"
	"basegraph.app/codesight/internal/store"
)

const maxPerPage = 100

// ConnectionView is a provider repository annotated with its local connection state.
type ConnectionView struct {
	provider.Repository
	IsConnected bool `json:"isConnected"`
}

type ConnectionPage struct {
	NextPage *int             `json:"nextPage"`
	Items    []ConnectionView `json:"items"`
	Page     int              `json:"page"`
	PerPage  int              `json:"perPage"`
}

// ListingService merges one provider page with the user's connected set. It never caches or writes.
type ListingService interface {
	FetchConnectedPage(ctx context.Context, userID int64, page, perPage int) (*ConnectionPage, error)
}

type listingService struct {
	connections     store.ConnectionStore
	tokens          TokenResolver
	providers       provider.Factory
	defaultPageSize int
}

func NewListingService(
	connections store.ConnectionStore,
	tokens TokenResolver,
	providers provider.Factory,
	defaultPageSize int,
) ListingService {
	if defaultPageSize < 1 || defaultPageSize > maxPerPage {
		defaultPageSize = 10
	}
	return &listingService{
		connections:     connections,
		tokens:          tokens,
		providers:       providers,
		defaultPageSize: defaultPageSize,
	}
}

func (s *listingService) FetchConnectedPage(ctx context.Context, userID int64, page, perPage int) (*ConnectionPage, error) {
	if perPage == 0 {
		perPage = s.defaultPageSize
	}
	if page < 1 {
		return nil, fmt.Errorf("%w: page must be at least 1", ErrInvalidInput)
	}
	if perPage < 1 || perPage > maxPerPage {
		return nil, fmt.Errorf("%w: per_page must be between 1 and %d", ErrInvalidInput, maxPerPage)
	}

	token, err := s.tokens.ResolveToken(ctx, userID)
	if err != nil {
		return nil, err
	}
	client, err := s.providers.ForToken(token)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAuthentication, err)
	}

	repos, err := client.ListRepositories(ctx, page, perPage)
	if err != nil {
		return nil, err
	}

	ids, err := s.connections.ListProviderRepoIDs(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("loading connected repositories: %w", err)
	}

	result := &ConnectionPage{
		Items:   Annotate(repos, ids),
		Page:    page,
		PerPage: perPage,
	}
	if len(repos) >= perPage {
		next := page + 1
		result.NextPage = &next
	}

	return result, nil
}

// Annotate marks each repository whose id is in connectedIDs, preserving provider order.
func Annotate(repos []provider.Repository, connectedIDs []int64) []ConnectionView {
	connected := make(map[int64]struct{}, len(connectedIDs))
	for _, id := range connectedIDs {
		connected[id] = struct{}{}
	}

	views := make([]ConnectionView, 0, len(repos))
	for _, r := range repos {
		_, ok := connected[r.ID]
		views = append(views, ConnectionView{Repository: r, IsConnected: ok})
	}
	return views
}
