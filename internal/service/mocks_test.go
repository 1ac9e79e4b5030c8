package service_test

import (
	"context"
	"errors"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"basegraph.app/codesight/internal/model"
	"basegraph.app/codesight/internal/provider"
	"basegraph.app/codesight/internal/queue"
	"basegraph.app/codesight/internal/service"
	"basegraph.app/codesight/internal/store"
)

// memConnectionStore behaves like the Postgres store, including the unique provider id.
type memConnectionStore struct {
	mu    sync.Mutex
	conns map[int64]model.RepositoryConnection

	createFn      func(ctx context.Context, conn *model.RepositoryConnection) error
	deleteFn      func(ctx context.Context, userID, id int64) error
	deleteByIDsFn func(ctx context.Context, userID int64, ids []int64) (int64, error)
	listIDsFn     func(ctx context.Context, userID int64) ([]int64, error)
	getByRepoFn   func(ctx context.Context, providerRepoID int64) (*model.RepositoryConnection, error)
	getByIDFn     func(ctx context.Context, userID, id int64) (*model.RepositoryConnection, error)

	deleteByIDsCalls int
}

func newMemConnectionStore() *memConnectionStore {
	return &memConnectionStore{conns: map[int64]model.RepositoryConnection{}}
}

func (m *memConnectionStore) seed(conns ...model.RepositoryConnection) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, c := range conns {
		if c.CreatedAt.IsZero() {
			c.CreatedAt = time.Unix(int64(1_700_000_000+i), 0)
		}
		m.conns[c.ID] = c
	}
}

func (m *memConnectionStore) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.conns)
}

func (m *memConnectionStore) byRepo(providerRepoID int64) (model.RepositoryConnection, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.conns {
		if c.ProviderRepoID == providerRepoID {
			return c, true
		}
	}
	return model.RepositoryConnection{}, false
}

func (m *memConnectionStore) GetByID(ctx context.Context, userID, id int64) (*model.RepositoryConnection, error) {
	if m.getByIDFn != nil {
		return m.getByIDFn(ctx, userID, id)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.conns[id]
	if !ok || c.UserID != userID {
		return nil, store.ErrNotFound
	}
	return &c, nil
}

func (m *memConnectionStore) GetByProviderRepoID(ctx context.Context, providerRepoID int64) (*model.RepositoryConnection, error) {
	if m.getByRepoFn != nil {
		return m.getByRepoFn(ctx, providerRepoID)
	}
	c, ok := m.byRepo(providerRepoID)
	if !ok {
		return nil, store.ErrNotFound
	}
	return &c, nil
}

func (m *memConnectionStore) ListByUser(_ context.Context, userID int64) ([]model.RepositoryConnection, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.RepositoryConnection
	for _, c := range m.conns {
		if c.UserID == userID {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *memConnectionStore) ListProviderRepoIDs(ctx context.Context, userID int64) ([]int64, error) {
	if m.listIDsFn != nil {
		return m.listIDsFn(ctx, userID)
	}
	conns, _ := m.ListByUser(ctx, userID)
	ids := make([]int64, 0, len(conns))
	for _, c := range conns {
		ids = append(ids, c.ProviderRepoID)
	}
	return ids, nil
}

func (m *memConnectionStore) Create(ctx context.Context, conn *model.RepositoryConnection) error {
	if m.createFn != nil {
		if err := m.createFn(ctx, conn); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.conns {
		if c.ProviderRepoID == conn.ProviderRepoID {
			return store.ErrAlreadyExists
		}
	}
	conn.CreatedAt = time.Now()
	m.conns[conn.ID] = *conn
	return nil
}

func (m *memConnectionStore) SetWebhookID(_ context.Context, userID, id, webhookID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.conns[id]
	if !ok || c.UserID != userID {
		return store.ErrNotFound
	}
	c.WebhookID = &webhookID
	m.conns[id] = c
	return nil
}

func (m *memConnectionStore) Delete(ctx context.Context, userID, id int64) error {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, userID, id)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.conns[id]
	if !ok || c.UserID != userID {
		return store.ErrNotFound
	}
	delete(m.conns, id)
	return nil
}

func (m *memConnectionStore) DeleteByIDs(ctx context.Context, userID int64, ids []int64) (int64, error) {
	m.mu.Lock()
	m.deleteByIDsCalls++
	m.mu.Unlock()
	if m.deleteByIDsFn != nil {
		return m.deleteByIDsFn(ctx, userID, ids)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, id := range ids {
		if c, ok := m.conns[id]; ok && c.UserID == userID {
			delete(m.conns, id)
			n++
		}
	}
	return n, nil
}

type mockTokenResolver struct {
	resolveFn func(ctx context.Context, userID int64) (string, error)
}

func (m *mockTokenResolver) ResolveToken(ctx context.Context, userID int64) (string, error) {
	if m.resolveFn != nil {
		return m.resolveFn(ctx, userID)
	}
	return "token", nil
}

func failingTokens() *mockTokenResolver {
	return &mockTokenResolver{resolveFn: func(context.Context, int64) (string, error) {
		return "", service.ErrAuthentication
	}}
}

// fakeProvider keeps hooks per repository and counts every call.
type fakeProvider struct {
	mu     sync.Mutex
	hooks  map[string][]provider.Webhook
	nextID int64

	repos []provider.Repository

	ensureCalls atomic.Int32
	removeCalls atomic.Int32
	listCalls   atomic.Int32
	inFlight    atomic.Int32
	maxInFlight atomic.Int32

	delay time.Duration

	ensureFn func(target provider.WebhookTarget) error
	removeFn func(target provider.WebhookTarget) error
	listFn   func(page, perPage int) ([]provider.Repository, error)
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{hooks: map[string][]provider.Webhook{}, nextID: 100}
}

func (f *fakeProvider) Name() string { return provider.GitHub }

func (f *fakeProvider) ForToken(token string) (provider.Client, error) {
	if token == "" {
		return nil, errors.New("empty token")
	}
	return f, nil
}

func (f *fakeProvider) RepositoryURL(owner, repo string) string {
	return "https://github.com/" + owner + "/" + repo
}

func (f *fakeProvider) hooksFor(fullName string) []provider.Webhook {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]provider.Webhook(nil), f.hooks[fullName]...)
}

func (f *fakeProvider) totalCalls() int32 {
	return f.ensureCalls.Load() + f.removeCalls.Load() + f.listCalls.Load()
}

func (f *fakeProvider) enter() func() {
	n := f.inFlight.Add(1)
	for {
		cur := f.maxInFlight.Load()
		if n <= cur || f.maxInFlight.CompareAndSwap(cur, n) {
			break
		}
	}
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	return func() { f.inFlight.Add(-1) }
}

func (f *fakeProvider) ListRepositories(_ context.Context, page, perPage int) ([]provider.Repository, error) {
	f.listCalls.Add(1)
	if f.listFn != nil {
		return f.listFn(page, perPage)
	}
	start := (page - 1) * perPage
	if start >= len(f.repos) {
		return []provider.Repository{}, nil
	}
	end := min(start+perPage, len(f.repos))
	return f.repos[start:end], nil
}

func (f *fakeProvider) EnsureWebhook(_ context.Context, target provider.WebhookTarget) (*provider.Webhook, error) {
	f.ensureCalls.Add(1)
	defer f.enter()()
	if f.ensureFn != nil {
		if err := f.ensureFn(target); err != nil {
			return nil, err
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	hooks := f.hooks[target.FullName()]
	if target.HookID != nil {
		for i := range hooks {
			if hooks[i].ID == *target.HookID {
				hooks[i].URL = target.CallbackURL
				h := hooks[i]
				return &h, nil
			}
		}
	}
	for _, h := range hooks {
		if h.URL == target.CallbackURL {
			return &h, nil
		}
	}
	f.nextID++
	h := provider.Webhook{ID: f.nextID, URL: target.CallbackURL, Events: []string{"push", "pull_request"}, Active: true}
	f.hooks[target.FullName()] = append(f.hooks[target.FullName()], h)
	return &h, nil
}

func (f *fakeProvider) RemoveWebhook(_ context.Context, target provider.WebhookTarget) (bool, error) {
	f.removeCalls.Add(1)
	defer f.enter()()
	if f.removeFn != nil {
		if err := f.removeFn(target); err != nil {
			return false, err
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	hooks := f.hooks[target.FullName()]
	for i, h := range hooks {
		if (target.HookID != nil && h.ID == *target.HookID) || h.URL == target.CallbackURL {
			f.hooks[target.FullName()] = append(hooks[:i:i], hooks[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

type mockRecorder struct {
	mu       sync.Mutex
	outcomes []string
	webhooks []string
}

func (m *mockRecorder) ObserveReconcile(operation, outcome string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.outcomes = append(m.outcomes, operation+":"+outcome)
}

func (m *mockRecorder) ObserveWebhookEvent(provider, kind, disposition string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.webhooks = append(m.webhooks, provider+":"+kind+":"+disposition)
}

type mockProducer struct {
	publishFn func(ctx context.Context, event queue.RepoEvent) error
	published []queue.RepoEvent
}

func (m *mockProducer) Publish(ctx context.Context, event queue.RepoEvent) error {
	if m.publishFn != nil {
		if err := m.publishFn(ctx, event); err != nil {
			return err
		}
	}
	m.published = append(m.published, event)
	return nil
}

func (m *mockProducer) Close() error { return nil }

type mockSessionStore struct {
	getByIDFn func(ctx context.Context, id int64) (*model.Session, error)
}

func (m *mockSessionStore) GetByID(ctx context.Context, id int64) (*model.Session, error) {
	if m.getByIDFn != nil {
		return m.getByIDFn(ctx, id)
	}
	return nil, store.ErrNotFound
}

type mockAccountStore struct {
	getFn func(ctx context.Context, userID int64, provider string) (*model.Account, error)
}

func (m *mockAccountStore) GetByUserAndProvider(ctx context.Context, userID int64, provider string) (*model.Account, error) {
	if m.getFn != nil {
		return m.getFn(ctx, userID, provider)
	}
	return nil, store.ErrNotFound
}
