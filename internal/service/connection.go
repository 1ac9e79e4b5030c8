package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"basegraph.app/codesight/common/id"
	"basegraph.app/codesight/common/logger"
	"basegraph.app/codesight/internal/model"
	"basegraph.app/codesight/internal/provider"
	"basegraph.app/codesight/internal/store"
)

type ConnectionService interface {
	Connect(ctx context.Context, userID int64, params ConnectParams) (*ConnectResult, error)
	Disconnect(ctx context.Context, userID, connectionID int64) DisconnectResult
	DisconnectAll(ctx context.Context, userID int64, policy DisconnectPolicy) DisconnectAllResult
	ListConnections(ctx context.Context, userID int64) ([]model.RepositoryConnection, error)
	Repair(ctx context.Context, userID int64) (*RepairResult, error)
}

type ConnectParams struct {
	Owner          string
	Name           string
	ProviderRepoID int64
}

type ConnectResult struct {
	Connection *model.RepositoryConnection
	// Webhook is nil when AlreadyConnected short-circuits the provider.
	Webhook          *provider.Webhook
	AlreadyConnected bool
}

// DisconnectResult carries failures instead of returning them so batch callers can aggregate.
type DisconnectResult struct {
	Err            error
	WebhookRemoved bool
	Success        bool
}

type DisconnectPolicy string

const (
	// PolicyBestEffort deletes every record even when some webhook removals fail.
	PolicyBestEffort DisconnectPolicy = "best_effort"
	// PolicyStrict deletes nothing when any webhook removal fails.
	PolicyStrict DisconnectPolicy = "strict"
)

func ParseDisconnectPolicy(s string) (DisconnectPolicy, error) {
	switch DisconnectPolicy(strings.TrimSpace(s)) {
	case "", PolicyBestEffort:
		return PolicyBestEffort, nil
	case PolicyStrict:
		return PolicyStrict, nil
	default:
		return "", fmt.Errorf("%w: unknown disconnect policy %q", ErrInvalidInput, s)
	}
}

type ConnectionFailure struct {
	Err          error
	FullName     string
	ConnectionID int64
}

type DisconnectAllResult struct {
	Err             error
	Policy          DisconnectPolicy
	Failures        []ConnectionFailure
	Attempted       int
	WebhooksRemoved int
	Failed          int
	Deleted         int64
	Success         bool
}

type RepairResult struct {
	Failures   []ConnectionFailure
	Checked    int
	Backfilled int
	Restored   int
}

// ReconcileRecorder counts engine outcomes. *metrics.Metrics satisfies it.
type ReconcileRecorder interface {
	ObserveReconcile(operation, outcome string)
}

type ConnectionServiceConfig struct {
	Recorder    ReconcileRecorder
	CallbackURL string
	Concurrency int
}

type connectionService struct {
	connections store.ConnectionStore
	tokens      TokenResolver
	providers   provider.Factory
	recorder    ReconcileRecorder
	callbackURL string
	concurrency int
}

func NewConnectionService(
	connections store.ConnectionStore,
	tokens TokenResolver,
	providers provider.Factory,
	cfg ConnectionServiceConfig,
) ConnectionService {
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 5
	}
	return &connectionService{
		connections: connections,
		tokens:      tokens,
		providers:   providers,
		recorder:    cfg.Recorder,
		callbackURL: cfg.CallbackURL,
		concurrency: cfg.Concurrency,
	}
}

func (s *connectionService) Connect(ctx context.Context, userID int64, params ConnectParams) (*ConnectResult, error) {
	params.Owner = strings.TrimSpace(params.Owner)
	params.Name = strings.TrimSpace(params.Name)
	if params.Owner == "" || params.Name == "" || params.ProviderRepoID <= 0 {
		return nil, fmt.Errorf("%w: owner, name and a positive repository id are required", ErrInvalidInput)
	}

	fullName := model.FullNameOf(params.Owner, params.Name)
	ctx = logger.WithLogFields(ctx, logger.LogFields{
		UserID:         &userID,
		ProviderRepoID: &params.ProviderRepoID,
		Repository:     &fullName,
		Component:      "codesight.service.connection",
	})

	existing, err := s.connections.GetByProviderRepoID(ctx, params.ProviderRepoID)
	switch {
	case err == nil:
		return s.existingOutcome(ctx, userID, existing)
	case !errors.Is(err, store.ErrNotFound):
		s.observe("connect", "error")
		return nil, fmt.Errorf("looking up connection: %w", err)
	}

	client, err := s.clientFor(ctx, userID)
	if err != nil {
		s.observe("connect", "unauthenticated")
		return nil, err
	}

	hook, err := client.EnsureWebhook(ctx, provider.WebhookTarget{
		Owner:       params.Owner,
		Repo:        params.Name,
		CallbackURL: s.callbackURL,
	})
	if err != nil {
		slog.WarnContext(ctx, "ensuring webhook failed", "error", err)
		s.observe("connect", "provider_error")
		return nil, err
	}

	conn := &model.RepositoryConnection{
		ID:             id.New(),
		ProviderRepoID: params.ProviderRepoID,
		Owner:          params.Owner,
		Name:           params.Name,
		FullName:       fullName,
		URL:            client.RepositoryURL(params.Owner, params.Name),
		UserID:         userID,
		WebhookID:      &hook.ID,
	}

	if err := s.connections.Create(ctx, conn); err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			winner, getErr := s.connections.GetByProviderRepoID(ctx, params.ProviderRepoID)
			if getErr == nil {
				return s.existingOutcome(ctx, userID, winner)
			}
		}
		// The webhook now exists without a record. A retried Connect finds it again.
		slog.ErrorContext(ctx, "webhook registered but connection not saved",
			"error", err,
			"webhook_id", hook.ID,
		)
		s.observe("connect", "error")
		return nil, fmt.Errorf("saving connection: %w", err)
	}

	slog.InfoContext(ctx, "repository connected",
		"connection_id", conn.ID,
		"webhook_id", hook.ID,
	)
	s.observe("connect", "connected")

	return &ConnectResult{Connection: conn, Webhook: hook}, nil
}

func (s *connectionService) existingOutcome(ctx context.Context, userID int64, conn *model.RepositoryConnection) (*ConnectResult, error) {
	if conn.UserID != userID {
		slog.WarnContext(ctx, "repository already connected by another user", "owner_user_id", conn.UserID)
		s.observe("connect", "claimed")
		return nil, ErrRepositoryClaimed
	}
	s.observe("connect", "already_connected")
	return &ConnectResult{Connection: conn, AlreadyConnected: true}, nil
}

func (s *connectionService) Disconnect(ctx context.Context, userID, connectionID int64) DisconnectResult {
	ctx = logger.WithLogFields(ctx, logger.LogFields{
		UserID:       &userID,
		ConnectionID: &connectionID,
		Component:    "codesight.service.connection",
	})

	conn, err := s.connections.GetByID(ctx, userID, connectionID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.observe("disconnect", "not_found")
		} else {
			slog.ErrorContext(ctx, "loading connection failed", "error", err)
			s.observe("disconnect", "error")
		}
		return DisconnectResult{Err: fmt.Errorf("loading connection: %w", err)}
	}
	ctx = logger.WithLogFields(ctx, logger.LogFields{Repository: &conn.FullName})

	client, err := s.clientFor(ctx, userID)
	if err != nil {
		s.observe("disconnect", "unauthenticated")
		return DisconnectResult{Err: err}
	}

	removed, err := client.RemoveWebhook(ctx, s.targetFor(conn))
	if err != nil {
		slog.WarnContext(ctx, "removing webhook failed, keeping connection", "error", err)
		s.observe("disconnect", "provider_error")
		return DisconnectResult{Err: err}
	}

	if err := s.connections.Delete(ctx, userID, conn.ID); err != nil && !errors.Is(err, store.ErrNotFound) {
		slog.ErrorContext(ctx, "webhook removed but connection not deleted", "error", err)
		s.observe("disconnect", "error")
		return DisconnectResult{Err: fmt.Errorf("deleting connection: %w", err), WebhookRemoved: removed}
	}

	slog.InfoContext(ctx, "repository disconnected", "webhook_removed", removed)
	s.observe("disconnect", "disconnected")

	return DisconnectResult{Success: true, WebhookRemoved: removed}
}

func (s *connectionService) DisconnectAll(ctx context.Context, userID int64, policy DisconnectPolicy) DisconnectAllResult {
	if policy == "" {
		policy = PolicyBestEffort
	}
	result := DisconnectAllResult{Policy: policy}

	sc := logger.StartSpan(ctx, "connection.disconnect_all")
	defer sc.End()
	ctx = logger.WithLogFields(sc.Context(), logger.LogFields{
		UserID:    &userID,
		Component: "codesight.service.connection",
	})

	conns, err := s.connections.ListByUser(ctx, userID)
	if err != nil {
		sc.RecordError(err)
		result.Err = fmt.Errorf("listing connections: %w", err)
		return result
	}
	if len(conns) == 0 {
		result.Success = true
		return result
	}

	client, err := s.clientFor(ctx, userID)
	if err != nil {
		sc.RecordError(err)
		result.Err = err
		return result
	}

	var mu sync.Mutex
	s.forEachBounded(conns, func(conn model.RepositoryConnection) {
		removed, err := client.RemoveWebhook(ctx, s.targetFor(&conn))

		mu.Lock()
		defer mu.Unlock()
		result.Attempted++
		if err != nil {
			result.Failed++
			result.Failures = append(result.Failures, ConnectionFailure{
				ConnectionID: conn.ID,
				FullName:     conn.FullName,
				Err:          err,
			})
			return
		}
		if removed {
			result.WebhooksRemoved++
		}
	})

	if policy == PolicyStrict && result.Failed > 0 {
		result.Err = fmt.Errorf("%d of %d webhook removals failed, no connections deleted", result.Failed, result.Attempted)
		sc.RecordError(result.Err)
		slog.WarnContext(ctx, "disconnect all aborted",
			"attempted", result.Attempted,
			"failed", result.Failed,
		)
		s.observe("disconnect_all", "aborted")
		return result
	}

	ids := make([]int64, 0, len(conns))
	for _, c := range conns {
		ids = append(ids, c.ID)
	}

	deleted, err := s.connections.DeleteByIDs(ctx, userID, ids)
	if err != nil {
		sc.RecordError(err)
		result.Err = fmt.Errorf("deleting connections: %w", err)
		s.observe("disconnect_all", "error")
		return result
	}
	result.Deleted = deleted
	result.Success = true

	level := slog.LevelInfo
	if result.Failed > 0 {
		level = slog.LevelWarn
	}
	slog.Log(ctx, level, "disconnected all repositories",
		"policy", policy,
		"attempted", result.Attempted,
		"webhooks_removed", result.WebhooksRemoved,
		"failed", result.Failed,
		"deleted", result.Deleted,
	)
	s.observe("disconnect_all", "completed")

	return result
}

func (s *connectionService) ListConnections(ctx context.Context, userID int64) ([]model.RepositoryConnection, error) {
	conns, err := s.connections.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("listing connections: %w", err)
	}
	return conns, nil
}

// Repair re-ensures the webhook of every connection and backfills missing hook ids.
func (s *connectionService) Repair(ctx context.Context, userID int64) (*RepairResult, error) {
	sc := logger.StartSpan(ctx, "connection.repair")
	defer sc.End()
	ctx = logger.WithLogFields(sc.Context(), logger.LogFields{
		UserID:    &userID,
		Component: "codesight.service.connection",
	})

	conns, err := s.connections.ListByUser(ctx, userID)
	if err != nil {
		sc.RecordError(err)
		return nil, fmt.Errorf("listing connections: %w", err)
	}

	result := &RepairResult{}
	if len(conns) == 0 {
		return result, nil
	}

	client, err := s.clientFor(ctx, userID)
	if err != nil {
		sc.RecordError(err)
		return nil, err
	}

	var mu sync.Mutex
	fail := func(conn model.RepositoryConnection, err error) {
		mu.Lock()
		defer mu.Unlock()
		result.Failures = append(result.Failures, ConnectionFailure{ConnectionID: conn.ID, FullName: conn.FullName, Err: err})
	}

	s.forEachBounded(conns, func(conn model.RepositoryConnection) {
		hook, err := client.EnsureWebhook(ctx, s.targetFor(&conn))
		if err != nil {
			fail(conn, err)
			return
		}

		mu.Lock()
		result.Checked++
		mu.Unlock()

		if conn.WebhookID != nil && *conn.WebhookID == hook.ID {
			return
		}
		if err := s.connections.SetWebhookID(ctx, userID, conn.ID, hook.ID); err != nil {
			fail(conn, fmt.Errorf("saving webhook id: %w", err))
			return
		}

		mu.Lock()
		defer mu.Unlock()
		if conn.WebhookID == nil {
			result.Backfilled++
		} else {
			result.Restored++
		}
	})

	slog.InfoContext(ctx, "repaired connections",
		"checked", result.Checked,
		"backfilled", result.Backfilled,
		"restored", result.Restored,
		"failed", len(result.Failures),
	)
	s.observe("repair", "completed")

	return result, nil
}

// forEachBounded runs fn for every connection with at most s.concurrency in flight.
// fn records its own failures so one error never cancels its siblings.
func (s *connectionService) forEachBounded(conns []model.RepositoryConnection, fn func(model.RepositoryConnection)) {
	var g errgroup.Group
	g.SetLimit(s.concurrency)
	for _, conn := range conns {
		g.Go(func() error {
			fn(conn)
			return nil
		})
	}
	_ = g.Wait()
}

func (s *connectionService) clientFor(ctx context.Context, userID int64) (provider.Client, error) {
	token, err := s.tokens.ResolveToken(ctx, userID)
	if err != nil {
		return nil, err
	}
	client, err := s.providers.ForToken(token)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAuthentication, err)
	}
	return client, nil
}

func (s *connectionService) targetFor(conn *model.RepositoryConnection) provider.WebhookTarget {
	return provider.WebhookTarget{
		HookID:      conn.WebhookID,
		Owner:       conn.Owner,
		Repo:        conn.Name,
		CallbackURL: s.callbackURL,
	}
}

func (s *connectionService) observe(operation, outcome string) {
	if s.recorder != nil {
		s.recorder.ObserveReconcile(operation, outcome)
	}
}
