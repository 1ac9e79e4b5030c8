package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel/trace"

	"basegraph.app/codesight/common/logger"
	"basegraph.app/codesight/internal/queue"
	"basegraph.app/codesight/internal/store"
)

const (
	EventPush        = "push"
	EventPullRequest = "pull_request"
	EventPing        = "ping"
	EventOther       = "other"
)

// Dispositions reported by WebhookEventResult.Reason and the webhook metric.
const (
	DispositionPublished    = "published"
	DispositionIgnored      = "ignored"
	DispositionNotConnected = "not_connected"
)

// WebhookEvent is a provider delivery reduced to the fields downstream consumers need.
type WebhookEvent struct {
	Provider       string
	Kind           string
	RawKind        string
	DeliveryID     string
	Repository     string
	Action         string
	Ref            string
	HeadSHA        string
	ProviderRepoID int64
	Number         int
}

type WebhookEventResult struct {
	Reason       string
	ConnectionID int64
	Published    bool
}

type WebhookRecorder interface {
	ObserveWebhookEvent(provider, kind, disposition string)
}

// WebhookEventService routes inbound deliveries. Every well-formed delivery is
// acknowledged; only push and pull_request events of connected repositories are published.
type WebhookEventService interface {
	Handle(ctx context.Context, event WebhookEvent) (*WebhookEventResult, error)
}

type webhookEventService struct {
	connections store.ConnectionStore
	producer    queue.Producer
	recorder    WebhookRecorder
}

func NewWebhookEventService(connections store.ConnectionStore, producer queue.Producer, recorder WebhookRecorder) WebhookEventService {
	return &webhookEventService{
		connections: connections,
		producer:    producer,
		recorder:    recorder,
	}
}

func (s *webhookEventService) Handle(ctx context.Context, event WebhookEvent) (*WebhookEventResult, error) {
	fields := logger.LogFields{Component: "codesight.service.webhook"}
	if event.DeliveryID != "" {
		fields.DeliveryID = &event.DeliveryID
	}
	if event.Repository != "" {
		fields.Repository = &event.Repository
	}
	if event.ProviderRepoID > 0 {
		fields.ProviderRepoID = &event.ProviderRepoID
	}
	ctx = logger.WithLogFields(ctx, fields)

	slog.InfoContext(ctx, "webhook received",
		"provider", event.Provider,
		"event", event.RawKind,
		"action", event.Action,
	)

	if event.Kind != EventPush && event.Kind != EventPullRequest {
		return s.finish(event, &WebhookEventResult{Reason: DispositionIgnored}), nil
	}
	if event.ProviderRepoID <= 0 {
		return s.finish(event, &WebhookEventResult{Reason: DispositionNotConnected}), nil
	}

	conn, err := s.connections.GetByProviderRepoID(ctx, event.ProviderRepoID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			slog.DebugContext(ctx, "webhook for unconnected repository")
			return s.finish(event, &WebhookEventResult{Reason: DispositionNotConnected}), nil
		}
		return nil, fmt.Errorf("looking up connection: %w", err)
	}

	repoEvent := queue.RepoEvent{
		Provider:       event.Provider,
		Kind:           event.Kind,
		Repository:     conn.FullName,
		Ref:            event.Ref,
		HeadSHA:        event.HeadSHA,
		Action:         event.Action,
		DeliveryID:     event.DeliveryID,
		ConnectionID:   conn.ID,
		ProviderRepoID: conn.ProviderRepoID,
		UserID:         conn.UserID,
		Number:         event.Number,
	}
	if sc := trace.SpanContextFromContext(ctx); sc.HasTraceID() {
		traceID := sc.TraceID().String()
		repoEvent.TraceID = &traceID
	}

	if err := s.producer.Publish(ctx, repoEvent); err != nil {
		return nil, err
	}

	return s.finish(event, &WebhookEventResult{
		Reason:       DispositionPublished,
		ConnectionID: conn.ID,
		Published:    true,
	}), nil
}

func (s *webhookEventService) finish(event WebhookEvent, result *WebhookEventResult) *WebhookEventResult {
	if s.recorder != nil {
		s.recorder.ObserveWebhookEvent(event.Provider, event.Kind, result.Reason)
	}
	return result
}
