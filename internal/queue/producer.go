package queue

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"
)

type Producer interface {
	Publish(ctx context.Context, event RepoEvent) error
	Close() error
}

// StreamClient is the part of *redis.Client the producer needs.
type StreamClient interface {
	XAdd(ctx context.Context, a *redis.XAddArgs) *redis.StringCmd
	Close() error
}

type redisProducer struct {
	client StreamClient
	stream string
	logger *slog.Logger
	maxLen int64
}

// NewRedisProducer appends events to stream, trimming it to roughly maxLen entries
// when maxLen is positive.
func NewRedisProducer(client StreamClient, stream string, maxLen int64, logger *slog.Logger) Producer {
	if logger == nil {
		logger = slog.Default()
	}
	return &redisProducer{
		client: client,
		stream: stream,
		logger: logger,
		maxLen: maxLen,
	}
}

func (p *redisProducer) Publish(ctx context.Context, event RepoEvent) error {
	args := &redis.XAddArgs{
		Stream: p.stream,
		Values: event.fields(),
	}
	if p.maxLen > 0 {
		args.MaxLen = p.maxLen
		args.Approx = true
	}

	id, err := p.client.XAdd(ctx, args).Result()
	if err != nil {
		return fmt.Errorf("publish repo event: %w", err)
	}

	p.logger.InfoContext(ctx, "published repo event",
		"message_id", id,
		"stream", p.stream,
		"kind", event.Kind,
		"repository", event.Repository,
		"connection_id", event.ConnectionID,
	)
	return nil
}

func (p *redisProducer) Close() error {
	return p.client.Close()
}

type nopProducer struct {
	logger *slog.Logger
}

// NewNopProducer drops events. Used when no Redis URL is configured.
func NewNopProducer(logger *slog.Logger) Producer {
	if logger == nil {
		logger = slog.Default()
	}
	return &nopProducer{logger: logger}
}

func (p *nopProducer) Publish(ctx context.Context, event RepoEvent) error {
	p.logger.DebugContext(ctx, "event publishing disabled, dropping repo event",
		"kind", event.Kind,
		"repository", event.Repository,
	)
	return nil
}

func (p *nopProducer) Close() error {
	return nil
}
