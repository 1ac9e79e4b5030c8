package logger

import (
	"context"
	"log/slog"
)

type contextKey string

const logFieldsKey contextKey = "log_fields"

// LogFields are attached to every record logged with a context that carries them.
type LogFields struct {
	UserID         *int64
	ConnectionID   *int64
	ProviderRepoID *int64
	Repository     *string // owner/name
	DeliveryID     *string // provider webhook delivery id
	Component      string  // e.g. "codesight.service.connection"
}

// WithLogFields merges fields into ctx. Non-empty values in fields win.
func WithLogFields(ctx context.Context, fields LogFields) context.Context {
	merged := mergeFields(GetLogFields(ctx), fields)
	return context.WithValue(ctx, logFieldsKey, merged)
}

func GetLogFields(ctx context.Context) LogFields {
	if fields, ok := ctx.Value(logFieldsKey).(LogFields); ok {
		return fields
	}
	return LogFields{}
}

func mergeFields(existing, next LogFields) LogFields {
	result := existing

	if next.UserID != nil {
		result.UserID = next.UserID
	}
	if next.ConnectionID != nil {
		result.ConnectionID = next.ConnectionID
	}
	if next.ProviderRepoID != nil {
		result.ProviderRepoID = next.ProviderRepoID
	}
	if next.Repository != nil {
		result.Repository = next.Repository
	}
	if next.DeliveryID != nil {
		result.DeliveryID = next.DeliveryID
	}
	if next.Component != "" {
		result.Component = next.Component
	}

	return result
}

func (f LogFields) attrs() []slog.Attr {
	var attrs []slog.Attr
	if f.UserID != nil {
		attrs = append(attrs, slog.Int64("user_id", *f.UserID))
	}
	if f.ConnectionID != nil {
		attrs = append(attrs, slog.Int64("connection_id", *f.ConnectionID))
	}
	if f.ProviderRepoID != nil {
		attrs = append(attrs, slog.Int64("provider_repo_id", *f.ProviderRepoID))
	}
	if f.Repository != nil {
		attrs = append(attrs, slog.String("repository", *f.Repository))
	}
	if f.DeliveryID != nil {
		attrs = append(attrs, slog.String("delivery_id", *f.DeliveryID))
	}
	if f.Component != "" {
		attrs = append(attrs, slog.String("component", f.Component))
	}
	return attrs
}

// Ptr returns a pointer to v, for inline LogFields literals.
func Ptr[T any](v T) *T {
	return &v
}
