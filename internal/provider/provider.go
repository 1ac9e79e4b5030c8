package provider

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"
)

const (
	GitHub = "github"
	GitLab = "gitlab"
)

// Events registered on every webhook, in provider-neutral names.
var webhookEvents = []string{"push", "pull_request"}

// Repository is one item of a provider listing. It is never persisted.
type Repository struct {
	UpdatedAt   *time.Time `json:"updatedAt,omitempty"`
	Owner       string     `json:"owner"`
	Name        string     `json:"name"`
	FullName    string     `json:"fullName"`
	Description string     `json:"description"`
	URL         string     `json:"url"`
	Language    string     `json:"language"`
	Topics      []string   `json:"topics"`
	ID          int64      `json:"githubId"`
	Stars       int        `json:"stars"`
	Private     bool       `json:"private"`
}

// Webhook is a provider-owned subscription. Only its id is mirrored locally.
type Webhook struct {
	URL    string   `json:"url"`
	Events []string `json:"events"`
	ID     int64    `json:"id"`
	Active bool     `json:"active"`
}

// WebhookTarget identifies the subscription to ensure or remove. HookID is the
// stored provider id; when nil or stale, hooks are matched by exact CallbackURL.
type WebhookTarget struct {
	HookID      *int64
	Owner       string
	Repo        string
	CallbackURL string
}

func (t WebhookTarget) FullName() string {
	return t.Owner + "/" + t.Repo
}

// Client talks to one provider on behalf of one user token.
type Client interface {
	// ListRepositories returns one page sorted by most recently updated first.
	ListRepositories(ctx context.Context, page, perPage int) ([]Repository, error)

	// EnsureWebhook returns the existing subscription for target or creates one.
	EnsureWebhook(ctx context.Context, target WebhookTarget) (*Webhook, error)

	// RemoveWebhook reports whether a subscription was deleted. A missing
	// subscription is not an error.
	RemoveWebhook(ctx context.Context, target WebhookTarget) (bool, error)

	RepositoryURL(owner, repo string) string
}

type Factory interface {
	ForToken(token string) (Client, error)
	Name() string
}

// Recorder receives one observation per provider operation.
type Recorder interface {
	ObserveProviderCall(provider, operation, outcome string, d time.Duration)
}

type Options struct {
	// BaseURL overrides the API root (GitHub Enterprise, self-managed GitLab, tests).
	BaseURL string

	// WebURL overrides the browser root used by RepositoryURL.
	WebURL string

	// WebhookSecret is set on created hooks when non-empty.
	WebhookSecret string

	MaxRetries           int
	RetryInitialInterval time.Duration
	HTTPTimeout          time.Duration

	// Limiter is shared by every client built from the factory.
	Limiter  *rate.Limiter
	Recorder Recorder
}

func (o Options) withDefaults() Options {
	if o.MaxRetries < 0 {
		o.MaxRetries = 0
	}
	if o.RetryInitialInterval <= 0 {
		o.RetryInitialInterval = 500 * time.Millisecond
	}
	if o.HTTPTimeout <= 0 {
		o.HTTPTimeout = 30 * time.Second
	}
	if o.Limiter == nil {
		o.Limiter = rate.NewLimiter(rate.Inf, 1)
	}
	return o
}

// NewFactory builds the factory for the named provider.
func NewFactory(name string, opts Options) (Factory, error) {
	switch name {
	case GitHub:
		return NewGitHubFactory(opts)
	case GitLab:
		return NewGitLabFactory(opts)
	default:
		return nil, fmt.Errorf("unsupported provider %q", name)
	}
}
