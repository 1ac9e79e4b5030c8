package provider

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	gh "github.com/google/go-github/v80/github"
	"golang.org/x/oauth2"
)

const defaultGitHubWebURL = "https://github.com"

type GitHubFactory struct {
	baseURL *url.URL
	opts    Options
}

func NewGitHubFactory(opts Options) (*GitHubFactory, error) {
	f := &GitHubFactory{opts: opts.withDefaults()}
	if opts.BaseURL != "" {
		u, err := url.Parse(strings.TrimSuffix(opts.BaseURL, "/") + "/")
		if err != nil {
			return nil, fmt.Errorf("parsing github base url: %w", err)
		}
		f.baseURL = u
	}
	if f.opts.WebURL == "" {
		f.opts.WebURL = defaultGitHubWebURL
	}
	return f, nil
}

func (f *GitHubFactory) Name() string {
	return GitHub
}

func (f *GitHubFactory) ForToken(token string) (Client, error) {
	if token == "" {
		return nil, errors.New("github token is empty")
	}

	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
	hc := oauth2.NewClient(context.Background(), ts)
	hc.Timeout = f.opts.HTTPTimeout

	client := gh.NewClient(hc)
	if f.baseURL != nil {
		client.BaseURL = f.baseURL
	}

	return &githubClient{
		gh:     client,
		caller: &caller{opts: f.opts, provider: GitHub},
		webURL: strings.TrimSuffix(f.opts.WebURL, "/"),
		secret: f.opts.WebhookSecret,
	}, nil
}

type githubClient struct {
	gh     *gh.Client
	caller *caller
	webURL string
	secret string
}

func (c *githubClient) RepositoryURL(owner, repo string) string {
	return fmt.Sprintf("%s/%s/%s", c.webURL, owner, repo)
}

func (c *githubClient) ListRepositories(ctx context.Context, page, perPage int) ([]Repository, error) {
	return call(ctx, c.caller, "list_repositories", func(ctx context.Context) ([]Repository, error) {
		opts := &gh.RepositoryListByAuthenticatedUserOptions{
			Visibility:  "all",
			Sort:        "updated",
			Direction:   "desc",
			ListOptions: gh.ListOptions{Page: page, PerPage: perPage},
		}

		repos, resp, err := c.gh.Repositories.ListByAuthenticatedUser(ctx, opts)
		if err != nil {
			return nil, githubError("list_repositories", resp, err)
		}

		out := make([]Repository, 0, len(repos))
		for _, r := range repos {
			out = append(out, toGitHubRepository(r))
		}
		return out, nil
	})
}

func (c *githubClient) EnsureWebhook(ctx context.Context, target WebhookTarget) (*Webhook, error) {
	return call(ctx, c.caller, "ensure_webhook", func(ctx context.Context) (*Webhook, error) {
		if target.HookID != nil {
			hook, resp, err := c.gh.Repositories.GetHook(ctx, target.Owner, target.Repo, *target.HookID)
			switch {
			case err == nil && hook.GetConfig().GetURL() == target.CallbackURL:
				return toGitHubWebhook(hook), nil
			case err == nil:
				return c.retargetHook(ctx, target, hook.GetID())
			case !isStatus(resp, http.StatusNotFound):
				return nil, githubError("get_hook", resp, err)
			}
		}

		existing, err := c.findHook(ctx, target)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			return toGitHubWebhook(existing), nil
		}

		created, resp, err := c.gh.Repositories.CreateHook(ctx, target.Owner, target.Repo, &gh.Hook{
			Name:   gh.Ptr("web"),
			Active: gh.Ptr(true),
			Events: webhookEvents,
			Config: c.hookConfig(target.CallbackURL),
		})
		if err != nil {
			return nil, githubError("create_hook", resp, err)
		}
		return toGitHubWebhook(created), nil
	})
}

// retargetHook points the stored hook at the current callback URL so the
// connection keeps owning a single hook across host changes.
func (c *githubClient) retargetHook(ctx context.Context, target WebhookTarget, hookID int64) (*Webhook, error) {
	edited, resp, err := c.gh.Repositories.EditHook(ctx, target.Owner, target.Repo, hookID, &gh.Hook{
		Active: gh.Ptr(true),
		Events: webhookEvents,
		Config: c.hookConfig(target.CallbackURL),
	})
	if err != nil {
		return nil, githubError("edit_hook", resp, err)
	}
	return toGitHubWebhook(edited), nil
}

func (c *githubClient) hookConfig(callbackURL string) *gh.HookConfig {
	config := &gh.HookConfig{
		URL:         gh.Ptr(callbackURL),
		ContentType: gh.Ptr("json"),
		InsecureSSL: gh.Ptr("0"),
	}
	if c.secret != "" {
		config.Secret = gh.Ptr(c.secret)
	}
	return config
}

func (c *githubClient) RemoveWebhook(ctx context.Context, target WebhookTarget) (bool, error) {
	return call(ctx, c.caller, "remove_webhook", func(ctx context.Context) (bool, error) {
		if target.HookID != nil {
			resp, err := c.gh.Repositories.DeleteHook(ctx, target.Owner, target.Repo, *target.HookID)
			if err == nil {
				return true, nil
			}
			if !isStatus(resp, http.StatusNotFound) {
				return false, githubError("delete_hook", resp, err)
			}
		}

		hook, err := c.findHook(ctx, target)
		if err != nil {
			return false, err
		}
		if hook == nil {
			return false, nil
		}

		resp, err := c.gh.Repositories.DeleteHook(ctx, target.Owner, target.Repo, hook.GetID())
		if err != nil {
			if isStatus(resp, http.StatusNotFound) {
				return false, nil
			}
			return false, githubError("delete_hook", resp, err)
		}
		return true, nil
	})
}

// findHook pages through the repository's hooks looking for an exact callback URL match.
func (c *githubClient) findHook(ctx context.Context, target WebhookTarget) (*gh.Hook, error) {
	opts := &gh.ListOptions{PerPage: 100}
	for {
		hooks, resp, err := c.gh.Repositories.ListHooks(ctx, target.Owner, target.Repo, opts)
		if err != nil {
			return nil, githubError("list_hooks", resp, err)
		}
		for _, h := range hooks {
			if h.GetConfig().GetURL() == target.CallbackURL {
				return h, nil
			}
		}
		if resp.NextPage == 0 {
			return nil, nil
		}
		opts.Page = resp.NextPage
	}
}

func githubError(op string, resp *gh.Response, err error) error {
	var rateErr *gh.RateLimitError
	var abuseErr *gh.AbuseRateLimitError
	if errors.As(err, &rateErr) || errors.As(err, &abuseErr) {
		return &Error{Kind: KindRateLimited, Op: op, StatusCode: statusOf(resp), Err: err}
	}
	return newError(op, statusOf(resp), err)
}

func statusOf(resp *gh.Response) int {
	if resp == nil || resp.Response == nil {
		return 0
	}
	return resp.StatusCode
}

func isStatus(resp *gh.Response, status int) bool {
	return statusOf(resp) == status
}

func toGitHubRepository(r *gh.Repository) Repository {
	repo := Repository{
		ID:          r.GetID(),
		Owner:       r.GetOwner().GetLogin(),
		Name:        r.GetName(),
		FullName:    r.GetFullName(),
		Description: r.GetDescription(),
		URL:         r.GetHTMLURL(),
		Stars:       r.GetStargazersCount(),
		Language:    r.GetLanguage(),
		Topics:      r.Topics,
		Private:     r.GetPrivate(),
	}
	if r.UpdatedAt != nil {
		t := r.UpdatedAt.Time
		repo.UpdatedAt = &t
	}
	if repo.Topics == nil {
		repo.Topics = []string{}
	}
	return repo
}

func toGitHubWebhook(h *gh.Hook) *Webhook {
	return &Webhook{
		ID:     h.GetID(),
		URL:    h.GetConfig().GetURL(),
		Events: h.Events,
		Active: h.GetActive(),
	}
}
