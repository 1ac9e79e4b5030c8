package provider

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	gitlab "gitlab.com/gitlab-org/api/client-go"
)

const defaultGitLabURL = "https://gitlab.com"

type GitLabFactory struct {
	opts    Options
	apiBase string
}

func NewGitLabFactory(opts Options) (*GitLabFactory, error) {
	opts = opts.withDefaults()

	instance := strings.TrimSuffix(opts.BaseURL, "/")
	if instance == "" {
		instance = defaultGitLabURL
	}
	if opts.WebURL == "" {
		opts.WebURL = instance
	}

	return &GitLabFactory{
		opts:    opts,
		apiBase: instance + "/api/v4",
	}, nil
}

func (f *GitLabFactory) Name() string {
	return GitLab
}

func (f *GitLabFactory) ForToken(token string) (Client, error) {
	if token == "" {
		return nil, errors.New("gitlab token is empty")
	}

	client, err := gitlab.NewClient(token, gitlab.WithBaseURL(f.apiBase))
	if err != nil {
		return nil, fmt.Errorf("creating gitlab client: %w", err)
	}

	return &gitlabClient{
		gl:     client,
		caller: &caller{opts: f.opts, provider: GitLab},
		webURL: strings.TrimSuffix(f.opts.WebURL, "/"),
		secret: f.opts.WebhookSecret,
	}, nil
}

type gitlabClient struct {
	gl     *gitlab.Client
	caller *caller
	webURL string
	secret string
}

func (c *gitlabClient) RepositoryURL(owner, repo string) string {
	return fmt.Sprintf("%s/%s/%s", c.webURL, owner, repo)
}

func (c *gitlabClient) ListRepositories(ctx context.Context, page, perPage int) ([]Repository, error) {
	return call(ctx, c.caller, "list_repositories", func(ctx context.Context) ([]Repository, error) {
		opts := &gitlab.ListProjectsOptions{
			Membership: gitlab.Ptr(true),
			OrderBy:    gitlab.Ptr("last_activity_at"),
			Sort:       gitlab.Ptr("desc"),
		}
		setPage(&opts.Page, page)
		setPage(&opts.PerPage, perPage)

		projects, resp, err := c.gl.Projects.ListProjects(opts, gitlab.WithContext(ctx))
		if err != nil {
			return nil, gitlabError("list_repositories", resp, err)
		}

		out := make([]Repository, 0, len(projects))
		for _, p := range projects {
			out = append(out, toGitLabRepository(p))
		}
		return out, nil
	})
}

func (c *gitlabClient) EnsureWebhook(ctx context.Context, target WebhookTarget) (*Webhook, error) {
	pid := target.FullName()

	return call(ctx, c.caller, "ensure_webhook", func(ctx context.Context) (*Webhook, error) {
		if target.HookID != nil {
			hook, resp, err := c.gl.Projects.GetProjectHook(pid, *target.HookID, gitlab.WithContext(ctx))
			switch {
			case err == nil && hook.URL == target.CallbackURL:
				return toGitLabWebhook(hook), nil
			case err == nil:
				return c.retargetHook(ctx, pid, hook.ID, target.CallbackURL)
			case !gitlabIsStatus(resp, http.StatusNotFound):
				return nil, gitlabError("get_hook", resp, err)
			}
		}

		existing, err := c.findHook(ctx, pid, target.CallbackURL)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			return toGitLabWebhook(existing), nil
		}

		opts := &gitlab.AddProjectHookOptions{
			URL:                   gitlab.Ptr(target.CallbackURL),
			PushEvents:            gitlab.Ptr(true),
			MergeRequestsEvents:   gitlab.Ptr(true),
			EnableSSLVerification: gitlab.Ptr(true),
		}
		if c.secret != "" {
			opts.Token = gitlab.Ptr(c.secret)
		}

		hook, resp, err := c.gl.Projects.AddProjectHook(pid, opts, gitlab.WithContext(ctx))
		if err != nil {
			return nil, gitlabError("create_hook", resp, err)
		}
		return toGitLabWebhook(hook), nil
	})
}

// retargetHook points the stored hook at the current callback URL so the
// connection keeps owning a single hook across host changes.
func (c *gitlabClient) retargetHook(ctx context.Context, pid string, hookID int64, callbackURL string) (*Webhook, error) {
	opts := &gitlab.EditProjectHookOptions{
		URL:                   gitlab.Ptr(callbackURL),
		PushEvents:            gitlab.Ptr(true),
		MergeRequestsEvents:   gitlab.Ptr(true),
		EnableSSLVerification: gitlab.Ptr(true),
	}
	if c.secret != "" {
		opts.Token = gitlab.Ptr(c.secret)
	}

	hook, resp, err := c.gl.Projects.EditProjectHook(pid, hookID, opts, gitlab.WithContext(ctx))
	if err != nil {
		return nil, gitlabError("edit_hook", resp, err)
	}
	return toGitLabWebhook(hook), nil
}

func (c *gitlabClient) RemoveWebhook(ctx context.Context, target WebhookTarget) (bool, error) {
	pid := target.FullName()

	return call(ctx, c.caller, "remove_webhook", func(ctx context.Context) (bool, error) {
		if target.HookID != nil {
			resp, err := c.gl.Projects.DeleteProjectHook(pid, *target.HookID, gitlab.WithContext(ctx))
			if err == nil {
				return true, nil
			}
			if !gitlabIsStatus(resp, http.StatusNotFound) {
				return false, gitlabError("delete_hook", resp, err)
			}
		}

		hook, err := c.findHook(ctx, pid, target.CallbackURL)
		if err != nil {
			return false, err
		}
		if hook == nil {
			return false, nil
		}

		resp, err := c.gl.Projects.DeleteProjectHook(pid, hook.ID, gitlab.WithContext(ctx))
		if err != nil {
			if gitlabIsStatus(resp, http.StatusNotFound) {
				return false, nil
			}
			return false, gitlabError("delete_hook", resp, err)
		}
		return true, nil
	})
}

func (c *gitlabClient) findHook(ctx context.Context, pid, callbackURL string) (*gitlab.ProjectHook, error) {
	opts := &gitlab.ListProjectHooksOptions{}
	setPage(&opts.PerPage, 100)

	for {
		hooks, resp, err := c.gl.Projects.ListProjectHooks(pid, opts, gitlab.WithContext(ctx))
		if err != nil {
			return nil, gitlabError("list_hooks", resp, err)
		}
		for _, h := range hooks {
			if h.URL == callbackURL {
				return h, nil
			}
		}
		if resp.NextPage == 0 {
			return nil, nil
		}
		setPage(&opts.Page, int(resp.NextPage))
	}
}

// setPage assigns pagination values whatever integer width the client library uses.
func setPage[T ~int | ~int64](dst *T, v int) {
	*dst = T(v)
}

func gitlabError(op string, resp *gitlab.Response, err error) error {
	return newError(op, gitlabStatus(resp), err)
}

func gitlabStatus(resp *gitlab.Response) int {
	if resp == nil || resp.Response == nil {
		return 0
	}
	return resp.StatusCode
}

func gitlabIsStatus(resp *gitlab.Response, status int) bool {
	return gitlabStatus(resp) == status
}

func toGitLabRepository(p *gitlab.Project) Repository {
	owner, name := splitPath(p.PathWithNamespace)
	repo := Repository{
		ID:          int64(p.ID),
		Owner:       owner,
		Name:        name,
		FullName:    p.PathWithNamespace,
		Description: p.Description,
		URL:         p.WebURL,
		Stars:       int(p.StarCount),
		Topics:      p.Topics,
		Private:     p.Visibility != gitlab.PublicVisibility,
		UpdatedAt:   p.LastActivityAt,
	}
	if repo.Topics == nil {
		repo.Topics = []string{}
	}
	return repo
}

// splitPath turns "group/sub/project" into ("group/sub", "project").
func splitPath(full string) (string, string) {
	i := strings.LastIndex(full, "/")
	if i < 0 {
		return "", full
	}
	return full[:i], full[i+1:]
}

func toGitLabWebhook(h *gitlab.ProjectHook) *Webhook {
	var events []string
	if h.PushEvents {
		events = append(events, "push")
	}
	if h.MergeRequestsEvents {
		events = append(events, "pull_request")
	}
	return &Webhook{
		ID:     int64(h.ID),
		URL:    h.URL,
		Events: events,
		Active: true,
	}
}
