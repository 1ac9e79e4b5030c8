package webhook

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	gh "github.com/google/go-github/v80/github"

	"basegraph.app/codesight/internal/provider"
	"basegraph.app/codesight/internal/service"
)

type GitHubWebhookHandler struct {
	events service.WebhookEventService
	secret []byte
}

// NewGitHubWebhookHandler verifies X-Hub-Signature-256 only when secret is non-empty.
func NewGitHubWebhookHandler(events service.WebhookEventService, secret string) *GitHubWebhookHandler {
	h := &GitHubWebhookHandler{events: events}
	if secret != "" {
		h.secret = []byte(secret)
	}
	return h
}

type githubEnvelope struct {
	Repository struct {
		FullName string `json:"full_name"`
		ID       int64  `json:"id"`
	} `json:"repository"`
	Action string `json:"action"`
}

func (h *GitHubWebhookHandler) HandleEvent(c *gin.Context) {
	ctx := c.Request.Context()

	body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxPayloadBytes))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read request body"})
		return
	}

	if h.secret != nil {
		if err := gh.ValidateSignature(c.GetHeader("X-Hub-Signature-256"), body, h.secret); err != nil {
			slog.WarnContext(ctx, "github webhook signature rejected", "error", err)
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid signature"})
			return
		}
	}

	rawKind := gh.WebHookType(c.Request)
	ev, err := parseGitHubEvent(rawKind, body)
	if err != nil {
		slog.ErrorContext(ctx, "invalid github webhook payload", "error", err, "event", rawKind)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "invalid payload"})
		return
	}
	ev.DeliveryID = gh.DeliveryID(c.Request)

	dispatch(c, h.events, ev)
}

func parseGitHubEvent(rawKind string, body []byte) (service.WebhookEvent, error) {
	ev := service.WebhookEvent{Provider: provider.GitHub, RawKind: rawKind}

	switch rawKind {
	case "push", "pull_request":
		parsed, err := gh.ParseWebHook(rawKind, body)
		if err != nil {
			return ev, fmt.Errorf("parsing %s event: %w", rawKind, err)
		}
		switch e := parsed.(type) {
		case *gh.PushEvent:
			ev.Kind = service.EventPush
			ev.Repository = e.GetRepo().GetFullName()
			ev.ProviderRepoID = e.GetRepo().GetID()
			ev.Ref = e.GetRef()
			ev.HeadSHA = e.GetAfter()
		case *gh.PullRequestEvent:
			ev.Kind = service.EventPullRequest
			ev.Repository = e.GetRepo().GetFullName()
			ev.ProviderRepoID = e.GetRepo().GetID()
			ev.Number = e.GetNumber()
			ev.Action = e.GetAction()
			ev.Ref = e.GetPullRequest().GetHead().GetRef()
			ev.HeadSHA = e.GetPullRequest().GetHead().GetSHA()
		}
		return ev, nil
	}

	var env githubEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return ev, fmt.Errorf("decoding %q event: %w", rawKind, err)
	}
	ev.Kind = service.EventOther
	if rawKind == "ping" {
		ev.Kind = service.EventPing
	}
	ev.Repository = env.Repository.FullName
	ev.ProviderRepoID = env.Repository.ID
	ev.Action = env.Action
	return ev, nil
}
