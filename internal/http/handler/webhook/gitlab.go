package webhook

import (
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	gitlab "gitlab.com/gitlab-org/api/client-go"

	"basegraph.app/codesight/internal/provider"
	"basegraph.app/codesight/internal/service"
)

type GitLabWebhookHandler struct {
	events service.WebhookEventService
	secret string
}

// NewGitLabWebhookHandler checks X-Gitlab-Token only when secret is non-empty.
func NewGitLabWebhookHandler(events service.WebhookEventService, secret string) *GitLabWebhookHandler {
	return &GitLabWebhookHandler{events: events, secret: secret}
}

type gitlabWebhookPayload struct {
	ObjectKind string `json:"object_kind"`
	Ref        string `json:"ref"`
	After      string `json:"after"`
	Project    struct {
		PathWithNamespace string `json:"path_with_namespace"`
		ID                int64  `json:"id"`
	} `json:"project"`
	ObjectAttributes struct {
		Action       string `json:"action"`
		SourceBranch string `json:"source_branch"`
		LastCommit   struct {
			ID string `json:"id"`
		} `json:"last_commit"`
		IID int `json:"iid"`
	} `json:"object_attributes"`
}

func (h *GitLabWebhookHandler) HandleEvent(c *gin.Context) {
	ctx := c.Request.Context()

	if h.secret != "" {
		token := c.GetHeader("X-Gitlab-Token")
		if subtle.ConstantTimeCompare([]byte(token), []byte(h.secret)) != 1 {
			slog.WarnContext(ctx, "gitlab webhook token rejected")
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid webhook token"})
			return
		}
	}

	body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxPayloadBytes))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read request body"})
		return
	}

	rawKind := string(gitlab.HookEventType(c.Request))
	ev, err := parseGitLabEvent(rawKind, body)
	if err != nil {
		slog.ErrorContext(ctx, "invalid gitlab webhook payload", "error", err, "event", rawKind)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "invalid payload"})
		return
	}
	ev.DeliveryID = c.GetHeader("X-Gitlab-Event-UUID")

	dispatch(c, h.events, ev)
}

func parseGitLabEvent(rawKind string, body []byte) (service.WebhookEvent, error) {
	ev := service.WebhookEvent{Provider: provider.GitLab, RawKind: rawKind}

	var payload gitlabWebhookPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return ev, fmt.Errorf("decoding %q event: %w", rawKind, err)
	}

	ev.Repository = payload.Project.PathWithNamespace
	ev.ProviderRepoID = payload.Project.ID

	switch gitlab.EventType(rawKind) {
	case gitlab.EventTypePush:
		ev.Kind = service.EventPush
		ev.Ref = payload.Ref
		ev.HeadSHA = payload.After
	case gitlab.EventTypeMergeRequest:
		ev.Kind = service.EventPullRequest
		ev.Number = payload.ObjectAttributes.IID
		ev.Action = payload.ObjectAttributes.Action
		ev.Ref = payload.ObjectAttributes.SourceBranch
		ev.HeadSHA = payload.ObjectAttributes.LastCommit.ID
	default:
		ev.Kind = service.EventOther
	}

	return ev, nil
}
