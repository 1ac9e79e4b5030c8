package router

import (
	"github.com/gin-gonic/gin"

	"basegraph.app/codesight/internal/http/handler/webhook"
	"basegraph.app/codesight/internal/service"
)

// WebhookRouter mounts both provider endpoints. A deployment only registers hooks
// pointing at its own provider's path.
func WebhookRouter(router *gin.RouterGroup, events service.WebhookEventService, secret string) {
	router.POST("/github", webhook.NewGitHubWebhookHandler(events, secret).HandleEvent)
	router.POST("/gitlab", webhook.NewGitLabWebhookHandler(events, secret).HandleEvent)
}
