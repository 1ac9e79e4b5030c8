package webhook

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"basegraph.app/codesight/internal/service"
)

// maxPayloadBytes matches the largest delivery GitHub sends.
const maxPayloadBytes = 25 << 20

// dispatch hands a parsed delivery to the event service and writes the acknowledgement.
func dispatch(c *gin.Context, events service.WebhookEventService, ev service.WebhookEvent) {
	ctx := c.Request.Context()

	result, err := events.Handle(ctx, ev)
	if err != nil {
		slog.ErrorContext(ctx, "failed to process webhook",
			"error", err,
			"provider", ev.Provider,
			"event", ev.RawKind,
			"delivery_id", ev.DeliveryID,
		)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to process webhook"})
		return
	}

	slog.InfoContext(ctx, "webhook processed",
		"provider", ev.Provider,
		"event", ev.RawKind,
		"repository", ev.Repository,
		"disposition", result.Reason,
	)
	c.JSON(http.StatusOK, gin.H{"received": true})
}
