package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"basegraph.app/codesight/common/id"
	"basegraph.app/codesight/internal/http/dto"
	"basegraph.app/codesight/internal/http/middleware"
	"basegraph.app/codesight/internal/service"
)

type ConnectionHandler struct {
	connections service.ConnectionService
}

func NewConnectionHandler(connections service.ConnectionService) *ConnectionHandler {
	return &ConnectionHandler{connections: connections}
}

func (h *ConnectionHandler) List(c *gin.Context) {
	ctx := c.Request.Context()
	userID, ok := middleware.GetUserID(ctx)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "not authenticated"})
		return
	}

	conns, err := h.connections.ListConnections(ctx, userID)
	if err != nil {
		respondError(c, err, "listing connections failed")
		return
	}

	c.JSON(http.StatusOK, dto.ToConnectionResponses(conns))
}

func (h *ConnectionHandler) Disconnect(c *gin.Context) {
	ctx := c.Request.Context()
	userID, ok := middleware.GetUserID(ctx)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "not authenticated"})
		return
	}

	connectionID, err := id.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid connection id"})
		return
	}

	result := h.connections.Disconnect(ctx, userID, connectionID)
	if !result.Success {
		status, msg := statusFor(result.Err)
		c.JSON(status, dto.DisconnectResponse{Success: false, Error: msg})
		return
	}

	c.JSON(http.StatusOK, dto.DisconnectResponse{Success: true, WebhookRemoved: result.WebhookRemoved})
}

// DisconnectAll removes every connection of the caller. The policy query
// parameter selects best_effort (default) or strict.
func (h *ConnectionHandler) DisconnectAll(c *gin.Context) {
	ctx := c.Request.Context()
	userID, ok := middleware.GetUserID(ctx)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "not authenticated"})
		return
	}

	policy, err := service.ParseDisconnectPolicy(c.Query("policy"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result := h.connections.DisconnectAll(ctx, userID, policy)
	resp := dto.ToDisconnectAllResponse(result)

	switch {
	case result.Success:
		c.JSON(http.StatusOK, resp)
	case result.Failed > 0:
		c.JSON(http.StatusBadGateway, resp)
	default:
		status, msg := statusFor(result.Err)
		resp.Error = msg
		c.JSON(status, resp)
	}
}
