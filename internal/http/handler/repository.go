package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"basegraph.app/codesight/internal/http/dto"
	"basegraph.app/codesight/internal/http/middleware"
	"basegraph.app/codesight/internal/service"
)

type RepositoryHandler struct {
	listing     service.ListingService
	connections service.ConnectionService
}

func NewRepositoryHandler(listing service.ListingService, connections service.ConnectionService) *RepositoryHandler {
	return &RepositoryHandler{listing: listing, connections: connections}
}

// List returns one provider page annotated with the caller's connections.
func (h *RepositoryHandler) List(c *gin.Context) {
	ctx := c.Request.Context()
	userID, ok := middleware.GetUserID(ctx)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "not authenticated"})
		return
	}

	var q dto.ListRepositoriesQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid paging parameters"})
		return
	}

	page, err := h.listing.FetchConnectedPage(ctx, userID, q.Page, q.PerPage)
	if err != nil {
		respondError(c, err, "listing repositories failed")
		return
	}

	c.JSON(http.StatusOK, page)
}

func (h *RepositoryHandler) Connect(c *gin.Context) {
	ctx := c.Request.Context()
	userID, ok := middleware.GetUserID(ctx)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "not authenticated"})
		return
	}

	var req dto.ConnectRepositoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := h.connections.Connect(ctx, userID, service.ConnectParams{
		Owner:          req.Owner,
		Name:           req.Repo,
		ProviderRepoID: req.GithubID,
	})
	if err != nil {
		respondError(c, err, "connecting repository failed")
		return
	}

	status := http.StatusCreated
	if result.AlreadyConnected {
		status = http.StatusOK
	}
	c.JSON(status, dto.ToConnectRepositoryResponse(result))
}
