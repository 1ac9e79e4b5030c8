package router

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"basegraph.app/codesight/internal/http/handler"
	"basegraph.app/codesight/internal/http/middleware"
	"basegraph.app/codesight/internal/metrics"
	"basegraph.app/codesight/internal/service"
)

type RouterConfig struct {
	SessionCookie string
	WebhookSecret string
	Metrics       *metrics.Metrics
}

func SetupRoutes(router *gin.Engine, services *service.Services, cfg RouterConfig) {
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if cfg.Metrics != nil {
		router.GET("/metrics", gin.WrapH(cfg.Metrics.Handler()))
	}

	WebhookRouter(router.Group("/api/webhooks"), services.WebhookEvents(), cfg.WebhookSecret)

	v1 := router.Group("/api/v1")
	v1.Use(middleware.RequireAuth(services.Auth(), cfg.SessionCookie))
	{
		repoHandler := handler.NewRepositoryHandler(services.Listing(), services.Connections())
		RepositoryRouter(v1.Group("/repositories"), repoHandler)

		connHandler := handler.NewConnectionHandler(services.Connections())
		ConnectionRouter(v1.Group("/connections"), connHandler)
	}
}
