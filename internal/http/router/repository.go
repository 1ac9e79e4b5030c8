package router

import (
	"github.com/gin-gonic/gin"

	"basegraph.app/codesight/internal/http/handler"
)

func RepositoryRouter(router *gin.RouterGroup, handler *handler.RepositoryHandler) {
	router.GET("", handler.List)
	router.POST("/connect", handler.Connect)
}
