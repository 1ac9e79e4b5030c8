package router

import (
	"github.com/gin-gonic/gin"

	"basegraph.app/codesight/internal/http/handler"
)

func ConnectionRouter(router *gin.RouterGroup, handler *handler.ConnectionHandler) {
	router.GET("", handler.List)
	router.DELETE("", handler.DisconnectAll)
	router.DELETE("/:id", handler.Disconnect)
}
