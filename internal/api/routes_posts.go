package api

import (
	"github.com/gin-gonic/gin"

	"github.com/inkpost/inkpost/internal/handlers"
)

func registerPostRoutes(api *gin.RouterGroup, requireAuth gin.HandlerFunc, handler *handlers.PostHandler) {
	posts := api.Group("/posts")
	{
		posts.GET("", handler.List)
		posts.GET("/mine", requireAuth, handler.Mine)
		posts.GET("/:slug", handler.Get)
	}

	authed := api.Group("/posts")
	authed.Use(requireAuth)
	{
		authed.POST("", handler.Create)
		authed.PATCH("/:id", handler.Update)
		authed.DELETE("/:id", handler.Delete)
	}
}
