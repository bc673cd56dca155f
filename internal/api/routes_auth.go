package api

import (
	"github.com/gin-gonic/gin"

	"github.com/inkpost/inkpost/internal/handlers"
)

type authRouteDeps struct {
	AuthHandler  *handlers.AuthHandler
	ResetHandler *handlers.PasswordResetHandler
}

func registerAuthRoutes(api *gin.RouterGroup, requireAuth gin.HandlerFunc, deps authRouteDeps) {
	auth := api.Group("/auth")
	{
		auth.POST("/register", deps.AuthHandler.Register)
		auth.POST("/login", deps.AuthHandler.Login)
		auth.POST("/forgot-password", deps.ResetHandler.Request)
		auth.PUT("/forgot-password", deps.ResetHandler.Confirm)
	}

	session := api.Group("/auth")
	session.Use(requireAuth)
	{
		session.GET("/me", deps.AuthHandler.Me)
		session.POST("/logout", deps.AuthHandler.Logout)
	}
}
