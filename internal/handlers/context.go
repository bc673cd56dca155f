package handlers

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/inkpost/inkpost/internal/middleware"
)

// requestContext safely returns the request context with a background fallback for tests.
func requestContext(c *gin.Context) context.Context {
	if c == nil {
		return context.Background()
	}
	if req := c.Request; req != nil {
		return req.Context()
	}
	return context.Background()
}

// currentUserID returns the authenticated user's ID placed by the auth middleware.
func currentUserID(c *gin.Context) (string, bool) {
	v, ok := c.Get(middleware.CtxUserIDKey)
	if !ok {
		return "", false
	}
	id, ok := v.(string)
	return id, ok && id != ""
}

func currentSessionToken(c *gin.Context) (string, bool) {
	v, ok := c.Get(middleware.CtxSessionTokenKey)
	if !ok {
		return "", false
	}
	token, ok := v.(string)
	return token, ok && token != ""
}
