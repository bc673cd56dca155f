package middleware

import (
	"github.com/gin-gonic/gin"

	iauth "github.com/inkpost/inkpost/internal/auth"
	"github.com/inkpost/inkpost/pkg/errors"
	"github.com/inkpost/inkpost/pkg/response"
)

const (
	// SessionCookieName is the cookie carrying the opaque session token.
	SessionCookieName = "inkpost_session"

	CtxUserIDKey       = "userID"
	CtxSessionTokenKey = "sessionToken"
)

// Auth resolves the session cookie and enforces a live session. The identity
// travels in the request context; there is no process-wide current user.
func Auth(sessions *iauth.SessionService) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := c.Cookie(SessionCookieName)
		if err != nil || token == "" {
			response.Error(c, errors.ErrUnauthorized)
			c.Abort()
			return
		}

		session, err := sessions.Resolve(c.Request.Context(), token)
		if err != nil {
			// Revoked, expired, and unknown all normalise to 401.
			response.Error(c, errors.ErrUnauthorized)
			c.Abort()
			return
		}

		c.Set(CtxUserIDKey, session.UserID)
		c.Set(CtxSessionTokenKey, session.Token)

		c.Next()
	}
}
