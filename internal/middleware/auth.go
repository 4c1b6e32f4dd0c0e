package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"forum-service/internal/repositories"
)

// SessionCookie is the cookie carrying the session token.
const SessionCookie = "sid"

// SessionToken extracts the session token from the sid cookie or a Bearer
// Authorization header. The cookie wins when both are present.
func SessionToken(c *gin.Context) string {
	if cookie, err := c.Cookie(SessionCookie); err == nil && cookie != "" {
		return cookie
	}
	header := c.GetHeader("Authorization")
	parts := strings.SplitN(header, " ", 2)
	if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
		return strings.TrimSpace(parts[1])
	}
	return ""
}

// SessionAuth resolves the caller's session. Missing or unknown sessions get
// the same 404 as an unknown route so that protected resources do not reveal
// themselves.
func SessionAuth(sessions repositories.SessionRepository) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := SessionToken(c)
		if token == "" {
			c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "not found"})
			return
		}

		user, err := sessions.GetUserBySession(c.Request.Context(), token)
		if err != nil {
			if !errors.Is(err, repositories.ErrSessionNotFound) {
				log.Error().Err(err).Msg("session lookup failed")
			}
			c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "not found"})
			return
		}

		c.Set("userID", user.ID)
		c.Set("username", user.Username)
		c.Set("user", user)
		c.Set("sessionToken", token)
		c.Next()
	}
}
