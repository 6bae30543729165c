package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/Palindrome-Puzzles/jolly-roger/internal/services"
	"github.com/Palindrome-Puzzles/jolly-roger/internal/transport/httpdto"
	"github.com/Palindrome-Puzzles/jolly-roger/pkg/logger"
)

// AuthMiddleware authenticates requests either with a bearer access token or
// with an API key in the X-Api-Key header.
func AuthMiddleware(auth *services.AuthService, keys *services.APIKeyService) gin.HandlerFunc {
	return func(c *gin.Context) {
		if key := strings.TrimSpace(c.GetHeader("X-Api-Key")); key != "" {
			user, err := keys.ResolveKey(c.Request.Context(), key)
			if err != nil {
				c.JSON(http.StatusUnauthorized, httpdto.NewErrorResponse("unauthorized", "UNAUTHORIZED"))
				c.Abort()
				return
			}
			attachIdentity(c, services.Identity{UserID: user.ID, IsAdmin: user.IsAdmin})
			c.Next()
			return
		}

		token := extractBearer(c)
		claims, err := auth.ParseAccessToken(token)
		if err != nil {
			c.JSON(http.StatusUnauthorized, httpdto.NewErrorResponse("unauthorized", "UNAUTHORIZED"))
			c.Abort()
			return
		}

		userID, err := uuid.Parse(claims.Subject)
		if err != nil {
			c.JSON(http.StatusUnauthorized, httpdto.NewErrorResponse("unauthorized", "UNAUTHORIZED"))
			c.Abort()
			return
		}

		attachIdentity(c, services.Identity{UserID: userID, IsAdmin: claims.IsAdmin})
		c.Next()
	}
}

func attachIdentity(c *gin.Context, id services.Identity) {
	ctx := services.WithIdentity(c.Request.Context(), id)
	ctx = context.WithValue(ctx, logger.UserIdKey, id.UserID.String())
	c.Request = c.Request.WithContext(ctx)
}

func extractBearer(c *gin.Context) string {
	value := c.GetHeader("Authorization")
	parts := strings.SplitN(value, " ", 2)
	if len(parts) != 2 {
		return ""
	}
	if !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
