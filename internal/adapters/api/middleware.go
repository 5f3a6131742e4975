package api

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/example/galley/internal/core/access"
	"github.com/example/galley/internal/ctxutil"
)

// TokenParser turns a bearer token into an actor.
type TokenParser interface {
	Parse(token string) (access.Actor, error)
}

// AuthMiddleware validates JWT bearer tokens and stores the actor on the request context.
func AuthMiddleware(parser TokenParser) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorResponse{
				Error:   "Authorization header required",
				Message: "Please provide a valid authorization token",
			})
			return
		}

		// Extract token from "Bearer <token>"
		tokenParts := strings.Split(authHeader, " ")
		if len(tokenParts) != 2 || tokenParts[0] != "Bearer" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorResponse{
				Error:   "Invalid authorization format",
				Message: "Authorization header must be in format 'Bearer <token>'",
			})
			return
		}

		actor, err := parser.Parse(tokenParts[1])
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorResponse{
				Error:   "Invalid token",
				Message: "The provided token is invalid or expired",
			})
			return
		}

		c.Set("actor_id", actor.ID)
		c.Set("role", string(actor.Role))
		c.Request = c.Request.WithContext(ctxutil.WithActor(c.Request.Context(), actor))
		c.Next()
	}
}

// RequireRole aborts with 403 unless the guard allows the request's actor.
func RequireRole(guard func(access.Actor) access.GuardResult) gin.HandlerFunc {
	return func(c *gin.Context) {
		result := guard(ctxutil.ActorFromContext(c.Request.Context()))
		if !result.Allowed {
			respondForbidden(c, result.Reason)
			c.Abort()
			return
		}
		c.Next()
	}
}
