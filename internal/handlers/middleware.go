package handlers

import (
	"log/slog"
	"net/http"
	"strings"

	"support-service/internal/repository"
	"support-service/internal/services"
	"support-service/utils"

	"github.com/gin-gonic/gin"
)

const ContextUserID = "user_id"

type Middleware struct {
	jwtService  *services.JWTService
	sessionRepo repository.SessionRepository
}

func NewMiddleware(jwtService *services.JWTService, sessionRepo repository.SessionRepository) *Middleware {
	return &Middleware{
		jwtService:  jwtService,
		sessionRepo: sessionRepo,
	}
}

// RequireAuth verifies the bearer token against the auth service's secret
// and checks the session is still active in Redis before attaching the
// actor's id to the request context.
func (m *Middleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized,
				utils.CreateErrorResponse("MISSING_TOKEN", "authorization header required"))
			return
		}

		tokenString := authHeader
		if strings.HasPrefix(authHeader, "Bearer ") {
			tokenString = authHeader[7:]
		}

		claims, err := m.jwtService.VerifyToken(tokenString)
		if err != nil {
			slog.Error("token validation failed", "error", err)
			c.AbortWithStatusJSON(http.StatusUnauthorized,
				utils.CreateErrorResponse("INVALID_TOKEN", "token validation failed"))
			return
		}

		if m.sessionRepo != nil && claims.Id != "" {
			active, err := m.sessionRepo.IsSessionActive(c, claims.Id)
			if err != nil {
				slog.Error("failed to check user session", "user_id", claims.UserID, "error", err)
				c.AbortWithStatusJSON(http.StatusInternalServerError,
					utils.CreateErrorResponse("SESSION_CHECK_FAILED", "failed to check user session"))
				return
			}
			if !active {
				c.AbortWithStatusJSON(http.StatusUnauthorized,
					utils.CreateErrorResponse("SESSION_INVALID", "no session found or session invalid"))
				return
			}
		}

		c.Set(ContextUserID, claims.UserID)
		c.Next()
	}
}

// actorID returns the authenticated user's id from the request context
func actorID(c *gin.Context) string {
	return c.GetString(ContextUserID)
}
