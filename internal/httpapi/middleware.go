package httpapi

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"kbagent/internal/apperrors"
)

// authMiddleware verifies the Authorization: Bearer <token> header and
// stashes userID/username/role on the Gin context, generalizing
// web/middleware/session.go's per-request identity check from an anonymous
// cookie session to a JWT bearer identity.
func (s *Server) authMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			respondWithClientError(c, http.StatusUnauthorized, "missing or malformed authorization header")
			c.Abort()
			return
		}
		token := strings.TrimPrefix(header, "Bearer ")
		claims, err := s.tokens.Verify(token)
		if err != nil {
			respondWithClientError(c, http.StatusUnauthorized, "invalid or expired token")
			c.Abort()
			return
		}
		c.Set("userID", claims.UserID)
		c.Set("username", claims.Username)
		c.Set("role", claims.Role)
		c.Next()
	}
}

// requireRole aborts with 403 unless the authenticated user's role matches.
func (s *Server) requireRole(role string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.GetString("role") != role {
			respondWithClientError(c, http.StatusForbidden, "insufficient permissions")
			c.Abort()
			return
		}
		c.Next()
	}
}

// respondWithError logs the technical error and returns a user-facing
// message, matching web/handlers/errors.go's respondWithError shape.
func respondWithError(c *gin.Context, statusCode int, technicalError error, userMessage string, logger *zap.Logger, fields ...zap.Field) {
	if logger != nil {
		fields = append(fields, zap.Error(technicalError))
		logger.Error("request failed", fields...)
	}
	c.JSON(statusCode, gin.H{"error": userMessage})
}

// respondWithClientError returns a client error without logging, matching
// web/handlers/errors.go's respondWithClientError.
func respondWithClientError(c *gin.Context, statusCode int, userMessage string) {
	c.JSON(statusCode, gin.H{"error": userMessage})
}

// handleErr translates an apperrors-classified error into an HTTP response.
func (s *Server) handleErr(c *gin.Context, err error, userMessage string) {
	status := apperrors.StatusCode(err)
	if status >= http.StatusInternalServerError {
		respondWithError(c, status, err, userMessage, s.logger, zap.String("path", c.FullPath()))
		return
	}
	respondWithClientError(c, status, userMessage)
}
