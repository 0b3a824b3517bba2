package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// requestLogger logs one structured line per request.
func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		slog.Info("HTTP request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration", time.Since(start).Round(time.Millisecond).String(),
			"client_ip", c.ClientIP())
	}
}

// clientContextKey is where the authenticated credential lands in the gin
// context.
const clientContextKey = "authenticated_client"

// requireClientCredentials validates the X-Client-Id / X-Client-Secret
// headers against the credentials table. Every failure mode after the
// presence check returns the same 401 so callers can't probe for valid
// client IDs.
func (s *Server) requireClientCredentials() gin.HandlerFunc {
	return func(c *gin.Context) {
		clientID := c.GetHeader("X-Client-Id")
		clientSecret := c.GetHeader("X-Client-Secret")
		if clientID == "" || clientSecret == "" {
			c.Header("WWW-Authenticate", "Bearer")
			c.AbortWithStatusJSON(http.StatusUnauthorized,
				gin.H{"error": "Client ID and Client Secret are required"})
			return
		}

		client, err := s.credentials.Authenticate(c.Request.Context(), clientID, clientSecret)
		if err != nil {
			slog.Warn("Authentication failed", "client_id", clientID)
			c.Header("WWW-Authenticate", "Bearer")
			c.AbortWithStatusJSON(http.StatusUnauthorized,
				gin.H{"error": "Invalid client credentials"})
			return
		}

		c.Set(clientContextKey, client)
		c.Next()
	}
}
