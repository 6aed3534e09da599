package httpapi

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"cycleworks/internal/auth"
)

const (
	requestIDHeader = "X-Request-ID"
	claimsKey       = "claims"
	requestIDKey    = "request_id"
)

// TokenVerifier проверяет bearer-токен и возвращает email владельца
type TokenVerifier interface {
	Verify(token string) (*auth.Claims, error)
}

// requestID tags every request with an id, reusing the caller's if present.
func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(requestIDKey, id)
		c.Header(requestIDHeader, id)
		c.Next()
	}
}

func requestLogger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Info("http request",
			"request_id", c.GetString(requestIDKey),
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration", time.Since(start),
		)
	}
}

// requestTimeout bounds collaborator calls made with the request context.
func requestTimeout(d time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		if d <= 0 {
			c.Next()
			return
		}
		ctx, cancel := context.WithTimeout(c.Request.Context(), d)
		defer cancel()
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// authenticate verifies the bearer token and writes 401/403 on failure.
func (s *Server) authenticate(c *gin.Context) (*auth.Claims, bool) {
	token, err := auth.BearerToken(c.GetHeader("Authorization"))
	if errors.Is(err, auth.ErrMissingToken) {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "UnAuthorized Access"})
		return nil, false
	}
	if err == nil {
		var claims *auth.Claims
		claims, err = s.tokens.Verify(token)
		if err == nil {
			c.Set(claimsKey, claims)
			return claims, true
		}
	}
	c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"message": "Forbidden Access"})
	return nil, false
}

func (s *Server) requireToken(c *gin.Context) {
	if _, ok := s.authenticate(c); ok {
		c.Next()
	}
}

// requireAdmin must run after requireToken. One role lookup per request.
func (s *Server) requireAdmin(c *gin.Context) {
	claims := claimsFrom(c)
	if claims == nil {
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"message": "Forbidden access"})
		return
	}
	ok, err := s.users.IsAdmin(c.Request.Context(), claims.Email)
	if err != nil {
		s.fail(c, err)
		c.Abort()
		return
	}
	if !ok {
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"message": "Forbidden access"})
		return
	}
	c.Next()
}

func claimsFrom(c *gin.Context) *auth.Claims {
	v, ok := c.Get(claimsKey)
	if !ok {
		return nil
	}
	claims, _ := v.(*auth.Claims)
	return claims
}
