package ginserver

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	gin "github.com/gin-gonic/gin"

	authsvc "sprinter/internal/app/services/auth"
	domainuser "sprinter/internal/domain/user"
)

const principalContextKey = "sprinter.principal"

type principal struct {
	ID    string
	Name  string
	Email string
}

// TokenResolver maps a bearer token to its user.
type TokenResolver interface {
	Resolve(ctx context.Context, token string) (*domainuser.User, error)
}

type AuthMiddleware struct {
	Resolver TokenResolver
	Logger   *slog.Logger
}

// Require rejects requests without a valid bearer token and stores the caller for handlers.
func (m AuthMiddleware) Require() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := extractBearerToken(c.GetHeader("Authorization"))
		if !ok {
			abortDetail(c, http.StatusForbidden, "Not authenticated")
			return
		}
		if m.Resolver == nil {
			abortDetail(c, http.StatusServiceUnavailable, "Authentication unavailable")
			return
		}
		user, err := m.Resolver.Resolve(c.Request.Context(), token)
		if err != nil {
			m.respondResolveError(c, err)
			return
		}
		c.Set(principalContextKey, principal{ID: string(user.ID), Name: user.Name, Email: user.Email})
		c.Next()
	}
}

func (m AuthMiddleware) respondResolveError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, authsvc.ErrInvalidToken):
		if m.Logger != nil {
			m.Logger.Debug("token validation failed", "error", err)
		}
		c.Header("WWW-Authenticate", "Bearer")
		abortDetail(c, http.StatusUnauthorized, "Invalid authentication credentials")
	case errors.Is(err, authsvc.ErrUserNotFound):
		abortDetail(c, http.StatusUnauthorized, "User not found")
	default:
		if m.Logger != nil {
			m.Logger.Error("token resolution failed", "error", err)
		}
		abortDetail(c, http.StatusInternalServerError, "Internal server error")
	}
}

func currentPrincipal(c *gin.Context) (principal, bool) {
	val, exists := c.Get(principalContextKey)
	if !exists {
		return principal{}, false
	}
	p, ok := val.(principal)
	return p, ok
}

// requirePrincipal covers handlers mounted without Require.
func requirePrincipal(c *gin.Context) (principal, bool) {
	p, ok := currentPrincipal(c)
	if !ok {
		abortDetail(c, http.StatusForbidden, "Not authenticated")
		return principal{}, false
	}
	return p, true
}

func extractBearerToken(header string) (string, bool) {
	scheme, token, found := strings.Cut(strings.TrimSpace(header), " ")
	if !found || !strings.EqualFold(scheme, "bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
