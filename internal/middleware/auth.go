package middleware

import (
	"strings"

	"github.com/google/uuid"
	"github.com/m1z23r/drift/pkg/drift"
	"github.com/timepulse/timepulse-api/internal/services"
)

const (
	UserIDKey     = "user_id"
	UserEmailKey  = "user_email"
	GlobalRoleKey = "global_role"
)

// bearerToken extracts the token from the Authorization header. Browsers cannot
// set headers on an EventSource, so streams may pass access_token instead.
func bearerToken(c *drift.Context) (string, string) {
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		if token := c.QueryParam("access_token"); token != "" {
			return token, ""
		}
		return "", "missing authorization header"
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
		return "", "invalid authorization header format"
	}
	return parts[1], ""
}

func Auth(jwtService *services.JWTService) drift.HandlerFunc {
	return func(c *drift.Context) {
		token, problem := bearerToken(c)
		if problem != "" {
			c.Unauthorized(problem)
			return
		}

		claims, err := jwtService.ValidateAccessToken(token)
		if err != nil {
			c.Unauthorized("invalid or expired token")
			return
		}

		c.Set(UserIDKey, claims.UserID)
		c.Set(UserEmailKey, claims.Email)
		c.Set(GlobalRoleKey, claims.GlobalRole)

		c.Next()
	}
}

// RequireGlobalRole must run after Auth.
func RequireGlobalRole(role string) drift.HandlerFunc {
	return func(c *drift.Context) {
		if GetGlobalRole(c) != role {
			c.Forbidden("insufficient permissions")
			return
		}
		c.Next()
	}
}

func GetUserID(c *drift.Context) uuid.UUID {
	if id, ok := c.Get(UserIDKey); ok {
		if uid, ok := id.(uuid.UUID); ok {
			return uid
		}
	}
	return uuid.Nil
}

func GetUserEmail(c *drift.Context) string {
	if email, ok := c.Get(UserEmailKey); ok {
		if e, ok := email.(string); ok {
			return e
		}
	}
	return ""
}

func GetGlobalRole(c *drift.Context) string {
	if role, ok := c.Get(GlobalRoleKey); ok {
		if r, ok := role.(string); ok {
			return r
		}
	}
	return ""
}
