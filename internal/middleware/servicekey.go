package middleware

import (
	"crypto/subtle"

	"github.com/m1z23r/drift/pkg/drift"
)

const ServiceKeyHeader = "X-Service-Key"

// ServiceKey guards routes called by sibling services (payment webhooks,
// serverless functions). An empty key disables the routes entirely.
func ServiceKey(key string) drift.HandlerFunc {
	return func(c *drift.Context) {
		if key == "" {
			c.Forbidden("internal routes are disabled")
			return
		}

		provided := c.GetHeader(ServiceKeyHeader)
		if provided == "" {
			if token, problem := bearerToken(c); problem == "" {
				provided = token
			}
		}
		if subtle.ConstantTimeCompare([]byte(provided), []byte(key)) != 1 {
			c.Unauthorized("invalid service key")
			return
		}
		c.Next()
	}
}
