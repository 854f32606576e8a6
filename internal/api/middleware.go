package api

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// AuthDisabled is the configured token value that turns authentication off.
const AuthDisabled = "none"

// bearerAuth enforces the shared-secret bearer check. A missing or malformed
// Authorization header is a 401; a present but wrong token is a 403.
func bearerAuth(token string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if token == AuthDisabled {
			c.Next()
			return
		}

		header := c.GetHeader("Authorization")
		if header == "" {
			abortWithError(c, http.StatusUnauthorized, "Authorization header missing")
			return
		}
		const prefix = "Bearer "
		if !strings.HasPrefix(header, prefix) {
			abortWithError(c, http.StatusUnauthorized, "Invalid authorization header format")
			return
		}
		presented := header[len(prefix):]
		if subtle.ConstantTimeCompare([]byte(presented), []byte(token)) != 1 {
			abortWithError(c, http.StatusForbidden, "Invalid API key (Bearer token)")
			return
		}
		c.Next()
	}
}
