package httpkit

import (
	"crypto/subtle"
	"net/http"

	"salesops_backend/platform/config"

	"github.com/gin-gonic/gin"
)

// CronAuth guards cron trigger endpoints with a shared bearer secret.
// The comparison is constant-time.
func CronAuth(cfg config.CronConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		secret := cfg.GetCronSecret()
		token, ok := extractBearerToken(c.GetHeader("Authorization"))
		if !ok || secret == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": errMissingToken})
			return
		}

		if subtle.ConstantTimeCompare([]byte(token), []byte(secret)) != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": errInvalidToken})
			return
		}

		c.Next()
	}
}
