package httpkit

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

type cronConfig struct {
	secret string
}

func (c cronConfig) GetCronSecret() string { return c.secret }

func newCronEngine(secret string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	engine := gin.New()
	engine.POST("/cron/auto-kill", CronAuth(cronConfig{secret: secret}), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})
	return engine
}

func TestCronAuth(t *testing.T) {
	tests := []struct {
		name       string
		secret     string
		authHeader string
		wantStatus int
	}{
		{name: "valid token", secret: "s3cret", authHeader: "Bearer s3cret", wantStatus: http.StatusOK},
		{name: "wrong token", secret: "s3cret", authHeader: "Bearer wrong", wantStatus: http.StatusUnauthorized},
		{name: "missing header", secret: "s3cret", authHeader: "", wantStatus: http.StatusUnauthorized},
		{name: "not bearer", secret: "s3cret", authHeader: "Basic s3cret", wantStatus: http.StatusUnauthorized},
		{name: "empty configured secret rejects everything", secret: "", authHeader: "Bearer ", wantStatus: http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine := newCronEngine(tt.secret)
			req := httptest.NewRequest(http.MethodPost, "/cron/auto-kill", nil)
			if tt.authHeader != "" {
				req.Header.Set("Authorization", tt.authHeader)
			}
			rec := httptest.NewRecorder()
			engine.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
		})
	}
}
