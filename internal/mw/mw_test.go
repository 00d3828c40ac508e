package mw

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

func TestLogger(t *testing.T) {
	req := require.New(t)
	gin.SetMode(gin.TestMode)

	var buf bytes.Buffer
	prev := log.Logger
	log.Logger = zerolog.New(&buf)
	t.Cleanup(func() { log.Logger = prev })

	r := gin.New()
	r.Use(Logger())
	r.GET("/rooms/:id", func(c *gin.Context) { c.Status(http.StatusNotFound) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/rooms/42", nil))

	out := buf.String()
	req.Contains(out, `"level":"warn"`)
	req.Contains(out, `"path":"/rooms/:id"`)
	req.Contains(out, `"status":404`)
}

func TestRateLimit(t *testing.T) {
	req := require.New(t)
	gin.SetMode(gin.TestMode)

	lim := NewLimiter(rate.Every(1<<62), 2, time.Minute)
	t.Cleanup(lim.Stop)
	r := gin.New()
	r.Use(lim.Middleware())
	r.GET("/ping", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		w := httptest.NewRecorder()
		hr := httptest.NewRequest(http.MethodGet, "/ping", nil)
		hr.RemoteAddr = "10.0.0.1:1234"
		r.ServeHTTP(w, hr)
		codes = append(codes, w.Code)
	}
	req.Equal([]int{http.StatusNoContent, http.StatusNoContent, http.StatusTooManyRequests}, codes)
}

func TestCORS(t *testing.T) {
	gin.SetMode(gin.TestMode)
	tests := []struct {
		name       string
		env        string
		allowed    []string
		origin     string
		method     string
		wantOrigin string
		wantStatus int
	}{
		{"dev allows any origin", "dev", nil, "http://elsewhere.test", http.MethodGet, "http://elsewhere.test", http.StatusOK},
		{"prod rejects foreign origin", "prod", nil, "http://elsewhere.test", http.MethodGet, "", http.StatusOK},
		{"prod rejects lookalike host", "prod", nil, "http://example.com.evil.test", http.MethodGet, "", http.StatusOK},
		{"prod allows listed origin", "prod", []string{"https://app.test/"}, "https://app.test", http.MethodGet, "https://app.test", http.StatusOK},
		{"prod allows same host", "prod", nil, "http://example.com", http.MethodGet, "http://example.com", http.StatusOK},
		{"preflight short-circuits", "dev", nil, "http://a.test", http.MethodOptions, "http://a.test", http.StatusNoContent},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := gin.New()
			r.Use(CORS(tt.env, tt.allowed))
			r.Any("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

			hr := httptest.NewRequest(tt.method, "http://example.com/x", nil)
			hr.Header.Set("Origin", tt.origin)
			w := httptest.NewRecorder()
			r.ServeHTTP(w, hr)

			require.Equal(t, tt.wantStatus, w.Code)
			require.Equal(t, tt.wantOrigin, w.Header().Get("Access-Control-Allow-Origin"))
		})
	}
}
