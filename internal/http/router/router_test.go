package router

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	apphttp "crm_backend/internal/http"
	"crm_backend/platform/logger"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

type routerConfig struct{}

func (routerConfig) GetHTTPAddr() string        { return ":0" }
func (routerConfig) GetCORSAllowAll() bool      { return false }
func (routerConfig) GetCORSOrigins() []string   { return []string{"https://app.example.com"} }
func (routerConfig) GetCORSAllowCreds() bool    { return true }
func (routerConfig) GetJWTAccessSecret() string { return "secret" }

type pinger struct{ err error }

func (p pinger) Ping(context.Context) error { return p.err }

type echoModule struct{}

func (echoModule) Name() string { return "echo" }

func (echoModule) RegisterRoutes(rc *apphttp.RouterContext) {
	rc.V1.GET("/open", func(c *gin.Context) { c.Status(http.StatusNoContent) })
	rc.Protected.GET("/closed", func(c *gin.Context) { c.Status(http.StatusNoContent) })
}

func newEngine(health apphttp.HealthChecker) *gin.Engine {
	gin.SetMode(gin.TestMode)
	return New(&apphttp.App{
		Config:  routerConfig{},
		Logger:  logger.NewWithWriter("test", io.Discard),
		Health:  health,
		Modules: []apphttp.Module{echoModule{}},
	})
}

func serve(engine *gin.Engine, method, path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, httptest.NewRequest(method, path, nil))
	return rec
}

func TestHealth(t *testing.T) {
	assert.Equal(t, http.StatusOK, serve(newEngine(pinger{}), http.MethodGet, "/api/health").Code)
	assert.Equal(t, http.StatusServiceUnavailable,
		serve(newEngine(pinger{err: errors.New("down")}), http.MethodGet, "/api/health").Code)
}

func TestModuleGroups(t *testing.T) {
	engine := newEngine(pinger{})

	open := serve(engine, http.MethodGet, "/api/v1/open")
	assert.Equal(t, http.StatusNoContent, open.Code)
	assert.NotEmpty(t, open.Header().Get("X-Request-ID"))
	assert.Equal(t, "nosniff", open.Header().Get("X-Content-Type-Options"))

	assert.Equal(t, http.StatusUnauthorized, serve(engine, http.MethodGet, "/api/v1/closed").Code)
}

func TestCORSPreflight(t *testing.T) {
	engine := newEngine(pinger{})

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/open", nil)
	req.Header.Set("Origin", "https://app.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPut)
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)

	assert.Equal(t, "https://app.example.com", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", rec.Header().Get("Access-Control-Allow-Credentials"))
}
