package middlewares

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yeremiapane/backoffice/utils"
)

func newEngine(mw ...gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(mw...)
	r.GET("/ping", func(c *gin.Context) {
		id, _ := c.Get(ContextUserID)
		c.JSON(http.StatusOK, gin.H{"user_id": id})
	})
	return r
}

func get(r http.Handler, remote string, header http.Header) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.RemoteAddr = remote
	for k, v := range header {
		req.Header[k] = v
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRateLimiterPerIP(t *testing.T) {
	rl := NewLoginRateLimiter(2)
	r := newEngine(rl.RateLimit())

	assert.Equal(t, http.StatusOK, get(r, "10.0.0.1:1000", nil).Code)
	assert.Equal(t, http.StatusOK, get(r, "10.0.0.1:1001", nil).Code)
	w := get(r, "10.0.0.1:1002", nil)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Contains(t, w.Body.String(), `"result":false`)

	assert.Equal(t, http.StatusOK, get(r, "10.0.0.2:1000", nil).Code)
}

func TestRateLimiterForgetsIdleVisitors(t *testing.T) {
	rl := NewLoginRateLimiter(1)
	now := time.Now()
	rl.now = func() time.Time { return now }

	assert.True(t, rl.allow("10.0.0.1"))
	assert.False(t, rl.allow("10.0.0.1"))

	now = now.Add(rl.idle + time.Second)
	assert.True(t, rl.allow("10.0.0.2"))
	rl.mu.Lock()
	_, kept := rl.visitors["10.0.0.1"]
	rl.mu.Unlock()
	assert.False(t, kept)
}

func TestOptionalAuth(t *testing.T) {
	tokens := utils.NewTokenIssuer("middleware-secret", time.Hour)
	r := newEngine(OptionalAuth(tokens))

	token, err := tokens.GenerateToken(42, "ana@example.com")
	require.NoError(t, err)

	w := get(r, "10.0.0.1:1000", http.Header{"Authorization": {"Bearer " + token}})
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"user_id":42}`, w.Body.String())

	w = get(r, "10.0.0.1:1000", http.Header{"Authorization": {"Bearer not-a-token"}})
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"user_id":null}`, w.Body.String())

	other := utils.NewTokenIssuer("other-secret", time.Hour)
	forged, err := other.GenerateToken(7, "x@example.com")
	require.NoError(t, err)
	w = get(r, "10.0.0.1:1000", http.Header{"Authorization": {"Bearer " + forged}})
	assert.JSONEq(t, `{"user_id":null}`, w.Body.String())

	disabled := newEngine(OptionalAuth(utils.NewTokenIssuer("", 0)))
	w = get(disabled, "10.0.0.1:1000", http.Header{"Authorization": {"Bearer " + token}})
	assert.JSONEq(t, `{"user_id":null}`, w.Body.String())
}

func TestCORSAllowList(t *testing.T) {
	r := newEngine(CORSMiddlewares([]string{"http://localhost:5173"}))

	w := get(r, "10.0.0.1:1000", http.Header{"Origin": {"http://localhost:5173"}})
	assert.Equal(t, "http://localhost:5173", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", w.Header().Get("Access-Control-Allow-Credentials"))

	w = get(r, "10.0.0.1:1000", http.Header{"Origin": {"http://evil.example"}})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))

	open := newEngine(CORSMiddlewares(nil))
	w = get(open, "10.0.0.1:1000", http.Header{"Origin": {"http://anything.example"}})
	assert.Equal(t, "http://anything.example", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestSecurityHeaders(t *testing.T) {
	r := newEngine(SecurityHeaders())
	w := get(r, "10.0.0.1:1000", nil)
	assert.Equal(t, "DENY", w.Header().Get("X-Frame-Options"))
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
	assert.Empty(t, w.Header().Get("Strict-Transport-Security"))
}
