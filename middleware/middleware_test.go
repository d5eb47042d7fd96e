package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/postgen/postgen/services"
	"github.com/postgen/postgen/utils"
)

func identityEngine(jwt *utils.JWTManager) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(Identity(jwt))
	r.GET("/whoami", func(ctx *gin.Context) {
		id := CurrentIdentity(ctx)
		ctx.JSON(http.StatusOK, gin.H{"user_id": id.UserID, "username": id.Username, "token": CurrentToken(ctx)})
	})
	return r
}

func whoami(t *testing.T, r *gin.Engine, mutate func(*http.Request)) map[string]interface{} {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	mutate(req)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func TestIdentity_BearerAndCookie(t *testing.T) {
	jwt := utils.NewJWTManager("secret", time.Hour)
	token, _, err := jwt.GenerateToken(7, "alice")
	require.NoError(t, err)
	r := identityEngine(jwt)

	body := whoami(t, r, func(req *http.Request) { req.Header.Set("Authorization", "Bearer "+token) })
	assert.Equal(t, float64(7), body["user_id"])
	assert.Equal(t, "alice", body["username"])
	assert.Equal(t, token, body["token"])

	body = whoami(t, r, func(req *http.Request) { req.AddCookie(&http.Cookie{Name: SessionCookie, Value: token}) })
	assert.Equal(t, float64(7), body["user_id"])
}

func TestIdentity_AnonymousOnBadOrRevokedToken(t *testing.T) {
	jwt := utils.NewJWTManager("secret", time.Hour)
	foreign, _, err := utils.NewJWTManager("other", time.Hour).GenerateToken(7, "alice")
	require.NoError(t, err)
	revoked, exp, err := jwt.GenerateToken(8, "bob")
	require.NoError(t, err)
	utils.BlacklistToken(context.Background(), revoked, exp)
	r := identityEngine(jwt)

	for _, header := range []string{"", "Bearer ", "Basic abc", "Bearer " + foreign, "Bearer " + revoked} {
		body := whoami(t, r, func(req *http.Request) {
			if header != "" {
				req.Header.Set("Authorization", header)
			}
		})
		assert.Equal(t, float64(0), body["user_id"], header)
	}
}

func TestCurrentIdentity_DefaultsToAnonymous(t *testing.T) {
	gin.SetMode(gin.TestMode)
	ctx, _ := gin.CreateTestContext(httptest.NewRecorder())
	assert.Equal(t, services.Anonymous, CurrentIdentity(ctx))
	assert.False(t, CurrentIdentity(ctx).Authenticated())
}

func TestIPRateLimiter(t *testing.T) {
	l := NewIPRateLimiter(4) // burst 2
	assert.True(t, l.Allow("1.1.1.1"))
	assert.True(t, l.Allow("1.1.1.1"))
	assert.False(t, l.Allow("1.1.1.1"))
	assert.True(t, l.Allow("2.2.2.2"))
}

func TestIPRateLimiter_Middleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.POST("/generate/", NewIPRateLimiter(1).Middleware(), func(ctx *gin.Context) {
		ctx.Status(http.StatusNoContent)
	})

	codes := make([]int, 0, 2)
	for i := 0; i < 2; i++ {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/generate/", nil))
		codes = append(codes, w.Code)
	}
	assert.Equal(t, []int{http.StatusNoContent, http.StatusTooManyRequests}, codes)
}

func TestIPRateLimiter_SweepsIdleBucketsPeriodically(t *testing.T) {
	t0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	clock := t0
	l := NewIPRateLimiter(60)
	l.now = func() time.Time { return clock }
	l.lastSweep = t0

	l.Allow("a") // idle after t0+5m

	// a has gone idle but the last sweep is recent, so nothing is scanned
	l.lastSweep = t0.Add(4 * time.Minute)
	clock = t0.Add(6 * time.Minute)
	l.Allow("b")
	assert.Len(t, l.limiters, 2)

	clock = t0.Add(9 * time.Minute)
	l.Allow("c")
	assert.Len(t, l.limiters, 2)
	assert.NotContains(t, l.limiters, "a")
	assert.Equal(t, clock, l.lastSweep)
}
