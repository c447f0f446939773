package middleware

import (
	"clurb/internal/auth"
	"clurb/internal/domain"
	apiError "clurb/internal/errors"
	"context"
	goErrors "errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeUsers map[uint64]*domain.User

func (f fakeUsers) GetUserByID(_ context.Context, id uint64) (*domain.User, error) {
	u, ok := f[id]
	if !ok {
		return nil, goErrors.New("record not found")
	}
	return u, nil
}

func setupAuthRouter(users fakeUsers) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(ErrorHandler(zap.NewNop()))
	m := &Auth{UserService: users}
	router.GET("/me", m.AuthMiddleWare(), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"user_id": c.GetUint64("user_id")})
	})
	return router
}

func TestAuthMiddleWare(t *testing.T) {
	auth.SetSecret("middleware-secret")
	users := fakeUsers{
		1: {ID: 1, TokenVersion: 2, IsActive: true},
		2: {ID: 2, TokenVersion: 0, IsActive: false},
	}
	router := setupAuthRouter(users)

	valid, err := auth.GenerateAccessToken(1, 2)
	require.NoError(t, err)
	stale, err := auth.GenerateAccessToken(1, 1)
	require.NoError(t, err)
	refresh, err := auth.GenerateRefreshToken(1, 2)
	require.NoError(t, err)
	inactive, err := auth.GenerateAccessToken(2, 0)
	require.NoError(t, err)

	tests := []struct {
		name   string
		header string
		query  string
		want   int
	}{
		{"bearer header", "Bearer " + valid, "", http.StatusOK},
		{"query token", "", valid, http.StatusOK},
		{"missing", "", "", http.StatusUnauthorized},
		{"garbage", "Bearer nope", "", http.StatusUnauthorized},
		{"logged out version", "Bearer " + stale, "", http.StatusUnauthorized},
		{"refresh token", "Bearer " + refresh, "", http.StatusUnauthorized},
		{"inactive user", "Bearer " + inactive, "", http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			url := "/me"
			if tt.query != "" {
				url += "?token=" + tt.query
			}
			req := httptest.NewRequest("GET", url, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)
			assert.Equal(t, tt.want, w.Code)
		})
	}
}

func TestErrorHandler_Mapping(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(ErrorHandler(zap.NewNop()))
	router.GET("/forbidden", func(c *gin.Context) {
		c.Error(apiError.Forbidden("nope", nil))
	})
	router.GET("/boom", func(c *gin.Context) {
		c.Error(goErrors.New("db exploded"))
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", "/forbidden", nil))
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.JSONEq(t, `{"message":"nope"}`, w.Body.String())

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", "/boom", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), "db exploded")
}

func TestIPRateLimiter(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(ErrorHandler(zap.NewNop()))
	limiter := NewIPRateLimiter(0.001, 2)
	router.POST("/login", limiter.Middleware(), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})

	codes := make([]int, 0, 3)
	for range 3 {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest("POST", "/login", nil))
		codes = append(codes, w.Code)
	}

	assert.Equal(t, []int{http.StatusNoContent, http.StatusNoContent, http.StatusTooManyRequests}, codes)
}

func TestLogRequest_SetsRequestID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	lm := NewLoggingMiddleware(zap.NewNop())
	router.Use(lm.RecoverPanic(), lm.LogRequest())
	router.GET("/ok", func(c *gin.Context) { c.Status(http.StatusOK) })
	router.GET("/panic", func(c *gin.Context) { panic("boom") })

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", "/ok", nil))
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", "/panic", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}
