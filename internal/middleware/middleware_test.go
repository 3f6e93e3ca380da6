package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"swadhan-eats/pkg/auth"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupRouter(t *testing.T) (*gin.Engine, *auth.JWTManager) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	jwtManager := auth.NewJWTManager("middleware-secret", time.Hour, 24*time.Hour)
	authMw := NewAuthMiddleware(jwtManager)

	r := gin.New()
	r.Use(RequestIDMiddleware(), RecoveryMiddleware())
	r.GET("/me", authMw.AuthRequired(), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"user_id": GetUserID(c), "role": GetUserRole(c), "restaurant_id": GetRestaurantID(c)})
	})
	r.GET("/kitchen", authMw.AuthRequired(), authMw.FulfilmentRequired(), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})
	r.GET("/panic", func(c *gin.Context) { panic("boom") })
	return r, jwtManager
}

func get(r *gin.Engine, path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if token != "" {
		req.Header.Set("Authorization", token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAuthRequired(t *testing.T) {
	r, jwtManager := setupRouter(t)
	pair, err := jwtManager.GenerateTokenPair("u1", "", "customer", "a@b.in")
	require.NoError(t, err)

	assert.Equal(t, http.StatusUnauthorized, get(r, "/me", "").Code)
	assert.Equal(t, http.StatusUnauthorized, get(r, "/me", pair.AccessToken).Code)
	assert.Equal(t, http.StatusUnauthorized, get(r, "/me", "Bearer garbage").Code)
	assert.Equal(t, http.StatusUnauthorized, get(r, "/me", "Bearer "+pair.RefreshToken).Code)

	w := get(r, "/me", "Bearer "+pair.AccessToken)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"user_id":"u1"`)
	assert.NotEmpty(t, w.Header().Get(RequestIDHeader))
}

func TestFulfilmentRequired(t *testing.T) {
	r, jwtManager := setupRouter(t)

	customer, err := jwtManager.GenerateTokenPair("u1", "", "customer", "a@b.in")
	require.NoError(t, err)
	staff, err := jwtManager.GenerateTokenPair("s1", "R1", "restaurant_staff", "s@b.in")
	require.NoError(t, err)

	assert.Equal(t, http.StatusForbidden, get(r, "/kitchen", "Bearer "+customer.AccessToken).Code)
	assert.Equal(t, http.StatusNoContent, get(r, "/kitchen", "Bearer "+staff.AccessToken).Code)
}

func TestRequestIDIsKept(t *testing.T) {
	r, _ := setupRouter(t)
	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set(RequestIDHeader, "req-123")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, "req-123", w.Header().Get(RequestIDHeader))
}

func TestRecoveryMiddleware(t *testing.T) {
	r, _ := setupRouter(t)
	w := get(r, "/panic", "")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "Internal server error")
}
