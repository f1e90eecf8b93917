package auth

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Eva254-ke/veyo-backend/config"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func setAuthSettings(t *testing.T) {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("correct-horse"), bcrypt.MinCost)
	require.NoError(t, err)

	old := config.Current
	config.Current = &config.Settings{
		JWTSecret:             "test-jwt-secret",
		DashboardEmail:        "ops@veyo.example",
		DashboardPasswordHash: string(hash),
	}
	t.Cleanup(func() { config.Current = old })
}

func authRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.POST("/api/login", Login)
	protected := r.Group("/api")
	protected.Use(AuthMiddleware())
	protected.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"operator": c.MustGet("operator")})
	})
	return r
}

func login(t *testing.T, r *gin.Engine, email, password string) *httptest.ResponseRecorder {
	t.Helper()
	body, err := json.Marshal(map[string]string{"email": email, "password": password})
	require.NoError(t, err)
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/login", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	return w
}

func TestLoginIssuesUsableToken(t *testing.T) {
	setAuthSettings(t)
	r := authRouter()

	w := login(t, r, "ops@veyo.example", "correct-horse")
	require.Equal(t, http.StatusOK, w.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.NotEmpty(t, body["token"])

	req := httptest.NewRequest(http.MethodGet, "/api/ping", nil)
	req.Header.Set("Authorization", "Bearer "+body["token"])
	w2 := httptest.NewRecorder()
	r.ServeHTTP(w2, req)
	assert.Equal(t, http.StatusOK, w2.Code)
	assert.Contains(t, w2.Body.String(), "ops@veyo.example")
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	setAuthSettings(t)
	r := authRouter()

	assert.Equal(t, http.StatusUnauthorized, login(t, r, "ops@veyo.example", "wrong").Code)
	assert.Equal(t, http.StatusUnauthorized, login(t, r, "intruder@veyo.example", "correct-horse").Code)
}

func TestLoginUnconfigured(t *testing.T) {
	old := config.Current
	config.Current = &config.Settings{}
	t.Cleanup(func() { config.Current = old })

	assert.Equal(t, http.StatusServiceUnavailable, login(t, authRouter(), "a@b.c", "x").Code)
}

func TestAuthMiddlewareRejections(t *testing.T) {
	setAuthSettings(t)
	r := authRouter()

	cases := []struct {
		name   string
		header string
	}{
		{"missing header", ""},
		{"not bearer", "Basic abc123"},
		{"garbage token", "Bearer not-a-jwt"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/ping", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			assert.Equal(t, http.StatusUnauthorized, w.Code)
		})
	}
}
