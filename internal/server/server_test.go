package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/sakif/todo-server/internal/config"
)

func testConfig() *config.Config {
	return &config.Config{
		Port:           "0",
		LogFormat:      "text",
		LogLevel:       "error",
		DBDriver:       config.DriverSQLite,
		DBPath:         ":memory:",
		HashWorkFactor: bcrypt.MinCost,
		JWT: config.JWTSettings{
			SecretKey:       "server-test-secret-at-least-32-bytes",
			Issuer:          "todo-server",
			Audience:        "todo-clients",
			ExpirationHours: 1,
		},
		LoginMaxAttempts:   3,
		LoginLockoutWindow: 15 * time.Minute,
	}
}

func newTestServer(t *testing.T, cfg *config.Config) *Server {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	srv, err := New(context.Background(), cfg, logger)
	require.NoError(t, err)
	t.Cleanup(func() { srv.Close() })
	return srv
}

func send(t *testing.T, h http.Handler, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(buf)
	}
	req := httptest.NewRequest(method, path, reader)
	req.RemoteAddr = "203.0.113.7:4242"
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestServer_EndToEnd(t *testing.T) {
	h := newTestServer(t, testConfig()).Handler()

	rec := send(t, h, http.MethodGet, "/healthz", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Todo API is running!", rec.Body.String())
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))

	creds := map[string]string{"name": "Alice", "email": "alice@example.com", "password": "password123"}

	rec = send(t, h, http.MethodPost, "/api/auth/register", "", creds)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.NotContains(t, rec.Body.String(), "password")

	rec = send(t, h, http.MethodPost, "/api/auth/register", "", creds)
	require.Equal(t, http.StatusConflict, rec.Code)

	rec = send(t, h, http.MethodPost, "/api/auth/login", "", map[string]string{
		"email": "alice@example.com", "password": "password123",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	var login struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &login))
	assert.Equal(t, 2, strings.Count(login.Token, "."))

	rec = send(t, h, http.MethodPost, "/api/todos", login.Token, map[string]string{"title": "Write tests"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = send(t, h, http.MethodGet, "/api/todos", login.Token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Write tests")

	rec = send(t, h, http.MethodGet, "/api/todos", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestServer_AuthRateLimit(t *testing.T) {
	cfg := testConfig()
	cfg.AuthRateLimit = 2
	h := newTestServer(t, cfg).Handler()

	body := map[string]string{"email": "nobody@example.com", "password": "password123"}
	for i := 0; i < 2; i++ {
		rec := send(t, h, http.MethodPost, "/api/auth/login", "", body)
		require.Equal(t, http.StatusUnauthorized, rec.Code)
	}

	rec := send(t, h, http.MethodPost, "/api/auth/login", "", body)
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.JSONEq(t, `{"error":"rate_limited","message":"too many requests, slow down"}`, rec.Body.String())

	// The health check is not part of the auth budget.
	assert.Equal(t, http.StatusOK, send(t, h, http.MethodGet, "/healthz", "", nil).Code)
}

func TestServer_LoginLockout(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := testConfig()
	cfg.RedisAddr = mr.Addr()
	srv := newTestServer(t, cfg)
	require.NotNil(t, srv.redis)
	h := srv.Handler()

	rec := send(t, h, http.MethodPost, "/api/auth/register", "", map[string]string{
		"name": "Alice", "email": "alice@example.com", "password": "password123",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	wrong := map[string]string{"email": "alice@example.com", "password": "wrong-password"}
	for i := 0; i < cfg.LoginMaxAttempts; i++ {
		require.Equal(t, http.StatusUnauthorized, send(t, h, http.MethodPost, "/api/auth/login", "", wrong).Code)
	}

	// Locked: even the right password is refused until the window passes.
	right := map[string]string{"email": "alice@example.com", "password": "password123"}
	rec = send(t, h, http.MethodPost, "/api/auth/login", "", right)
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Contains(t, rec.Body.String(), "too_many_attempts")

	mr.FastForward(cfg.LoginLockoutWindow)
	assert.Equal(t, http.StatusOK, send(t, h, http.MethodPost, "/api/auth/login", "", right).Code)
}

func TestServer_UnreachableRedisDisablesLockout(t *testing.T) {
	cfg := testConfig()
	cfg.RedisAddr = "127.0.0.1:1"
	srv := newTestServer(t, cfg)

	assert.Nil(t, srv.redis)
}

func TestNew_RejectsBadSettings(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	cfg := testConfig()
	cfg.HashWorkFactor = bcrypt.MaxCost + 1
	_, err := New(context.Background(), cfg, logger)
	assert.Error(t, err)

	cfg = testConfig()
	cfg.JWT.SecretKey = "too-short"
	_, err = New(context.Background(), cfg, logger)
	assert.Error(t, err)

	cfg = testConfig()
	cfg.DBDriver = "mysql"
	_, err = New(context.Background(), cfg, logger)
	assert.Error(t, err)
}
