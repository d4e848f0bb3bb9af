package command

import (
	"net/http"
	"os"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ekodi-ai/gatekeeper/internal/cli/config"
	"github.com/ekodi-ai/gatekeeper/internal/cli/connection"
	"github.com/ekodi-ai/gatekeeper/internal/core/domain"
	"github.com/ekodi-ai/gatekeeper/internal/server/httpserver/handler"
)

func testPair() *domain.TokenPair {
	now := time.Now()
	return &domain.TokenPair{
		AccessToken:      "access-1",
		RefreshToken:     "refresh-1",
		TokenType:        "Bearer",
		AccessExpiresAt:  now.Add(time.Hour),
		RefreshExpiresAt: now.Add(7 * 24 * time.Hour),
	}
}

func TestApp_Commands(t *testing.T) {
	app := App()
	assert.Equal(t, "gatekeeper-cli", app.Name)

	names := make(map[string]bool)
	for _, cmd := range app.Commands {
		names[cmd.Name] = true
	}
	for _, want := range []string{"health", "status", "login", "refresh", "logout", "whoami", "keys", "admin"} {
		assert.True(t, names[want], "missing command %s", want)
	}
}

func TestHealth(t *testing.T) {
	srv := newMockServer(t)
	srv.handle("GET /health", func(w http.ResponseWriter, r *http.Request) {
		dataResponse(w, http.StatusOK, map[string]any{
			"status":  "ok",
			"version": map[string]string{"version": "1.2.3"},
		})
	})

	out, err := runCLI(t, srv.URL, tempConfigPath(t), "health")
	require.NoError(t, err)
	assert.Contains(t, out, "is ok")
	assert.Contains(t, out, "1.2.3")
}

func TestHealth_JSONOutput(t *testing.T) {
	srv := newMockServer(t)
	srv.handle("GET /health", func(w http.ResponseWriter, r *http.Request) {
		dataResponse(w, http.StatusOK, map[string]any{"status": "ok"})
	})

	out, err := runCLI(t, srv.URL, tempConfigPath(t), "-o", "json", "health")
	require.NoError(t, err)
	assert.Contains(t, out, `"status": "ok"`)
}

func TestStatus_Table(t *testing.T) {
	srv := newMockServer(t)
	srv.handle("GET /status", func(w http.ResponseWriter, r *http.Request) {
		dataResponse(w, http.StatusOK, domain.ServerSnapshot{
			Status:         domain.StatusWarning,
			ActiveRequests: 3,
			TotalRequests:  40,
			Overloaded:     true,
			Reason:         "cpu 95.0% >= 90.0%",
		})
	})

	out, err := runCLI(t, srv.URL, tempConfigPath(t), "status")
	require.NoError(t, err)
	assert.True(t, containsAll(out, "warning", "active_requests", "40", "overloaded", "cpu 95.0%"), out)
}

func TestStatus_ServerBusy(t *testing.T) {
	srv := newMockServer(t)
	srv.handle("GET /status", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "10")
		w.Header().Set("X-Error-Code", "GK-SYS-5030")
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"detail":"server is busy, please retry later","error":"server_busy","reason":"too many concurrent requests","retry_after":10}`))
	})

	_, err := runCLI(t, srv.URL, tempConfigPath(t), "status")
	require.Error(t, err)

	var apiErr *connection.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "GK-SYS-5030", apiErr.Code)
	assert.Equal(t, 10*time.Second, apiErr.RetryAfter)
	assert.Equal(t, "too many concurrent requests", apiErr.Details)
}

func TestStatus_RetriesWhileBusy(t *testing.T) {
	srv := newMockServer(t)
	var calls atomic.Int32
	srv.handle("GET /status", func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.Header().Set("Retry-After", "0")
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"detail":"server is busy, please retry later","error":"server_busy","reason":"too many concurrent requests","retry_after":0}`))
			return
		}
		dataResponse(w, http.StatusOK, domain.ServerSnapshot{Status: domain.StatusHealthy})
	})

	out, err := runCLI(t, srv.URL, tempConfigPath(t), "--retries", "2", "--verbose", "status")
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load())
	assert.Contains(t, out, "healthy")
	assert.Contains(t, out, "retrying request")
}

func TestInvalidOutputFormat(t *testing.T) {
	srv := newMockServer(t)
	_, err := runCLI(t, srv.URL, tempConfigPath(t), "-o", "xml", "status")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown output format")
}

func TestLogin_SavesTokens(t *testing.T) {
	srv := newMockServer(t)
	var got handler.LoginRequest
	srv.handle("POST /auth/login", func(w http.ResponseWriter, r *http.Request) {
		if err := decodeBody(r, &got); err != nil {
			errorResponse(w, http.StatusBadRequest, "GK-SYS-4000", "bad request")
			return
		}
		dataResponse(w, http.StatusOK, handler.AuthResponse{
			User:   &domain.User{ID: "u1", Email: got.Email, Role: domain.RoleUser, Tier: domain.TierFree},
			Tokens: testPair(),
		})
	})

	path := tempConfigPath(t)
	out, err := runCLI(t, srv.URL, path, "login", "--email", "ann@example.com", "--password", "hunter2hunter2")
	require.NoError(t, err)
	assert.Contains(t, out, "logged in as ann@example.com")
	assert.Equal(t, "hunter2hunter2", got.Password)

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, "access-1", cfg.AccessToken)
	assert.Equal(t, "refresh-1", cfg.RefreshToken)
	assert.Equal(t, "ann@example.com", cfg.Email)
	assert.Equal(t, srv.URL, cfg.Server)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestLogin_RequiresCredentials(t *testing.T) {
	srv := newMockServer(t)
	_, err := runCLI(t, srv.URL, tempConfigPath(t), "login", "--email", "ann@example.com")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--password")
}

func TestLogin_InvalidCredentials(t *testing.T) {
	srv := newMockServer(t)
	srv.handle("POST /auth/login", func(w http.ResponseWriter, r *http.Request) {
		errorResponse(w, http.StatusUnauthorized, "GK-AUTH-4017", "invalid email or password")
	})

	path := tempConfigPath(t)
	_, err := runCLI(t, srv.URL, path, "login", "-e", "ann@example.com", "-p", "wrong-password")
	require.Error(t, err)
	assert.True(t, connection.IsStatus(err, http.StatusUnauthorized))

	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr), "failed login must not write state")
}

func TestWhoami_UsesSavedToken(t *testing.T) {
	srv := newMockServer(t)
	srv.handle("GET /auth/me", func(w http.ResponseWriter, r *http.Request) {
		dataResponse(w, http.StatusOK, handler.MeResponse{
			Identity:       &domain.Identity{UserID: "u1", Email: "ann@example.com", Role: domain.RoleAdmin, IsStaff: true},
			Limits:         domain.StaffLimits,
			Permissions:    domain.PermissionSet{"users.read", "stats.read"},
			ActiveSessions: 2,
		})
	})

	path := tempConfigPath(t)
	cfg := config.Default()
	cfg.AccessToken = "saved-token"
	require.NoError(t, config.Save(cfg, path))

	out, err := runCLI(t, srv.URL, path, "whoami")
	require.NoError(t, err)
	assert.Equal(t, "Bearer saved-token", srv.lastAuthorization())
	assert.True(t, containsAll(out, "ann@example.com", "admin", "unlimited", "users.read,stats.read"), out)
}

func TestWhoami_TokenFlagOverrides(t *testing.T) {
	srv := newMockServer(t)
	srv.handle("GET /auth/me", func(w http.ResponseWriter, r *http.Request) {
		dataResponse(w, http.StatusOK, handler.MeResponse{Identity: &domain.Identity{UserID: "u1"}})
	})

	path := tempConfigPath(t)
	cfg := config.Default()
	cfg.AccessToken = "saved-token"
	require.NoError(t, config.Save(cfg, path))

	_, err := runCLI(t, srv.URL, path, "--token", "flag-token", "whoami")
	require.NoError(t, err)
	assert.Equal(t, "Bearer flag-token", srv.lastAuthorization())
}

func TestRefresh_RotatesTokens(t *testing.T) {
	srv := newMockServer(t)
	var got handler.RefreshRequest
	srv.handle("POST /auth/refresh", func(w http.ResponseWriter, r *http.Request) {
		_ = decodeBody(r, &got)
		pair := testPair()
		pair.AccessToken = "access-2"
		pair.RefreshToken = "refresh-2"
		dataResponse(w, http.StatusOK, handler.AuthResponse{Tokens: pair})
	})

	path := tempConfigPath(t)
	cfg := config.Default()
	cfg.AccessToken = "access-1"
	cfg.RefreshToken = "refresh-1"
	require.NoError(t, config.Save(cfg, path))

	out, err := runCLI(t, srv.URL, path, "refresh")
	require.NoError(t, err)
	assert.Contains(t, out, "tokens refreshed")
	assert.Equal(t, "refresh-1", got.RefreshToken)

	cfg, err = config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, "access-2", cfg.AccessToken)
	assert.Equal(t, "refresh-2", cfg.RefreshToken)
}

func TestRefresh_RevokedClearsSession(t *testing.T) {
	srv := newMockServer(t)
	srv.handle("POST /auth/refresh", func(w http.ResponseWriter, r *http.Request) {
		errorResponse(w, http.StatusUnauthorized, "GK-AUTH-4013", "token revoked")
	})

	path := tempConfigPath(t)
	cfg := config.Default()
	cfg.AccessToken = "access-1"
	cfg.RefreshToken = "refresh-1"
	require.NoError(t, config.Save(cfg, path))

	_, err := runCLI(t, srv.URL, path, "refresh")
	require.Error(t, err)

	cfg, err = config.Load(path)
	require.NoError(t, err)
	assert.Empty(t, cfg.AccessToken)
	assert.Empty(t, cfg.RefreshToken)
}

func TestRefresh_NotLoggedIn(t *testing.T) {
	srv := newMockServer(t)
	_, err := runCLI(t, srv.URL, tempConfigPath(t), "refresh")
	assert.ErrorIs(t, err, errNotLoggedIn)
}

func TestLogout_ClearsSession(t *testing.T) {
	srv := newMockServer(t)
	var got handler.LogoutRequest
	srv.handle("POST /auth/logout", func(w http.ResponseWriter, r *http.Request) {
		_ = decodeBody(r, &got)
		dataResponse(w, http.StatusOK, map[string]bool{"logged_out": true})
	})

	path := tempConfigPath(t)
	cfg := config.Default()
	cfg.Email = "ann@example.com"
	cfg.AccessToken = "access-1"
	cfg.RefreshToken = "refresh-1"
	require.NoError(t, config.Save(cfg, path))

	out, err := runCLI(t, srv.URL, path, "logout")
	require.NoError(t, err)
	assert.Contains(t, out, "logged out")
	assert.Equal(t, "Bearer access-1", srv.lastAuthorization())
	assert.Equal(t, "refresh-1", got.RefreshToken)

	cfg, err = config.Load(path)
	require.NoError(t, err)
	assert.Empty(t, cfg.AccessToken)
	assert.Empty(t, cfg.Email)
}

func TestLogout_ExpiredSessionStillClears(t *testing.T) {
	srv := newMockServer(t)
	srv.handle("POST /auth/logout", func(w http.ResponseWriter, r *http.Request) {
		errorResponse(w, http.StatusUnauthorized, "GK-AUTH-4012", "token expired")
	})

	path := tempConfigPath(t)
	cfg := config.Default()
	cfg.AccessToken = "access-1"
	require.NoError(t, config.Save(cfg, path))

	_, err := runCLI(t, srv.URL, path, "logout")
	require.NoError(t, err)

	cfg, err = config.Load(path)
	require.NoError(t, err)
	assert.Empty(t, cfg.AccessToken)
}

func TestKeys_List(t *testing.T) {
	srv := newMockServer(t)
	srv.handle("GET /v1/keys", func(w http.ResponseWriter, r *http.Request) {
		dataResponse(w, http.StatusOK, []*domain.APIKey{
			{ID: "k1", Name: "ci", KeyPrefix: "gk_abcd", Active: true, UsageCount: 7, CreatedAt: time.Now()},
		})
	})

	out, err := runCLI(t, srv.URL, tempConfigPath(t), "keys", "list")
	require.NoError(t, err)
	assert.True(t, containsAll(out, "ID", "PREFIX", "k1", "ci", "gk_abcd", "7"), out)
}

func TestKeys_CreateShowsSecretOnce(t *testing.T) {
	srv := newMockServer(t)
	var got handler.CreateAPIKeyRequest
	srv.handle("POST /v1/keys", func(w http.ResponseWriter, r *http.Request) {
		_ = decodeBody(r, &got)
		dataResponse(w, http.StatusCreated, handler.CreateAPIKeyResponse{
			APIKey: &domain.APIKey{ID: "k2", Name: got.Name, KeyPrefix: "gk_wxyz"},
			Secret: "gk_wxyz-secret",
		})
	})

	out, err := runCLI(t, srv.URL, tempConfigPath(t), "keys", "create", "--name", "deploy")
	require.NoError(t, err)
	assert.Equal(t, "deploy", got.Name)
	assert.True(t, containsAll(out, "k2", "gk_wxyz-secret", "cannot be shown again"), out)
}

func TestKeys_Revoke(t *testing.T) {
	srv := newMockServer(t)
	called := false
	srv.handle("DELETE /v1/keys/k1", func(w http.ResponseWriter, r *http.Request) {
		called = true
		dataResponse(w, http.StatusOK, map[string]bool{"revoked": true})
	})

	out, err := runCLI(t, srv.URL, tempConfigPath(t), "keys", "revoke", "k1")
	require.NoError(t, err)
	assert.True(t, called)
	assert.Contains(t, out, "revoked key k1")

	_, err = runCLI(t, srv.URL, tempConfigPath(t), "keys", "revoke")
	require.Error(t, err)
}

func TestKeys_RevokeUnknown(t *testing.T) {
	srv := newMockServer(t)
	srv.handle("DELETE /v1/keys/missing", func(w http.ResponseWriter, r *http.Request) {
		errorResponse(w, http.StatusNotFound, "GK-USER-4041", "api key not found")
	})

	_, err := runCLI(t, srv.URL, tempConfigPath(t), "keys", "revoke", "missing")
	var apiErr *connection.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "GK-USER-4041", apiErr.Code)
}

func TestAdmin_Server(t *testing.T) {
	srv := newMockServer(t)
	srv.handle("GET /admin/server", func(w http.ResponseWriter, r *http.Request) {
		dataResponse(w, http.StatusOK, handler.ServerStatusResponse{
			Snapshot:   domain.ServerSnapshot{Status: domain.StatusHealthy},
			Thresholds: domain.Thresholds{MaxConcurrent: 20, CPUPercent: 90, MemoryPercent: 90},
			Sessions:   handler.SessionSummary{Users: 2, Total: 3},
		})
	})

	out, err := runCLI(t, srv.URL, tempConfigPath(t), "admin", "server")
	require.NoError(t, err)
	assert.True(t, containsAll(out, "healthy", "max_concurrent", "20", "session_total", "3"), out)
}

func TestAdmin_Sessions(t *testing.T) {
	srv := newMockServer(t)
	srv.handle("GET /admin/sessions", func(w http.ResponseWriter, r *http.Request) {
		dataResponse(w, http.StatusOK, handler.SessionsResponse{
			SessionSummary: handler.SessionSummary{Users: 2, Total: 3},
			Counts:         map[string]int{"u2": 1, "u1": 2},
		})
	})

	out, err := runCLI(t, srv.URL, tempConfigPath(t), "admin", "sessions")
	require.NoError(t, err)
	assert.Less(t, strings.Index(out, "u1"), strings.Index(out, "u2"), "rows are sorted by user id")
}

func TestAdmin_ForceLogout(t *testing.T) {
	srv := newMockServer(t)
	srv.handle("POST /admin/users/u1/force-logout", func(w http.ResponseWriter, r *http.Request) {
		dataResponse(w, http.StatusOK, handler.ForceLogoutResponse{UserID: "u1", SessionsCleared: 4})
	})

	out, err := runCLI(t, srv.URL, tempConfigPath(t), "admin", "force-logout", "u1")
	require.NoError(t, err)
	assert.Contains(t, out, "4 sessions cleared")
}

func TestAdmin_Forbidden(t *testing.T) {
	srv := newMockServer(t)
	srv.handle("GET /admin/sessions", func(w http.ResponseWriter, r *http.Request) {
		errorResponse(w, http.StatusForbidden, "GK-AUTH-4030", "permission denied")
	})

	_, err := runCLI(t, srv.URL, tempConfigPath(t), "admin", "sessions")
	assert.True(t, connection.IsStatus(err, http.StatusForbidden))
}
