package httpserver

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ekodi-ai/gatekeeper/internal/core/domain"
	"github.com/ekodi-ai/gatekeeper/internal/server/httpserver/handler"
)

type blockingBackend struct {
	entered chan struct{}
	release chan struct{}
}

func (b *blockingBackend) Complete(_ context.Context, _ *domain.Identity, req handler.InferenceRequest) (*handler.InferenceResponse, error) {
	b.entered <- struct{}{}
	<-b.release
	return &handler.InferenceResponse{Kind: req.Kind, Reply: "done"}, nil
}

type panicBackend struct{}

func (panicBackend) Complete(context.Context, *domain.Identity, handler.InferenceRequest) (*handler.InferenceResponse, error) {
	panic("backend exploded")
}

func TestHealthAndStatus(t *testing.T) {
	s := newTestServer(t, testOptions{})

	rec := s.do(t, http.MethodGet, "/health", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	reqID := rec.Header().Get(HeaderRequestID)
	assert.NotEmpty(t, reqID)
	assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Empty(t, rec.Header().Get(HeaderServerStatus), "passthrough responses are not stamped")

	resp := decodeEnvelope(t, rec)
	assert.Equal(t, "OK", resp.Code)
	assert.Equal(t, reqID, resp.RequestID)

	rec = s.doWith(t, http.MethodGet, "/status", nil, func(r *http.Request) {
		r.Header.Set(HeaderRequestID, "client-chosen-id")
	})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "client-chosen-id", rec.Header().Get(HeaderRequestID))
	var status struct {
		Data domain.ServerSnapshot `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.Equal(t, domain.StatusHealthy, status.Data.Status)
}

func TestAdmission_MaxConcurrentScenario(t *testing.T) {
	backend := &blockingBackend{entered: make(chan struct{}, 2), release: make(chan struct{})}
	s := newTestServer(t, testOptions{backend: backend, maxConcurrent: 2})
	s.addUser(t, "pro@example.com", domain.RoleUser, domain.TierPro)
	access, _ := s.login(t, "pro@example.com")

	srv := httptest.NewServer(s.router)
	t.Cleanup(srv.Close)
	var once sync.Once
	release := func() { once.Do(func() { close(backend.release) }) }
	t.Cleanup(release)

	post := func() (*http.Response, error) {
		req, err := http.NewRequest(http.MethodPost, srv.URL+"/chat", strings.NewReader(`{"message":"hi"}`))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", "Bearer "+access)
		return srv.Client().Do(req)
	}

	var wg sync.WaitGroup
	codes := make(chan int, 2)
	for range 2 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			resp, err := post()
			if err != nil {
				codes <- 0
				return
			}
			resp.Body.Close()
			codes <- resp.StatusCode
		}()
	}
	<-backend.entered
	<-backend.entered

	resp, err := post()
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assert.Equal(t, "10", resp.Header.Get("Retry-After"))
	assert.Equal(t, "busy", resp.Header.Get(HeaderServerStatus))

	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "server_busy", body["error"])
	assert.Equal(t, "Too many concurrent requests (2/2)", body["reason"])
	assert.Equal(t, 10.0, body["retry_after"])
	assert.Equal(t, "Server is currently busy. Please try again in a moment.", body["detail"])

	health := s.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, health.Code)

	release()
	wg.Wait()
	close(codes)
	for c := range codes {
		assert.Equal(t, http.StatusOK, c)
	}

	snap := s.gate.Monitor().Snapshot()
	assert.EqualValues(t, 1, snap.TotalRejected)
	assert.EqualValues(t, 2, snap.TotalRequests)
	assert.Zero(t, snap.ActiveRequests)
}

func TestAuthFlow(t *testing.T) {
	s := newTestServer(t, testOptions{})

	rec := s.do(t, http.MethodPost, "/auth/register", "", map[string]string{
		"email":    "New@Example.com",
		"name":     "New User",
		"password": "s3cret-password",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var reg struct {
		Data handler.AuthResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &reg))
	assert.Equal(t, "new@example.com", reg.Data.User.Email)
	access, refresh := reg.Data.Tokens.AccessToken, reg.Data.Tokens.RefreshToken

	rec = s.do(t, http.MethodGet, "/auth/me", access, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var me struct {
		Data handler.MeResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &me))
	assert.Equal(t, domain.TierFree, me.Data.Identity.Tier)
	assert.Equal(t, 10, me.Data.Limits.DailyPrompts)
	assert.Equal(t, 2, me.Data.ActiveSessions, "access and refresh each hold a session")

	rec = s.do(t, http.MethodPost, "/auth/refresh", "", map[string]string{"refresh_token": refresh})
	require.Equal(t, http.StatusOK, rec.Code)

	// A refresh token works once.
	rec = s.do(t, http.MethodPost, "/auth/refresh", "", map[string]string{"refresh_token": refresh})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, domain.ErrTokenRevoked.Code, rec.Header().Get("X-Error-Code"))

	rec = s.do(t, http.MethodPost, "/auth/logout", access, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = s.do(t, http.MethodGet, "/auth/me", access, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, domain.ErrTokenRevoked.Code, decodeEnvelope(t, rec).Code)
	assert.Contains(t, rec.Header().Get("WWW-Authenticate"), "Bearer")
}

func TestRegister_ValidationAndConflict(t *testing.T) {
	s := newTestServer(t, testOptions{})

	rec := s.do(t, http.MethodPost, "/auth/register", "", map[string]string{
		"email":    "not-an-email",
		"name":     "x",
		"password": "short",
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	resp := decodeEnvelope(t, rec)
	assert.Equal(t, domain.ErrBadRequest.Code, resp.Code)
	assert.Contains(t, resp.Details, "email: failed email")
	assert.Contains(t, resp.Details, "password: failed min")

	rec = s.do(t, http.MethodPost, "/auth/register", "", map[string]any{"email": 42})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	s.addUser(t, "taken@example.com", domain.RoleUser, domain.TierFree)
	rec = s.do(t, http.MethodPost, "/auth/register", "", map[string]string{
		"email":    "taken@example.com",
		"name":     "Again",
		"password": "long-enough-password",
	})
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestLogin_RateLimitedPerIP(t *testing.T) {
	s := newTestServer(t, testOptions{})
	s.addUser(t, "u@example.com", domain.RoleUser, domain.TierFree)

	wrong := map[string]string{"email": "u@example.com", "password": "wrong password"}
	for range 5 {
		rec := s.do(t, http.MethodPost, "/auth/login", "", wrong)
		require.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, "invalid email or password", decodeEnvelope(t, rec).Message)
	}

	rec := s.do(t, http.MethodPost, "/auth/login", "", map[string]string{
		"email": "u@example.com", "password": "correct horse",
	})
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, domain.ErrLoginRateLimited.Code, rec.Header().Get("X-Error-Code"))
	assert.Equal(t, "900", rec.Header().Get("Retry-After"))
	assert.Equal(t, "5", rec.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "0", rec.Header().Get("X-RateLimit-Remaining"))

	rec = s.doWith(t, http.MethodPost, "/auth/login", map[string]string{
		"email": "u@example.com", "password": "correct horse",
	}, func(r *http.Request) { r.RemoteAddr = "198.51.100.7:5555" })
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestChat_SlidingWindow(t *testing.T) {
	s := newTestServer(t, testOptions{rateLimit: 2})
	s.addUser(t, "pro@example.com", domain.RoleUser, domain.TierPro)
	access, _ := s.login(t, "pro@example.com")

	for _, remaining := range []string{"1", "0"} {
		rec := s.do(t, http.MethodPost, "/chat", access, chatBody())
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.Equal(t, remaining, rec.Header().Get("X-RateLimit-Remaining"))
		assert.Equal(t, string(domain.StatusHealthy), rec.Header().Get(HeaderServerStatus))
		assert.Empty(t, rec.Header().Get("X-Quota-Limit"), "pro tier is unlimited")
	}

	rec := s.do(t, http.MethodPost, "/chat", access, chatBody())
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "60", rec.Header().Get("Retry-After"))
	assert.Equal(t, "2", rec.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "0", rec.Header().Get("X-RateLimit-Remaining"))

	// Each path has its own window.
	rec = s.do(t, http.MethodPost, "/tts", access, chatBody())
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestChat_DailyQuota(t *testing.T) {
	s := newTestServer(t, testOptions{rateLimit: 100})
	s.addUser(t, "free@example.com", domain.RoleUser, domain.TierFree)
	access, _ := s.login(t, "free@example.com")

	for i := range 10 {
		rec := s.do(t, http.MethodPost, "/chat", access, chatBody())
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var resp struct {
			Data handler.InferenceResponse `json:"data"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, "hello", resp.Data.Reply)
		require.NotNil(t, resp.Data.Quota)
		assert.Equal(t, 9-i, resp.Data.Quota.Remaining)
	}

	rec := s.do(t, http.MethodPost, "/voice-chat", access, chatBody())
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	resp := decodeEnvelope(t, rec)
	assert.Equal(t, domain.ErrQuotaExceeded.Code, resp.Code)
	assert.Equal(t, "limit of 10 reached, upgrade your plan for more", resp.Details)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
	assert.Equal(t, "10", rec.Header().Get("X-RateLimit-Limit"))
}

func TestChat_Unauthenticated(t *testing.T) {
	s := newTestServer(t, testOptions{})

	rec := s.do(t, http.MethodPost, "/chat", "", chatBody())
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	resp := decodeEnvelope(t, rec)
	assert.Equal(t, domain.ErrTokenMissing.Code, resp.Code)
	assert.Nil(t, resp.Details)

	rec = s.do(t, http.MethodPost, "/chat", "not-a-jwt", chatBody())
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	resp = decodeEnvelope(t, rec)
	assert.Equal(t, domain.ErrTokenInvalid.Code, resp.Code)
	assert.Nil(t, resp.Details)
}

func TestAdmin_Permissions(t *testing.T) {
	s := newTestServer(t, testOptions{})
	s.addUser(t, "user@example.com", domain.RoleUser, domain.TierFree)
	s.addUser(t, "support@example.com", domain.RoleSupport, domain.TierFree)
	s.addUser(t, "admin@example.com", domain.RoleAdmin, domain.TierFree)
	userTok, _ := s.login(t, "user@example.com")
	supportTok, _ := s.login(t, "support@example.com")
	adminTok, _ := s.login(t, "admin@example.com")

	rec := s.do(t, http.MethodGet, "/admin/server", userTok, nil)
	require.Equal(t, http.StatusForbidden, rec.Code)
	denied := decodeEnvelope(t, rec)
	assert.Equal(t, "permission denied", denied.Message)
	assert.Nil(t, denied.Details)

	rec = s.do(t, http.MethodGet, "/admin/server", supportTok, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var server struct {
		Data handler.ServerStatusResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &server))
	assert.Equal(t, 3, server.Data.Sessions.Users)
	assert.Equal(t, 20, server.Data.Thresholds.MaxConcurrent)

	rec = s.do(t, http.MethodGet, "/admin/sessions", supportTok, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var sessions struct {
		Data handler.SessionsResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &sessions))
	assert.Equal(t, 2, sessions.Data.Counts["user-user@example.com"])

	rec = s.do(t, http.MethodPost, "/admin/users/user-user@example.com/force-logout", supportTok, nil)
	require.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, denied.Message, decodeEnvelope(t, rec).Message)

	rec = s.do(t, http.MethodPost, "/admin/users/user-user@example.com/force-logout", adminTok, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var fl struct {
		Data handler.ForceLogoutResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &fl))
	assert.Equal(t, 2, fl.Data.SessionsCleared)

	rec = s.do(t, http.MethodGet, "/auth/me", userTok, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAPIKeys(t *testing.T) {
	s := newTestServer(t, testOptions{})
	s.addUser(t, "std@example.com", domain.RoleUser, domain.TierStandard)
	access, _ := s.login(t, "std@example.com")

	rec := s.do(t, http.MethodPost, "/v1/keys", access, map[string]string{"name": "ci"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var created struct {
		Data handler.CreateAPIKeyResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.True(t, strings.HasPrefix(created.Data.Secret, domain.APIKeyPrefix))
	assert.Equal(t, "ci", created.Data.APIKey.Name)

	rec = s.do(t, http.MethodPost, "/v1/keys", access, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code, "standard tier allows one key")

	rec = s.do(t, http.MethodGet, "/v1/keys", access, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var list struct {
		Data []domain.APIKey `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list.Data, 1)

	withKey := func(key string) func(*http.Request) {
		return func(r *http.Request) { r.Header.Set(HeaderAPIKey, key) }
	}
	rec = s.doWith(t, http.MethodPost, "/v1/chat", chatBody(), withKey(created.Data.Secret))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "60", rec.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "99", rec.Header().Get("X-Quota-Remaining"))

	rec = s.doWith(t, http.MethodPost, "/v1/chat", chatBody(), nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, domain.ErrAPIKeyInvalid.Code, rec.Header().Get("X-Error-Code"))

	rec = s.do(t, http.MethodDelete, "/v1/keys/"+created.Data.APIKey.ID, access, nil)
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = s.doWith(t, http.MethodPost, "/v1/chat", chatBody(), withKey(created.Data.Secret))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = s.do(t, http.MethodDelete, "/v1/keys/unknown", access, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRecover_PanicCountsAsError(t *testing.T) {
	s := newTestServer(t, testOptions{backend: panicBackend{}})
	s.addUser(t, "pro@example.com", domain.RoleUser, domain.TierPro)
	access, _ := s.login(t, "pro@example.com")

	rec := s.do(t, http.MethodPost, "/chat", access, chatBody())
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	resp := decodeEnvelope(t, rec)
	assert.Equal(t, domain.ErrInternalServer.Code, resp.Code)
	assert.NotContains(t, rec.Body.String(), "exploded")

	snap := s.gate.Monitor().Snapshot()
	assert.EqualValues(t, 1, snap.TotalErrors)
	assert.Zero(t, snap.ActiveRequests)
}

func TestRouting_NotFoundAndMethod(t *testing.T) {
	s := newTestServer(t, testOptions{})

	rec := s.do(t, http.MethodGet, "/nope", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, domain.ErrRouteNotFound.Code, decodeEnvelope(t, rec).Code)

	rec = s.do(t, http.MethodDelete, "/health", "", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestCORS_Preflight(t *testing.T) {
	s := newTestServer(t, testOptions{corsOrigins: []string{"https://app.example.com"}})

	rec := s.doWith(t, http.MethodOptions, "/chat", nil, func(r *http.Request) {
		r.Header.Set("Origin", "https://app.example.com")
		r.Header.Set("Access-Control-Request-Method", http.MethodPost)
	})
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "https://app.example.com", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, rec.Header().Get("Access-Control-Allow-Headers"), "X-API-Key")

	rec = s.doWith(t, http.MethodGet, "/health", nil, func(r *http.Request) {
		r.Header.Set("Origin", "https://evil.example.com")
	})
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestMetricsEndpoint(t *testing.T) {
	s := newTestServer(t, testOptions{})
	s.do(t, http.MethodGet, "/nope", "", nil)

	rec := s.do(t, http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "gatekeeper_http_requests_total")
	assert.Contains(t, body, `gatekeeper_denials_total{code="GK-SYS-4040"} 1`)
	assert.Contains(t, body, "gatekeeper_monitor_active_requests")
}
