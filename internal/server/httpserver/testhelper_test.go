package httpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/ekodi-ai/gatekeeper/internal/core/domain"
	"github.com/ekodi-ai/gatekeeper/internal/core/service"
	"github.com/ekodi-ai/gatekeeper/internal/server/httpserver/handler"
	"github.com/ekodi-ai/gatekeeper/internal/storage/memory"
	"github.com/ekodi-ai/gatekeeper/internal/telemetry/metric"
)

var testSecret = []byte("0123456789abcdef0123456789abcdef")

type testOptions struct {
	backend       handler.Backend
	maxConcurrent int
	rateLimit     int
	corsOrigins   []string
}

type testServer struct {
	router    http.Handler
	auth      *service.AuthService
	gate      *service.AdmissionGate
	directory *memory.Directory
	metrics   *metric.Metrics
}

func newTestServer(t *testing.T, opts testOptions) *testServer {
	t.Helper()

	directory := memory.NewDirectory()
	sessions := service.NewSessionRegistry(memory.NewSessionStore())
	tokens, err := service.NewTokenAuthority(service.TokenConfig{
		Secret: testSecret,
		Issuer: "gatekeeper-test",
	}, sessions, memory.NewRevocationStore())
	require.NoError(t, err)

	login := service.NewLoginLimiter(memory.NewWindowStore(), 0, 0, nil)
	auth := service.NewAuthService(tokens, directory, login, service.AuthServiceConfig{
		BcryptCost: bcrypt.MinCost,
	})

	monitor := service.NewRequestMonitor(service.MonitorConfig{
		Thresholds: domain.Thresholds{MaxConcurrent: opts.maxConcurrent},
	})
	gate := service.NewAdmissionGate(monitor, service.AdmissionConfig{})
	metrics := metric.New()
	require.NoError(t, metrics.RegisterMonitor(monitor))

	h := handler.New(handler.Config{Auth: auth, Gate: gate, Backend: opts.backend})
	router := NewRouter(RouterConfig{
		Handler:     h,
		Auth:        auth,
		Gate:        gate,
		Limiter:     service.NewRateLimiter(memory.NewWindowStore(), nil),
		Quota:       service.NewDailyQuota(directory, time.UTC, nil),
		Metrics:     metrics,
		RateLimit:   opts.rateLimit,
		CORSOrigins: opts.corsOrigins,
	})

	return &testServer{
		router:    router,
		auth:      auth,
		gate:      gate,
		directory: directory,
		metrics:   metrics,
	}
}

func (s *testServer) addUser(t *testing.T, email string, role domain.Role, tier domain.Tier) *domain.User {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("correct horse"), bcrypt.MinCost)
	require.NoError(t, err)
	u := &domain.User{
		ID:           "user-" + email,
		Email:        email,
		Name:         email,
		PasswordHash: string(hash),
		Role:         role,
		Tier:         tier,
		IsStaff:      role.IsStaff(),
		IsActive:     true,
		CreatedAt:    time.Now().UTC(),
	}
	require.NoError(t, s.directory.CreateUser(context.Background(), u))
	return u
}

// login signs u in and returns its access and refresh tokens.
func (s *testServer) login(t *testing.T, email string) (string, string) {
	t.Helper()
	rec := s.do(t, http.MethodPost, "/auth/login", "", map[string]string{
		"email":    email,
		"password": "correct horse",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resp struct {
		Data handler.AuthResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp.Data.Tokens.AccessToken, resp.Data.Tokens.RefreshToken
}

func (s *testServer) do(t *testing.T, method, path, bearer string, body any) *httptest.ResponseRecorder {
	t.Helper()
	return s.doWith(t, method, path, body, func(r *http.Request) {
		if bearer != "" {
			r.Header.Set("Authorization", "Bearer "+bearer)
		}
	})
}

func (s *testServer) doWith(t *testing.T, method, path string, body any, mutate func(*http.Request)) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		rd = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, rd)
	req.Header.Set("Content-Type", "application/json")
	if mutate != nil {
		mutate(req)
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) handler.Response {
	t.Helper()
	var resp handler.Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp), rec.Body.String())
	return resp
}

func chatBody() map[string]string {
	return map[string]string{"message": "hello"}
}
