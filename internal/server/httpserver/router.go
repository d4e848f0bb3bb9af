package httpserver

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/ekodi-ai/gatekeeper/internal/core/domain"
	"github.com/ekodi-ai/gatekeeper/internal/core/service"
	"github.com/ekodi-ai/gatekeeper/internal/server/httpserver/handler"
	"github.com/ekodi-ai/gatekeeper/internal/telemetry/metric"
)

// RouterConfig wires the router to its services.
type RouterConfig struct {
	Handler *handler.Handler
	Auth    *service.AuthService
	Gate    *service.AdmissionGate
	Limiter *service.RateLimiter
	Quota   *service.DailyQuota
	Metrics *metric.Metrics // nil disables /metrics
	Logger  *slog.Logger
	Clock   func() time.Time

	// RateLimit and RateWindow bound each client per inference route.
	RateLimit  int
	RateWindow time.Duration

	// GlobalRateLimit is a per-IP ceiling per minute across all routes;
	// zero disables it.
	GlobalRateLimit int

	// TrustProxy takes the client address from X-Forwarded-For / X-Real-IP.
	TrustProxy bool

	CORSOrigins []string
	Development bool
}

// NewRouter builds the HTTP handler for every route.
func NewRouter(cfg RouterConfig) http.Handler {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.RateLimit <= 0 {
		cfg.RateLimit = service.DefaultRateLimit
	}
	if cfg.RateWindow <= 0 {
		cfg.RateWindow = service.DefaultRateWindow
	}
	h := cfg.Handler

	r := chi.NewRouter()
	if cfg.TrustProxy {
		r.Use(chimiddleware.RealIP)
	}
	r.Use(RequestID, AccessLog(cfg.Logger))
	if cfg.Metrics != nil {
		r.Use(cfg.Metrics.Middleware)
	}
	r.Use(
		Recover(cfg.Logger),
		SecureHeaders(cfg.Development),
		CORS(cfg.CORSOrigins),
		Admission(cfg.Gate, cfg.Logger),
	)
	if cfg.GlobalRateLimit > 0 {
		r.Use(GlobalRateLimit(cfg.GlobalRateLimit, time.Minute))
	}

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		handler.WriteDomainError(w, r, domain.ErrRouteNotFound)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		handler.WriteDomainError(w, r, domain.ErrMethodNotAllowed)
	})

	authenticated := chi.Chain(Authenticate(cfg.Auth), RequireActiveSession(cfg.Auth))

	r.Get("/health", h.Health)
	r.Get("/status", h.Status)
	if cfg.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", cfg.Metrics.Handler())
	}

	r.Route("/auth", func(r chi.Router) {
		r.Post("/register", h.Register)
		r.Post("/login", h.Login)
		r.Post("/refresh", h.Refresh)
		r.With(Authenticate(cfg.Auth)).Post("/logout", h.Logout)
		r.With(authenticated...).Get("/me", h.Me)
	})

	r.Group(func(r chi.Router) {
		r.Use(authenticated...)
		r.Use(
			RateLimit(cfg.Limiter, cfg.RateLimit, cfg.RateWindow),
			Quota(cfg.Quota, cfg.Clock),
		)
		r.Post("/chat", h.Inference("chat"))
		r.Post("/voice-chat", h.Inference("voice-chat"))
		r.Post("/tts", h.Inference("tts"))
	})

	r.Route("/v1", func(r chi.Router) {
		r.With(APIKeyAuth(cfg.Auth), Quota(cfg.Quota, cfg.Clock)).Post("/chat", h.Inference("chat"))
		r.Route("/keys", func(r chi.Router) {
			r.Use(authenticated...)
			r.Get("/", h.ListAPIKeys)
			r.Post("/", h.CreateAPIKey)
			r.Delete("/{id}", h.DeactivateAPIKey)
		})
	})

	r.Route("/admin", func(r chi.Router) {
		r.Use(authenticated...)
		r.With(RequirePermission(cfg.Auth, domain.PermStatsRead)).Get("/server", h.AdminServer)
		r.With(RequirePermission(cfg.Auth, domain.PermUsersRead)).Get("/sessions", h.AdminSessions)
		r.With(RequirePermission(cfg.Auth, domain.PermUsersWrite)).Post("/users/{id}/force-logout", h.AdminForceLogout)
	})

	return r
}
