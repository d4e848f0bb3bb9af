package httpserver

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"runtime/debug"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/httprate"
	"github.com/google/uuid"
	"github.com/unrolled/secure"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/ekodi-ai/gatekeeper/internal/core/domain"
	"github.com/ekodi-ai/gatekeeper/internal/core/service"
	"github.com/ekodi-ai/gatekeeper/internal/server/httpserver/handler"
	"github.com/ekodi-ai/gatekeeper/internal/telemetry/logger"
)

var tracer = otel.Tracer("github.com/ekodi-ai/gatekeeper/internal/server/httpserver")

// Middleware wraps an http.Handler.
type Middleware func(http.Handler) http.Handler

// Header names.
const (
	HeaderRequestID    = "X-Request-ID"
	HeaderServerStatus = "X-Server-Status"
	HeaderAPIKey       = "X-API-Key"
)

const maxRequestIDLen = 128

// RequestID propagates a client-supplied X-Request-ID or assigns a new one,
// and puts it in the context for logging.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(HeaderRequestID)
		if id == "" || len(id) > maxRequestIDLen || strings.ContainsFunc(id, isControl) {
			id = uuid.NewString()
		}
		w.Header().Set(HeaderRequestID, id)
		next.ServeHTTP(w, r.WithContext(logger.WithRequestID(r.Context(), id)))
	})
}

func isControl(r rune) bool {
	return r < 0x20 || r == 0x7f
}

// AccessLog logs one line per request.
func AccessLog(log *slog.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rw := newResponseWriter(w)
			next.ServeHTTP(rw, r)

			level := slog.LevelInfo
			switch {
			case rw.status >= 500:
				level = slog.LevelError
			case r.URL.Path == "/health" || r.URL.Path == "/metrics":
				level = slog.LevelDebug
			}
			log.LogAttrs(r.Context(), level, "http request",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", rw.status),
				slog.Duration("duration", time.Since(start)),
				slog.String("client_ip", handler.ClientIP(r)),
				slog.String("error_code", rw.Header().Get("X-Error-Code")),
			)
		})
	}
}

// Recover turns a handler panic into a generic 500.
func Recover(log *slog.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				log.ErrorContext(r.Context(), "panic recovered",
					"panic", rec,
					"stack", string(debug.Stack()),
				)
				handler.WriteDomainError(w, r, domain.ErrInternalServer)
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// SecureHeaders sets the usual browser hardening headers.
func SecureHeaders(development bool) Middleware {
	sm := secure.New(secure.Options{
		FrameDeny:          true,
		ContentTypeNosniff: true,
		BrowserXssFilter:   true,
		ReferrerPolicy:     "strict-origin-when-cross-origin",
		STSSeconds:         31536000,
		IsDevelopment:      development,
	})
	return sm.Handler
}

// CORS answers preflights and tags responses for the allowed origins.
// "*" allows any origin.
func CORS(origins []string) Middleware {
	allowed := make(map[string]bool, len(origins))
	for _, o := range origins {
		allowed[o] = true
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if origin != "" && (allowed["*"] || allowed[origin]) {
				h := w.Header()
				h.Set("Access-Control-Allow-Origin", origin)
				h.Add("Vary", "Origin")
				h.Set("Access-Control-Allow-Credentials", "true")
				h.Set("Access-Control-Expose-Headers", "Retry-After, X-Server-Status, X-RateLimit-Limit, X-RateLimit-Remaining, X-Request-ID")
				if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
					h.Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
					h.Set("Access-Control-Allow-Headers", "Authorization, Content-Type, X-API-Key, X-Request-ID")
					h.Set("Access-Control-Max-Age", "600")
					w.WriteHeader(http.StatusNoContent)
					return
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

// busyResponse is the body of an overload rejection.
type busyResponse struct {
	Detail     string `json:"detail"`
	Error      string `json:"error"`
	Reason     string `json:"reason"`
	RetryAfter int64  `json:"retry_after"`
}

// Admission runs every request through the gate. Heavy requests are
// rejected with 503 while the server is overloaded; admitted, non
// passthrough requests are timed and tagged with X-Server-Status. A 5xx
// response or a panic counts as an error.
func Admission(gate *service.AdmissionGate, log *slog.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			outcome := gate.Admit(r.Method, r.URL.Path)
			if !outcome.Admitted {
				_, span := tracer.Start(r.Context(), "admission.reject")
				span.SetAttributes(
					attribute.String("route.class", outcome.Class.String()),
					attribute.String("reject.reason", outcome.Reason),
				)
				span.End()
				log.WarnContext(r.Context(), "request rejected",
					"method", r.Method, "path", r.URL.Path, "reason", outcome.Reason)
				writeBusy(w, outcome)
				return
			}

			ticket := gate.Begin(outcome)
			if ticket == nil {
				next.ServeHTTP(w, r)
				return
			}

			sw := &statusWriter{responseWriter: newResponseWriter(w), monitor: gate.Monitor()}
			defer func() {
				if rec := recover(); rec != nil {
					ticket.Finish(true)
					panic(rec)
				}
			}()
			next.ServeHTTP(sw, r)
			ticket.Finish(sw.status >= http.StatusInternalServerError)
		})
	}
}

func writeBusy(w http.ResponseWriter, o service.Outcome) {
	secs := int64(o.RetryAfter / time.Second)
	h := w.Header()
	h.Set("Content-Type", "application/json")
	h.Set("Retry-After", strconv.FormatInt(secs, 10))
	h.Set(HeaderServerStatus, string(domain.StatusBusy))
	h.Set("X-Error-Code", domain.ErrOverloaded.Code)
	w.WriteHeader(http.StatusServiceUnavailable)
	_ = json.NewEncoder(w).Encode(busyResponse{
		Detail:     "Server is currently busy. Please try again in a moment.",
		Error:      "server_busy",
		Reason:     o.Reason,
		RetryAfter: secs,
	})
}

// statusWriter stamps X-Server-Status as the header is written.
type statusWriter struct {
	*responseWriter
	monitor *service.RequestMonitor
}

func (w *statusWriter) WriteHeader(code int) {
	if !w.wroteHeader {
		w.Header().Set(HeaderServerStatus, string(w.monitor.StatusLevel()))
	}
	w.responseWriter.WriteHeader(code)
}

func (w *statusWriter) Write(b []byte) (int, error) {
	if !w.wroteHeader {
		w.WriteHeader(http.StatusOK)
	}
	return w.responseWriter.Write(b)
}

// GlobalRateLimit is a coarse per-IP flood guard in front of all routes.
func GlobalRateLimit(requests int, window time.Duration) Middleware {
	return httprate.Limit(requests, window,
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			handler.WriteDomainError(w, r, domain.ErrRateLimited.WithDetails("too many requests from this address"))
		}),
	)
}

// Authenticate resolves the bearer token into an identity.
func Authenticate(auth *service.AuthService) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw, ok := handler.BearerToken(r)
			if !ok {
				writeUnauthorized(w, r, domain.ErrTokenMissing)
				return
			}
			id, err := auth.Authenticate(r.Context(), raw)
			if err != nil {
				writeUnauthorized(w, r, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(domain.ContextWithIdentity(r.Context(), id)))
		})
	}
}

// RequireActiveSession rejects identities whose token session was closed.
func RequireActiveSession(auth *service.AuthService) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, ok := domain.IdentityFromContext(r.Context())
			if !ok {
				writeUnauthorized(w, r, domain.ErrTokenMissing)
				return
			}
			if err := auth.RequireActiveSession(r.Context(), id); err != nil {
				writeUnauthorized(w, r, err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequirePermission admits only identities holding perm.
func RequirePermission(auth *service.AuthService, perm domain.Permission) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, ok := domain.IdentityFromContext(r.Context())
			if !ok {
				writeUnauthorized(w, r, domain.ErrTokenMissing)
				return
			}
			if err := auth.Permissions().Require(id, perm); err != nil {
				slog.Default().InfoContext(r.Context(), "permission denied",
					"user_id", id.UserID, "role", id.Role, "permission", perm)
				handler.WriteDomainError(w, r, err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// APIKeyAuth resolves X-API-Key into an identity and applies the key's
// per-minute ceiling.
func APIKeyAuth(auth *service.AuthService) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := r.Header.Get(HeaderAPIKey)
			if raw == "" {
				handler.WriteDomainError(w, r, domain.ErrAPIKeyInvalid)
				return
			}
			id, d, err := auth.AuthenticateAPIKey(r.Context(), raw)
			if errors.Is(err, domain.ErrRateLimited) {
				handler.WriteRateLimited(w, r, d.Limit, d.RetryAfter, err)
				return
			}
			if err != nil {
				handler.WriteDomainError(w, r, err)
				return
			}
			setRateHeaders(w, d)
			next.ServeHTTP(w, r.WithContext(domain.ContextWithIdentity(r.Context(), id)))
		})
	}
}

// RateLimit applies the sliding-window limiter per client IP and path.
func RateLimit(limiter *service.RateLimiter, limit int, window time.Duration) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := handler.ClientIP(r) + ":" + r.URL.Path
			d, err := limiter.Check(r.Context(), key, limit, window)
			if errors.Is(err, domain.ErrRateLimited) {
				handler.WriteRateLimited(w, r, d.Limit, d.RetryAfter, err)
				return
			}
			if err != nil {
				handler.WriteDomainError(w, r, err)
				return
			}
			setRateHeaders(w, d)
			next.ServeHTTP(w, r)
		})
	}
}

// Quota takes one prompt from the caller's daily allowance.
func Quota(quota *service.DailyQuota, clock func() time.Time) Middleware {
	if clock == nil {
		clock = time.Now
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, ok := domain.IdentityFromContext(r.Context())
			if !ok {
				writeUnauthorized(w, r, domain.ErrTokenMissing)
				return
			}
			res, err := quota.Consume(r.Context(), id)
			if errors.Is(err, domain.ErrQuotaExceeded) {
				handler.WriteRateLimited(w, r, res.Limit, res.ResetsAt.Sub(clock()), err)
				return
			}
			if err != nil {
				handler.WriteDomainError(w, r, err)
				return
			}
			if !res.Unlimited() {
				w.Header().Set("X-Quota-Limit", strconv.Itoa(res.Limit))
				w.Header().Set("X-Quota-Remaining", strconv.Itoa(res.Remaining))
			}
			next.ServeHTTP(w, r.WithContext(handler.WithQuota(r.Context(), res)))
		})
	}
}

func setRateHeaders(w http.ResponseWriter, d service.RateDecision) {
	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(d.Limit))
	w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))
}

func writeUnauthorized(w http.ResponseWriter, r *http.Request, err error) {
	w.Header().Set("WWW-Authenticate", `Bearer realm="gatekeeper"`)
	handler.WriteDomainError(w, r, err)
}

// responseWriter captures the status code.
type responseWriter struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func newResponseWriter(w http.ResponseWriter) *responseWriter {
	return &responseWriter{ResponseWriter: w, status: http.StatusOK}
}

func (rw *responseWriter) WriteHeader(code int) {
	if rw.wroteHeader {
		return
	}
	rw.status = code
	rw.wroteHeader = true
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	if !rw.wroteHeader {
		rw.WriteHeader(http.StatusOK)
	}
	return rw.ResponseWriter.Write(b)
}

func (rw *responseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}
