package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/ekodi-ai/gatekeeper/internal/core/domain"
	"github.com/ekodi-ai/gatekeeper/internal/core/service"
)

// maxBodyBytes bounds every JSON request body.
const maxBodyBytes = 1 << 20

// Config wires a Handler to the services it fronts.
type Config struct {
	Auth    *service.AuthService
	Gate    *service.AdmissionGate
	Backend Backend // defaults to EchoBackend
	Clock   func() time.Time
	Logger  *slog.Logger
}

// Handler serves every gatekeeper endpoint. Routing lives in httpserver.
type Handler struct {
	auth     *service.AuthService
	gate     *service.AdmissionGate
	backend  Backend
	validate *validator.Validate
	now      func() time.Time
	logger   *slog.Logger
}

// New creates a Handler.
func New(cfg Config) *Handler {
	if cfg.Backend == nil {
		cfg.Backend = EchoBackend{}
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Handler{
		auth:     cfg.Auth,
		gate:     cfg.Gate,
		backend:  cfg.Backend,
		validate: newValidator(),
		now:      cfg.Clock,
		logger:   cfg.Logger,
	}
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// Report fields by their JSON names.
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// decode reads and validates a JSON body into dst. On failure it writes a
// 400 and returns false.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any, optional bool) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil && !(optional && errors.Is(err, io.EOF)) {
		WriteDomainError(w, r, domain.ErrBadRequest.WithDetails("malformed JSON body"))
		return false
	}

	if err := h.validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fields := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				fields = append(fields, fmt.Sprintf("%s: failed %s", fe.Field(), fe.Tag()))
			}
			WriteDomainError(w, r, domain.ErrBadRequest.WithDetails(strings.Join(fields, "; ")))
			return false
		}
		WriteDomainError(w, r, domain.ErrBadRequest.WithCause(err))
		return false
	}
	return true
}

// identity returns the caller set by the authentication middleware.
func (h *Handler) identity(w http.ResponseWriter, r *http.Request) (*domain.Identity, bool) {
	id, ok := domain.IdentityFromContext(r.Context())
	if !ok {
		WriteDomainError(w, r, domain.ErrTokenMissing)
	}
	return id, ok
}
