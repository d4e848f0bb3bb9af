package handler

import (
	"context"
	"net/http"

	"github.com/ekodi-ai/gatekeeper/internal/core/domain"
	"github.com/ekodi-ai/gatekeeper/internal/core/service"
)

// Backend runs one prompt. It is the heavy work the admission gate protects.
type Backend interface {
	Complete(ctx context.Context, id *domain.Identity, req InferenceRequest) (*InferenceResponse, error)
}

// EchoBackend answers every prompt with the prompt itself.
type EchoBackend struct{}

// Complete implements Backend.
func (EchoBackend) Complete(_ context.Context, _ *domain.Identity, req InferenceRequest) (*InferenceResponse, error) {
	return &InferenceResponse{
		Kind:           req.Kind,
		Reply:          req.Message,
		ConversationID: req.ConversationID,
	}, nil
}

type quotaKey struct{}

// WithQuota stores the result of the quota check for the handler.
func WithQuota(ctx context.Context, res service.QuotaResult) context.Context {
	return context.WithValue(ctx, quotaKey{}, res)
}

// QuotaFromContext returns the quota result stored by WithQuota.
func QuotaFromContext(ctx context.Context) (service.QuotaResult, bool) {
	res, ok := ctx.Value(quotaKey{}).(service.QuotaResult)
	return res, ok
}

// Inference returns the handler for one inference kind (chat, voice-chat, tts).
func (h *Handler) Inference(kind string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := h.identity(w, r)
		if !ok {
			return
		}
		var req InferenceRequest
		if !h.decode(w, r, &req, false) {
			return
		}
		req.Kind = kind

		resp, err := h.backend.Complete(r.Context(), id, req)
		if err != nil {
			WriteDomainError(w, r, err)
			return
		}
		if q, ok := QuotaFromContext(r.Context()); ok {
			resp.Quota = &QuotaUsage{Limit: q.Limit, Used: q.Used, Remaining: q.Remaining, ResetsAt: q.ResetsAt}
		}
		WriteJSON(w, r, http.StatusOK, resp)
	}
}
