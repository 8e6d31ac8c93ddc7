package server

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/rakunlabs/inference-gateway/internal/apierr"
	"github.com/rakunlabs/inference-gateway/internal/validator"
	"github.com/rakunlabs/inference-gateway/internal/wire"
)

// ChatCompletions handles POST /v1/chat/completions per spec §4.8: decode,
// run the validation pipeline, then dispatch to the unary or streaming path
// of the single configured adapter.
func (s *Server) ChatCompletions(w http.ResponseWriter, r *http.Request) {
	var req wire.CompletionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpError(w, apierr.Configuration(fmt.Sprintf("invalid request body: %v", err)))
		return
	}

	if err := validator.ValidateRequest(&req); err != nil {
		httpError(w, err)
		return
	}

	model, err := validator.ResolveModel(req.Model, s.inf.DefaultModel, s.inf.AllowedModelSet())
	if err != nil {
		httpError(w, err)
		return
	}

	if err := validator.GateCapabilities(&req, s.provider.SupportsStreaming()); err != nil {
		httpError(w, err)
		return
	}

	extensions, err := s.provider.ValidateExtensions(req.Extensions)
	if err != nil {
		httpError(w, err)
		return
	}

	slog.Info("chat completion request",
		"model", model,
		"message_count", len(req.Messages),
		"stream", req.Stream,
		"user", req.User,
	)

	if req.Stream {
		s.handleStreamingChat(w, r, &req, model, extensions)
		return
	}

	resp, err := s.provider.Generate(r.Context(), &req, model, extensions)
	if err != nil {
		slog.Error("provider generate failed", "provider", s.provider.Name(), "model", model, "error", err)
		httpError(w, err)
		return
	}

	logArgs := []any{"model", model, "choices_count", len(resp.Choices)}
	if resp.Usage != nil {
		logArgs = append(logArgs, "prompt_tokens", resp.Usage.PromptTokens, "completion_tokens", resp.Usage.CompletionTokens)
	}
	slog.Info("chat completion response", logArgs...)

	httpResponseJSON(w, resp, http.StatusOK)
}

// ListModels handles GET /v1/models.
func (s *Server) ListModels(w http.ResponseWriter, r *http.Request) {
	models, err := s.provider.ListModels(r.Context())
	if err != nil {
		httpError(w, err)
		return
	}

	data := make([]wire.ModelData, 0, len(models))
	for _, id := range models {
		data = append(data, wire.ModelData{ID: id, Object: "model", OwnedBy: "local"})
	}

	httpResponseJSON(w, wire.ModelsResponse{Object: "list", Data: data}, http.StatusOK)
}

// Health handles GET /health.
func (s *Server) Health(w http.ResponseWriter, r *http.Request) {
	if err := s.provider.HealthCheck(r.Context()); err != nil {
		httpError(w, err)
		return
	}

	body := map[string]any{
		"status":   "healthy",
		"provider": s.provider.Name(),
	}
	if cfg := s.provider.HTTPConfig(); cfg != nil {
		body["http_config"] = cfg
	}

	httpResponseJSON(w, body, http.StatusOK)
}

// Root handles GET /.
func (s *Server) Root(w http.ResponseWriter, r *http.Request) {
	httpResponseJSON(w, map[string]string{"message": "Ok"}, http.StatusOK)
}
