// Package provider defines the backend-agnostic contract the gateway
// drives, and the default (mechanical) behaviours shared by every adapter.
// Grounded on the teacher's service.LLMProvider / service.LLMStreamProvider
// interfaces (internal/service/model.go), generalised to the operation set
// spec §4.4 names.
package provider

import (
	"context"
	"encoding/json"

	"github.com/rakunlabs/inference-gateway/internal/apierr"
	"github.com/rakunlabs/inference-gateway/internal/httpclient"
	"github.com/rakunlabs/inference-gateway/internal/neutral"
	"github.com/rakunlabs/inference-gateway/internal/wire"
)

// Provider is the capability set every backend adapter implements.
type Provider interface {
	// Generate runs the default orchestration build_inference_request ->
	// execute -> build_completion_response, or an adapter-specific
	// variant when the wire requires it (e.g. openai-compat's
	// whole-body-passthrough attempt).
	Generate(ctx context.Context, req *wire.CompletionRequest, model string, extensions map[string]json.RawMessage) (*wire.CompletionResponse, error)

	// Stream runs the SSE path, sending StreamChunks on the returned
	// channel until it closes. Errors encountered after streaming has
	// begun are sent on ch as events with Err set, and the adapter may
	// keep sending chunks after such an event before it closes the
	// channel; they are never returned from Stream itself.
	Stream(ctx context.Context, req *wire.CompletionRequest, model string, extensions map[string]json.RawMessage) (<-chan StreamEvent, error)

	ListModels(ctx context.Context) ([]string, error)
	HealthCheck(ctx context.Context) error

	SupportsStreaming() bool
	SupportedExtensions() []string
	ValidateExtensions(extensions map[string]json.RawMessage) (map[string]json.RawMessage, error)

	Name() string
	HTTPConfig() *httpclient.Config
}

// StreamEvent is either a decoded chunk or an in-band error; exactly one of
// the two fields is set.
type StreamEvent struct {
	Chunk *wire.StreamChunk
	Err   error
}

// ValidateExtensionsDefault rejects any key not present in supported —
// the default policy every adapter starts from.
func ValidateExtensionsDefault(extensions map[string]json.RawMessage, supported []string) (map[string]json.RawMessage, error) {
	if len(extensions) == 0 {
		return nil, nil
	}

	allowed := make(map[string]struct{}, len(supported))
	for _, k := range supported {
		allowed[k] = struct{}{}
	}

	for key := range extensions {
		if _, ok := allowed[key]; !ok {
			return nil, apierr.InvalidExtension(key, "unknown extension parameter")
		}
	}

	return extensions, nil
}

// Executor is implemented by adapters that want the default Generate
// orchestration: build_inference_request -> Execute -> build_completion_response.
type Executor interface {
	BuildInferenceRequest(req *wire.CompletionRequest, model string, extensions map[string]json.RawMessage) *neutral.InferenceRequest
	Execute(ctx context.Context, ireq *neutral.InferenceRequest) (*neutral.InferenceResponse, error)
	BuildCompletionResponse(resp *neutral.InferenceResponse, original *wire.CompletionRequest) *wire.CompletionResponse
	Name() string
}

// DefaultGenerate composes the three Executor steps, the orchestration
// every adapter shares unless its wire format demands a direct
// passthrough attempt first (openai-compat).
func DefaultGenerate(ctx context.Context, e Executor, req *wire.CompletionRequest, model string, extensions map[string]json.RawMessage) (*wire.CompletionResponse, error) {
	ireq := e.BuildInferenceRequest(req, model, extensions)

	iresp, err := e.Execute(ctx, ireq)
	if err != nil {
		return nil, err
	}

	return e.BuildCompletionResponse(iresp, req), nil
}
