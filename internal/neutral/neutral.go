// Package neutral holds the internal request/response shapes that decouple
// the OpenAI wire surface from per-backend request bodies. Adapters accept
// an InferenceRequest and return an InferenceResponse; wire translation
// happens only at the edges (internal/server and internal/wire).
package neutral

import (
	"encoding/json"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/rakunlabs/inference-gateway/internal/wire"
)

// InferenceRequest is the validated, normalised form fed to an adapter.
type InferenceRequest struct {
	Model    string
	Messages []wire.Message

	MaxTokens        *int
	Temperature      *float64
	TopP             *float64
	FrequencyPenalty *float64
	PresencePenalty  *float64
	TopLogprobs      *int
	Logprobs         *bool
	N                *int
	Seed             *int64
	User             string

	StopSequences []string

	LogitBias map[string]json.RawMessage

	Stream bool

	// Extensions holds adapter-validated backend-specific parameters,
	// merged as top-level keys by adapters that document that behaviour.
	Extensions map[string]json.RawMessage
}

// FinishReason enumerates the values InferenceResponse.FinishReason takes.
const (
	FinishStop          = "stop"
	FinishLength         = "length"
	FinishToolCalls      = "tool_calls"
	FinishContentFilter  = "content_filter"
	FinishFunctionCall   = "function_call"
)

// InferenceResponse is the neutral result an adapter produces.
type InferenceResponse struct {
	Text              string
	ModelUsed         string
	FinishReason      string
	PromptTokens      *int
	CompletionTokens  *int
	TotalTokens       *int
	LatencyMS         *int64
	ProviderRequestID string
	SystemFingerprint string
	ToolCalls         []wire.ToolCall
	Logprobs          json.RawMessage

	// ProviderData captures backend-specific response fields; surfaced as
	// provider_extensions.data when the request asked for extended mode.
	ProviderData map[string]any
}

// NormalizeStopSequences lifts the wire "stop" field — string, []string, or
// absent — into a normalised slice. A nil/empty raw message yields nil.
func NormalizeStopSequences(raw json.RawMessage) []string {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}

	var single string
	if err := json.Unmarshal(raw, &single); err == nil {
		return []string{single}
	}

	var multi []string
	if err := json.Unmarshal(raw, &multi); err == nil {
		return multi
	}

	return nil
}

// BuildInferenceRequest is a near-mechanical copy from wire to neutral form.
func BuildInferenceRequest(req *wire.CompletionRequest, model string, extensions map[string]json.RawMessage) *InferenceRequest {
	return &InferenceRequest{
		Model:            model,
		Messages:         req.Messages,
		MaxTokens:        req.MaxTokens,
		Temperature:      req.Temperature,
		TopP:             req.TopP,
		FrequencyPenalty: req.FrequencyPenalty,
		PresencePenalty:  req.PresencePenalty,
		TopLogprobs:      req.TopLogprobs,
		Logprobs:         req.Logprobs,
		N:                req.N,
		Seed:             req.Seed,
		User:             req.User,
		StopSequences:    NormalizeStopSequences(req.Stop),
		LogitBias:        req.LogitBias,
		Stream:           req.Stream,
		Extensions:       extensions,
	}
}

// StandardCompletionResponse builds the wire response from a neutral
// InferenceResponse. The mock and openai adapters build their responses
// with it; openai-compat passes an upstream body that deserialises directly
// into wire.CompletionResponse through as is (which preserves n>1 and extra
// fields) and otherwise builds the same single-choice form itself.
func StandardCompletionResponse(resp *InferenceResponse, original *wire.CompletionRequest, providerName string) *wire.CompletionResponse {
	id := resp.ProviderRequestID
	if id == "" {
		id = "chatcmpl-" + ulid.Make().String()
	}

	content := resp.Text
	out := &wire.CompletionResponse{
		ID:      id,
		Object:  "chat.completion",
		Created: time.Now().Unix(),
		Model:   resp.ModelUsed,
		Choices: []wire.CompletionChoice{
			{
				Index: 0,
				Message: wire.CompletionMessage{
					Role:      "assistant",
					Content:   &content,
					ToolCalls: resp.ToolCalls,
				},
				FinishReason: resp.FinishReason,
				Logprobs:     resp.Logprobs,
			},
		},
		SystemFingerprint: resp.SystemFingerprint,
	}

	if resp.PromptTokens != nil || resp.CompletionTokens != nil || resp.TotalTokens != nil {
		out.Usage = &wire.Usage{
			PromptTokens:     intOrZero(resp.PromptTokens),
			CompletionTokens: intOrZero(resp.CompletionTokens),
			TotalTokens:      intOrZero(resp.TotalTokens),
		}
	}

	if original.ResponseMode == wire.ResponseModeExtended && len(resp.ProviderData) > 0 {
		out.ProviderExtensions = &wire.ProviderExtensions{
			Provider: providerName,
			Data:     resp.ProviderData,
		}
	}

	return out
}

func intOrZero(v *int) int {
	if v == nil {
		return 0
	}
	return *v
}
