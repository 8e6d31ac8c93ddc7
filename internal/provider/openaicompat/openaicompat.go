// Package openaicompat implements the adapter for a local OpenAI-wire
// server (llama.cpp-server-style), grounded on the teacher's
// internal/service/llm/openai/openai.go client construction and
// original_source/.../validations.rs's provider-capability notes, per
// spec §4.5.
package openaicompat

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/rakunlabs/inference-gateway/internal/apierr"
	"github.com/rakunlabs/inference-gateway/internal/httpclient"
	"github.com/rakunlabs/inference-gateway/internal/neutral"
	"github.com/rakunlabs/inference-gateway/internal/provider"
	"github.com/rakunlabs/inference-gateway/internal/wire"
)

// supportedExtensions is the fixed per-key schema for llama.cpp-style
// backend-specific sampling parameters.
var supportedExtensions = []string{
	"top_k", "min_p", "repeat_penalty", "mirostat_mode", "mirostat_tau",
	"mirostat_eta", "typical_p", "tfs_z", "min_tokens", "n_probs",
	"grammar", "cache_prompt",
}

type Provider struct {
	client     *httpclient.Client
	httpConfig httpclient.Config
}

func New(baseURL string, cfg httpclient.Config, proxy string, insecureSkipVerify bool) (*Provider, error) {
	headers := http.Header{"Content-Type": []string{"application/json"}}

	client, err := httpclient.New(baseURL, cfg, headers, proxy, insecureSkipVerify)
	if err != nil {
		return nil, apierr.Configuration(fmt.Sprintf("build openai-compat client: %v", err))
	}

	return &Provider{client: client, httpConfig: cfg}, nil
}

func (p *Provider) Name() string                    { return "openai-compat" }
func (p *Provider) SupportsStreaming() bool          { return true }
func (p *Provider) SupportedExtensions() []string    { return supportedExtensions }
func (p *Provider) HTTPConfig() *httpclient.Config   { return &p.httpConfig }

func (p *Provider) ValidateExtensions(extensions map[string]json.RawMessage) (map[string]json.RawMessage, error) {
	validated, err := provider.ValidateExtensionsDefault(extensions, supportedExtensions)
	if err != nil {
		return nil, err
	}

	for key, raw := range validated {
		if err := validateExtensionValue(key, raw); err != nil {
			return nil, err
		}
	}

	return validated, nil
}

func validateExtensionValue(key string, raw json.RawMessage) error {
	var f float64
	var i int
	switch key {
	case "top_k":
		if json.Unmarshal(raw, &i) != nil || i <= 0 {
			return apierr.InvalidExtension(key, "must be a positive integer")
		}
	case "min_p":
		if json.Unmarshal(raw, &f) != nil || f < 0 || f > 1 {
			return apierr.InvalidExtension(key, "must be between 0 and 1")
		}
	case "repeat_penalty":
		if json.Unmarshal(raw, &f) != nil || f < 0 {
			return apierr.InvalidExtension(key, "must be >= 0")
		}
	case "mirostat_mode":
		if json.Unmarshal(raw, &i) != nil || (i != 0 && i != 1 && i != 2) {
			return apierr.InvalidExtension(key, "must be 0, 1, or 2")
		}
	case "mirostat_tau":
		if json.Unmarshal(raw, &f) != nil || f <= 0 {
			return apierr.InvalidExtension(key, "must be > 0")
		}
	case "mirostat_eta":
		if json.Unmarshal(raw, &f) != nil || f < 0 || f > 1 {
			return apierr.InvalidExtension(key, "must be between 0 and 1")
		}
	case "typical_p":
		if json.Unmarshal(raw, &f) != nil || f < 0 || f > 1 {
			return apierr.InvalidExtension(key, "must be between 0 and 1")
		}
	case "tfs_z":
		if json.Unmarshal(raw, &f) != nil || f < 0 {
			return apierr.InvalidExtension(key, "must be >= 0")
		}
	case "min_tokens":
		if json.Unmarshal(raw, &i) != nil || i < 0 {
			return apierr.InvalidExtension(key, "must be >= 0")
		}
	case "n_probs":
		if json.Unmarshal(raw, &i) != nil || i < 0 {
			return apierr.InvalidExtension(key, "must be >= 0")
		}
	case "grammar":
		var s string
		if json.Unmarshal(raw, &s) != nil {
			return apierr.InvalidExtension(key, "must be a string")
		}
	case "cache_prompt":
		var b bool
		if json.Unmarshal(raw, &b) != nil {
			return apierr.InvalidExtension(key, "must be a boolean")
		}
	}
	return nil
}

func (p *Provider) HealthCheck(ctx context.Context) error {
	_, status, err := p.client.Get(ctx, "v1/models")
	if err != nil {
		return err
	}
	if status < 200 || status >= 300 {
		return apierr.ProviderRequestFailed(status, "health check failed")
	}
	return nil
}

func (p *Provider) ListModels(ctx context.Context) ([]string, error) {
	data, status, err := p.client.Get(ctx, "v1/models")
	if err != nil {
		return nil, err
	}
	if status < 200 || status >= 300 {
		return nil, apierr.ProviderRequestFailed(status, string(data))
	}

	var parsed struct {
		Data []struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	if err := json.Unmarshal(data, &parsed); err != nil {
		return nil, apierr.ProviderInvalidResponse(err.Error())
	}

	models := make([]string, 0, len(parsed.Data))
	for _, m := range parsed.Data {
		models = append(models, m.ID)
	}
	return models, nil
}

func buildRequestBody(ireq *neutral.InferenceRequest) map[string]any {
	body := map[string]any{
		"model":    ireq.Model,
		"messages": ireq.Messages,
	}
	if ireq.MaxTokens != nil {
		body["max_tokens"] = *ireq.MaxTokens
	}
	if ireq.Temperature != nil {
		body["temperature"] = *ireq.Temperature
	}
	if ireq.TopP != nil {
		body["top_p"] = *ireq.TopP
	}
	if ireq.FrequencyPenalty != nil {
		body["frequency_penalty"] = *ireq.FrequencyPenalty
	}
	if ireq.PresencePenalty != nil {
		body["presence_penalty"] = *ireq.PresencePenalty
	}
	if len(ireq.StopSequences) > 0 {
		body["stop"] = ireq.StopSequences
	}
	if ireq.Seed != nil {
		body["seed"] = *ireq.Seed
	}
	if ireq.User != "" {
		body["user"] = ireq.User
	}
	if ireq.N != nil {
		body["n"] = *ireq.N
	}
	if ireq.Logprobs != nil {
		body["logprobs"] = *ireq.Logprobs
	}
	if ireq.TopLogprobs != nil {
		body["top_logprobs"] = *ireq.TopLogprobs
	}
	if len(ireq.LogitBias) > 0 {
		body["logit_bias"] = ireq.LogitBias
	}

	// Extensions are merged as top-level keys, overriding identically
	// named fields — documented behaviour per spec §4.5.
	for key, raw := range ireq.Extensions {
		var v any
		if json.Unmarshal(raw, &v) == nil {
			body[key] = v
		}
	}

	return body
}

// Generate attempts the whole-body CompletionResponse passthrough first
// (preserves n>1, logprobs, system_fingerprint); on failure falls back to
// the single-choice path which additionally captures backend-only fields
// into provider_data and performs the model-match check.
func (p *Provider) Generate(ctx context.Context, req *wire.CompletionRequest, model string, extensions map[string]json.RawMessage) (*wire.CompletionResponse, error) {
	ireq := neutral.BuildInferenceRequest(req, model, extensions)
	body := buildRequestBody(ireq)

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, apierr.Configuration(fmt.Sprintf("marshal request: %v", err))
	}

	data, status, err := p.client.PostJSON(ctx, "v1/chat/completions", payload)
	if err != nil {
		return nil, err
	}
	if status < 200 || status >= 300 {
		return nil, apierr.ProviderRequestFailed(status, string(data))
	}

	if isPassthroughShape(data) {
		var passthrough wire.CompletionResponse
		if err := json.Unmarshal(data, &passthrough); err == nil && len(passthrough.Choices) > 0 {
			return &passthrough, nil
		}
	}

	return p.singleChoiceFallback(data, model, req.ResponseMode)
}

// isPassthroughShape decides whether data is a genuine OpenAI-shape
// chat.completion body rather than a llama.cpp-server body that merely
// happens to share the "choices" field name. Unlike serde's typed
// deserialization in the original, Go's encoding/json never fails an
// unmarshal just because required fields are missing, so unmarshal success
// alone can't distinguish the two — every llama.cpp body would otherwise
// take the passthrough branch and singleChoiceFallback's model-match check
// and provider_data capture would never run. Require the three fields every
// real OpenAI response carries (id/object/created) and the absence of any
// llama.cpp-only field (timings/model_info/slot_id).
func isPassthroughShape(data []byte) bool {
	var probe struct {
		ID        string          `json:"id"`
		Object    string          `json:"object"`
		Created   int64           `json:"created"`
		Timings   json.RawMessage `json:"timings"`
		ModelInfo json.RawMessage `json:"model_info"`
		SlotID    *int            `json:"slot_id"`
	}
	if json.Unmarshal(data, &probe) != nil {
		return false
	}
	if probe.ID == "" || probe.Object == "" || probe.Created == 0 {
		return false
	}
	if len(probe.Timings) > 0 || len(probe.ModelInfo) > 0 || probe.SlotID != nil {
		return false
	}
	return true
}

func (p *Provider) singleChoiceFallback(data []byte, requestedModel string, mode wire.ResponseMode) (*wire.CompletionResponse, error) {
	var parsed struct {
		Model   string `json:"model"`
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
			FinishReason string `json:"finish_reason"`
		} `json:"choices"`
		Usage *wire.Usage `json:"usage"`

		// Backend-only fields captured into provider_data.
		Timings   json.RawMessage `json:"timings"`
		ModelInfo json.RawMessage `json:"model_info"`
		Truncated *bool           `json:"truncated"`
		SlotID    *int            `json:"slot_id"`
	}
	if err := json.Unmarshal(data, &parsed); err != nil {
		return nil, apierr.ProviderInvalidResponse(err.Error())
	}
	if len(parsed.Choices) == 0 {
		return nil, apierr.ProviderInvalidResponse("no choices in response")
	}

	if parsed.Model != "" && parsed.Model != requestedModel {
		return nil, apierr.ModelNotAvailable(requestedModel, []string{parsed.Model})
	}

	content := parsed.Choices[0].Message.Content
	resp := &wire.CompletionResponse{
		ID:      "chatcmpl-" + ulid.Make().String(),
		Object:  "chat.completion",
		Created: time.Now().Unix(),
		Model:   requestedModel,
		Choices: []wire.CompletionChoice{{Index: 0, Message: wire.CompletionMessage{Role: "assistant", Content: &content}, FinishReason: parsed.Choices[0].FinishReason}},
		Usage:   parsed.Usage,
	}

	providerData := map[string]any{}
	if len(parsed.Timings) > 0 {
		providerData["timings"] = json.RawMessage(parsed.Timings)
	}
	if len(parsed.ModelInfo) > 0 {
		providerData["model_info"] = json.RawMessage(parsed.ModelInfo)
	}
	if parsed.Truncated != nil {
		providerData["truncated"] = *parsed.Truncated
	}
	if parsed.SlotID != nil {
		providerData["slot_id"] = *parsed.SlotID
	}
	if len(providerData) > 0 && mode == wire.ResponseModeExtended {
		resp.ProviderExtensions = &wire.ProviderExtensions{Provider: p.Name(), Data: providerData}
	}

	return resp, nil
}

// Stream sets stream=true and parses upstream SSE events. A [DONE] event
// terminates the stream without emitting a chunk; malformed chunks raise
// an in-stream StreamError without aborting the underlying HTTP stream.
func (p *Provider) Stream(ctx context.Context, req *wire.CompletionRequest, model string, extensions map[string]json.RawMessage) (<-chan provider.StreamEvent, error) {
	ireq := neutral.BuildInferenceRequest(req, model, extensions)
	body := buildRequestBody(ireq)
	body["stream"] = true

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, apierr.Configuration(fmt.Sprintf("marshal request: %v", err))
	}

	resp, err := p.client.PostStream(ctx, "v1/chat/completions", payload)
	if err != nil {
		return nil, err
	}

	ch := make(chan provider.StreamEvent)
	go scanSSE(ctx, resp, ch)
	return ch, nil
}

func scanSSE(ctx context.Context, resp *http.Response, ch chan<- provider.StreamEvent) {
	defer close(ch)
	defer resp.Body.Close()

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 10*1024*1024)

	for scanner.Scan() {
		line := scanner.Text()
		if line == "" || strings.HasPrefix(line, ":") {
			continue
		}
		data, ok := strings.CutPrefix(line, "data: ")
		if !ok {
			continue
		}
		if data == "[DONE]" {
			return
		}

		var chunk wire.StreamChunk
		if err := json.Unmarshal([]byte(data), &chunk); err != nil {
			select {
			case ch <- provider.StreamEvent{Err: apierr.StreamError(fmt.Sprintf("malformed stream chunk: %v", err))}:
			case <-ctx.Done():
				return
			}
			continue
		}

		select {
		case ch <- provider.StreamEvent{Chunk: &chunk}:
		case <-ctx.Done():
			return
		}
	}
}
