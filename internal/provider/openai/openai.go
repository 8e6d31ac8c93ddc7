// Package openai implements the hosted OpenAI API adapter: authenticated,
// strict (no extensions), with upstream error-envelope translation.
// Grounded on the teacher's internal/service/llm/openai/openai.go for HTTP
// client wiring and on original_source/.../providers/openai.rs for the
// exact error-type -> apierr mapping and latency measurement, per spec §4.6.
package openai

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rakunlabs/inference-gateway/internal/apierr"
	"github.com/rakunlabs/inference-gateway/internal/httpclient"
	"github.com/rakunlabs/inference-gateway/internal/neutral"
	"github.com/rakunlabs/inference-gateway/internal/provider"
	"github.com/rakunlabs/inference-gateway/internal/wire"
)

const DefaultBaseURL = "https://api.openai.com/v1"

type Provider struct {
	client       *httpclient.Client
	httpConfig   httpclient.Config
	organization string
}

func New(apiKey, organizationID, baseURL string, cfg httpclient.Config, proxy string, insecureSkipVerify bool) (*Provider, error) {
	if apiKey == "" {
		return nil, apierr.Configuration("openai provider requires api_key")
	}
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	headers := http.Header{
		"Content-Type":  []string{"application/json"},
		"Authorization": []string{"Bearer " + apiKey},
	}
	if organizationID != "" {
		headers.Set("OpenAI-Organization", organizationID)
	}

	client, err := httpclient.New(baseURL, cfg, headers, proxy, insecureSkipVerify)
	if err != nil {
		return nil, apierr.Configuration(fmt.Sprintf("build openai client: %v", err))
	}

	return &Provider{client: client, httpConfig: cfg, organization: organizationID}, nil
}

func (p *Provider) Name() string                  { return "openai" }
func (p *Provider) SupportsStreaming() bool        { return true }
func (p *Provider) SupportedExtensions() []string  { return nil }
func (p *Provider) HTTPConfig() *httpclient.Config { return &p.httpConfig }

// ValidateExtensions is strict: any extension key is rejected.
func (p *Provider) ValidateExtensions(extensions map[string]json.RawMessage) (map[string]json.RawMessage, error) {
	return provider.ValidateExtensionsDefault(extensions, nil)
}

func (p *Provider) HealthCheck(ctx context.Context) error {
	data, status, err := p.client.Get(ctx, "models")
	if err != nil {
		return err
	}
	if status == 401 {
		return apierr.Configuration("invalid api key")
	}
	if status < 200 || status >= 300 {
		return apierr.ProviderRequestFailed(status, string(data))
	}
	return nil
}

func (p *Provider) ListModels(ctx context.Context) ([]string, error) {
	data, status, err := p.client.Get(ctx, "models")
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

	var models []string
	for _, m := range parsed.Data {
		if strings.Contains(m.ID, "gpt") || strings.Contains(m.ID, "turbo") || strings.Contains(m.ID, "davinci") {
			models = append(models, m.ID)
		}
	}
	return models, nil
}

func (p *Provider) BuildInferenceRequest(req *wire.CompletionRequest, model string, extensions map[string]json.RawMessage) *neutral.InferenceRequest {
	return neutral.BuildInferenceRequest(req, model, extensions)
}

func buildRequestBody(ireq *neutral.InferenceRequest, stream bool) map[string]any {
	body := map[string]any{
		"model":    ireq.Model,
		"messages": ireq.Messages,
		"n":        1,
		"stream":   stream,
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
	if stream {
		body["stream_options"] = map[string]any{"include_usage": true}
	}
	return body
}

// errorEnvelope maps an OpenAI {"error": {...}} body to the apierr
// taxonomy exactly as original_source/.../providers/openai.rs does.
func errorEnvelope(data []byte) (*apierr.Error, bool) {
	var parsed struct {
		Error *struct {
			Message string `json:"message"`
			Type    string `json:"type"`
			Code    string `json:"code"`
		} `json:"error"`
	}
	if json.Unmarshal(data, &parsed) != nil || parsed.Error == nil {
		return nil, false
	}

	e := parsed.Error
	switch e.Type {
	case "insufficient_quota", "rate_limit_exceeded":
		return apierr.ProviderRequestFailed(429, fmt.Sprintf("openai api error: %s", e.Message)), true
	case "model_not_found":
		return apierr.ModelNotAvailable(extractModel(e.Message), nil), true
	case "invalid_api_key", "invalid_organization":
		return apierr.Configuration(fmt.Sprintf("authentication error: %s", e.Message)), true
	default:
		code := e.Code
		if code == "" {
			code = e.Type
		}
		return apierr.ProviderRequestFailed(500, fmt.Sprintf("openai api error (%s): %s", code, e.Message)), true
	}
}

func extractModel(message string) string {
	for _, word := range strings.Fields(message) {
		if strings.HasPrefix(word, "gpt") || strings.HasPrefix(word, "text-") || strings.HasPrefix(word, "davinci") {
			return word
		}
	}
	return "unknown"
}

func (p *Provider) Execute(ctx context.Context, ireq *neutral.InferenceRequest) (*neutral.InferenceResponse, error) {
	body := buildRequestBody(ireq, false)
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, apierr.Configuration(fmt.Sprintf("marshal request: %v", err))
	}

	start := time.Now()
	data, status, err := p.client.PostJSON(ctx, "chat/completions", payload)
	latency := time.Since(start).Milliseconds()
	if err != nil {
		return nil, err
	}

	if apiErr, ok := errorEnvelope(data); ok {
		return nil, apiErr
	}
	if status < 200 || status >= 300 {
		return nil, apierr.ProviderRequestFailed(status, string(data))
	}

	var parsed struct {
		ID      string `json:"id"`
		Model   string `json:"model"`
		Choices []struct {
			Message struct {
				Content   string          `json:"content"`
				ToolCalls []wire.ToolCall `json:"tool_calls"`
			} `json:"message"`
			FinishReason string `json:"finish_reason"`
		} `json:"choices"`
		Usage struct {
			PromptTokens     int `json:"prompt_tokens"`
			CompletionTokens int `json:"completion_tokens"`
			TotalTokens      int `json:"total_tokens"`
		} `json:"usage"`
		SystemFingerprint string `json:"system_fingerprint"`
	}
	if err := json.Unmarshal(data, &parsed); err != nil {
		return nil, apierr.ProviderInvalidResponse(err.Error())
	}
	if len(parsed.Choices) == 0 {
		return nil, apierr.ProviderInvalidResponse("no choices in response")
	}

	choice := parsed.Choices[0]
	lat := latency

	return &neutral.InferenceResponse{
		Text:              choice.Message.Content,
		ModelUsed:         parsed.Model,
		FinishReason:      choice.FinishReason,
		PromptTokens:      &parsed.Usage.PromptTokens,
		CompletionTokens:  &parsed.Usage.CompletionTokens,
		TotalTokens:       &parsed.Usage.TotalTokens,
		LatencyMS:         &lat,
		ProviderRequestID: parsed.ID,
		SystemFingerprint: parsed.SystemFingerprint,
		ToolCalls:         choice.Message.ToolCalls,
	}, nil
}

func (p *Provider) BuildCompletionResponse(resp *neutral.InferenceResponse, original *wire.CompletionRequest) *wire.CompletionResponse {
	return neutral.StandardCompletionResponse(resp, original, p.Name())
}

func (p *Provider) Generate(ctx context.Context, req *wire.CompletionRequest, model string, extensions map[string]json.RawMessage) (*wire.CompletionResponse, error) {
	return provider.DefaultGenerate(ctx, p, req, model, extensions)
}

func (p *Provider) Stream(ctx context.Context, req *wire.CompletionRequest, model string, extensions map[string]json.RawMessage) (<-chan provider.StreamEvent, error) {
	ireq := neutral.BuildInferenceRequest(req, model, extensions)
	body := buildRequestBody(ireq, true)

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, apierr.Configuration(fmt.Sprintf("marshal request: %v", err))
	}

	resp, err := p.client.PostStream(ctx, "chat/completions", payload)
	if err != nil {
		return nil, err
	}

	ch := make(chan provider.StreamEvent)
	go scanSSE(ctx, resp, ch)
	return ch, nil
}

// scanSSE parses the hosted OpenAI SSE stream, grounded on the teacher's
// ChatStream scanner loop in internal/service/llm/openai/openai.go: a
// 10MB-capped bufio.Scanner, [DONE] termination, and a choiceless
// usage-only chunk (sent when stream_options.include_usage is set)
// forwarded verbatim rather than dropped.
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

		if apiErr, ok := errorEnvelope([]byte(data)); ok {
			select {
			case ch <- provider.StreamEvent{Err: apiErr}:
			case <-ctx.Done():
			}
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
