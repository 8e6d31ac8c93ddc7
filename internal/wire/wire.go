// Package wire holds the OpenAI-compatible JSON schemas the gateway speaks
// on its HTTP surface: request, unary response, stream chunk, and error body.
package wire

import "encoding/json"

// Message is a role-tagged utterance. Content may be absent when the
// message carries only tool calls or is a tool response.
type Message struct {
	Role       string          `json:"role"`
	Content    json.RawMessage `json:"content,omitempty"`
	Name       string          `json:"name,omitempty"`
	ToolCalls  []ToolCall      `json:"tool_calls,omitempty"`
	ToolCallID string          `json:"tool_call_id,omitempty"`
	Refusal    *string         `json:"refusal,omitempty"`

	// FunctionCall is the legacy single-function-call field predating
	// tool_calls. Forwarded, never interpreted.
	FunctionCall *FunctionCall `json:"function_call,omitempty"`
}

// HasToolCalls reports whether ToolCalls is present at all, even when it
// unmarshalled to a zero-length (but non-nil) slice — presence, not
// non-emptiness, is what counts as content for validation purposes.
func (m Message) HasToolCalls() bool {
	return m.ToolCalls != nil
}

// HasContent reports whether Content was present in the JSON body at all
// (an empty string is still "present"; an absent field is not).
func (m Message) HasContent() bool {
	return len(m.Content) > 0 && string(m.Content) != "null"
}

type FunctionCall struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// ToolCall is passed through end to end; it is never invoked.
type ToolCall struct {
	Index    *int         `json:"index,omitempty"`
	ID       string       `json:"id"`
	Type     string       `json:"type"`
	Function FunctionCall `json:"function"`
}

// ResponseMode selects between the plain OpenAI envelope and the extended
// envelope carrying provider_extensions.
type ResponseMode string

const (
	ResponseModeStandard ResponseMode = "standard"
	ResponseModeExtended ResponseMode = "extended"
)

// CompletionRequest is the inbound POST /v1/chat/completions body.
type CompletionRequest struct {
	Model    string    `json:"model,omitempty"`
	Messages []Message `json:"messages"`

	MaxTokens        *int     `json:"max_tokens,omitempty"`
	Temperature      *float64 `json:"temperature,omitempty"`
	TopP             *float64 `json:"top_p,omitempty"`
	FrequencyPenalty *float64 `json:"frequency_penalty,omitempty"`
	PresencePenalty  *float64 `json:"presence_penalty,omitempty"`
	TopLogprobs      *int     `json:"top_logprobs,omitempty"`
	Logprobs         *bool    `json:"logprobs,omitempty"`
	N                *int     `json:"n,omitempty"`
	Seed             *int64   `json:"seed,omitempty"`
	User             string   `json:"user,omitempty"`

	// Stop is string | []string | absent on the wire; use StopSequences
	// (normalised) in internal code, not this field.
	Stop json.RawMessage `json:"stop,omitempty"`

	LogitBias      map[string]json.RawMessage `json:"logit_bias,omitempty"`
	ResponseFormat json.RawMessage            `json:"response_format,omitempty"`

	Stream        bool           `json:"stream,omitempty"`
	StreamOptions *StreamOptions `json:"stream_options,omitempty"`

	Tools []Tool `json:"tools,omitempty"`

	ResponseMode ResponseMode           `json:"response_mode,omitempty"`
	Extensions   map[string]json.RawMessage `json:"extensions,omitempty"`
}

type StreamOptions struct {
	IncludeUsage bool `json:"include_usage,omitempty"`
}

type Tool struct {
	Type     string       `json:"type"`
	Function ToolFunction `json:"function"`
}

type ToolFunction struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Parameters  map[string]any `json:"parameters,omitempty"`
}

// CompletionResponse is the unary OpenAI-shape response.
type CompletionResponse struct {
	ID                string              `json:"id"`
	Object            string              `json:"object"`
	Created           int64               `json:"created"`
	Model             string              `json:"model"`
	Choices           []CompletionChoice  `json:"choices"`
	Usage             *Usage              `json:"usage,omitempty"`
	SystemFingerprint string              `json:"system_fingerprint,omitempty"`
	ProviderExtensions *ProviderExtensions `json:"provider_extensions,omitempty"`
}

type ProviderExtensions struct {
	Provider string         `json:"provider"`
	Data     map[string]any `json:"data"`
}

type CompletionChoice struct {
	Index        int               `json:"index"`
	Message      CompletionMessage `json:"message"`
	FinishReason string            `json:"finish_reason"`
	Logprobs     json.RawMessage   `json:"logprobs,omitempty"`
}

type CompletionMessage struct {
	Role      string     `json:"role"`
	Content   *string    `json:"content"`
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`
	Refusal   *string    `json:"refusal,omitempty"`
}

type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// StreamChunk is one decoded SSE event body.
type StreamChunk struct {
	ID                string         `json:"id"`
	Object            string         `json:"object"`
	Created           int64          `json:"created"`
	Model             string         `json:"model"`
	Choices           []ChunkChoice  `json:"choices"`
	Usage             *Usage         `json:"usage,omitempty"`
	SystemFingerprint string         `json:"system_fingerprint,omitempty"`
}

type ChunkChoice struct {
	Index        int             `json:"index"`
	Delta        ChunkDelta      `json:"delta"`
	FinishReason *string         `json:"finish_reason"`
	Logprobs     json.RawMessage `json:"logprobs,omitempty"`
}

type ChunkDelta struct {
	Role      string     `json:"role,omitempty"`
	Content   string     `json:"content,omitempty"`
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`
	Refusal   *string    `json:"refusal,omitempty"`
}

// ErrorBody is the OpenAI-shape error envelope.
type ErrorBody struct {
	Error ErrorDetail `json:"error"`
}

type ErrorDetail struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Param   string `json:"param,omitempty"`
	Code    string `json:"code,omitempty"`
}

// ModelsResponse is the GET /v1/models body.
type ModelsResponse struct {
	Object string      `json:"object"`
	Data   []ModelData `json:"data"`
}

type ModelData struct {
	ID      string `json:"id"`
	Object  string `json:"object"`
	OwnedBy string `json:"owned_by"`
}
