package server

import (
	"bufio"
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rakunlabs/inference-gateway/internal/config"
	"github.com/rakunlabs/inference-gateway/internal/provider/mock"
	"github.com/rakunlabs/inference-gateway/internal/wire"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "demo.yaml"), []byte(`
responses:
  - text: "hello world"
    finish_reason: stop
    prompt_tokens: 2
    completion_tokens: 1
    total_tokens: 3
settings:
  chunk_delay_ms: 0
`), 0o644))

	p, err := mock.New(dir)
	require.NoError(t, err)

	return New(config.Server{}, config.Inference{DefaultModel: "mock-demo"}, p)
}

func TestChatCompletions_Unary(t *testing.T) {
	s := newTestServer(t)

	body, _ := json.Marshal(wire.CompletionRequest{
		Model:    "mock-demo",
		Messages: []wire.Message{{Role: "user", Content: json.RawMessage(`"hi"`)}},
	})
	req := httptest.NewRequest(http.MethodPost, "/v1/chat/completions", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	s.ChatCompletions(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp wire.CompletionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Choices, 1)
	assert.Equal(t, "hello world", *resp.Choices[0].Message.Content)
	assert.Equal(t, "stop", resp.Choices[0].FinishReason)
	require.NotNil(t, resp.Usage)
	assert.Equal(t, 3, resp.Usage.TotalTokens)
}

func TestChatCompletions_ValidationFailure(t *testing.T) {
	s := newTestServer(t)

	temp := 3.0
	body, _ := json.Marshal(wire.CompletionRequest{
		Messages:    []wire.Message{{Role: "user", Content: json.RawMessage(`"x"`)}},
		Temperature: &temp,
	})
	req := httptest.NewRequest(http.MethodPost, "/v1/chat/completions", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	s.ChatCompletions(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)

	var errBody wire.ErrorBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &errBody))
	assert.Equal(t, "invalid_request_error", errBody.Error.Type)
	assert.Equal(t, "temperature", errBody.Error.Param)
	assert.Contains(t, errBody.Error.Message, "3")
}

func TestChatCompletions_AllowListRejection(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.yaml"), []byte("responses:\n  - text: hi\n"), 0o644))
	p, err := mock.New(dir)
	require.NoError(t, err)

	s := New(config.Server{}, config.Inference{
		DefaultModel:  "mock-a",
		AllowedModels: []string{"mock-a", "mock-b"},
	}, p)

	body, _ := json.Marshal(wire.CompletionRequest{
		Model:    "mock-c",
		Messages: []wire.Message{{Role: "user", Content: json.RawMessage(`"hi"`)}},
	})
	req := httptest.NewRequest(http.MethodPost, "/v1/chat/completions", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	s.ChatCompletions(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)

	var errBody wire.ErrorBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &errBody))
	assert.Equal(t, "model_not_found", errBody.Error.Code)
	assert.Equal(t, "model", errBody.Error.Param)
}

func TestChatCompletions_OmittedModelUsesDefaultDespiteAllowList(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "demo.yaml"), []byte(`
responses:
  - text: "hello"
    finish_reason: stop
`), 0o644))
	p, err := mock.New(dir)
	require.NoError(t, err)

	s := New(config.Server{}, config.Inference{
		DefaultModel:  "mock-demo",
		AllowedModels: []string{"mock-a", "mock-b"},
	}, p)

	body, _ := json.Marshal(wire.CompletionRequest{
		Messages: []wire.Message{{Role: "user", Content: json.RawMessage(`"hi"`)}},
	})
	req := httptest.NewRequest(http.MethodPost, "/v1/chat/completions", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	s.ChatCompletions(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
}

func TestChatCompletions_Streaming(t *testing.T) {
	s := newTestServer(t)

	body, _ := json.Marshal(wire.CompletionRequest{
		Model:    "mock-demo",
		Messages: []wire.Message{{Role: "user", Content: json.RawMessage(`"hi"`)}},
		Stream:   true,
	})
	req := httptest.NewRequest(http.MethodPost, "/v1/chat/completions", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	s.ChatCompletions(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var events []string
	scanner := bufio.NewScanner(strings.NewReader(rec.Body.String()))
	for scanner.Scan() {
		line := scanner.Text()
		if data, ok := strings.CutPrefix(line, "data: "); ok {
			events = append(events, data)
		}
	}

	require.GreaterOrEqual(t, len(events), 2)
	assert.Equal(t, "[DONE]", events[len(events)-1])

	var first wire.StreamChunk
	require.NoError(t, json.Unmarshal([]byte(events[0]), &first))
	assert.Equal(t, "assistant", first.Choices[0].Delta.Role)
	assert.Empty(t, first.Choices[0].Delta.Content)

	var finishIdx = -1
	for i, e := range events[:len(events)-1] {
		var chunk wire.StreamChunk
		require.NoError(t, json.Unmarshal([]byte(e), &chunk))
		if chunk.Choices[0].FinishReason != nil {
			finishIdx = i
		}
	}
	assert.Equal(t, len(events)-2, finishIdx, "finish_reason chunk must be the last one before [DONE]")
}

func TestListModelsAndHealthAndRoot(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/v1/models", nil)
	rec := httptest.NewRecorder()
	s.ListModels(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var models wire.ModelsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &models))
	assert.Equal(t, "list", models.Object)
	assert.NotEmpty(t, models.Data)

	req = httptest.NewRequest(http.MethodGet, "/health", nil)
	rec = httptest.NewRecorder()
	s.Health(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	rec = httptest.NewRecorder()
	s.Root(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Ok")
}
