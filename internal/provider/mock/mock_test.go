package mock

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rakunlabs/inference-gateway/internal/wire"
)

func writeFixture(t *testing.T, dir, name, contents string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(contents), 0o644))
}

func TestGenerate_HappyPath(t *testing.T) {
	dir := t.TempDir()
	writeFixture(t, dir, "demo.yaml", `
responses:
  - text: "hello"
    finish_reason: stop
    prompt_tokens: 2
    completion_tokens: 1
    total_tokens: 3
`)

	p, err := New(dir)
	require.NoError(t, err)

	req := &wire.CompletionRequest{
		Model:    "mock-demo",
		Messages: []wire.Message{{Role: "user"}},
	}
	resp, err := p.Generate(context.Background(), req, "mock-demo", nil)
	require.NoError(t, err)

	require.Len(t, resp.Choices, 1)
	assert.Equal(t, "assistant", resp.Choices[0].Message.Role)
	assert.Equal(t, "hello", *resp.Choices[0].Message.Content)
	assert.Equal(t, "stop", resp.Choices[0].FinishReason)
	require.NotNil(t, resp.Usage)
	assert.Equal(t, wire.Usage{PromptTokens: 2, CompletionTokens: 1, TotalTokens: 3}, *resp.Usage)
}

func TestGenerate_ExtendedResponseMode(t *testing.T) {
	dir := t.TempDir()
	writeFixture(t, dir, "demo.yaml", `
responses:
  - text: "hello"
    finish_reason: stop
`)

	p, err := New(dir)
	require.NoError(t, err)

	req := &wire.CompletionRequest{
		Model:        "mock-demo",
		Messages:     []wire.Message{{Role: "user"}},
		ResponseMode: wire.ResponseModeExtended,
	}
	resp, err := p.Generate(context.Background(), req, "mock-demo", nil)
	require.NoError(t, err)

	require.NotNil(t, resp.ProviderExtensions)
	assert.Equal(t, "mock", resp.ProviderExtensions.Provider)
	assert.Equal(t, "demo", resp.ProviderExtensions.Data["scenario"])
	assert.Equal(t, "first", resp.ProviderExtensions.Data["mode"])
}

func TestListModels(t *testing.T) {
	dir := t.TempDir()
	writeFixture(t, dir, "demo.yaml", "responses:\n  - text: hi\n")
	writeFixture(t, dir, "other.yaml", "responses:\n  - text: hi\n")

	p, err := New(dir)
	require.NoError(t, err)

	models, err := p.ListModels(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"mock-demo", "mock-other"}, models)
}

func TestExtractScenario_RequiresPrefix(t *testing.T) {
	dir := t.TempDir()
	p, err := New(dir)
	require.NoError(t, err)

	req := &wire.CompletionRequest{Model: "no-prefix", Messages: []wire.Message{{Role: "user"}}}
	_, err = p.Generate(context.Background(), req, "no-prefix", nil)
	require.Error(t, err)
}

func TestDefaultYAMLFallback(t *testing.T) {
	dir := t.TempDir()
	writeFixture(t, dir, "default.yaml", "responses:\n  - text: fallback\n    finish_reason: stop\n")

	p, err := New(dir)
	require.NoError(t, err)

	req := &wire.CompletionRequest{Model: "mock-missing", Messages: []wire.Message{{Role: "user"}}}
	resp, err := p.Generate(context.Background(), req, "mock-missing", nil)
	require.NoError(t, err)
	assert.Equal(t, "fallback", *resp.Choices[0].Message.Content)
}

func TestNew_RejectsMissingDir(t *testing.T) {
	_, err := New(filepath.Join(t.TempDir(), "does-not-exist"))
	assert.Error(t, err)
}
