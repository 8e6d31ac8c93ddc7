// Package mock implements the file-backed deterministic provider adapter
// used for tests and local development. Grounded on
// original_source/.../providers/mock.rs: YAML fixture files per scenario,
// an in-process cache keyed by scenario name, and first/sequential/random
// selection modes (sequential faithfully left as a documented
// fall-through to first, matching the original's own TODO).
package mock

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"gopkg.in/yaml.v3"

	"github.com/rakunlabs/inference-gateway/internal/apierr"
	"github.com/rakunlabs/inference-gateway/internal/httpclient"
	"github.com/rakunlabs/inference-gateway/internal/neutral"
	"github.com/rakunlabs/inference-gateway/internal/provider"
	"github.com/rakunlabs/inference-gateway/internal/wire"
)

// responseFile is the structure of a mock response YAML file.
type responseFile struct {
	Responses []response `yaml:"responses"`
	Settings  settings   `yaml:"settings"`
}

type response struct {
	Text              string          `yaml:"text"`
	ModelUsed         string          `yaml:"model_used"`
	PromptTokens      *int            `yaml:"prompt_tokens"`
	CompletionTokens  *int            `yaml:"completion_tokens"`
	TotalTokens       *int            `yaml:"total_tokens"`
	FinishReason      string          `yaml:"finish_reason"`
	DelayMS           *int            `yaml:"delay_ms"`
	SystemFingerprint string          `yaml:"system_fingerprint"`
	ToolCalls         []wire.ToolCall `yaml:"tool_calls"`
	Logprobs          json.RawMessage `yaml:"logprobs"`
}

type settings struct {
	Mode         string `yaml:"mode"`
	ChunkDelayMS *int   `yaml:"chunk_delay_ms"`
}

const defaultChunkDelayMS = 50

// Provider is the mock adapter. It holds the single mutex-guarded fixture
// cache the spec calls out as process-global state (c).
type Provider struct {
	responsesDir string

	mu    sync.Mutex
	cache map[string]*responseFile
}

// New validates responsesDir exists and is a directory, per spec §4.7.
func New(responsesDir string) (*Provider, error) {
	info, err := os.Stat(responsesDir)
	if err != nil {
		return nil, apierr.Configuration(fmt.Sprintf("mock responses directory does not exist: %s", responsesDir))
	}
	if !info.IsDir() {
		return nil, apierr.Configuration(fmt.Sprintf("mock responses path is not a directory: %s", responsesDir))
	}

	return &Provider{
		responsesDir: responsesDir,
		cache:        make(map[string]*responseFile),
	}, nil
}

func (p *Provider) Name() string { return "mock" }

func (p *Provider) SupportsStreaming() bool        { return true }
func (p *Provider) SupportedExtensions() []string  { return nil }
func (p *Provider) HTTPConfig() *httpclient.Config { return nil }

func (p *Provider) ValidateExtensions(extensions map[string]json.RawMessage) (map[string]json.RawMessage, error) {
	return provider.ValidateExtensionsDefault(extensions, p.SupportedExtensions())
}

func (p *Provider) HealthCheck(ctx context.Context) error {
	info, err := os.Stat(p.responsesDir)
	if err != nil || !info.IsDir() {
		return apierr.Configuration(fmt.Sprintf("mock responses directory no longer exists: %s", p.responsesDir))
	}
	return nil
}

func (p *Provider) ListModels(ctx context.Context) ([]string, error) {
	entries, err := os.ReadDir(p.responsesDir)
	if err != nil {
		return nil, apierr.Configuration(fmt.Sprintf("read mock responses directory: %v", err))
	}

	var models []string
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".yaml" {
			continue
		}
		stem := strings.TrimSuffix(entry.Name(), ".yaml")
		models = append(models, "mock-"+stem)
	}
	sort.Strings(models)

	return models, nil
}

func (p *Provider) extractScenario(model string) (string, error) {
	if !strings.HasPrefix(model, "mock-") {
		return "", apierr.Configuration(fmt.Sprintf("mock provider requires model names starting with %q, got: %s", "mock-", model))
	}
	return strings.TrimPrefix(model, "mock-"), nil
}

func (p *Provider) loadResponses(scenario string) (*responseFile, error) {
	p.mu.Lock()
	if cached, ok := p.cache[scenario]; ok {
		p.mu.Unlock()
		return cached, nil
	}
	p.mu.Unlock()

	path := filepath.Join(p.responsesDir, scenario+".yaml")
	if _, err := os.Stat(path); err != nil {
		defaultPath := filepath.Join(p.responsesDir, "default.yaml")
		if _, derr := os.Stat(defaultPath); derr == nil {
			return p.loadFile(defaultPath, "default")
		}
		return nil, apierr.Configuration(fmt.Sprintf("no mock responses found for scenario: %s (looked for %s)", scenario, path))
	}

	return p.loadFile(path, scenario)
}

func (p *Provider) loadFile(path, cacheKey string) (*responseFile, error) {
	contents, err := os.ReadFile(path)
	if err != nil {
		return nil, apierr.Configuration(fmt.Sprintf("read mock file %s: %v", path, err))
	}

	var rf responseFile
	if err := yaml.Unmarshal(contents, &rf); err != nil {
		return nil, apierr.Configuration(fmt.Sprintf("parse yaml from %s: %v", path, err))
	}
	if len(rf.Responses) == 0 {
		return nil, apierr.Configuration(fmt.Sprintf("no responses defined in %s", path))
	}
	if rf.Settings.Mode == "" {
		rf.Settings.Mode = "first"
	}

	p.mu.Lock()
	p.cache[cacheKey] = &rf
	p.mu.Unlock()

	return &rf, nil
}

// selectResponse picks an element per the configured mode. sequential is a
// documented no-op that behaves as first, matching the original's own
// "TODO: implement proper sequential tracking" rather than inventing
// per-process counter state.
func (p *Provider) selectResponse(rf *responseFile) response {
	switch rf.Settings.Mode {
	case "random":
		return rf.Responses[rand.Intn(len(rf.Responses))]
	default: // "first", "sequential"
		return rf.Responses[0]
	}
}

func (p *Provider) BuildInferenceRequest(req *wire.CompletionRequest, model string, extensions map[string]json.RawMessage) *neutral.InferenceRequest {
	return neutral.BuildInferenceRequest(req, model, extensions)
}

func (p *Provider) Execute(ctx context.Context, ireq *neutral.InferenceRequest) (*neutral.InferenceResponse, error) {
	scenario, err := p.extractScenario(ireq.Model)
	if err != nil {
		return nil, err
	}

	rf, err := p.loadResponses(scenario)
	if err != nil {
		return nil, err
	}

	mr := p.selectResponse(rf)

	if mr.DelayMS != nil {
		select {
		case <-time.After(time.Duration(*mr.DelayMS) * time.Millisecond):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	modelUsed := mr.ModelUsed
	if modelUsed == "" {
		modelUsed = "mock-model"
	}
	finishReason := mr.FinishReason
	if finishReason == "" {
		finishReason = neutral.FinishStop
	}

	return &neutral.InferenceResponse{
		Text:              mr.Text,
		ModelUsed:         modelUsed,
		FinishReason:      finishReason,
		PromptTokens:      mr.PromptTokens,
		CompletionTokens:  mr.CompletionTokens,
		TotalTokens:       mr.TotalTokens,
		ProviderRequestID: fmt.Sprintf("mock-%s-%s", scenario, ulid.Make().String()),
		SystemFingerprint: mr.SystemFingerprint,
		ToolCalls:         mr.ToolCalls,
		Logprobs:          mr.Logprobs,
		ProviderData: map[string]any{
			"scenario": scenario,
			"mode":     rf.Settings.Mode,
		},
	}, nil
}

func (p *Provider) BuildCompletionResponse(resp *neutral.InferenceResponse, original *wire.CompletionRequest) *wire.CompletionResponse {
	return neutral.StandardCompletionResponse(resp, original, p.Name())
}

func (p *Provider) Generate(ctx context.Context, req *wire.CompletionRequest, model string, extensions map[string]json.RawMessage) (*wire.CompletionResponse, error) {
	return provider.DefaultGenerate(ctx, p, req, model, extensions)
}

// Stream tokenises the fixture text on whitespace and emits one content
// chunk per token spaced by chunk_delay_ms (or the response's delay_ms if
// set), preceded by a role-only chunk and followed by a finish_reason
// chunk, which carries usage when the fixture sets any token count.
func (p *Provider) Stream(ctx context.Context, req *wire.CompletionRequest, model string, extensions map[string]json.RawMessage) (<-chan provider.StreamEvent, error) {
	scenario, err := p.extractScenario(model)
	if err != nil {
		return nil, err
	}

	rf, err := p.loadResponses(scenario)
	if err != nil {
		return nil, err
	}

	mr := p.selectResponse(rf)

	ch := make(chan provider.StreamEvent)
	go p.streamLoop(ctx, ch, scenario, rf, mr, model)

	return ch, nil
}

func (p *Provider) streamLoop(ctx context.Context, ch chan<- provider.StreamEvent, scenario string, rf *responseFile, mr response, requestedModel string) {
	defer close(ch)

	id := fmt.Sprintf("mock-%s-%s", scenario, ulid.Make().String())
	created := time.Now().Unix()

	chunkDelay := defaultChunkDelayMS
	if rf.Settings.ChunkDelayMS != nil {
		chunkDelay = *rf.Settings.ChunkDelayMS
	}
	if mr.DelayMS != nil {
		chunkDelay = *mr.DelayMS
	}

	base := func() wire.StreamChunk {
		return wire.StreamChunk{ID: id, Object: "chat.completion.chunk", Created: created, Model: requestedModel}
	}

	roleChunk := base()
	roleChunk.Choices = []wire.ChunkChoice{{Index: 0, Delta: wire.ChunkDelta{Role: "assistant"}}}
	if !sendChunk(ctx, ch, &roleChunk) {
		return
	}

	for _, tok := range tokenize(mr.Text) {
		select {
		case <-time.After(time.Duration(chunkDelay) * time.Millisecond):
		case <-ctx.Done():
			return
		}

		c := base()
		c.Choices = []wire.ChunkChoice{{Index: 0, Delta: wire.ChunkDelta{Content: tok}}}
		if !sendChunk(ctx, ch, &c) {
			return
		}
	}

	finishReason := mr.FinishReason
	if finishReason == "" {
		finishReason = neutral.FinishStop
	}

	final := base()
	final.Choices = []wire.ChunkChoice{{Index: 0, Delta: wire.ChunkDelta{}, FinishReason: &finishReason}}
	if mr.PromptTokens != nil || mr.CompletionTokens != nil || mr.TotalTokens != nil {
		final.Usage = &wire.Usage{
			PromptTokens:     intOrZero(mr.PromptTokens),
			CompletionTokens: intOrZero(mr.CompletionTokens),
			TotalTokens:      intOrZero(mr.TotalTokens),
		}
	}
	sendChunk(ctx, ch, &final)
}

func sendChunk(ctx context.Context, ch chan<- provider.StreamEvent, c *wire.StreamChunk) bool {
	select {
	case ch <- provider.StreamEvent{Chunk: c}:
		return true
	case <-ctx.Done():
		return false
	}
}

// tokenize splits text on whitespace, re-appending a trailing space to each
// token to match the original's "one 'word ' per token" framing.
func tokenize(text string) []string {
	fields := strings.Fields(text)
	out := make([]string, len(fields))
	for i, f := range fields {
		out[i] = f + " "
	}
	return out
}

func intOrZero(v *int) int {
	if v == nil {
		return 0
	}
	return *v
}
