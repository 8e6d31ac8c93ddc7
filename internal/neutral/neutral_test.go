package neutral

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rakunlabs/inference-gateway/internal/wire"
)

func TestNormalizeStopSequences(t *testing.T) {
	assert.Nil(t, NormalizeStopSequences(nil))

	single, _ := json.Marshal("stop")
	assert.Equal(t, []string{"stop"}, NormalizeStopSequences(single))

	multi, _ := json.Marshal([]string{"a", "b"})
	assert.Equal(t, []string{"a", "b"}, NormalizeStopSequences(multi))
}

func TestStandardCompletionResponse_UsagePresence(t *testing.T) {
	req := &wire.CompletionRequest{Model: "mock-demo"}

	withTokens := &InferenceResponse{Text: "hi", FinishReason: FinishStop, PromptTokens: intPtr(1)}
	resp := StandardCompletionResponse(withTokens, req, "mock")
	require.NotNil(t, resp.Usage)

	withoutTokens := &InferenceResponse{Text: "hi", FinishReason: FinishStop}
	resp = StandardCompletionResponse(withoutTokens, req, "mock")
	assert.Nil(t, resp.Usage)
}

func TestStandardCompletionResponse_ProviderExtensionsIffExtendedAndNonEmpty(t *testing.T) {
	iresp := &InferenceResponse{
		Text:         "hi",
		FinishReason: FinishStop,
		ProviderData: map[string]any{"scenario": "demo"},
	}

	standardReq := &wire.CompletionRequest{Model: "mock-demo", ResponseMode: wire.ResponseModeStandard}
	resp := StandardCompletionResponse(iresp, standardReq, "mock")
	assert.Nil(t, resp.ProviderExtensions)

	extendedReq := &wire.CompletionRequest{Model: "mock-demo", ResponseMode: wire.ResponseModeExtended}
	resp = StandardCompletionResponse(iresp, extendedReq, "mock")
	require.NotNil(t, resp.ProviderExtensions)
	assert.Equal(t, "mock", resp.ProviderExtensions.Provider)

	emptyData := &InferenceResponse{Text: "hi", FinishReason: FinishStop}
	resp = StandardCompletionResponse(emptyData, extendedReq, "mock")
	assert.Nil(t, resp.ProviderExtensions)
}

func TestStandardCompletionResponse_IDFallback(t *testing.T) {
	req := &wire.CompletionRequest{Model: "mock-demo"}
	resp := StandardCompletionResponse(&InferenceResponse{FinishReason: FinishStop}, req, "mock")
	assert.Regexp(t, "^chatcmpl-", resp.ID)

	withID := &InferenceResponse{FinishReason: FinishStop, ProviderRequestID: "mock-demo-01"}
	resp = StandardCompletionResponse(withID, req, "mock")
	assert.Equal(t, "mock-demo-01", resp.ID)
}

func intPtr(v int) *int { return &v }
