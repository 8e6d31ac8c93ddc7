package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rakunlabs/inference-gateway/internal/apierr"
	"github.com/rakunlabs/inference-gateway/internal/httpclient"
	"github.com/rakunlabs/inference-gateway/internal/wire"
)

func TestNew_RequiresAPIKey(t *testing.T) {
	_, err := New("", "", "", httpclient.Config{}, "", false)
	assert.Error(t, err)
}

func TestGenerate_InsufficientQuotaMapsTo429RateLimit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"error":{"message":"quota","type":"insufficient_quota","code":"insufficient_quota"}}`))
	}))
	defer srv.Close()

	p, err := New("sk-test", "", srv.URL, httpclient.Config{TimeoutSecs: 5}, "", false)
	require.NoError(t, err)

	req := &wire.CompletionRequest{Model: "gpt-4", Messages: []wire.Message{{Role: "user"}}}
	_, err = p.Generate(context.Background(), req, "gpt-4", nil)
	require.Error(t, err)

	apiErr, ok := err.(*apierr.Error)
	require.True(t, ok)
	assert.Equal(t, http.StatusTooManyRequests, apiErr.Status)
	assert.Equal(t, "rate_limit_error", apiErr.Body().Error.Type)
	assert.Contains(t, apiErr.Body().Error.Message, "quota")
}

func TestGenerate_ModelNotFoundMapsToModelNotAvailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"error":{"message":"The model gpt-9 does not exist","type":"model_not_found"}}`))
	}))
	defer srv.Close()

	p, err := New("sk-test", "", srv.URL, httpclient.Config{TimeoutSecs: 5}, "", false)
	require.NoError(t, err)

	req := &wire.CompletionRequest{Model: "gpt-9", Messages: []wire.Message{{Role: "user"}}}
	_, err = p.Generate(context.Background(), req, "gpt-9", nil)
	require.Error(t, err)

	apiErr, ok := err.(*apierr.Error)
	require.True(t, ok)
	assert.Equal(t, "gpt-9", extractModel("The model gpt-9 does not exist"))
	assert.Equal(t, "model_not_found", apiErr.Body().Error.Code)
}

func TestGenerate_InvalidAPIKeyMapsToConfigurationError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"error":{"message":"bad key","type":"invalid_api_key"}}`))
	}))
	defer srv.Close()

	p, err := New("sk-test", "", srv.URL, httpclient.Config{TimeoutSecs: 5}, "", false)
	require.NoError(t, err)

	req := &wire.CompletionRequest{Model: "gpt-4", Messages: []wire.Message{{Role: "user"}}}
	_, err = p.Generate(context.Background(), req, "gpt-4", nil)
	require.Error(t, err)

	apiErr, ok := err.(*apierr.Error)
	require.True(t, ok)
	assert.Equal(t, http.StatusInternalServerError, apiErr.Status)
}

func TestValidateExtensions_AlwaysRejectsAnyKey(t *testing.T) {
	p := &Provider{}
	v, _ := json.Marshal(1)
	_, err := p.ValidateExtensions(map[string]json.RawMessage{"top_k": v})
	assert.Error(t, err)
}
