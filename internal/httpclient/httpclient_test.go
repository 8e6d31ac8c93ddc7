package httpclient

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJoinURL(t *testing.T) {
	assert.Equal(t, "http://host/v1/models", joinURL("http://host/", "/v1/models"))
	assert.Equal(t, "http://host/v1/models", joinURL("http://host", "v1/models"))
}

func TestPostJSON_RetriesOn503ThenSucceeds(t *testing.T) {
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts <= 2 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	c, err := New(srv.URL, Config{MaxRetries: 3, RetryBackoffMS: 1, TimeoutSecs: 5}, http.Header{}, "", false)
	require.NoError(t, err)

	data, status, err := c.PostJSON(context.Background(), "x", []byte(`{}`))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, status)
	assert.Contains(t, string(data), "ok")
	assert.Equal(t, 3, attempts)
}

func TestPostJSON_GivesUpAfterMaxRetries(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c, err := New(srv.URL, Config{MaxRetries: 1, RetryBackoffMS: 1, TimeoutSecs: 5}, http.Header{}, "", false)
	require.NoError(t, err)

	_, _, err = c.PostJSON(context.Background(), "x", []byte(`{}`))
	assert.Error(t, err)
}

func TestPostJSON_NeverRetries4xx(t *testing.T) {
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	c, err := New(srv.URL, Config{MaxRetries: 3, RetryBackoffMS: 1, TimeoutSecs: 5}, http.Header{}, "", false)
	require.NoError(t, err)

	_, status, err := c.PostJSON(context.Background(), "x", []byte(`{}`))
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, 1, attempts)
}
