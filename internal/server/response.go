package server

import (
	"encoding/json"
	"net/http"

	"github.com/rakunlabs/inference-gateway/internal/apierr"
	"github.com/rakunlabs/inference-gateway/internal/wire"
)

func httpResponseJSON(w http.ResponseWriter, msg any, code int) {
	v, _ := json.Marshal(msg)
	httpResponseJSONByte(w, v, code)
}

func httpResponseJSONByte(w http.ResponseWriter, msg []byte, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(msg)
}

// httpError renders err as an OpenAI-shaped error body. apierr.Error carries
// its own status and wire.ErrorBody; anything else is an unmapped 500.
func httpError(w http.ResponseWriter, err error) {
	if apiErr, ok := err.(*apierr.Error); ok {
		httpResponseJSON(w, apiErr.Body(), apiErr.Status)
		return
	}
	httpResponseJSON(w, wire.ErrorBody{Error: wire.ErrorDetail{
		Message: err.Error(),
		Type:    "api_error",
	}}, http.StatusInternalServerError)
}
