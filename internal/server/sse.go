package server

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/rakunlabs/inference-gateway/internal/apierr"
	"github.com/rakunlabs/inference-gateway/internal/wire"
)

// sseHeartbeatInterval is the keep-alive cadence spec §4.8 requires while
// waiting on upstream chunks, so intermediaries don't time out an idle
// connection during a slow model response.
const sseHeartbeatInterval = 15 * time.Second

// handleStreamingChat runs the adapter's Stream path and transcodes every
// produced chunk into an SSE event, per spec §4.8/§5. Adapter errors raised
// after the first byte is sent are emitted in-band rather than changing the
// HTTP status, since headers are already committed.
func (s *Server) handleStreamingChat(w http.ResponseWriter, r *http.Request, req *wire.CompletionRequest, model string, extensions map[string]json.RawMessage) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		httpError(w, apierr.Configuration("streaming not supported by this server"))
		return
	}

	chunks, err := s.provider.Stream(r.Context(), req, model, extensions)
	if err != nil {
		httpError(w, err)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	heartbeat := time.NewTicker(sseHeartbeatInterval)
	defer heartbeat.Stop()

	for {
		select {
		case ev, ok := <-chunks:
			if !ok {
				fmt.Fprint(w, "data: [DONE]\n\n")
				flusher.Flush()
				return
			}
			if ev.Err != nil {
				slog.Error("stream error", "provider", s.provider.Name(), "model", model, "error", ev.Err)
				writeSSEError(w, flusher, ev.Err)
				continue
			}
			writeSSEChunk(w, flusher, ev.Chunk)
		case <-heartbeat.C:
			fmt.Fprint(w, ": keep-alive\n\n")
			flusher.Flush()
		case <-r.Context().Done():
			return
		}
	}
}

func writeSSEChunk(w http.ResponseWriter, flusher http.Flusher, chunk *wire.StreamChunk) {
	data, _ := json.Marshal(chunk)
	fmt.Fprintf(w, "data: %s\n\n", data)
	flusher.Flush()
}

// writeSSEError emits a single in-band SSE error event without terminating
// the stream — the adapter's channel may still produce further chunks or
// close it, per spec §7 ("propagation policy").
func writeSSEError(w http.ResponseWriter, flusher http.Flusher, err error) {
	var body wire.ErrorBody
	if apiErr, ok := err.(*apierr.Error); ok {
		body = apiErr.Body()
	} else {
		body = wire.ErrorBody{Error: wire.ErrorDetail{Message: err.Error(), Type: "api_error"}}
	}

	data, _ := json.Marshal(body)
	fmt.Fprintf(w, "data: %s\n\n", data)
	flusher.Flush()
}
