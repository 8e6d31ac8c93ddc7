// Package validator implements the pure, synchronous request checks shared
// by every backend adapter: shape, numeric ranges, model resolution against
// an allow-list, and the streaming capability gate. Grounded on
// original_source's validations.rs, including its exact check ordering.
package validator

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/rakunlabs/inference-gateway/internal/apierr"
	"github.com/rakunlabs/inference-gateway/internal/wire"
)

// ValidateRequest runs the full shape/range pipeline in the fixed order the
// original implementation uses, short-circuiting on the first failure.
func ValidateRequest(req *wire.CompletionRequest) error {
	if len(req.Messages) == 0 {
		return apierr.EmptyMessages()
	}

	if !anyMessageHasContent(req.Messages) {
		return apierr.NoContent()
	}

	if req.MaxTokens != nil {
		if v := *req.MaxTokens; v < 1 || v > 128000 {
			return apierr.OutOfRange("max_tokens", fmt.Sprintf("%d", v), "1", "128000")
		}
	}
	if req.Temperature != nil {
		if v := *req.Temperature; v < 0.0 || v > 2.0 {
			return apierr.OutOfRange("temperature", fmt.Sprintf("%v", v), "0.0", "2.0")
		}
	}
	if req.TopP != nil {
		if v := *req.TopP; v < 0.0 || v > 1.0 {
			return apierr.OutOfRange("top_p", fmt.Sprintf("%v", v), "0.0", "1.0")
		}
	}
	if req.FrequencyPenalty != nil {
		if v := *req.FrequencyPenalty; v < -2.0 || v > 2.0 {
			return apierr.OutOfRange("frequency_penalty", fmt.Sprintf("%v", v), "-2.0", "2.0")
		}
	}
	if req.PresencePenalty != nil {
		if v := *req.PresencePenalty; v < -2.0 || v > 2.0 {
			return apierr.OutOfRange("presence_penalty", fmt.Sprintf("%v", v), "-2.0", "2.0")
		}
	}
	if req.TopLogprobs != nil {
		if v := *req.TopLogprobs; v < 0 || v > 20 {
			return apierr.OutOfRange("top_logprobs", fmt.Sprintf("%d", v), "0", "20")
		}
	}
	if req.N != nil {
		if v := *req.N; v < 1 || v > 10 {
			return apierr.OutOfRange("n", fmt.Sprintf("%d", v), "1", "10")
		}
	}
	if err := validateLogitBias(req.LogitBias); err != nil {
		return err
	}

	return nil
}

// anyMessageHasContent implements the NoContent exemption exactly as the
// original does: a message counts as having content if its content field
// is present and not null (an empty string counts), it has a tool_call_id,
// or it has a present (even zero-length) ToolCalls slice.
func anyMessageHasContent(messages []wire.Message) bool {
	for _, m := range messages {
		if m.HasContent() || m.ToolCallID != "" || m.HasToolCalls() {
			return true
		}
	}
	return false
}

// validateLogitBias requires every key to parse as an integer token id and
// every value to be a JSON number within [-100, 100]. Keys are parsed with
// strconv.ParseInt, matching the original's str::parse::<i64>(), so leading
// zeros (e.g. "007") are accepted the same way the original accepts them;
// json.Unmarshal would reject them as invalid JSON number syntax.
func validateLogitBias(bias map[string]json.RawMessage) error {
	for key, raw := range bias {
		if _, err := strconv.ParseInt(key, 10, 64); err != nil {
			return apierr.InvalidLogitBiasKey(key)
		}

		var value float64
		if err := json.Unmarshal(raw, &value); err != nil {
			return apierr.InvalidLogitBiasValue(key, string(raw))
		}
		if value < -100.0 || value > 100.0 {
			return apierr.InvalidLogitBiasValue(key, string(raw))
		}
	}
	return nil
}

// ResolveModel returns requested if present, else the configured default.
// If requested is set and an allow-list is configured, absence from the
// list fails the request. The allow-list is never consulted on the
// default-model path, matching determine_model/validate_model_allowed in
// original_source's validations.rs: the default model is trusted by
// configuration, not re-validated against the list meant to constrain
// caller-supplied values.
func ResolveModel(requested, defaultModel string, allowed map[string]struct{}) (string, error) {
	if requested == "" {
		return defaultModel, nil
	}

	if allowed != nil {
		if _, ok := allowed[requested]; !ok {
			return "", apierr.ModelNotInAllowedList(requested, allowed)
		}
	}

	return requested, nil
}

// GateCapabilities fails StreamingNotSupported when the request wants a
// stream but the chosen adapter cannot produce one.
func GateCapabilities(req *wire.CompletionRequest, supportsStreaming bool) error {
	if req.Stream && !supportsStreaming {
		return apierr.StreamingNotSupported()
	}
	return nil
}
