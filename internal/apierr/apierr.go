// Package apierr implements the error taxonomy from the request-pipeline
// spec: every failure carries enough context to build an OpenAI-shape
// wire.ErrorBody plus an HTTP status. Generalises the teacher's
// httpResponseJSON(w, map[string]any{"error": ...}, code) call sites into a
// single typed error so adapters and handlers don't hand-build maps, and
// folds in the original_source error-type mapping (providers/openai.rs,
// error.rs) instead of reinventing one.
package apierr

import (
	"fmt"

	"github.com/rakunlabs/inference-gateway/internal/wire"
)

// Error is a gateway error carrying the HTTP status and OpenAI-shape detail
// to emit for it.
type Error struct {
	Status int
	Detail wire.ErrorDetail
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Detail.Type, e.Detail.Message)
}

// Body renders the error as the wire envelope.
func (e *Error) Body() wire.ErrorBody {
	return wire.ErrorBody{Error: e.Detail}
}

func newErr(status int, errType, message, param, code string) *Error {
	return &Error{
		Status: status,
		Detail: wire.ErrorDetail{
			Message: message,
			Type:    errType,
			Param:   param,
			Code:    code,
		},
	}
}

func EmptyMessages() *Error {
	return newErr(400, "invalid_request_error", "messages must not be empty", "messages", "")
}

func NoContent() *Error {
	return newErr(400, "invalid_request_error",
		"at least one message must have content, tool_calls, or tool_call_id", "messages", "")
}

func OutOfRange(param, value, min, max string) *Error {
	return newErr(400, "invalid_request_error",
		fmt.Sprintf("%s (%s) must be between %s and %s", param, value, min, max), param, "")
}

func InvalidLogitBiasKey(key string) *Error {
	return newErr(400, "invalid_request_error",
		fmt.Sprintf("logit_bias key %q must parse as an integer token id", key), "logit_bias", "")
}

func InvalidLogitBiasValue(key, value string) *Error {
	return newErr(400, "invalid_request_error",
		fmt.Sprintf("logit_bias[%s] (%s) must be a number between -100 and 100", key, value), "logit_bias", "")
}

func ModelNotInAllowedList(model string, allowed map[string]struct{}) *Error {
	return newErr(400, "invalid_request_error",
		fmt.Sprintf("model %q is not in the allowed model list", model), "model", "model_not_found")
}

// StreamingNotSupported maps to unsupported_parameter per original_source's
// validations.rs, not a generic capability error.
func StreamingNotSupported() *Error {
	return newErr(400, "invalid_request_error",
		"the selected provider does not support streaming", "stream", "unsupported_parameter")
}

func InvalidExtension(param, reason string) *Error {
	return newErr(400, "invalid_request_error",
		fmt.Sprintf("extension %q is invalid: %s", param, reason), param, "")
}

func ModelNotAvailable(requested string, available []string) *Error {
	msg := fmt.Sprintf("model %q is not available", requested)
	if len(available) > 0 {
		msg = fmt.Sprintf("model %q is not available (server reports %v)", requested, available)
	}
	return newErr(400, "invalid_request_error", msg, "model", "model_not_found")
}

func ProviderConnectionFailed(message string) *Error {
	return newErr(502, "api_error", message, "", "provider_connection_failed")
}

func ProviderInvalidResponse(message string) *Error {
	return newErr(500, "api_error", message, "", "provider_invalid_response")
}

func ProviderTimeout() *Error {
	return newErr(504, "timeout_error", "request to provider timed out", "", "provider_timeout")
}

// ProviderRequestFailed maps an upstream HTTP status to the taxonomy's
// error.type, per §7: 401→authentication_error, 403→permission_error,
// 429→rate_limit_error, else api_error. status<=0 (transport-level
// failure) falls back to 500/api_error.
func ProviderRequestFailed(status int, message string) *Error {
	httpStatus := status
	if httpStatus <= 0 {
		httpStatus = 500
	}

	errType := "api_error"
	switch status {
	case 401:
		errType = "authentication_error"
	case 403:
		errType = "permission_error"
	case 429:
		errType = "rate_limit_error"
	}

	return newErr(httpStatus, errType, message, "", errType)
}

func Configuration(message string) *Error {
	return newErr(500, "api_error", message, "", "configuration_error")
}

// StreamError is raised in-band after the first SSE byte has been sent;
// the handler never turns it into an HTTP status, only an SSE event.
func StreamError(message string) *Error {
	return newErr(500, "api_error", message, "", "")
}
