package genai

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// Kind is the failure taxonomy for calls to the text-generation backend.
// It is derived from the transport outcome, the HTTP status and the
// payload shape, never from matching human-readable message text.
type Kind int

const (
	// KindNetwork: transport or connection failure, no HTTP response.
	KindNetwork Kind = iota
	// KindAuth: missing or rejected credential.
	KindAuth
	// KindMalformed: success status but the body is not the expected shape.
	KindMalformed
	// KindEmptyReply: parseable response with no text content.
	KindEmptyReply
	// KindOverloaded: the backend signals capacity exhaustion.
	KindOverloaded
	// KindUpstream: any other non-success status, upstream message kept
	// verbatim for diagnostics.
	KindUpstream
)

func (k Kind) String() string {
	switch k {
	case KindNetwork:
		return "network_error"
	case KindAuth:
		return "auth_error"
	case KindMalformed:
		return "malformed_response"
	case KindEmptyReply:
		return "empty_reply"
	case KindOverloaded:
		return "overloaded"
	default:
		return "upstream_error"
	}
}

// Error is the classified outcome of a failed backend call.
type Error struct {
	Kind    Kind
	Status  int
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("genai: %s: %s", e.Kind, e.Message)
	}
	if e.Err != nil {
		return fmt.Sprintf("genai: %s: %v", e.Kind, e.Err)
	}
	return "genai: " + e.Kind.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

type apiError struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

// ClassifyStatus maps a non-2xx response to the taxonomy. The upstream
// error message is pulled out of the standard {"error":{...}} envelope
// when present, with the raw body as a fallback.
func ClassifyStatus(status int, body []byte) *Error {
	message := string(body)
	var parsed apiError
	if err := json.Unmarshal(body, &parsed); err == nil && parsed.Error.Message != "" {
		message = parsed.Error.Message
	}

	switch status {
	case http.StatusUnauthorized, http.StatusForbidden:
		return &Error{Kind: KindAuth, Status: status, Message: message}
	case http.StatusTooManyRequests, http.StatusServiceUnavailable:
		return &Error{Kind: KindOverloaded, Status: status, Message: message}
	default:
		return &Error{Kind: KindUpstream, Status: status, Message: message}
	}
}
