package adapter

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ErrorKind classifies provider failures.
type ErrorKind string

const (
	KindAuth          ErrorKind = "auth"
	KindRateLimit     ErrorKind = "rate_limit"
	KindBadRequest    ErrorKind = "bad_request"
	KindModelNotFound ErrorKind = "model_not_found"
	KindTransport     ErrorKind = "transport"
	KindTimeout       ErrorKind = "timeout"
)

// Error is returned for every classified provider failure.
type Error struct {
	Kind       ErrorKind
	StatusCode int
	Model      string
	Message    string
	Err        error
}

func (e *Error) Error() string {
	var sb strings.Builder
	sb.WriteString("adapter: ")
	sb.WriteString(string(e.Kind))
	if e.StatusCode != 0 {
		fmt.Fprintf(&sb, " (status %d)", e.StatusCode)
	}
	if e.Model != "" {
		sb.WriteString(" model " + e.Model)
	}
	if e.Message != "" {
		sb.WriteString(": " + e.Message)
	}
	if e.Err != nil {
		sb.WriteString(": " + e.Err.Error())
	}
	return sb.String()
}

func (e *Error) Unwrap() error { return e.Err }

// UserMessage is the text shown to the user in place of a reply.
func (e *Error) UserMessage() string {
	switch e.Kind {
	case KindAuth:
		return "Invalid API key. Please check your API key configuration."
	case KindRateLimit:
		return "Rate limit exceeded. Please wait a moment and try again."
	case KindBadRequest:
		return "Bad request: " + e.detail()
	case KindModelNotFound:
		return "Model not found: " + e.detail() + ". Please check if the model is available."
	case KindTimeout:
		return "The response timed out. Please try again."
	default:
		return e.detail()
	}
}

func (e *Error) detail() string {
	switch {
	case e.Message != "":
		return e.Message
	case e.Err != nil:
		return e.Err.Error()
	case e.Model != "":
		return e.Model
	default:
		return "unknown error"
	}
}

// KindForStatus maps an HTTP status code to an error kind.
func KindForStatus(code int) ErrorKind {
	switch code {
	case http.StatusUnauthorized, http.StatusForbidden:
		return KindAuth
	case http.StatusTooManyRequests:
		return KindRateLimit
	case http.StatusBadRequest:
		return KindBadRequest
	case http.StatusNotFound:
		return KindModelNotFound
	default:
		return KindTransport
	}
}

// KindOf returns the kind of err, or "" when err is not an *Error.
func KindOf(err error) ErrorKind {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return ""
}

// IsKind reports whether err is an *Error of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	return KindOf(err) == kind
}

// statusError builds an *Error from a non-2xx response body.
func statusError(code int, model string, body []byte) *Error {
	return &Error{
		Kind:       KindForStatus(code),
		StatusCode: code,
		Model:      model,
		Message:    errorMessage(code, body),
	}
}

// errorMessage extracts a human-readable message from common provider
// error body shapes, falling back to the status text.
func errorMessage(code int, body []byte) string {
	var shaped struct {
		Error   json.RawMessage `json:"error"`
		Message string          `json:"message"`
	}
	if err := json.Unmarshal(body, &shaped); err == nil {
		if len(shaped.Error) > 0 {
			var nested struct {
				Message string `json:"message"`
			}
			if json.Unmarshal(shaped.Error, &nested) == nil && nested.Message != "" {
				return nested.Message
			}
			var plain string
			if json.Unmarshal(shaped.Error, &plain) == nil && plain != "" {
				return plain
			}
		}
		if shaped.Message != "" {
			return shaped.Message
		}
	}
	if text := strings.TrimSpace(string(body)); text != "" && len(text) < 300 && !strings.HasPrefix(text, "{") {
		return text
	}
	return http.StatusText(code)
}
