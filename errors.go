package oachat

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/tidwall/gjson"
)

var (
	// ErrCancelled is returned by a stream that stopped because it was
	// cancelled. It is a cooperative stop, not a failure of the service.
	ErrCancelled = errors.New("request cancelled")

	// ErrSuperseded is the cancellation cause of a stream replaced by a newer
	// stream for the same conversation. It matches ErrCancelled.
	ErrSuperseded = fmt.Errorf("%w: superseded by a newer request", ErrCancelled)

	// ErrStreamIdle is returned when a stream receives no data for longer than
	// the configured stream timeout.
	ErrStreamIdle = errors.New("stream timed out waiting for data")
)

// ConfigurationError reports an invalid client configuration or an invalid
// request URL. It is not retryable.
type ConfigurationError struct {
	Field string
	Value string
	Err   error
}

func (e *ConfigurationError) Error() string {
	if e.Value != "" {
		return fmt.Sprintf("invalid configuration: %s %q: %v", e.Field, e.Value, e.Err)
	}
	return fmt.Sprintf("invalid configuration: %s: %v", e.Field, e.Err)
}

func (e *ConfigurationError) Unwrap() error {
	return e.Err
}

// HTTPError reports a non-success status whose body did not decode as a
// structured service error.
type HTTPError struct {
	StatusCode int
	Reason     string
	Body       []byte
}

func newHTTPError(status int, body []byte) *HTTPError {
	reason := http.StatusText(status)
	if reason == "" {
		reason = "unknown status"
	}
	return &HTTPError{StatusCode: status, Reason: reason, Body: body}
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP %d: %s.", e.StatusCode, strings.ToLower(e.Reason))
}

// ServiceError is the structured error returned by the service.
type ServiceError struct {
	StatusCode int
	Message    string
	Type       string
	Code       string
	Param      string
}

func (e *ServiceError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s (%s)", e.Message, e.Code)
	}
	return e.Message
}

// decodeServiceError extracts a ServiceError from an error body. Both the
// nested `{"error":{"message":...}}` shape and a flat `{"message":...}` shape
// are recognised. It returns nil when the body carries no message.
func decodeServiceError(status int, body []byte) *ServiceError {
	if len(body) == 0 || !gjson.ValidBytes(body) {
		return nil
	}
	doc := gjson.ParseBytes(body)
	if !doc.IsObject() {
		return nil
	}

	errObj := doc.Get("error")
	switch {
	case errObj.IsObject():
	case errObj.Type == gjson.String:
		return &ServiceError{StatusCode: status, Message: errObj.String()}
	default:
		errObj = doc
	}

	msg := errObj.Get("message")
	if msg.Type != gjson.String || msg.String() == "" {
		return nil
	}
	return &ServiceError{
		StatusCode: status,
		Message:    msg.String(),
		Type:       errObj.Get("type").String(),
		Code:       errObj.Get("code").String(),
		Param:      errObj.Get("param").String(),
	}
}

// UnexpectedContentTypeError reports a success response whose declared
// content type is not one of the accepted types.
type UnexpectedContentTypeError struct {
	ContentType string
}

func (e *UnexpectedContentTypeError) Error() string {
	return fmt.Sprintf("HTTP invalid content type: %s.", e.ContentType)
}

// EmptyResponseError reports a success response without a body.
type EmptyResponseError struct {
	StatusCode int
}

func (e *EmptyResponseError) Error() string {
	return "Empty response."
}

// MalformedStreamError reports a `data:` line whose payload is not valid JSON.
// The whole stream is abandoned when this happens.
type MalformedStreamError struct {
	Line string
	Err  error
}

func (e *MalformedStreamError) Error() string {
	return fmt.Sprintf("Bad stream data: %v", e.Err)
}

func (e *MalformedStreamError) Unwrap() error {
	return e.Err
}

// IsCancelled reports whether err is the result of a cooperative cancellation.
func IsCancelled(err error) bool {
	return errors.Is(err, ErrCancelled)
}
