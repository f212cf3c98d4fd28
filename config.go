package oachat

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/casualjim/oachat/pkg/uuidx"
)

const (
	DefaultBaseURL        = "https://api.openai.com/"
	DefaultUserAgent      = "oachat/1.0"
	DefaultVerifyModel    = "gpt-3.5-turbo"
	DefaultVerifyTimeout  = 20 * time.Second
	DefaultRequestTimeout = 30 * time.Second
	DefaultStreamTimeout  = 90 * time.Second
)

// DefaultContentTypes are the media types accepted for buffered responses.
var DefaultContentTypes = []string{"application/json", "text/json"}

// Config is the immutable configuration of a Client. New copies it, so
// changing a Config after the client is built has no effect.
type Config struct {
	// BaseURL is the service root. Request paths are resolved against it.
	BaseURL string
	// APIKey is sent as a bearer token. It may be empty for local services.
	APIKey string
	// UserAgent is sent with every request.
	UserAgent string
	// User identifies the caller to the service for abuse tracking.
	User string
	// VerifyModel is the model used by Verify.
	VerifyModel string
	// VerifyTimeout bounds a Verify call.
	VerifyTimeout time.Duration
	// RequestTimeout bounds ListModels and Complete calls.
	RequestTimeout time.Duration
	// StreamTimeout is the longest a stream may wait for its headers or for
	// its next line.
	StreamTimeout time.Duration
	// AcceptedContentTypes lists the media types a buffered response may declare.
	AcceptedContentTypes []string
	// Transport is the base round tripper. http.DefaultTransport when nil.
	Transport http.RoundTripper
	// Logger receives client diagnostics. slog.Default() when nil.
	Logger *slog.Logger
}

// DefaultConfig returns the configuration New starts from.
func DefaultConfig() Config {
	return Config{
		BaseURL:              DefaultBaseURL,
		UserAgent:            DefaultUserAgent,
		User:                 defaultUser(),
		VerifyModel:          DefaultVerifyModel,
		VerifyTimeout:        DefaultVerifyTimeout,
		RequestTimeout:       DefaultRequestTimeout,
		StreamTimeout:        DefaultStreamTimeout,
		AcceptedContentTypes: slices.Clone(DefaultContentTypes),
	}
}

func defaultUser() string {
	host, _ := os.Hostname()
	return uuidx.ClientID(host)
}

// Validate checks the configuration and returns every problem it finds.
func (c *Config) Validate() error {
	var errs []error
	if _, err := c.baseURL(); err != nil {
		errs = append(errs, err)
	}
	for _, timeout := range []struct {
		field string
		value time.Duration
	}{
		{"VerifyTimeout", c.VerifyTimeout},
		{"RequestTimeout", c.RequestTimeout},
		{"StreamTimeout", c.StreamTimeout},
	} {
		if timeout.value <= 0 {
			errs = append(errs, &ConfigurationError{Field: timeout.field, Value: timeout.value.String(), Err: errors.New("must be positive")})
		}
	}
	if len(c.AcceptedContentTypes) == 0 {
		errs = append(errs, &ConfigurationError{Field: "AcceptedContentTypes", Err: errors.New("at least one content type is required")})
	}
	if strings.TrimSpace(c.VerifyModel) == "" {
		errs = append(errs, &ConfigurationError{Field: "VerifyModel", Err: errors.New("is required")})
	}
	return errors.Join(errs...)
}

// baseURL parses BaseURL and makes sure it ends with a slash so relative
// request paths are resolved below it rather than beside it.
func (c *Config) baseURL() (*url.URL, error) {
	u, err := url.Parse(c.BaseURL)
	if err != nil {
		return nil, &ConfigurationError{Field: "BaseURL", Value: c.BaseURL, Err: err}
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, &ConfigurationError{Field: "BaseURL", Value: c.BaseURL, Err: fmt.Errorf("unsupported scheme %q", u.Scheme)}
	}
	if u.Host == "" {
		return nil, &ConfigurationError{Field: "BaseURL", Value: c.BaseURL, Err: errors.New("missing host")}
	}
	if !strings.HasSuffix(u.Path, "/") {
		u.Path += "/"
	}
	return u, nil
}
