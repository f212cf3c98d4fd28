package oachat

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/fogfish/opts"
)

var (
	// BaseURL sets the service root, e.g. "https://api.openai.com/".
	BaseURL = opts.ForName[Config, string]("BaseURL")

	// APIKey sets the bearer token sent with every request.
	APIKey = opts.ForName[Config, string]("APIKey")

	// UserAgent sets the User-Agent header.
	UserAgent = opts.ForName[Config, string]("UserAgent")

	// User sets the caller identifier attached to chat requests.
	User = opts.ForName[Config, string]("User")

	// VerifyModel sets the model Verify asks for.
	VerifyModel = opts.ForName[Config, string]("VerifyModel")

	// VerifyTimeout bounds a Verify call.
	VerifyTimeout = opts.ForName[Config, time.Duration]("VerifyTimeout")

	// RequestTimeout bounds buffered calls.
	RequestTimeout = opts.ForName[Config, time.Duration]("RequestTimeout")

	// StreamTimeout bounds the wait for stream headers and for each line.
	StreamTimeout = opts.ForName[Config, time.Duration]("StreamTimeout")

	// Transport sets the base round tripper.
	Transport = opts.ForName[Config, http.RoundTripper]("Transport")

	// Logger sets the logger used for client diagnostics.
	Logger = opts.ForName[Config, *slog.Logger]("Logger")
)

// AcceptContentTypes replaces the accepted media types of buffered responses.
func AcceptContentTypes(contentType string, more ...string) opts.Option[Config] {
	return opts.Type[Config](func(c *Config) error {
		c.AcceptedContentTypes = append([]string{contentType}, more...)
		return nil
	})
}

// WithConfig replaces the whole configuration. Options that follow it still apply.
func WithConfig(cfg Config) opts.Option[Config] {
	return opts.Type[Config](func(c *Config) error {
		*c = cfg
		return nil
	})
}

// WithHTTPClient uses the transport of an existing http.Client.
func WithHTTPClient(client *http.Client) opts.Option[Config] {
	return opts.Type[Config](func(c *Config) error {
		if client == nil {
			return errors.New("http client is nil")
		}
		c.Transport = client.Transport
		return nil
	})
}
