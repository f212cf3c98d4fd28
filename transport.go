package oachat

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
)

const (
	pathChatCompletions = "v1/chat/completions"
	pathModels          = "v1/models"
)

// headerTransport adds the headers every request shares. It is built once in
// New so individual requests never set credentials themselves.
type headerTransport struct {
	base   http.RoundTripper
	header http.Header
}

func newHeaderTransport(base http.RoundTripper, cfg *Config) *headerTransport {
	if base == nil {
		base = http.DefaultTransport
	}
	header := make(http.Header)
	header.Set("Content-Type", "application/json")
	if cfg.UserAgent != "" {
		header.Set("User-Agent", cfg.UserAgent)
	}
	if cfg.APIKey != "" {
		header.Set("Authorization", "Bearer "+cfg.APIKey)
	}
	return &headerTransport{base: base, header: header}
}

func (t *headerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	r := req.Clone(req.Context())
	for key, values := range t.header {
		if r.Header.Get(key) == "" {
			r.Header[key] = values
		}
	}
	return t.base.RoundTrip(r)
}

// buildRequest resolves path against the base URL and creates the request.
func (c *Client) buildRequest(ctx context.Context, method, path string, body []byte) (*http.Request, error) {
	ref, err := url.Parse(path)
	if err != nil {
		return nil, &ConfigurationError{Field: "path", Value: path, Err: err}
	}
	u := c.baseURL.ResolveReference(ref)
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, &ConfigurationError{Field: "path", Value: path, Err: errors.New("unable to create request url")}
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), bytes.NewReader(body))
	if err != nil {
		return nil, &ConfigurationError{Field: "path", Value: path, Err: err}
	}
	if method == http.MethodPost {
		req.Header.Set("Accept", "application/json")
	}
	return req, nil
}

// requestError turns a transport failure into the error the caller sees.
// A cancelled context wins over whatever the transport reported.
func requestError(ctx context.Context, method, path string, err error) error {
	if cerr := contextError(ctx); cerr != nil {
		return cerr
	}
	return fmt.Errorf("%s %s: %w", method, path, err)
}

// contextError maps a finished context to the error returned to callers.
func contextError(ctx context.Context) error {
	if ctx.Err() == nil {
		return nil
	}
	cause := context.Cause(ctx)
	switch {
	case errors.Is(cause, ErrCancelled), errors.Is(cause, ErrStreamIdle):
		return cause
	case errors.Is(cause, context.Canceled):
		return fmt.Errorf("%w: %w", ErrCancelled, cause)
	default:
		return cause
	}
}
