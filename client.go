package oachat

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/casualjim/oachat/api"
	"github.com/casualjim/oachat/internal/registry"
	"github.com/casualjim/oachat/pkg/jsonx"
	"github.com/casualjim/oachat/pkg/slogx"
	"github.com/fogfish/opts"
	json "github.com/goccy/go-json"
)

// Client talks to an OpenAI-compatible completion service. It is safe for
// concurrent use; concurrent calls share only the underlying connection pool.
type Client struct {
	cfg     Config
	baseURL *url.URL
	http    *http.Client
	log     *slog.Logger
	streams registry.Registry[*Stream]
}

// New builds a client from DefaultConfig with the options applied.
func New(options ...opts.Option[Config]) (*Client, error) {
	cfg := DefaultConfig()
	if err := opts.Apply(&cfg, options); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	base, err := cfg.baseURL()
	if err != nil {
		return nil, err
	}
	cfg.AcceptedContentTypes = append([]string(nil), cfg.AcceptedContentTypes...)

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	c := &Client{
		cfg:     cfg,
		baseURL: base,
		http:    &http.Client{Transport: newHeaderTransport(cfg.Transport, &cfg)},
		log:     logger.With(slogx.LoggerName("oachat")),
		streams: registry.New[*Stream](),
	}
	c.log.Debug("client created", slogx.URL("base_url", base), slogx.Secret("api_key", cfg.APIKey))
	return c, nil
}

// Config returns a copy of the client's configuration.
func (c *Client) Config() Config {
	cfg := c.cfg
	cfg.AcceptedContentTypes = append([]string(nil), c.cfg.AcceptedContentTypes...)
	return cfg
}

// roundTrip performs one buffered request and returns the validated body.
func (c *Client) roundTrip(ctx context.Context, method, path string, body []byte) ([]byte, error) {
	req, err := c.buildRequest(ctx, method, path, body)
	if err != nil {
		return nil, err
	}

	c.log.DebugContext(ctx, "sending request", slog.String("method", method), slogx.URL("url", req.URL))
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, requestError(ctx, method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, requestError(ctx, method, path, err)
	}

	if err := c.validateResponse(resp, data); err != nil {
		c.log.DebugContext(ctx, "request failed", slog.Int("status", resp.StatusCode), slogx.Error(err))
		return nil, err
	}
	return data, nil
}

// Verify sends a tiny completion request to check credentials and
// connectivity. Calls are independent of each other.
func (c *Client) Verify(ctx context.Context) (*api.CompletionSummary, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.VerifyTimeout)
	defer cancel()

	params := CompletionParams{
		Model:    c.cfg.VerifyModel,
		Messages: []api.ChatMessage{api.UserMessage("hi")},
	}
	params.SetOption(OptionMaxTokens, 2)
	body, err := params.body(nil, "")
	if err != nil {
		return nil, err
	}

	data, err := c.roundTrip(ctx, http.MethodPost, pathChatCompletions, body)
	if err != nil {
		return nil, err
	}
	return decodeSummary(data)
}

// ListModels returns the models the service offers, in the order listed.
func (c *Client) ListModels(ctx context.Context) ([]api.Model, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.RequestTimeout)
	defer cancel()

	data, err := c.roundTrip(ctx, http.MethodGet, pathModels, nil)
	if err != nil {
		return nil, err
	}

	list, err := jsonx.UnwrapList(data)
	if err != nil {
		return nil, fmt.Errorf("invalid JSON response: %w", err)
	}
	var models []api.Model
	if err := json.Unmarshal(list, &models); err != nil {
		return nil, fmt.Errorf("failed to decode model list: %w", err)
	}
	return models, nil
}

// Complete runs a non-streamed completion. Prior messages come from history,
// which may be nil.
func (c *Client) Complete(ctx context.Context, params CompletionParams, history ContextProvider) (*api.CompletionSummary, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.RequestTimeout)
	defer cancel()

	prior, err := resolveContext(ctx, history)
	if err != nil {
		return nil, err
	}
	params.Stream = false
	body, err := params.body(prior, c.cfg.User)
	if err != nil {
		return nil, err
	}

	data, err := c.roundTrip(ctx, http.MethodPost, pathChatCompletions, body)
	if err != nil {
		return nil, err
	}
	return decodeSummary(data)
}

// CancelAll cancels every stream that is still running.
func (c *Client) CancelAll() {
	c.streams.Each(func(_ string, s *Stream) bool {
		s.Cancel()
		return true
	})
}

func resolveContext(ctx context.Context, history ContextProvider) ([]api.ChatMessage, error) {
	if history == nil {
		return nil, nil
	}
	return history.Context(ctx)
}

func decodeSummary(data []byte) (*api.CompletionSummary, error) {
	var summary api.CompletionSummary
	if err := json.Unmarshal(data, &summary); err != nil {
		return nil, fmt.Errorf("failed to decode completion: %w", err)
	}
	return &summary, nil
}
